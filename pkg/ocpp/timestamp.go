package ocpp

import "time"

// timestampLayout is ISO-8601 with millisecond precision and a trailing Z,
// per §4.1.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in the wire timestamp format, always in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp parses a wire timestamp. It tolerates a payload omitting
// milliseconds, per §4.1.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
