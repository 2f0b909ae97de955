package ocpp

import (
	"crypto/rand"
	"math/big"
)

const messageIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
const messageIDLength = 8

// NewMessageID generates an eight-character lowercase base-36 message id
// from a cryptographically uncorrelated source (§4.1). Uniqueness among
// in-flight Calls is the pending table's responsibility, not this
// generator's.
func NewMessageID() string {
	buf := make([]byte, messageIDLength)
	alphabetLen := big.NewInt(int64(len(messageIDAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			// crypto/rand failing here means the OS entropy source is
			// broken; there is no sane fallback short of panicking.
			panic(err)
		}
		buf[i] = messageIDAlphabet[n.Int64()]
	}
	return string(buf)
}
