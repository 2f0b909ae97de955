package evse

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the lifecycle status of a Transaction.
type TransactionStatus int

const (
	TransactionActive TransactionStatus = iota
	TransactionCompleted
	TransactionExpired
	TransactionRejected
)

func (s TransactionStatus) String() string {
	switch s {
	case TransactionActive:
		return "Active"
	case TransactionCompleted:
		return "Completed"
	case TransactionExpired:
		return "Expired"
	case TransactionRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// MeterSample is one energy reading recorded against a Transaction.
type MeterSample struct {
	Timestamp time.Time
	Value     float64
}

// Transaction is a charging session tracked by the state machine (§4.4).
type Transaction struct {
	ID           string
	IDTag        string
	StartTime    time.Time
	StopTime     time.Time
	Status       TransactionStatus
	MeterValues  []MeterSample
	seq          int
}

func newTransaction(idTag string, now time.Time) *Transaction {
	return &Transaction{
		ID:        uuid.NewString(),
		IDTag:     idTag,
		StartTime: now,
		Status:    TransactionActive,
	}
}

func (t *Transaction) addMeterValue(value float64, now time.Time) {
	t.MeterValues = append(t.MeterValues, MeterSample{Timestamp: now, Value: value})
	t.seq++
}

// SequenceNumber returns the number of meter samples recorded so far, which
// doubles as the TransactionEvent seqNo per §4.4.
func (t *Transaction) SequenceNumber() int {
	return t.seq
}

func (t *Transaction) end(status TransactionStatus, now time.Time) {
	t.Status = status
	t.StopTime = now
}
