package evse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTransaction_GeneratesUniqueID(t *testing.T) {
	now := time.Now()
	a := newTransaction("TAG1", now)
	b := newTransaction("TAG1", now)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, TransactionActive, a.Status)
	assert.Equal(t, now, a.StartTime)
}

func TestTransaction_AddMeterValueIncrementsSequence(t *testing.T) {
	tx := newTransaction("TAG1", time.Now())
	assert.Equal(t, 0, tx.SequenceNumber())

	tx.addMeterValue(10.5, time.Now())
	tx.addMeterValue(11.0, time.Now())

	assert.Equal(t, 2, tx.SequenceNumber())
	assert.Len(t, tx.MeterValues, 2)
}

func TestTransaction_End(t *testing.T) {
	tx := newTransaction("TAG1", time.Now())
	stop := time.Now().Add(time.Hour)
	tx.end(TransactionCompleted, stop)

	assert.Equal(t, TransactionCompleted, tx.Status)
	assert.Equal(t, stop, tx.StopTime)
}
