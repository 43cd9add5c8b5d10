package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsedTransactionValidate(t *testing.T) {
	valid := ParsedTransaction{
		Amount:    5000,
		TxnID:     "MP240123.1234.A12345",
		Timestamp: time.Date(2024, 1, 23, 14, 3, 0, 0, time.UTC),
	}
	assert.NoError(t, valid.Validate())

	negative := valid
	negative.Amount = -100
	err := negative.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative amount")

	zeroTime := valid
	zeroTime.Timestamp = time.Time{}
	err = zeroTime.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero timestamp")
}

func TestParseSuccessCapsConfidence(t *testing.T) {
	txn := &ParsedTransaction{Amount: 1, TxnID: "X", Timestamp: time.Now()}

	result := ParseSuccess(txn, 1.2)
	assert.True(t, result.Success)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Same(t, txn, result.Transaction)

	result = ParseSuccess(txn, 0.85)
	assert.Equal(t, 0.85, result.Confidence)
}

func TestParseFailureKeepsPartialConfidence(t *testing.T) {
	result := ParseFailure(0.3, "could not parse amount")
	assert.False(t, result.Success)
	assert.Nil(t, result.Transaction)
	assert.Equal(t, 0.3, result.Confidence)
	assert.Equal(t, "could not parse amount", result.Error)
}
