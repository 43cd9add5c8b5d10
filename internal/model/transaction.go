package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// ParsedTransaction is the normalized output every provider adapter produces.
// Amount is always non-negative; direction is carried by the transaction type
// in RawData, never by the sign.
type ParsedTransaction struct {
	Amount       float64        `json:"amount"`
	TxnID        string         `json:"txn_id"`
	Timestamp    time.Time      `json:"timestamp"`
	PayerMSISDN  string         `json:"payer_msisdn,omitempty"`
	RawReference string         `json:"raw_reference,omitempty"`
	Balance      *float64       `json:"balance,omitempty"`
	RawData      map[string]any `json:"raw_data,omitempty"`
}

// Validate checks the transaction invariants.
func (t *ParsedTransaction) Validate() error {
	if t.Amount < 0 {
		return eris.Errorf("transaction %s: negative amount %f", t.TxnID, t.Amount)
	}
	if t.Timestamp.IsZero() {
		return eris.Errorf("transaction %s: zero timestamp", t.TxnID)
	}
	return nil
}

// ParseResult is the tagged outcome of a single parse attempt. On success
// Transaction is set; on failure Error describes what went wrong and
// Confidence may still be nonzero to signal partial recognition.
type ParseResult struct {
	Success     bool               `json:"success"`
	Transaction *ParsedTransaction `json:"transaction,omitempty"`
	Confidence  float64            `json:"confidence"`
	Error       string             `json:"error,omitempty"`
}

// ParseFailure builds a failure result with the given confidence.
func ParseFailure(confidence float64, msg string) ParseResult {
	return ParseResult{Success: false, Confidence: confidence, Error: msg}
}

// ParseSuccess builds a success result, capping confidence at 1.0.
func ParseSuccess(txn *ParsedTransaction, confidence float64) ParseResult {
	if confidence > 1.0 {
		confidence = 1.0
	}
	return ParseResult{Success: true, Transaction: txn, Confidence: confidence}
}
