package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	w := DefaultStatementWeights()

	tests := []struct {
		name         string
		txnID        string
		hasReference bool
		hasMSISDN    bool
		want         float64
	}{
		{"base only", "MP1", false, false, 0.6},
		{"long txn id", "MP240123.1234", false, false, 0.75},
		{"txn id and reference", "MP240123.1234", true, false, 0.95},
		{"all fields", "MP240123.1234", true, true, 1.0},
		{"short id with both extras", "MP1", true, true, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, w.Score(tt.txnID, tt.hasReference, tt.hasMSISDN), 1e-9)
		})
	}
}

func TestScoreCapsAtOne(t *testing.T) {
	w := ConfidenceWeights{Base: 0.9, TxnID: 0.5, Reference: 0.5, PayerMSISDN: 0.5, MinTxnIDLen: 1}
	assert.Equal(t, 1.0, w.Score("ABCDEF", true, true))
}

func TestScoreIsMonotone(t *testing.T) {
	for _, w := range []ConfidenceWeights{DefaultStatementWeights(), DefaultSMSWeights()} {
		bare := w.Score("X", false, false)
		withRef := w.Score("X", true, false)
		withAll := w.Score("ABCDEFGHIJK", true, true)
		assert.GreaterOrEqual(t, withRef, bare)
		assert.GreaterOrEqual(t, withAll, withRef)
		assert.LessOrEqual(t, withAll, 1.0)
	}
}

func TestLoadWeights(t *testing.T) {
	yaml := `
confidence:
  statement:
    base: 0.7
    txn_id: 0.1
    reference: 0.1
    payer_msisdn: 0.1
    min_txn_id_len: 4
`
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadWeights(path)
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Statement.Base)
	assert.Equal(t, 4, cfg.Statement.MinTxnIDLen)

	// The sms section was absent, so it falls back to the defaults.
	require.NotNil(t, cfg.SMS)
	assert.Equal(t, DefaultSMSWeights(), *cfg.SMS)
}

func TestLoadWeightsFileNotFound(t *testing.T) {
	_, err := LoadWeights("/nonexistent/weights.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read weights")
}

func TestTypeValid(t *testing.T) {
	assert.True(t, TypeStatement.Valid())
	assert.True(t, TypeSMS.Valid())
	assert.False(t, Type("email").Valid())
	assert.False(t, Type("").Valid())
}
