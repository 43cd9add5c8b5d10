package adapter

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ConfidenceWeights are the heuristic scoring constants an adapter adds up
// when ranking a parse. They order results, they are not probabilities; the
// defaults below are starting points meant to be tuned per deployment.
type ConfidenceWeights struct {
	Base        float64 `yaml:"base"`
	TxnID       float64 `yaml:"txn_id"`
	Reference   float64 `yaml:"reference"`
	PayerMSISDN float64 `yaml:"payer_msisdn"`
	// MinTxnIDLen is the transaction id length above which the TxnID
	// increment applies.
	MinTxnIDLen int `yaml:"min_txn_id_len"`
}

// Score sums the weights for the extracted optional fields, capped at 1.0.
func (w ConfidenceWeights) Score(txnID string, hasReference, hasMSISDN bool) float64 {
	score := w.Base
	if len(txnID) > w.MinTxnIDLen {
		score += w.TxnID
	}
	if hasReference {
		score += w.Reference
	}
	if hasMSISDN {
		score += w.PayerMSISDN
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// DefaultStatementWeights returns the shipped weights for statement adapters.
func DefaultStatementWeights() ConfidenceWeights {
	return ConfidenceWeights{
		Base:        0.6,
		TxnID:       0.15,
		Reference:   0.2,
		PayerMSISDN: 0.1,
		MinTxnIDLen: 5,
	}
}

// DefaultSMSWeights returns the shipped weights for SMS adapters. The base is
// lower than for statements because free-text SMS extraction is noisier.
func DefaultSMSWeights() ConfidenceWeights {
	return ConfidenceWeights{
		Base:        0.5,
		TxnID:       0.2,
		Reference:   0.2,
		PayerMSISDN: 0.1,
		MinTxnIDLen: 8,
	}
}

// WeightsConfig maps adapter types to tuned confidence weights.
type WeightsConfig struct {
	Statement *ConfidenceWeights `yaml:"statement,omitempty"`
	SMS       *ConfidenceWeights `yaml:"sms,omitempty"`
}

// LoadWeights reads a confidence-weights tuning file. Absent sections fall
// back to the shipped defaults.
func LoadWeights(path string) (*WeightsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "adapter: read weights %s", path)
	}

	var wrapper struct {
		Confidence WeightsConfig `yaml:"confidence"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "adapter: parse weights")
	}

	cfg := &wrapper.Confidence
	if cfg.Statement == nil {
		w := DefaultStatementWeights()
		cfg.Statement = &w
	}
	if cfg.SMS == nil {
		w := DefaultSMSWeights()
		cfg.SMS = &w
	}
	return cfg, nil
}
