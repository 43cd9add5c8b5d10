package rw

import (
	"regexp"
	"strings"
	"time"

	"github.com/ibimina/ingest-core/internal/adapter"
	"github.com/ibimina/ingest-core/internal/model"
)

var (
	// Amount appears as "RWF 5,000", "5000 RWF" or behind an "amount:" label.
	smsAmountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)RWF\s*([\d,]+(?:\.\d{2})?)`),
		regexp.MustCompile(`(?i)([\d,]+(?:\.\d{2})?)\s*RWF`),
		regexp.MustCompile(`(?i)amount[:\s]\s*([\d,]+(?:\.\d{2})?)`),
	}

	smsTxnIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)transaction\s+id[:\s]+([A-Z0-9.]+)`),
		regexp.MustCompile(`(?i)txn\s*id[:\s]+([A-Z0-9.]+)`),
		regexp.MustCompile(`(?i)ref[:\s]+([A-Z0-9.]+)`),
	}

	smsLabeledReferencePattern = regexp.MustCompile(`(?i)reference[:\s]+([A-Z]{3}\.[A-Z0-9]{3}\.[A-Z0-9]{3,4}\.[A-Z0-9]{3,4}\.[0-9]{3})`)
	smsBalancePattern          = regexp.MustCompile(`(?i)balance[:\s]+RWF\s*([\d,]+(?:\.\d{2})?)`)
)

// A labeled id shorter than this is noise, not a transaction id.
const minSMSTxnIDLen = 6

// MTNSMSAdapter parses MTN Rwanda mobile money SMS confirmations.
type MTNSMSAdapter struct {
	weights adapter.ConfidenceWeights
	now     func() time.Time
}

// NewMTNSMSAdapter builds the adapter with the shipped weights.
func NewMTNSMSAdapter() *MTNSMSAdapter {
	return &MTNSMSAdapter{weights: adapter.DefaultSMSWeights(), now: time.Now}
}

// NewMTNSMSAdapterWithWeights builds the adapter with tuned weights.
func NewMTNSMSAdapterWithWeights(w adapter.ConfidenceWeights) *MTNSMSAdapter {
	return &MTNSMSAdapter{weights: w, now: time.Now}
}

func (a *MTNSMSAdapter) Name() string        { return "MTN Rwanda SMS" }
func (a *MTNSMSAdapter) CountryISO3() string { return "RWA" }

// SenderPatterns returns the known MTN Rwanda SMS sender ids.
func (a *MTNSMSAdapter) SenderPatterns() []string {
	return []string{"MTN", "MoMo", "MTN-MM", "MTN MOBILE MONEY"}
}

func (a *MTNSMSAdapter) CanHandle(input string) bool {
	lower := strings.ToLower(input)
	if !strings.Contains(lower, "mtn") && !strings.Contains(lower, "momo") {
		return false
	}
	for _, kw := range []string{"received", "sent", "rwf", "confirmed"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ValidateHeaders always fails for SMS input, which has no header row.
func (a *MTNSMSAdapter) ValidateHeaders(headers []string) bool {
	return false
}

// ParseRow joins the fields back into one message body; SMS bodies arrive as
// free text, not columns.
func (a *MTNSMSAdapter) ParseRow(fields []string) model.ParseResult {
	return a.Parse(strings.Join(fields, " "))
}

// Parse extracts a transaction from an SMS confirmation such as:
//
//	You have received RWF 5,000 from 250788123456.
//	Transaction ID: MP240123.1234.A12345.
//	Reference: RWA.NYA.GAS.TWIZ.001. Balance: RWF 15,000
func (a *MTNSMSAdapter) Parse(input string) model.ParseResult {
	amount, ok := a.extractAmount(input)
	if !ok {
		return model.ParseFailure(0.2, "could not extract amount from SMS")
	}

	txnID := a.extractTxnID(input)
	if txnID == "" {
		return model.ParseFailure(0.4, "could not extract transaction ID from SMS")
	}

	now := a.now()
	msisdn := extractMSISDN(input)
	reference := a.extractReference(input)

	txn := &model.ParsedTransaction{
		Amount:       amount,
		TxnID:        txnID,
		Timestamp:    now, // SMS bodies rarely carry a usable timestamp
		PayerMSISDN:  msisdn,
		RawReference: reference,
		RawData: map[string]any{
			"sms_text":  input,
			"parsed_at": now.UTC().Format(time.RFC3339),
		},
	}
	if balance, ok := a.extractBalance(input); ok {
		txn.Balance = &balance
	}

	return model.ParseSuccess(txn, a.weights.Score(txnID, reference != "", msisdn != ""))
}

func (a *MTNSMSAdapter) extractAmount(text string) (float64, bool) {
	for _, p := range smsAmountPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if v, ok := parseAmount(m[1]); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func (a *MTNSMSAdapter) extractTxnID(text string) string {
	for _, p := range smsTxnIDPatterns {
		if m := p.FindStringSubmatch(text); m != nil && len(m[1]) >= minSMSTxnIDLen {
			return strings.TrimSuffix(m[1], ".")
		}
	}
	return ""
}

func (a *MTNSMSAdapter) extractReference(text string) string {
	if m := smsLabeledReferencePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := referencePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func (a *MTNSMSAdapter) extractBalance(text string) (float64, bool) {
	if m := smsBalancePattern.FindStringSubmatch(text); m != nil {
		return parseAmount(m[1])
	}
	return 0, false
}
