// Package rw holds the Rwanda provider adapters.
package rw

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ibimina/ingest-core/internal/adapter"
	"github.com/ibimina/ingest-core/internal/model"
)

// Statement rows carry at least date, time, txn id, details and amount.
const minStatementFields = 5

var (
	isoDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

	// Reference tokens are dotted org-hierarchy codes. The current format has
	// five segments (country prefix included); the legacy format has four.
	referencePattern       = regexp.MustCompile(`(?i)\b([A-Z]{3}\.[A-Z0-9]{3}\.[A-Z0-9]{3,4}\.[A-Z0-9]{3,4}\.[0-9]{3})\b`)
	legacyReferencePattern = regexp.MustCompile(`(?i)\b([A-Z]{3}\.[A-Z0-9]{3,4}\.[A-Z0-9]{3,4}\.[0-9]{3})\b`)

	intlMSISDNPattern  = regexp.MustCompile(`\b(250\d{9})\b`)
	localMSISDNPattern = regexp.MustCompile(`\b(07\d{8})\b`)

	currencyNoise = regexp.MustCompile(`(?i)[RWF,\s]`)
	amountNoise   = regexp.MustCompile(`[^\d.-]`)
)

// statementTimeLayouts are tried in order when the date is not ISO-formatted.
var statementTimeLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"01/02/2006 15:04:05",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04",
}

// MTNStatementAdapter parses MTN Rwanda mobile money statement rows.
// Expected column order: Date, Time, Transaction ID, Details, Amount,
// Balance, Status.
type MTNStatementAdapter struct {
	weights adapter.ConfidenceWeights
}

// NewMTNStatementAdapter builds the adapter with the shipped weights.
func NewMTNStatementAdapter() *MTNStatementAdapter {
	return &MTNStatementAdapter{weights: adapter.DefaultStatementWeights()}
}

// NewMTNStatementAdapterWithWeights builds the adapter with tuned weights.
func NewMTNStatementAdapterWithWeights(w adapter.ConfidenceWeights) *MTNStatementAdapter {
	return &MTNStatementAdapter{weights: w}
}

func (a *MTNStatementAdapter) Name() string        { return "MTN Rwanda" }
func (a *MTNStatementAdapter) CountryISO3() string { return "RWA" }

// ExpectedHeaders returns the canonical MTN Rwanda statement header row.
func (a *MTNStatementAdapter) ExpectedHeaders() []string {
	return []string{"Date", "Time", "Transaction ID", "Details", "Amount", "Balance", "Status"}
}

func (a *MTNStatementAdapter) ValidateHeaders(headers []string) bool {
	return looseHeaderMatch(headers, []string{"date", "transaction", "amount"})
}

func (a *MTNStatementAdapter) CanHandle(input string) bool {
	lower := strings.ToLower(input)
	return strings.Contains(lower, "mtn") ||
		strings.Contains(lower, "mobile money") ||
		isoDatePattern.MatchString(input)
}

func (a *MTNStatementAdapter) Parse(input string) model.ParseResult {
	return a.ParseRow(splitDelimited(input))
}

func (a *MTNStatementAdapter) ParseRow(fields []string) model.ParseResult {
	if len(fields) < minStatementFields {
		return model.ParseFailure(0, "insufficient columns in row")
	}

	date := strings.TrimSpace(fields[0])
	clock := strings.TrimSpace(fields[1])
	txnID := strings.TrimSpace(fields[2])
	details := strings.TrimSpace(fields[3])
	amountStr := strings.TrimSpace(fields[4])

	amount, ok := parseAmount(amountStr)
	if !ok {
		return model.ParseFailure(0.3, "could not parse amount")
	}

	timestamp, ok := parseStatementTimestamp(date, clock)
	if !ok {
		return model.ParseFailure(0.5, "could not parse timestamp")
	}

	reference := extractReference(details)
	msisdn := extractMSISDN(details)

	raw := map[string]any{
		"date":    date,
		"time":    clock,
		"details": details,
	}
	if len(fields) > 6 {
		raw["status"] = strings.TrimSpace(fields[6])
	}

	txn := &model.ParsedTransaction{
		Amount:       amount,
		TxnID:        txnID,
		Timestamp:    timestamp,
		PayerMSISDN:  msisdn,
		RawReference: reference,
		RawData:      raw,
	}
	if len(fields) > 5 {
		if balance, ok := parseAmount(strings.TrimSpace(fields[5])); ok {
			txn.Balance = &balance
		}
	}

	return model.ParseSuccess(txn, a.weights.Score(txnID, reference != "", msisdn != ""))
}

// delimiterPattern covers the separators statement exports actually use.
var delimiterPattern = regexp.MustCompile(`[,\t;|]`)

// splitDelimited tokenizes a raw line, keeping empty fields so column
// positions stay stable.
func splitDelimited(input string) []string {
	return delimiterPattern.Split(input, -1)
}

func looseHeaderMatch(headers []string, required []string) bool {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}
	for _, req := range required {
		found := false
		for _, h := range normalized {
			if strings.Contains(h, req) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// parseAmount normalizes a statement amount: currency codes, thousands
// separators and stray noise are stripped, and the sign is discarded because
// direction travels with the transaction type, not the amount.
func parseAmount(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	cleaned := amountNoise.ReplaceAllString(currencyNoise.ReplaceAllString(s, ""), "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if v < 0 {
		v = -v
	}
	return v, true
}

func parseStatementTimestamp(date, clock string) (time.Time, bool) {
	if strings.Contains(date, "-") {
		combined := date
		if clock != "" {
			combined = date + "T" + clock
		}
		for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
			if ts, err := time.Parse(layout, combined); err == nil {
				return ts, true
			}
		}
	}
	combined := strings.TrimSpace(date + " " + clock)
	for _, layout := range statementTimeLayouts {
		if ts, err := time.Parse(layout, combined); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// extractReference pulls a dotted reference token out of free text, trying
// the five-segment format before the legacy four-segment one.
func extractReference(details string) string {
	if m := referencePattern.FindStringSubmatch(details); m != nil {
		return m[1]
	}
	if m := legacyReferencePattern.FindStringSubmatch(details); m != nil {
		return m[1]
	}
	return ""
}

// extractMSISDN finds a Rwandan phone number, preferring international form.
// Local numbers are normalized by swapping the leading 0 for the 250 prefix.
func extractMSISDN(details string) string {
	if m := intlMSISDNPattern.FindStringSubmatch(details); m != nil {
		return m[1]
	}
	if m := localMSISDNPattern.FindStringSubmatch(details); m != nil {
		return "250" + m[1][1:]
	}
	return ""
}
