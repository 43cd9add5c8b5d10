// Package adapter defines the contract every provider-specific statement and
// SMS parser implements, plus the tunable confidence weights shared by the
// shipped adapters.
package adapter

import (
	"github.com/ibimina/ingest-core/internal/model"
)

// Type distinguishes the two input families an adapter can handle.
type Type string

const (
	TypeStatement Type = "statement"
	TypeSMS       Type = "sms"
)

// Valid reports whether t is one of the known adapter types.
func (t Type) Valid() bool {
	return t == TypeStatement || t == TypeSMS
}

// ProviderAdapter is the parsing contract implemented per
// provider/country/type combination. Implementations are stateless; every
// method is safe for concurrent use.
type ProviderAdapter interface {
	// Name returns the human-readable adapter name.
	Name() string
	// CountryISO3 returns the ISO-3166 alpha-3 country code this adapter serves.
	CountryISO3() string
	// CanHandle is a cheap candidacy heuristic. A true result never
	// guarantees Parse will succeed.
	CanHandle(input string) bool
	// ParseRow parses an already-tokenized statement row.
	ParseRow(fields []string) model.ParseResult
	// Parse tokenizes input by common delimiters and delegates to ParseRow,
	// or parses free text directly for SMS adapters.
	Parse(input string) model.ParseResult
	// ValidateHeaders loosely checks a header row against the minimal
	// required column set (date, transaction, amount). Case-insensitive,
	// substring match, because real exports never agree on column names.
	ValidateHeaders(headers []string) bool
}
