// Package registry holds the provider adapter registry: registration,
// targeted lookup, and confidence-ranked auto-detection over raw input.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/ibimina/ingest-core/internal/adapter"
	"github.com/ibimina/ingest-core/internal/adapter/rw"
	"github.com/ibimina/ingest-core/internal/model"
)

// Entry binds an adapter to its (country, provider, type) triple. Priority
// only orders iteration; it never overrides a higher-confidence result.
type Entry struct {
	Adapter      adapter.ProviderAdapter
	Type         adapter.Type
	CountryISO3  string
	ProviderName string
	Priority     int
}

// Registry is an explicit adapter collection, built once at process start and
// handed to every ingestion caller. Register and Clear mutate the list;
// everything else is read-only and safe to call concurrently against a
// populated registry.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// NewWithDefaults creates a registry populated with the shipped adapters.
func NewWithDefaults() *Registry {
	r := New()
	r.RegisterDefaults()
	return r
}

// Register appends an entry and re-sorts by priority descending. The sort is
// stable so equal priorities keep registration order.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].Priority > r.entries[j].Priority
	})
}

// RegisterDefaults registers the shipped country/provider pairs.
func (r *Registry) RegisterDefaults() {
	r.Register(Entry{
		Adapter:      rw.NewMTNStatementAdapter(),
		Type:         adapter.TypeStatement,
		CountryISO3:  "RWA",
		ProviderName: "MTN Rwanda",
		Priority:     100,
	})
	r.Register(Entry{
		Adapter:      rw.NewMTNSMSAdapter(),
		Type:         adapter.TypeSMS,
		CountryISO3:  "RWA",
		ProviderName: "MTN Rwanda",
		Priority:     100,
	})
}

// GetAdapter returns the adapter for an exact (country, provider, type)
// match, or nil. Country and provider comparisons are case-insensitive.
func (r *Registry) GetAdapter(countryISO3, providerName string, typ adapter.Type) adapter.ProviderAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if strings.EqualFold(e.CountryISO3, countryISO3) &&
			strings.EqualFold(e.ProviderName, providerName) &&
			e.Type == typ {
			return e.Adapter
		}
	}
	return nil
}

// AdaptersByCountry returns all entries registered for a country.
func (r *Registry) AdaptersByCountry(countryISO3 string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.entries {
		if strings.EqualFold(e.CountryISO3, countryISO3) {
			out = append(out, e)
		}
	}
	return out
}

// AdaptersByType returns all entries of the given adapter type.
func (r *Registry) AdaptersByType(typ adapter.Type) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.entries {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// All returns a copy of every registered entry in iteration order.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// NoAdapterError is the fixed failure message AutoParse returns when no
// candidate succeeds.
const NoAdapterError = "no adapter could parse the input"

// AutoParse races every candidate adapter against the input and keeps the
// success with the strictly highest confidence. A zero-value type skips the
// pre-filter. This is a greedy single pass: partial signals from losing
// adapters are discarded, and ties go to the earlier (higher-priority) entry.
func (r *Registry) AutoParse(input string, typ adapter.Type) model.ParseResult {
	candidates := r.All()
	if typ != "" {
		candidates = r.AdaptersByType(typ)
	}

	var best *model.ParseResult
	bestConfidence := 0.0

	for _, e := range candidates {
		if !e.Adapter.CanHandle(input) {
			continue
		}
		result := e.Adapter.Parse(input)
		if result.Success && result.Confidence > bestConfidence {
			best = &result
			bestConfidence = result.Confidence
		}
	}

	if best != nil {
		return *best
	}
	return model.ParseFailure(0, NoAdapterError)
}
