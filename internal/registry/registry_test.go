package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibimina/ingest-core/internal/adapter"
	"github.com/ibimina/ingest-core/internal/model"
)

// fakeAdapter returns a canned result for any input it agrees to handle.
type fakeAdapter struct {
	name       string
	handles    bool
	result     model.ParseResult
	parseCount int
}

func (f *fakeAdapter) Name() string                        { return f.name }
func (f *fakeAdapter) CountryISO3() string                 { return "RWA" }
func (f *fakeAdapter) CanHandle(string) bool               { return f.handles }
func (f *fakeAdapter) ValidateHeaders([]string) bool       { return false }
func (f *fakeAdapter) ParseRow([]string) model.ParseResult { return f.result }
func (f *fakeAdapter) Parse(string) model.ParseResult {
	f.parseCount++
	return f.result
}

func successResult(confidence float64) model.ParseResult {
	return model.ParseSuccess(&model.ParsedTransaction{Amount: 1, TxnID: "T"}, confidence)
}

func TestRegisterOrdersByPriority(t *testing.T) {
	r := New()
	r.Register(Entry{Adapter: &fakeAdapter{name: "low"}, Type: adapter.TypeSMS, CountryISO3: "RWA", ProviderName: "low", Priority: 10})
	r.Register(Entry{Adapter: &fakeAdapter{name: "high"}, Type: adapter.TypeSMS, CountryISO3: "RWA", ProviderName: "high", Priority: 100})
	r.Register(Entry{Adapter: &fakeAdapter{name: "mid"}, Type: adapter.TypeSMS, CountryISO3: "RWA", ProviderName: "mid", Priority: 50})

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "high", all[0].ProviderName)
	assert.Equal(t, "mid", all[1].ProviderName)
	assert.Equal(t, "low", all[2].ProviderName)
}

func TestRegisterStableOnEqualPriority(t *testing.T) {
	r := New()
	r.Register(Entry{Adapter: &fakeAdapter{name: "first"}, Type: adapter.TypeSMS, CountryISO3: "RWA", ProviderName: "first", Priority: 50})
	r.Register(Entry{Adapter: &fakeAdapter{name: "second"}, Type: adapter.TypeSMS, CountryISO3: "RWA", ProviderName: "second", Priority: 50})

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "first", all[0].ProviderName)
	assert.Equal(t, "second", all[1].ProviderName)
}

func TestGetAdapterCaseInsensitive(t *testing.T) {
	r := NewWithDefaults()

	a := r.GetAdapter("rwa", "mtn rwanda", adapter.TypeStatement)
	require.NotNil(t, a)
	assert.Equal(t, "MTN Rwanda", a.Name())

	assert.Nil(t, r.GetAdapter("RWA", "MTN Rwanda", adapter.Type("email")))
	assert.Nil(t, r.GetAdapter("KEN", "MTN Rwanda", adapter.TypeStatement))
	assert.Nil(t, r.GetAdapter("RWA", "Airtel", adapter.TypeStatement))
}

func TestAdaptersByCountryAndType(t *testing.T) {
	r := NewWithDefaults()

	rwa := r.AdaptersByCountry("rwa")
	assert.Len(t, rwa, 2)
	assert.Empty(t, r.AdaptersByCountry("KEN"))

	statements := r.AdaptersByType(adapter.TypeStatement)
	require.Len(t, statements, 1)
	assert.Equal(t, adapter.TypeStatement, statements[0].Type)
}

func TestAutoParsePicksHighestConfidence(t *testing.T) {
	weak := &fakeAdapter{name: "weak", handles: true, result: successResult(0.6)}
	strong := &fakeAdapter{name: "strong", handles: true, result: successResult(0.9)}

	r := New()
	r.Register(Entry{Adapter: weak, Type: adapter.TypeSMS, CountryISO3: "RWA", ProviderName: "weak", Priority: 100})
	r.Register(Entry{Adapter: strong, Type: adapter.TypeSMS, CountryISO3: "RWA", ProviderName: "strong", Priority: 10})

	result := r.AutoParse("anything", "")
	require.True(t, result.Success)
	assert.Equal(t, 0.9, result.Confidence)

	// Both candidates were run; priority orders iteration, not outcome.
	assert.Equal(t, 1, weak.parseCount)
	assert.Equal(t, 1, strong.parseCount)
}

func TestAutoParseTieGoesToHigherPriority(t *testing.T) {
	first := &fakeAdapter{name: "first", handles: true, result: successResult(0.8)}
	second := &fakeAdapter{name: "second", handles: true, result: successResult(0.8)}

	r := New()
	r.Register(Entry{Adapter: first, Type: adapter.TypeSMS, CountryISO3: "RWA", ProviderName: "first", Priority: 100})
	r.Register(Entry{Adapter: second, Type: adapter.TypeSMS, CountryISO3: "RWA", ProviderName: "second", Priority: 10})

	result := r.AutoParse("anything", "")
	require.True(t, result.Success)
	// Equal confidence keeps the earlier entry's result.
	assert.Same(t, first.result.Transaction, result.Transaction)
}

func TestAutoParseTypeFilter(t *testing.T) {
	sms := &fakeAdapter{name: "sms", handles: true, result: successResult(0.7)}
	statement := &fakeAdapter{name: "statement", handles: true, result: successResult(0.9)}

	r := New()
	r.Register(Entry{Adapter: sms, Type: adapter.TypeSMS, CountryISO3: "RWA", ProviderName: "sms", Priority: 100})
	r.Register(Entry{Adapter: statement, Type: adapter.TypeStatement, CountryISO3: "RWA", ProviderName: "statement", Priority: 100})

	result := r.AutoParse("anything", adapter.TypeSMS)
	require.True(t, result.Success)
	assert.Equal(t, 0.7, result.Confidence)
	assert.Equal(t, 0, statement.parseCount)
}

func TestAutoParseSkipsNonHandlers(t *testing.T) {
	declines := &fakeAdapter{name: "declines", handles: false, result: successResult(0.9)}

	r := New()
	r.Register(Entry{Adapter: declines, Type: adapter.TypeSMS, CountryISO3: "RWA", ProviderName: "declines", Priority: 100})

	result := r.AutoParse("anything", "")
	assert.False(t, result.Success)
	assert.Equal(t, 0, declines.parseCount)
}

func TestAutoParseNoAdapterFailure(t *testing.T) {
	result := New().AutoParse("anything", "")
	assert.False(t, result.Success)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, NoAdapterError, result.Error)
}

func TestAutoParseFromStatementRow(t *testing.T) {
	r := NewWithDefaults()

	row := "2024-03-15,14:30:45,MP1,Payment for RWA.NYA.GAS.TWIZ.001 from 250788123456,5000,15000,Success"
	result := r.AutoParse(row, adapter.TypeStatement)
	require.True(t, result.Success, result.Error)
	assert.Greater(t, result.Confidence, 0.85)
	assert.Equal(t, 5000.0, result.Transaction.Amount)
	assert.Equal(t, "RWA.NYA.GAS.TWIZ.001", result.Transaction.RawReference)
	assert.Equal(t, "250788123456", result.Transaction.PayerMSISDN)
}

func TestAutoParseFromSMS(t *testing.T) {
	r := NewWithDefaults()

	sms := "MoMo: You have received RWF 5,000 from 0788123456. Transaction ID: MP240123.1234.A12345"
	result := r.AutoParse(sms, "")
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 5000.0, result.Transaction.Amount)
	assert.True(t, strings.HasPrefix(result.Transaction.PayerMSISDN, "250"))
}

func TestClear(t *testing.T) {
	r := NewWithDefaults()
	require.NotEmpty(t, r.All())
	r.Clear()
	assert.Empty(t, r.All())
}
