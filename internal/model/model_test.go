package model

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateSnapshot_IsFresh(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		fetchedAt time.Time
		want      bool
	}{
		{"just fetched", now, true},
		{"one hour ago", now.Add(-time.Hour), true},
		{"one millisecond inside window", now.Add(-FreshnessWindow + time.Millisecond), true},
		{"exactly at window", now.Add(-FreshnessWindow), false},
		{"three days ago", now.Add(-72 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := RateSnapshot{BaseCurrency: "USD", FetchedAt: tt.fetchedAt}
			assert.Equal(t, tt.want, snap.IsFresh(now))
		})
	}
}

func TestFreshnessWindowMillis(t *testing.T) {
	assert.Equal(t, int64(172_800_000), FreshnessWindow.Milliseconds())
}

func TestRatesCodec(t *testing.T) {
	rates := map[string]float64{"EUR": 0.92, "GBP": 0.79}

	raw, err := EncodeRates(rates)
	require.NoError(t, err)
	assert.JSONEq(t, `{"EUR":0.92,"GBP":0.79}`, raw)

	decoded, err := DecodeRates(raw)
	require.NoError(t, err)
	assert.Equal(t, rates, decoded)

	t.Run("nil mapping encodes as empty object", func(t *testing.T) {
		raw, err := EncodeRates(nil)
		require.NoError(t, err)
		assert.Equal(t, "{}", raw)
	})

	t.Run("corrupt column", func(t *testing.T) {
		_, err := DecodeRates("not json")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode rates")
	})
}

func TestRateSnapshot_Currencies(t *testing.T) {
	snap := RateSnapshot{Rates: map[string]float64{"USD": 1, "EUR": 0.92, "GBP": 0.79}}
	assert.Equal(t, []string{"EUR", "GBP", "USD"}, snap.Currencies())

	rate, ok := snap.Rate("EUR")
	assert.True(t, ok)
	assert.Equal(t, 0.92, rate)

	_, ok = snap.Rate("JPY")
	assert.False(t, ok)
}

func TestRateSnapshot_NonPositiveRateIsMissing(t *testing.T) {
	snap := RateSnapshot{Rates: map[string]float64{"EUR": 0, "GBP": -0.5, "JPY": math.NaN()}}

	for _, code := range []string{"EUR", "GBP", "JPY"} {
		rate, ok := snap.Rate(code)
		assert.False(t, ok, code)
		assert.Zero(t, rate, code)
	}
}

func TestMillisRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 10, 12, 30, 15, 123_000_000, time.UTC)
	assert.Equal(t, ts, FromMillis(ToMillis(ts)))
}

func TestNormalizeCurrency(t *testing.T) {
	code, err := NormalizeCurrency(" usd ")
	require.NoError(t, err)
	assert.Equal(t, "USD", code)

	for _, bad := range []string{"", "US", "USDT", "U5D"} {
		_, err := NormalizeCurrency(bad)
		assert.True(t, errors.Is(err, ErrValidation), bad)
	}
}

func TestNewConversionRecord(t *testing.T) {
	at := time.Now().UTC()
	rec := NewConversionRecord(ConversionResult{
		FromCurrency: "USD",
		ToCurrency:   "EUR",
		Amount:       100,
		Result:       92,
		Rate:         0.92,
	}, at)

	assert.Equal(t, "USD", rec.FromCurrency)
	assert.Equal(t, "EUR", rec.ToCurrency)
	assert.Equal(t, 100.0, rec.Amount)
	assert.Equal(t, 92.0, rec.Result)
	assert.Equal(t, 0.92, rec.Rate)
	assert.Equal(t, at, rec.Timestamp)
	assert.Zero(t, rec.ID)
}
