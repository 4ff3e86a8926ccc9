package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// FreshnessWindow is how long a fetched snapshot may be reused.
const FreshnessWindow = 2 * 24 * time.Hour

// RateSnapshot is the full set of rates from one base currency, fetched at one point in time.
type RateSnapshot struct {
	ID           int64              `json:"id"`
	BaseCurrency string             `json:"base_currency"`
	Rates        map[string]float64 `json:"rates"`
	FetchedAt    time.Time          `json:"fetched_at"`
}

// FreshnessThreshold returns the oldest fetch time that is still excluded from reuse at now.
// A snapshot is fresh when its FetchedAt is strictly after the threshold.
func FreshnessThreshold(now time.Time) time.Time {
	return now.Add(-FreshnessWindow)
}

func (s RateSnapshot) IsFresh(now time.Time) bool {
	return s.FetchedAt.After(FreshnessThreshold(now))
}

// Rate returns the rate to the target currency. Zero, negative and NaN rates count as missing.
func (s RateSnapshot) Rate(to string) (float64, bool) {
	rate, ok := s.Rates[to]
	if !ok || !(rate > 0) {
		return 0, false
	}
	return rate, true
}

// Currencies returns the snapshot's target currencies in lexical order.
func (s RateSnapshot) Currencies() []string {
	codes := make([]string, 0, len(s.Rates))
	for code := range s.Rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// EncodeRates serializes a rate mapping for the rates column.
func EncodeRates(rates map[string]float64) (string, error) {
	if rates == nil {
		rates = map[string]float64{}
	}
	data, err := json.Marshal(rates)
	if err != nil {
		return "", fmt.Errorf("failed to encode rates: %w", err)
	}
	return string(data), nil
}

// DecodeRates parses the rates column back into a mapping.
func DecodeRates(raw string) (map[string]float64, error) {
	rates := make(map[string]float64)
	if err := json.Unmarshal([]byte(raw), &rates); err != nil {
		return nil, fmt.Errorf("failed to decode rates: %w", err)
	}
	return rates, nil
}

// ToMillis and FromMillis convert between time.Time and the store's epoch milliseconds.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
