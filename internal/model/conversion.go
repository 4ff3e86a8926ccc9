package model

import "time"

// ConversionResult is the outcome of a single conversion.
type ConversionResult struct {
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Amount       float64 `json:"amount"`
	Result       float64 `json:"result"`
	Rate         float64 `json:"rate"`
}

// ConversionRecord is a persisted history entry. Records are never updated.
type ConversionRecord struct {
	ID           int64     `json:"id"`
	FromCurrency string    `json:"from_currency"`
	ToCurrency   string    `json:"to_currency"`
	Amount       float64   `json:"amount"`
	Result       float64   `json:"result"`
	Rate         float64   `json:"rate"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewConversionRecord(res ConversionResult, at time.Time) ConversionRecord {
	return ConversionRecord{
		FromCurrency: res.FromCurrency,
		ToCurrency:   res.ToCurrency,
		Amount:       res.Amount,
		Result:       res.Result,
		Rate:         res.Rate,
		Timestamp:    at,
	}
}
