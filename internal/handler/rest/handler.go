package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/service"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/pkg/response"
)

const historyTimeLayout = "2006-01-02 15:04"

// Entries older than this show the formatted time instead of a relative one.
const relativeTimeLimit = 30 * 24 * time.Hour

var relativeTimeMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: 1},
	{D: 2 * time.Minute, Format: "1 minute %s", DivBy: 1},
	{D: time.Hour, Format: "%d minutes %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 hour %s", DivBy: 1},
	{D: 24 * time.Hour, Format: "%d hours %s", DivBy: time.Hour},
	{D: 48 * time.Hour, Format: "1 day %s", DivBy: 1},
	{D: relativeTimeLimit, Format: "%d days %s", DivBy: 24 * time.Hour},
}

func relativeTime(t, now time.Time) string {
	if now.Sub(t) >= relativeTimeLimit {
		return t.Format(historyTimeLayout)
	}
	return humanize.CustomRelTime(t, now, "ago", "from now", relativeTimeMagnitudes)
}

// RateServiceInterface is implemented by service.RateService.
type RateServiceInterface interface {
	GetRates(ctx context.Context, base string) (*model.RateSnapshot, error)
	Cleanup(ctx context.Context) (int64, error)
	AvailableCurrencies(ctx context.Context) ([]string, error)
}

type ConversionServiceInterface interface {
	Convert(ctx context.Context, from, to string, amount float64) (*model.ConversionResult, error)
}

type HistoryServiceInterface interface {
	Record(ctx context.Context, result model.ConversionResult) (*model.ConversionRecord, error)
	List(ctx context.Context) ([]model.ConversionRecord, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	logger      *zap.Logger
	rates       RateServiceInterface
	conversions ConversionServiceInterface
	history     HistoryServiceInterface
	store       Pinger
	clock       clockwork.Clock
}

func NewHandler(
	logger *zap.Logger,
	rates RateServiceInterface,
	conversions ConversionServiceInterface,
	history HistoryServiceInterface,
	store Pinger,
	clock clockwork.Clock,
) *Handler {
	return &Handler{
		logger:      logger,
		rates:       rates,
		conversions: conversions,
		history:     history,
		store:       store,
		clock:       clock,
	}
}

// Amount accepts either a JSON number or a numeric string.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(raw)
	return nil
}

type ConvertRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount Amount `json:"amount"`
}

type ConversionResponse struct {
	ID              int64     `json:"id"`
	FromCurrency    string    `json:"from_currency"`
	ToCurrency      string    `json:"to_currency"`
	Amount          float64   `json:"amount"`
	Result          float64   `json:"result"`
	Rate            float64   `json:"rate"`
	FormattedResult string    `json:"formatted_result"`
	Timestamp       time.Time `json:"timestamp"`
}

type HistoryItem struct {
	ID            int64     `json:"id"`
	FromCurrency  string    `json:"from_currency"`
	ToCurrency    string    `json:"to_currency"`
	Amount        float64   `json:"amount"`
	Result        float64   `json:"result"`
	Rate          float64   `json:"rate"`
	Timestamp     time.Time `json:"timestamp"`
	FormattedTime string    `json:"formatted_time"`
	RelativeTime  string    `json:"relative_time"`
}

type HistoryResponse struct {
	Conversions []HistoryItem `json:"conversions"`
}

type CurrenciesResponse struct {
	Currencies []string `json:"currencies"`
}

type CleanupResponse struct {
	Deleted int64 `json:"deleted"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	base := chi.URLParam(r, "base")

	snapshot, err := h.rates.GetRates(r.Context(), base)
	if err != nil {
		h.writeError(w, r, err, "Failed to get rates", zap.String("base_currency", base))
		return
	}

	response.WriteJSONSuccess(w, h.logger, http.StatusOK, snapshot)
}

func (h *Handler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.rates.AvailableCurrencies(r.Context())
	if err != nil {
		h.writeError(w, r, err, "Failed to list currencies")
		return
	}

	response.WriteJSONSuccess(w, h.logger, http.StatusOK, CurrenciesResponse{Currencies: currencies})
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid JSON body", zap.Error(err), zap.String("request_id", middleware.GetReqID(r.Context())))
		response.WriteJSONError(w, h.logger, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}

	amount, err := service.ParseAmount(string(req.Amount))
	if err != nil {
		h.writeError(w, r, err, "Invalid amount")
		return
	}

	result, err := h.conversions.Convert(r.Context(), req.From, req.To, amount)
	if err != nil {
		h.writeError(w, r, err, "Failed to convert",
			zap.String("from", req.From),
			zap.String("to", req.To))
		return
	}

	record, err := h.history.Record(r.Context(), *result)
	if err != nil {
		h.writeError(w, r, err, "Failed to record conversion")
		return
	}

	response.WriteJSONSuccess(w, h.logger, http.StatusCreated, ConversionResponse{
		ID:              record.ID,
		FromCurrency:    record.FromCurrency,
		ToCurrency:      record.ToCurrency,
		Amount:          record.Amount,
		Result:          record.Result,
		Rate:            record.Rate,
		FormattedResult: decimal.NewFromFloat(record.Result).StringFixed(2),
		Timestamp:       record.Timestamp,
	})
}

func (h *Handler) ListConversions(w http.ResponseWriter, r *http.Request) {
	records, err := h.history.List(r.Context())
	if err != nil {
		h.writeError(w, r, err, "Failed to list conversions")
		return
	}

	now := h.clock.Now()
	items := make([]HistoryItem, 0, len(records))
	for _, rec := range records {
		items = append(items, HistoryItem{
			ID:            rec.ID,
			FromCurrency:  rec.FromCurrency,
			ToCurrency:    rec.ToCurrency,
			Amount:        rec.Amount,
			Result:        rec.Result,
			Rate:          rec.Rate,
			Timestamp:     rec.Timestamp,
			FormattedTime: rec.Timestamp.Format(historyTimeLayout),
			RelativeTime:  relativeTime(rec.Timestamp, now),
		})
	}

	response.WriteJSONSuccess(w, h.logger, http.StatusOK, HistoryResponse{Conversions: items})
}

func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.rates.Cleanup(r.Context())
	if err != nil {
		h.writeError(w, r, err, "Failed to clean up snapshots")
		return
	}

	response.WriteJSONSuccess(w, h.logger, http.StatusOK, CleanupResponse{Deleted: deleted})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Health check failed", zap.Error(err))
		response.WriteJSONError(w, h.logger, http.StatusServiceUnavailable, "unavailable", "storage is not reachable")
		return
	}

	response.WriteJSONSuccess(w, h.logger, http.StatusOK, HealthResponse{Status: "ok"})
}

// writeError maps error kinds to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, msg string, fields ...zap.Field) {
	fields = append(fields,
		zap.Error(err),
		zap.String("request_id", middleware.GetReqID(r.Context())))

	switch {
	case errors.Is(err, model.ErrValidation):
		h.logger.Info(msg, fields...)
		response.WriteJSONError(w, h.logger, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, model.ErrRateUnavailable):
		h.logger.Info(msg, fields...)
		response.WriteJSONError(w, h.logger, http.StatusUnprocessableEntity, "rate_unavailable", err.Error())
	case errors.Is(err, model.ErrFetchFailure):
		h.logger.Error(msg, fields...)
		response.WriteJSONError(w, h.logger, http.StatusBadGateway, "fetch_failure", "exchange rate source is unavailable")
	default:
		h.logger.Error(msg, fields...)
		response.WriteJSONError(w, h.logger, http.StatusInternalServerError, "internal_error", "an internal error occurred")
	}
}
