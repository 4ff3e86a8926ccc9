package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
)

const resultSuccess = "success"

// Client talks to an exchangerate-api.com v6 compatible endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// LatestResponse is the body of GET {endpoint}/latest/{base}.
type LatestResponse struct {
	Result             string             `json:"result"`
	ErrorType          string             `json:"error-type,omitempty"`
	BaseCode           string             `json:"base_code"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	ConversionRates    map[string]float64 `json:"conversion_rates"`
}

// NewClient builds a client for baseURL (e.g. https://v6.exchangerate-api.com/v6).
// A non-empty apiKey is appended as the next path segment, giving {baseURL}/{apiKey}/latest/{base}.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	endpoint := strings.TrimRight(baseURL, "/")
	if apiKey != "" {
		endpoint += "/" + url.PathEscape(apiKey)
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchLatest returns the current rates for base. Every failure wraps model.ErrFetchFailure.
func (c *Client) FetchLatest(ctx context.Context, base string) (map[string]float64, error) {
	reqURL := fmt.Sprintf("%s/latest/%s", c.endpoint, url.PathEscape(base))

	c.logger.Debug("Requesting latest rates",
		zap.String("url", c.redact(reqURL)),
		zap.String("base_currency", base))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		c.logger.Error("Failed to create request", zap.Error(err))
		return nil, fmt.Errorf("%w: failed to create request: %w", model.ErrFetchFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to make request", zap.Error(err), zap.String("base_currency", base))
		return nil, fmt.Errorf("%w: failed to make request: %w", model.ErrFetchFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Unexpected status code",
			zap.Int("status_code", resp.StatusCode),
			zap.String("base_currency", base))
		return nil, fmt.Errorf("%w: unexpected status code: %d", model.ErrFetchFailure, resp.StatusCode)
	}

	var response LatestResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		c.logger.Error("Failed to decode response", zap.Error(err))
		return nil, fmt.Errorf("%w: failed to decode response: %w", model.ErrFetchFailure, err)
	}

	if response.Result != resultSuccess {
		c.logger.Error("Rate source reported failure",
			zap.String("result", response.Result),
			zap.String("error_type", response.ErrorType),
			zap.String("base_currency", base))
		reason := response.ErrorType
		if reason == "" {
			reason = "result=" + response.Result
		}
		return nil, fmt.Errorf("%w: rate source error: %s", model.ErrFetchFailure, reason)
	}

	if len(response.ConversionRates) == 0 {
		c.logger.Error("Empty conversion rates", zap.String("base_currency", base))
		return nil, fmt.Errorf("%w: empty conversion rates", model.ErrFetchFailure)
	}

	c.logger.Debug("Successfully received rates",
		zap.String("base_currency", base),
		zap.Int("rates", len(response.ConversionRates)))

	return response.ConversionRates, nil
}

func (c *Client) redact(u string) string {
	if c.apiKey == "" {
		return u
	}
	return strings.ReplaceAll(u, url.PathEscape(c.apiKey), "***")
}
