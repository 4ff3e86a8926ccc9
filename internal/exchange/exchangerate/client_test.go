package exchangerate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
)

func setupTestServerAndClient(t *testing.T, apiKey string, handler func(w http.ResponseWriter, r *http.Request)) *Client {
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	return NewClient(server.URL, apiKey, time.Second, zap.NewNop())
}

func writeResponse(t *testing.T, w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write([]byte(body))
	assert.NoError(t, err, "Failed to write response")
}

func TestFetchLatest_Success(t *testing.T) {
	client := setupTestServerAndClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/latest/USD", r.URL.Path)

		writeResponse(t, w, http.StatusOK, `{
			"result": "success",
			"base_code": "USD",
			"time_last_update_unix": 1715299201,
			"conversion_rates": {"USD": 1, "EUR": 0.92, "GBP": 0.79}
		}`)
	})

	rates, err := client.FetchLatest(context.Background(), "USD")

	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"USD": 1, "EUR": 0.92, "GBP": 0.79}, rates)
}

func TestFetchLatest_APIKeyInPath(t *testing.T) {
	client := setupTestServerAndClient(t, "secret-key", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/secret-key/latest/EUR", r.URL.Path)
		writeResponse(t, w, http.StatusOK, `{"result":"success","conversion_rates":{"USD":1.08}}`)
	})

	rates, err := client.FetchLatest(context.Background(), "EUR")

	require.NoError(t, err)
	assert.Equal(t, 1.08, rates["USD"])
	assert.Equal(t, "http://host/***/latest/EUR", client.redact("http://host/secret-key/latest/EUR"))
}

func TestFetchLatest_ErrorResult(t *testing.T) {
	client := setupTestServerAndClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeResponse(t, w, http.StatusOK, `{"result":"error","error-type":"unsupported-code"}`)
	})

	rates, err := client.FetchLatest(context.Background(), "XXX")

	assert.Nil(t, rates)
	assert.ErrorIs(t, err, model.ErrFetchFailure)
	assert.Contains(t, err.Error(), "unsupported-code")
}

func TestFetchLatest_InvalidResponse(t *testing.T) {
	client := setupTestServerAndClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeResponse(t, w, http.StatusOK, `{ invalid json }`)
	})

	_, err := client.FetchLatest(context.Background(), "USD")

	assert.ErrorIs(t, err, model.ErrFetchFailure)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestFetchLatest_EmptyRates(t *testing.T) {
	client := setupTestServerAndClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeResponse(t, w, http.StatusOK, `{"result":"success","conversion_rates":{}}`)
	})

	_, err := client.FetchLatest(context.Background(), "USD")

	assert.ErrorIs(t, err, model.ErrFetchFailure)
	assert.Contains(t, err.Error(), "empty conversion rates")
}

func TestFetchLatest_ServerError(t *testing.T) {
	client := setupTestServerAndClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeResponse(t, w, http.StatusInternalServerError, `{"result":"error"}`)
	})

	_, err := client.FetchLatest(context.Background(), "USD")

	assert.ErrorIs(t, err, model.ErrFetchFailure)
	assert.Contains(t, err.Error(), "unexpected status code: 500")
}

func TestFetchLatest_NetworkError(t *testing.T) {
	client := NewClient("http://localhost:1", "", 100*time.Millisecond, zap.NewNop())

	_, err := client.FetchLatest(context.Background(), "USD")

	assert.ErrorIs(t, err, model.ErrFetchFailure)
	assert.Contains(t, err.Error(), "failed to make request")
}

func TestFetchLatest_ContextCanceled(t *testing.T) {
	client := setupTestServerAndClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeResponse(t, w, http.StatusOK, `{"result":"success","conversion_rates":{"EUR":0.92}}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchLatest(ctx, "USD")

	assert.ErrorIs(t, err, model.ErrFetchFailure)
	assert.ErrorIs(t, err, context.Canceled)
}
