package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/config"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/handler/rest"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/repository/sqlstore"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/pkg/telemetry"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) SaveSnapshot(ctx context.Context, snapshot model.RateSnapshot) (int64, error) {
	args := m.Called(ctx, snapshot)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) GetLatestSnapshot(ctx context.Context, base string, notBefore time.Time) (*model.RateSnapshot, error) {
	args := m.Called(ctx, base, notBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RateSnapshot), args.Error(1)
}

func (m *MockStore) DeleteSnapshotsBefore(ctx context.Context, threshold time.Time) (int64, error) {
	args := m.Called(ctx, threshold)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) SaveConversion(ctx context.Context, record model.ConversionRecord) (int64, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ListConversions(ctx context.Context) ([]model.ConversionRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ConversionRecord), args.Error(1)
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStore) Close() error {
	return m.Called().Error(0)
}

func (m *MockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func testConfig() *config.Config {
	return &config.Config{
		HTTPAddr:            "127.0.0.1:0",
		RatesAPIURL:         "http://127.0.0.1:1",
		RatesAPITimeout:     time.Second,
		DefaultBaseCurrency: "USD",
		DBDriver:            "sqlite",
		SQLitePath:          "unused.db",
		ServiceName:         "currency-converter-test",
		LogLevel:            "info",
	}
}

func stubStore(t *testing.T, store Store, err error) {
	t.Helper()
	original := newStoreFunc
	t.Cleanup(func() { newStoreFunc = original })
	newStoreFunc = func(ctx context.Context, opts sqlstore.Options, logger *zap.Logger) (Store, error) {
		return store, err
	}
}

func TestNewApp(t *testing.T) {
	logger := zap.NewNop()
	cfg := testConfig()

	t.Run("success", func(t *testing.T) {
		mockStore := new(MockStore)
		stubStore(t, mockStore, nil)

		app, err := NewApp(context.Background(), cfg, logger)

		assert.NoError(t, err)
		assert.NotNil(t, app)
		assert.Equal(t, cfg, app.config)
		assert.Equal(t, mockStore, app.store)
	})

	t.Run("passes store options", func(t *testing.T) {
		original := newStoreFunc
		t.Cleanup(func() { newStoreFunc = original })

		var got sqlstore.Options
		newStoreFunc = func(ctx context.Context, opts sqlstore.Options, logger *zap.Logger) (Store, error) {
			got = opts
			return new(MockStore), nil
		}

		_, err := NewApp(context.Background(), cfg, logger)

		require.NoError(t, err)
		assert.Equal(t, sqlstore.Dialect("sqlite"), got.Dialect)
		assert.True(t, strings.HasPrefix(got.DSN, "unused.db"))
	})

	t.Run("repository creation error", func(t *testing.T) {
		stubStore(t, nil, errors.New("repository creation error"))

		app, err := NewApp(context.Background(), cfg, logger)

		assert.Error(t, err)
		assert.Nil(t, app)
		assert.Contains(t, err.Error(), "failed to create repository")
	})
}

func TestRun_MigrationError(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("Migrate", mock.Anything).Return(errors.New("bad migration"))
	mockStore.On("Close").Return(nil)
	stubStore(t, mockStore, nil)

	app, err := NewApp(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)

	err = app.Run(context.Background())

	assert.ErrorContains(t, err, "failed to run migrations")
	mockStore.AssertCalled(t, "Close")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("Migrate", mock.Anything).Return(nil)
	mockStore.On("DeleteSnapshotsBefore", mock.Anything, mock.Anything).Return(int64(2), nil)
	mockStore.On("Close").Return(nil)
	stubStore(t, mockStore, nil)

	app, err := NewApp(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	mockStore.AssertExpectations(t)
}

func TestRun_ListenError(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("Migrate", mock.Anything).Return(nil)
	mockStore.On("DeleteSnapshotsBefore", mock.Anything, mock.Anything).Return(int64(0), nil)
	mockStore.On("Close").Return(nil)
	stubStore(t, mockStore, nil)

	cfg := testConfig()
	cfg.HTTPAddr = "256.0.0.1:bad"
	app, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	err = app.Run(context.Background())

	assert.ErrorContains(t, err, "failed to listen")
	mockStore.AssertCalled(t, "Close")
}

// TestHTTPFlow wires the real SQLite store, memory cache and remote client behind the router.
func TestHTTPFlow(t *testing.T) {
	var remoteCalls atomic.Int32
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remoteCalls.Add(1)
		assert.Equal(t, "/test-key/latest/USD", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success","base_code":"USD","conversion_rates":{"EUR":0.92,"GBP":0.79}}`))
	}))
	defer remote.Close()

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, sqlstore.Options{
		Dialect: sqlstore.DialectSQLite,
		DSN:     filepath.Join(t.TempDir(), "app.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate(ctx))

	cfg := testConfig()
	cfg.RatesAPIURL = remote.URL
	cfg.RatesAPIKey = "test-key"
	cfg.MemoryCacheSize = 16 << 20

	app := &App{config: cfg, logger: zap.NewNop(), clock: clockwork.NewRealClock(), store: store}
	handler, _ := app.buildHandler()
	api := httptest.NewServer(rest.NewRouter(handler, rest.RouterConfig{ServiceName: cfg.ServiceName}))
	defer api.Close()

	resp, err := http.Post(api.URL+"/api/v1/conversions", "application/json",
		strings.NewReader(`{"from":"usd","to":"eur","amount":"100"}`))
	require.NoError(t, err)
	var converted struct {
		Result          float64 `json:"result"`
		Rate            float64 `json:"rate"`
		FormattedResult string  `json:"formatted_result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&converted))
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.InDelta(t, 92.0, converted.Result, 1e-9)
	assert.Equal(t, 0.92, converted.Rate)
	assert.Equal(t, "92.00", converted.FormattedResult)

	resp, err = http.Get(api.URL + "/api/v1/currencies")
	require.NoError(t, err)
	var currencies struct {
		Currencies []string `json:"currencies"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&currencies))
	resp.Body.Close()
	assert.Equal(t, []string{"EUR", "GBP"}, currencies.Currencies)
	assert.Equal(t, int32(1), remoteCalls.Load())

	resp, err = http.Get(api.URL + "/api/v1/conversions")
	require.NoError(t, err)
	var history struct {
		Conversions []struct {
			FromCurrency string `json:"from_currency"`
			ToCurrency   string `json:"to_currency"`
		} `json:"conversions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	resp.Body.Close()
	require.Len(t, history.Conversions, 1)
	assert.Equal(t, "USD", history.Conversions[0].FromCurrency)
	assert.Equal(t, "EUR", history.Conversions[0].ToCurrency)

	resp, err = http.Get(api.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Greater(t, testutil.ToFloat64(telemetry.RateCacheLookupCounter.WithLabelValues("hit")), 0.0)
}
