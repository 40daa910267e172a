package schwab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elkingarcia11/market-data-api/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// mockTokens counts refreshes and can switch tokens after a refresh.
type mockTokens struct {
	token     string
	refreshed string
	refreshes int32
}

func (m *mockTokens) Token(ctx context.Context) (string, error) {
	if atomic.LoadInt32(&m.refreshes) > 0 && m.refreshed != "" {
		return m.refreshed, nil
	}
	return m.token, nil
}

func (m *mockTokens) Refresh(ctx context.Context) (string, error) {
	atomic.AddInt32(&m.refreshes, 1)
	if m.refreshed != "" {
		return m.refreshed, nil
	}
	return m.token, nil
}

func newTestClient(t *testing.T, serverURL string, tokens ports.TokenProvider) *Client {
	t.Helper()
	if tokens == nil {
		tokens = &mockTokens{token: "test-token"}
	}
	c, err := New(Config{
		BaseURL:        serverURL,
		Tokens:         tokens,
		Logger:         &mockLogger{},
		RateLimitDelay: 0, // keep tests fast
		RetryMin:       time.Millisecond,
		RetryMax:       2 * time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func testRequest() ports.PriceHistoryRequest {
	return ports.PriceHistoryRequest{
		Symbol:           "SPY",
		PeriodDays:       10,
		FrequencyMinutes: 1,
		Start:            time.Date(2025, time.July, 7, 0, 0, 0, 0, time.UTC),
		End:              time.Date(2025, time.July, 16, 0, 0, 0, 0, time.UTC),
	}
}

const candlePayload = `{
	"symbol": "SPY",
	"candles": [
		{"datetime": 1751895000000, "open": 10, "high": 10.5, "low": 9.5, "close": 10.2, "volume": 100},
		{"datetime": 1751895060000, "open": 10.2, "high": 10.8, "low": 10.1, "close": 10.7, "volume": 150}
	],
	"empty": false
}`

func TestNew(t *testing.T) {
	t.Run("requires a token provider", func(t *testing.T) {
		_, err := New(Config{Logger: &mockLogger{}})
		assert.Error(t, err)
	})

	t.Run("requires a logger", func(t *testing.T) {
		_, err := New(Config{Tokens: &mockTokens{token: "x"}})
		assert.Error(t, err)
	})
}

func TestPriceHistory_Success(t *testing.T) {
	var gotQuery map[string]string
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(candlePayload))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	req := testRequest()
	candles, err := c.PriceHistory(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1751895000000), candles[0].Datetime)
	assert.Equal(t, 10.2, candles[0].Close)
	assert.Equal(t, int64(150), candles[1].Volume)

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "SPY", gotQuery["symbol"])
	assert.Equal(t, "day", gotQuery["periodType"])
	assert.Equal(t, "10", gotQuery["period"])
	assert.Equal(t, "minute", gotQuery["frequencyType"])
	assert.Equal(t, "1", gotQuery["frequency"])
	assert.Equal(t, "1751846400000", gotQuery["startDate"])
	assert.Equal(t, "false", gotQuery["needExtendedHoursData"])
}

func TestPriceHistory_EmptyWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol": "SPY", "candles": [], "empty": true}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	candles, err := c.PriceHistory(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestPriceHistory_RefreshesTokenOn401(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(candlePayload))
	}))
	defer server.Close()

	tokens := &mockTokens{token: "stale-token", refreshed: "fresh-token"}
	c := newTestClient(t, server.URL, tokens)

	candles, err := c.PriceHistory(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Len(t, candles, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokens.refreshes), "exactly one forced refresh")
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestPriceHistory_AuthFailureAfterRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	tokens := &mockTokens{token: "bad-token"}
	c := newTestClient(t, server.URL, tokens)

	_, err := c.PriceHistory(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrAuth)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokens.refreshes), "a second 401 aborts instead of refreshing again")
}

func TestPriceHistory_RetriesOn429(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&requests, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(candlePayload))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	candles, err := c.PriceHistory(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Len(t, candles, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestPriceHistory_ServerErrorRetryBudget(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	_, err := c.PriceHistory(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrTransport)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests), "one retry, then abort")
}

func TestPriceHistory_ClientErrorAbortsImmediately(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid symbol"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	_, err := c.PriceHistory(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrBadRequest)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests), "4xx other than 401/429 never retries")
}

func TestPriceHistory_NetworkErrorRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	c := newTestClient(t, server.URL, nil)
	_, err := c.PriceHistory(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrTransport)
}

func TestPriceHistory_ValidatesRequest(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:0", nil)

	req := testRequest()
	req.Symbol = ""
	_, err := c.PriceHistory(context.Background(), req)
	assert.ErrorIs(t, err, ports.ErrBadRequest)

	req = testRequest()
	req.PeriodDays = 7
	_, err = c.PriceHistory(context.Background(), req)
	assert.ErrorIs(t, err, ports.ErrBadRequest, "7 is not a billable period bucket")
}

func TestPriceHistory_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := newTestClient(t, server.URL, nil)
	_, err := c.PriceHistory(ctx, testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrContextCanceled)
}
