package schwab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jpillora/backoff"

	"github.com/elkingarcia11/market-data-api/internal/ports"
)

const (
	defaultBaseURL        = "https://api.schwabapi.com/marketdata/v1"
	defaultTimeout        = 30 * time.Second
	defaultRateLimitDelay = 1 * time.Second
	defaultRetryMin       = 500 * time.Millisecond
	defaultRetryMax       = 8 * time.Second
)

// validPeriods are the day buckets the pricehistory endpoint bills by.
var validPeriods = map[int]bool{10: true, 5: true, 4: true, 3: true, 2: true, 1: true}

// Client implements ports.MarketDataClient against the Schwab-style
// pricehistory endpoint. It owns transport mechanics: bearer auth with one
// forced token refresh on 401, a single bounded retry for retriable
// failures, and a mandatory pacing delay after every request.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	tokens         ports.TokenProvider
	logger         ports.Logger
	rateLimitDelay time.Duration
	retryMin       time.Duration
	retryMax       time.Duration
}

// Config holds configuration specific to the Schwab client adapter.
type Config struct {
	BaseURL        string
	Tokens         ports.TokenProvider
	Logger         ports.Logger
	Timeout        time.Duration // per-request HTTP timeout
	RateLimitDelay time.Duration // pause after every request, success or not
	RetryMin       time.Duration // backoff floor for the single retry
	RetryMax       time.Duration // backoff ceiling
	HTTPClient     *http.Client  // optional override, mainly for tests
}

// New creates a new Schwab market data client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Schwab client")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token provider is required for Schwab client")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	delay := cfg.RateLimitDelay
	if delay < 0 {
		delay = defaultRateLimitDelay
	}
	retryMin := cfg.RetryMin
	if retryMin <= 0 {
		retryMin = defaultRetryMin
	}
	retryMax := cfg.RetryMax
	if retryMax <= 0 {
		retryMax = defaultRetryMax
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	cfg.Logger.Info(context.Background(), "Schwab client configured", map[string]interface{}{
		"baseURL":        baseURL,
		"rateLimitDelay": delay.String(),
	})

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		tokens:         cfg.Tokens,
		logger:         cfg.Logger,
		rateLimitDelay: delay,
		retryMin:       retryMin,
		retryMax:       retryMax,
	}, nil
}

// priceHistoryResponse is the wire shape of a pricehistory response.
type priceHistoryResponse struct {
	Symbol            string            `json:"symbol"`
	Candles           []ports.RawCandle `json:"candles"`
	Empty             bool              `json:"empty"`
	PreviousClose     float64           `json:"previousClose"`
	PreviousCloseDate int64             `json:"previousCloseDate"`
}

// statusError carries a non-2xx response through error classification.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.code, e.body)
}

// PriceHistory fetches one window of candles.
//
// Attempt policy, per request: a 401 triggers one forced token refresh and
// an immediate retry; a retriable failure (network error, timeout, 429, or
// 5xx) gets exactly one retry after a backoff delay (extended for 429);
// any other 4xx aborts immediately with the request parameters in the
// error. The pacing delay runs after every attempt regardless of outcome.
func (c *Client) PriceHistory(ctx context.Context, req ports.PriceHistoryRequest) ([]ports.RawCandle, error) {
	op := "PriceHistory"
	if req.Symbol == "" {
		return nil, fmt.Errorf("%s failed: %w: symbol is required", op, ports.ErrBadRequest)
	}
	if !validPeriods[req.PeriodDays] {
		return nil, fmt.Errorf("%s failed: %w: period %d is not an API-legal bucket", op, ports.ErrBadRequest, req.PeriodDays)
	}

	boff := &backoff.Backoff{Min: c.retryMin, Max: c.retryMax, Factor: 2, Jitter: true}
	refreshed := false
	retried := false

	for {
		candles, err := c.fetchOnce(ctx, req)
		c.pace(ctx)
		if err == nil {
			c.logger.Debug(ctx, op+" succeeded", map[string]interface{}{
				"symbol":  req.Symbol,
				"candles": len(candles),
			})
			return candles, nil
		}

		var sErr *statusError
		if errors.As(err, &sErr) {
			switch {
			case sErr.code == http.StatusUnauthorized:
				if refreshed {
					return nil, c.fail(ctx, op, req, ports.ErrAuth, err)
				}
				refreshed = true
				c.logger.Warn(ctx, op+": token rejected, refreshing once", map[string]interface{}{"symbol": req.Symbol})
				if _, rErr := c.tokens.Refresh(ctx); rErr != nil {
					return nil, c.fail(ctx, op, req, ports.ErrAuth, fmt.Errorf("token refresh failed: %w", rErr))
				}
				continue
			case sErr.code == http.StatusTooManyRequests:
				if retried {
					return nil, c.fail(ctx, op, req, ports.ErrRateLimited, err)
				}
				retried = true
				// Extended backoff: skip a step so the quota window can drain.
				boff.Duration()
				if wErr := c.wait(ctx, boff.Duration()); wErr != nil {
					return nil, c.fail(ctx, op, req, ports.ErrContextCanceled, wErr)
				}
				continue
			case sErr.code >= 500:
				if retried {
					return nil, c.fail(ctx, op, req, ports.ErrTransport, err)
				}
				retried = true
				if wErr := c.wait(ctx, boff.Duration()); wErr != nil {
					return nil, c.fail(ctx, op, req, ports.ErrContextCanceled, wErr)
				}
				continue
			default:
				// 4xx other than 401/429 will not get better on retry.
				return nil, c.fail(ctx, op, req, ports.ErrBadRequest, err)
			}
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, c.fail(ctx, op, req, ports.ErrContextCanceled, err)
		}

		// Network-level failure.
		if retried {
			return nil, c.fail(ctx, op, req, ports.ErrTransport, err)
		}
		retried = true
		if wErr := c.wait(ctx, boff.Duration()); wErr != nil {
			return nil, c.fail(ctx, op, req, ports.ErrContextCanceled, wErr)
		}
	}
}

// fetchOnce issues a single HTTP request and decodes the response.
func (c *Client) fetchOnce(ctx context.Context, req ports.PriceHistoryRequest) ([]ports.RawCandle, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &statusError{code: http.StatusUnauthorized, body: fmt.Sprintf("no access token: %v", err)}
	}

	q := url.Values{}
	q.Set("symbol", req.Symbol)
	q.Set("periodType", "day")
	q.Set("period", strconv.Itoa(req.PeriodDays))
	q.Set("frequencyType", "minute")
	q.Set("frequency", strconv.Itoa(req.FrequencyMinutes))
	q.Set("startDate", strconv.FormatInt(req.Start.UnixMilli(), 10))
	q.Set("endDate", strconv.FormatInt(req.End.UnixMilli(), 10))
	q.Set("needExtendedHoursData", "false")
	q.Set("needPreviousClose", "false")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pricehistory?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{code: resp.StatusCode, body: string(body)}
	}

	var decoded priceHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding pricehistory response: %w", err)
	}
	if decoded.Empty || len(decoded.Candles) == 0 {
		c.logger.Debug(ctx, "No candle data in API response for this window", map[string]interface{}{
			"symbol": req.Symbol,
		})
		return nil, nil
	}
	return decoded.Candles, nil
}

// fail wraps and logs a terminal request failure in a uniform shape.
func (c *Client) fail(ctx context.Context, op string, req ports.PriceHistoryRequest, mapped, err error) error {
	finalErr := fmt.Errorf("%s failed: %w: %w", op, mapped, err)
	c.logger.Error(ctx, err, op+" failed", map[string]interface{}{
		"symbol":    req.Symbol,
		"period":    req.PeriodDays,
		"frequency": req.FrequencyMinutes,
		"startDate": req.Start.Format("2006-01-02"),
		"endDate":   req.End.Format("2006-01-02"),
	})
	return finalErr
}

// pace enforces the mandatory delay between consecutive API requests.
func (c *Client) pace(ctx context.Context) {
	if c.rateLimitDelay <= 0 {
		return
	}
	_ = c.wait(ctx, c.rateLimitDelay)
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
