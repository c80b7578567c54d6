// Package rest implements the narrow REST collaborator the streaming client
// needs: the user-data listen-key lifecycle. A listen key identifies a
// private user-data stream and is obtained, refreshed and released through
// three endpoints that authenticate with the API key header alone.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/veiloq/futures-stream/pkg/logging"
	"github.com/veiloq/futures-stream/pkg/ratelimit"
)

// DefaultBaseURL is the production REST endpoint for the USDⓈ-M futures
// API.
const DefaultBaseURL = "https://fapi.binance.com"

const listenKeyPath = "/fapi/v1/listenKey"

// ListenKeyProvider is the interface consumed by callers that drive a
// user-data subscription.
type ListenKeyProvider interface {
	// Start opens a user data stream and returns its listen key.
	Start(ctx context.Context) (string, error)

	// KeepAlive extends the stream's validity; the exchange expires keys
	// that are not refreshed within 60 minutes.
	KeepAlive(ctx context.Context) error

	// Close invalidates the stream's listen key.
	Close(ctx context.Context) error
}

// ClientConfig holds configuration for the listen-key client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	RateLimit  ratelimit.Rate
	MaxRetries uint
	RetryDelay time.Duration

	Logger logging.Logger
}

// DefaultConfig returns a configuration with production defaults; only the
// API key has to be filled in.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:    DefaultBaseURL,
		Timeout:    15 * time.Second,
		RateLimit:  ratelimit.PerSecond(5),
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logging.NewLogger(),
	}
}

// ListenKeyClient implements ListenKeyProvider against the futures REST API.
type ListenKeyClient struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    ratelimit.RateLimiter
	logger     logging.Logger
}

// NewListenKeyClient creates a listen-key client. A nil config means
// DefaultConfig, which still needs an API key to be useful.
func NewListenKeyClient(config *ClientConfig) *ListenKeyClient {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Logger == nil {
		config.Logger = logging.NewLogger()
	}
	if config.RateLimit.Limit <= 0 {
		config.RateLimit = ratelimit.PerSecond(5)
	}

	return &ListenKeyClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: ratelimit.NewTokenBucketLimiter(config.RateLimit),
		logger:  config.Logger,
	}
}

// Start implements ListenKeyProvider.
func (c *ListenKeyClient) Start(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodPost)
	if err != nil {
		return "", err
	}

	var resp struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding listen key response: %w", err)
	}
	if resp.ListenKey == "" {
		return "", fmt.Errorf("listen key response missing key: %s", body)
	}
	return resp.ListenKey, nil
}

// KeepAlive implements ListenKeyProvider.
func (c *ListenKeyClient) KeepAlive(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPut)
	return err
}

// Close implements ListenKeyProvider.
func (c *ListenKeyClient) Close(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete)
	return err
}

// do executes one listen-key request with rate limiting and retries on
// transient failures.
func (c *ListenKeyClient) do(ctx context.Context, method string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := c.config.BaseURL + listenKeyPath
	var body []byte

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, method, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("X-MBX-APIKEY", c.config.APIKey)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("http request error: %w", err)
			}
			defer resp.Body.Close()

			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response body: %w", err)
			}

			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("retryable status code %d: %s", resp.StatusCode, body)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("status code %d: %s", resp.StatusCode, body))
			}
			return nil
		},
		retry.Attempts(c.config.MaxRetries),
		retry.Delay(c.config.RetryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying listen key request",
				logging.String("method", method),
				logging.Int("attempt", int(n)+1),
				logging.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}
