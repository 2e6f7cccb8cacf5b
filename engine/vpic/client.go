package vpic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/WessleyAI/findyourcar/engine/domain"
	"github.com/WessleyAI/findyourcar/pkg/fn"
	"github.com/WessleyAI/findyourcar/pkg/resilience"
)

// errRetryable marks failures worth another attempt (429, 5xx, transport).
var errRetryable = errors.New("retryable")

// Client fetches model lists from vPIC.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// NewClient creates a Client. Zero fields in cfg fall back to DefaultConfig.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = def.BreakerCooldown
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = def.HalfOpenMax
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		breaker: resilience.NewBreaker(resilience.BreakerOpts{
			FailThreshold: cfg.BreakerThreshold,
			Timeout:       cfg.BreakerCooldown,
			HalfOpenMax:   cfg.HalfOpenMax,
			OnStateChange: func(from, to resilience.State) {
				logger.Warn("vpic circuit breaker", "from", from.String(), "to", to.String())
			},
		}),
	}
}

// ModelsForMake returns every model vPIC lists for makeName, in provider order.
// A make with no models yields an empty slice, not an error.
func (c *Client) ModelsForMake(ctx context.Context, makeName string) fn.Result[[]Model] {
	url := fmt.Sprintf("%s/GetModelsForMake/%s?format=json", c.cfg.BaseURL, neturl.PathEscape(makeName))

	result := resilience.CallResult(c.breaker, ctx, func(ctx context.Context) fn.Result[[]Model] {
		return fn.Retry(ctx, fn.RetryOpts{
			MaxAttempts: c.cfg.RetryAttempts,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Jitter:      true,
			Retryable:   func(err error) bool { return errors.Is(err, errRetryable) },
		}, func(ctx context.Context) fn.Result[[]Model] {
			if err := c.limiter.Wait(ctx); err != nil {
				return fn.Err[[]Model](err)
			}
			return c.doGet(ctx, url)
		})
	})

	if _, err := result.Unwrap(); err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			err = fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
		}
		return fn.Err[[]Model](fmt.Errorf("vpic %s: %w", makeName, err))
	}
	return result
}

func (c *Client) doGet(ctx context.Context, url string) fn.Result[[]Model] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fn.Err[[]Model](err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fn.Err[[]Model](ctx.Err())
		}
		return fn.Err[[]Model](fmt.Errorf("%w: %w", errRetryable, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fn.Err[[]Model](fmt.Errorf("%w: http %d from %s", errRetryable, resp.StatusCode, url))
	}
	if resp.StatusCode != http.StatusOK {
		return fn.Err[[]Model](fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fn.Err[[]Model](fmt.Errorf("read body: %w", err))
	}

	var mr modelsResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return fn.Err[[]Model](fmt.Errorf("decode: %w", err))
	}
	if mr.Results == nil {
		return fn.Ok([]Model{})
	}
	return fn.Ok(mr.Results)
}
