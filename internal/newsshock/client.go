// Package newsshock looks up active high-impact news events for a
// symbol from an external feed. The feed is best-effort: the client
// rate-limits itself, trips a circuit breaker on repeated failures, and
// serves a short-lived cache so the scoring path never stalls on it.
package newsshock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/edgeforge/signalrun/internal/domain"
)

// Config holds the feed endpoint and client guardrails.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// RequestsPerSecond caps outbound lookups; bursts of Burst are allowed.
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns conservative feed-client guardrails.
func DefaultConfig() *Config {
	return &Config{
		Timeout:           5 * time.Second,
		RequestsPerSecond: 2,
		Burst:             5,
		CacheTTL:          30 * time.Second,
	}
}

type shockResponse struct {
	Active   bool   `json:"active"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type cacheEntry struct {
	shock   *domain.NewsShock
	expires time.Time
}

// Client is a guarded feed client. It satisfies the validator's
// ShockProvider contract.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	ttl     time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
	now   func() time.Time
}

// NewClient creates a news-shock client. config may be nil for defaults;
// an empty BaseURL yields a client that always reports no shock.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	settings := gobreaker.Settings{
		Name:    "newsshock",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("news feed breaker state change")
		},
	}
	return &Client{
		baseURL: config.BaseURL,
		http:    &http.Client{Timeout: config.Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		ttl:     config.CacheTTL,
		cache:   make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// ActiveShock returns the symbol's active shock, or nil when there is
// none. Cached answers are served within the TTL; a rate-limit or
// breaker rejection surfaces as an error for the caller to degrade on.
func (c *Client) ActiveShock(ctx context.Context, symbol string) (*domain.NewsShock, error) {
	if c.baseURL == "" {
		return nil, nil
	}

	c.mu.Lock()
	if entry, ok := c.cache[symbol]; ok && c.now().Before(entry.expires) {
		c.mu.Unlock()
		return entry.shock, nil
	}
	c.mu.Unlock()

	if !c.limiter.Allow() {
		return nil, fmt.Errorf("news feed lookup for %s rate limited", symbol)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, symbol)
	})
	if err != nil {
		return nil, fmt.Errorf("news feed lookup for %s: %w", symbol, err)
	}
	shock := result.(*domain.NewsShock)

	c.mu.Lock()
	c.cache[symbol] = cacheEntry{shock: shock, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return shock, nil
}

func (c *Client) fetch(ctx context.Context, symbol string) (*domain.NewsShock, error) {
	endpoint := fmt.Sprintf("%s/v1/shocks?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return (*domain.NewsShock)(nil), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body shockResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode shock response: %w", err)
	}
	if !body.Active {
		return (*domain.NewsShock)(nil), nil
	}
	return &domain.NewsShock{Severity: body.Severity, Message: body.Message}, nil
}
