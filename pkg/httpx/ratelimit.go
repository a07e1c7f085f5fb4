package httpx

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines the rate limiting parameters.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// APILimit is the default client-side budget for calls to the resource API.
// Override with: RATELIMIT_API_REQUESTS, RATELIMIT_API_WINDOW_SEC, RATELIMIT_API_BURST
var APILimit = RateLimitConfig{
	RequestsPerWindow: 600,
	Window:            time.Minute,
	Burst:             50,
}

// ParseRateLimitFromEnv reads RATELIMIT_{prefix}_{REQUESTS,WINDOW_SEC,BURST},
// keeping defaultConfig for anything unset or invalid.
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_BURST"); val != "" {
		if burst, err := strconv.Atoi(val); err == nil && burst > 0 {
			config.Burst = burst
		}
	}

	return config
}

// Limit converts the window budget into a per-second rate.
func (c RateLimitConfig) Limit() rate.Limit {
	if c.RequestsPerWindow <= 0 || c.Window <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(c.RequestsPerWindow) / c.Window.Seconds())
}

// LimitTransport paces outbound requests per target host. A request waits for
// a token and gives up when its context is done, so a request timeout also
// bounds the time spent queued here.
type LimitTransport struct {
	Base http.RoundTripper

	config   RateLimitConfig
	limiters sync.Map // map[string]*rate.Limiter
}

// NewLimitTransport wraps base (http.DefaultTransport when nil).
func NewLimitTransport(base http.RoundTripper, config RateLimitConfig) *LimitTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &LimitTransport{Base: base, config: config}
}

func (t *LimitTransport) limiter(host string) *rate.Limiter {
	if l, ok := t.limiters.Load(host); ok {
		return l.(*rate.Limiter)
	}

	l := rate.NewLimiter(t.config.Limit(), t.config.Burst)
	actual, _ := t.limiters.LoadOrStore(host, l)
	return actual.(*rate.Limiter)
}

func (t *LimitTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if err := t.limiter(r.URL.Host).Wait(r.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.Base.RoundTrip(r)
}
