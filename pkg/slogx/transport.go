package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/promogate/pkg/idx"
)

// Transport logs every outbound request and makes sure it carries a request
// ID. The Authorization header is never logged.
type Transport struct {
	Base   http.RoundTripper
	Logger *slog.Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Logger: logger}
}

func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	// RoundTrippers must not mutate the caller's request.
	if r.Header.Get(idx.HeaderRequestID) == "" {
		r = r.Clone(r.Context())
	}
	reqID := idx.FromHeader(r.Header)

	logger := FromContext(r.Context(), t.Logger).With(
		"req_id", reqID.String(),
		"method", r.Method,
		"host", r.URL.Host,
		"path", r.URL.Path,
	)

	resp, err := t.Base.RoundTrip(r)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_client_error", "duration_ms", duration, "error", err)
		return nil, err
	}

	logger.Debug("http_client_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
