package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aussiebroadwan/promogate/internal/gateway/domain"
	"github.com/aussiebroadwan/promogate/internal/gateway/store"
	"github.com/aussiebroadwan/promogate/pkg/authsdk"
	"github.com/aussiebroadwan/promogate/pkg/httpx"
	"github.com/aussiebroadwan/promogate/pkg/slogx"
)

// DefaultRefreshTimeout bounds one refresh flight.
const DefaultRefreshTimeout = 10 * time.Second

const refreshFlightKey = "refresh"

var (
	errNoRefreshToken    = errors.New("no refresh token stored")
	errIncompleteRefresh = errors.New("refresh response is missing the access or id token")
)

// TokenRefresher is the identity provider call the coordinator depends on.
type TokenRefresher interface {
	RefreshGrant(ctx context.Context, refreshToken string) (*authsdk.TokenResponse, error)
}

// Doer sends replayed requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RefreshCoordinator turns a 401 into at most one refresh, however many
// requests fail at once, and replays each failed request with the new ID
// token.
type RefreshCoordinator struct {
	Store    store.CredentialStore
	Provider TokenRefresher
	HTTP     Doer
	Messages domain.Messages
	Logger   *slog.Logger

	// Timeout bounds the shared refresh flight. It is independent of any
	// caller's deadline.
	Timeout time.Duration

	// OnSessionEnded runs once per failed flight, after credentials were
	// cleared.
	OnSessionEnded func(ctx context.Context)

	group singleflight.Group

	// joined counts callers currently attached to a flight.
	joined atomic.Int64
}

// HandleUnauthorized resolves a request that came back 401. The returned
// response belongs to the replayed request; the caller classifies it.
func (c *RefreshCoordinator) HandleUnauthorized(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.checkReplayable(req); err != nil {
		return nil, err
	}

	l := slogx.FromContext(ctx, c.Logger)

	// A different stored token means a refresh already landed after this
	// request was sent.
	sent := httpx.BearerToken(req.Header.Get("Authorization"))
	if bundle := c.Store.Load(ctx); bundle != nil && bundle.IDToken != "" && bundle.IDToken != sent {
		l.DebugContext(ctx, "refresh_skipped_token_rotated",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
		)
		return c.replay(ctx, req, bundle.IDToken)
	}

	idToken, err := c.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	return c.replay(ctx, req, idToken)
}

// Refresh returns a fresh ID token, joining the refresh already in flight if
// there is one. If ctx ends first the caller stops waiting with a Timeout
// error; the flight carries on for everyone else.
func (c *RefreshCoordinator) Refresh(ctx context.Context) (string, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(refreshFlightKey, func() (any, error) {
		return c.runFlight(flightCtx)
	})

	c.joined.Add(1)
	defer c.joined.Add(-1)

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", c.messages().Error(domain.KindTimeout, 0, context.Cause(ctx))
	}
}

// runFlight performs the refresh shared by every joined caller. Failure of
// any kind, including a panic, ends the session exactly once.
func (c *RefreshCoordinator) runFlight(parent context.Context) (idToken string, err error) {
	ctx, cancel := context.WithTimeout(parent, c.timeout())
	defer cancel()

	l := slogx.FromContext(ctx, c.Logger)
	start := time.Now()

	l.InfoContext(ctx, "refresh_started")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}

		if err == nil {
			l.InfoContext(ctx, "refresh_succeeded",
				slog.Int64("waiters", c.joined.Load()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
			return
		}

		l.WarnContext(ctx, "refresh_failed",
			slog.Int64("waiters", c.joined.Load()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("error", err.Error()),
		)

		c.endSession(parent)
		idToken = ""
		err = c.messages().Error(domain.KindUnauthorized, http.StatusUnauthorized, err)
	}()

	bundle := c.Store.Load(ctx)
	if bundle == nil || bundle.RefreshToken == "" {
		return "", errNoRefreshToken
	}

	resp, err := c.Provider.RefreshGrant(ctx, bundle.RefreshToken)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.AccessToken == "" || resp.IDToken == "" {
		return "", errIncompleteRefresh
	}

	next := bundle.Rotate(resp.AccessToken, resp.IDToken, resp.RefreshToken)
	if err := c.Store.Save(ctx, next); err != nil {
		return "", err
	}

	return next.IDToken, nil
}

func (c *RefreshCoordinator) endSession(ctx context.Context) {
	l := slogx.FromContext(ctx, c.Logger)

	if err := c.Store.Clear(ctx); err != nil {
		l.ErrorContext(ctx, "credentials_clear_failed", slog.String("error", err.Error()))
	}

	l.InfoContext(ctx, "session_ended", slog.String("reason", "refresh_failed"))

	if c.OnSessionEnded != nil {
		c.OnSessionEnded(ctx)
	}
}

// replay resends req with idToken. Nothing else about the request changes.
func (c *RefreshCoordinator) replay(ctx context.Context, req *http.Request, idToken string) (*http.Response, error) {
	clone := req.Clone(ctx)

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, c.messages().Error(domain.KindInvalidRequest, 0, fmt.Errorf("failed to rewind request body: %w", err))
		}
		clone.Body = body
	}

	clone.Header.Set("Authorization", "Bearer "+idToken)

	resp, err := c.HTTP.Do(clone)
	if err != nil {
		return nil, fmt.Errorf("failed to replay request: %w", err)
	}

	return resp, nil
}

func (c *RefreshCoordinator) checkReplayable(req *http.Request) error {
	var cause error
	switch {
	case req == nil:
		cause = errors.New("request is nil")
	case req.URL == nil:
		cause = errors.New("request has no URL")
	case req.Header == nil:
		cause = errors.New("request has no header")
	case req.Body != nil && req.Body != http.NoBody && req.GetBody == nil:
		cause = errors.New("request body cannot be replayed")
	default:
		return nil
	}
	return c.messages().Error(domain.KindInvalidRequest, 0, cause)
}

func (c *RefreshCoordinator) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultRefreshTimeout
}

func (c *RefreshCoordinator) messages() domain.Messages {
	if c.Messages != nil {
		return c.Messages
	}
	return domain.EnglishMessages
}
