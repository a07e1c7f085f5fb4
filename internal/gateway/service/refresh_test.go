package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/promogate/internal/gateway/domain"
	"github.com/aussiebroadwan/promogate/pkg/authsdk"
	"github.com/aussiebroadwan/promogate/pkg/slogx"
)

type coordinatorFixture struct {
	store     *countingStore
	refresher *fakeRefresher
	ends      *sessionEnds
	server    string
	c         *RefreshCoordinator
}

func newCoordinatorFixture(t *testing.T, refresher *fakeRefresher) *coordinatorFixture {
	t.Helper()

	s := newTestStore(t)
	srv := newEchoServer(t)
	ends := &sessionEnds{}

	return &coordinatorFixture{
		store:     s,
		refresher: refresher,
		ends:      ends,
		server:    srv.URL,
		c: &RefreshCoordinator{
			Store:          s,
			Provider:       refresher,
			HTTP:           srv.Client(),
			Logger:         slogx.Discard(),
			Timeout:        5 * time.Second,
			OnSessionEnded: ends.hook,
		},
	}
}

func (f *coordinatorFixture) request(t *testing.T, method, path, bearer string, body io.Reader) *http.Request {
	t.Helper()

	req, err := http.NewRequest(method, f.server+path, body)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req
}

type outcome struct {
	resp *http.Response
	err  error
}

// burst fires one HandleUnauthorized per path and waits until every caller
// has joined the blocked flight before opening the gate.
func (f *coordinatorFixture) burst(t *testing.T, paths []string) []outcome {
	t.Helper()

	results := make([]outcome, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		req := f.request(t, http.MethodGet, path, "i1", nil)
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := f.c.HandleUnauthorized(context.Background(), req)
			results[i] = outcome{resp: resp, err: err}
		}()
	}

	require.Eventually(t, func() bool {
		return f.c.joined.Load() == int64(len(paths))
	}, 2*time.Second, time.Millisecond)
	close(f.refresher.gate)

	wg.Wait()
	return results
}

func TestHandleUnauthorizedRefreshesOnceForConcurrentRequests(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 25} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			t.Parallel()

			f := newCoordinatorFixture(t, &fakeRefresher{
				gate: make(chan struct{}),
				fn:   refreshTo("a2", "i2", ""),
			})
			seedBundle(t, f.store, domain.TokenBundle{AccessToken: "a1", IDToken: "i1", RefreshToken: "r1"})

			paths := make([]string, n)
			for i := range paths {
				paths[i] = "/orders/" + string(rune('a'+i))
			}

			for i, res := range f.burst(t, paths) {
				require.NoError(t, res.err)
				e := decodeEcho(t, res.resp)
				require.Equal(t, paths[i], e.Path)
				require.Equal(t, "Bearer i2", e.Authorization)
			}

			require.Equal(t, int32(1), f.refresher.calls.Load())
			require.Zero(t, f.store.clears.Load())
			require.Zero(t, f.ends.Count())

			stored := f.store.Load(context.Background())
			require.Equal(t, &domain.TokenBundle{AccessToken: "a2", IDToken: "i2", RefreshToken: "r1"}, stored)
		})
	}
}

func TestHandleUnauthorizedTwoRequestsReplayWithT2(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, &fakeRefresher{
		gate: make(chan struct{}),
		fn:   refreshTo("A2", "T2", "R2"),
	})
	seedBundle(t, f.store, domain.TokenBundle{AccessToken: "a1", IDToken: "i1", RefreshToken: "r1"})

	results := f.burst(t, []string{"/a", "/b"})

	require.NoError(t, results[0].err)
	require.NoError(t, results[1].err)

	a := decodeEcho(t, results[0].resp)
	b := decodeEcho(t, results[1].resp)
	require.Equal(t, echoed{Path: "/a", Authorization: "Bearer T2"}, a)
	require.Equal(t, echoed{Path: "/b", Authorization: "Bearer T2"}, b)

	require.Equal(t, int32(1), f.refresher.calls.Load())
	require.Equal(t, "R2", f.store.Load(context.Background()).RefreshToken)
}

func TestHandleUnauthorizedSharedFailureClearsOnce(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, &fakeRefresher{
		gate: make(chan struct{}),
		fn: func(context.Context, string) (*authsdk.TokenResponse, error) {
			return nil, &authsdk.OAuth2Error{StatusCode: http.StatusBadRequest, Code: authsdk.ErrorCodeInvalidGrant}
		},
	})
	seedBundle(t, f.store, domain.TokenBundle{AccessToken: "a1", IDToken: "i1", RefreshToken: "r1"})
	require.NoError(t, f.store.SaveIdentity(context.Background(), domain.Identity{SubjectID: "user-1"}))

	results := f.burst(t, []string{"/a", "/b", "/c", "/d", "/e"})
	for _, res := range results {
		require.Nil(t, res.resp)
		require.ErrorIs(t, res.err, domain.ErrUnauthorized)
		require.Equal(t, domain.EnglishMessages[domain.KindUnauthorized], res.err.(*domain.Error).Message)
	}

	require.Equal(t, int32(1), f.refresher.calls.Load())
	require.Equal(t, int32(1), f.store.clears.Load())
	require.Equal(t, 1, f.ends.Count())
	require.Nil(t, f.store.Load(context.Background()))
	require.Nil(t, f.store.LoadIdentity(context.Background()))
}

func TestHandleUnauthorizedWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, &fakeRefresher{fn: refreshTo("a2", "i2", "")})
	seedBundle(t, f.store, domain.TokenBundle{AccessToken: "a1", IDToken: "i1"})

	resp, err := f.c.HandleUnauthorized(context.Background(), f.request(t, http.MethodGet, "/a", "i1", nil))
	require.Nil(t, resp)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	require.Zero(t, f.refresher.calls.Load())
	require.Equal(t, int32(1), f.store.clears.Load())
	require.Equal(t, 1, f.ends.Count())
	require.Nil(t, f.store.Load(context.Background()))
}

func TestHandleUnauthorizedWithoutStoredBundle(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, &fakeRefresher{fn: refreshTo("a2", "i2", "")})

	_, err := f.c.HandleUnauthorized(context.Background(), f.request(t, http.MethodGet, "/a", "", nil))
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Zero(t, f.refresher.calls.Load())
	require.Equal(t, 1, f.ends.Count())
}

func TestHandleUnauthorizedIncompleteRefreshResponse(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, &fakeRefresher{fn: refreshTo("a2", "", "")})
	seedBundle(t, f.store, domain.TokenBundle{AccessToken: "a1", IDToken: "i1", RefreshToken: "r1"})

	_, err := f.c.HandleUnauthorized(context.Background(), f.request(t, http.MethodGet, "/a", "i1", nil))
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Equal(t, int32(1), f.store.clears.Load())
}

func TestHandleUnauthorizedRecoversFromPanic(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, &fakeRefresher{
		fn: func(context.Context, string) (*authsdk.TokenResponse, error) {
			panic("provider exploded")
		},
	})
	seedBundle(t, f.store, domain.TokenBundle{AccessToken: "a1", IDToken: "i1", RefreshToken: "r1"})

	_, err := f.c.HandleUnauthorized(context.Background(), f.request(t, http.MethodGet, "/a", "i1", nil))
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Equal(t, int32(1), f.store.clears.Load())
	require.Equal(t, 1, f.ends.Count())

	// The flight key was released: the next 401 starts a new flight.
	seedBundle(t, f.store, domain.TokenBundle{AccessToken: "a1", IDToken: "i1", RefreshToken: "r1"})
	f.refresher.fn = refreshTo("a2", "i2", "")

	resp, err := f.c.HandleUnauthorized(context.Background(), f.request(t, http.MethodGet, "/a", "i1", nil))
	require.NoError(t, err)
	require.Equal(t, "Bearer i2", decodeEcho(t, resp).Authorization)
	require.Equal(t, int32(2), f.refresher.calls.Load())
}

func TestHandleUnauthorizedInvalidRequest(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, &fakeRefresher{fn: refreshTo("a2", "i2", "")})
	seedBundle(t, f.store, domain.TokenBundle{AccessToken: "a1", IDToken: "i1", RefreshToken: "r1"})

	unreplayable := f.request(t, http.MethodPost, "/a", "i1", io.NopCloser(strings.NewReader("{}")))
	noHeader := f.request(t, http.MethodGet, "/a", "i1", nil)
	noHeader.Header = nil
	noURL := f.request(t, http.MethodGet, "/a", "i1", nil)
	noURL.URL = nil

	for name, req := range map[string]*http.Request{
		"nil request":   nil,
		"no header":     noHeader,
		"no url":        noURL,
		"one-shot body": unreplayable,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.c.HandleUnauthorized(context.Background(), req)
			require.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}

	require.Zero(t, f.refresher.calls.Load())
	require.Zero(t, f.store.clears.Load())
	require.Equal(t, "i1", f.store.Load(context.Background()).IDToken)
}

func TestHandleUnauthorizedReplaysBody(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, &fakeRefresher{fn: refreshTo("a2", "i2", "")})
	seedBundle(t, f.store, domain.TokenBundle{AccessToken: "a1", IDToken: "i1", RefreshToken: "r1"})

	req := f.request(t, http.MethodPost, "/withdrawal", "i1", strings.NewReader(`{"amount_fen":100}`))
	// The original send consumed the body.
	_, _ = io.ReadAll(req.Body)

	resp, err := f.c.HandleUnauthorized(context.Background(), req)
	require.NoError(t, err)

	e := decodeEcho(t, resp)
	require.Equal(t, `{"amount_fen":100}`, e.Body)
	require.Equal(t, "Bearer i2", e.Authorization)
}

func TestHandleUnauthorizedSkipsRefreshForRotatedToken(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, &fakeRefresher{fn: refreshTo("a3", "i3", "")})
	seedBundle(t, f.store, domain.TokenBundle{AccessToken: "a2", IDToken: "i2", RefreshToken: "r1"})

	resp, err := f.c.HandleUnauthorized(context.Background(), f.request(t, http.MethodGet, "/late", "i1", nil))
	require.NoError(t, err)
	require.Equal(t, "Bearer i2", decodeEcho(t, resp).Authorization)
	require.Zero(t, f.refresher.calls.Load())
}

func TestRefreshCallerTimeoutDoesNotCancelFlight(t *testing.T) {
	t.Parallel()

	flightErr := make(chan error, 1)
	refresher := &fakeRefresher{gate: make(chan struct{})}
	refresher.fn = func(ctx context.Context, _ string) (*authsdk.TokenResponse, error) {
		flightErr <- ctx.Err()
		return refreshTo("a2", "i2", "")(ctx, "")
	}

	f := newCoordinatorFixture(t, refresher)
	seedBundle(t, f.store, domain.TokenBundle{AccessToken: "a1", IDToken: "i1", RefreshToken: "r1"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.c.HandleUnauthorized(ctx, f.request(t, http.MethodGet, "/slow", "i1", nil))
	require.ErrorIs(t, err, domain.ErrTimeout)
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	close(refresher.gate)
	require.NoError(t, <-flightErr)

	require.Eventually(t, func() bool {
		b := f.store.Load(context.Background())
		return b != nil && b.IDToken == "i2"
	}, 2*time.Second, 5*time.Millisecond)
	require.Zero(t, f.store.clears.Load())
	require.Zero(t, f.ends.Count())
}

func TestHandleUnauthorizedReplayTransportError(t *testing.T) {
	t.Parallel()

	f := newCoordinatorFixture(t, &fakeRefresher{fn: refreshTo("a2", "i2", "")})
	seedBundle(t, f.store, domain.TokenBundle{AccessToken: "a1", IDToken: "i1", RefreshToken: "r1"})

	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:1/unreachable", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer i1")

	_, err = f.c.HandleUnauthorized(context.Background(), req)
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrUnauthorized)
	require.Zero(t, f.store.clears.Load())
}
