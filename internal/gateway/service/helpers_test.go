package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/promogate/internal/gateway/domain"
	"github.com/aussiebroadwan/promogate/internal/gateway/store"
	"github.com/aussiebroadwan/promogate/internal/gateway/store/drivers/memory"
	"github.com/aussiebroadwan/promogate/pkg/authsdk"
	"github.com/aussiebroadwan/promogate/pkg/slogx"
)

// countingStore records how often Clear runs.
type countingStore struct {
	store.CredentialStore
	clears atomic.Int32
}

func (s *countingStore) Clear(ctx context.Context) error {
	s.clears.Add(1)
	return s.CredentialStore.Clear(ctx)
}

func newTestStore(t *testing.T) *countingStore {
	t.Helper()

	d, err := memory.NewStore(0)
	require.NoError(t, err)

	s := &countingStore{CredentialStore: store.New(d, store.WithLogger(slogx.Discard()))}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// fakeRefresher answers RefreshGrant from fn. When gate is non-nil every call
// blocks until it is closed.
type fakeRefresher struct {
	gate  chan struct{}
	fn    func(ctx context.Context, refreshToken string) (*authsdk.TokenResponse, error)
	calls atomic.Int32
}

func (f *fakeRefresher) RefreshGrant(ctx context.Context, refreshToken string) (*authsdk.TokenResponse, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.fn(ctx, refreshToken)
}

func refreshTo(accessToken, idToken, refreshToken string) func(context.Context, string) (*authsdk.TokenResponse, error) {
	return func(context.Context, string) (*authsdk.TokenResponse, error) {
		return &authsdk.TokenResponse{
			AccessToken:  accessToken,
			IDToken:      idToken,
			RefreshToken: refreshToken,
		}, nil
	}
}

// echoed is what the echo server reports about a request it received.
type echoed struct {
	Path          string `json:"path"`
	Authorization string `json:"authorization"`
	Body          string `json:"body"`
}

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echoed{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			Body:          string(body),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func decodeEcho(t *testing.T, resp *http.Response) echoed {
	t.Helper()
	defer resp.Body.Close()

	var e echoed
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

// sessionEnds counts OnSessionEnded calls.
type sessionEnds struct {
	mu    sync.Mutex
	count int
}

func (s *sessionEnds) hook(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
}

func (s *sessionEnds) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func seedBundle(t *testing.T, s store.CredentialStore, bundle domain.TokenBundle) {
	t.Helper()
	require.NoError(t, s.Save(context.Background(), bundle))
}
