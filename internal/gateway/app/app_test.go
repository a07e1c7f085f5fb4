package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/promogate/internal/gateway/domain"
	"github.com/aussiebroadwan/promogate/pkg/httpx"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		APIBaseURL:      "http://127.0.0.1:0/api",
		RequestTimeout:  2 * time.Second,
		RefreshTimeout:  2 * time.Second,
		LoginBufferPath: "/login-buffer",
		Locale:          "en",
		Store:           StoreMemory,
		AppID:           "app-1",
		AppSecret:       "secret",
		AppHost:         "http://127.0.0.1:0",
		RedirectURI:     "http://localhost/callback",
		Env:             "test",
		LogLevel:        "error",
		LogFormat:       "text",
		APILimit:        httpx.RateLimitConfig{},
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"GATEWAY_API_BASE_URL", "GATEWAY_REQUEST_TIMEOUT", "GATEWAY_REFRESH_TIMEOUT",
		"GATEWAY_LOGIN_BUFFER_PATH", "GATEWAY_STORE", "GATEWAY_CODE_CAPACITY", "ENV",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
	require.Equal(t, 10*time.Second, cfg.RefreshTimeout)
	require.Equal(t, "/login-buffer", cfg.LoginBufferPath)
	require.Equal(t, StoreSQLite, cfg.Store)
	require.Equal(t, 256, cfg.CodeCapacity)
	require.Equal(t, "dev", cfg.Env)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("GATEWAY_REQUEST_TIMEOUT", "5s")
	t.Setenv("GATEWAY_REFRESH_TIMEOUT", "3")
	t.Setenv("GATEWAY_STORE", "redis")
	t.Setenv("GATEWAY_CODE_CAPACITY", "not-a-number")
	t.Setenv("AUTHING_APP_ID", "app-42")
	t.Setenv("RATELIMIT_API_REQUESTS", "10")
	t.Setenv("RATELIMIT_API_WINDOW_SEC", "1")

	cfg := LoadConfig()
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.Equal(t, 3*time.Second, cfg.RefreshTimeout)
	require.Equal(t, StoreRedis, cfg.Store)
	require.Equal(t, 256, cfg.CodeCapacity)
	require.Equal(t, "app-42", cfg.AppID)
	require.Equal(t, 10, cfg.APILimit.RequestsPerWindow)
	require.Equal(t, time.Second, cfg.APILimit.Window)
}

func TestNewWithEachStore(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "memory", mutate: func(c *Config) { c.Store = StoreMemory }},
		{name: "sqlite", mutate: func(c *Config) {
			c.Store = StoreSQLite
			c.DatabaseFile = filepath.Join(t.TempDir(), "gateway.db")
		}},
		{name: "redis", mutate: func(c *Config) {
			c.Store = StoreRedis
			c.RedisAddr = mr.Addr()
		}},
		{name: "sealed sqlite", mutate: func(c *Config) {
			keyPath := filepath.Join(t.TempDir(), "master.key")
			require.NoError(t, os.WriteFile(keyPath, []byte("0123456789abcdef0123456789abcdef"), 0o600))
			c.Store = StoreSQLite
			c.DatabaseFile = filepath.Join(t.TempDir(), "gateway.db")
			c.MasterKeyPath = keyPath
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)

			app, err := New(cfg)
			require.NoError(t, err)
			defer func() { require.NoError(t, app.Close()) }()

			ctx := context.Background()
			bundle := domain.TokenBundle{AccessToken: "a", IDToken: "i", RefreshToken: "r"}
			require.NoError(t, app.Store().Save(ctx, bundle))
			require.Equal(t, &bundle, app.Store().Load(ctx))
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = "etcd"
	_, err := New(cfg)
	require.ErrorContains(t, err, "unknown store driver")

	cfg = testConfig(t)
	cfg.MasterKeyPath = filepath.Join(t.TempDir(), "missing.key")
	_, err = New(cfg)
	require.ErrorContains(t, err, "master key")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newGateway starts a fake identity provider and resource API and returns an
// app wired to both, signed in with an expired ID token.
func newGateway(t *testing.T, tokenHandler, apiHandler http.HandlerFunc) *Application {
	t.Helper()

	provider := httptest.NewServer(tokenHandler)
	t.Cleanup(provider.Close)
	api := httptest.NewServer(apiHandler)
	t.Cleanup(api.Close)

	cfg := testConfig(t)
	cfg.AppHost = provider.URL
	cfg.APIBaseURL = api.URL + "/api"

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	require.NoError(t, app.Store().Save(context.Background(), domain.TokenBundle{
		AccessToken:  "a1",
		IDToken:      "i1",
		RefreshToken: "r1",
	}))
	return app
}

func TestGatewayRefreshesAndAllows(t *testing.T) {
	app := newGateway(t,
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/oidc/token", r.URL.Path)
			require.NoError(t, r.ParseForm())
			require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			require.Equal(t, "r1", r.PostForm.Get("refresh_token"))

			writeJSON(w, http.StatusOK, map[string]any{
				"access_token": "a2",
				"id_token":     "i2",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		},
		func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer i2" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"code": 0,
				"data": map[string]any{"status": "active", "level": 1},
			})
		},
	)

	ctx := context.Background()
	decision := app.Gatekeeper().EvaluatePath(ctx, "/agent/team/performance")
	require.True(t, decision.Allowed())

	bundle := app.Store().Load(ctx)
	require.Equal(t, "i2", bundle.IDToken)
	require.Equal(t, "r1", bundle.RefreshToken)

	select {
	case target := <-app.SessionEnded():
		t.Fatalf("unexpected session end: %s", target)
	default:
	}
}

func TestGatewayEndsSessionWhenRefreshFails(t *testing.T) {
	app := newGateway(t,
		func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "refresh token revoked",
			})
		},
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
	)

	ctx := context.Background()
	decision := app.Gatekeeper().EvaluatePath(ctx, "/agent/home")
	require.Equal(t, "/login", decision.Redirect)

	select {
	case target := <-app.SessionEnded():
		require.Equal(t, "/login-buffer", target)
	case <-time.After(time.Second):
		t.Fatal("session end was not signalled")
	}

	require.Nil(t, app.Store().Load(ctx))

	decision = app.Gatekeeper().EvaluatePath(ctx, "/agent/home")
	require.Equal(t, "/login", decision.Redirect)
}

func TestSessionEndedDoesNotBlock(t *testing.T) {
	app, err := New(testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	ctx := context.Background()
	app.notifySessionEnded(ctx)
	app.notifySessionEnded(ctx)

	require.Equal(t, "/login-buffer", <-app.SessionEnded())
	select {
	case <-app.SessionEnded():
		t.Fatal("second notification should have been dropped")
	default:
	}
}

func TestLogoutURLCarriesAppID(t *testing.T) {
	cfg := testConfig(t)
	cfg.LogoutRedirectURI = "http://localhost/"

	app, err := New(cfg)
	require.NoError(t, err)
	defer app.Close()

	require.NoError(t, app.Store().Save(context.Background(), domain.TokenBundle{IDToken: "i"}))

	target, err := app.Sessions().Logout(context.Background())
	require.NoError(t, err)
	require.Contains(t, target, "app_id=app-1")
	require.Contains(t, target, "post_logout_redirect_uri=")
	require.Nil(t, app.Store().Load(context.Background()))
}
