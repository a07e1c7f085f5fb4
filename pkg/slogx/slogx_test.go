package slogx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/promogate/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "promogate", Version: "test", Env: "test", Level: "info", Output: &buf})

	logger.Info("hello", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["msg"])
	require.Equal(t, "promogate", line["service"])
	require.Equal(t, "v", line["k"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLevel("debug").String())
	require.Equal(t, "WARN", parseLevel("warning").String())
	require.Equal(t, "ERROR", parseLevel("ERROR").String())
	require.Equal(t, "INFO", parseLevel("nonsense").String())
}

func TestFromContextFallback(t *testing.T) {
	fallback := Discard()
	require.Same(t, fallback, FromContext(context.Background(), fallback))

	attached := Discard()
	ctx := WithContext(context.Background(), attached)
	require.Same(t, attached, FromContext(ctx, fallback))
}

func TestTransportStampsRequestID(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(idx.HeaderRequestID)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Format: "text", Output: &buf})
	client := &http.Client{Transport: NewTransport(nil, logger)}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/promoter/status", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret-token")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.NotEmpty(t, seen)
	require.Empty(t, req.Header.Get(idx.HeaderRequestID), "caller request must not be mutated")
	require.Contains(t, buf.String(), "http_client_request")
	require.Contains(t, buf.String(), "req_id="+seen)
	require.False(t, strings.Contains(buf.String(), "secret-token"))
}
