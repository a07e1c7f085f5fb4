package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/promogate/internal/gateway/domain"
	"github.com/aussiebroadwan/promogate/internal/gateway/store"
	"github.com/aussiebroadwan/promogate/pkg/idx"
	"github.com/aussiebroadwan/promogate/pkg/slogx"
)

// DefaultTimeout applies to every API call, replay included.
const DefaultTimeout = 30 * time.Second

var errRequestTimeout = errors.New("request timeout elapsed")

// UnauthorizedHandler resolves a request that came back 401.
type UnauthorizedHandler interface {
	HandleUnauthorized(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client calls the resource API with the stored ID token. A 401 is handed to
// the refresh coordinator once; everything else maps onto domain errors.
type Client struct {
	BaseURL      string
	HTTP         *http.Client
	Store        store.CredentialStore
	Unauthorized UnauthorizedHandler
	Timeout      time.Duration
	Messages     domain.Messages
	Logger       *slog.Logger
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout(), errRequestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return c.fail(ctx, method, path, c.messages().Error(domain.KindInvalidRequest, 0, err))
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return c.fail(ctx, method, path, c.transportError(ctx, err))
	}

	if resp.StatusCode == http.StatusUnauthorized && c.Unauthorized != nil {
		drain(resp)

		resp, err = c.Unauthorized.HandleUnauthorized(ctx, req)
		if err != nil {
			var domainErr *domain.Error
			if errors.As(err, &domainErr) {
				return c.fail(ctx, method, path, err)
			}
			return c.fail(ctx, method, path, c.transportError(ctx, err))
		}
	}

	if err := c.decode(ctx, resp, out); err != nil {
		return c.fail(ctx, method, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		// bytes.Reader lets net/http set GetBody, so the request can be replayed.
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json;charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(idx.HeaderRequestID, idx.New().String())

	if bundle := c.Store.Load(ctx); bundle != nil && bundle.IDToken != "" {
		req.Header.Set("Authorization", "Bearer "+bundle.IDToken)
	}

	return req, nil
}

func (c *Client) url(path string, query url.Values) string {
	u := strings.TrimSuffix(c.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// decode classifies resp. A 401 here is terminal: it is either the replay's
// answer or there was no coordinator to ask.
func (c *Client) decode(ctx context.Context, resp *http.Response, out any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(ctx, err)
	}

	msgs := c.messages()
	status := resp.StatusCode

	switch {
	case status >= 200 && status < 300:
		if out == nil || len(bytes.TrimSpace(body)) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return msgs.Error(domain.KindDefault, status, fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	case status == http.StatusUnauthorized:
		return msgs.Error(domain.KindUnauthorized, status, nil)
	case status == http.StatusForbidden:
		return msgs.Error(domain.KindForbidden, status, nil)
	case status == http.StatusNotFound:
		return msgs.Error(domain.KindNotFound, status, nil)
	case status == http.StatusInternalServerError:
		return msgs.Error(domain.KindServerError, status, nil)
	}

	if msg := errorMessage(body); msg != "" {
		return domain.NewError(domain.KindDefault, status, msg, nil)
	}
	return msgs.Error(domain.KindDefault, status, nil)
}

// errorMessage pulls the server's explanation out of an error body,
// preferring "error" over "message".
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

// transportError tells a local timeout apart from a network failure.
func (c *Client) transportError(ctx context.Context, err error) error {
	msgs := c.messages()

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return msgs.Error(domain.KindTimeout, 0, context.Cause(ctx))
		}
		return msgs.Error(domain.KindDefault, 0, ctxErr)
	}
	return msgs.Error(domain.KindNetwork, 0, err)
}

func (c *Client) fail(ctx context.Context, method, path string, err error) error {
	var domainErr *domain.Error
	attrs := []any{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("error", err.Error()),
	}
	if errors.As(err, &domainErr) {
		attrs = append(attrs,
			slog.String("kind", domainErr.Kind.String()),
			slog.Int("status", domainErr.Status),
		)
	}

	slogx.FromContext(ctx, c.Logger).WarnContext(ctx, "api_request_failed", attrs...)
	return err
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Client) messages() domain.Messages {
	if c.Messages != nil {
		return c.Messages
	}
	return domain.EnglishMessages
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
