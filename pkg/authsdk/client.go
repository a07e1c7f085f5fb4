package authsdk

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/promogate/pkg/httpx"
)

// DefaultScope is requested when BuildLoginURL is given no scopes.
const DefaultScope = "openid profile offline_access extended_fields phone"

const (
	pathAuthorize  = "/oidc/auth"
	pathToken      = "/oidc/token"
	pathUserInfo   = "/oidc/me"
	pathSessionEnd = "/oidc/session/end"
)

// Config describes the application registered with the identity provider.
type Config struct {
	AppID       string
	AppSecret   string
	AppHost     string
	RedirectURI string
	Scope       string
}

// SDKClient talks to the identity provider. It is safe for concurrent use.
type SDKClient struct {
	BaseURL    string
	AppID      string
	HTTPClient *http.Client

	oauth *oauth2.Config
}

// NewSDKClient creates a new identity provider client.
func NewSDKClient(cfg Config) *SDKClient {
	baseURL := strings.TrimSuffix(cfg.AppHost, "/")

	scope := cfg.Scope
	if strings.TrimSpace(scope) == "" {
		scope = DefaultScope
	}

	return &SDKClient{
		BaseURL: baseURL,
		AppID:   cfg.AppID,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		oauth: &oauth2.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       httpx.ParseSpaceDelimitedFields(scope),
			Endpoint: oauth2.Endpoint{
				AuthURL:   baseURL + pathAuthorize,
				TokenURL:  baseURL + pathToken,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// oauthContext hands the configured HTTP client to x/oauth2.
func (c *SDKClient) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
}
