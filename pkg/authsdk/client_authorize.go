package authsdk

import (
	"net/url"
)

// BuildLoginURL constructs the authorization URL the browser is sent to.
// An empty scopes slice requests the configured scope (DefaultScope unless
// overridden in Config).
func (c *SDKClient) BuildLoginURL(scopes []string, state string) string {
	cfg := *c.oauth
	if len(scopes) > 0 {
		cfg.Scopes = scopes
	}

	return cfg.AuthCodeURL(state)
}

// BuildLogoutURL constructs the end-session URL. The provider sends the browser
// to redirectURI once its own session is gone.
func (c *SDKClient) BuildLogoutURL(redirectURI string) string {
	params := url.Values{}
	if redirectURI != "" {
		params.Set("post_logout_redirect_uri", redirectURI)
	}

	if len(params) == 0 {
		return c.BaseURL + pathSessionEnd
	}
	return c.BaseURL + pathSessionEnd + "?" + params.Encode()
}
