/*
Package authsdk provides a client for an Authing-style OIDC identity provider.

# Overview

The provider is consumed as a small set of endpoints under the application host:

  - /oidc/auth: authorization (login) redirect
  - /oidc/token: authorization code exchange and refresh token grant
  - /oidc/me: user info for an access token
  - /oidc/session/end: logout redirect

Create an SDKClient from the application registration:

	client := authsdk.NewSDKClient(authsdk.Config{
		AppID:       "app-id",
		AppSecret:   "app-secret",
		AppHost:     "https://example.authing.cn",
		RedirectURI: "https://agent.example.com/callback",
	})

# Login and Logout

BuildLoginURL and BuildLogoutURL only build browser redirect targets, they never
touch the network:

	loginURL := client.BuildLoginURL(nil, state)   // default scope
	logoutURL := client.BuildLogoutURL("https://agent.example.com/")

# Token Grants

Code exchange and refresh use golang.org/x/oauth2 with client credentials sent
in the form body:

	tokens, err := client.ExchangeCode(ctx, code)
	tokens, err = client.RefreshGrant(ctx, tokens.RefreshToken)

A token endpoint rejection is returned as *OAuth2Error carrying the HTTP status
and the RFC 6749 error code:

	var oauthErr *authsdk.OAuth2Error
	if errors.As(err, &oauthErr) && oauthErr.Code == authsdk.ErrorCodeInvalidGrant {
		// refresh token revoked or expired
	}

# User Info

	info, err := client.FetchUserInfo(ctx, tokens.AccessToken)

The client never stores tokens. Persistence belongs to the caller.
*/
package authsdk
