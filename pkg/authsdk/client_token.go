package authsdk

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ErrMissingCode is returned when ExchangeCode is called without a code.
var ErrMissingCode = errors.New("authorization code is required")

// ErrMissingRefreshToken is returned when RefreshGrant is called without a token.
var ErrMissingRefreshToken = errors.New("refresh token is required")

// ExchangeCode trades an authorization code for a token set.
func (c *SDKClient) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", convertTokenError(err))
	}

	return newTokenResponse(tok), nil
}

// RefreshGrant requests new tokens using a refresh token. The response's
// RefreshToken is empty when the provider did not rotate it.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", convertTokenError(err))
	}

	resp := newTokenResponse(tok)

	// x/oauth2 copies the old refresh token forward when the server omits one.
	if resp.RefreshToken == refreshToken {
		resp.RefreshToken = ""
	}

	return resp, nil
}

func newTokenResponse(tok *oauth2.Token) *TokenResponse {
	resp := &TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    int(tok.ExpiresIn),
	}

	if id, ok := tok.Extra("id_token").(string); ok {
		resp.IDToken = id
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		resp.Scope = scope
	}

	return resp
}

// convertTokenError maps x/oauth2 retrieve errors onto OAuth2Error.
func convertTokenError(err error) error {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return err
	}

	status := 0
	if rerr.Response != nil {
		status = rerr.Response.StatusCode
	}

	code := rerr.ErrorCode
	if code == "" {
		code = ErrorCodeServerError
	}

	desc := rerr.ErrorDescription
	if desc == "" {
		desc = string(rerr.Body)
	}

	return &OAuth2Error{
		StatusCode:  status,
		Code:        code,
		Description: desc,
	}
}
