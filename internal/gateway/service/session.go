package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/promogate/internal/gateway/domain"
	"github.com/aussiebroadwan/promogate/internal/gateway/store"
	"github.com/aussiebroadwan/promogate/pkg/authsdk"
	"github.com/aussiebroadwan/promogate/pkg/cryptox"
	"github.com/aussiebroadwan/promogate/pkg/jwtx"
	"github.com/aussiebroadwan/promogate/pkg/slogx"
)

var (
	ErrMissingCode       = errors.New("authorization code is required")
	ErrIncompleteTokens  = errors.New("token response has no access token")
	ErrIdentityNotLoaded = errors.New("user info could not be loaded")
)

// IdentityProvider is the slice of the identity provider client the session
// flow uses.
type IdentityProvider interface {
	TokenRefresher
	BuildLoginURL(scopes []string, state string) string
	BuildLogoutURL(redirectURI string) string
	ExchangeCode(ctx context.Context, code string) (*authsdk.TokenResponse, error)
	FetchUserInfo(ctx context.Context, accessToken string) (*authsdk.UserInfo, error)
}

// SessionService runs the login callback and logout, and answers who is
// signed in.
type SessionService struct {
	Store             store.CredentialStore
	Provider          IdentityProvider
	AppID             string
	LogoutRedirectURI string
	Scopes            []string
	Logger            *slog.Logger
}

// LoginURL returns the provider login URL along with the state value embedded
// in it.
func (s *SessionService) LoginURL() (loginURL, state string, err error) {
	state, err = cryptox.GenerateState()
	if err != nil {
		return "", "", err
	}
	return s.Provider.BuildLoginURL(s.Scopes, state), state, nil
}

// LogoutURL returns the provider end-session URL tagged with the app id.
func (s *SessionService) LogoutURL() string {
	raw := s.Provider.BuildLogoutURL(s.LogoutRedirectURI)
	if s.AppID == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("app_id", s.AppID)
	u.RawQuery = q.Encode()
	return u.String()
}

// HandleCallback completes a login from the authorization code the provider
// redirected back with. A code seen before, or one the provider rejects with
// 400, resolves to the cached identity when there is one.
func (s *SessionService) HandleCallback(ctx context.Context, code string) (*domain.Identity, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	l := slogx.FromContext(ctx, s.Logger)

	if s.Store.IsCodeProcessed(ctx, code) {
		l.WarnContext(ctx, "auth_code_already_processed")
		if cached := s.Store.LoadIdentity(ctx); cached != nil {
			return cached, nil
		}
	}

	identity, err := s.completeLogin(ctx, l, code)
	if err != nil {
		if authsdk.StatusCode(err) == http.StatusBadRequest {
			if cached := s.Store.LoadIdentity(ctx); cached != nil {
				l.WarnContext(ctx, "auth_code_rejected_using_cached_identity")
				return cached, nil
			}
		}
		l.ErrorContext(ctx, "auth_callback_failed", slog.String("error", err.Error()))
		return nil, err
	}

	l.InfoContext(ctx, "auth_callback_completed", slog.String("sub", identity.SubjectID))
	return identity, nil
}

func (s *SessionService) completeLogin(ctx context.Context, l *slog.Logger, code string) (*domain.Identity, error) {
	tokens, err := s.Provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		return nil, ErrIncompleteTokens
	}

	bundle := domain.TokenBundle{
		AccessToken:  tokens.AccessToken,
		IDToken:      tokens.IDToken,
		RefreshToken: tokens.RefreshToken,
	}
	if err := s.Store.Save(ctx, bundle); err != nil {
		return nil, err
	}

	if tokens.IDToken != "" {
		claims, err := jwtx.ParseIDToken(tokens.IDToken)
		if err != nil {
			l.WarnContext(ctx, "id_token_unparseable", slog.String("error", err.Error()))
		} else if role := domain.Role(claims.ExtendedFields.Role); len(role) > 0 {
			if err := s.Store.SaveRole(ctx, role); err != nil {
				return nil, err
			}
		}
	}

	info, err := s.Provider.FetchUserInfo(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIdentityNotLoaded, err)
	}

	identity := domain.Identity{
		SubjectID:   info.Sub,
		DisplayName: info.DisplayName(),
		Email:       info.Email,
		Phone:       info.PhoneNumber,
		Picture:     info.Picture,
	}
	if err := s.Store.SaveIdentity(ctx, identity); err != nil {
		return nil, err
	}

	if err := s.Store.MarkCodeProcessed(ctx, code); err != nil {
		return nil, err
	}

	return &identity, nil
}

// Logout forgets the session locally and returns the provider URL that ends
// it remotely.
func (s *SessionService) Logout(ctx context.Context) (string, error) {
	if err := s.Store.Clear(ctx); err != nil {
		return "", err
	}
	if err := s.Store.ClearProcessedCodes(ctx); err != nil {
		return "", err
	}

	slogx.FromContext(ctx, s.Logger).InfoContext(ctx, "session_ended", slog.String("reason", "logout"))
	return s.LogoutURL(), nil
}

func (s *SessionService) CurrentIdentity(ctx context.Context) *domain.Identity {
	return s.Store.LoadIdentity(ctx)
}

func (s *SessionService) CurrentRole(ctx context.Context) domain.Role {
	return s.Store.LoadRole(ctx)
}

func (s *SessionService) IsAdmin(ctx context.Context) bool {
	return s.Store.LoadRole(ctx).IsAdmin()
}

// IsAuthenticated reports whether an ID token is stored.
func (s *SessionService) IsAuthenticated(ctx context.Context) bool {
	bundle := s.Store.Load(ctx)
	return bundle != nil && bundle.IDToken != ""
}
