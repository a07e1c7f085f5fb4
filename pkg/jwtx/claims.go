package jwtx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Roles is a role claim that the provider may send as a single string, a list
// of strings, or null. It always decodes to a slice.
type Roles []string

func (r *Roles) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = nil
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*r = nil
		} else {
			*r = Roles{single}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("%w: role must be a string or a list of strings", ErrInvalidClaim)
	}
	*r = Roles(many)
	return nil
}

// ExtendedFields holds the provider's custom user pool fields.
type ExtendedFields struct {
	Role Roles `json:"role,omitempty"`
}

// IDTokenClaims are the OIDC ID token claims the gateway reads. The token is
// issued by the identity provider and verified by the API; the gateway only
// inspects it.
type IDTokenClaims struct {
	jwt.RegisteredClaims

	Name           string         `json:"name,omitempty"`
	Nickname       string         `json:"nickname,omitempty"`
	Email          string         `json:"email,omitempty"`
	PhoneNumber    string         `json:"phone_number,omitempty"`
	Picture        string         `json:"picture,omitempty"`
	ExtendedFields ExtendedFields `json:"extended_fields,omitempty"`
}

// ParseIDToken decodes the claims of an ID token without verifying its
// signature.
func ParseIDToken(token string) (*IDTokenClaims, error) {
	if token == "" {
		return nil, ErrMalformed
	}

	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		if errors.Is(err, ErrInvalidClaim) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return claims, nil
}
