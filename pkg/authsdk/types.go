package authsdk

// ErrorResponse represents a standard OAuth2 error response per RFC 6749.
// This is used internally for parsing HTTP error responses.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenResponse is the token endpoint result for code exchange and refresh.
type TokenResponse struct {
	// AccessToken authorizes calls to the provider itself (user info).
	AccessToken string `json:"access_token"`

	// IDToken is the signed identity assertion presented to the resource API.
	IDToken string `json:"id_token,omitempty"`

	// RefreshToken is empty when the provider did not issue or rotate one.
	RefreshToken string `json:"refresh_token,omitempty"`

	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	Scope     string `json:"scope,omitempty"`
}

// UserInfo is the /oidc/me response.
type UserInfo struct {
	Sub                 string `json:"sub"`
	Name                string `json:"name,omitempty"`
	Nickname            string `json:"nickname,omitempty"`
	GivenName           string `json:"given_name,omitempty"`
	FamilyName          string `json:"family_name,omitempty"`
	PreferredUsername   string `json:"preferred_username,omitempty"`
	Picture             string `json:"picture,omitempty"`
	Email               string `json:"email,omitempty"`
	EmailVerified       bool   `json:"email_verified,omitempty"`
	PhoneNumber         string `json:"phone_number,omitempty"`
	PhoneNumberVerified bool   `json:"phone_number_verified,omitempty"`
	UpdatedAt           string `json:"updated_at,omitempty"`
}

// DisplayName prefers the full name and falls back to the nickname.
func (u *UserInfo) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Nickname
}
