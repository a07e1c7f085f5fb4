package domain

// TokenBundle is the credential set issued by the identity provider. The ID
// token is what the resource API accepts as a bearer credential.
type TokenBundle struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
}

// Rotate returns the bundle that results from a refresh. The access and ID
// tokens are always replaced; an empty refreshToken keeps the current one.
func (b TokenBundle) Rotate(accessToken, idToken, refreshToken string) TokenBundle {
	next := TokenBundle{
		AccessToken:  accessToken,
		IDToken:      idToken,
		RefreshToken: refreshToken,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = b.RefreshToken
	}
	return next
}

// Identity is the signed-in user's profile as reported by the provider.
type Identity struct {
	SubjectID   string `json:"sub"`
	DisplayName string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone_number,omitempty"`
	Picture     string `json:"picture,omitempty"`
}
