package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// OAuth2 error codes per RFC 6749
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeUnauthorizedClient   = "unauthorized_client"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeServerError          = "server_error"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeAccessDenied         = "access_denied"
)

// OAuth2Error represents an OAuth2 error response per RFC 6749.
type OAuth2Error struct {
	// StatusCode is the HTTP status code of the response, 0 if unknown.
	StatusCode int `json:"-"`

	// Code is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// StatusCode reports the HTTP status carried by an OAuth2Error anywhere in
// err's chain, or 0.
func StatusCode(err error) int {
	var oauthErr *OAuth2Error
	if errors.As(err, &oauthErr) {
		return oauthErr.StatusCode
	}
	return 0
}

// parseErrorResponse converts a non-2xx response into an OAuth2Error.
func parseErrorResponse(status int, body []byte) error {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &OAuth2Error{
			StatusCode:  status,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
		}
	}

	code := ErrorCodeServerError
	if status == http.StatusUnauthorized {
		code = ErrorCodeInvalidToken
	}

	return &OAuth2Error{
		StatusCode:  status,
		Code:        code,
		Description: fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)),
	}
}
