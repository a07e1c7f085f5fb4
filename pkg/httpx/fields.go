package httpx

import "strings"

// ParseSpaceDelimitedFields splits a space-delimited string such as an OAuth2
// scope. Returns nil for blank input.
func ParseSpaceDelimitedFields(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

// BearerToken extracts the credential from an "Authorization: Bearer x"
// header value. It returns "" for any other scheme.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
