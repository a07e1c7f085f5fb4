package authsdk

import (
	"context"
	"errors"
)

// ErrMissingSubject is returned when the user info response carries no sub.
var ErrMissingSubject = errors.New("user info response has no subject")

// FetchUserInfo returns the profile bound to accessToken.
func (c *SDKClient) FetchUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	var info UserInfo
	if err := c.getJSON(ctx, pathUserInfo, accessToken, &info); err != nil {
		return nil, err
	}

	if info.Sub == "" {
		return nil, ErrMissingSubject
	}

	return &info, nil
}
