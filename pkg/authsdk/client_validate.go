package authsdk

import (
	"context"
	"net/http"
)

// ValidateToken asks the identity service to validate an access token.
// An invalid token is not an error at this level: the result carries
// Valid=false with a generic reason.
func (c *SDKClient) ValidateToken(ctx context.Context, token string) (*ValidationResult, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/internal/v1/validate", ValidateRequest{
		Token: token,
	}, nil)
	if err != nil {
		return nil, err
	}

	var result ValidationResult
	if err := decodeJSON(resp, &result, http.StatusOK); err != nil {
		return nil, err
	}

	return &result, nil
}

// GetUserInfo resolves the account behind an access token.
func (c *SDKClient) GetUserInfo(ctx context.Context, accessToken string) (*UserInfoResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/internal/v1/userinfo", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return nil, err
	}

	var info UserInfoResponse
	if err := decodeJSON(resp, &info, http.StatusOK); err != nil {
		return nil, err
	}

	return &info, nil
}

// GetUserByID fetches an account by its user id. The endpoint is gated on an
// admin role, so the caller supplies its own access token.
func (c *SDKClient) GetUserByID(ctx context.Context, accessToken, userID string) (*UserInfoResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/internal/v1/users/"+userID, nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return nil, err
	}

	var info UserInfoResponse
	if err := decodeJSON(resp, &info, http.StatusOK); err != nil {
		return nil, err
	}

	return &info, nil
}
