package authsdk

import (
	"context"
	"net/http"
)

// ForgotPassword requests a reset link. A nil error does not mean the
// identifier exists.
func (c *Client) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/password/forgot", req, "")
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusAccepted)
}

// ResetPassword redeems a reset token. A rejected token is an *APIError
// with Code invalid_token, expired_token or token_already_used.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/password/reset", req, "")
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}
