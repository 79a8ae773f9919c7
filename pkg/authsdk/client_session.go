package authsdk

import (
	"context"
	"net/http"
)

// Login authenticates against one identity namespace. Refusals are returned
// as *LoginError.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*SessionResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/login", req, "")
	if err != nil {
		return nil, err
	}

	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// Session returns the claim set carried by token, as verified by the server.
func (c *Client) Session(ctx context.Context, token string) (*SessionInfo, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/session", nil, token)
	if err != nil {
		return nil, err
	}

	var out SessionInfo
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshSession re-reads the account server-side and returns a new token.
// Claims never change without this call.
func (c *Client) RefreshSession(ctx context.Context, token string) (*SessionResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/session/refresh", nil, token)
	if err != nil {
		return nil, err
	}

	var out SessionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
