package authsdk

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFailureCode(t *testing.T) {
	tests := []struct {
		in      string
		code    FailureCode
		minutes int
		ok      bool
	}{
		{"invalid_credentials", FailureInvalidCredentials, 0, true},
		{"inactive_account", FailureInactiveAccount, 0, true},
		{"pending_approval", FailurePendingApproval, 0, true},
		{"no_linked_student", FailureNoLinkedStudent, 0, true},
		{"use_portal_login", FailureUsePortalLogin, 0, true},
		{"account_locked:15", FailureAccountLocked, 15, true},
		{"account_locked:0", FailureAccountLocked, 0, true},
		{"account_locked", "", 0, false},
		{"account_locked:-1", "", 0, false},
		{"account_locked:soon", "", 0, false},
		{"invalid_credentials:3", "", 0, false},
		{"invalid_request", "", 0, false},
		{"", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			code, minutes, ok := ParseFailureCode(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.code, code)
			require.Equal(t, tt.minutes, minutes)
		})
	}
}

func TestClientLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		switch req.Identifier {
		case "locked@example.com":
			w.WriteHeader(http.StatusLocked)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "account_locked:7"})
		case "broken@example.com":
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorCodeTemporarilyUnavailable})
		default:
			_ = json.NewEncoder(w).Encode(SessionResponse{
				Token:   "tok",
				Session: SessionInfo{AccountID: "acc-1", Role: "TEACHER"},
			})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")

	sess, err := c.Login(t.Context(), LoginRequest{Identifier: "t@example.com", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "tok", sess.Token)
	require.Equal(t, "acc-1", sess.Session.AccountID)

	_, err = c.Login(t.Context(), LoginRequest{Identifier: "locked@example.com", Password: "pw"})
	var lerr *LoginError
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, FailureAccountLocked, lerr.Code)
	require.Equal(t, 7, lerr.MinutesRemaining)
	require.Equal(t, http.StatusLocked, lerr.StatusCode)

	_, err = c.Login(t.Context(), LoginRequest{Identifier: "broken@example.com", Password: "pw"})
	var aerr *APIError
	require.True(t, errors.As(err, &aerr))
	require.Equal(t, ErrorCodeTemporarilyUnavailable, aerr.Code)
}

func TestClientPasswordAndSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/password/forgot":
			w.WriteHeader(http.StatusAccepted)
		case "/v1/password/reset":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorCodeExpiredToken})
		case "/v1/session":
			require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(SessionInfo{AccountID: "acc-1", MustChangePassword: true})
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	require.NoError(t, c.ForgotPassword(t.Context(), ForgotPasswordRequest{Identifier: "x"}))

	err := c.ResetPassword(t.Context(), ResetPasswordRequest{Token: "t", NewPassword: "new-password"})
	var aerr *APIError
	require.True(t, errors.As(err, &aerr))
	require.Equal(t, ErrorCodeExpiredToken, aerr.Code)

	info, err := c.Session(t.Context(), "tok")
	require.NoError(t, err)
	require.True(t, info.MustChangePassword)

	_, err = c.Health(t.Context())
	require.True(t, errors.As(err, &aerr))
	require.Equal(t, http.StatusTeapot, aerr.StatusCode)
	require.Equal(t, ErrorCodeServerError, aerr.Code)
}
