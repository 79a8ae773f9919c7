package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/service"
	"github.com/aussiebroadwan/schoolgate/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestApprovalFlow(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	_, kid := s.student("S-2001", "student-pass")
	acc := s.parent("dad@example.com", "", "temporary-pass", domain.StatusPending, kid)

	require.Equal(t, http.StatusUnauthorized, s.activate(acc.ID, ""))
	require.Equal(t, http.StatusUnauthorized, s.activate(acc.ID, "wrong-token"))
	require.Equal(t, http.StatusNotFound, s.activate("no-such-account", adminToken))
	require.Equal(t, http.StatusAccepted, s.activate(acc.ID, adminToken))

	token := resetToken(t, s.mail.waitFor(t, service.NotifyWelcome, acc.ID))

	err := s.client.ResetPassword(ctx, authsdk.ResetPasswordRequest{Token: token, NewPassword: "short"})
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, authsdk.ErrorCodeWeakPassword, apiErr.Code)

	require.NoError(t, s.client.ResetPassword(ctx, authsdk.ResetPasswordRequest{Token: token, NewPassword: "my-own-password"}))

	err = s.client.ResetPassword(ctx, authsdk.ResetPasswordRequest{Token: token, NewPassword: "another-password"})
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, authsdk.ErrorCodeTokenAlreadyUsed, apiErr.Code)

	resp, err := s.client.Login(ctx, authsdk.LoginRequest{Role: "parent", Identifier: "dad@example.com", Password: "my-own-password"})
	require.NoError(t, err)
	require.Equal(t, acc.ID, resp.Session.AccountID)
}

func TestForgotPasswordDoesNotEnumerate(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	require.NoError(t, s.client.ForgotPassword(ctx, authsdk.ForgotPasswordRequest{Identifier: "ghost@example.com"}))
	require.NoError(t, s.client.ForgotPassword(ctx, authsdk.ForgotPasswordRequest{Role: "student", Identifier: "S-404"}))

	err := s.client.ResetPassword(ctx, authsdk.ResetPasswordRequest{Token: "made-up-token", NewPassword: "whatever-pass"})
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, authsdk.ErrorCodeInvalidToken, apiErr.Code)
}
