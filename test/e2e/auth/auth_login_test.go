package auth_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/service"
	"github.com/aussiebroadwan/schoolgate/pkg/authsdk"
	"github.com/aussiebroadwan/schoolgate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestStaffLoginAndOfflineVerification(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	acc := s.account(domain.RoleTeacher, "teacher@example.com", "", "correct-horse", domain.StatusActive)

	resp, err := s.client.Login(ctx, authsdk.LoginRequest{Identifier: "teacher@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	require.Equal(t, acc.ID, resp.Session.AccountID)

	info, err := s.client.Session(ctx, resp.Token)
	require.NoError(t, err)
	require.Equal(t, resp.Session, *info)

	refreshed, err := s.client.RefreshSession(ctx, resp.Token)
	require.NoError(t, err)
	require.Equal(t, acc.ID, refreshed.Session.AccountID)

	// A downstream service only needs the published keys.
	jwks, err := s.client.JWKS(ctx)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.ResetFromJWKS(jwtx.JWKS(*jwks)))
	claims, err := jwtx.NewVerifierEdDSA(keys, issuer, []string{issuer}).Verify(refreshed.Token)
	require.NoError(t, err)
	require.Equal(t, acc.ID, claims.Subject)
}

func TestPortalLogins(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	studentAcc, kid := s.student("S-1001", "student-pass")
	parentAcc := s.parent("mum@example.com", "+61400000001", "parent-pass", domain.StatusActive, kid)
	s.parent("new@example.com", "", "parent-pass", domain.StatusPending, kid)

	resp, err := s.client.Login(ctx, authsdk.LoginRequest{Role: "student", Identifier: "S-1001", Password: "student-pass"})
	require.NoError(t, err)
	require.Equal(t, studentAcc.ID, resp.Session.AccountID)

	resp, err = s.client.Login(ctx, authsdk.LoginRequest{Role: "parent", Identifier: "+61400000001", Password: "parent-pass"})
	require.NoError(t, err)
	require.Equal(t, parentAcc.ID, resp.Session.AccountID)

	_, err = s.client.Login(ctx, authsdk.LoginRequest{Role: "staff", Identifier: "mum@example.com", Password: "parent-pass"})
	requireLoginError(t, err, authsdk.FailureUsePortalLogin)

	_, err = s.client.Login(ctx, authsdk.LoginRequest{Role: "parent", Identifier: "new@example.com", Password: "parent-pass"})
	requireLoginError(t, err, authsdk.FailurePendingApproval)

	// Student numbers are not staff identifiers.
	_, err = s.client.Login(ctx, authsdk.LoginRequest{Role: "staff", Identifier: "S-1001", Password: "student-pass"})
	requireLoginError(t, err, authsdk.FailureInvalidCredentials)
}

func TestLockoutAndRecovery(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()
	acc := s.account(domain.RoleAccountant, "books@example.com", "", "correct-horse", domain.StatusActive)

	for range 5 {
		_, err := s.client.Login(ctx, authsdk.LoginRequest{Identifier: "books@example.com", Password: "wrong"})
		le := requireLoginError(t, err, authsdk.FailureInvalidCredentials)
		require.Equal(t, 401, le.StatusCode)
	}

	_, err := s.client.Login(ctx, authsdk.LoginRequest{Identifier: "books@example.com", Password: "correct-horse"})
	le := requireLoginError(t, err, authsdk.FailureAccountLocked)
	require.Equal(t, 423, le.StatusCode)
	require.Equal(t, 15, le.MinutesRemaining)

	s.mail.waitFor(t, service.NotifyAccountLocked, acc.ID)

	// A password reset lifts the lock.
	require.NoError(t, s.client.ForgotPassword(ctx, authsdk.ForgotPasswordRequest{Identifier: "books@example.com"}))
	token := resetToken(t, s.mail.waitFor(t, service.NotifyPasswordReset, acc.ID))
	require.NoError(t, s.client.ResetPassword(ctx, authsdk.ResetPasswordRequest{Token: token, NewPassword: "battery-staple"}))

	_, err = s.client.Login(ctx, authsdk.LoginRequest{Identifier: "books@example.com", Password: "battery-staple"})
	require.NoError(t, err)
}
