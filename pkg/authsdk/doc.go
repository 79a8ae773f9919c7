/*
Package authsdk is a Go client for the schoolgate authentication service.

# Logging in

Each login names the identity namespace it targets. Staff sign in with an
email address, parents with an email address or phone number, and students
with their student number:

	client := authsdk.NewClient("https://auth.school.example")

	sess, err := client.Login(ctx, authsdk.LoginRequest{
		Role:       "parent",
		Identifier: "+61400111222",
		Password:   password,
	})

# Failure codes

A refused login is a *LoginError carrying one of the stable codes
(invalid_credentials, inactive_account, account_locked, pending_approval,
no_linked_student, use_portal_login). For account_locked the minutes left
on the lock are in MinutesRemaining:

	var lerr *authsdk.LoginError
	if errors.As(err, &lerr) && lerr.Code == authsdk.FailureAccountLocked {
		fmt.Printf("try again in %d minutes\n", lerr.MinutesRemaining)
	}

ParseFailureCode does the same split for callers holding the raw string.

# Sessions

The token in SessionResponse is an EdDSA-signed JWT. Verify it locally
against JWKS, or ask the server with Session. Claims are fixed at issue
time; RefreshSession is the only way to pick up changes such as a cleared
must_change_password flag.

# Password reset

ForgotPassword always succeeds from the caller's point of view so it cannot
be used to probe for accounts. ResetPassword redeems the single-use token
from the emailed link.
*/
package authsdk
