package authn

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"repairshop-api/internal/authz"
	"repairshop-api/internal/clock"
	"repairshop-api/internal/pinhash"
	"repairshop-api/internal/ratelimit"
	"repairshop-api/internal/session"
)

var testParams = pinhash.Params{
	Memory:      8 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type authFixture struct {
	auth  *RequestAuthenticator
	creds *MemoryCredentials
	clk   *clock.FakeClock
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	clk := clock.Fake(time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))
	hasher := pinhash.NewHasher(testParams)

	adminDigest, err := hasher.Hash("1701")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	creds := NewMemoryCredentials(adminDigest)

	empDigest, err := hasher.Hash("4242")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	creds.SetEmployee("emp-1", empDigest, true)

	inactiveDigest, err := hasher.Hash("9999")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	creds.SetEmployee("emp-2", inactiveDigest, false)

	limiter := ratelimit.NewLimiter(5, time.Minute, 4, clk)
	sessions := session.NewManager(session.NewMemoryStore(), session.DefaultLifetimePolicy(), clk)

	return &authFixture{
		auth:  NewRequestAuthenticator(limiter, creds, hasher, sessions, nil),
		creds: creds,
		clk:   clk,
	}
}

func TestAdminLoginIssuesSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	s, err := f.auth.LoginAdmin(ctx, "1701", "192.0.2.1")
	if err != nil {
		t.Fatalf("LoginAdmin: %v", err)
	}
	if s.Kind != session.KindAdmin {
		t.Errorf("Kind = %v, want admin", s.Kind)
	}
	if s.PrincipalID != "" {
		t.Errorf("admin session has principal ID %q", s.PrincipalID)
	}

	touched, principal, err := f.auth.TouchSession(ctx, s.Token)
	if err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	if touched.ID != s.ID {
		t.Error("touch resolved a different session")
	}
	if principal.Role != authz.RoleAdmin {
		t.Errorf("Role = %v, want admin", principal.Role)
	}
}

func TestEmployeeLoginIssuesSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	s, err := f.auth.LoginEmployee(ctx, "emp-1", "4242", "192.0.2.1")
	if err != nil {
		t.Fatalf("LoginEmployee: %v", err)
	}
	if s.PrincipalID != "emp-1" {
		t.Errorf("PrincipalID = %q, want emp-1", s.PrincipalID)
	}

	_, principal, err := f.auth.TouchSession(ctx, s.Token)
	if err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	if principal.EmployeeID != "emp-1" {
		t.Errorf("EmployeeID = %q, want emp-1", principal.EmployeeID)
	}
}

func TestLoginRejectionsAreUniform(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		call func() error
	}{
		{"wrong admin pin", func() error {
			_, err := f.auth.LoginAdmin(ctx, "0000", "192.0.2.1")
			return err
		}},
		{"wrong employee pin", func() error {
			_, err := f.auth.LoginEmployee(ctx, "emp-1", "0000", "192.0.2.2")
			return err
		}},
		{"unknown employee", func() error {
			_, err := f.auth.LoginEmployee(ctx, "emp-404", "4242", "192.0.2.3")
			return err
		}},
		{"inactive employee even with right pin", func() error {
			_, err := f.auth.LoginEmployee(ctx, "emp-2", "9999", "192.0.2.4")
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, ErrInvalidCredential) {
				t.Fatalf("err = %v, want ErrInvalidCredential", err)
			}
		})
	}
}

func TestRepeatedFailuresTriggerBackoff(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	ip := "198.51.100.9"

	// First failure carries no backoff; the second puts the IP in a
	// five second hold.
	for i := 0; i < 2; i++ {
		if _, err := f.auth.LoginEmployee(ctx, "emp-1", "0000", ip); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}

	_, err := f.auth.LoginEmployee(ctx, "emp-1", "4242", ip)
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("err = %v, want RateLimitedError", err)
	}
	if limited.RetryAfterSeconds != 5 {
		t.Errorf("RetryAfterSeconds = %d, want 5", limited.RetryAfterSeconds)
	}

	// Waiting out the hold lets the correct PIN through, and success
	// clears the failure count.
	f.clk.Advance(5 * time.Second)
	if _, err := f.auth.LoginEmployee(ctx, "emp-1", "4242", ip); err != nil {
		t.Fatalf("login after backoff: %v", err)
	}
}

func TestGlobalGateCapsAttemptBurst(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	// Five distinct IPs exhaust the shared gate even though none of them
	// has a failure history.
	for i := 0; i < 5; i++ {
		ip := fmt.Sprintf("203.0.113.%d", i+1)
		if _, err := f.auth.LoginAdmin(ctx, "1701", ip); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}

	_, err := f.auth.LoginAdmin(ctx, "1701", "203.0.113.99")
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("err = %v, want RateLimitedError", err)
	}
	if limited.RetryAfterSeconds < 1 {
		t.Errorf("RetryAfterSeconds = %d, want >= 1", limited.RetryAfterSeconds)
	}

	f.clk.Advance(time.Minute)
	if _, err := f.auth.LoginAdmin(ctx, "1701", "203.0.113.99"); err != nil {
		t.Fatalf("login after window: %v", err)
	}
}

func TestRateLimitedAttemptDoesNotCountAsFailure(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	ip := "198.51.100.10"

	for i := 0; i < 2; i++ {
		_, _ = f.auth.LoginEmployee(ctx, "emp-1", "0000", ip)
	}

	// Hammering during the hold must not deepen the backoff.
	for i := 0; i < 10; i++ {
		_, err := f.auth.LoginEmployee(ctx, "emp-1", "0000", ip)
		var limited *RateLimitedError
		if !errors.As(err, &limited) {
			t.Fatalf("err = %v, want RateLimitedError", err)
		}
	}

	f.clk.Advance(5 * time.Second)
	if _, err := f.auth.LoginEmployee(ctx, "emp-1", "4242", ip); err != nil {
		t.Fatalf("login after hold: %v", err)
	}
}

func TestMalformedDigestIsNotAClientError(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	ip := "198.51.100.11"

	f.creds.SetEmployee("emp-3", "not-a-digest", true)

	if _, err := f.auth.LoginEmployee(ctx, "emp-3", "4242", ip); !errors.Is(err, ErrMalformedStoredHash) {
		t.Fatalf("err = %v, want ErrMalformedStoredHash", err)
	}

	// The operational fault must not have counted against the IP.
	if _, err := f.auth.LoginEmployee(ctx, "emp-1", "4242", ip); err != nil {
		t.Fatalf("follow-up login: %v", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	s, err := f.auth.LoginEmployee(ctx, "emp-1", "4242", "192.0.2.1")
	if err != nil {
		t.Fatalf("LoginEmployee: %v", err)
	}
	if err := f.auth.Logout(ctx, s.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, _, err := f.auth.TouchSession(ctx, s.Token); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("touch after logout: err = %v, want ErrSessionInvalid", err)
	}

	// Logging out an already dead token is fine.
	if err := f.auth.Logout(ctx, s.Token); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
}

func TestExpiredTokenLooksLikeMissingToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	s, err := f.auth.LoginAdmin(ctx, "1701", "192.0.2.1")
	if err != nil {
		t.Fatalf("LoginAdmin: %v", err)
	}

	f.clk.Advance(31 * time.Minute)

	_, _, expiredErr := f.auth.TouchSession(ctx, s.Token)
	_, _, missingErr := f.auth.TouchSession(ctx, "never-issued")
	if !errors.Is(expiredErr, ErrSessionInvalid) || !errors.Is(missingErr, ErrSessionInvalid) {
		t.Fatalf("expired = %v, missing = %v, want both ErrSessionInvalid", expiredErr, missingErr)
	}
}
