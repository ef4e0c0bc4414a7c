package authn

import (
	"context"
	"errors"

	"repairshop-api/internal/authz"
	"repairshop-api/internal/pinhash"
	"repairshop-api/internal/ratelimit"
	"repairshop-api/internal/session"
	"repairshop-api/internal/util"
)

// EventSink receives the outcome of every authentication attempt. The
// audit recorder implements it; tests pass nil.
type EventSink interface {
	RecordLogin(ctx context.Context, kind session.Kind, principalID, ip string, success bool, reason string)
	RecordLogout(ctx context.Context, kind session.Kind, principalID string)
}

// RequestAuthenticator runs the full login pipeline: rate-limit
// admission, credential verification, session issuance. It owns the
// ordering guarantees: backoff is consulted before the shared gate, and
// the attempt outcome is recorded only after verification completes.
type RequestAuthenticator struct {
	limiter     *ratelimit.Limiter
	credentials CredentialSource
	hasher      *pinhash.Hasher
	sessions    *session.Manager
	events      EventSink
}

func NewRequestAuthenticator(
	limiter *ratelimit.Limiter,
	credentials CredentialSource,
	hasher *pinhash.Hasher,
	sessions *session.Manager,
	events EventSink,
) *RequestAuthenticator {
	return &RequestAuthenticator{
		limiter:     limiter,
		credentials: credentials,
		hasher:      hasher,
		sessions:    sessions,
		events:      events,
	}
}

// LoginAdmin verifies the administrator PIN and issues an admin session.
func (a *RequestAuthenticator) LoginAdmin(ctx context.Context, pin, ip string) (*session.Session, error) {
	if retryAfter, limited := a.limiter.Check(ip); limited {
		a.emitLogin(ctx, session.KindAdmin, "", ip, false, "rate limited")
		return nil, &RateLimitedError{RetryAfterSeconds: retryAfter}
	}

	digest, err := a.credentials.AdminPINDigest(ctx)
	if err != nil {
		return nil, err
	}
	if digest == "" {
		// No admin credential configured. Count the failure so probing an
		// unconfigured deployment still backs off.
		a.finish(ctx, session.KindAdmin, "", ip, false, "no admin credential")
		return nil, ErrInvalidCredential
	}

	match, err := a.hasher.Verify(pin, digest)
	if err != nil {
		util.Error("admin credential digest is unverifiable", util.ErrorField(err))
		return nil, ErrMalformedStoredHash
	}
	if !match {
		a.finish(ctx, session.KindAdmin, "", ip, false, "wrong pin")
		return nil, ErrInvalidCredential
	}

	s, err := a.sessions.Create(ctx, session.KindAdmin, "")
	if err != nil {
		return nil, err
	}
	a.finish(ctx, session.KindAdmin, "", ip, true, "")
	return s, nil
}

// LoginEmployee verifies an employee PIN and issues an employee session.
// Unknown, inactive and wrong-PIN outcomes are indistinguishable to the
// caller, and all three count as failures for backoff.
func (a *RequestAuthenticator) LoginEmployee(ctx context.Context, employeeID, pin, ip string) (*session.Session, error) {
	if retryAfter, limited := a.limiter.Check(ip); limited {
		a.emitLogin(ctx, session.KindEmployee, employeeID, ip, false, "rate limited")
		return nil, &RateLimitedError{RetryAfterSeconds: retryAfter}
	}

	digest, active, found, err := a.credentials.EmployeePINDigest(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !found {
		a.finish(ctx, session.KindEmployee, employeeID, ip, false, "unknown employee")
		return nil, ErrInvalidCredential
	}
	if !active {
		a.finish(ctx, session.KindEmployee, employeeID, ip, false, "inactive employee")
		return nil, ErrInvalidCredential
	}

	match, err := a.hasher.Verify(pin, digest)
	if err != nil {
		util.Error("employee credential digest is unverifiable",
			util.String("employee_id", employeeID), util.ErrorField(err))
		return nil, ErrMalformedStoredHash
	}
	if !match {
		a.finish(ctx, session.KindEmployee, employeeID, ip, false, "wrong pin")
		return nil, ErrInvalidCredential
	}

	s, err := a.sessions.Create(ctx, session.KindEmployee, employeeID)
	if err != nil {
		return nil, err
	}
	a.finish(ctx, session.KindEmployee, employeeID, ip, true, "")
	return s, nil
}

// TouchSession resolves a bearer token to a live session, sliding its
// expiry, and returns the principal it authenticates.
func (a *RequestAuthenticator) TouchSession(ctx context.Context, token string) (*session.Session, authz.Principal, error) {
	s, err := a.sessions.VerifyAndTouch(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, authz.Principal{}, ErrSessionInvalid
		}
		return nil, authz.Principal{}, err
	}

	principal := authz.Principal{Role: authz.RoleStaff, EmployeeID: s.PrincipalID}
	if s.Kind == session.KindAdmin {
		principal = authz.Principal{Role: authz.RoleAdmin}
	}
	return s, principal, nil
}

// Logout revokes the session holding token. Revoking an absent token
// succeeds silently.
func (a *RequestAuthenticator) Logout(ctx context.Context, token string) error {
	s, err := a.sessions.VerifyAndTouch(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := a.sessions.Delete(ctx, token); err != nil {
		return err
	}
	if a.events != nil {
		a.events.RecordLogout(ctx, s.Kind, s.PrincipalID)
	}
	return nil
}

// finish records the attempt outcome in the failure registry and emits
// the audit event. It runs after verification so a cancelled request
// never skews the counters.
func (a *RequestAuthenticator) finish(ctx context.Context, kind session.Kind, principalID, ip string, success bool, reason string) {
	a.limiter.RecordOutcome(ip, success)
	if !success {
		util.Warn("login attempt failed",
			util.String("kind", string(kind)),
			util.String("ip", ip),
			util.String("reason", reason))
	}
	a.emitLogin(ctx, kind, principalID, ip, success, reason)
}

func (a *RequestAuthenticator) emitLogin(ctx context.Context, kind session.Kind, principalID, ip string, success bool, reason string) {
	if a.events != nil {
		a.events.RecordLogin(ctx, kind, principalID, ip, success, reason)
	}
}
