package tendergate

import (
	"context"
	"errors"
	"log"
)

// LoginOutcome classifies what a login attempt resolved to. Only
// LoginAuthenticated means a session exists.
type LoginOutcome uint8

const (
	// LoginAuthenticated means the session was established.
	LoginAuthenticated LoginOutcome = iota
	// LoginTeamRedirect means the email is an organization's shared login
	// email; the caller must continue in the team login flow.
	LoginTeamRedirect
	// LoginVerifyEmail means the account never confirmed its registration
	// code. A fresh code was already requested; the caller must continue
	// in the returned OTP flow.
	LoginVerifyEmail
)

// LoginResult carries the outcome of a login attempt and the material
// for whichever continuation it demands.
type LoginResult struct {
	Outcome LoginOutcome
	// Subject is set for LoginAuthenticated.
	Subject Subject
	// TeamLoginEmail is set for LoginTeamRedirect.
	TeamLoginEmail string
	// OTP is set for LoginVerifyEmail, primed for the account's email.
	OTP *OTPFlow
}

// Login authenticates against the backend. Three things can come back:
// an established session, a redirect into the team login flow, or a
// redirect into email verification for accounts that never confirmed
// their registration code. Bad credentials are ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil || e.remote == nil {
		return nil, ErrEngineNotReady
	}

	reply, err := e.remote.Login(ctx, email, password)
	if err != nil {
		mapped := remoteError(err)
		if errors.Is(mapped, ErrAccountUnverified) {
			return e.loginUnverified(ctx, email)
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", mapped, func() map[string]string {
			return map[string]string{"email": email}
		})
		return nil, mapped
	}

	if reply.TeamLoginEmail != "" {
		e.metricInc(MetricLoginTeamRedirect)
		e.emitAudit(ctx, auditEventLoginTeamRedirect, true, "", "", nil, func() map[string]string {
			return map[string]string{"email": reply.TeamLoginEmail}
		})
		return &LoginResult{
			Outcome:        LoginTeamRedirect,
			TeamLoginEmail: reply.TeamLoginEmail,
		}, nil
	}

	e.Establish(ctx, AuthPayload{Token: reply.Token, Subject: reply.Subject})

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, reply.Subject.ID, reply.Subject.OrganizationID, nil, nil)

	return &LoginResult{
		Outcome: LoginAuthenticated,
		Subject: reply.Subject,
	}, nil
}

// loginUnverified turns the unverified-email refusal into a guided
// continuation: request a fresh code and hand back the OTP flow. The
// resend is best-effort; an active cooldown or a resend failure still
// leaves the caller in the right flow.
func (e *Engine) loginUnverified(ctx context.Context, email string) (*LoginResult, error) {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrAccountUnverified, func() map[string]string {
		return map[string]string{"email": email}
	})

	flow := e.BeginRegistrationVerification(email)
	if _, err := flow.ResendCode(ctx); err != nil && !errors.Is(err, ErrOTPResendCooldown) {
		log.Print("tendergate: verification code resend after unverified login failed")
	}

	return &LoginResult{
		Outcome: LoginVerifyEmail,
		OTP:     flow,
	}, nil
}

// Register creates an account and returns the OTP flow for confirming
// it. No session exists until the emailed code is verified.
func (e *Engine) Register(ctx context.Context, reg Registration) (*OTPFlow, error) {
	if e == nil || e.remote == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.remote.Register(ctx, reg); err != nil {
		mapped := remoteError(err)
		e.emitAudit(ctx, auditEventRegistration, false, "", "", mapped, func() map[string]string {
			return map[string]string{"email": reg.Email}
		})
		return nil, mapped
	}

	e.emitAudit(ctx, auditEventRegistration, true, "", "", nil, func() map[string]string {
		return map[string]string{"email": reg.Email}
	})

	flow := e.BeginRegistrationVerification(reg.Email)

	// Registration itself sends the first code; start the resend cooldown
	// so an immediate resend tap is a local no-op.
	if err := e.cooldowns.Start(ctx, flow.cooldownKey(), e.config.OTP.DefaultResendCooldown); err != nil {
		log.Print("tendergate: resend cooldown persist failed")
	}

	return flow, nil
}

// UpdateProfile replaces the subject wholesale with the backend's
// post-update view. A completion that lost the generation race is
// discarded rather than applied to someone else's session.
func (e *Engine) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	subject, err := e.currentSubject()
	if err != nil {
		return err
	}

	e.mu.RLock()
	gen := e.generation
	e.mu.RUnlock()

	updated, err := e.remote.UpdateProfile(ctx, update)
	if err != nil {
		mapped := remoteError(err)
		e.emitAudit(ctx, auditEventProfileUpdate, false, subject.ID, subject.OrganizationID, mapped, nil)
		return mapped
	}

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		e.metricInc(MetricStaleCompletionDropped)
		return nil
	}
	e.subject = &updated
	token := e.token
	expiry := e.expiresAt
	e.mu.Unlock()

	snap := snapshotFor(token, expiry, updated)
	if err := e.store.Save(ctx, snap); err != nil {
		log.Print("tendergate: session persist failed")
	}

	e.emitAudit(ctx, auditEventProfileUpdate, true, updated.ID, updated.OrganizationID, nil, nil)
	return nil
}
