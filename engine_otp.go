package tendergate

import (
	"context"
	"log"
	"sync"
	"time"
)

type otpPurpose string

const (
	otpPurposeRegistration otpPurpose = "registration"
	otpPurposeReset        otpPurpose = "reset"
)

// OTPOutcome classifies a successful code submission.
type OTPOutcome uint8

const (
	// OTPOutcomeAuthenticated means the registration code was accepted
	// and a session was established.
	OTPOutcomeAuthenticated OTPOutcome = iota
	// OTPOutcomeResetReady means the reset code was accepted; the flow is
	// ready for CompleteReset.
	OTPOutcomeResetReady
	// OTPOutcomeAlreadyVerified means the account finished verification
	// some other way. Terminal success; the caller proceeds to login.
	OTPOutcomeAlreadyVerified
)

// ResendResult is the answer to a resend attempt. Wait is how long until
// the next resend may fire.
type ResendResult struct {
	Wait            time.Duration
	AlreadyVerified bool
}

// OTPFlow drives one email-code exchange, either confirming a fresh
// registration or authorizing a password reset. Codes are validated
// locally for shape before any network traffic; the server alone decides
// whether a well-formed code is the right one.
//
// Resending invalidates the previous code server-side, so a code typed
// before the resend failing afterwards is expected, recoverable
// behavior, not a defect.
type OTPFlow struct {
	engine  *Engine
	purpose otpPurpose
	email   string

	mu sync.Mutex
	// draft holds digits the embedder buffered for restore across a UI
	// teardown. Cleared on resend since they can no longer match.
	draft        string
	verifiedCode string
}

// BeginRegistrationVerification starts an OTP flow confirming the
// account registered under email.
func (e *Engine) BeginRegistrationVerification(email string) *OTPFlow {
	return &OTPFlow{engine: e, purpose: otpPurposeRegistration, email: email}
}

// BeginPasswordReset starts an OTP flow authorizing a password reset for
// email. The backend sends the code as a side effect of the first
// ResendCode call.
func (e *Engine) BeginPasswordReset(email string) *OTPFlow {
	return &OTPFlow{engine: e, purpose: otpPurposeReset, email: email}
}

// Email returns the address the flow was started for.
func (f *OTPFlow) Email() string {
	return f.email
}

// SaveDraft buffers partially entered digits for later restore.
func (f *OTPFlow) SaveDraft(digits string) {
	f.mu.Lock()
	f.draft = digits
	f.mu.Unlock()
}

// Draft returns the buffered digits, empty after a resend.
func (f *OTPFlow) Draft() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

func (f *OTPFlow) cooldownKey() string {
	return "otp:" + string(f.purpose) + ":" + f.email
}

func wellFormedCode(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SubmitCode validates the code locally and presents it to the backend.
// Malformed codes never reach the network. For a registration flow an
// accepted code establishes the session; for a reset flow it arms
// CompleteReset.
func (f *OTPFlow) SubmitCode(ctx context.Context, code string) (OTPOutcome, error) {
	e := f.engine
	if e == nil || e.remote == nil {
		return 0, ErrEngineNotReady
	}

	if !wellFormedCode(code, e.config.OTP.CodeDigits) {
		e.metricInc(MetricOTPSubmitFailure)
		e.emitAudit(ctx, auditEventOTPSubmit, false, "", "", ErrOTPCodeMalformed, f.auditMeta)
		return 0, ErrOTPCodeMalformed
	}

	switch f.purpose {
	case otpPurposeRegistration:
		payload, err := e.remote.VerifyRegistrationCode(ctx, f.email, code)
		if err != nil {
			if ac, ok := apiCode(err); ok && ac == CodeAlreadyVerified {
				e.emitAudit(ctx, auditEventOTPSubmit, true, "", "", nil, f.auditMeta)
				return OTPOutcomeAlreadyVerified, nil
			}
			return 0, f.submitFailed(ctx, err)
		}

		e.Establish(ctx, payload)
		e.metricInc(MetricOTPSubmitSuccess)
		e.emitAudit(ctx, auditEventOTPSubmit, true, payload.Subject.ID, payload.Subject.OrganizationID, nil, f.auditMeta)
		return OTPOutcomeAuthenticated, nil

	case otpPurposeReset:
		if err := e.remote.VerifyResetCode(ctx, f.email, code); err != nil {
			return 0, f.submitFailed(ctx, err)
		}

		f.mu.Lock()
		f.verifiedCode = code
		f.mu.Unlock()

		e.metricInc(MetricOTPSubmitSuccess)
		e.emitAudit(ctx, auditEventOTPSubmit, true, "", "", nil, f.auditMeta)
		return OTPOutcomeResetReady, nil
	}

	return 0, ErrFlowState
}

func (f *OTPFlow) submitFailed(ctx context.Context, err error) error {
	e := f.engine
	mapped := remoteError(err)
	e.metricInc(MetricOTPSubmitFailure)
	e.emitAudit(ctx, auditEventOTPSubmit, false, "", "", mapped, f.auditMeta)
	return mapped
}

// ResendCode asks the backend for a fresh code unless the local cooldown
// has not elapsed, in which case nothing is sent and the remaining wait
// comes back under ErrOTPResendCooldown. A successful resend starts the
// next cooldown from the server-suggested wait, or the configured
// default when the server suggests none, and discards any buffered
// draft.
func (f *OTPFlow) ResendCode(ctx context.Context) (ResendResult, error) {
	e := f.engine
	if e == nil || e.remote == nil {
		return ResendResult{}, ErrEngineNotReady
	}

	if remaining := e.cooldowns.Remaining(ctx, f.cooldownKey()); remaining > 0 {
		e.metricInc(MetricOTPResendThrottled)
		return ResendResult{Wait: remaining}, ErrOTPResendCooldown
	}

	var (
		info ResendInfo
		err  error
	)
	switch f.purpose {
	case otpPurposeRegistration:
		info, err = e.remote.ResendRegistrationCode(ctx, f.email)
	case otpPurposeReset:
		info, err = e.remote.ResendResetCode(ctx, f.email)
	default:
		return ResendResult{}, ErrFlowState
	}
	if err != nil {
		if ac, ok := apiCode(err); ok && ac == CodeAlreadyVerified && f.purpose == otpPurposeRegistration {
			e.emitAudit(ctx, auditEventOTPResend, true, "", "", nil, f.auditMeta)
			return ResendResult{AlreadyVerified: true}, nil
		}
		mapped := remoteError(err)
		e.emitAudit(ctx, auditEventOTPResend, false, "", "", mapped, f.auditMeta)
		return ResendResult{}, mapped
	}

	wait := e.config.OTP.DefaultResendCooldown
	if info.RetryAfterSeconds > 0 {
		wait = time.Duration(info.RetryAfterSeconds) * time.Second
	}
	if err := e.cooldowns.Start(ctx, f.cooldownKey(), wait); err != nil {
		log.Print("tendergate: resend cooldown persist failed")
	}

	f.mu.Lock()
	f.draft = ""
	f.verifiedCode = ""
	f.mu.Unlock()

	e.metricInc(MetricOTPResend)
	e.emitAudit(ctx, auditEventOTPResend, true, "", "", nil, f.auditMeta)
	return ResendResult{Wait: wait}, nil
}

// ResendWait reports how long until ResendCode will fire, zero when it
// would fire now.
func (f *OTPFlow) ResendWait(ctx context.Context) time.Duration {
	if f.engine == nil {
		return 0
	}
	return f.engine.cooldowns.Remaining(ctx, f.cooldownKey())
}

// CompleteReset sets the new password using the code accepted by
// SubmitCode. The code is re-presented to the backend, which validates
// it again; nothing is ever marked verified locally.
func (f *OTPFlow) CompleteReset(ctx context.Context, newPassword string) error {
	e := f.engine
	if e == nil || e.remote == nil {
		return ErrEngineNotReady
	}
	if f.purpose != otpPurposeReset {
		return ErrFlowState
	}

	f.mu.Lock()
	code := f.verifiedCode
	f.mu.Unlock()
	if code == "" {
		return ErrFlowState
	}

	if err := e.remote.ResetPassword(ctx, f.email, code, newPassword); err != nil {
		mapped := remoteError(err)
		e.emitAudit(ctx, auditEventPasswordReset, false, "", "", mapped, f.auditMeta)
		return mapped
	}

	f.mu.Lock()
	f.verifiedCode = ""
	f.mu.Unlock()

	e.emitAudit(ctx, auditEventPasswordReset, true, "", "", nil, f.auditMeta)
	return nil
}

func (f *OTPFlow) auditMeta() map[string]string {
	return map[string]string{
		"email":   f.email,
		"purpose": string(f.purpose),
	}
}
