package tendergate

import "errors"

var (
	// ErrEngineNotReady is returned when a dependency was never wired
	// through the Builder.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrNotAuthenticated is returned by operations that require a live
	// session when none is established.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSessionExpired is returned when the session's expiry has passed or
	// the backend answered with a 401-class response.
	ErrSessionExpired = errors.New("session expired")
	// ErrInvalidCredentials covers bad email/password pairs.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountUnverified means login was refused because the account
	// never confirmed its registration code. The engine has already
	// triggered a code resend when this is returned from Login.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrPermissionDenied is the local evaluator's denial. It must never be
	// silently ignored; the UI action should not have been offered.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrOTPCodeMalformed is the local pre-validation failure for codes
	// that are not exactly six digits. No network call was made.
	ErrOTPCodeMalformed = errors.New("verification code must be six digits")
	// ErrOTPCodeInvalid covers invalid or expired codes; the caller should
	// request a fresh code and submit the latest one.
	ErrOTPCodeInvalid = errors.New("verification code invalid or expired")
	// ErrOTPNotFound means the account behind the flow no longer resolves;
	// registration must be restarted.
	ErrOTPNotFound = errors.New("no pending verification for this email")
	// ErrOTPResendCooldown is returned while the resend cooldown window has
	// not elapsed.
	ErrOTPResendCooldown = errors.New("resend cooldown active")

	// ErrOrganizationNotFound is the recoverable team-login exit: the
	// shared email resolves to no organization and the caller should fall
	// back to ordinary login.
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrFlowState is returned when a flow method is called outside the
	// step that accepts it.
	ErrFlowState = errors.New("operation not valid in current flow step")
	// ErrMemberNotListed is returned when the selected member is not in the
	// candidate list.
	ErrMemberNotListed = errors.New("member not in candidate list")

	// ErrRequestTerminal is returned for transitions attempted on a
	// rejected or used verification request.
	ErrRequestTerminal = errors.New("verification request is terminal")
	// ErrRequestCodeExpired is the local consume pre-check failure for an
	// approved request past its expiry. No network call was made.
	ErrRequestCodeExpired = errors.New("verification code expired")
	// ErrRequestCodeUsed means the access code was already consumed.
	ErrRequestCodeUsed = errors.New("verification code already used")
	// ErrReasonRequired is the local validation failure for a rejection
	// with an empty reason. Nothing was sent to the server.
	ErrReasonRequired = errors.New("rejection reason required")
	// ErrDuplicateRequest means the server refused the create as a
	// duplicate but the open request could not be fetched either.
	ErrDuplicateRequest = errors.New("duplicate verification request")

	// ErrBackendUnavailable wraps transport-level failures, as opposed to
	// server-reported ones. Retried only for idempotent, user-initiated
	// operations.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrStorageUnavailable is returned when durable state cannot be
	// persisted.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
