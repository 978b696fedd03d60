package tendergate

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventSessionRestore     = "session_restore"
	auditEventSessionEstablish   = "session_establish"
	auditEventSessionExpired     = "session_expired"
	auditEventLogout             = "logout"
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginTeamRedirect  = "login_team_redirect"
	auditEventPermissionFetch    = "permission_fetch"
	auditEventProfileUpdate      = "profile_update"
	auditEventRegistration       = "registration"
	auditEventOTPSubmit          = "otp_submit"
	auditEventOTPResend          = "otp_resend"
	auditEventPasswordReset      = "password_reset"
	auditEventTeamLoginIdentify  = "team_login_identify"
	auditEventTeamLoginComplete  = "team_login_complete"
	auditEventVerificationCreate = "verification_create"
	auditEventVerificationDecide = "verification_decide"
	auditEventVerificationUse    = "verification_use"
	auditEventLocalDenial        = "local_denial"
)

// AuditErrorCode is the stable vocabulary used in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrNotAuthenticated   AuditErrorCode = "not_authenticated"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountUnverified  AuditErrorCode = "account_unverified"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrCodeMalformed      AuditErrorCode = "code_malformed"
	auditErrCodeInvalid        AuditErrorCode = "code_invalid"
	auditErrCodeUsed           AuditErrorCode = "code_used"
	auditErrCodeExpired        AuditErrorCode = "code_expired"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrCooldown           AuditErrorCode = "cooldown_active"
	auditErrOrgNotFound        AuditErrorCode = "organization_not_found"
	auditErrFlowState          AuditErrorCode = "flow_state"
	auditErrTerminal           AuditErrorCode = "request_terminal"
	auditErrReasonRequired     AuditErrorCode = "reason_required"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrStorage            AuditErrorCode = "storage_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	organizationID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:      time.Now().UTC(),
		EventType:      eventType,
		SubjectID:      subjectID,
		OrganizationID: organizationID,
		Success:        success,
		Metadata:       metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return auditErrNotAuthenticated
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrOTPCodeMalformed):
		return auditErrCodeMalformed
	case errors.Is(err, ErrOTPCodeInvalid):
		return auditErrCodeInvalid
	case errors.Is(err, ErrOTPNotFound), errors.Is(err, ErrMemberNotListed):
		return auditErrNotFound
	case errors.Is(err, ErrOTPResendCooldown):
		return auditErrCooldown
	case errors.Is(err, ErrOrganizationNotFound):
		return auditErrOrgNotFound
	case errors.Is(err, ErrFlowState):
		return auditErrFlowState
	case errors.Is(err, ErrRequestTerminal):
		return auditErrTerminal
	case errors.Is(err, ErrRequestCodeExpired):
		return auditErrCodeExpired
	case errors.Is(err, ErrRequestCodeUsed):
		return auditErrCodeUsed
	case errors.Is(err, ErrReasonRequired):
		return auditErrReasonRequired
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrStorageUnavailable):
		return auditErrStorage
	default:
		return auditErrInternal
	}
}
