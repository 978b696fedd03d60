package internaldefs

import (
	tendergate "github.com/procurity/tendergate"
)

// CounterDef binds one engine counter to its exported name and help
// string.
type CounterDef struct {
	ID   tendergate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: tendergate.MetricSessionRestored, Name: "tendergate_session_restored_total", Help: "Sessions restored from durable storage at startup."},
	{ID: tendergate.MetricSessionEstablished, Name: "tendergate_session_established_total", Help: "Sessions established by an authentication event."},
	{ID: tendergate.MetricSessionExpired, Name: "tendergate_session_expired_total", Help: "Sessions dropped on expiry detection."},
	{ID: tendergate.MetricLogout, Name: "tendergate_logout_total", Help: "Explicit logouts."},
	{ID: tendergate.MetricLoginSuccess, Name: "tendergate_login_success_total", Help: "Successful direct logins."},
	{ID: tendergate.MetricLoginFailure, Name: "tendergate_login_failure_total", Help: "Refused logins."},
	{ID: tendergate.MetricLoginTeamRedirect, Name: "tendergate_login_team_redirect_total", Help: "Logins redirected into the team login flow."},
	{ID: tendergate.MetricPermissionFetchSuccess, Name: "tendergate_permission_fetch_success_total", Help: "Applied permission snapshots."},
	{ID: tendergate.MetricPermissionFetchFailure, Name: "tendergate_permission_fetch_failure_total", Help: "Failed permission fetches, applied as deny-all."},
	{ID: tendergate.MetricPermissionSynthesized, Name: "tendergate_permission_synthesized_total", Help: "Team-leader permission sets synthesized locally."},
	{ID: tendergate.MetricStaleCompletionDropped, Name: "tendergate_stale_completion_dropped_total", Help: "Asynchronous completions discarded by the generation check."},
	{ID: tendergate.MetricOTPSubmitSuccess, Name: "tendergate_otp_submit_success_total", Help: "Accepted one-time codes."},
	{ID: tendergate.MetricOTPSubmitFailure, Name: "tendergate_otp_submit_failure_total", Help: "Refused or malformed one-time codes."},
	{ID: tendergate.MetricOTPResend, Name: "tendergate_otp_resend_total", Help: "Successful code resends."},
	{ID: tendergate.MetricOTPResendThrottled, Name: "tendergate_otp_resend_throttled_total", Help: "Resends refused by the local cooldown."},
	{ID: tendergate.MetricTeamLoginSuccess, Name: "tendergate_team_login_success_total", Help: "Completed team logins."},
	{ID: tendergate.MetricTeamLoginFailure, Name: "tendergate_team_login_failure_total", Help: "Failed team login steps."},
	{ID: tendergate.MetricVerificationCreated, Name: "tendergate_verification_created_total", Help: "Created verification requests."},
	{ID: tendergate.MetricVerificationApproved, Name: "tendergate_verification_approved_total", Help: "Verification requests approved through this client."},
	{ID: tendergate.MetricVerificationRejected, Name: "tendergate_verification_rejected_total", Help: "Verification requests rejected through this client."},
	{ID: tendergate.MetricVerificationConsumed, Name: "tendergate_verification_consumed_total", Help: "Access codes passed the local consume pre-check."},
	{ID: tendergate.MetricVerificationDeniedLocally, Name: "tendergate_verification_denied_locally_total", Help: "Issuer decisions stopped by the local rule chain."},
	{ID: tendergate.MetricWatcherNotification, Name: "tendergate_watcher_notification_total", Help: "Decision notifications raised by the poll watcher."},
}
