package tendergate

import "sync/atomic"

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	// MetricSessionRestored counts init-time restores from durable storage.
	MetricSessionRestored MetricID = iota
	// MetricSessionEstablished counts new sessions from any auth event.
	MetricSessionEstablished
	// MetricSessionExpired counts expiry detections at init or on a
	// 401-class response.
	MetricSessionExpired
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricLoginSuccess counts direct logins that established a session.
	MetricLoginSuccess
	// MetricLoginFailure counts refused logins.
	MetricLoginFailure
	// MetricLoginTeamRedirect counts logins answered with a team-login
	// redirect.
	MetricLoginTeamRedirect
	// MetricPermissionFetchSuccess counts applied permission snapshots.
	MetricPermissionFetchSuccess
	// MetricPermissionFetchFailure counts failed fetches (snapshot nil).
	MetricPermissionFetchFailure
	// MetricPermissionSynthesized counts synthesized team-leader sets.
	MetricPermissionSynthesized
	// MetricStaleCompletionDropped counts async completions discarded by
	// the generation check.
	MetricStaleCompletionDropped
	// MetricOTPSubmitSuccess counts accepted one-time codes.
	MetricOTPSubmitSuccess
	// MetricOTPSubmitFailure counts refused or malformed codes.
	MetricOTPSubmitFailure
	// MetricOTPResend counts successful code resends.
	MetricOTPResend
	// MetricOTPResendThrottled counts resends refused by the local
	// cooldown.
	MetricOTPResendThrottled
	// MetricTeamLoginSuccess counts completed team logins.
	MetricTeamLoginSuccess
	// MetricTeamLoginFailure counts failed team-login steps.
	MetricTeamLoginFailure
	// MetricVerificationCreated counts created verification requests.
	MetricVerificationCreated
	// MetricVerificationApproved counts approvals issued by this client.
	MetricVerificationApproved
	// MetricVerificationRejected counts rejections issued by this client.
	MetricVerificationRejected
	// MetricVerificationConsumed counts locally pre-checked code consumes.
	MetricVerificationConsumed
	// MetricVerificationDeniedLocally counts issuer actions stopped by the
	// local evaluator before any network call.
	MetricVerificationDeniedLocally
	// MetricWatcherNotification counts one-time approval notifications
	// raised by the poll watcher.
	MetricWatcherNotification

	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricSessionRestored:           "session_restored",
	MetricSessionEstablished:        "session_established",
	MetricSessionExpired:            "session_expired",
	MetricLogout:                    "logout",
	MetricLoginSuccess:              "login_success",
	MetricLoginFailure:              "login_failure",
	MetricLoginTeamRedirect:         "login_team_redirect",
	MetricPermissionFetchSuccess:    "permission_fetch_success",
	MetricPermissionFetchFailure:    "permission_fetch_failure",
	MetricPermissionSynthesized:     "permission_synthesized",
	MetricStaleCompletionDropped:    "stale_completion_dropped",
	MetricOTPSubmitSuccess:          "otp_submit_success",
	MetricOTPSubmitFailure:          "otp_submit_failure",
	MetricOTPResend:                 "otp_resend",
	MetricOTPResendThrottled:        "otp_resend_throttled",
	MetricTeamLoginSuccess:          "team_login_success",
	MetricTeamLoginFailure:          "team_login_failure",
	MetricVerificationCreated:       "verification_created",
	MetricVerificationApproved:      "verification_approved",
	MetricVerificationRejected:      "verification_rejected",
	MetricVerificationConsumed:      "verification_consumed",
	MetricVerificationDeniedLocally: "verification_denied_locally",
	MetricWatcherNotification:       "watcher_notification",
}

// Name returns the metric's stable export name.
func (id MetricID) Name() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

const cacheLineSize = 64

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds the engine's atomic counters. When disabled, every
// operation is a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics creates a Metrics instance per the given config.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments one counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].value.Add(1)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot deep-copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: map[MetricID]uint64{}}
	if m == nil || !m.enabled {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if v := m.counters[id].value.Load(); v != 0 {
			snap.Counters[id] = v
		}
	}
	return snap
}
