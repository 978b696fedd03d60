package tendergate

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/procurity/tendergate/permission"
	"github.com/procurity/tendergate/session"
)

// Engine is the session and authorization core. It mirrors the backend's
// view of who is signed in and what they may do; the backend remains
// authoritative and re-checks everything the engine allows through.
//
// All exported methods are safe for concurrent use. Mutating completions
// of asynchronous work (permission fetches, watcher polls) carry the
// session generation observed at launch and are discarded when the
// session changed underneath them.
type Engine struct {
	config    Config
	remote    RemoteAPI
	store     *session.Store
	cooldowns *CooldownTimer
	audit     *auditDispatcher
	metrics   *Metrics

	mu         sync.RWMutex
	generation uint64
	token      string
	subject    *Subject
	perms      *permission.Set
	expiresAt  time.Time
	loading    bool
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
SESSION LIFECYCLE
====================================
*/

// Init restores a persisted session, if any. An expired or missing
// snapshot leaves the engine signed out without touching the network; a
// live snapshot is confirmed with a who-am-I call before the subject is
// trusted. Init never fails: every restore problem resolves to the
// signed-out state.
func (e *Engine) Init(ctx context.Context) {
	e.mu.Lock()
	e.loading = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
	}()

	snap, err := e.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, session.ErrNoSnapshot) {
			log.Print("tendergate: session restore read failed")
		}
		return
	}

	subject, err := e.remote.Me(ctx)
	if err != nil {
		// The persisted token no longer authenticates; drop it so the
		// next start does not retry.
		if clearErr := e.store.Clear(ctx); clearErr != nil {
			log.Print("tendergate: session restore cleanup failed")
		}
		e.emitAudit(ctx, auditEventSessionRestore, false, snap.Subject.ID, snap.Subject.OrganizationID, remoteError(err), nil)
		return
	}

	expiry := time.UnixMilli(snap.ExpiresAt)

	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.token = snap.Token
	e.subject = &subject
	e.perms = nil
	e.expiresAt = expiry
	e.mu.Unlock()

	e.metricInc(MetricSessionRestored)
	e.emitAudit(ctx, auditEventSessionRestore, true, subject.ID, subject.OrganizationID, nil, nil)

	if subject.OrganizationScoped() {
		go e.fetchPermissions(context.WithoutCancel(ctx), subject, gen)
	}
}

// Establish installs a new authenticated session from a token and the
// subject it belongs to, persists it, and starts the permission fetch
// for organization-scoped subjects. Every successful auth event funnels
// through here.
func (e *Engine) Establish(ctx context.Context, payload AuthPayload) {
	now := time.Now()
	expiry := now.Add(e.config.Session.TTL)
	if e.config.Session.HonorTokenExpiry {
		expiry = tokenExpiry(payload.Token, now, e.config.Session.TTL)
	}

	subject := payload.Subject

	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.token = payload.Token
	e.subject = &subject
	e.perms = nil
	e.expiresAt = expiry
	e.mu.Unlock()

	// Persistence is best-effort: a session that only lives in memory is
	// still a session.
	if err := e.store.Save(ctx, snapshotFor(payload.Token, expiry, subject)); err != nil {
		log.Print("tendergate: session persist failed")
	}

	e.metricInc(MetricSessionEstablished)
	e.emitAudit(ctx, auditEventSessionEstablish, true, subject.ID, subject.OrganizationID, nil, nil)

	if subject.OrganizationScoped() {
		go e.fetchPermissions(context.WithoutCancel(ctx), subject, gen)
	}
}

// Logout clears the session synchronously, in memory and in durable
// storage, then notifies the backend on a best-effort basis. By the time
// Logout returns the engine reports signed-out regardless of what the
// backend call later does.
func (e *Engine) Logout(ctx context.Context) {
	e.mu.Lock()
	e.generation++
	subjectID := ""
	orgID := ""
	if e.subject != nil {
		subjectID = e.subject.ID
		orgID = e.subject.OrganizationID
	}
	e.token = ""
	e.subject = nil
	e.perms = nil
	e.expiresAt = time.Time{}
	e.mu.Unlock()

	if err := e.store.Clear(ctx); err != nil {
		log.Print("tendergate: session clear failed")
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, subjectID, orgID, nil, nil)

	go func(ctx context.Context) {
		if err := e.remote.Logout(ctx); err != nil {
			log.Print("tendergate: server-side logout failed")
		}
	}(context.WithoutCancel(ctx))
}

// Session returns the current snapshot for the presentation layer. An
// expired subject reads as signed out; the lazily detected expiry also
// clears the in-memory state.
func (e *Engine) Session() SessionState {
	e.mu.RLock()
	expired := e.subject != nil && !time.Now().Before(e.expiresAt)
	e.mu.RUnlock()

	if expired {
		e.expire()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	state := SessionState{
		ExpiresAt: e.expiresAt,
		Loading:   e.loading,
	}
	if e.subject != nil {
		subject := *e.subject
		state.Subject = &subject
		state.Permissions = e.perms
	}
	return state
}

// IsExpired reports whether a session existed but ran out.
func (e *Engine) IsExpired() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.subject != nil && !time.Now().Before(e.expiresAt)
}

// Token returns the current bearer token, empty when signed out. The
// embedder attaches it to its own outbound requests.
func (e *Engine) Token() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.token
}

func (e *Engine) expire() {
	e.mu.Lock()
	if e.subject == nil || time.Now().Before(e.expiresAt) {
		e.mu.Unlock()
		return
	}
	e.generation++
	subjectID := e.subject.ID
	orgID := e.subject.OrganizationID
	e.token = ""
	e.subject = nil
	e.perms = nil
	e.expiresAt = time.Time{}
	e.mu.Unlock()

	if err := e.store.Clear(context.Background()); err != nil {
		log.Print("tendergate: expired session clear failed")
	}
	e.metricInc(MetricSessionExpired)
	e.emitAudit(context.Background(), auditEventSessionExpired, true, subjectID, orgID, nil, nil)
}

func snapshotFor(token string, expiry time.Time, subject Subject) *session.Snapshot {
	return &session.Snapshot{
		Token:     token,
		ExpiresAt: expiry.UnixMilli(),
		Subject: session.SubjectRecord{
			ID:             subject.ID,
			Email:          subject.Email,
			Name:           subject.Name,
			Role:           string(subject.Role),
			OrganizationID: subject.OrganizationID,
			MemberRole:     string(subject.MemberRole),
		},
	}
}

// currentSubject returns the live subject or the reason there is none.
func (e *Engine) currentSubject() (Subject, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.subject == nil {
		return Subject{}, ErrNotAuthenticated
	}
	if !time.Now().Before(e.expiresAt) {
		return Subject{}, ErrSessionExpired
	}
	return *e.subject, nil
}

/*
====================================
PERMISSIONS
====================================
*/

// RefreshPermissions synchronously re-fetches the permission snapshot
// for the current organization-scoped subject. A failed fetch stores
// nil rather than stale data.
func (e *Engine) RefreshPermissions(ctx context.Context) error {
	subject, err := e.currentSubject()
	if err != nil {
		return err
	}
	if !subject.OrganizationScoped() {
		return nil
	}

	e.mu.RLock()
	gen := e.generation
	e.mu.RUnlock()

	e.fetchPermissions(ctx, subject, gen)
	return nil
}

// fetchPermissions resolves the subject's capability set and applies it
// under the generation check. On any failure the applied set is nil.
func (e *Engine) fetchPermissions(ctx context.Context, subject Subject, gen uint64) {
	set, err := e.resolvePermissions(ctx, subject)

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		e.metricInc(MetricStaleCompletionDropped)
		return
	}
	e.perms = set
	e.mu.Unlock()

	if err != nil {
		e.metricInc(MetricPermissionFetchFailure)
		e.emitAudit(ctx, auditEventPermissionFetch, false, subject.ID, subject.OrganizationID, remoteError(err), nil)
		return
	}
	e.metricInc(MetricPermissionFetchSuccess)
	e.emitAudit(ctx, auditEventPermissionFetch, true, subject.ID, subject.OrganizationID, nil, nil)
}

func (e *Engine) resolvePermissions(ctx context.Context, subject Subject) (*permission.Set, error) {
	grants, err := e.remote.GetTeamMembers(ctx, subject.OrganizationID)
	if err != nil {
		return nil, err
	}

	for _, g := range grants {
		if g.UserID == subject.ID {
			return permission.FromGrants(g.Grants), nil
		}
	}

	// A leader's grants live in the records of everyone else; no record
	// of their own means unrestricted, not unprivileged.
	if subject.MemberRole == MemberTeamLeader {
		e.metricInc(MetricPermissionSynthesized)
		return permission.Full(), nil
	}

	return nil, nil
}

// HasPermission reports whether the current subject holds the given
// capability. Admins always do; everyone else needs a fetched set that
// grants it.
func (e *Engine) HasPermission(c permission.Capability) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.subject == nil || !time.Now().Before(e.expiresAt) {
		return false
	}
	if e.subject.Role == RoleAdmin {
		return true
	}
	return e.perms.Has(c)
}

// CanPerform evaluates the full authorization rule chain for the current
// subject against a resource and action. Signed-out or expired sessions
// always deny.
func (e *Engine) CanPerform(resource permission.Resource, action permission.Action) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.subject == nil || !time.Now().Before(e.expiresAt) {
		return false
	}
	return permission.CanPerform(e.subject.permissionView(), e.perms, resource, action)
}

/*
====================================
REMOTE ERROR NORMALIZATION
====================================
*/

// remoteError maps a RemoteAPI failure onto the package sentinels.
// Server-classified failures keep their meaning; anything unclassified
// is a transport failure.
func remoteError(err error) error {
	if err == nil {
		return nil
	}

	code, ok := apiCode(err)
	if !ok {
		return errors.Join(ErrBackendUnavailable, err)
	}

	switch code {
	case CodeInvalidCredentials:
		return ErrInvalidCredentials
	case CodeUnverifiedEmail:
		return ErrAccountUnverified
	case CodeCodeInvalid:
		return ErrOTPCodeInvalid
	case CodeNotFound:
		return ErrOTPNotFound
	case CodeOrganizationNotFound:
		return ErrOrganizationNotFound
	case CodePermissionDenied:
		return ErrPermissionDenied
	case CodeSessionExpired:
		return ErrSessionExpired
	case CodeRequestTerminal:
		return ErrRequestTerminal
	case CodeCodeUsed:
		return ErrRequestCodeUsed
	case CodeDuplicateRequest:
		return ErrDuplicateRequest
	default:
		return err
	}
}
