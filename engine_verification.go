package tendergate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/procurity/tendergate/permission"
)

// CreateVerificationRequest asks for an access code for the given
// tender. A duplicate refusal means an open request already exists; it
// is fetched and returned as if freshly created, since the caller's next
// move is the same either way.
func (e *Engine) CreateVerificationRequest(ctx context.Context, tenderID string) (VerificationRequest, error) {
	subject, err := e.currentSubject()
	if err != nil {
		return VerificationRequest{}, err
	}
	return e.createVerificationRequest(ctx, subject, tenderID, true)
}

// retryOnDuplicate guards the create→list→create fallback: the second
// create never falls back again, so a server that keeps refusing while
// the list shows nothing surfaces ErrDuplicateRequest instead of
// looping.
func (e *Engine) createVerificationRequest(ctx context.Context, subject Subject, tenderID string, retryOnDuplicate bool) (VerificationRequest, error) {
	req, err := e.remote.CreateVerificationRequest(ctx, tenderID)
	if err != nil {
		if ac, ok := apiCode(err); ok && ac == CodeDuplicateRequest && retryOnDuplicate {
			return e.existingRequest(ctx, subject, tenderID)
		}
		mapped := remoteError(err)
		e.emitAudit(ctx, auditEventVerificationCreate, false, subject.ID, subject.OrganizationID, mapped, func() map[string]string {
			return map[string]string{"tender": tenderID}
		})
		return VerificationRequest{}, mapped
	}

	e.metricInc(MetricVerificationCreated)
	e.emitAudit(ctx, auditEventVerificationCreate, true, subject.ID, subject.OrganizationID, nil, func() map[string]string {
		return map[string]string{"tender": tenderID, "request": req.ID}
	})
	return req, nil
}

func (e *Engine) existingRequest(ctx context.Context, subject Subject, tenderID string) (VerificationRequest, error) {
	requests, err := e.remote.ListMyVerificationRequests(ctx)
	if err != nil {
		return VerificationRequest{}, remoteError(err)
	}
	for _, r := range requests {
		if r.TenderID == tenderID && r.Open() {
			return r, nil
		}
	}
	// The duplicate closed between the refusal and the list; one more
	// create attempt settles it either way.
	return e.createVerificationRequest(ctx, subject, tenderID, false)
}

// ListMyVerificationRequests returns the current subject's requests.
func (e *Engine) ListMyVerificationRequests(ctx context.Context) ([]VerificationRequest, error) {
	if _, err := e.currentSubject(); err != nil {
		return nil, err
	}
	requests, err := e.remote.ListMyVerificationRequests(ctx)
	if err != nil {
		return nil, remoteError(err)
	}
	return requests, nil
}

// ListAllVerificationRequests returns the requests awaiting the current
// issuer's decisions.
func (e *Engine) ListAllVerificationRequests(ctx context.Context) ([]VerificationRequest, error) {
	if _, err := e.currentSubject(); err != nil {
		return nil, err
	}
	requests, err := e.remote.ListAllVerificationRequests(ctx)
	if err != nil {
		return nil, remoteError(err)
	}
	return requests, nil
}

// ApproveVerificationRequest approves a pending request. The local rule
// chain is evaluated first; a local deny never reaches the network.
func (e *Engine) ApproveVerificationRequest(ctx context.Context, requestID string) (VerificationRequest, error) {
	subject, err := e.decisionAllowed(ctx, requestID, "approve")
	if err != nil {
		return VerificationRequest{}, err
	}

	req, err := e.remote.ApproveVerificationRequest(ctx, requestID)
	if err != nil {
		return VerificationRequest{}, e.decisionFailed(ctx, subject, requestID, "approve", err)
	}

	e.metricInc(MetricVerificationApproved)
	e.emitAudit(ctx, auditEventVerificationDecide, true, subject.ID, subject.OrganizationID, nil, func() map[string]string {
		return map[string]string{"request": requestID, "decision": "approve"}
	})
	return req, nil
}

// RejectVerificationRequest rejects a pending request. The reason is
// mandatory and checked before anything else.
func (e *Engine) RejectVerificationRequest(ctx context.Context, requestID, reason string) (VerificationRequest, error) {
	if reason == "" {
		return VerificationRequest{}, ErrReasonRequired
	}

	subject, err := e.decisionAllowed(ctx, requestID, "reject")
	if err != nil {
		return VerificationRequest{}, err
	}

	req, err := e.remote.RejectVerificationRequest(ctx, requestID, reason)
	if err != nil {
		return VerificationRequest{}, e.decisionFailed(ctx, subject, requestID, "reject", err)
	}

	e.metricInc(MetricVerificationRejected)
	e.emitAudit(ctx, auditEventVerificationDecide, true, subject.ID, subject.OrganizationID, nil, func() map[string]string {
		return map[string]string{"request": requestID, "decision": "reject"}
	})
	return req, nil
}

func (e *Engine) decisionAllowed(ctx context.Context, requestID, decision string) (Subject, error) {
	subject, err := e.currentSubject()
	if err != nil {
		return Subject{}, err
	}

	resource := permission.Resource{
		Kind:           permission.KindVerification,
		OwnerID:        subject.ID,
		OrganizationID: subject.OrganizationID,
	}
	if !e.CanPerform(resource, permission.ActionManage) {
		e.metricInc(MetricVerificationDeniedLocally)
		e.emitAudit(ctx, auditEventLocalDenial, false, subject.ID, subject.OrganizationID, ErrPermissionDenied, func() map[string]string {
			return map[string]string{"request": requestID, "decision": decision}
		})
		return Subject{}, ErrPermissionDenied
	}
	return subject, nil
}

func (e *Engine) decisionFailed(ctx context.Context, subject Subject, requestID, decision string, err error) error {
	mapped := remoteError(err)
	// A server-side deny after a local allow means the two disagree;
	// worth noticing in logs even though the caller only sees the deny.
	if ac, ok := apiCode(err); ok && ac == CodePermissionDenied {
		log.Print("tendergate: server denied a locally allowed verification decision")
	}
	e.emitAudit(ctx, auditEventVerificationDecide, false, subject.ID, subject.OrganizationID, mapped, func() map[string]string {
		return map[string]string{"request": requestID, "decision": decision}
	})
	return mapped
}

// ConsumeVerificationCode yields the access code to attach to an
// application submit, after checking the request can still be used at
// all. Terminal and expired requests fail here, before the server ever
// sees the doomed submission.
func (e *Engine) ConsumeVerificationCode(ctx context.Context, req VerificationRequest) (string, error) {
	subject, err := e.currentSubject()
	if err != nil {
		return "", err
	}

	var reason error
	switch {
	case req.Status == RequestUsed:
		reason = ErrRequestCodeUsed
	case req.Terminal():
		reason = ErrRequestTerminal
	case !req.Usable(time.Now()):
		if req.Status == RequestApproved {
			reason = ErrRequestCodeExpired
		} else {
			reason = ErrRequestTerminal
		}
	}
	if reason != nil {
		e.emitAudit(ctx, auditEventVerificationUse, false, subject.ID, subject.OrganizationID, reason, func() map[string]string {
			return map[string]string{"request": req.ID}
		})
		return "", reason
	}

	e.metricInc(MetricVerificationConsumed)
	e.emitAudit(ctx, auditEventVerificationUse, true, subject.ID, subject.OrganizationID, nil, func() map[string]string {
		return map[string]string{"request": req.ID}
	})
	return req.Code, nil
}

/*
====================================
WATCHER
====================================
*/

// VerificationNotice is one decision observed by the watcher.
type VerificationNotice struct {
	Request VerificationRequest
	// Approved distinguishes the two observable transitions,
	// pending→approved and pending→rejected.
	Approved bool
}

// VerificationWatcher polls the subject's requests and raises exactly
// one notice per observed decision. Poll results racing the watcher's
// cancellation are discarded.
type VerificationWatcher struct {
	engine *Engine
	notify func(VerificationNotice)
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	seen map[string]RequestStatus
}

// WatchVerificationRequests starts a watcher polling at the configured
// interval until ctx is cancelled or Stop is called. notify runs on the
// watcher goroutine; it must not block.
func (e *Engine) WatchVerificationRequests(ctx context.Context, notify func(VerificationNotice)) *VerificationWatcher {
	ctx, cancel := context.WithCancel(ctx)
	w := &VerificationWatcher{
		engine: e,
		notify: notify,
		cancel: cancel,
		done:   make(chan struct{}),
		seen:   make(map[string]RequestStatus),
	}

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(e.config.Verification.PollInterval)
		defer ticker.Stop()

		w.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll(ctx)
			}
		}
	}()

	return w
}

// Stop cancels the watcher and waits for its goroutine to exit.
func (w *VerificationWatcher) Stop() {
	w.cancel()
	<-w.done
}

func (w *VerificationWatcher) poll(ctx context.Context) {
	e := w.engine
	requests, err := e.remote.ListMyVerificationRequests(ctx)
	if err != nil {
		return
	}
	if ctx.Err() != nil {
		return
	}

	w.mu.Lock()
	var notices []VerificationNotice
	for _, r := range requests {
		prev, known := w.seen[r.ID]
		w.seen[r.ID] = r.Status
		if !known || prev != RequestPending {
			continue
		}
		switch r.Status {
		case RequestApproved:
			notices = append(notices, VerificationNotice{Request: r, Approved: true})
		case RequestRejected:
			notices = append(notices, VerificationNotice{Request: r})
		}
	}
	w.mu.Unlock()

	for _, n := range notices {
		e.metricInc(MetricWatcherNotification)
		if w.notify != nil {
			w.notify(n)
		}
	}
}
