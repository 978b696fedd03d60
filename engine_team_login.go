package tendergate

import (
	"context"
	"errors"
	"sync"
)

// TeamLoginStep is the current position in the team login flow.
type TeamLoginStep uint8

const (
	// StepIdentify collects the organization's shared login email.
	StepIdentify TeamLoginStep = iota
	// StepSelectMember picks who is signing in from the member list.
	StepSelectMember
	// StepAuthenticate collects the selected member's password.
	StepAuthenticate
)

// TeamLoginFlow is the three-step organizational login: identify the
// organization by its shared email, select a member, authenticate as
// that member. Steps advance strictly forward; Back moves exactly one
// step and discards what the abandoned step collected.
type TeamLoginFlow struct {
	engine *Engine

	mu        sync.Mutex
	step      TeamLoginStep
	email     string
	directory TeamDirectory
	memberID  string
}

// BeginTeamLogin starts a team login flow at the identify step.
func (e *Engine) BeginTeamLogin() (*TeamLoginFlow, error) {
	if e == nil || e.remote == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.TeamLogin.Enabled {
		return nil, ErrFlowState
	}
	return &TeamLoginFlow{engine: e}, nil
}

// Step returns the flow's current step.
func (f *TeamLoginFlow) Step() TeamLoginStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Directory returns the member list resolved by Identify. Empty before
// Identify succeeds and after backing out of member selection.
func (f *TeamLoginFlow) Directory() TeamDirectory {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.directory
}

// Identify resolves the shared email to an organization and its member
// list. An email that resolves to no organization is an expected exit:
// the flow stays at this step and the caller redirects to ordinary
// login.
func (f *TeamLoginFlow) Identify(ctx context.Context, email string) error {
	f.mu.Lock()
	if f.step != StepIdentify {
		f.mu.Unlock()
		return ErrFlowState
	}
	f.mu.Unlock()

	e := f.engine
	directory, err := e.remote.LookupOrganizationMembers(ctx, email)
	if err != nil {
		mapped := remoteError(err)
		e.metricInc(MetricTeamLoginFailure)
		e.emitAudit(ctx, auditEventTeamLoginIdentify, false, "", "", mapped, func() map[string]string {
			return map[string]string{"email": email}
		})
		return mapped
	}

	f.mu.Lock()
	f.email = email
	f.directory = directory
	f.step = StepSelectMember
	f.mu.Unlock()

	e.emitAudit(ctx, auditEventTeamLoginIdentify, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"email":        email,
			"organization": directory.OrganizationName,
		}
	})
	return nil
}

// SelectMember picks a member from the resolved directory. Purely local.
func (f *TeamLoginFlow) SelectMember(memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.step != StepSelectMember {
		return ErrFlowState
	}
	for _, m := range f.directory.Members {
		if m.ID == memberID {
			f.memberID = memberID
			f.step = StepAuthenticate
			return nil
		}
	}
	return ErrMemberNotListed
}

// Authenticate completes the flow with the selected member's password.
// Success establishes the session and resets the flow. A wrong password
// keeps the flow here for another attempt; an organization that stopped
// resolving mid-flow forces a full reset to the identify step.
func (f *TeamLoginFlow) Authenticate(ctx context.Context, password string) error {
	f.mu.Lock()
	if f.step != StepAuthenticate {
		f.mu.Unlock()
		return ErrFlowState
	}
	email := f.email
	memberID := f.memberID
	f.mu.Unlock()

	e := f.engine
	payload, err := e.remote.TeamLogin(ctx, email, memberID, password)
	if err != nil {
		mapped := remoteError(err)
		e.metricInc(MetricTeamLoginFailure)
		e.emitAudit(ctx, auditEventTeamLoginComplete, false, memberID, "", mapped, func() map[string]string {
			return map[string]string{"email": email}
		})
		if errors.Is(mapped, ErrOrganizationNotFound) {
			f.reset()
		}
		return mapped
	}

	e.Establish(ctx, payload)
	f.reset()

	e.metricInc(MetricTeamLoginSuccess)
	e.emitAudit(ctx, auditEventTeamLoginComplete, true, payload.Subject.ID, payload.Subject.OrganizationID, nil, nil)
	return nil
}

// Back moves exactly one step toward identify. Leaving member selection
// discards the member list; backing out of the identify step is a
// no-op. Passwords are never retained between steps, so leaving the
// authenticate step has nothing extra to clear.
func (f *TeamLoginFlow) Back() {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.step {
	case StepAuthenticate:
		f.memberID = ""
		f.step = StepSelectMember
	case StepSelectMember:
		f.directory = TeamDirectory{}
		f.step = StepIdentify
	}
}

func (f *TeamLoginFlow) reset() {
	f.mu.Lock()
	f.email = ""
	f.directory = TeamDirectory{}
	f.memberID = ""
	f.step = StepIdentify
	f.mu.Unlock()
}
