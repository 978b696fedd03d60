package tendergate

import (
	"context"
	"errors"
	"testing"
)

func TestLoginEstablishesSession(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	remote := &fakeRemoteAPI{
		loginReply: LoginReply{Token: "tok", Subject: individualBidder()},
	}
	engine := newTestEngine(t, rdb, remote)

	result, err := engine.Login(context.Background(), "bidder@example.com", "pw")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Outcome != LoginAuthenticated {
		t.Fatalf("unexpected outcome %v", result.Outcome)
	}
	if !engine.Session().Authenticated() {
		t.Fatal("expected authenticated session")
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatal("expected login success counter")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	remote := &fakeRemoteAPI{loginErr: &APIError{Code: CodeInvalidCredentials}}
	engine := newTestEngine(t, rdb, remote)

	if _, err := engine.Login(context.Background(), "e", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if engine.Session().Authenticated() {
		t.Fatal("expected no session")
	}
}

func TestLoginTeamRedirect(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	remote := &fakeRemoteAPI{
		loginReply: LoginReply{TeamLoginEmail: "team@acme.example"},
	}
	engine := newTestEngine(t, rdb, remote)

	result, err := engine.Login(context.Background(), "team@acme.example", "pw")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Outcome != LoginTeamRedirect {
		t.Fatalf("unexpected outcome %v", result.Outcome)
	}
	if result.TeamLoginEmail != "team@acme.example" {
		t.Fatalf("unexpected redirect email %q", result.TeamLoginEmail)
	}
	if engine.Session().Authenticated() {
		t.Fatal("redirect must not establish a session")
	}
}

func TestLoginUnverifiedTriggersResendAndOTPFlow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	remote := &fakeRemoteAPI{loginErr: &APIError{Code: CodeUnverifiedEmail}}
	engine := newTestEngine(t, rdb, remote)

	result, err := engine.Login(context.Background(), "new@example.com", "pw")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Outcome != LoginVerifyEmail {
		t.Fatalf("unexpected outcome %v", result.Outcome)
	}
	if result.OTP == nil || result.OTP.Email() != "new@example.com" {
		t.Fatal("expected OTP flow primed with the login email")
	}
	if got := remote.calls(func(f *fakeRemoteAPI) int { return f.resendRegCalls }); got != 1 {
		t.Fatalf("expected one automatic resend, got %d", got)
	}
	// The resend armed the cooldown: a manual retry right away is local.
	if _, err := result.OTP.ResendCode(context.Background()); !errors.Is(err, ErrOTPResendCooldown) {
		t.Fatalf("expected cooldown, got %v", err)
	}
	if got := remote.calls(func(f *fakeRemoteAPI) int { return f.resendRegCalls }); got != 1 {
		t.Fatalf("cooldown retry must not reach the network, got %d calls", got)
	}
}

func TestRegisterReturnsPrimedOTPFlow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	remote := &fakeRemoteAPI{}
	engine := newTestEngine(t, rdb, remote)

	flow, err := engine.Register(context.Background(), Registration{
		Email:    "new@example.com",
		Password: "pw",
		Name:     "New User",
		Role:     RoleBidder,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if flow.Email() != "new@example.com" {
		t.Fatalf("unexpected flow email %q", flow.Email())
	}
	if engine.Session().Authenticated() {
		t.Fatal("registration must not establish a session")
	}

	// Registration sent the first code; an immediate resend is throttled
	// locally.
	if _, err := flow.ResendCode(context.Background()); !errors.Is(err, ErrOTPResendCooldown) {
		t.Fatalf("expected cooldown, got %v", err)
	}
}

func TestUpdateProfileReplacesSubject(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	updated := individualBidder()
	updated.Name = "Renamed Bidder"

	remote := &fakeRemoteAPI{updatedSubject: updated}
	engine := newTestEngine(t, rdb, remote)

	ctx := context.Background()
	engine.Establish(ctx, AuthPayload{Token: "tok", Subject: individualBidder()})

	if err := engine.UpdateProfile(ctx, ProfileUpdate{Name: "Renamed Bidder"}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if got := engine.Session().Subject.Name; got != "Renamed Bidder" {
		t.Fatalf("unexpected subject name %q", got)
	}
}

func TestUpdateProfileStaleCompletionDiscarded(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	updated := individualBidder()
	updated.Name = "Renamed Bidder"

	remote := &fakeRemoteAPI{updatedSubject: updated}
	engine := newTestEngine(t, rdb, remote)

	ctx := context.Background()
	engine.Establish(ctx, AuthPayload{Token: "tok", Subject: individualBidder()})

	// The session moves on while the update call is in flight.
	remote.onUpdateProfile = func() {
		engine.mu.Lock()
		engine.generation++
		engine.mu.Unlock()
	}

	if err := engine.UpdateProfile(ctx, ProfileUpdate{Name: "Renamed Bidder"}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if got := engine.Session().Subject.Name; got == "Renamed Bidder" {
		t.Fatal("stale completion replaced the subject")
	}
}

func TestUpdateProfileRequiresSession(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, &fakeRemoteAPI{})

	err := engine.UpdateProfile(context.Background(), ProfileUpdate{Name: "x"})
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}
