package tendergate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/procurity/tendergate/permission"
	"github.com/procurity/tendergate/session"
	"github.com/redis/go-redis/v9"
)

type fakeRemoteAPI struct {
	mu sync.Mutex

	loginReply LoginReply
	loginErr   error

	meSubject Subject
	meErr     error

	registerErr error

	updatedSubject  Subject
	updateErr       error
	onUpdateProfile func()

	logoutErr error

	verifyRegPayload AuthPayload
	verifyRegErr     error
	verifyResetErr   error
	resetPasswordErr error

	resendInfo ResendInfo
	resendErr  error

	directory    TeamDirectory
	directoryErr error

	teamLoginPayload AuthPayload
	teamLoginErr     error

	grants    []TeamMemberGrant
	grantsErr error

	createReply VerificationRequest
	createErr   error

	myRequests    []VerificationRequest
	myRequestsErr error
	allRequests   []VerificationRequest

	approveReply VerificationRequest
	approveErr   error
	rejectReply  VerificationRequest
	rejectErr    error

	loginCalls          int
	meCalls             int
	registerCalls       int
	updateProfileCalls  int
	logoutCalls         int
	verifyRegCalls      int
	verifyResetCalls    int
	resetPasswordCalls  int
	resendRegCalls      int
	resendResetCalls    int
	lookupCalls         int
	teamLoginCalls      int
	getTeamMembersCalls int
	createCalls         int
	listMyCalls         int
	listAllCalls        int
	approveCalls        int
	rejectCalls         int

	lastVerifiedCode  string
	lastResetPassword string
	lastTeamLogin     [3]string
	lastRejectReason  string
}

func (f *fakeRemoteAPI) Login(_ context.Context, _, _ string) (LoginReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	return f.loginReply, f.loginErr
}

func (f *fakeRemoteAPI) Me(_ context.Context) (Subject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	return f.meSubject, f.meErr
}

func (f *fakeRemoteAPI) Register(_ context.Context, _ Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
	return f.registerErr
}

func (f *fakeRemoteAPI) UpdateProfile(_ context.Context, _ ProfileUpdate) (Subject, error) {
	f.mu.Lock()
	f.updateProfileCalls++
	hook := f.onUpdateProfile
	subject, err := f.updatedSubject, f.updateErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return subject, err
}

func (f *fakeRemoteAPI) Logout(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeRemoteAPI) VerifyRegistrationCode(_ context.Context, _, code string) (AuthPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyRegCalls++
	f.lastVerifiedCode = code
	return f.verifyRegPayload, f.verifyRegErr
}

func (f *fakeRemoteAPI) VerifyResetCode(_ context.Context, _, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyResetCalls++
	f.lastVerifiedCode = code
	return f.verifyResetErr
}

func (f *fakeRemoteAPI) ResetPassword(_ context.Context, _, _, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetPasswordCalls++
	f.lastResetPassword = newPassword
	return f.resetPasswordErr
}

func (f *fakeRemoteAPI) ResendRegistrationCode(_ context.Context, _ string) (ResendInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resendRegCalls++
	return f.resendInfo, f.resendErr
}

func (f *fakeRemoteAPI) ResendResetCode(_ context.Context, _ string) (ResendInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resendResetCalls++
	return f.resendInfo, f.resendErr
}

func (f *fakeRemoteAPI) LookupOrganizationMembers(_ context.Context, _ string) (TeamDirectory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls++
	return f.directory, f.directoryErr
}

func (f *fakeRemoteAPI) TeamLogin(_ context.Context, email, memberID, password string) (AuthPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teamLoginCalls++
	f.lastTeamLogin = [3]string{email, memberID, password}
	return f.teamLoginPayload, f.teamLoginErr
}

func (f *fakeRemoteAPI) GetTeamMembers(_ context.Context, _ string) ([]TeamMemberGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getTeamMembersCalls++
	return f.grants, f.grantsErr
}

func (f *fakeRemoteAPI) CreateVerificationRequest(_ context.Context, _ string) (VerificationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return f.createReply, f.createErr
}

func (f *fakeRemoteAPI) ListMyVerificationRequests(_ context.Context) ([]VerificationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listMyCalls++
	return f.myRequests, f.myRequestsErr
}

func (f *fakeRemoteAPI) ListAllVerificationRequests(_ context.Context) ([]VerificationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listAllCalls++
	return f.allRequests, nil
}

func (f *fakeRemoteAPI) ApproveVerificationRequest(_ context.Context, _ string) (VerificationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approveCalls++
	return f.approveReply, f.approveErr
}

func (f *fakeRemoteAPI) RejectVerificationRequest(_ context.Context, _, reason string) (VerificationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectCalls++
	f.lastRejectReason = reason
	return f.rejectReply, f.rejectErr
}

func (f *fakeRemoteAPI) calls(read func(*fakeRemoteAPI) int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return read(f)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestEngine(t *testing.T, rdb *redis.Client, remote RemoteAPI) *Engine {
	t.Helper()

	cfg := defaultConfig()
	cfg.Session.StorageNamespace = "tg-test"

	return &Engine{
		config:    cfg,
		remote:    remote,
		store:     session.NewStore(rdb, cfg.Session.StorageNamespace),
		cooldowns: newCooldownTimer(rdb, cfg.Session.StorageNamespace),
		metrics:   NewMetrics(cfg.Metrics),
	}
}

func waitForPermissions(t *testing.T, e *Engine) *permission.Set {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if set := e.Session().Permissions; set != nil {
			return set
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("permission fetch never completed")
	return nil
}

func orgLeader() Subject {
	return Subject{
		ID:             "lead1",
		Email:          "lead@acme.example",
		Name:           "Acme Lead",
		Role:           RoleTeamMember,
		OrganizationID: "org1",
		MemberRole:     MemberTeamLeader,
	}
}

func orgMember() Subject {
	return Subject{
		ID:             "m1",
		Email:          "member@acme.example",
		Name:           "Acme Member",
		Role:           RoleTeamMember,
		OrganizationID: "org1",
		MemberRole:     MemberRegular,
	}
}

func individualBidder() Subject {
	return Subject{
		ID:    "b1",
		Email: "bidder@example.com",
		Name:  "Solo Bidder",
		Role:  RoleBidder,
	}
}

func TestEstablishAndSession(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	remote := &fakeRemoteAPI{}
	engine := newTestEngine(t, rdb, remote)

	engine.Establish(context.Background(), AuthPayload{Token: "tok", Subject: individualBidder()})

	state := engine.Session()
	if !state.Authenticated() {
		t.Fatal("expected authenticated session")
	}
	if state.Subject.ID != "b1" {
		t.Fatalf("unexpected subject %q", state.Subject.ID)
	}
	if state.Permissions != nil {
		t.Fatal("individual operators carry no permission snapshot")
	}
	if engine.Token() != "tok" {
		t.Fatalf("unexpected token %q", engine.Token())
	}

	// Individual subjects never trigger a grant fetch.
	if got := remote.calls(func(f *fakeRemoteAPI) int { return f.getTeamMembersCalls }); got != 0 {
		t.Fatalf("GetTeamMembers called %d times", got)
	}
}

func TestEstablishFetchesPermissionsForOrgSubject(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	remote := &fakeRemoteAPI{
		grants: []TeamMemberGrant{
			{UserID: "m1", Grants: map[string]bool{"canCreateTenders": true}},
		},
	}
	engine := newTestEngine(t, rdb, remote)

	engine.Establish(context.Background(), AuthPayload{Token: "tok", Subject: orgMember()})

	set := waitForPermissions(t, engine)
	if !set.Has(permission.CapCreateTenders) {
		t.Fatal("expected granted capability")
	}
	if set.Has(permission.CapDeleteTenders) {
		t.Fatal("expected ungranted capability absent")
	}
}

func TestTeamLeaderWithoutGrantRecordGetsFullSet(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	remote := &fakeRemoteAPI{
		grants: []TeamMemberGrant{
			{UserID: "someone-else", Grants: map[string]bool{}},
		},
	}
	engine := newTestEngine(t, rdb, remote)

	engine.Establish(context.Background(), AuthPayload{Token: "tok", Subject: orgLeader()})

	set := waitForPermissions(t, engine)
	for _, c := range permission.Capabilities() {
		if !set.Has(c) {
			t.Fatalf("synthesized leader set missing %s", c)
		}
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricPermissionSynthesized] != 1 {
		t.Fatal("expected synthesized counter incremented")
	}
}

func TestPermissionFetchFailureDeniesAll(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	remote := &fakeRemoteAPI{grantsErr: &APIError{Code: CodeSessionExpired}}
	engine := newTestEngine(t, rdb, remote)

	engine.Establish(context.Background(), AuthPayload{Token: "tok", Subject: orgMember()})

	if err := engine.RefreshPermissions(context.Background()); err != nil {
		t.Fatalf("RefreshPermissions failed: %v", err)
	}

	if engine.HasPermission(permission.CapCreateTenders) {
		t.Fatal("failed fetch must deny")
	}
	resource := permission.Resource{Kind: permission.KindTender, OrganizationID: "org1"}
	if engine.CanPerform(resource, permission.ActionCreate) {
		t.Fatal("failed fetch must deny CanPerform")
	}
}

func TestStaleFetchCompletionDiscarded(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	remote := &fakeRemoteAPI{
		grants: []TeamMemberGrant{
			{UserID: "m1", Grants: map[string]bool{"canCreateTenders": true}},
		},
	}
	engine := newTestEngine(t, rdb, remote)

	ctx := context.Background()
	engine.Establish(ctx, AuthPayload{Token: "tok", Subject: orgMember()})

	engine.mu.RLock()
	staleGen := engine.generation
	engine.mu.RUnlock()

	// The session moved on before the fetch completed.
	engine.Logout(ctx)

	engine.fetchPermissions(ctx, orgMember(), staleGen)

	if engine.Session().Permissions != nil {
		t.Fatal("stale completion applied to a logged-out engine")
	}
	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricStaleCompletionDropped] == 0 {
		t.Fatal("expected stale completion counter incremented")
	}
}

func TestInitRestoresPersistedSession(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	remote := &fakeRemoteAPI{meSubject: individualBidder()}

	first := newTestEngine(t, rdb, remote)
	first.Establish(ctx, AuthPayload{Token: "tok", Subject: individualBidder()})

	second := newTestEngine(t, rdb, remote)
	second.Init(ctx)

	state := second.Session()
	if !state.Authenticated() {
		t.Fatal("expected restored session")
	}
	if state.Subject.ID != "b1" {
		t.Fatalf("unexpected restored subject %q", state.Subject.ID)
	}
	if got := remote.calls(func(f *fakeRemoteAPI) int { return f.meCalls }); got != 1 {
		t.Fatalf("expected exactly one who-am-I call, got %d", got)
	}
	if state.Loading {
		t.Fatal("loading flag still set after Init returned")
	}
}

func TestInitWithExpiredSnapshotSkipsNetwork(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	remote := &fakeRemoteAPI{meSubject: individualBidder()}

	first := newTestEngine(t, rdb, remote)
	first.config.Session.TTL = 10 * time.Millisecond
	first.Establish(ctx, AuthPayload{Token: "tok", Subject: individualBidder()})

	time.Sleep(20 * time.Millisecond)

	second := newTestEngine(t, rdb, remote)
	second.Init(ctx)

	if second.Session().Authenticated() {
		t.Fatal("expected no session from expired snapshot")
	}
	if got := remote.calls(func(f *fakeRemoteAPI) int { return f.meCalls }); got != 0 {
		t.Fatalf("expired snapshot must not reach the network, got %d calls", got)
	}
}

func TestInitRejectedByServerClearsSnapshot(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	remote := &fakeRemoteAPI{meErr: &APIError{Code: CodeSessionExpired}}

	first := newTestEngine(t, rdb, remote)
	first.Establish(ctx, AuthPayload{Token: "tok", Subject: individualBidder()})

	second := newTestEngine(t, rdb, remote)
	second.Init(ctx)

	if second.Session().Authenticated() {
		t.Fatal("expected no session when the server rejects the token")
	}
	if mr.Exists("tg-test:session") {
		t.Fatal("expected rejected snapshot cleared")
	}
}

func TestSessionExpiryDetectedLazily(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	remote := &fakeRemoteAPI{}
	engine := newTestEngine(t, rdb, remote)
	engine.config.Session.TTL = 10 * time.Millisecond

	engine.Establish(context.Background(), AuthPayload{Token: "tok", Subject: individualBidder()})
	if !engine.Session().Authenticated() {
		t.Fatal("expected live session")
	}

	time.Sleep(20 * time.Millisecond)

	if !engine.IsExpired() {
		t.Fatal("expected IsExpired")
	}
	state := engine.Session()
	if state.Authenticated() || state.Subject != nil {
		t.Fatal("expected expired session cleared")
	}
	if mr.Exists("tg-test:session") {
		t.Fatal("expected persisted snapshot cleared on expiry")
	}
	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricSessionExpired] != 1 {
		t.Fatal("expected expiry counter incremented")
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	remote := &fakeRemoteAPI{}
	engine := newTestEngine(t, rdb, remote)

	engine.Establish(ctx, AuthPayload{Token: "tok", Subject: individualBidder()})
	engine.Logout(ctx)

	if engine.Session().Authenticated() {
		t.Fatal("expected signed-out state")
	}
	if engine.Token() != "" {
		t.Fatal("expected token cleared")
	}
	if mr.Exists("tg-test:session") {
		t.Fatal("expected persisted snapshot cleared")
	}

	// Server notification is asynchronous best-effort.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if remote.calls(func(f *fakeRemoteAPI) int { return f.logoutCalls }) == 1 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("server-side logout never attempted")
}

func TestHonorTokenExpiryUsesEarlierClaim(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	remote := &fakeRemoteAPI{}
	engine := newTestEngine(t, rdb, remote)

	claimExpiry := time.Now().Add(time.Hour)
	token := testJWT(t, claimExpiry)

	engine.Establish(context.Background(), AuthPayload{Token: token, Subject: individualBidder()})

	got := engine.Session().ExpiresAt
	if diff := got.Sub(claimExpiry); diff < -2*time.Second || diff > 2*time.Second {
		t.Fatalf("expected expiry near claim, got %v", got)
	}
}
