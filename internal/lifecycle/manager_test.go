package lifecycle_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"heartlink.io/trustengine/internal/audit"
	"heartlink.io/trustengine/internal/lifecycle"
	"heartlink.io/trustengine/internal/moderation"
	apperrors "heartlink.io/trustengine/internal/pkg/errors"
	"heartlink.io/trustengine/internal/pkg/logger"
	"heartlink.io/trustengine/internal/userdata"
)

func TestMain(m *testing.M) {
	logger.InitForTest()
	m.Run()
}

type fixture struct {
	manager    *lifecycle.Manager
	users      *userdata.Store
	exports    *lifecycle.MemoryExportStore
	deletions  *lifecycle.MemoryDeletionStore
	uploader   *lifecycle.MemoryUploader
	auditStore *audit.MemoryStore
	ledger     *audit.Ledger
	reviews    *moderation.ReviewQueue
	now        *time.Time
}

// newFixture wires a Manager against in-memory collaborators with a
// controllable clock. Worker pools are nil so exports process inline.
func newFixture(t *testing.T, opts ...func(*lifecycle.Deps)) *fixture {
	t.Helper()

	start := time.Now()
	now := &start
	clock := func() time.Time { return *now }

	users := userdata.NewStore()
	exports := lifecycle.NewMemoryExportStore()
	deletions := lifecycle.NewMemoryDeletionStore()
	uploader := lifecycle.NewMemoryUploader()
	auditStore := audit.NewMemoryStore()
	ledger := audit.NewLedger(auditStore, nil, audit.DefaultConfig(), audit.WithClock(clock))
	reviews := moderation.NewReviewQueue(users, ledger)

	deps := lifecycle.Deps{
		Exports:   exports,
		Deletions: deletions,
		Users:     users,
		Collector: users,
		Uploader:  uploader,
		Purger:    users,
		Cleaner:   reviews,
		Ledger:    ledger,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	manager := lifecycle.NewManager(lifecycle.DefaultConfig(), deps, lifecycle.WithClock(clock))
	return &fixture{
		manager:    manager,
		users:      users,
		exports:    exports,
		deletions:  deletions,
		uploader:   uploader,
		auditStore: auditStore,
		ledger:     ledger,
		reviews:    reviews,
		now:        now,
	}
}

func (f *fixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func seedUser(f *fixture, id string) {
	f.users.AddUser(userdata.User{
		ID:              id,
		Email:           id + "@example.com",
		Name:            "Test User",
		Bio:             "likes long walks",
		PasswordHash:    "argon2id$secret-hash",
		TwoFactorSecret: "JBSWY3DPEHPK3PXP",
	})
}

func TestRequestExport_CompletesWithBundle(t *testing.T) {
	f := newFixture(t)
	seedUser(f, "u1")
	f.users.AddPhoto(userdata.Photo{ID: "p1", UserID: "u1", URL: "https://cdn/p1.jpg"})
	f.users.AddMessage(userdata.Message{ID: "m-sent", SenderID: "u1", RecipientID: "u2", Body: "hi"})
	f.users.AddMessage(userdata.Message{ID: "m-received", SenderID: "u2", RecipientID: "u1", Body: "hey"})
	f.users.AddMessage(userdata.Message{ID: "m-other", SenderID: "u2", RecipientID: "u3", Body: "yo"})
	f.users.AddReport(userdata.Report{ID: "rep-filed", ReporterID: "u1", ReportedID: "u2", Status: "pending"})
	f.users.AddReport(userdata.Report{ID: "rep-against", ReporterID: "u3", ReportedID: "u1", Status: "resolved"})

	req, err := f.manager.RequestExport(context.Background(), "u1")
	if err != nil {
		t.Fatalf("RequestExport: %v", err)
	}
	if req.Status != lifecycle.ExportPending {
		t.Errorf("returned status = %q, want pending", req.Status)
	}

	// Pools are nil, so processing already ran inline.
	status, err := f.manager.ExportStatus(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ExportStatus: %v", err)
	}
	if status.Status != lifecycle.ExportCompleted {
		t.Fatalf("status = %q, want completed (error: %q)", status.Status, status.Error)
	}
	if status.Location == "" || status.CompletedAt == nil {
		t.Errorf("completed export missing location/completedAt: %+v", status)
	}

	data, ok := f.uploader.Bundle(status.Location)
	if !ok {
		t.Fatalf("bundle not found at %s", status.Location)
	}
	body := string(data)
	// Conversations and reports belong to both parties: the bundle holds
	// received messages and reports against the user, not just authored ones.
	for _, want := range []string{"p1.jpg", `"audit_log"`, `"messages"`, "m-sent", "m-received", "rep-filed", "rep-against"} {
		if !strings.Contains(body, want) {
			t.Errorf("bundle missing %s", want)
		}
	}
	if strings.Contains(body, "m-other") {
		t.Error("bundle includes a conversation the user is not part of")
	}
	// Server-side secrets must never appear in an export.
	for _, secret := range []string{"argon2id$secret-hash", "JBSWY3DPEHPK3PXP"} {
		if strings.Contains(body, secret) {
			t.Errorf("bundle leaks secret %q", secret)
		}
	}

	events, err := f.auditStore.Query(context.Background(), audit.Filter{Action: audit.ActionExportCompleted})
	if err != nil || len(events) != 1 {
		t.Errorf("want 1 export completed audit event, got %d (err %v)", len(events), err)
	}
}

func TestRequestExport_RejectsInProgress(t *testing.T) {
	f := newFixture(t)
	seedUser(f, "u1")

	pending := &lifecycle.ExportRequest{
		ID: "exp-existing", UserID: "u1", Status: lifecycle.ExportProcessing,
		RequestedAt: *f.now,
	}
	if err := f.exports.Insert(context.Background(), pending); err != nil {
		t.Fatal(err)
	}

	_, err := f.manager.RequestExport(context.Background(), "u1")
	if err == nil {
		t.Fatal("expected error for duplicate export request")
	}
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeExportInProgress {
		t.Errorf("got %v, want %s", err, apperrors.CodeExportInProgress)
	}
	if !errors.Is(err, apperrors.ErrAlreadyInProgress) {
		t.Error("error should unwrap to ErrAlreadyInProgress")
	}
}

func TestRequestExport_FailedDoesNotBlockRetry(t *testing.T) {
	f := newFixture(t)
	// No user seeded: collection fails and the request lands in failed.

	_, err := f.manager.RequestExport(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("RequestExport: %v", err)
	}
	status, err := f.manager.ExportStatus(context.Background(), "ghost")
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != lifecycle.ExportFailed || status.Error == "" {
		t.Fatalf("status = %+v, want failed with error", status)
	}

	// A terminal request does not block a new one.
	f.advance(time.Minute)
	if _, err := f.manager.RequestExport(context.Background(), "ghost"); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestExportStatus_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.ExportStatus(context.Background(), "nobody")
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeExportNotFound {
		t.Errorf("got %v, want %s", err, apperrors.CodeExportNotFound)
	}
}

func TestRequestDeletion_SchedulesAndDeactivates(t *testing.T) {
	f := newFixture(t)
	seedUser(f, "u1")

	req, err := f.manager.RequestDeletion(context.Background(), "u1", "leaving the app")
	if err != nil {
		t.Fatalf("RequestDeletion: %v", err)
	}

	wantScheduled := f.now.Add(30 * 24 * time.Hour)
	if !req.ScheduledFor.Equal(wantScheduled) {
		t.Errorf("scheduledFor = %v, want %v", req.ScheduledFor, wantScheduled)
	}
	if u, _ := f.users.GetUser("u1"); u.Active {
		t.Error("account should be deactivated immediately")
	}

	// Duplicate request while one is pending.
	_, err = f.manager.RequestDeletion(context.Background(), "u1", "again")
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeDeletionInProgress {
		t.Errorf("got %v, want %s", err, apperrors.CodeDeletionInProgress)
	}
}

func TestCancelDeletion_WithinGracePeriod(t *testing.T) {
	f := newFixture(t)
	seedUser(f, "u1")

	if _, err := f.manager.RequestDeletion(context.Background(), "u1", ""); err != nil {
		t.Fatal(err)
	}
	f.advance(29 * 24 * time.Hour)

	if err := f.manager.CancelDeletion(context.Background(), "u1"); err != nil {
		t.Fatalf("CancelDeletion: %v", err)
	}
	if u, _ := f.users.GetUser("u1"); !u.Active {
		t.Error("account should be reactivated on cancel")
	}
	if _, err := f.manager.DeletionStatus(context.Background(), "u1"); err == nil {
		t.Error("deletion request should be gone after cancel")
	}

	// Nothing left to cancel.
	err := f.manager.CancelDeletion(context.Background(), "u1")
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeNoActiveDeletion {
		t.Errorf("got %v, want %s", err, apperrors.CodeNoActiveDeletion)
	}
}

func TestCancelDeletion_AfterGracePeriod(t *testing.T) {
	f := newFixture(t)
	seedUser(f, "u1")

	if _, err := f.manager.RequestDeletion(context.Background(), "u1", ""); err != nil {
		t.Fatal(err)
	}
	f.advance(30 * 24 * time.Hour)

	err := f.manager.CancelDeletion(context.Background(), "u1")
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeNoActiveDeletion {
		t.Errorf("cancel past grace period: got %v, want %s", err, apperrors.CodeNoActiveDeletion)
	}
	if u, _ := f.users.GetUser("u1"); u.Active {
		t.Error("account must stay deactivated once the grace period elapsed")
	}
}

func TestProcessScheduledDeletions_PurgesDueAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedUser(f, "u1")
	seedUser(f, "u2")
	f.users.AddPhoto(userdata.Photo{ID: "p1", UserID: "u1"})
	f.users.AddMessage(userdata.Message{ID: "m1", SenderID: "u1", RecipientID: "u2", Body: "hi"})
	f.users.AddMessage(userdata.Message{ID: "m2", SenderID: "u2", RecipientID: "u3", Body: "yo"})
	f.reviews.Enqueue(moderation.Decision{ContentID: "c1", OwnerID: "u1"})

	f.ledger.RecordSync(ctx, audit.Entry{ActorID: "u1", Action: audit.ActionLogin, IPAddress: "192.168.1.55"})

	if _, err := f.manager.RequestDeletion(ctx, "u1", ""); err != nil {
		t.Fatal(err)
	}

	// Not yet due.
	f.advance(29 * 24 * time.Hour)
	purged, err := f.manager.ProcessScheduledDeletions(ctx)
	if err != nil || purged != 0 {
		t.Fatalf("early sweep purged %d (err %v), want 0", purged, err)
	}
	if _, ok := f.users.GetUser("u1"); !ok {
		t.Fatal("user purged before the grace period elapsed")
	}

	// Due now.
	f.advance(24 * time.Hour)
	purged, err = f.manager.ProcessScheduledDeletions(ctx)
	if err != nil || purged != 1 {
		t.Fatalf("sweep purged %d (err %v), want 1", purged, err)
	}

	if _, ok := f.users.GetUser("u1"); ok {
		t.Error("user row should be deleted")
	}
	if u, ok := f.users.GetUser("u2"); !ok || !u.Active {
		t.Error("unrelated user must be untouched")
	}

	// The u2->u3 message survives; everything touching u1 is gone.
	bundle, err := f.users.Collect(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	msgs := bundle["messages"].([]userdata.Message)
	if len(msgs) != 1 || msgs[0].ID != "m2" {
		t.Errorf("u2 messages after purge = %+v", msgs)
	}

	// Audit events stay but lose the actor link.
	events, err := f.auditStore.Query(ctx, audit.Filter{ActorID: "u1"})
	if err != nil || len(events) != 0 {
		t.Errorf("events still attributed to purged user: %d", len(events))
	}
	scrubbed, err := f.auditStore.Query(ctx, audit.Filter{Action: audit.ActionLogin})
	if err != nil || len(scrubbed) != 1 {
		t.Fatalf("login event should survive the purge")
	}
	if scrubbed[0].Metadata["deleted_user"] != true {
		t.Error("surviving event should be marked deleted_user")
	}

	if got := len(f.reviews.Pending(0)); got != 0 {
		t.Errorf("review queue still holds %d items for purged user", got)
	}

	// Nothing left for the next sweep.
	purged, err = f.manager.ProcessScheduledDeletions(ctx)
	if err != nil || purged != 0 {
		t.Errorf("second sweep purged %d (err %v), want 0", purged, err)
	}
}

type flakyPurger struct {
	inner    lifecycle.Purger
	failures int
}

func (p *flakyPurger) Begin(ctx context.Context) (lifecycle.PurgeTx, error) {
	tx, err := p.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if p.failures > 0 {
		p.failures--
		return &failingTx{PurgeTx: tx}, nil
	}
	return tx, nil
}

type failingTx struct {
	lifecycle.PurgeTx
}

func (tx *failingTx) DeleteMessages(context.Context, string) error {
	return errors.New("messages table unavailable")
}

func TestProcessScheduledDeletions_FailureKeepsRequestPending(t *testing.T) {
	var flaky flakyPurger
	f := newFixture(t, func(d *lifecycle.Deps) {
		flaky = flakyPurger{inner: d.Purger, failures: 1}
		d.Purger = &flaky
	})
	ctx := context.Background()
	seedUser(f, "u1")
	f.users.AddMessage(userdata.Message{ID: "m1", SenderID: "u1", RecipientID: "u2"})

	if _, err := f.manager.RequestDeletion(ctx, "u1", ""); err != nil {
		t.Fatal(err)
	}
	f.advance(31 * 24 * time.Hour)

	purged, err := f.manager.ProcessScheduledDeletions(ctx)
	if err != nil || purged != 0 {
		t.Fatalf("failed sweep purged %d (err %v), want 0", purged, err)
	}

	// Nothing was deleted and the request is retried on the next sweep.
	if _, ok := f.users.GetUser("u1"); !ok {
		t.Fatal("partial purge must not delete the user")
	}
	purged, err = f.manager.ProcessScheduledDeletions(ctx)
	if err != nil || purged != 1 {
		t.Fatalf("retry sweep purged %d (err %v), want 1", purged, err)
	}
	if _, ok := f.users.GetUser("u1"); ok {
		t.Error("retry sweep should complete the purge")
	}
}

func TestUpdateConsent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedUser(f, "u1")

	yes := true
	consent, err := f.manager.UpdateConsent(ctx, "u1", lifecycle.ConsentUpdate{Marketing: &yes})
	if err != nil {
		t.Fatalf("UpdateConsent: %v", err)
	}
	if !consent.Marketing || consent.DataProcessing {
		t.Errorf("consent = %+v, want marketing only", consent)
	}

	got, err := f.manager.ConsentStatus(ctx, "u1")
	if err != nil || got.Marketing != true {
		t.Errorf("ConsentStatus = %+v (err %v)", got, err)
	}

	events, err := f.auditStore.Query(ctx, audit.Filter{Action: audit.ActionConsentUpdated})
	if err != nil || len(events) != 1 {
		t.Fatalf("want 1 consent audit event, got %d", len(events))
	}
	if events[0].Metadata["marketing"] != true {
		t.Error("audit event should carry the changed field")
	}

	_, err = f.manager.UpdateConsent(ctx, "u1", lifecycle.ConsentUpdate{})
	appErr, ok := apperrors.IsAppError(err)
	if !ok || appErr.Code != apperrors.CodeInvalidRequest {
		t.Errorf("empty update: got %v, want %s", err, apperrors.CodeInvalidRequest)
	}
}
