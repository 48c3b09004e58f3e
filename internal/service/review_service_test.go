package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"filestore-service/internal/config"
	"filestore-service/internal/events"
	"filestore-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// fakeGrantStore keeps grants in a map guarded by a mutex so concurrent
// workflow tests exercise the same idempotency the Mongo upserts give.
type fakeGrantStore struct {
	mu       sync.Mutex
	grants   map[string]models.Grant
	writeErr error
}

func newFakeGrantStore() *fakeGrantStore {
	return &fakeGrantStore{grants: make(map[string]models.Grant)}
}

func grantKey(subject string, permission models.PermissionKind, resource models.ResourceRef) string {
	return subject + "|" + string(permission) + "|" + resource.String()
}

func (f *fakeGrantStore) Grant(_ context.Context, subject string, permission models.PermissionKind, resource models.ResourceRef, grantedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	key := grantKey(subject, permission, resource)
	if _, exists := f.grants[key]; exists {
		return nil
	}
	f.grants[key] = models.Grant{
		SubjectID:  subject,
		Permission: permission,
		Resource:   resource,
		GrantedBy:  grantedBy,
		GrantedAt:  time.Now(),
	}
	return nil
}

func (f *fakeGrantStore) Revoke(_ context.Context, subject string, permission models.PermissionKind, resource models.ResourceRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	delete(f.grants, grantKey(subject, permission, resource))
	return nil
}

func (f *fakeGrantStore) Has(_ context.Context, subject string, permission models.PermissionKind, resource models.ResourceRef) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.grants[grantKey(subject, permission, resource)]
	return ok, nil
}

func (f *fakeGrantStore) ListResources(_ context.Context, subject string, permission models.PermissionKind) ([]models.ResourceRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var refs []models.ResourceRef
	for _, g := range f.grants {
		if g.SubjectID == subject && g.Permission == permission {
			refs = append(refs, g.Resource)
		}
	}
	return refs, nil
}

func (f *fakeGrantStore) ListSubjects(_ context.Context, permission models.PermissionKind, resource models.ResourceRef) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var subjects []string
	for _, g := range f.grants {
		if g.Permission == permission && g.Resource == resource {
			subjects = append(subjects, g.SubjectID)
		}
	}
	return subjects, nil
}

func (f *fakeGrantStore) ListBySubjects(_ context.Context, permission models.PermissionKind) ([]models.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var grants []models.Grant
	for _, g := range f.grants {
		if g.Permission == permission {
			grants = append(grants, g)
		}
	}
	return grants, nil
}

func (f *fakeGrantStore) RevokeAllForSubject(_ context.Context, subject string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, g := range f.grants {
		if g.SubjectID == subject {
			delete(f.grants, key)
		}
	}
	return nil
}

func (f *fakeGrantStore) RevokeAllForResource(_ context.Context, resource models.ResourceRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, g := range f.grants {
		if g.Resource == resource {
			delete(f.grants, key)
		}
	}
	return nil
}

func (f *fakeGrantStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.grants)
}

// fakeLedger mirrors the ledger's compare-and-set semantics in memory.
type fakeLedger struct {
	mu   sync.Mutex
	rows map[string]*models.ReviewRequest
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[string]*models.ReviewRequest)}
}

func (f *fakeLedger) CreatePending(_ context.Context, requester string, permission models.PermissionKind, resource models.ResourceRef) (*models.ReviewRequest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.RequesterID == requester && row.Permission == permission && row.Resource == resource && row.Status == models.ReviewStatusPending {
			copied := *row
			return &copied, false, nil
		}
	}
	now := time.Now()
	row := &models.ReviewRequest{
		ID:          bson.NewObjectID(),
		Permission:  permission,
		Resource:    resource,
		RequesterID: requester,
		Status:      models.ReviewStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.rows[row.ID.Hex()] = row
	copied := *row
	return &copied, true, nil
}

func (f *fakeLedger) FindByID(_ context.Context, id string) (*models.ReviewRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeLedger) Decide(_ context.Context, id string, reviewer string, status models.ReviewStatus) (*models.ReviewRequest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, false, models.ErrNotFound
	}
	if row.Status != models.ReviewStatusPending {
		copied := *row
		return &copied, false, nil
	}
	row.Status = status
	row.ReviewerID = reviewer
	row.UpdatedAt = time.Now()
	copied := *row
	return &copied, true, nil
}

func (f *fakeLedger) Reopen(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return models.ErrNotFound
	}
	row.Status = models.ReviewStatusPending
	row.ReviewerID = ""
	return nil
}

func (f *fakeLedger) ListByStatus(_ context.Context, status models.ReviewStatus, _, _ int) ([]*models.ReviewRequest, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ReviewRequest
	for _, row := range f.rows {
		if row.Status == status {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

// fakePublisher records published mail and events; failErr simulates a
// broker outage.
type fakePublisher struct {
	mu      sync.Mutex
	mails   []*events.MailMessage
	reviews []*events.ReviewEvent
	failErr error
}

func (f *fakePublisher) PublishMail(_ context.Context, mail *events.MailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.mails = append(f.mails, mail)
	return nil
}

func (f *fakePublisher) PublishReviewEvent(_ context.Context, event *events.ReviewEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.reviews = append(f.reviews, event)
	return nil
}

func (f *fakePublisher) PublishFileEvent(_ context.Context, _ *events.FileEvent) error {
	return f.failErr
}

func (f *fakePublisher) PublishUserEvent(_ context.Context, _ *events.UserEvent) error {
	return f.failErr
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) mailCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.mails)
}

// staticResolver answers with a fixed name for a known set of ids.
type staticResolver struct {
	names map[string]string
}

func (r staticResolver) DisplayName(_ context.Context, id string) (string, error) {
	name, ok := r.names[id]
	if !ok {
		return "", models.ErrNotFound
	}
	return name, nil
}

type staticIdentities struct {
	accounts map[string]*models.UserAccount
}

func (r staticIdentities) Resolve(_ context.Context, userID string) (*models.UserAccount, error) {
	account, ok := r.accounts[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return account, nil
}

type reviewFixture struct {
	service   *ReviewService
	grants    *fakeGrantStore
	ledger    *fakeLedger
	publisher *fakePublisher
}

func newReviewFixture() *reviewFixture {
	grants := newFakeGrantStore()
	ledger := newFakeLedger()
	publisher := &fakePublisher{}

	directory := &ResourceDirectory{
		resolvers: map[models.ResourceKind]ResourceResolver{
			models.ResourceKindFile: staticResolver{names: map[string]string{"file-1": "report.pdf"}},
			models.ResourceKindTag:  staticResolver{names: map[string]string{"tag-1": "finance", "tag-2": "legal", "tag-3": "audit"}},
		},
	}
	identities := staticIdentities{accounts: map[string]*models.UserAccount{
		"alice": {Username: "alice", FullName: "Alice Doe", Email: "alice@example.com"},
		"bob":   {Username: "bob", Email: "bob@example.com"},
	}}

	cfg := &config.Config{}
	cfg.Server.StoreTimeout = 5 * time.Second
	cfg.Mail = config.MailConfig{
		AdminRecipients: []string{"admin@example.com"},
		SubjectPrefix:   "[filestore] ",
		Signature:       "filestore",
	}

	return &reviewFixture{
		service:   NewReviewService(grants, ledger, directory, identities, publisher, cfg),
		grants:    grants,
		ledger:    ledger,
		publisher: publisher,
	}
}

func TestRequestReviewIdempotent(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	first, created, err := f.service.RequestReview(ctx, "alice", "download:file", "file-1")
	if err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if !created {
		t.Error("expected first request to create a row")
	}
	if first.Status != models.ReviewStatusPending {
		t.Errorf("expected pending status, got %s", first.Status)
	}

	second, created, err := f.service.RequestReview(ctx, "alice", "download:file", "file-1")
	if err != nil {
		t.Fatalf("second request failed: %v", err)
	}
	if created {
		t.Error("expected second request to reuse the pending row")
	}
	if second.ID != first.ID {
		t.Errorf("expected same row, got %s and %s", first.ID.Hex(), second.ID.Hex())
	}

	if got := f.publisher.mailCount(); got != 1 {
		t.Errorf("expected exactly one admin mail, got %d", got)
	}
}

func TestRequestReviewValidation(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	_, _, err := f.service.RequestReview(ctx, "alice", "write:everything", "file-1")
	if !errors.Is(err, models.ErrInvalidPermission) {
		t.Errorf("expected ErrInvalidPermission, got %v", err)
	}

	_, _, err = f.service.RequestReview(ctx, "alice", "download:file", "missing-file")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown resource, got %v", err)
	}
}

func TestApproveGrantsAccess(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	request, _, err := f.service.RequestReview(ctx, "alice", "download:file", "file-1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	resource := models.ResourceRef{Kind: models.ResourceKindFile, ID: "file-1"}
	allowed, err := f.service.CheckAccess(ctx, "alice", models.PermissionDownloadFile, resource)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if allowed {
		t.Fatal("alice should not have access before approval")
	}

	decided, err := f.service.Approve(ctx, request.ID.Hex(), "bob")
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if decided.Status != models.ReviewStatusApproved {
		t.Errorf("expected approved status, got %s", decided.Status)
	}
	if decided.ReviewerID != "bob" {
		t.Errorf("expected reviewer bob, got %q", decided.ReviewerID)
	}

	allowed, err = f.service.CheckAccess(ctx, "alice", models.PermissionDownloadFile, resource)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !allowed {
		t.Error("alice should have access after approval")
	}

	// Admin notification plus the decision mail to alice.
	if got := f.publisher.mailCount(); got != 2 {
		t.Errorf("expected two mails, got %d", got)
	}
}

func TestDecideIsMonotonic(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	request, _, err := f.service.RequestReview(ctx, "alice", "download:file", "file-1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if _, err := f.service.Approve(ctx, request.ID.Hex(), "bob"); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// A later reject must not flip the decision or touch the grant.
	row, err := f.service.Reject(ctx, request.ID.Hex(), "carol")
	if err != nil {
		t.Fatalf("reject returned error: %v", err)
	}
	if row.Status != models.ReviewStatusApproved {
		t.Errorf("expected status to stay approved, got %s", row.Status)
	}
	if row.ReviewerID != "bob" {
		t.Errorf("expected original reviewer to stand, got %q", row.ReviewerID)
	}

	resource := models.ResourceRef{Kind: models.ResourceKindFile, ID: "file-1"}
	allowed, _ := f.service.CheckAccess(ctx, "alice", models.PermissionDownloadFile, resource)
	if !allowed {
		t.Error("grant should survive the late reject")
	}

	// Re-approving is a no-op too.
	if _, err := f.service.Approve(ctx, request.ID.Hex(), "carol"); err != nil {
		t.Fatalf("second approve returned error: %v", err)
	}
	if f.grants.count() != 1 {
		t.Errorf("expected exactly one grant, got %d", f.grants.count())
	}
}

func TestRejectRevokesGrant(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	resource := models.ResourceRef{Kind: models.ResourceKindFile, ID: "file-1"}
	if err := f.grants.Grant(ctx, "alice", models.PermissionDownloadFile, resource, "seed"); err != nil {
		t.Fatalf("seed grant failed: %v", err)
	}

	request, _, err := f.service.RequestReview(ctx, "alice", "download:file", "file-1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	row, err := f.service.Reject(ctx, request.ID.Hex(), "bob")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if row.Status != models.ReviewStatusRejected {
		t.Errorf("expected rejected status, got %s", row.Status)
	}

	allowed, _ := f.service.CheckAccess(ctx, "alice", models.PermissionDownloadFile, resource)
	if allowed {
		t.Error("grant should be revoked after reject")
	}
}

func TestConcurrentDecidersOneWins(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	request, _, err := f.service.RequestReview(ctx, "alice", "download:file", "file-1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.service.Approve(ctx, request.ID.Hex(), "bob")
	}()
	go func() {
		defer wg.Done()
		f.service.Reject(ctx, request.ID.Hex(), "carol")
	}()
	wg.Wait()

	row, err := f.service.GetRequest(ctx, request.ID.Hex())
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !row.Status.Terminal() {
		t.Fatalf("expected a terminal status, got %s", row.Status)
	}

	resource := models.ResourceRef{Kind: models.ResourceKindFile, ID: "file-1"}
	allowed, _ := f.service.CheckAccess(ctx, "alice", models.PermissionDownloadFile, resource)
	if row.Status == models.ReviewStatusApproved && !allowed {
		t.Error("approved request must leave a grant behind")
	}
	if row.Status == models.ReviewStatusRejected && allowed {
		t.Error("rejected request must not leave a grant behind")
	}
}

func TestApproveReopensOnGrantFailure(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	request, _, err := f.service.RequestReview(ctx, "alice", "download:file", "file-1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	f.grants.writeErr = errors.New("store down")
	if _, err := f.service.Approve(ctx, request.ID.Hex(), "bob"); err == nil {
		t.Fatal("expected approve to fail while the ACL store is down")
	}

	row, err := f.service.GetRequest(ctx, request.ID.Hex())
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if row.Status != models.ReviewStatusPending {
		t.Errorf("expected row back to pending, got %s", row.Status)
	}

	// Once the store recovers the decision can be retried.
	f.grants.writeErr = nil
	decided, err := f.service.Approve(ctx, request.ID.Hex(), "bob")
	if err != nil {
		t.Fatalf("retry approve failed: %v", err)
	}
	if decided.Status != models.ReviewStatusApproved {
		t.Errorf("expected approved after retry, got %s", decided.Status)
	}
}

func TestBrokerOutageDoesNotFailWorkflow(t *testing.T) {
	f := newReviewFixture()
	f.publisher.failErr = errors.New("broker down")
	ctx := context.Background()

	request, created, err := f.service.RequestReview(ctx, "alice", "download:file", "file-1")
	if err != nil {
		t.Fatalf("request should survive broker outage: %v", err)
	}
	if !created {
		t.Error("expected row to be created")
	}

	if _, err := f.service.Approve(ctx, request.ID.Hex(), "bob"); err != nil {
		t.Fatalf("approve should survive broker outage: %v", err)
	}
}

func TestSyncGrantsReconciles(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	for _, id := range []string{"tag-1", "tag-2"} {
		resource := models.ResourceRef{Kind: models.ResourceKindTag, ID: id}
		if err := f.grants.Grant(ctx, "alice", models.PermissionDownloadTag, resource, "seed"); err != nil {
			t.Fatalf("seed grant failed: %v", err)
		}
	}

	added, removed, err := f.service.SyncGrants(ctx, "admin", "alice", "download:tag", []string{"tag-2", "tag-3"})
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !reflect.DeepEqual(added, []string{"tag-3"}) {
		t.Errorf("expected added [tag-3], got %v", added)
	}
	if !reflect.DeepEqual(removed, []string{"tag-1"}) {
		t.Errorf("expected removed [tag-1], got %v", removed)
	}

	for id, want := range map[string]bool{"tag-1": false, "tag-2": true, "tag-3": true} {
		resource := models.ResourceRef{Kind: models.ResourceKindTag, ID: id}
		got, _ := f.grants.Has(ctx, "alice", models.PermissionDownloadTag, resource)
		if got != want {
			t.Errorf("tag %s: expected grant=%v, got %v", id, want, got)
		}
	}

	// Re-running the same sync changes nothing.
	added, removed, err = f.service.SyncGrants(ctx, "admin", "alice", "download:tag", []string{"tag-2", "tag-3"})
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if len(added) != 0 || len(removed) != 0 {
		t.Errorf("expected no changes on repeat sync, got added=%v removed=%v", added, removed)
	}
}

func TestSyncGrantsRejectsUnknownResource(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	_, _, err := f.service.SyncGrants(ctx, "admin", "alice", "download:tag", []string{"tag-1", "tag-missing"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListHoldersSorted(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	resource := models.ResourceRef{Kind: models.ResourceKindTag, ID: "tag-1"}
	for _, subject := range []string{"carol", "alice", "bob"} {
		if err := f.grants.Grant(ctx, subject, models.PermissionDownloadTag, resource, "seed"); err != nil {
			t.Fatalf("seed grant failed: %v", err)
		}
	}

	holders, err := f.service.ListHolders(ctx, "download:tag", "tag-1")
	if err != nil {
		t.Fatalf("list holders failed: %v", err)
	}
	if !reflect.DeepEqual(holders, []string{"alice", "bob", "carol"}) {
		t.Errorf("expected sorted holders, got %v", holders)
	}
}

func TestCheckAccessRejectsKindMismatch(t *testing.T) {
	f := newReviewFixture()

	resource := models.ResourceRef{Kind: models.ResourceKindTag, ID: "tag-1"}
	_, err := f.service.CheckAccess(context.Background(), "alice", models.PermissionDownloadFile, resource)
	if !errors.Is(err, models.ErrInvalidPermission) {
		t.Errorf("expected ErrInvalidPermission, got %v", err)
	}
}
