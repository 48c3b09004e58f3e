package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"filestore-service/internal/config"
	"filestore-service/internal/events"
	"filestore-service/internal/models"
)

// GrantStore is the ACL store the workflow engine writes decisions into.
// Grant and Revoke must be idempotent.
type GrantStore interface {
	Grant(ctx context.Context, subject string, permission models.PermissionKind, resource models.ResourceRef, grantedBy string) error
	Revoke(ctx context.Context, subject string, permission models.PermissionKind, resource models.ResourceRef) error
	Has(ctx context.Context, subject string, permission models.PermissionKind, resource models.ResourceRef) (bool, error)
	ListResources(ctx context.Context, subject string, permission models.PermissionKind) ([]models.ResourceRef, error)
	ListSubjects(ctx context.Context, permission models.PermissionKind, resource models.ResourceRef) ([]string, error)
	ListBySubjects(ctx context.Context, permission models.PermissionKind) ([]models.Grant, error)
	RevokeAllForSubject(ctx context.Context, subject string) error
	RevokeAllForResource(ctx context.Context, resource models.ResourceRef) error
}

// ReviewLedger is the append-only record of permission requests. Decide must
// only move a row out of pending, and must report whether this call was the
// one that moved it.
type ReviewLedger interface {
	CreatePending(ctx context.Context, requester string, permission models.PermissionKind, resource models.ResourceRef) (*models.ReviewRequest, bool, error)
	FindByID(ctx context.Context, id string) (*models.ReviewRequest, error)
	Decide(ctx context.Context, id string, reviewer string, status models.ReviewStatus) (*models.ReviewRequest, bool, error)
	Reopen(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status models.ReviewStatus, page, limit int) ([]*models.ReviewRequest, int64, error)
}

// ReviewService drives the permission review workflow: a denied access
// becomes a pending ledger row, an administrator decides it exactly once,
// and an approval materializes as an ACL grant. Notification mail is
// fire-and-forget; a broker outage never fails a workflow operation.
type ReviewService struct {
	grants       GrantStore
	ledger       ReviewLedger
	directory    *ResourceDirectory
	identities   IdentityResolver
	publisher    events.Publisher
	mail         config.MailConfig
	storeTimeout time.Duration
}

func NewReviewService(
	grants GrantStore,
	ledger ReviewLedger,
	directory *ResourceDirectory,
	identities IdentityResolver,
	publisher events.Publisher,
	cfg *config.Config,
) *ReviewService {
	return &ReviewService{
		grants:       grants,
		ledger:       ledger,
		directory:    directory,
		identities:   identities,
		publisher:    publisher,
		mail:         cfg.Mail,
		storeTimeout: cfg.Server.StoreTimeout,
	}
}

// storeCtx bounds a persistent-store round trip.
func (s *ReviewService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.storeTimeout)
}

// storeErr maps store timeouts and cancellations to ErrStoreUnavailable so
// handlers can answer 503 and clients know the operation is safe to retry.
func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return err
}

// CheckAccess reports whether the subject holds the permission on the
// resource. It never mutates anything.
func (s *ReviewService) CheckAccess(ctx context.Context, subject string, permission models.PermissionKind, resource models.ResourceRef) (bool, error) {
	if !permission.Valid() {
		return false, fmt.Errorf("%w: %q", models.ErrInvalidPermission, permission)
	}
	if permission.ResourceKind() != resource.Kind {
		return false, fmt.Errorf("%w: %s cannot apply to resource kind %q", models.ErrInvalidPermission, permission, resource.Kind)
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	ok, err := s.grants.Has(sctx, subject, permission, resource)
	if err != nil {
		return false, storeErr(err)
	}
	return ok, nil
}

// RequestReview records that the requester wants the permission on the
// resource. The call is idempotent: while a pending row for the same
// (requester, permission, resource) tuple exists, repeated calls return it
// unchanged and send no further mail. A row that was already decided does
// not block a new request.
func (s *ReviewService) RequestReview(ctx context.Context, requester string, rawPermission string, resourceID string) (*models.ReviewRequest, bool, error) {
	permission, err := models.ParsePermissionKind(rawPermission)
	if err != nil {
		return nil, false, err
	}
	resource := models.ResourceRef{Kind: permission.ResourceKind(), ID: resourceID}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	resourceName, err := s.directory.Resolve(sctx, resource)
	if err != nil {
		return nil, false, storeErr(err)
	}

	request, created, err := s.ledger.CreatePending(sctx, requester, permission, resource)
	if err != nil {
		return nil, false, storeErr(err)
	}

	if created {
		s.notifyAdmins(ctx, request, resourceName)
		s.publishReviewEvent(ctx, events.EventTypeReviewRequested, request, resourceName)
	}
	return request, created, nil
}

// Approve decides the pending request in favour of the requester and writes
// the grant. Approving a request that is no longer pending changes nothing
// and returns the row as it stands.
func (s *ReviewService) Approve(ctx context.Context, requestID, reviewer string) (*models.ReviewRequest, error) {
	return s.decide(ctx, requestID, reviewer, models.ReviewStatusApproved)
}

// Reject decides the pending request against the requester and removes any
// grant the triple may hold. Rejecting a request that is no longer pending
// changes nothing and returns the row as it stands.
func (s *ReviewService) Reject(ctx context.Context, requestID, reviewer string) (*models.ReviewRequest, error) {
	return s.decide(ctx, requestID, reviewer, models.ReviewStatusRejected)
}

func (s *ReviewService) decide(ctx context.Context, requestID, reviewer string, status models.ReviewStatus) (*models.ReviewRequest, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	request, decided, err := s.ledger.Decide(sctx, requestID, reviewer, status)
	if err != nil {
		return nil, storeErr(err)
	}
	if !decided {
		// Lost the race or the row was already terminal. The ledger row is
		// the source of truth, so report it unchanged.
		return request, nil
	}

	// The row is decided; now make the ACL agree with it. If the ACL write
	// fails the decision is rolled back to pending so a retry can decide it
	// again, keeping ledger and ACL consistent.
	switch status {
	case models.ReviewStatusApproved:
		err = s.grants.Grant(sctx, request.RequesterID, request.Permission, request.Resource, reviewer)
	case models.ReviewStatusRejected:
		err = s.grants.Revoke(sctx, request.RequesterID, request.Permission, request.Resource)
	}
	if err != nil {
		if reopenErr := s.ledger.Reopen(sctx, requestID); reopenErr != nil {
			log.Printf("Failed to reopen request %s after ACL write failure: %v", requestID, reopenErr)
		}
		return nil, storeErr(err)
	}

	resourceName, nameErr := s.directory.Resolve(sctx, request.Resource)
	if nameErr != nil {
		log.Printf("Failed to resolve resource %s for notification: %v", request.Resource, nameErr)
		resourceName = request.Resource.String()
	}

	eventType := events.EventTypeReviewApproved
	if status == models.ReviewStatusRejected {
		eventType = events.EventTypeReviewRejected
	}
	s.notifyRequester(ctx, request, resourceName)
	s.publishReviewEvent(ctx, eventType, request, resourceName)

	return request, nil
}

// GetRequest loads one ledger row.
func (s *ReviewService) GetRequest(ctx context.Context, requestID string) (*models.ReviewRequest, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	request, err := s.ledger.FindByID(sctx, requestID)
	if err != nil {
		return nil, storeErr(err)
	}
	return request, nil
}

// ListByStatus pages through ledger rows in one status, newest first.
func (s *ReviewService) ListByStatus(ctx context.Context, status models.ReviewStatus, page, limit int) ([]*models.ReviewRequest, int64, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	requests, total, err := s.ledger.ListByStatus(sctx, status, page, limit)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return requests, total, nil
}

// SyncGrants reconciles one subject's grants of the permission against the
// desired resource-id set: missing resources are granted, resources outside
// the set are revoked, resources in both are untouched. It returns the
// resource ids actually added and removed, sorted. Every added resource must
// exist.
func (s *ReviewService) SyncGrants(ctx context.Context, actor, subject string, rawPermission string, desiredIDs []string) (added, removed []string, err error) {
	permission, err := models.ParsePermissionKind(rawPermission)
	if err != nil {
		return nil, nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	current, err := s.grants.ListResources(sctx, subject, permission)
	if err != nil {
		return nil, nil, storeErr(err)
	}

	currentSet := make(map[string]bool, len(current))
	for _, ref := range current {
		currentSet[ref.ID] = true
	}
	desiredSet := make(map[string]bool, len(desiredIDs))
	for _, id := range desiredIDs {
		if id == "" {
			continue
		}
		desiredSet[id] = true
	}

	for id := range desiredSet {
		if !currentSet[id] {
			added = append(added, id)
		}
	}
	for id := range currentSet {
		if !desiredSet[id] {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)

	kind := permission.ResourceKind()
	for _, id := range added {
		resource := models.ResourceRef{Kind: kind, ID: id}
		if _, err = s.directory.Resolve(sctx, resource); err != nil {
			return nil, nil, storeErr(err)
		}
		if err = s.grants.Grant(sctx, subject, permission, resource, actor); err != nil {
			return nil, nil, storeErr(err)
		}
	}
	for _, id := range removed {
		if err = s.grants.Revoke(sctx, subject, permission, models.ResourceRef{Kind: kind, ID: id}); err != nil {
			return nil, nil, storeErr(err)
		}
	}

	return added, removed, nil
}

// ListHolders returns every subject holding the permission on the resource,
// for admin auditing.
func (s *ReviewService) ListHolders(ctx context.Context, rawPermission string, resourceID string) ([]string, error) {
	permission, err := models.ParsePermissionKind(rawPermission)
	if err != nil {
		return nil, err
	}
	resource := models.ResourceRef{Kind: permission.ResourceKind(), ID: resourceID}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	subjects, err := s.grants.ListSubjects(sctx, permission, resource)
	if err != nil {
		return nil, storeErr(err)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// ListGrants returns every grant of a permission, for admin auditing.
func (s *ReviewService) ListGrants(ctx context.Context, rawPermission string) ([]models.Grant, error) {
	permission, err := models.ParsePermissionKind(rawPermission)
	if err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	grants, err := s.grants.ListBySubjects(sctx, permission)
	if err != nil {
		return nil, storeErr(err)
	}
	return grants, nil
}

// GrantedResources returns every resource of the permission's kind the
// subject can reach through a direct grant.
func (s *ReviewService) GrantedResources(ctx context.Context, subject string, permission models.PermissionKind) ([]models.ResourceRef, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	refs, err := s.grants.ListResources(sctx, subject, permission)
	if err != nil {
		return nil, storeErr(err)
	}
	return refs, nil
}

func (s *ReviewService) notifyAdmins(ctx context.Context, request *models.ReviewRequest, resourceName string) {
	if len(s.mail.AdminRecipients) == 0 {
		return
	}

	requesterName := request.RequesterID
	if account, err := s.identities.Resolve(ctx, request.RequesterID); err == nil {
		requesterName = account.DisplayName()
	}

	subject := s.mail.SubjectPrefix + "permission review requested"
	body := fmt.Sprintf(
		"%s requests %s on %s %q.\n\nPlease review the pending request.\n\n%s",
		requesterName, request.Permission, request.Resource.Kind, resourceName, s.mail.Signature,
	)
	if err := s.publisher.PublishMail(ctx, events.NewMailMessage(subject, body, s.mail.AdminRecipients)); err != nil {
		log.Printf("Failed to publish admin notification for request %s: %v", request.ID.Hex(), err)
	}
}

func (s *ReviewService) notifyRequester(ctx context.Context, request *models.ReviewRequest, resourceName string) {
	account, err := s.identities.Resolve(ctx, request.RequesterID)
	if err != nil {
		log.Printf("Failed to resolve requester %s for notification: %v", request.RequesterID, err)
		return
	}
	if account.Email == "" {
		return
	}

	verdict := "approved"
	if request.Status == models.ReviewStatusRejected {
		verdict = "rejected"
	}
	subject := s.mail.SubjectPrefix + "permission request " + verdict
	body := fmt.Sprintf(
		"Your request for %s on %s %q has been %s.\n\n%s",
		request.Permission, request.Resource.Kind, resourceName, verdict, s.mail.Signature,
	)
	if err := s.publisher.PublishMail(ctx, events.NewMailMessage(subject, body, []string{account.Email})); err != nil {
		log.Printf("Failed to publish decision notification for request %s: %v", request.ID.Hex(), err)
	}
}

func (s *ReviewService) publishReviewEvent(ctx context.Context, eventType events.EventType, request *models.ReviewRequest, resourceName string) {
	event := events.NewReviewEvent(
		eventType,
		request.ID.Hex(),
		request.RequesterID,
		request.ReviewerID,
		string(request.Permission),
		string(request.Resource.Kind),
		request.Resource.ID,
		resourceName,
	)
	if err := s.publisher.PublishReviewEvent(ctx, event); err != nil {
		log.Printf("Failed to publish %s event for request %s: %v", eventType, request.ID.Hex(), err)
	}
}
