package handlers

import (
	"log"
	"time"

	"filestore-service/internal/models"
	"filestore-service/internal/service"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Counter for review requests
	reviewRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_review_requests_total",
			Help: "Total number of permission review requests",
		},
		[]string{"outcome"}, // outcome: created/duplicate/error
	)

	// Counter for review decisions
	reviewDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_review_decisions_total",
			Help: "Total number of permission review decisions",
		},
		[]string{"verdict", "outcome"}, // verdict: approved/rejected, outcome: decided/noop/error
	)

	// Histogram for decision duration
	decisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "filestore_review_decision_duration_seconds",
			Help:    "Time spent deciding review requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Counter for grant syncs
	grantSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_grant_syncs_total",
			Help: "Total number of bulk grant reconciliations",
		},
		[]string{"outcome"}, // outcome: success/error
	)
)

type ReviewHandler struct {
	reviewService *service.ReviewService
}

func NewReviewHandler(reviewService *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
	}
}

func (h *ReviewHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	reviewGroup := app.Group("/protected/storage/reviews")
	reviewGroup.Post("/", h.RequestReview)
	reviewGroup.Get("/", h.ListReviews)
	reviewGroup.Get("/:id", h.GetReview)
	reviewGroup.Post("/:id/approve", h.ApproveReview)
	reviewGroup.Post("/:id/reject", h.RejectReview)

	permGroup := app.Group("/protected/storage/permissions")
	permGroup.Get("/check", h.CheckAccess)
	permGroup.Get("/grants", h.ListGrants)
	permGroup.Get("/holders", h.ListHolders)
	permGroup.Put("/sync", h.SyncGrants)
}

type reviewRequestBody struct {
	Permission string `json:"permission"`
	ResourceID string `json:"resourceId"`
}

// RequestReview opens (or returns) the pending review row for the caller.
func (h *ReviewHandler) RequestReview(c fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var body reviewRequestBody
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	request, created, err := h.reviewService.RequestReview(c.Context(), userID, body.Permission, body.ResourceID)
	if err != nil {
		reviewRequests.WithLabelValues("error").Inc()
		log.Printf("Error requesting review: %v", err)
		return errorResponse(c, err)
	}

	status := fiber.StatusOK
	if created {
		reviewRequests.WithLabelValues("created").Inc()
		status = fiber.StatusCreated
	} else {
		reviewRequests.WithLabelValues("duplicate").Inc()
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "Review request recorded",
		"data":    request,
	})
}

// ListReviews pages through ledger rows in one status. Admin only.
func (h *ReviewHandler) ListReviews(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	status := models.ReviewStatus(c.Query("status", string(models.ReviewStatusPending)))
	if status != models.ReviewStatusPending && !status.Terminal() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown review status",
		})
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	requests, total, err := h.reviewService.ListByStatus(c.Context(), status, page, limit)
	if err != nil {
		log.Printf("Error listing reviews: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"requests": requests,
			"total":    total,
			"page":     page,
			"limit":    limit,
		},
	})
}

func (h *ReviewHandler) GetReview(c fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	request, err := h.reviewService.GetRequest(c.Context(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	// Requesters see their own rows; everyone else needs the admin role.
	if request.RequesterID != userID && !isAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin permission required",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": request,
	})
}

func (h *ReviewHandler) ApproveReview(c fiber.Ctx) error {
	return h.decide(c, models.ReviewStatusApproved)
}

func (h *ReviewHandler) RejectReview(c fiber.Ctx) error {
	return h.decide(c, models.ReviewStatusRejected)
}

func (h *ReviewHandler) decide(c fiber.Ctx, verdict models.ReviewStatus) error {
	reviewerID, err := requireAdmin(c)
	if err != nil {
		return err
	}

	start := time.Now()
	requestID := c.Params("id")

	var request *models.ReviewRequest
	if verdict == models.ReviewStatusApproved {
		request, err = h.reviewService.Approve(c.Context(), requestID, reviewerID)
	} else {
		request, err = h.reviewService.Reject(c.Context(), requestID, reviewerID)
	}
	decisionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		reviewDecisions.WithLabelValues(string(verdict), "error").Inc()
		log.Printf("Error deciding review %s: %v", requestID, err)
		return errorResponse(c, err)
	}

	if request.Status != verdict || request.ReviewerID != reviewerID {
		// Another reviewer got there first; the row stands as decided.
		reviewDecisions.WithLabelValues(string(verdict), "noop").Inc()
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Request was already decided",
			"data":    request,
		})
	}

	reviewDecisions.WithLabelValues(string(verdict), "decided").Inc()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Request " + string(verdict),
		"data":    request,
	})
}

// CheckAccess reports whether the caller holds a permission on a resource.
func (h *ReviewHandler) CheckAccess(c fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	permission, err := models.ParsePermissionKind(c.Query("permission"))
	if err != nil {
		return errorResponse(c, err)
	}
	resource := models.ResourceRef{Kind: permission.ResourceKind(), ID: c.Query("resourceId")}

	allowed, err := h.reviewService.CheckAccess(c.Context(), userID, permission, resource)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"allowed": allowed,
		},
	})
}

type syncGrantsBody struct {
	UserID      string   `json:"userId"`
	Permission  string   `json:"permission"`
	ResourceIDs []string `json:"resourceIds"`
}

// SyncGrants reconciles one user's grants of a permission against the
// submitted resource-id set. Admin only.
func (h *ReviewHandler) SyncGrants(c fiber.Ctx) error {
	actorID, err := requireAdmin(c)
	if err != nil {
		return err
	}

	var body syncGrantsBody
	if err := c.Bind().Body(&body); err != nil || body.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	added, removed, err := h.reviewService.SyncGrants(c.Context(), actorID, body.UserID, body.Permission, body.ResourceIDs)
	if err != nil {
		grantSyncs.WithLabelValues("error").Inc()
		log.Printf("Error syncing grants: %v", err)
		return errorResponse(c, err)
	}

	grantSyncs.WithLabelValues("success").Inc()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Grants synchronized",
		"data": fiber.Map{
			"added":   added,
			"removed": removed,
		},
	})
}

// ListGrants lists every grant of a permission for auditing. Admin only.
func (h *ReviewHandler) ListGrants(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	grants, err := h.reviewService.ListGrants(c.Context(), c.Query("permission"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"grants": grants,
		},
	})
}

// ListHolders lists the subjects holding a permission on one resource.
// Admin only.
func (h *ReviewHandler) ListHolders(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	subjects, err := h.reviewService.ListHolders(c.Context(), c.Query("permission"), c.Query("resourceId"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"subjects": subjects,
		},
	})
}
