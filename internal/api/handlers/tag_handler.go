package handlers

import (
	"log"

	"filestore-service/internal/models"
	"filestore-service/internal/service"

	"github.com/gofiber/fiber/v3"
)

type TagHandler struct {
	tagService    *service.TagService
	reviewService *service.ReviewService
}

func NewTagHandler(tagService *service.TagService, reviewService *service.ReviewService) *TagHandler {
	return &TagHandler{
		tagService:    tagService,
		reviewService: reviewService,
	}
}

func (h *TagHandler) RegisterRoutes(app *fiber.App) {
	tagGroup := app.Group("/protected/storage/tags")
	tagGroup.Post("/", h.CreateTag)
	tagGroup.Get("/", h.ListTags)
	tagGroup.Put("/perm-sync", h.SyncTagGrants)
	tagGroup.Get("/:id", h.GetTag)
	tagGroup.Put("/:id", h.RenameTag)
	tagGroup.Delete("/:id", h.DeleteTag)
	tagGroup.Post("/:id/download-request", h.RequestDownload)
}

type tagBody struct {
	Name string `json:"name"`
}

func (h *TagHandler) CreateTag(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	var body tagBody
	if err := c.Bind().Body(&body); err != nil || body.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tag name is required",
		})
	}

	tag, err := h.tagService.Create(c.Context(), body.Name)
	if err != nil {
		log.Printf("Error creating tag: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Tag created successfully",
		"data":    tag,
	})
}

func (h *TagHandler) ListTags(c fiber.Ctx) error {
	if _, err := requireUser(c); err != nil {
		return err
	}

	tags, err := h.tagService.List(c.Context(), c.Query("search"))
	if err != nil {
		log.Printf("Error listing tags: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": tags,
	})
}

func (h *TagHandler) GetTag(c fiber.Ctx) error {
	if _, err := requireUser(c); err != nil {
		return err
	}

	tag, err := h.tagService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": tag,
	})
}

func (h *TagHandler) RenameTag(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	var body tagBody
	if err := c.Bind().Body(&body); err != nil || body.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Tag name is required",
		})
	}

	tag, err := h.tagService.Rename(c.Context(), c.Params("id"), body.Name)
	if err != nil {
		log.Printf("Error renaming tag: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Tag renamed successfully",
		"data":    tag,
	})
}

func (h *TagHandler) DeleteTag(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	if err := h.tagService.Delete(c.Context(), c.Params("id")); err != nil {
		log.Printf("Error deleting tag: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Tag deleted successfully",
	})
}

// RequestDownload escalates a denied tag download into a review request for
// download:tag on this tag.
func (h *TagHandler) RequestDownload(c fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	request, created, err := h.reviewService.RequestReview(c.Context(), userID, string(models.PermissionDownloadTag), c.Params("id"))
	if err != nil {
		log.Printf("Error requesting tag download review: %v", err)
		return errorResponse(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"message": "Download request recorded",
		"data":    request,
	})
}

type syncTagBody struct {
	UserID string   `json:"userId"`
	TagIDs []string `json:"tagIds"`
}

// SyncTagGrants replaces one user's download:tag grants with the submitted
// tag set. Admin only.
func (h *TagHandler) SyncTagGrants(c fiber.Ctx) error {
	actorID, err := requireAdmin(c)
	if err != nil {
		return err
	}

	var body syncTagBody
	if err := c.Bind().Body(&body); err != nil || body.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	added, removed, err := h.reviewService.SyncGrants(c.Context(), actorID, body.UserID, string(models.PermissionDownloadTag), body.TagIDs)
	if err != nil {
		log.Printf("Error syncing tag grants: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Tag grants synchronized",
		"data": fiber.Map{
			"added":   added,
			"removed": removed,
		},
	})
}
