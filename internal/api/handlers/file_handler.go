package handlers

import (
	"log"
	"strconv"

	"filestore-service/internal/models"
	"filestore-service/internal/service"
	"filestore-service/pkg/utils"

	"github.com/gofiber/fiber/v3"
)

type FileHandler struct {
	fileService   *service.FileService
	reviewService *service.ReviewService
	validators    *utils.Validators
	maxUploadSize int64
}

func NewFileHandler(fileService *service.FileService, reviewService *service.ReviewService, maxUploadSize int64) *FileHandler {
	return &FileHandler{
		fileService:   fileService,
		reviewService: reviewService,
		validators:    utils.NewValidators(),
		maxUploadSize: maxUploadSize,
	}
}

func (h *FileHandler) RegisterRoutes(app *fiber.App) {
	fileGroup := app.Group("/protected/storage/files")
	fileGroup.Post("/", h.UploadFile)
	fileGroup.Get("/", h.ListFiles)
	// perm-sync must precede the :id routes or it would match as an id.
	fileGroup.Put("/perm-sync", h.SyncDownloadGrants)
	fileGroup.Get("/:id", h.GetFile)
	fileGroup.Put("/:id", h.UpdateFile)
	fileGroup.Delete("/:id", h.DeleteFile)
	fileGroup.Get("/:id/download", h.DownloadFile)
	fileGroup.Get("/:id/url", h.GetPresignedURL)
	fileGroup.Post("/:id/download-request", h.RequestDownload)
}

func (h *FileHandler) UploadFile(c fiber.Ctx) error {
	userID, err := requireAdmin(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file provided",
		})
	}
	if err := h.validators.ValidateFileHeader(file, h.maxUploadSize); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	description := c.FormValue("description", "")
	isPublic := c.FormValue("isPublic", "false") == "true"
	tagID := c.FormValue("tagId", "")

	uploadedFile, err := h.fileService.Upload(c.Context(), file, userID, description, isPublic, tagID)
	if err != nil {
		log.Printf("Error uploading file: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "File uploaded successfully",
		"data":    uploadedFile,
	})
}

// ListFiles pages through the files the caller can see: public files, files
// granted directly, and files under a granted tag. Administrators see all.
func (h *FileHandler) ListFiles(c fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	search := c.Query("search")
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "pageSize", 20)

	files, total, err := h.fileService.ListVisible(c.Context(), userID, isAdmin(c), search, page, pageSize)
	if err != nil {
		log.Printf("Error listing files: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"files":    files,
			"total":    total,
			"page":     page,
			"pageSize": pageSize,
		},
	})
}

func (h *FileHandler) GetFile(c fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	file, err := h.fileService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	allowed, err := h.fileService.CanDownload(c.Context(), userID, file)
	if err != nil {
		return errorResponse(c, err)
	}
	if !allowed && !isAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Access denied",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": file,
	})
}

func (h *FileHandler) UpdateFile(c fiber.Ctx) error {
	userID, err := requireAdmin(c)
	if err != nil {
		return err
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPublic    bool   `json:"isPublic"`
		TagID       string `json:"tagId"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	file, err := h.fileService.Update(c.Context(), userID, c.Params("id"), body.Name, body.Description, body.IsPublic, body.TagID)
	if err != nil {
		log.Printf("Error updating file: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "File updated successfully",
		"data":    file,
	})
}

func (h *FileHandler) DeleteFile(c fiber.Ctx) error {
	userID, err := requireAdmin(c)
	if err != nil {
		return err
	}

	if err := h.fileService.Delete(c.Context(), userID, c.Params("id")); err != nil {
		log.Printf("Error deleting file: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "File deleted successfully",
	})
}

// DownloadFile streams the content to an authorized caller. A 403 here is
// the cue to POST a review request for download:file on this id.
func (h *FileHandler) DownloadFile(c fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	object, file, err := h.fileService.Download(c.Context(), userID, c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}

	c.Set("Content-Type", file.ContentType)
	c.Set("Content-Disposition", "attachment; filename="+file.Name)
	c.Set("Content-Length", strconv.FormatInt(file.Size, 10))

	return c.SendStream(object)
}

// RequestDownload escalates a denied download into a review request for
// download:file on this file.
func (h *FileHandler) RequestDownload(c fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	request, created, err := h.reviewService.RequestReview(c.Context(), userID, string(models.PermissionDownloadFile), c.Params("id"))
	if err != nil {
		log.Printf("Error requesting download review: %v", err)
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

type syncDownloadBody struct {
	UserID  string   `json:"userId"`
	FileIDs []string `json:"fileIds"`
}

// SyncDownloadGrants replaces one user's download:file grants with the
// submitted file set. Admin only.
func (h *FileHandler) SyncDownloadGrants(c fiber.Ctx) error {
	actorID, err := requireAdmin(c)
	if err != nil {
		return err
	}

	var body syncDownloadBody
	if err := c.Bind().Body(&body); err != nil || body.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	added, removed, err := h.reviewService.SyncGrants(c.Context(), actorID, body.UserID, string(models.PermissionDownloadFile), body.FileIDs)
	if err != nil {
		log.Printf("Error syncing download grants: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Download grants synchronized",
		"data": fiber.Map{
			"added":   added,
			"removed": removed,
		},
	})
}

func (h *FileHandler) GetPresignedURL(c fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	expiry := queryInt(c, "expiry", 3600)
	url, err := h.fileService.PresignedURL(c.Context(), userID, c.Params("id"), expiry)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"url":    url,
			"expiry": expiry,
		},
	})
}
