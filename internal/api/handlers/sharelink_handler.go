package handlers

import (
	"log"
	"strconv"

	"filestore-service/internal/service"

	"github.com/gofiber/fiber/v3"
)

type ShareLinkHandler struct {
	shareLinkService *service.ShareLinkService
}

func NewShareLinkHandler(shareLinkService *service.ShareLinkService) *ShareLinkHandler {
	return &ShareLinkHandler{
		shareLinkService: shareLinkService,
	}
}

func (h *ShareLinkHandler) RegisterRoutes(app *fiber.App) {
	// Anonymous download through a shared link
	app.Get("/public/storage/share/:token", h.ResolveShareLink)

	shareGroup := app.Group("/protected/storage/share")
	shareGroup.Post("/", h.CreateShareLink)
	shareGroup.Get("/", h.ListShareLinks)
	shareGroup.Delete("/:token", h.DeleteShareLink)
}

type shareLinkBody struct {
	FileID    string `json:"fileId"`
	ValidDays int    `json:"validDays"`
}

func (h *ShareLinkHandler) CreateShareLink(c fiber.Ctx) error {
	userID, err := requireAdmin(c)
	if err != nil {
		return err
	}

	var body shareLinkBody
	if err := c.Bind().Body(&body); err != nil || body.FileID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File id is required",
		})
	}

	link, err := h.shareLinkService.Create(c.Context(), userID, body.FileID, body.ValidDays)
	if err != nil {
		log.Printf("Error creating share link: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Share link created successfully",
		"data":    link,
	})
}

// ResolveShareLink streams the shared file to whoever holds the token and
// the code. No authentication involved.
func (h *ShareLinkHandler) ResolveShareLink(c fiber.Ctx) error {
	object, file, err := h.shareLinkService.Resolve(c.Context(), c.Params("token"), c.Query("code"))
	if err != nil {
		return errorResponse(c, err)
	}

	c.Set("Content-Type", file.ContentType)
	c.Set("Content-Disposition", "attachment; filename="+file.Name)
	c.Set("Content-Length", strconv.FormatInt(file.Size, 10))

	return c.SendStream(object)
}

func (h *ShareLinkHandler) ListShareLinks(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "pageSize", 20)

	links, total, err := h.shareLinkService.List(c.Context(), page, pageSize)
	if err != nil {
		log.Printf("Error listing share links: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"links":    links,
			"total":    total,
			"page":     page,
			"pageSize": pageSize,
		},
	})
}

func (h *ShareLinkHandler) DeleteShareLink(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	if err := h.shareLinkService.Delete(c.Context(), c.Params("token")); err != nil {
		log.Printf("Error deleting share link: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Share link deleted successfully",
	})
}
