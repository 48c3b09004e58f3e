package handlers

import (
	"log"

	"filestore-service/internal/repository"

	"github.com/gofiber/fiber/v3"
)

// AdminHandler exposes the audit trail and the maintenance switch to
// administrators.
type AdminHandler struct {
	oplogRepo *repository.OperationLogRepository
	redisRepo *repository.RedisRepo
}

func NewAdminHandler(oplogRepo *repository.OperationLogRepository, redisRepo *repository.RedisRepo) *AdminHandler {
	return &AdminHandler{
		oplogRepo: oplogRepo,
		redisRepo: redisRepo,
	}
}

func (h *AdminHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/protected/storage/operation-logs", h.ListOperationLogs)
	app.Get("/protected/storage/maintenance", h.GetMaintenance)
	app.Put("/protected/storage/maintenance", h.SetMaintenance)
}

func (h *AdminHandler) ListOperationLogs(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	operator := c.Query("operator")
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 50)

	entries, total, err := h.oplogRepo.List(c.Context(), operator, page, limit)
	if err != nil {
		log.Printf("Error listing operation logs: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"entries": entries,
			"total":   total,
			"page":    page,
			"limit":   limit,
		},
	})
}

func (h *AdminHandler) GetMaintenance(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	enabled, err := h.redisRepo.InMaintenance(c.Context())
	if err != nil {
		log.Printf("Error reading maintenance flag: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{"enabled": enabled},
	})
}

type maintenanceBody struct {
	Enabled bool `json:"enabled"`
}

func (h *AdminHandler) SetMaintenance(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	var body maintenanceBody
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.redisRepo.SetMaintenance(c.Context(), body.Enabled); err != nil {
		log.Printf("Error updating maintenance flag: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Maintenance flag updated",
		"data":    fiber.Map{"enabled": body.Enabled},
	})
}
