package middleware

import (
	"log"
	"strings"

	"filestore-service/internal/repository"

	"github.com/gofiber/fiber/v3"
)

// Maintenance rejects non-admin traffic with 503 while the maintenance flag
// is raised in Redis. Admins stay in so they can clear the flag, and a Redis
// outage fails open rather than locking everyone out.
func Maintenance(repo *repository.RedisRepo) fiber.Handler {
	return func(c fiber.Ctx) error {
		// Health checks and scrapes stay up so the service is not
		// deregistered while the flag is raised.
		if c.Path() == "/health" || c.Path() == "/metrics" {
			return c.Next()
		}

		enabled, err := repo.InMaintenance(c.Context())
		if err != nil {
			log.Printf("Failed to read maintenance flag: %v", err)
			return c.Next()
		}
		if !enabled {
			return c.Next()
		}

		permissions := c.Get("X-User-Permissions")
		if strings.Contains(permissions, AdminPermission) || strings.Contains(permissions, ManagerPermission) {
			return c.Next()
		}

		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Service is under maintenance",
		})
	}
}
