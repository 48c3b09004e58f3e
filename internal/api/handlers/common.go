package handlers

import (
	"errors"
	"strconv"
	"strings"

	"filestore-service/internal/middleware"
	"filestore-service/internal/models"
	"filestore-service/internal/service"

	"github.com/gofiber/fiber/v3"
)

// currentUserID reads the identity the gateway injected.
func currentUserID(c fiber.Ctx) string {
	return c.Get("X-User-ID")
}

// isAdmin checks the gateway-injected permission list for an elevated role.
func isAdmin(c fiber.Ctx) bool {
	userPermissions := c.Get("X-User-Permissions")
	return strings.Contains(userPermissions, middleware.AdminPermission) ||
		strings.Contains(userPermissions, middleware.ManagerPermission)
}

func requireUser(c fiber.Ctx) (string, error) {
	userID := currentUserID(c)
	if userID == "" {
		return "", c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "User not authenticated",
		})
	}
	return userID, nil
}

func requireAdmin(c fiber.Ctx) (string, error) {
	userID, err := requireUser(c)
	if err != nil {
		return "", err
	}
	if !isAdmin(c) {
		return "", c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin permission required",
		})
	}
	return userID, nil
}

// errorResponse maps service errors onto HTTP statuses.
func errorResponse(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, models.ErrInvalidPermission):
		status = fiber.StatusBadRequest
	case errors.Is(err, models.ErrAccessDenied):
		status = fiber.StatusForbidden
	case errors.Is(err, models.ErrStoreUnavailable):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, service.ErrInvalidCredentials):
		status = fiber.StatusUnauthorized
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func queryInt(c fiber.Ctx, key string, defaultValue int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil || value < 1 {
		return defaultValue
	}
	return value
}
