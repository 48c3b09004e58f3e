package middleware

import (
	"context"
	"log"
	"time"

	"filestore-service/internal/models"
	"filestore-service/internal/repository"

	"github.com/gofiber/fiber/v3"
)

// OperationLog records every mutating request as an audit row. The write
// happens off the request path so a slow store never slows a response.
func OperationLog(repo *repository.OperationLogRepository) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		method := c.Method()
		if method == fiber.MethodGet || method == fiber.MethodHead {
			return err
		}

		entry := &models.OperationLog{
			ActionTime: start,
			Operator:   c.Get("X-User-ID"),
			IP:         c.IP(),
			Path:       c.Path(),
			Method:     method,
			LatencyMS:  time.Since(start).Milliseconds(),
			StatusCode: c.Response().StatusCode(),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := repo.Insert(ctx, entry); err != nil {
				log.Printf("Failed to write operation log: %v", err)
			}
		}()

		return err
	}
}
