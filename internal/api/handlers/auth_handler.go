package handlers

import (
	"errors"
	"log"

	"filestore-service/internal/service"
	"filestore-service/pkg/utils"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Counter for login attempts
	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"outcome"}, // outcome: success/denied/error
	)

	// Counter for registrations
	registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filestore_registrations_total",
			Help: "Total number of account registrations",
		},
		[]string{"outcome"}, // outcome: success/error
	)
)

type AuthHandler struct {
	userService *service.UserService
	validators  *utils.Validators
}

func NewAuthHandler(userService *service.UserService) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		validators:  utils.NewValidators(),
	}
}

func (h *AuthHandler) RegisterRoutes(app *fiber.App) {
	publicGroup := app.Group("/public/storage/auth")
	publicGroup.Post("/register", h.Register)
	publicGroup.Post("/login", h.Login)
	publicGroup.Post("/password-reset/request", h.RequestPasswordReset)
	publicGroup.Post("/password-reset/confirm", h.ResetPassword)

	userGroup := app.Group("/protected/storage/users")
	userGroup.Get("/", h.ListUsers)
	userGroup.Get("/:id", h.GetUser)
	userGroup.Post("/:id/activate", h.ActivateUser)
	userGroup.Post("/:id/deactivate", h.DeactivateUser)
	userGroup.Delete("/:id", h.DeleteUser)
}

type registerBody struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(c fiber.Ctx) error {
	var body registerBody
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if body.Email == "" || body.Username == "" || body.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email, username and password are required",
		})
	}
	if !h.validators.IsValidEmail(body.Email) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid email address",
		})
	}
	if !h.validators.IsValidUsername(body.Username) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Username must be 3-32 characters of letters, digits, underscores or dashes",
		})
	}

	user, err := h.userService.Register(c.Context(), body.Email, body.Username, body.FullName, body.Mobile, body.Password)
	if err != nil {
		registrations.WithLabelValues("error").Inc()
		log.Printf("Error registering user: %v", err)
		return errorResponse(c, err)
	}

	registrations.WithLabelValues("success").Inc()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Account created, waiting for activation",
		"data":    user,
	})
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body loginBody
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	token, user, err := h.userService.Login(c.Context(), body.Username, body.Password)
	if err != nil {
		outcome := "error"
		if errors.Is(err, service.ErrInvalidCredentials) {
			outcome = "denied"
		}
		loginAttempts.WithLabelValues(outcome).Inc()
		return errorResponse(c, err)
	}

	loginAttempts.WithLabelValues("success").Inc()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"token": token,
			"user":  user,
		},
	})
}

func (h *AuthHandler) RequestPasswordReset(c fiber.Ctx) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.Bind().Body(&body); err != nil || body.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email is required",
		})
	}

	if err := h.userService.RequestPasswordReset(c.Context(), body.Email); err != nil {
		log.Printf("Error requesting password reset: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "If the address exists, a reset code has been sent",
	})
}

func (h *AuthHandler) ResetPassword(c fiber.Ctx) error {
	var body struct {
		UserID      string `json:"userId"`
		Code        string `json:"code"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.userService.ResetPassword(c.Context(), body.UserID, body.Code, body.NewPassword); err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Password updated successfully",
	})
}

func (h *AuthHandler) ListUsers(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 20)

	users, total, err := h.userService.List(c.Context(), page, limit)
	if err != nil {
		log.Printf("Error listing users: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{
			"users": users,
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

func (h *AuthHandler) GetUser(c fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	targetID := c.Params("id")
	if targetID != userID && !isAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Admin permission required",
		})
	}

	user, err := h.userService.Get(c.Context(), targetID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": user,
	})
}

func (h *AuthHandler) ActivateUser(c fiber.Ctx) error {
	return h.setActive(c, true)
}

func (h *AuthHandler) DeactivateUser(c fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *AuthHandler) setActive(c fiber.Ctx, active bool) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	var (
		user interface{}
		err  error
	)
	if active {
		user, err = h.userService.Activate(c.Context(), c.Params("id"))
	} else {
		user, err = h.userService.Deactivate(c.Context(), c.Params("id"))
	}
	if err != nil {
		log.Printf("Error changing user activation: %v", err)
		return errorResponse(c, err)
	}

	message := "Account activated"
	if !active {
		message = "Account deactivated"
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": message,
		"data":    user,
	})
}

func (h *AuthHandler) DeleteUser(c fiber.Ctx) error {
	if _, err := requireAdmin(c); err != nil {
		return err
	}

	if err := h.userService.Delete(c.Context(), c.Params("id")); err != nil {
		log.Printf("Error deleting user: %v", err)
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Account deleted",
	})
}
