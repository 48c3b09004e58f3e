package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"filestore-service/internal/config"
	"filestore-service/internal/events"
	"filestore-service/internal/models"
	"filestore-service/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials covers a wrong password, an unknown account, and an
// inactive account alike, so login failures do not leak which one it was.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserService manages internal-tool accounts: registration, admin
// activation, login, and password reset through a mailed code. Deactivating
// or deleting an account drops every grant it held.
type UserService struct {
	userRepository *repository.UserRepository
	redisRepo      *repository.RedisRepo
	grants         GrantStore
	publisher      events.Publisher
	jwtConfig      config.JWTConfig
	mail           config.MailConfig
}

func NewUserService(
	userRepo *repository.UserRepository,
	redisRepo *repository.RedisRepo,
	grants GrantStore,
	publisher events.Publisher,
	cfg *config.Config,
) *UserService {
	return &UserService{
		userRepository: userRepo,
		redisRepo:      redisRepo,
		grants:         grants,
		publisher:      publisher,
		jwtConfig:      cfg.JWT,
		mail:           cfg.Mail,
	}
}

// Register creates an inactive account, tells the admin pool someone is
// waiting, and confirms receipt to the new user.
func (s *UserService) Register(ctx context.Context, email, username, fullName, mobile, password string) (*models.UserAccount, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.UserAccount{
		Email:        email,
		Username:     username,
		FullName:     fullName,
		Mobile:       mobile,
		PasswordHash: string(passwordHash),
		IsActive:     false,
	}
	user, err = s.userRepository.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	if len(s.mail.AdminRecipients) > 0 {
		subject := s.mail.SubjectPrefix + "account awaiting activation"
		body := fmt.Sprintf(
			"%s (%s) registered and is waiting for activation.\n\n%s",
			user.DisplayName(), user.Email, s.mail.Signature,
		)
		if err := s.publisher.PublishMail(ctx, events.NewMailMessage(subject, body, s.mail.AdminRecipients)); err != nil {
			log.Printf("Failed to publish registration notification for user %s: %v", user.ID.Hex(), err)
		}
	}

	if user.Email != "" {
		subject := s.mail.SubjectPrefix + "registration received"
		body := fmt.Sprintf(
			"Your registration was received. An administrator will activate your account shortly.\n\n%s",
			s.mail.Signature,
		)
		if err := s.publisher.PublishMail(ctx, events.NewMailMessage(subject, body, []string{user.Email})); err != nil {
			log.Printf("Failed to publish registration confirmation for user %s: %v", user.ID.Hex(), err)
		}
	}

	event := events.NewUserEvent(events.EventTypeUserRegistered, user.ID.Hex(), user.Username, user.Email)
	if err := s.publisher.PublishUserEvent(ctx, event); err != nil {
		log.Printf("Failed to publish user registered event: %v", err)
	}

	return user, nil
}

// Activate flips the account active and mails the owner.
func (s *UserService) Activate(ctx context.Context, userID string) (*models.UserAccount, error) {
	return s.setActive(ctx, userID, true)
}

// Deactivate flips the account inactive and revokes everything it held.
func (s *UserService) Deactivate(ctx context.Context, userID string) (*models.UserAccount, error) {
	return s.setActive(ctx, userID, false)
}

func (s *UserService) setActive(ctx context.Context, userID string, active bool) (*models.UserAccount, error) {
	user, err := s.userRepository.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsActive == active {
		return user, nil
	}

	user.IsActive = active
	if err := s.userRepository.Update(ctx, user); err != nil {
		return nil, err
	}

	eventType := events.EventTypeUserActivated
	if !active {
		eventType = events.EventTypeUserDeactivated
		if err := s.grants.RevokeAllForSubject(ctx, userID); err != nil {
			log.Printf("Failed to revoke grants for deactivated user %s: %v", userID, err)
		}
	}

	if active && user.Email != "" {
		subject := s.mail.SubjectPrefix + "account activated"
		body := fmt.Sprintf("Your account has been activated. You can log in now.\n\n%s", s.mail.Signature)
		if err := s.publisher.PublishMail(ctx, events.NewMailMessage(subject, body, []string{user.Email})); err != nil {
			log.Printf("Failed to publish activation notification for user %s: %v", userID, err)
		}
	}

	event := events.NewUserEvent(eventType, user.ID.Hex(), user.Username, user.Email)
	if err := s.publisher.PublishUserEvent(ctx, event); err != nil {
		log.Printf("Failed to publish %s event: %v", eventType, err)
	}

	return user, nil
}

// Delete removes the account and every grant it held.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	user, err := s.userRepository.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.userRepository.Delete(ctx, userID); err != nil {
		return err
	}

	if err := s.grants.RevokeAllForSubject(ctx, userID); err != nil {
		log.Printf("Failed to revoke grants for deleted user %s: %v", userID, err)
	}

	event := events.NewUserEvent(events.EventTypeUserDeleted, user.ID.Hex(), user.Username, user.Email)
	if err := s.publisher.PublishUserEvent(ctx, event); err != nil {
		log.Printf("Failed to publish user deleted event: %v", err)
	}
	return nil
}

// Login verifies the password and issues a signed token.
func (s *UserService) Login(ctx context.Context, usernameOrEmail, password string) (string, *models.UserAccount, error) {
	user, err := s.userRepository.FindByUsername(ctx, usernameOrEmail)
	if errors.Is(err, models.ErrNotFound) {
		user, err = s.userRepository.FindByEmail(ctx, usernameOrEmail)
	}
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !user.IsActive {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	user.LastLoginAt = time.Now()
	if err := s.userRepository.Update(ctx, user); err != nil {
		log.Printf("Failed to record login time for user %s: %v", user.ID.Hex(), err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *UserService) issueToken(user *models.UserAccount) (string, error) {
	now := time.Now()
	claims := models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.Expiry)),
		},
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Email:    user.Email,
		IsAdmin:  user.IsAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return signed, nil
}

// RequestPasswordReset mails a short-lived code to the account owner. To
// avoid leaking which addresses exist, an unknown address is reported as
// success.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepository.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return err
	}

	code := models.NewVerificationCode(user.ID.Hex())
	if err := s.redisRepo.SaveVerificationCode(ctx, code); err != nil {
		return err
	}

	subject := s.mail.SubjectPrefix + "password reset code"
	body := fmt.Sprintf("Your password reset code is %s. It expires in one hour.\n\n%s", code.Code, s.mail.Signature)
	if err := s.publisher.PublishMail(ctx, events.NewMailMessage(subject, body, []string{user.Email})); err != nil {
		log.Printf("Failed to publish password reset mail for user %s: %v", user.ID.Hex(), err)
	}
	return nil
}

// ResetPassword redeems a verification code and sets the new password.
func (s *UserService) ResetPassword(ctx context.Context, userID, code, newPassword string) error {
	stored, err := s.redisRepo.GetVerificationCode(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if stored.Code != code || stored.IsExpired(time.Now()) {
		return ErrInvalidCredentials
	}

	user, err := s.userRepository.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	user.PasswordHash = string(passwordHash)
	if err := s.userRepository.Update(ctx, user); err != nil {
		return err
	}

	if err := s.redisRepo.DeleteVerificationCode(ctx, userID); err != nil {
		log.Printf("Failed to delete used verification code for user %s: %v", userID, err)
	}
	return nil
}

// Get loads one account.
func (s *UserService) Get(ctx context.Context, userID string) (*models.UserAccount, error) {
	return s.userRepository.FindByID(ctx, userID)
}

// List pages through accounts.
func (s *UserService) List(ctx context.Context, page, limit int) ([]*models.UserAccount, int64, error) {
	return s.userRepository.List(ctx, page, limit)
}
