package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// UserAccount is an internal-tool account. New registrations start inactive
// and wait for an administrator to activate them.
type UserAccount struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string        `bson:"email" json:"email"`
	Username     string        `bson:"username" json:"username"`
	FullName     string        `bson:"fullName,omitempty" json:"fullName,omitempty"`
	Mobile       string        `bson:"mobile,omitempty" json:"mobile,omitempty"`
	PasswordHash string        `bson:"passwordHash" json:"-"`
	IsActive     bool          `bson:"isActive" json:"isActive"`
	IsAdmin      bool          `bson:"isAdmin" json:"isAdmin"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updatedAt" json:"updatedAt"`
	LastLoginAt  time.Time     `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
}

// DisplayName prefers the full name for notification text.
func (u *UserAccount) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

const verificationCodeTTL = time.Hour

// VerificationCode is a short-lived password-reset code. Codes live in Redis
// with a one hour TTL; IssuedAt is kept so an unexpired-but-stale code can be
// rejected even if the TTL clock drifts.
type VerificationCode struct {
	Code     string    `json:"code"`
	UserID   string    `json:"userId"`
	IssuedAt time.Time `json:"issuedAt"`
}

// NewVerificationCode issues a six digit code. The code is a bearer
// credential, so it is drawn from crypto/rand.
func NewVerificationCode(userID string) *VerificationCode {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		panic("models: crypto/rand unavailable: " + err.Error())
	}
	return &VerificationCode{
		Code:     fmt.Sprintf("%06d", n.Int64()),
		UserID:   userID,
		IssuedAt: time.Now(),
	}
}

func (c *VerificationCode) IsExpired(now time.Time) bool {
	if c.IssuedAt.IsZero() {
		return false
	}
	return now.After(c.IssuedAt.Add(verificationCodeTTL))
}

type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
}
