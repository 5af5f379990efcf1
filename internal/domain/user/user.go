package user

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

// Role is the closed set of account roles. Navigation and access control
// dispatch on it, so anything outside the set is rejected at the boundary.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleStudent Role = "STUDENT"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleStudent:
		return true
	default:
		return false
	}
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))

	if !r.IsValid() {
		return "", errors.New("unknown role: " + s)
	}

	return r, nil
}

type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	QRToken      string    `json:"-"` // only surfaced through the QR endpoints
	CreatedAt    time.Time `json:"createdAt"`
}

// NormalizeEmail is applied before every lookup and before storing, so
// addresses that differ only in case or surrounding whitespace collide.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// New builds a user with a fresh id and QR token. The password hash is
// computed by the caller because it is salted with the normalized email.
func New(fullName, email string, role Role, passwordHash string) User {
	return User{
		ID:           uuid.NewString(),
		FullName:     fullName,
		Email:        NormalizeEmail(email),
		Role:         role,
		PasswordHash: passwordHash,
		QRToken:      uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
	}
}
