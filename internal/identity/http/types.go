package http

import (
	"time"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
)

// MessageResponse is a bare confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserResponse wraps a single profile.
type UserResponse struct {
	Message string         `json:"message,omitempty"`
	User    domain.Profile `json:"user"`
}

// LoginResponse carries the session token and the owner profile.
type LoginResponse struct {
	Message     string         `json:"message"`
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        domain.Profile `json:"user"`
}

// UsersResponse is one page of the account listing.
type UsersResponse struct {
	Users      []domain.Profile  `json:"users"`
	Pagination domain.Pagination `json:"pagination"`
}

// DatabaseHealthResponse is the body of the database-only check.
type DatabaseHealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
