package dto

import "time"

// SignInRequest payload.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest payload.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries the issued token and identity.
type SessionResponse struct {
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
}
