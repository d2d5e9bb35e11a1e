package models

import "time"

// DefaultStyle is the writing voice used when neither the request nor the
// user's profile names one.
const DefaultStyle = "a warm, reflective first-person essayist"

// User is an account row in PostgreSQL. Style is the writing voice the
// generation stages fall back to when a request doesn't name one.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"` // never serialize
	Style     string    `json:"style"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterRequest is the JSON body for POST /api/auth/register. Style is
// optional; the account starts with DefaultStyle when it is omitted.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Style    string `json:"style"`
}

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateStyleRequest is the JSON body for PUT /api/auth/style.
type UpdateStyleRequest struct {
	Style string `json:"style"`
}
