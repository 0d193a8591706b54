package domain

import "time"

// User represents an authenticated user of the system.
type User struct {
	ID           int64
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UsernameMaxLength bounds User.Username in characters.
const UsernameMaxLength = 150

// PasswordMinLength is the shortest password accepted at registration.
const PasswordMinLength = 8
