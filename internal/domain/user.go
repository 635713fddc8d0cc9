package domain

import "time"

// User is a registered identity. PasswordHash is never exposed outside the app layer.
type User struct {
	ID           UserID
	Name         string
	Email        string
	PasswordHash string
	CPF          string
	Roles        Roles

	CreatedAt time.Time
	UpdatedAt time.Time
}
