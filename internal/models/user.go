package models

import (
	"strings"
	"time"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

type User struct {
	ID           string
	Username     string
	Email        string // optional; lockout notices are sent here
	Name         string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NormalizeUsername is the canonical form used for lookups and lockout keys.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
