package domain

import "time"

type UserID string

type User struct {
	ID           UserID
	Username     string
	Email        string
	Role         UserRole
	PasswordHash []byte
	CreatedAt    time.Time
}

type UserRole string

const (
	RoleTutor   UserRole = "tutor"
	RoleStudent UserRole = "student"
)
