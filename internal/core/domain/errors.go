package domain

import "errors"

var (
	ErrCourseNotFound  = errors.New("course not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrForbidden       = errors.New("not allowed")
	ErrSessionEnded    = errors.New("session already ended")
)
