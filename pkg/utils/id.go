package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateSessionID generates a unique live session ID
func GenerateSessionID() string {
	return GenerateID("session")
}

// GenerateNotificationID generates a unique notification ID
func GenerateNotificationID() string {
	return GenerateID("notif")
}

// GenerateUserID generates a unique user ID
func GenerateUserID() string {
	return GenerateID("user")
}

// GenerateID generates a prefixed unique ID
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
