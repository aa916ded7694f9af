package domain

import "time"

type NotificationID string

type Notification struct {
	ID        NotificationID `json:"id"`
	UserID    UserID         `json:"user_id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}
