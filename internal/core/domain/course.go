package domain

import "time"

type CourseID string

type Course struct {
	ID        CourseID
	Title     string
	Tutor     UserID
	CreatedAt time.Time
}

type EnrollmentStatus string

const (
	EnrollmentActive   EnrollmentStatus = "active"
	EnrollmentInactive EnrollmentStatus = "inactive"
)

type Enrollment struct {
	CourseID  CourseID
	StudentID UserID
	Status    EnrollmentStatus
	CreatedAt time.Time
}

type TutorRequestStatus string

const (
	TutorRequestPending  TutorRequestStatus = "pending"
	TutorRequestAccepted TutorRequestStatus = "accepted"
	TutorRequestRejected TutorRequestStatus = "rejected"
)

// TutorRequest is a student's direct request for tutoring on a course.
// An accepted request grants the same live-session access as an enrollment.
type TutorRequest struct {
	CourseID  CourseID
	StudentID UserID
	Status    TutorRequestStatus
	CreatedAt time.Time
}
