package services

import (
	"context"
	"fmt"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
)

type accessService struct {
	courseRepo ports.CourseRepository
}

// NewAccessService builds the live-session authorization gate. Every call
// reads current enrollment data; nothing is cached, so a revoked enrollment
// takes effect on the very next check.
func NewAccessService(courseRepo ports.CourseRepository) ports.AccessService {
	return &accessService{courseRepo: courseRepo}
}

func (s *accessService) IsEligible(ctx context.Context, userID domain.UserID, courseID domain.CourseID) (bool, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return false, err
	}

	if course.Tutor == userID {
		return true, nil
	}

	students, err := s.EligibleStudents(ctx, courseID)
	if err != nil {
		return false, err
	}
	for _, id := range students {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

// EligibleStudents is the union of active enrollments and accepted
// tutor-requests for the course, deduplicated.
func (s *accessService) EligibleStudents(ctx context.Context, courseID domain.CourseID) ([]domain.UserID, error) {
	enrolled, err := s.courseRepo.ActiveEnrollments(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollments: %w", err)
	}
	accepted, err := s.courseRepo.AcceptedTutorRequests(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tutor requests: %w", err)
	}

	seen := make(map[domain.UserID]struct{}, len(enrolled)+len(accepted))
	var students []domain.UserID
	for _, id := range append(enrolled, accepted...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		students = append(students, id)
	}
	return students, nil
}
