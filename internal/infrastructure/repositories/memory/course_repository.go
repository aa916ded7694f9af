package memory

import (
	"context"
	"sync"

	"liveclass/internal/core/domain"
)

// MemoryCourseRepository holds the collaborator data the live-session
// subsystem consumes: course ownership, enrollments and tutor-requests.
// The catalog/payment subsystems own this data for real; Seed* mirrors
// their writes for tests and single-binary deployments.
type MemoryCourseRepository struct {
	courses       map[domain.CourseID]*domain.Course
	enrollments   map[domain.CourseID][]domain.Enrollment
	tutorRequests map[domain.CourseID][]domain.TutorRequest
	mu            sync.RWMutex
}

func NewMemoryCourseRepository() *MemoryCourseRepository {
	return &MemoryCourseRepository{
		courses:       make(map[domain.CourseID]*domain.Course),
		enrollments:   make(map[domain.CourseID][]domain.Enrollment),
		tutorRequests: make(map[domain.CourseID][]domain.TutorRequest),
	}
}

func (r *MemoryCourseRepository) GetByID(ctx context.Context, id domain.CourseID) (*domain.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	course, exists := r.courses[id]
	if !exists {
		return nil, domain.ErrCourseNotFound
	}
	c := *course
	return &c, nil
}

func (r *MemoryCourseRepository) ActiveEnrollments(ctx context.Context, courseID domain.CourseID) ([]domain.UserID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.UserID
	for _, e := range r.enrollments[courseID] {
		if e.Status == domain.EnrollmentActive {
			out = append(out, e.StudentID)
		}
	}
	return out, nil
}

func (r *MemoryCourseRepository) AcceptedTutorRequests(ctx context.Context, courseID domain.CourseID) ([]domain.UserID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.UserID
	for _, tr := range r.tutorRequests[courseID] {
		if tr.Status == domain.TutorRequestAccepted {
			out = append(out, tr.StudentID)
		}
	}
	return out, nil
}

func (r *MemoryCourseRepository) SeedCourse(course *domain.Course) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *course
	r.courses[course.ID] = &c
}

func (r *MemoryCourseRepository) SeedEnrollment(enrollment domain.Enrollment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enrollments[enrollment.CourseID] = append(r.enrollments[enrollment.CourseID], enrollment)
}

func (r *MemoryCourseRepository) SeedTutorRequest(request domain.TutorRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tutorRequests[request.CourseID] = append(r.tutorRequests[request.CourseID], request)
}
