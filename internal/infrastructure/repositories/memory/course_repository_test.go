package memory

import (
	"context"
	"testing"

	"liveclass/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCourseRepository_GetByID(t *testing.T) {
	repo := NewMemoryCourseRepository()
	repo.SeedCourse(&domain.Course{ID: "course-1", Title: "Algebra", Tutor: "tutor-1"})

	got, err := repo.GetByID(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("tutor-1"), got.Tutor)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestMemoryCourseRepository_ActiveEnrollmentsFiltersStatus(t *testing.T) {
	repo := NewMemoryCourseRepository()
	repo.SeedCourse(&domain.Course{ID: "course-1", Tutor: "tutor-1"})
	repo.SeedEnrollment(domain.Enrollment{
		CourseID: "course-1", StudentID: "student-1", Status: domain.EnrollmentActive,
	})
	repo.SeedEnrollment(domain.Enrollment{
		CourseID: "course-1", StudentID: "student-2", Status: domain.EnrollmentInactive,
	})

	out, err := repo.ActiveEnrollments(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"student-1"}, out)
}

func TestMemoryCourseRepository_AcceptedTutorRequestsFiltersStatus(t *testing.T) {
	repo := NewMemoryCourseRepository()
	repo.SeedCourse(&domain.Course{ID: "course-1", Tutor: "tutor-1"})
	repo.SeedTutorRequest(domain.TutorRequest{
		CourseID: "course-1", StudentID: "student-1", Status: domain.TutorRequestAccepted,
	})
	repo.SeedTutorRequest(domain.TutorRequest{
		CourseID: "course-1", StudentID: "student-2", Status: domain.TutorRequestPending,
	})

	out, err := repo.AcceptedTutorRequests(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"student-1"}, out)
}

func TestMemoryCourseRepository_UnknownCourseYieldsEmpty(t *testing.T) {
	repo := NewMemoryCourseRepository()

	out, err := repo.ActiveEnrollments(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, out)
}
