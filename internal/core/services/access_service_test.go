package services

import (
	"context"
	"testing"

	"liveclass/internal/core/domain"
	"liveclass/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccessCourse(t *testing.T) *memory.MemoryCourseRepository {
	t.Helper()

	courses := memory.NewMemoryCourseRepository()
	courses.SeedCourse(&domain.Course{ID: "course-1", Title: "Algebra", Tutor: "tutor-1"})
	courses.SeedEnrollment(domain.Enrollment{
		CourseID: "course-1", StudentID: "enrolled", Status: domain.EnrollmentActive,
	})
	courses.SeedEnrollment(domain.Enrollment{
		CourseID: "course-1", StudentID: "lapsed", Status: domain.EnrollmentInactive,
	})
	courses.SeedTutorRequest(domain.TutorRequest{
		CourseID: "course-1", StudentID: "accepted", Status: domain.TutorRequestAccepted,
	})
	courses.SeedTutorRequest(domain.TutorRequest{
		CourseID: "course-1", StudentID: "pending", Status: domain.TutorRequestPending,
	})
	return courses
}

func TestAccessService_IsEligible(t *testing.T) {
	access := NewAccessService(seedAccessCourse(t))

	cases := []struct {
		name     string
		userID   domain.UserID
		eligible bool
	}{
		{"owning tutor", "tutor-1", true},
		{"active enrollment", "enrolled", true},
		{"accepted tutor request", "accepted", true},
		{"inactive enrollment", "lapsed", false},
		{"pending tutor request", "pending", false},
		{"stranger", "stranger", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eligible, err := access.IsEligible(context.Background(), tc.userID, "course-1")
			require.NoError(t, err)
			assert.Equal(t, tc.eligible, eligible)
		})
	}
}

func TestAccessService_UnknownCourse(t *testing.T) {
	access := NewAccessService(memory.NewMemoryCourseRepository())

	_, err := access.IsEligible(context.Background(), "anyone", "missing")
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestAccessService_EligibleStudentsDeduplicates(t *testing.T) {
	courses := seedAccessCourse(t)
	// Same student via both routes must appear once.
	courses.SeedTutorRequest(domain.TutorRequest{
		CourseID: "course-1", StudentID: "enrolled", Status: domain.TutorRequestAccepted,
	})

	access := NewAccessService(courses)
	students, err := access.EligibleStudents(context.Background(), "course-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.UserID{"enrolled", "accepted"}, students)
}

func TestAccessService_RevocationTakesImmediateEffect(t *testing.T) {
	courses := memory.NewMemoryCourseRepository()
	courses.SeedCourse(&domain.Course{ID: "course-1", Title: "Algebra", Tutor: "tutor-1"})
	access := NewAccessService(courses)

	eligible, err := access.IsEligible(context.Background(), "student-1", "course-1")
	require.NoError(t, err)
	assert.False(t, eligible)

	// Enrollment lands after the service was built; the next check must
	// already see it.
	courses.SeedEnrollment(domain.Enrollment{
		CourseID: "course-1", StudentID: "student-1", Status: domain.EnrollmentActive,
	})

	eligible, err = access.IsEligible(context.Background(), "student-1", "course-1")
	require.NoError(t, err)
	assert.True(t, eligible)
}
