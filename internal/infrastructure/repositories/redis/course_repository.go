package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisCourseRepository reads the collaborator keys the catalog and
// enrollment subsystems maintain:
//
//	liveclass:course:<id>                   JSON course record
//	liveclass:course:<id>:enrolled          set of student ids (active enrollments)
//	liveclass:course:<id>:accepted          set of student ids (accepted tutor-requests)
type RedisCourseRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisCourseRepository(client *redis.Client) ports.CourseRepository {
	return &RedisCourseRepository{
		client: client,
		prefix: "liveclass:course:",
	}
}

func (r *RedisCourseRepository) GetByID(ctx context.Context, id domain.CourseID) (*domain.Course, error) {
	data, err := r.client.Get(ctx, r.prefix+string(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrCourseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course from Redis: %w", err)
	}

	var course domain.Course
	if err := json.Unmarshal([]byte(data), &course); err != nil {
		return nil, fmt.Errorf("failed to unmarshal course: %w", err)
	}
	return &course, nil
}

func (r *RedisCourseRepository) ActiveEnrollments(ctx context.Context, courseID domain.CourseID) ([]domain.UserID, error) {
	return r.members(ctx, r.prefix+string(courseID)+":enrolled")
}

func (r *RedisCourseRepository) AcceptedTutorRequests(ctx context.Context, courseID domain.CourseID) ([]domain.UserID, error) {
	return r.members(ctx, r.prefix+string(courseID)+":accepted")
}

func (r *RedisCourseRepository) members(ctx context.Context, key string) ([]domain.UserID, error) {
	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	out := make([]domain.UserID, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.UserID(id))
	}
	return out, nil
}
