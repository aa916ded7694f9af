package repositories

import (
	"context"

	"liveclass/internal/core/ports"
	"liveclass/internal/infrastructure/repositories/memory"
	redisrepo "liveclass/internal/infrastructure/repositories/redis"
	"liveclass/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger

	// memoryCourses is kept so callers can seed collaborator data when
	// running without Redis.
	memoryCourses *memory.MemoryCourseRepository
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

func (f *RepositoryFactory) CreateSessionRepository() ports.SessionRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisSessionRepository(f.redisClient)
	}
	return memory.NewMemorySessionRepository()
}

func (f *RepositoryFactory) CreateCourseRepository() ports.CourseRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisCourseRepository(f.redisClient)
	}
	if f.memoryCourses == nil {
		f.memoryCourses = memory.NewMemoryCourseRepository()
	}
	return f.memoryCourses
}

func (f *RepositoryFactory) CreateUserRepository() ports.UserRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisUserRepository(f.redisClient)
	}
	return memory.NewMemoryUserRepository()
}

func (f *RepositoryFactory) CreateNotificationRepository() ports.NotificationRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisNotificationRepository(f.redisClient)
	}
	return memory.NewMemoryNotificationRepository()
}

// MemoryCourses returns the seedable in-memory course repository, or nil
// when Redis backs the course data.
func (f *RepositoryFactory) MemoryCourses() *memory.MemoryCourseRepository {
	return f.memoryCourses
}

// RedisClient exposes the underlying client for health checks; nil when
// memory repositories are in use.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	return f.redisClient
}

// Close closes the Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
