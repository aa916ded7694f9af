package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"liveclass/internal/core/domain"
	"liveclass/internal/core/ports"
	"liveclass/internal/core/services"
	httphandlers "liveclass/internal/handlers/http"
	archiveinfra "liveclass/internal/infrastructure/archive"
	"liveclass/internal/infrastructure/distributed"
	"liveclass/internal/infrastructure/loadbalancer"
	"liveclass/internal/infrastructure/middleware"
	"liveclass/internal/infrastructure/monitoring"
	"liveclass/internal/infrastructure/reliability"
	repositories "liveclass/internal/infrastructure/repositories"
	signalhub "liveclass/internal/infrastructure/signal"
	"liveclass/pkg/archive"
	"liveclass/pkg/circuitbreaker"
	"liveclass/pkg/config"
	"liveclass/pkg/logger"
	"liveclass/pkg/retry"
	"liveclass/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// hubRelay breaks the constructor cycle between the session service and
// the signaling hub: the service needs an event sink before the hub
// exists. Events fired before bind are dropped, which only affects the
// first instants of process startup.
type hubRelay struct {
	hub *signalhub.Hub
}

func (r *hubRelay) bind(hub *signalhub.Hub) { r.hub = hub }

func (r *hubRelay) SessionStarted(ctx context.Context, session *domain.LiveSession) {
	if r.hub != nil {
		r.hub.SessionStarted(ctx, session)
	}
}

func (r *hubRelay) SessionEnded(ctx context.Context, session *domain.LiveSession) {
	if r.hub != nil {
		r.hub.SessionEnded(ctx, session)
	}
}

func (r *hubRelay) SendToUser(userID domain.UserID, event string, payload interface{}) {
	if r.hub != nil {
		r.hub.SendToUser(userID, event, payload)
	}
}

// sessionEventFanout delivers lifecycle events to every sink in order.
type sessionEventFanout []ports.SessionEvents

func (f sessionEventFanout) SessionStarted(ctx context.Context, session *domain.LiveSession) {
	for _, sink := range f {
		sink.SessionStarted(ctx, session)
	}
}

func (f sessionEventFanout) SessionEnded(ctx context.Context, session *domain.LiveSession) {
	for _, sink := range f {
		sink.SessionEnded(ctx, session)
	}
}

func main() {
	startTime := time.Now()

	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/liveclass/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		cfg = config.DefaultConfig()
	}

	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	hostname, _ := os.Hostname()
	instanceID := fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
	log.Infow("starting liveclass", "instance_id", instanceID)

	tracerProvider, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "liveclass",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}

	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	sessionRepo := repoFactory.CreateSessionRepository()
	courseRepo := repoFactory.CreateCourseRepository()
	userRepo := repoFactory.CreateUserRepository()
	notificationRepo := repoFactory.CreateNotificationRepository()

	relay := &hubRelay{}

	var collector *monitoring.PrometheusCollector
	var hubMetrics signalhub.Metrics
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
		hubMetrics = collector
	}

	// Lifecycle events fan out to the hub first, then optional sinks.
	events := sessionEventFanout{relay}
	if collector != nil {
		events = append(events, collector)
	}

	var sweeper *archiveinfra.RetentionSweeper
	if cfg.Archive.Enabled {
		storage, err := archive.NewFileStorage(cfg.Archive.Path)
		if err != nil {
			log.Fatalw("failed to open archive storage", "error", err)
		}
		store := archive.NewStore(storage, "1.0.0")
		events = append(events, archiveinfra.NewSessionArchiver(store, log))
		sweeper = archiveinfra.NewRetentionSweeper(store, archiveinfra.RetentionConfig{
			Interval:      cfg.Archive.SweepInterval,
			RetentionDays: cfg.Archive.RetentionDays,
		}, log)
	}

	var eventBus *distributed.SessionEventBus
	var presenceRegistry *distributed.PresenceRegistry
	var presence signalhub.Presence
	var sessionEvents ports.SessionEvents = events
	if client := repoFactory.RedisClient(); client != nil {
		eventBus = distributed.NewSessionEventBus(client, instanceID, log)
		presenceRegistry = distributed.NewPresenceRegistry(client, instanceID, log)
		presence = distributed.NewRoomPresence(presenceRegistry, eventBus, log)
		sessionEvents = distributed.NewPublishingSessionEvents(events, eventBus, log)
	}

	accessService := services.NewAccessService(courseRepo)
	notifier := services.NewNotificationService(notificationRepo, relay, log)
	var sessionService ports.SessionService = services.NewSessionService(
		sessionRepo, courseRepo, accessService, sessionEvents, notifier, log)

	// With a networked session store, mutations ride behind retry and a
	// circuit breaker. In-memory stores don't fail transiently.
	if cfg.Reliability.Retry.Enabled {
		sessionService = reliability.NewSessionServiceWrapper(sessionService, retry.Config{
			Enabled:      true,
			MaxAttempts:  cfg.Reliability.Retry.MaxAttempts,
			InitialDelay: cfg.Reliability.Retry.InitialDelay,
			MaxDelay:     cfg.Reliability.Retry.MaxDelay,
			Multiplier:   cfg.Reliability.Retry.Multiplier,
			Jitter:       cfg.Reliability.Retry.Jitter,
		}, circuitbreaker.Config{
			FailureThreshold:    cfg.Reliability.CircuitBreaker.FailureThreshold,
			SuccessThreshold:    cfg.Reliability.CircuitBreaker.SuccessThreshold,
			Timeout:             cfg.Reliability.CircuitBreaker.Timeout,
			MaxRequestsHalfOpen: cfg.Reliability.CircuitBreaker.MaxRequestsHalfOpen,
		}, log)
	}

	authService := services.NewAuthService(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	hub := signalhub.NewHub(sessionService, accessService, hubMetrics, presence, log)
	relay.bind(hub)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	if eventBus != nil {
		bridge := distributed.NewHubBridge(eventBus, hub, sessionService, log)
		go func() {
			if err := bridge.Run(rootCtx); err != nil && rootCtx.Err() == nil {
				log.Errorw("event bridge stopped", "error", err)
			}
		}()
		defer eventBus.Close()
	}

	if sweeper != nil {
		go sweeper.Start(rootCtx)
		defer sweeper.Stop()
	}

	wsServer := signalhub.NewWebSocketServer(hub, authService, signalhub.WebSocketServerOptions{
		PingInterval:      cfg.WebSocket.PingInterval,
		PongTimeout:       cfg.WebSocket.PongTimeout,
		WriteTimeout:      cfg.WebSocket.WriteTimeout,
		SendBuffer:        cfg.WebSocket.SendBufferSize,
		MessagesPerSecond: cfg.RateLimiting.WebSocket.MessagesPerSecond,
		MessageBurst:      cfg.RateLimiting.WebSocket.Burst,
	}, log)

	// One instance sweeps idle sessions for the whole fleet; with no
	// shared store every instance sweeps its own.
	runJanitor := true
	if presenceRegistry != nil {
		lock, acquired, err := presenceRegistry.TrySweepLock(rootCtx, 2*cfg.Sessions.SweepInterval)
		if err != nil {
			log.Warnw("sweep lock unavailable, skipping janitor", "error", err)
			runJanitor = false
		} else if !acquired {
			log.Infow("another instance holds the sweep lock")
			runJanitor = false
		} else {
			defer func() {
				if err := lock.Unlock(context.Background()); err != nil {
					log.Debugw("sweep lock release", "error", err)
				}
			}()
		}
	}
	if runJanitor {
		janitor := services.NewSessionJanitor(
			sessionRepo,
			sessionService,
			cfg.Sessions.IdleTimeout,
			cfg.Sessions.SweepInterval,
			log,
		)
		janitor.Start()
		defer janitor.Stop()
	}

	if os.Getenv("LIVECLASS_SEED_DEMO") != "" {
		seedDemoData(repoFactory, log)
	}

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.AddSessionStoreCheck(sessionRepo, 30*time.Second, 2*time.Second)
	if client := repoFactory.RedisClient(); client != nil {
		healthChecker.AddRedisCheck(client, 30*time.Second, 2*time.Second)
	}

	authHandler := httphandlers.NewAuthHandler(authService, userRepo, cfg.Auth.AccessTokenTTL)
	sessionHandler := httphandlers.NewSessionHandler(sessionService, accessService)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	authHandler.SetupRoutes(router)
	sessionHandler.SetupRoutes(router, authService)

	sticky := loadbalancer.NewStickyRouter(
		cfg.Cluster.StickySecret,
		cfg.Cluster.StickyCookie,
		cfg.Cluster.StickyMaxAge,
	)
	router.GET("/ws",
		sticky.PinMiddleware(instanceID),
		middleware.NewWebSocketConnectMiddleware(cfg),
		func(c *gin.Context) {
			wsServer.HandleWebSocket(c.Writer, c.Request)
		})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"instance_id": instanceID,
			"timestamp":   time.Now(),
			"uptime":      time.Since(startTime).String(),
		})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := healthChecker.CheckAll(ctx)
		if status.Status != "healthy" {
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting liveclass server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down liveclass server...")
	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	} else {
		log.Info("Server shutdown gracefully")
	}

	if presenceRegistry != nil {
		if err := presenceRegistry.CleanupInstance(shutdownCtx, instanceID); err != nil {
			log.Warnw("Error cleaning up instance presence", "error", err)
		}
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Error shutting down tracer", "error", err)
		}
	}

	if err := repoFactory.Close(); err != nil {
		log.Errorw("Error closing repository factory", "error", err)
	}

	log.Info("liveclass server stopped")
}

// seedDemoData loads a small fixture set for local development: one
// tutor-owned course with two enrolled students. Only effective with the
// in-memory course repository.
func seedDemoData(factory *repositories.RepositoryFactory, log *zap.SugaredLogger) {
	courses := factory.MemoryCourses()
	if courses == nil {
		return
	}

	courses.SeedCourse(&domain.Course{
		ID:    "course-demo",
		Title: "Demo Course",
		Tutor: "tutor-demo",
	})
	courses.SeedEnrollment(domain.Enrollment{
		CourseID:  "course-demo",
		StudentID: "student-one",
		Status:    domain.EnrollmentActive,
	})
	courses.SeedTutorRequest(domain.TutorRequest{
		CourseID:  "course-demo",
		StudentID: "student-two",
		Status:    domain.TutorRequestAccepted,
	})

	log.Infow("seeded demo data", "course_id", "course-demo")
}
