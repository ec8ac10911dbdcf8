package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/orghub/security-log/internal/classify"
	"github.com/orghub/security-log/internal/config"
	"github.com/orghub/security-log/internal/handler"
	"github.com/orghub/security-log/internal/middleware"
	"github.com/orghub/security-log/internal/proxy"
	"github.com/orghub/security-log/internal/repository"
	"github.com/orghub/security-log/internal/service"
	"github.com/orghub/security-log/internal/storage"
)

type Server struct {
	router       *gin.Engine
	config       *config.Config
	postgres     *storage.Postgres
	mongo        *storage.Mongo
	redis        *storage.RedisClient
	log          *logrus.Logger
	graphqlProxy *proxy.Proxy
	auditHandler *handler.AuditHandler
	authHandler  *handler.AuthHandler
	authService  *service.AuthService
	httpServer   *http.Server
}

// mongo and redis may be nil; the pipeline degrades instead of failing.
func New(cfg *config.Config, postgres *storage.Postgres, mongo *storage.Mongo, redis *storage.RedisClient, log *logrus.Logger) (*Server, error) {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	graphqlProxy, err := proxy.New(cfg.Upstream.GraphQLURL)
	if err != nil {
		return nil, err
	}

	summaryRepo := repository.NewLogSummaryRepository(postgres)
	authRepo := repository.NewUserRepository(postgres)

	var detailRepo *repository.LogDetailRepository
	if mongo != nil {
		detailRepo = repository.NewLogDetailRepository(mongo)
	}

	authService := service.NewAuthService(authRepo, cfg.JWT.Secret, cfg.JWT.ExpiryHours)

	var detailReader service.DetailReader
	if detailRepo != nil {
		detailReader = detailRepo
	}
	auditService := service.NewAuditService(summaryRepo, detailReader, redis, log)

	s := &Server{
		router:       router,
		config:       cfg,
		postgres:     postgres,
		mongo:        mongo,
		redis:        redis,
		log:          log,
		graphqlProxy: graphqlProxy,
		auditHandler: handler.NewAuditHandler(auditService),
		authHandler:  handler.NewAuthHandler(authService),
		authService:  authService,
	}

	s.setupMiddleware()
	s.setupRoutes(summaryRepo, detailRepo)

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.log))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.log))
}

func (s *Server) setupRoutes(summaryRepo *repository.LogSummaryRepository, detailRepo *repository.LogDetailRepository) {
	s.router.GET("/health", s.healthCheck)

	// Every GraphQL call passes through the audit pipeline before being
	// proxied upstream. OptionalAuth only attributes the caller; the
	// upstream enforces its own authorization.
	var detailWriter middleware.DetailWriter
	if detailRepo != nil {
		detailWriter = detailRepo
	}
	s.router.POST("/graphql",
		middleware.OptionalAuth(s.authService),
		middleware.SecurityLogger(summaryRepo, detailWriter, classify.DefaultModuleRules(), s.log),
		s.graphqlProxy.Handle,
	)

	s.router.POST("/admin/auth/login", s.authHandler.Login)

	limit := s.config.RateLimit.RequestsPerMinute
	if limit <= 0 {
		limit = 120
	}

	admin := s.router.Group("/admin/security-logs")
	admin.Use(middleware.RequireAuth(s.authService))
	admin.Use(middleware.RateLimit(s.redis, limit, time.Minute, s.log))
	{
		admin.GET("", s.auditHandler.List)
		admin.GET("/stats", s.auditHandler.Statistics)
		admin.GET("/:id", s.auditHandler.Get)
		admin.GET("/:id/detail", s.auditHandler.GetDetail)
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	dbHealthy := true
	if err := s.postgres.Ping(ctx); err != nil {
		dbHealthy = false
		s.log.WithError(err).Warn("postgres health check failed")
	}

	mongoHealthy := true
	if s.mongo != nil {
		if err := s.mongo.Ping(ctx); err != nil {
			mongoHealthy = false
			s.log.WithError(err).Warn("mongo health check failed")
		}
	}

	redisHealthy := true
	if s.redis != nil {
		if err := s.redis.Ping(ctx); err != nil {
			redisHealthy = false
			s.log.WithError(err).Warn("redis health check failed")
		}
	}

	// Only the relational store is load-bearing: summary logging and the
	// read API live there. Mongo or redis being down is a degraded state.
	status := "healthy"
	statusCode := http.StatusOK
	if !dbHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	} else if !mongoHealthy || !redisHealthy {
		status = "degraded"
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "security-log",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"postgres": dbHealthy,
			"mongo":    mongoHealthy,
			"redis":    redisHealthy,
		},
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	s.log.WithField("addr", addr).Info("starting security-log gateway")

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
