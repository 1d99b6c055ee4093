// Package api serves the clinic REST API and mounts the realtime hub.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/mediflow/clinic/internal/auth"
	"github.com/mediflow/clinic/pkg/config"
	"github.com/mediflow/clinic/pkg/interfaces"
	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/monitoring"
)

// Dependencies are the collaborators the handlers call
type Dependencies struct {
	Users         interfaces.UserRepository
	Prescriptions interfaces.PrescriptionRepository
	Files         interfaces.FileRepository
	AccessList    interfaces.AccessListRepository
	Activity      interfaces.ActivityLogger
	Tokens        interfaces.TokenService
	Passwords     interfaces.PasswordHasher
	ResetCodes    interfaces.ResetCodeStore
	Mailer        interfaces.Mailer
	Blobs         interfaces.BlobStore
	Assistant     interfaces.Assistant
	Google        interfaces.GoogleVerifier
	// Realtime is mounted at the realtime path when set
	Realtime http.Handler
	Health   *monitoring.HealthManager
}

// Service provides the clinic HTTP API
type Service struct {
	config     *config.Config
	deps       Dependencies
	router     *mux.Router
	metrics    *monitoring.MetricsCollector
	monitoring *monitoring.MonitoringMiddleware
	logger     *logger.Logger

	loginLimiter *RateLimiter
	askLimiter   *RateLimiter
	maxUpload    int64
	newResetCode func() (string, error)
}

// NewService creates a new API service
func NewService(cfg *config.Config, deps Dependencies, metrics *monitoring.MetricsCollector,
	tracing *monitoring.TracingManager, log *logger.Logger) *Service {
	s := &Service{
		config:       cfg,
		deps:         deps,
		router:       mux.NewRouter(),
		metrics:      metrics,
		monitoring:   monitoring.NewMonitoringMiddleware(metrics, tracing, log),
		logger:       log,
		maxUpload:    int64(cfg.Server.MaxUploadSizeMB) << 20,
		newResetCode: auth.GenerateResetCode,
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 10 << 20
	}
	if cfg.RateLimit.Enabled {
		s.loginLimiter = NewRateLimiter(cfg.RateLimit.LoginPerMin, time.Minute)
		s.askLimiter = NewRateLimiter(cfg.RateLimit.AskPerMin, time.Minute)
	}

	s.router.Use(s.monitoring.HTTPMiddleware)
	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in the CORS and security header middleware.
// Monitoring runs inside the router so metrics see the matched route template.
func (s *Service) Handler() http.Handler {
	return s.corsMiddleware(s.securityHeadersMiddleware(s.router))
}

// StartCleanup drops idle rate limit buckets until ctx is done
func (s *Service) StartCleanup(ctx context.Context) {
	interval := time.Duration(s.config.RateLimit.CleanupInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	s.loginLimiter.StartCleanup(ctx, interval)
	s.askLimiter.StartCleanup(ctx, interval)
}

// Address returns the listen address from the server config
func (s *Service) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
}

// recordActivity appends to the activity trail. A failed write is logged and
// never fails the request.
func (s *Service) recordActivity(ctx context.Context, format string, args ...interface{}) {
	if s.deps.Activity == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if err := s.deps.Activity.Record(ctx, msg); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to record activity")
	}
}
