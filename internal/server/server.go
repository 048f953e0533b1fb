package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/petfeeder/internal/audit/domain"
	"github.com/smallbiznis/petfeeder/internal/captcha"
	"github.com/smallbiznis/petfeeder/internal/config"
	"github.com/smallbiznis/petfeeder/internal/observability"
	obslogger "github.com/smallbiznis/petfeeder/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/petfeeder/internal/observability/metrics"
	obstracing "github.com/smallbiznis/petfeeder/internal/observability/tracing"
	"github.com/smallbiznis/petfeeder/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewVerifier),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(httpMetrics.Handler()))

	return r
}

// NewVerifier builds the siteverify client with a traced, bounded HTTP client.
func NewVerifier(cfg config.Config) *captcha.Verifier {
	client := obstracing.WrapHTTPClient(&http.Client{Timeout: 10 * time.Second})
	return captcha.NewVerifier(cfg.Captcha.SecretKey, cfg.Captcha.VerifyURL, client)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening",
				zap.String("addr", cfg.HTTPAddr),
				zap.String("public_dir", cfg.PublicDir),
				zap.Bool("backend_configured", cfg.Backend.Configured()),
			)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	sites      *config.SiteKeyHolder
	verifier   *captcha.Verifier
	limiter    *ratelimit.VerifyLimiter
	replay     *ratelimit.ReplayGuard
	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
	startedAt  time.Time
	now        func() time.Time
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Sites      *config.SiteKeyHolder
	Verifier   *captcha.Verifier
	AuditSvc   auditdomain.Service
	Limiter    *ratelimit.VerifyLimiter `optional:"true"`
	Replay     *ratelimit.ReplayGuard   `optional:"true"`
	ObsMetrics *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		sites:      p.Sites,
		verifier:   p.Verifier,
		limiter:    p.Limiter,
		replay:     p.Replay,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
		startedAt:  time.Now(),
		now:        time.Now,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	s.engine.GET("/health", s.Health)

	api := s.engine.Group("/api")
	api.GET("/config", s.PublicConfig)
	api.POST("/verify-captcha", s.VerifyRateLimit(), s.VerifyCaptcha)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(s.ServeStatic)
}
