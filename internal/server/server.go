package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/streamgate/internal/audit/domain"
	"github.com/smallbiznis/streamgate/internal/authorization"
	automationdomain "github.com/smallbiznis/streamgate/internal/automation/domain"
	"github.com/smallbiznis/streamgate/internal/config"
	identitydomain "github.com/smallbiznis/streamgate/internal/identity/domain"
	"github.com/smallbiznis/streamgate/internal/observability"
	obsmiddleware "github.com/smallbiznis/streamgate/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/streamgate/internal/observability/metrics"
	obstracing "github.com/smallbiznis/streamgate/internal/observability/tracing"
	"github.com/smallbiznis/streamgate/internal/ratelimit"
	webhookdomain "github.com/smallbiznis/streamgate/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxWebhookBytes bounds gateway payloads read into memory.
const maxWebhookBytes = 1 << 20

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	webhookSvc    webhookdomain.Service
	automationSvc automationdomain.Service
	identitySvc   identitydomain.Service
	auditSvc      auditdomain.Service
	authzSvc      authorization.Service
	keys          *authorization.KeyRing
	publicLimiter *ratelimit.PublicLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB `optional:"true"`
	Log           *zap.Logger
	WebhookSvc    webhookdomain.Service
	AutomationSvc automationdomain.Service
	IdentitySvc   identitydomain.Service
	AuditSvc      auditdomain.Service
	AuthzSvc      authorization.Service
	Keys          *authorization.KeyRing
	PublicLimiter *ratelimit.PublicLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		log:           p.Log.Named("http.server"),
		webhookSvc:    p.WebhookSvc,
		automationSvc: p.AutomationSvc,
		identitySvc:   p.IdentitySvc,
		auditSvc:      p.AuditSvc,
		authzSvc:      p.AuthzSvc,
		keys:          p.Keys,
		publicLimiter: p.PublicLimiter,
	}

	svc.engine.GET("/health", svc.Health)
	svc.registerWebhookRoutes()
	svc.registerPublicRoutes()
	svc.registerOperatorRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/:gateway", s.HandleGatewayWebhook)
}

func (s *Server) registerPublicRoutes() {
	api := s.engine.Group("/api")

	api.GET("/payments/:paymentId/status", s.PublicRateLimit("payment_status"), s.GetPaymentStatus)
	api.POST("/checkout/drafts", s.PublicRateLimit("checkout_draft"), s.CreateCheckoutDraft)
}

func (s *Server) registerOperatorRoutes() {
	api := s.engine.Group("/api/automations", s.OperatorRequired())

	api.GET("", s.authorizeOperator(authorization.ObjectAutomation, authorization.ActionAutomationList), s.ListAutomations)
	api.GET("/:id", s.authorizeOperator(authorization.ObjectAutomation, authorization.ActionAutomationView), s.GetAutomation)
	api.GET("/:id/audit", s.authorizeOperator(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAutomationAudit)
	api.POST("/:id/retry", s.authorizeOperator(authorization.ObjectAutomation, authorization.ActionAutomationRetry), s.RetryAutomation)
}

// Health reports liveness and, when a database is wired, its reachability.
func (s *Server) Health(c *gin.Context) {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			err = sqlDB.PingContext(ctx)
			cancel()
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
