package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mesikahq/luxe-portal/internal/metrics"
	"github.com/mesikahq/luxe-portal/internal/middleware"
	"github.com/mesikahq/luxe-portal/internal/session"
	"github.com/mesikahq/luxe-portal/web"
)

type RouterConfig struct {
	RateLimit      rate.Limit
	RateBurst      int
	RequestTimeout time.Duration
}

type Router struct {
	handler  *Handler
	sessions *session.Store
	metrics  *metrics.Metrics
	config   RouterConfig
}

func NewRouter(handler *Handler, sessions *session.Store, m *metrics.Metrics, config RouterConfig) *Router {
	if config.RateLimit <= 0 {
		config.RateLimit = 30
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 30
	}
	return &Router{
		handler:  handler,
		sessions: sessions,
		metrics:  m,
		config:   config,
	}
}

func (r *Router) SetupRouter(logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()

	// Apply global middleware
	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.SecurityHeadersMiddleware(),
		middleware.RecoveryMiddleware(logger),
		middleware.LoggerMiddleware(logger, r.metrics),
		middleware.RateLimitMiddleware(r.config.RateLimit, r.config.RateBurst),
		session.Middleware(r.sessions),
		middleware.AuditContextMiddleware(),
		middleware.TimeoutMiddleware(r.config.RequestTimeout),
	)

	router.StaticFS("/static", web.Static())
	router.SetHTMLTemplate(web.Templates(TemplateFuncs()))

	router.GET("/health", r.handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(r.metrics.Handler()))

	// Public routes
	router.GET("/", r.handler.LoginPage)
	router.POST("/login", r.handler.Login)
	router.POST("/logout", r.handler.Logout)

	contact := router.Group("/contact")
	{
		contact.POST("/format", r.handler.FormatContact)
		contact.POST("/validate", r.handler.ValidateContact)
	}

	// Protected routes (require a session)
	protected := router.Group("")
	protected.Use(session.Require())
	{
		protected.GET("/dashboard", r.handler.Dashboard)
		protected.GET("/add-patient", r.handler.AddPatientPage)
		protected.POST("/add-patient", r.handler.AddPatient)
		protected.GET("/edit-patient/:id", r.handler.EditPatientPage)
		protected.POST("/edit-patient/:id", r.handler.UpdatePatient)
		protected.POST("/patients/:id/delete", r.handler.DeletePatient)
	}

	router.NoRoute(r.handler.NotFound)

	return router
}
