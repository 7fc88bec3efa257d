// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sage/internal/domain"
	"sage/internal/domain/auth"
	"sage/internal/domain/catalog"
	"sage/internal/domain/homologation"
	"sage/internal/domain/ingest"
	"sage/internal/domain/materialize"
	"sage/internal/domain/notify"
	"sage/internal/domain/reader"
	"sage/internal/domain/schema"
	"sage/internal/domain/submission"
	"sage/internal/infrastructure/http/v1/handlers"
	"sage/internal/infrastructure/http/v1/middleware"
	"sage/pkg/logger"
)

// defaultMaxUploadBytes bounds multipart uploads kept in memory.
const defaultMaxUploadBytes = 32 << 20

// Services groups the domain services exposed over HTTP.
type Services struct {
	Schema       *schema.Service
	Materializer *materialize.Service
	Catalogs     *catalog.Service
	Ingest       *ingest.Service
	Reader       *reader.Reader
	Submissions  *submission.Service
	Alerts       *notify.AlertService
	Homologation *homologation.Service
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Version is reported by /health/info
	Version string

	// DB is probed by readiness checks
	DB handlers.Pinger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// APIKeys resolves catalog API keys; nil disables key authentication
	APIKeys middleware.APIKeyVerifier

	// Idempotency store for row saves; nil disables replay protection
	Idempotency middleware.IdempotencyStore

	// Metrics records request latency
	Metrics domain.Metrics

	// MetricsHandler serves the scrape endpoint when set
	MetricsHandler http.Handler

	// MaxUploadBytes bounds multipart memory
	MaxUploadBytes int64

	Services Services
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes
	if router.MaxMultipartMemory <= 0 {
		router.MaxMultipartMemory = defaultMaxUploadBytes
	}
	if cfg.Metrics == nil {
		cfg.Metrics = domain.NopMetrics{}
	}

	// Global middleware (order matters!)
	router.Use(middleware.Recovery(cfg.Metrics))
	router.Use(middleware.Trace(cfg.Logger))
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.Metrics(cfg.Metrics))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator, cfg.APIKeys))
	{
		// API key callers reach only the data routes; the handler checks
		// the key's product.
		registerDataRoutes(v1, cfg)

		people := v1.Group("")
		people.Use(middleware.RequireUser())
		registerSchemaRoutes(people, cfg)
		registerCatalogRoutes(people, cfg)
		registerSubmissionRoutes(people, cfg)
		registerHomologationRoutes(people, cfg)
	}

	return router
}

func editor() gin.HandlerFunc {
	return middleware.RequireRole(auth.RoleEditor)
}

// registerSchemaRoutes registers product, field and rule endpoints.
func registerSchemaRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	s := cfg.Services
	products := rg.Group("/products")

	productHandler := handlers.NewProductHandler(s.Schema, s.Materializer)
	RegisterCRUDRoutes(products, productHandler, editor())
	products.POST("/:id/materialize", editor(), productHandler.Materialize)
	products.POST("/:id/sync", editor(), productHandler.Sync)

	fieldHandler := handlers.NewFieldHandler(s.Schema)
	fields := products.Group("/:id/fields")
	{
		fields.GET("", fieldHandler.List)
		fields.POST("", editor(), fieldHandler.Create)
		fields.GET("/:fieldId", fieldHandler.Get)
		fields.PUT("/:fieldId", editor(), fieldHandler.Update)
		fields.DELETE("/:fieldId", editor(), fieldHandler.Delete)

		fields.POST("/:fieldId/rules", editor(), fieldHandler.CreateRule)
		fields.GET("/:fieldId/rules/:ruleId", fieldHandler.GetRule)
		fields.PUT("/:fieldId/rules/:ruleId", editor(), fieldHandler.UpdateRule)
		fields.DELETE("/:fieldId/rules/:ruleId", editor(), fieldHandler.DeleteRule)
	}

	dataHandler := handlers.NewDataHandler(s.Ingest, s.Reader, s.Catalogs)
	products.GET("/:id/table/rows", dataHandler.Rows)
	products.GET("/:id/template", dataHandler.Template)

	submissionHandler := handlers.NewSubmissionHandler(s.Submissions, s.Alerts)
	products.GET("/:id/submissions", submissionHandler.List)
}

// registerDataRoutes registers the endpoints open to API key callers.
func registerDataRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	s := cfg.Services
	h := handlers.NewDataHandler(s.Ingest, s.Reader, s.Catalogs)

	saves := []gin.HandlerFunc{}
	if cfg.Idempotency != nil {
		saves = append(saves, middleware.Idempotency(cfg.Idempotency))
	}

	data := rg.Group("/products/:id")
	{
		data.GET("/table", h.Describe)
		data.POST("/validate", h.Validate)
		data.POST("/rows", append(saves, h.SaveRow)...)
		data.POST("/rows/bulk", append(saves, h.SaveBulk)...)
	}
}

// registerCatalogRoutes registers catalog endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	s := cfg.Services
	h := handlers.NewCatalogHandler(s.Catalogs, s.Schema)
	catalogs := rg.Group("/catalogs")

	// Static paths before the :id routes.
	catalogs.GET("/summary", h.Summary)
	catalogs.GET("/pending/export", h.ExportPending)
	catalogs.GET("/fields/template", h.DefinitionTemplate)

	RegisterCRUDRoutes(catalogs, h, editor())
	catalogs.POST("/:id/api-key", editor(), h.RotateAPIKey)
	catalogs.POST("/:id/fields/upload", editor(), h.UploadFields)
	catalogs.GET("/:id/uploads", h.Uploads)
}

// registerSubmissionRoutes registers the audit trail, dashboard and alerts.
func registerSubmissionRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	s := cfg.Services
	h := handlers.NewSubmissionHandler(s.Submissions, s.Alerts)

	rg.GET("/submissions", h.List)
	rg.GET("/submissions/:id", h.Get)
	rg.GET("/dashboard", h.Dashboard)
	rg.GET("/alerts", h.Alerts)
}

// registerHomologationRoutes registers the official catalog and homologation endpoints.
func registerHomologationRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	h := handlers.NewHomologationHandler(cfg.Services.Homologation)
	g := rg.Group("/homologation")

	g.GET("/items", h.ListItems)
	g.POST("/items", editor(), h.CreateItem)
	g.POST("/items/upload", editor(), h.ImportItems)
	g.GET("/items/template", h.ItemTemplate)

	g.GET("/pending-products", h.PendingProducts)
	g.GET("/pending-products/export", h.ExportPending)

	g.GET("", h.List)
	g.POST("", editor(), h.Homologate)
	g.PATCH("/:id", editor(), h.Review)
	g.POST("/links/upload", editor(), h.ImportLinks)
	g.GET("/links/template", h.LinkTemplate)

	g.GET("/products/:productId/matches", h.Matches)
	g.POST("/auto-match", editor(), h.AutoMatch)

	g.GET("/config", editor(), h.Config)
	g.PUT("/config", editor(), h.SaveConfig)
	g.GET("/config/flags", h.Flags)
	g.PUT("/config/flags", editor(), h.SaveFlags)

	g.GET("/dashboard", h.Dashboard)
	g.POST("/report", editor(), h.SendReport)
}
