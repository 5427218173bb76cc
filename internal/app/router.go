package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/school-intake-api/internal/handler"
	"github.com/noah-isme/school-intake-api/internal/middleware"
	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/pkg/config"
	"github.com/noah-isme/school-intake-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-intake-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-intake-api/pkg/middleware/requestid"
)

// Router builds the gin engine with every public and admin route.
func (a *App) Router() *gin.Engine {
	cfg := a.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.Metrics))

	checks := map[string]handler.ReadinessCheck{}
	for name, check := range a.ReadinessChecks() {
		checks[name] = check
	}
	metricsHandler := handler.NewMetricsHandler(a.Metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	submissions := handler.NewSubmissionHandler(a.Submissions, a.Logger.Named("http"))
	api.POST("/submissions", submissions.Submit)

	var files *handler.FilesHandler
	if a.LocalDrive != nil {
		files = handler.NewFilesHandler(a.LocalDrive)
	} else {
		files = handler.NewFilesHandler(nil)
	}
	api.GET("/files/:token", files.Download)

	runs := handler.NewRunsHandler(a.RunService)
	preview := handler.NewPreviewHandler(a.Documents, a.Submissions)

	admin := api.Group("/admin", middleware.AdminJWT(a.Tokens, models.AdminScopeRuns))
	admin.GET("/runs", runs.List)
	admin.GET("/runs/export", runs.Export)
	admin.GET("/runs/:id", runs.Get)
	admin.POST("/preview", preview.Preview)
	admin.GET("/metrics", metricsHandler.Summary)

	return r
}
