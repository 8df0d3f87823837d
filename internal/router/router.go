package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/handler"
	"github.com/noah-isme/school-portal-api/internal/middleware"
	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/internal/service"
	"github.com/noah-isme/school-portal-api/pkg/config"
	"github.com/noah-isme/school-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/school-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/school-portal-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	Registration *handler.RegistrationHandler
	Access       *handler.AccessHandler
	Dashboard    *handler.DashboardHandler
	Review       *handler.ReviewHandler
	Portal       *handler.PortalHandler
	Files        *handler.FileHandler
	Metrics      *handler.MetricsHandler
}

// Dependencies are the cross-cutting collaborators of the middleware chain.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Tokens  middleware.TokenValidator
	Gate    middleware.AccessResolver
	Audit   middleware.AuditRecorder
	Metrics *service.MetricsService
}

// New builds the gin engine with every route mounted under the API prefix.
func New(deps Dependencies, h Handlers) *gin.Engine {
	cfg := deps.Config
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled && deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
		r.GET("/metrics", h.Metrics.Prometheus)
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/files/:token", h.Files.Download)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	auth := middleware.JWT(deps.Tokens)
	gate := func(roles ...models.Role) gin.HandlerFunc {
		return middleware.RequireApproved(deps.Gate, roles...)
	}

	wizard := api.Group("/registration/wizards")
	wizard.POST("", h.Registration.Start)
	wizard.GET("/:id", h.Registration.Get)
	wizard.PUT("/:id/role", h.Registration.SelectRole)
	wizard.PATCH("/:id", h.Registration.Update)
	wizard.POST("/:id/attachments/:kind", h.Registration.Attach)
	wizard.DELETE("/:id/attachments/:kind", h.Registration.Detach)
	wizard.POST("/:id/advance", h.Registration.Advance)
	wizard.POST("/:id/back", h.Registration.Back)
	wizard.POST("/:id/submit", h.Registration.Submit)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", h.Auth.Login)
	authGroup.POST("/refresh", h.Auth.Refresh)
	authGroup.POST("/forgot-password", h.Auth.ForgotPassword)
	authGroup.POST("/reset-password", h.Auth.ResetPassword)
	authGroup.POST("/logout", auth, h.Auth.Logout)
	authGroup.POST("/change-password", auth, h.Auth.ChangePassword)
	authGroup.GET("/me", auth, h.Auth.Me)

	api.GET("/access", middleware.OptionalJWT(deps.Tokens), h.Access.Show)

	portal := api.Group("")
	portal.Use(auth)
	portal.GET("/dashboards/:role", gate(), h.Dashboard.Show)

	portal.GET("/registrations", gate(models.ReviewerRoles...), h.Review.List)
	portal.GET("/registrations/export", gate(models.RoleAdmin), h.Review.Export)
	portal.POST("/registrations/:id/approve", gate(models.ReviewerRoles...), h.Review.Approve)
	portal.POST("/registrations/:id/decline", gate(models.ReviewerRoles...), h.Review.Decline)

	portal.GET("/announcements", gate(), h.Portal.ListAnnouncements)
	portal.POST("/announcements", gate(models.AnnouncerRoles...), middleware.Audit(deps.Audit, models.AuditActionWrite, "announcement"), h.Portal.CreateAnnouncement)

	portal.GET("/complaints", gate(), h.Portal.ListComplaints)
	portal.POST("/complaints", gate(models.RoleLearner), h.Portal.FileComplaint)
	portal.POST("/complaints/:id/respond", gate(models.ComplaintResponse...), middleware.Audit(deps.Audit, models.AuditActionWrite, "complaint"), h.Portal.RespondComplaint)

	portal.GET("/materials", gate(), h.Portal.ListMaterials)
	portal.POST("/materials", gate(models.MaterialUploaders...), middleware.Audit(deps.Audit, models.AuditActionWrite, "material"), h.Portal.UploadMaterial)

	portal.POST("/marks", gate(models.MarkRecorders...), middleware.Audit(deps.Audit, models.AuditActionWrite, "mark"), h.Portal.RecordMark)
	portal.PUT("/balances/:learnerId", gate(models.RoleFinance), middleware.Audit(deps.Audit, models.AuditActionWrite, "balance"), h.Portal.SetBalance)
	portal.POST("/mail/bulk", gate(models.RoleAdmin), h.Portal.SendBulkMail)
	portal.GET("/metrics/summary", gate(models.RoleAdmin), h.Metrics.Summary)

	return r
}
