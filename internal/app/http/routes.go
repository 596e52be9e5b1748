package routes

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	adminapi "github.com/redirect10-prog/siteForge-ai/internal/api/admin"
	authapi "github.com/redirect10-prog/siteForge-ai/internal/api/auth"
	"github.com/redirect10-prog/siteForge-ai/internal/api/generate"
	plansapi "github.com/redirect10-prog/siteForge-ai/internal/api/plans"
	"github.com/redirect10-prog/siteForge-ai/internal/api/sessions"
	"github.com/redirect10-prog/siteForge-ai/internal/api/uploads"
	usersapi "github.com/redirect10-prog/siteForge-ai/internal/api/users"
	"github.com/redirect10-prog/siteForge-ai/internal/api/websites"
	"github.com/redirect10-prog/siteForge-ai/internal/app/http/middleware"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/users"
)

// Handlers is everything RegisterRoutes mounts.
type Handlers struct {
	Secret []byte
	Limits plans.Table

	Auth     *authapi.Handler
	Generate *generate.Handler
	Websites *websites.Handler
	Sessions *sessions.Handler
	Uploads  *uploads.Handler
	Users    *usersapi.Handler
	Admin    *adminapi.Handler
}

// CORS answers preflights with 204 before any route runs. No origins, or
// "*", allows every origin without credentials.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/plans", plansapi.List(h.Limits))
	r.GET("/site/:slug", h.Websites.Public)

	// Sanitized JSON bodies on account routes only; generation inputs are
	// cleaned field by field by their handlers.
	public := r.Group("/")
	public.Use(middleware.SanitizeJSON())
	public.POST("/register", h.Auth.Register)
	public.POST("/login", h.Auth.Login)
	public.GET("/auth/google", h.Auth.GoogleStart)
	public.GET("/auth/google/callback", h.Auth.GoogleCallback)

	optional := r.Group("/")
	optional.Use(middleware.AuthOptional(h.Secret))
	optional.POST("/generate-website", h.Generate.GenerateWebsite)

	s := optional.Group("/sessions")
	s.POST("", h.Sessions.Create)
	s.GET("/:id", h.Sessions.Get)
	s.DELETE("/:id", h.Sessions.Close)
	s.GET("/:id/events", h.Sessions.Events)
	s.POST("/:id/generate", h.Sessions.Generate)
	s.POST("/:id/images", h.Sessions.Images)
	s.POST("/:id/backend", h.Sessions.Backend)
	s.POST("/:id/save", h.Sessions.Save)
	s.PUT("/:id/order", h.Sessions.Reorder)
	s.POST("/:id/validation/:category/fix", h.Sessions.ApplyFixes)
	s.POST("/:id/sections/:index/edit", h.Sessions.Edit)
	s.POST("/:id/sections/:index/image", h.Sessions.RegenerateImage)
	s.PUT("/:id/sections/:index/image", h.Sessions.SetImage)
	s.DELETE("/:id/sections/:index", h.Sessions.DeleteSection)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthRequired(h.Secret))
	auth.POST("/generate-image", h.Generate.GenerateImage)
	auth.POST("/edit-website", h.Generate.EditSection)
	auth.POST("/generate-backend", h.Generate.GenerateBackend)

	auth.GET("/me", h.Users.Me)
	auth.GET("/me/usage", h.Users.Usage)
	auth.POST("/auth/change-password", middleware.SanitizeJSON(), h.Auth.ChangePassword)

	auth.POST("/uploads/images", h.Uploads.Upload)
	auth.GET("/uploads", h.Uploads.List)

	auth.GET("/websites", h.Websites.List)
	auth.POST("/websites", h.Websites.Create)
	auth.GET("/websites/:id", h.Websites.Get)
	auth.PUT("/websites/:id", h.Websites.Update)
	auth.DELETE("/websites/:id", h.Websites.Delete)
	auth.POST("/websites/:id/edits", h.Websites.Edit)
	auth.GET("/websites/:id/revisions", h.Websites.Revisions)
	auth.POST("/websites/:id/revisions/:revision/restore", h.Websites.Restore)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired(h.Secret), middleware.RequireRole(users.RoleAdmin))
	admin.GET("/users", h.Admin.ListAllUsers)
	admin.GET("/stats", h.Admin.GetAdminStats)
	admin.PUT("/users/:id/tier", h.Admin.SetUserTier)
}
