// Package admin serves operator views over users, tiers and generated
// websites.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/redirect10-prog/siteForge-ai/internal/api/respond"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/site"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/users"
)

// TierSetter moves a user to another tier.
type TierSetter interface {
	SetTier(ctx context.Context, userID uint, tier string) error
}

type Handler struct {
	DB    *gorm.DB
	Tiers TierSetter
}

type AdminUser struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Lastname     string    `json:"lastname"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	AuthProvider string    `json:"auth_provider"`
	Tier         string    `json:"tier"`
	RequestsUsed int       `json:"requests_used"`
	ImagesUsed   int       `json:"images_used"`
	WebsiteCount int       `json:"website_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type AdminStats struct {
	TotalUsers     int            `json:"total_users"`
	TotalWebsites  int            `json:"total_websites"`
	RecentWebsites int            `json:"recent_websites"`
	UsersPerTier   map[string]int `json:"users_per_tier"`
}

// ListAllUsers GET /admin/users
func (h *Handler) ListAllUsers(c *gin.Context) {
	var rows []AdminUser
	err := h.DB.WithContext(c.Request.Context()).
		Table("users").
		Select(`users.id, users.name, users.lastname, users.email, users.role, users.auth_provider, users.created_at,
			COALESCE(user_subscriptions.tier, 'free') AS tier,
			COALESCE(user_subscriptions.requests_used, 0) AS requests_used,
			COALESCE(user_subscriptions.images_used, 0) AS images_used,
			(SELECT COUNT(*) FROM generated_websites WHERE generated_websites.user_id = users.id) AS website_count`).
		Joins("LEFT JOIN user_subscriptions ON user_subscriptions.user_id = users.id").
		Order("users.id").
		Scan(&rows).Error
	if err != nil {
		respond.Internal(c, err, "Failed to load users")
		return
	}
	if rows == nil {
		rows = []AdminUser{}
	}
	c.JSON(http.StatusOK, rows)
}

// GetAdminStats GET /admin/stats
func (h *Handler) GetAdminStats(c *gin.Context) {
	db := h.DB.WithContext(c.Request.Context())
	var totalUsers, totalWebsites, recentWebsites int64
	if err := db.Model(&users.User{}).Count(&totalUsers).Error; err != nil {
		respond.Internal(c, err, "Failed to load stats")
		return
	}
	if err := db.Model(&site.Website{}).Count(&totalWebsites).Error; err != nil {
		respond.Internal(c, err, "Failed to load stats")
		return
	}
	since := time.Now().AddDate(0, 0, -30)
	if err := db.Model(&site.Website{}).Where("created_at >= ?", since).Count(&recentWebsites).Error; err != nil {
		respond.Internal(c, err, "Failed to load stats")
		return
	}

	type tierCount struct {
		Tier  string
		Count int
	}
	var counts []tierCount
	err := db.Table("users").
		Select("COALESCE(user_subscriptions.tier, 'free') AS tier, COUNT(users.id) AS count").
		Joins("LEFT JOIN user_subscriptions ON user_subscriptions.user_id = users.id").
		Group("1").
		Scan(&counts).Error
	if err != nil {
		respond.Internal(c, err, "Failed to load stats")
		return
	}

	stats := AdminStats{
		TotalUsers:     int(totalUsers),
		TotalWebsites:  int(totalWebsites),
		RecentWebsites: int(recentWebsites),
		UsersPerTier:   map[string]int{},
	}
	for _, tc := range counts {
		stats.UsersPerTier[plans.NormalizeTier(tc.Tier)] += tc.Count
	}
	c.JSON(http.StatusOK, stats)
}

// SetUserTier PUT /admin/users/:id/tier
func (h *Handler) SetUserTier(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respond.Error(c, http.StatusBadRequest, "Invalid user id")
		return
	}
	var body struct {
		Tier string `json:"tier" binding:"required,oneof=free pro business"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "Tier must be one of free, pro, business")
		return
	}

	ctx := c.Request.Context()
	var user users.User
	if err := h.DB.WithContext(ctx).Select("id").Take(&user, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respond.Error(c, http.StatusNotFound, "User not found")
			return
		}
		respond.Internal(c, err, "Failed to load user")
		return
	}
	if err := h.Tiers.SetTier(ctx, user.ID, body.Tier); err != nil {
		respond.Internal(c, err, "Failed to update tier")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "tier": body.Tier})
}
