// Package users serves the signed in user's profile and quota.
package users

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/redirect10-prog/siteForge-ai/internal/api/respond"
	"github.com/redirect10-prog/siteForge-ai/internal/app/http/middleware"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	domainusers "github.com/redirect10-prog/siteForge-ai/internal/domain/users"
	"github.com/redirect10-prog/siteForge-ai/internal/usage"
)

type Gate interface {
	Usage(ctx context.Context, userID uint) (usage.Usage, error)
	Limits() plans.Table
}

type Handler struct {
	DB   *gorm.DB
	Gate Gate
}

// Me GET /me
func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	var user domainusers.User
	if err := h.DB.WithContext(ctx).Take(&user, middleware.UserID(c)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respond.Error(c, http.StatusNotFound, "User not found")
			return
		}
		respond.Internal(c, err, "Failed to load user")
		return
	}
	u, err := h.Gate.Usage(ctx, user.ID)
	if err != nil {
		respond.Internal(c, err, "Failed to load usage")
		return
	}
	c.JSON(http.StatusOK, MeResponse{
		User:  BuildUserDTO(user),
		Plan:  BuildPlanDTO(u.Tier, h.Gate.Limits()),
		Usage: BuildUsageDTO(u),
	})
}

// Usage GET /me/usage
func (h *Handler) Usage(c *gin.Context) {
	u, err := h.Gate.Usage(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respond.Internal(c, err, "Failed to load usage")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plan":  BuildPlanDTO(u.Tier, h.Gate.Limits()),
		"usage": BuildUsageDTO(u),
	})
}
