// Package uploads stores user supplied section images.
package uploads

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/redirect10-prog/siteForge-ai/internal/api/respond"
	"github.com/redirect10-prog/siteForge-ai/internal/app/http/middleware"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/site"
	"github.com/redirect10-prog/siteForge-ai/internal/storage"
)

type Handler struct {
	DB    *gorm.DB
	Store storage.ObjectStore // nil when no bucket is configured
	Log   *zap.Logger
	Now   func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// kind keeps object keys to [a-z0-9-].
func kind(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return "image"
		}
	}
	if s == "" || len(s) > 32 {
		return "image"
	}
	return s
}

// Upload POST /uploads takes a multipart "file" and an optional "kind".
func (h *Handler) Upload(c *gin.Context) {
	if h.Store == nil {
		respond.Internal(c, storage.ErrNotConfigured, "Image storage is not configured")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxUploadSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respond.Error(c, http.StatusBadRequest, storage.ErrTooLarge.Msg)
			return
		}
		respond.Error(c, http.StatusBadRequest, "File is required")
		return
	}
	contentType := fh.Header.Get("Content-Type")
	if err := storage.ValidateUpload(contentType, fh.Size); err != nil {
		var ue *storage.UploadError
		if errors.As(err, &ue) {
			respond.Error(c, http.StatusBadRequest, ue.Msg)
			return
		}
		respond.Internal(c, err, "Failed to upload image")
		return
	}

	userID := middleware.UserID(c)
	k := kind(c.PostForm("kind"))
	key := storage.ObjectKey(userID, k, storage.Extension(fh.Filename, contentType), h.now())

	f, err := fh.Open()
	if err != nil {
		respond.Internal(c, err, "Failed to read upload")
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	if err := h.Store.Put(ctx, key, f, fh.Size, contentType); err != nil {
		if h.Log != nil {
			h.Log.Error("upload failed", zap.String("key", key), zap.Error(err))
		}
		respond.Internal(c, err, "Failed to upload image")
		return
	}

	asset := site.Asset{
		UserID:      userID,
		Kind:        k,
		ObjectKey:   key,
		URL:         h.Store.URL(key),
		ContentType: contentType,
		Size:        fh.Size,
	}
	if err := h.DB.WithContext(ctx).Create(&asset).Error; err != nil {
		respond.Internal(c, err, "Failed to record upload")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": asset.URL, "asset": asset})
}

// List GET /uploads returns the caller's uploads, newest first.
func (h *Handler) List(c *gin.Context) {
	var assets []site.Asset
	err := h.DB.WithContext(c.Request.Context()).
		Where("user_id = ?", middleware.UserID(c)).
		Order("created_at DESC").
		Find(&assets).Error
	if err != nil {
		respond.Internal(c, err, "Failed to load uploads")
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploads": assets})
}
