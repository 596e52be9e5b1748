// Package sessions exposes generation sessions over HTTP: commands as JSON
// routes and the snapshot stream as a websocket.
package sessions

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/redirect10-prog/siteForge-ai/internal/api/respond"
	"github.com/redirect10-prog/siteForge-ai/internal/api/websites"
	"github.com/redirect10-prog/siteForge-ai/internal/app/http/middleware"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/site"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
	"github.com/redirect10-prog/siteForge-ai/internal/editor"
	"github.com/redirect10-prog/siteForge-ai/internal/generation"
	"github.com/redirect10-prog/siteForge-ai/internal/imagegen"
	"github.com/redirect10-prog/siteForge-ai/internal/sanitize"
	"github.com/redirect10-prog/siteForge-ai/internal/session"
	"github.com/redirect10-prog/siteForge-ai/internal/usage"
)

type Gate interface {
	Check(ctx context.Context, userID uint, kind usage.Kind) (string, error)
	CheckEdit(ctx context.Context, userID uint, tier, websiteID string) error
	Usage(ctx context.Context, userID uint) (usage.Usage, error)
}

type Handler struct {
	Manager *session.Manager
	Gate    Gate
	Repo    *websites.Repo
	Cache   *websites.SiteCache
	BaseURL string
	Log     *zap.Logger

	Upgrader websocket.Upgrader
}

func (h *Handler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// fail answers err with the status callers should see.
func fail(c *gin.Context, err error) {
	if respond.Quota(c, err) {
		return
	}
	switch {
	case errors.Is(err, session.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "Session not found")
	case errors.Is(err, websites.ErrNotFound), errors.Is(err, usage.ErrWebsiteNotFound):
		respond.Error(c, http.StatusNotFound, "Website not found")
	case errors.Is(err, websites.ErrConflict):
		respond.Error(c, http.StatusConflict, websites.ConflictMessage)
	case errors.Is(err, session.ErrNoContent):
		respond.Error(c, http.StatusBadRequest, "Generate a website first")
	case errors.Is(err, session.ErrSectionIndex):
		respond.Error(c, http.StatusBadRequest, "Section index out of range")
	case errors.Is(err, session.ErrLastSection):
		respond.Error(c, http.StatusBadRequest, "Cannot delete the last section")
	case errors.Is(err, session.ErrBadOrder):
		respond.Error(c, http.StatusBadRequest, "Order must list every section exactly once")
	case errors.Is(err, session.ErrNoBackend):
		respond.Error(c, http.StatusBadRequest, "Website has no backend specification")
	case errors.Is(err, session.ErrBusy):
		respond.Error(c, http.StatusConflict, "Operation already running")
	case errors.Is(err, session.ErrStale):
		respond.Error(c, http.StatusConflict, "Content was replaced by a newer generation")
	case errors.Is(err, session.ErrSectionGone):
		respond.Error(c, http.StatusConflict, "Section was removed while the operation ran")
	default:
		respond.Internal(c, err, "Request failed")
	}
}

func (h *Handler) session(c *gin.Context) (*session.Session, bool) {
	s, err := h.Manager.Get(c.Param("id"), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return s, true
}

func sectionIndex(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "Section index out of range")
		return 0, false
	}
	return i, true
}

type createRequest struct {
	WebsiteID string `json:"websiteId"`
}

// Create POST /sessions starts a session, optionally from a saved website.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadJSON(c)
			return
		}
	}
	userID := middleware.UserID(c)

	var (
		row site.Website
		w   website.GeneratedWebsite
	)
	if req.WebsiteID != "" {
		if userID == 0 {
			respond.Error(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		var err error
		if row, err = h.Repo.Owned(c.Request.Context(), userID, req.WebsiteID); err != nil {
			fail(c, err)
			return
		}
		if w, err = row.Content(); err != nil {
			respond.Internal(c, err, "Stored website is corrupt")
			return
		}
	}

	s := h.Manager.Create(userID)
	snap := s.Current()
	if req.WebsiteID != "" {
		snap = s.Load(w, row.ID, row.Slug)
	}
	h.log().Info("session created", zap.String("session_id", s.ID()), zap.Uint("user_id", userID))
	c.JSON(http.StatusCreated, snap)
}

// Get GET /sessions/:id
func (h *Handler) Get(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Current())
}

// Close DELETE /sessions/:id
func (h *Handler) Close(c *gin.Context) {
	if err := h.Manager.Close(c.Param("id"), middleware.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type generateRequest struct {
	Prompt      string               `json:"prompt"`
	ColorScheme *website.ColorScheme `json:"colorScheme"`
}

// Generate POST /sessions/:id/generate
func (h *Handler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadJSON(c)
		return
	}
	prompt := sanitize.Text(req.Prompt)
	if prompt == "" {
		respond.Error(c, http.StatusBadRequest, "Prompt is required")
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tier, err := h.Gate.Check(ctx, middleware.UserID(c), usage.KindRequests)
	if err != nil {
		fail(c, err)
		return
	}

	snap, err := s.Generate(ctx, session.GenerateInput{Prompt: prompt, Tier: tier, Colors: req.ColorScheme})
	if err != nil {
		var ex *generation.ExhaustedError
		if errors.As(err, &ex) {
			h.log().Warn("session generation failed", zap.String("session_id", s.ID()), zap.Error(err))
			respond.Internal(c, err, ex.Error())
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) imageGuard(userID uint) imagegen.Guard {
	return func(ctx context.Context) error {
		_, err := h.Gate.Check(ctx, userID, usage.KindImages)
		return err
	}
}

// Images POST /sessions/:id/images illustrates every section with a prompt.
// Progress is visible on the event stream while this runs.
func (h *Handler) Images(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == 0 {
		respond.Error(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.GenerateImages(c.Request.Context(), h.imageGuard(userID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type regenerateRequest struct {
	CustomPrompt string `json:"customPrompt"`
}

// RegenerateImage POST /sessions/:id/sections/:index/image
func (h *Handler) RegenerateImage(c *gin.Context) {
	var req regenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadJSON(c)
			return
		}
	}
	userID := middleware.UserID(c)
	if userID == 0 {
		respond.Error(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	index, ok := sectionIndex(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	snap, err := s.RegenerateImage(c.Request.Context(), index, sanitize.Text(req.CustomPrompt), h.imageGuard(userID))
	if err != nil {
		if respond.Quota(c, err) {
			return
		}
		if isSessionError(err) {
			fail(c, err)
			return
		}
		h.log().Warn("image regeneration failed", zap.String("session_id", s.ID()), zap.Int("index", index), zap.Error(err))
		status, msg := imagegen.PublicError(err)
		_ = c.Error(err)
		respond.Error(c, status, msg)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type setImageRequest struct {
	URL string `json:"url"`
}

// SetImage PUT /sessions/:id/sections/:index/image uses an uploaded image.
func (h *Handler) SetImage(c *gin.Context) {
	var req setImageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		respond.Error(c, http.StatusBadRequest, "Image URL is required")
		return
	}
	index, ok := sectionIndex(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.SetImage(index, req.URL)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type editRequest struct {
	EditInstructions string `json:"editInstructions"`
}

// Edit POST /sessions/:id/sections/:index/edit. Content loaded from a saved
// website spends that website's edits.
func (h *Handler) Edit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadJSON(c)
		return
	}
	instructions := sanitize.Text(req.EditInstructions)
	if instructions == "" {
		respond.Error(c, http.StatusBadRequest, "Section and edit instructions are required")
		return
	}
	index, ok := sectionIndex(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}

	var (
		charge    session.Charge
		chargeErr error
	)
	cur := s.Current()
	if userID := middleware.UserID(c); userID != 0 && cur.SavedID != "" {
		charge = func(ctx context.Context) error {
			u, err := h.Gate.Usage(ctx, userID)
			if err == nil {
				err = h.Gate.CheckEdit(ctx, userID, u.Tier, cur.SavedID)
			}
			chargeErr = err
			return err
		}
	}

	snap, err := s.Edit(c.Request.Context(), index, instructions, charge)
	if err != nil {
		if chargeErr != nil || isSessionError(err) {
			fail(c, err)
			return
		}
		status, msg := editor.PublicError(err)
		_ = c.Error(err)
		respond.Error(c, status, msg)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// DeleteSection DELETE /sessions/:id/sections/:index
func (h *Handler) DeleteSection(c *gin.Context) {
	index, ok := sectionIndex(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.Delete(index)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type orderRequest struct {
	Order []int `json:"order"`
}

// Reorder PUT /sessions/:id/order
func (h *Handler) Reorder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadJSON(c)
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.Reorder(req.Order)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ApplyFixes POST /sessions/:id/validation/:category/fix
func (h *Handler) ApplyFixes(c *gin.Context) {
	category, ok := website.ParseCategory(c.Param("category"))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "Unknown validation category")
		return
	}
	s, found := h.session(c)
	if !found {
		return
	}
	snap, err := s.ApplyFixes(category)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Backend POST /sessions/:id/backend
func (h *Handler) Backend(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	snap, err := s.GenerateBackend(c.Request.Context())
	if err != nil {
		if !isSessionError(err) {
			h.log().Error("session backend synthesis failed", zap.String("session_id", s.ID()), zap.Error(err))
			respond.Internal(c, err, "Failed to generate backend code")
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Save POST /sessions/:id/save stores the content as a website, or updates
// the website it was loaded from.
func (h *Handler) Save(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == 0 {
		respond.Error(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	cur := s.Current()
	if cur.Website == nil {
		fail(c, session.ErrNoContent)
		return
	}

	ctx := c.Request.Context()
	var (
		row site.Website
		err error
	)
	if cur.SavedID != "" {
		if row, err = h.Repo.Owned(ctx, userID, cur.SavedID); err == nil {
			err = h.Repo.Save(ctx, &row, *cur.Website, site.RevisionSession)
		}
		if err == nil && h.Cache != nil {
			h.Cache.Invalidate(row.Slug)
		}
	} else {
		row, err = h.Repo.Create(ctx, userID, cur.Prompt, plans.NormalizeTier(cur.Tier), *cur.Website)
	}
	if err != nil {
		if errors.Is(err, websites.ErrNotFound) || errors.Is(err, websites.ErrConflict) {
			fail(c, err)
			return
		}
		respond.Internal(c, err, "Failed to save website")
		return
	}

	snap := s.MarkSaved(row.ID, row.Slug)
	c.JSON(http.StatusOK, gin.H{
		"id":      row.ID,
		"slug":    row.Slug,
		"url":     site.BuildPublicURL(h.BaseURL, row.Slug),
		"session": snap,
	})
}

func isSessionError(err error) bool {
	for _, target := range []error{
		session.ErrNoContent, session.ErrSectionIndex, session.ErrSectionGone,
		session.ErrStale, session.ErrBusy, session.ErrNoBackend,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
