// Package websites serves saved websites: the owner's CRUD routes, edits
// of saved sections and the public share page.
package websites

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/redirect10-prog/siteForge-ai/internal/api/respond"
	"github.com/redirect10-prog/siteForge-ai/internal/app/http/middleware"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/site"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
	"github.com/redirect10-prog/siteForge-ai/internal/editor"
	"github.com/redirect10-prog/siteForge-ai/internal/normalize"
	"github.com/redirect10-prog/siteForge-ai/internal/sanitize"
	"github.com/redirect10-prog/siteForge-ai/internal/usage"
)

type Gate interface {
	CheckEdit(ctx context.Context, userID uint, tier, websiteID string) error
	Usage(ctx context.Context, userID uint) (usage.Usage, error)
	Limits() plans.Table
}

type SectionEditor interface {
	Edit(ctx context.Context, s website.Section, instructions string) (editor.SectionPatch, error)
}

type Handler struct {
	Repo    *Repo
	Gate    Gate
	Editor  SectionEditor
	Cache   *SiteCache
	BaseURL string
	Log     *zap.Logger
}

func (h *Handler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// Summary is one row of the website list.
type Summary struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	URL         string    `json:"url"`
	Prompt      string    `json:"prompt"`
	WebsiteType string    `json:"website_type"`
	Tier        string    `json:"tier"`
	EditCount   int       `json:"edit_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Detail is a saved website with its decoded content.
type Detail struct {
	Summary
	Website    website.GeneratedWebsite `json:"website"`
	Validation website.ValidationResult `json:"validation"`
	EditLimit  int                      `json:"edit_limit"`
	Version    int                      `json:"version"`
}

// PublicSite is what the share page shows.
type PublicSite struct {
	Slug      string                   `json:"slug"`
	Website   website.GeneratedWebsite `json:"website"`
	CreatedAt time.Time                `json:"created_at"`
}

func (h *Handler) summary(row site.Website) Summary {
	return Summary{
		ID:          row.ID,
		Slug:        row.Slug,
		URL:         site.BuildPublicURL(h.BaseURL, row.Slug),
		Prompt:      row.Prompt,
		WebsiteType: row.WebsiteType,
		Tier:        row.Tier,
		EditCount:   row.EditCount,
		CreatedAt:   row.CreatedAt,
	}
}

// List GET /websites
func (h *Handler) List(c *gin.Context) {
	rows, err := h.Repo.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respond.Internal(c, err, "Failed to load websites")
		return
	}
	out := make([]Summary, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.summary(row))
	}
	c.JSON(http.StatusOK, gin.H{"websites": out})
}

type createRequest struct {
	Prompt  string         `json:"prompt"`
	Tier    string         `json:"tier"`
	Website map[string]any `json:"website"`
}

// Create POST /websites saves a generated website and returns its share slug.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadJSON(c)
		return
	}
	if req.Website == nil {
		respond.Error(c, http.StatusBadRequest, "Website content is required")
		return
	}
	w, err := normalize.Website(req.Website)
	if err != nil || len(w.Sections) == 0 {
		respond.Error(c, http.StatusBadRequest, "Website must have at least one section")
		return
	}

	row, err := h.Repo.Create(c.Request.Context(), middleware.UserID(c), sanitize.Text(req.Prompt), plans.NormalizeTier(req.Tier), w)
	if err != nil {
		respond.Internal(c, err, "Failed to save website")
		return
	}
	c.JSON(http.StatusCreated, h.summary(row))
}

func (h *Handler) owned(c *gin.Context) (site.Website, bool) {
	row, err := h.Repo.Owned(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "Website not found")
		return row, false
	case err != nil:
		respond.Internal(c, err, "Failed to load website")
		return row, false
	}
	return row, true
}

func (h *Handler) detail(c *gin.Context, row site.Website) (Detail, bool) {
	w, err := row.Content()
	if err != nil {
		respond.Internal(c, err, "Stored website is corrupt")
		return Detail{}, false
	}
	tier := row.Tier
	if u, err := h.Gate.Usage(c.Request.Context(), middleware.UserID(c)); err == nil {
		tier = u.Tier
	}
	return Detail{
		Summary:    h.summary(row),
		Website:    w,
		Validation: website.Validate(w),
		EditLimit:  h.Gate.Limits().For(tier).Edits,
		Version:    row.Version,
	}, true
}

// Get GET /websites/:id
func (h *Handler) Get(c *gin.Context) {
	row, ok := h.owned(c)
	if !ok {
		return
	}
	d, ok := h.detail(c, row)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d)
}

type updateRequest struct {
	Sections            []any `json:"sections"`
	Navigation          []any `json:"navigation"`
	InternalExplanation any   `json:"internalExplanation"`
}

// Update PUT /websites/:id replaces sections and, when given, navigation and
// the explanation.
func (h *Handler) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadJSON(c)
		return
	}
	if len(req.Sections) == 0 {
		respond.Error(c, http.StatusBadRequest, "Website must have at least one section")
		return
	}
	row, ok := h.owned(c)
	if !ok {
		return
	}
	current, err := row.Content()
	if err != nil {
		respond.Internal(c, err, "Stored website is corrupt")
		return
	}

	raw := map[string]any{
		"websiteType":      current.WebsiteType,
		"targetAudience":   current.TargetAudience,
		"sections":         req.Sections,
		"suggestedPrompts": anySlice(current.SuggestedPrompts),
	}
	if req.Navigation != nil {
		raw["navigation"] = req.Navigation
	}
	next, err := normalize.Website(raw)
	if err != nil {
		respond.BadJSON(c)
		return
	}
	if req.Navigation == nil {
		next.Navigation = current.Navigation
	}
	next.InternalExplanation = current.InternalExplanation
	if req.InternalExplanation != nil {
		next.InternalExplanation = normalizeExplanation(req.InternalExplanation, next)
	}
	next.Backend = current.Backend

	if err := h.Repo.Save(c.Request.Context(), &row, next, site.RevisionUpdate); err != nil {
		saveFailed(c, err)
		return
	}
	h.Cache.Invalidate(row.Slug)

	d, ok := h.detail(c, row)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d)
}

// ConflictMessage answers a save that lost a race with another write.
const ConflictMessage = "Website was changed by another request, reload and try again"

func saveFailed(c *gin.Context, err error) {
	if errors.Is(err, ErrConflict) {
		respond.Error(c, http.StatusConflict, ConflictMessage)
		return
	}
	respond.Internal(c, err, "Failed to update website")
}

func normalizeExplanation(v any, w website.GeneratedWebsite) website.InternalExplanation {
	n, err := normalize.Website(map[string]any{
		"websiteType":         w.WebsiteType,
		"targetAudience":      w.TargetAudience,
		"internalExplanation": v,
	})
	if err != nil {
		return w.InternalExplanation
	}
	return n.InternalExplanation
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Delete DELETE /websites/:id
func (h *Handler) Delete(c *gin.Context) {
	slug, err := h.Repo.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "Website not found")
		return
	case err != nil:
		respond.Internal(c, err, "Failed to delete website")
		return
	}
	h.Cache.Invalidate(slug)
	c.JSON(http.StatusOK, gin.H{"message": "Website deleted"})
}

type editRequest struct {
	SectionIndex     *int   `json:"sectionIndex"`
	EditInstructions string `json:"editInstructions"`
}

// Edit POST /websites/:id/edits rewrites one saved section. Each call
// spends one of the website's edits for the owner's tier, before the model
// is asked.
func (h *Handler) Edit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadJSON(c)
		return
	}
	instructions := sanitize.Text(req.EditInstructions)
	if req.SectionIndex == nil || instructions == "" {
		respond.Error(c, http.StatusBadRequest, "Section and edit instructions are required")
		return
	}
	row, ok := h.owned(c)
	if !ok {
		return
	}
	w, err := row.Content()
	if err != nil {
		respond.Internal(c, err, "Stored website is corrupt")
		return
	}
	idx := *req.SectionIndex
	if idx < 0 || idx >= len(w.Sections) {
		respond.Error(c, http.StatusBadRequest, "Section index out of range")
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	u, err := h.Gate.Usage(ctx, userID)
	if err != nil {
		respond.Internal(c, err, "Failed to check usage")
		return
	}
	if err := h.Gate.CheckEdit(ctx, userID, u.Tier, row.ID); err != nil {
		switch {
		case respond.Quota(c, err):
		case errors.Is(err, usage.ErrWebsiteNotFound):
			respond.Error(c, http.StatusNotFound, "Website not found")
		default:
			respond.Internal(c, err, "Failed to check usage")
		}
		return
	}

	patch, err := h.Editor.Edit(ctx, w.Sections[idx], instructions)
	if err != nil {
		h.log().Warn("saved section edit failed", zap.String("website_id", row.ID), zap.Error(err))
		status, msg := editor.PublicError(err)
		_ = c.Error(err)
		respond.Error(c, status, msg)
		return
	}
	w.Sections[idx] = editor.Apply(w.Sections[idx], patch)
	if err := h.Repo.Save(ctx, &row, w, site.RevisionEdit); err != nil {
		saveFailed(c, err)
		return
	}
	h.Cache.Invalidate(row.Slug)

	c.JSON(http.StatusOK, gin.H{
		"section":    w.Sections[idx],
		"validation": website.Validate(w),
	})
}

// Revisions GET /websites/:id/revisions
func (h *Handler) Revisions(c *gin.Context) {
	revs, err := h.Repo.Revisions(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "Website not found")
		return
	case err != nil:
		respond.Internal(c, err, "Failed to load revisions")
		return
	}
	if revs == nil {
		revs = []site.Revision{}
	}
	c.JSON(http.StatusOK, gin.H{"revisions": revs})
}

// Restore POST /websites/:id/revisions/:revision/restore
func (h *Handler) Restore(c *gin.Context) {
	row, err := h.Repo.Restore(c.Request.Context(), middleware.UserID(c), c.Param("id"), c.Param("revision"))
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "Website not found")
		return
	case errors.Is(err, ErrRevisionNotFound):
		respond.Error(c, http.StatusNotFound, "Revision not found")
		return
	case errors.Is(err, ErrConflict):
		saveFailed(c, err)
		return
	case err != nil:
		respond.Internal(c, err, "Failed to restore revision")
		return
	}
	h.Cache.Invalidate(row.Slug)

	d, ok := h.detail(c, row)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, d)
}

// Public GET /site/:slug
func (h *Handler) Public(c *gin.Context) {
	slug := c.Param("slug")
	if !site.ValidSlug(slug) {
		respond.Error(c, http.StatusNotFound, "Website not found")
		return
	}
	s, err := h.Cache.Get(c.Request.Context(), slug, h.loadPublic)
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "Website not found")
		return
	case err != nil:
		respond.Internal(c, err, "Failed to load website")
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) loadPublic(ctx context.Context, slug string) (PublicSite, error) {
	row, err := h.Repo.BySlug(ctx, slug)
	if err != nil {
		return PublicSite{}, err
	}
	w, err := row.Content()
	if err != nil {
		return PublicSite{}, err
	}
	w.Backend = nil
	return PublicSite{Slug: row.Slug, Website: w, CreatedAt: row.CreatedAt}, nil
}
