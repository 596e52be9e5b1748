// Package generate serves the four stateless generation operations.
package generate

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/redirect10-prog/siteForge-ai/internal/api/respond"
	"github.com/redirect10-prog/siteForge-ai/internal/app/http/middleware"
	"github.com/redirect10-prog/siteForge-ai/internal/backendgen"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
	"github.com/redirect10-prog/siteForge-ai/internal/editor"
	"github.com/redirect10-prog/siteForge-ai/internal/generation"
	"github.com/redirect10-prog/siteForge-ai/internal/imagegen"
	"github.com/redirect10-prog/siteForge-ai/internal/normalize"
	"github.com/redirect10-prog/siteForge-ai/internal/sanitize"
	"github.com/redirect10-prog/siteForge-ai/internal/usage"
)

type Gate interface {
	Check(ctx context.Context, userID uint, kind usage.Kind) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, in generation.Input) (website.GeneratedWebsite, error)
}

type ImageMaker interface {
	Single(ctx context.Context, prompt string) (string, error)
}

type SectionEditor interface {
	Edit(ctx context.Context, s website.Section, instructions string) (editor.SectionPatch, error)
}

type BackendSynthesizer interface {
	Synthesize(ctx context.Context, spec website.BackendSpec) (website.GeneratedCode, backendgen.Source, error)
}

type Handler struct {
	Gate      Gate
	Generator Generator
	Images    ImageMaker
	Editor    SectionEditor
	Backend   BackendSynthesizer
	Log       *zap.Logger
}

func (h *Handler) log() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

type websiteRequest struct {
	Prompt      string               `json:"prompt"`
	Tier        string               `json:"tier"`
	ColorScheme *website.ColorScheme `json:"colorScheme"`
}

// GenerateWebsite POST /generate-website. Anonymous callers get the free
// tier; signed in callers get their subscription tier and spend a request.
func (h *Handler) GenerateWebsite(c *gin.Context) {
	var req websiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadJSON(c)
		return
	}
	prompt := sanitize.Text(req.Prompt)
	if prompt == "" {
		respond.Error(c, http.StatusBadRequest, "Prompt is required")
		return
	}

	userID := middleware.UserID(c)
	tier, err := h.Gate.Check(c.Request.Context(), userID, usage.KindRequests)
	if err != nil {
		if !respond.Quota(c, err) {
			respond.Internal(c, err, "Failed to check usage")
		}
		return
	}

	w, err := h.Generator.Generate(c.Request.Context(), generation.Input{
		Prompt:       prompt,
		TierContext:  generation.TierContext(tier),
		ColorContext: generation.ColorContext(req.ColorScheme),
	})
	if err != nil {
		h.log().Error("website generation failed", zap.Uint("user_id", userID), zap.Error(err))
		var ex *generation.ExhaustedError
		if errors.As(err, &ex) {
			respond.Internal(c, err, ex.Error())
			return
		}
		respond.Internal(c, err, "Generation failed. Reduce prompt complexity or retry.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": w})
}

type imageRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateImage POST /generate-image.
func (h *Handler) GenerateImage(c *gin.Context) {
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadJSON(c)
		return
	}
	prompt := sanitize.Text(req.Prompt)
	if prompt == "" {
		respond.Error(c, http.StatusBadRequest, "Prompt is required")
		return
	}
	userID := middleware.UserID(c)
	if _, err := h.Gate.Check(c.Request.Context(), userID, usage.KindImages); err != nil {
		if !respond.Quota(c, err) {
			respond.Internal(c, err, "Failed to check usage")
		}
		return
	}

	url, err := h.Images.Single(c.Request.Context(), prompt)
	if err != nil {
		h.log().Error("image generation failed", zap.Uint("user_id", userID), zap.Error(err))
		status, msg := imagegen.PublicError(err)
		_ = c.Error(err)
		respond.Error(c, status, msg)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": url})
}

type editRequest struct {
	Section          map[string]any `json:"section"`
	EditInstructions string         `json:"editInstructions"`
}

// EditSection POST /edit-website.
func (h *Handler) EditSection(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadJSON(c)
		return
	}
	instructions := sanitize.Text(req.EditInstructions)
	if req.Section == nil || instructions == "" {
		respond.Error(c, http.StatusBadRequest, "Section and edit instructions are required")
		return
	}

	patch, err := h.Editor.Edit(c.Request.Context(), normalize.Section(req.Section, 0), instructions)
	if err != nil {
		status, msg := editor.PublicError(err)
		_ = c.Error(err)
		respond.Error(c, status, msg)
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": patch})
}

type backendRequest struct {
	Backend *website.BackendSpec `json:"backend"`
}

// GenerateBackend POST /generate-backend. Model failures fall back to
// templates and still answer 200.
func (h *Handler) GenerateBackend(c *gin.Context) {
	var req backendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadJSON(c)
		return
	}
	if req.Backend == nil {
		respond.Error(c, http.StatusBadRequest, "Backend specification is required")
		return
	}

	code, source, err := h.Backend.Synthesize(c.Request.Context(), *req.Backend)
	if err != nil {
		h.log().Error("backend synthesis failed", zap.Error(err))
		respond.Internal(c, err, "Failed to generate backend code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "source": source})
}
