// Package editor rewrites a single section on request.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
	"github.com/redirect10-prog/siteForge-ai/internal/llm"
	"github.com/redirect10-prog/siteForge-ai/internal/metrics"

	"go.uber.org/zap"
)

var (
	ErrIncompletePatch = errors.New("editor: reply is missing name, heading or content")
	ErrNoInstructions  = errors.New("editor: section and edit instructions are required")
)

const systemPrompt = `You are SiteForge AI, an expert website content editor.

Your job is to edit existing website section content based on user instructions.

You will receive:
1. The current section content (name, heading, content, cta, imagePrompt)
2. Edit instructions from the user

You must return a JSON response with this exact structure:
{
  "name": "section name (keep same or improve)",
  "heading": "updated heading",
  "content": "updated content",
  "cta": "updated call-to-action (optional, can be null)",
  "imagePrompt": "updated image prompt if visual changes are requested, otherwise keep the same"
}

EDITING PRINCIPLES:
- Maintain brand voice consistency
- Keep the core message unless explicitly asked to change it
- Change only what the instructions ask for; leave every other field as it is
- Make specific, targeted edits as requested
- If asked to make it "shorter", actually make it shorter
- If asked to make it "more engaging", add power words and emotion
- If asked for a different tone, completely shift the voice

IMPORTANT: Return ONLY valid JSON, no markdown, no code blocks, no explanation text outside the JSON.`

// SystemPrompt is the instruction sent with every edit.
func SystemPrompt() string { return systemPrompt }

// UserMessage lays out the current section and the requested change.
func UserMessage(s website.Section, instructions string) string {
	return fmt.Sprintf(`Current section content:
- Name: %s
- Heading: %s
- Content: %s
- CTA: %s
- Image Prompt: %s

Edit instructions: %s`,
		s.Name, s.Heading, s.Content, orNone(s.CTA), orNone(s.ImagePrompt), instructions)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

// SectionPatch is the model's revision of one section. CTA and ImagePrompt
// are nil when the reply left them out; a null value clears the field.
type SectionPatch struct {
	Name        string  `json:"name"`
	Heading     string  `json:"heading"`
	Content     string  `json:"content"`
	CTA         *string `json:"cta,omitempty"`
	ImagePrompt *string `json:"imagePrompt,omitempty"`
}

// Apply merges p into s. The generated image is never touched.
func Apply(s website.Section, p SectionPatch) website.Section {
	s.Name = p.Name
	s.Heading = p.Heading
	s.Content = p.Content
	if p.CTA != nil {
		s.CTA = *p.CTA
	}
	if p.ImagePrompt != nil {
		s.ImagePrompt = *p.ImagePrompt
	}
	return s
}

// ParsePatch reads a reply. Only name, heading, content, cta and
// imagePrompt are looked at; anything else the model sends is ignored.
func ParsePatch(raw string) (SectionPatch, error) {
	body, err := llm.ExtractObject(raw)
	if err != nil {
		return SectionPatch{}, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return SectionPatch{}, fmt.Errorf("editor: parse reply: %w", err)
	}

	var p SectionPatch
	for key, dst := range map[string]*string{"name": &p.Name, "heading": &p.Heading, "content": &p.Content} {
		v, ok := optional(obj, key)
		if !ok || v == nil || strings.TrimSpace(*v) == "" {
			return SectionPatch{}, ErrIncompletePatch
		}
		*dst = *v
	}
	if v, ok := optional(obj, "cta"); ok {
		p.CTA = orEmpty(v)
	}
	if v, ok := optional(obj, "imagePrompt"); ok {
		p.ImagePrompt = orEmpty(v)
	}
	return p, nil
}

// optional returns (nil, true) for an explicit null and (nil, false) for a
// missing key or a non-string value.
func optional(obj map[string]json.RawMessage, key string) (*string, bool) {
	raw, ok := obj[key]
	if !ok {
		return nil, false
	}
	if string(raw) == "null" {
		return nil, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return &s, true
}

func orEmpty(v *string) *string {
	if v == nil {
		s := ""
		return &s
	}
	return v
}

// Config tunes the model call.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type Editor struct {
	client llm.Client
	cfg    Config
	log    *zap.Logger
}

func New(client llm.Client, cfg Config, log *zap.Logger) *Editor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Editor{client: client, cfg: cfg, log: log}
}

// Edit asks the model for a revised section. The section itself is never
// modified; callers merge the patch with Apply.
func (e *Editor) Edit(ctx context.Context, s website.Section, instructions string) (SectionPatch, error) {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return SectionPatch{}, ErrNoInstructions
	}

	raw, err := e.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		User:        UserMessage(s, instructions),
		Model:       e.cfg.Model,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		metrics.EditsTotal.WithLabelValues("error").Inc()
		e.log.Error("section edit failed", zap.String("section", s.Name), zap.Error(err))
		return SectionPatch{}, err
	}

	p, err := ParsePatch(raw)
	if err != nil {
		metrics.EditsTotal.WithLabelValues("invalid").Inc()
		e.log.Warn("section edit reply rejected", zap.String("section", s.Name), zap.Error(err))
		return SectionPatch{}, err
	}
	metrics.EditsTotal.WithLabelValues("ok").Inc()
	return p, nil
}

// PublicError maps an edit failure to a status and a short message.
func PublicError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNoInstructions):
		return http.StatusBadRequest, "Section and edit instructions are required"
	case errors.Is(err, ErrLocked):
		return http.StatusConflict, "Another edit is already in progress"
	}
	switch llm.StatusCode(err) {
	case http.StatusTooManyRequests:
		return http.StatusTooManyRequests, "Rate limit exceeded. Please try again later."
	case http.StatusPaymentRequired:
		return http.StatusPaymentRequired, "AI credits exhausted. Please add credits to continue."
	}
	return http.StatusInternalServerError, "Failed to edit content"
}
