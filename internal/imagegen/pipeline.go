package imagegen

import (
	"context"
	"errors"
	"strings"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
	"github.com/redirect10-prog/siteForge-ai/internal/metrics"

	"go.uber.org/zap"
)

// ErrNoPrompt is returned by Regenerate for a section without any prompt.
var ErrNoPrompt = errors.New("imagegen: section has no image prompt")

// Progress counts attempted images out of the batch total.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Update reports one finished attempt. Exactly one of Image and Err is set.
type Update struct {
	Index    int
	Image    string
	Err      error
	Progress Progress
}

// Observer receives updates in order, on the goroutine running the batch.
type Observer func(Update)

// Guard runs before each image request; an error fails that image only.
type Guard func(ctx context.Context) error

// Mirror copies a provider URL somewhere durable and returns the new URL.
type Mirror interface {
	Mirror(ctx context.Context, sourceURL string) (string, error)
}

// Pipeline illustrates sections one at a time.
type Pipeline struct {
	gen    Generator
	mirror Mirror
	log    *zap.Logger
}

func NewPipeline(gen Generator, mirror Mirror, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{gen: gen, mirror: mirror, log: log}
}

// Total is the number of sections Run would attempt.
func Total(sections []website.Section) int {
	n := 0
	for _, s := range sections {
		if strings.TrimSpace(s.ImagePrompt) != "" {
			n++
		}
	}
	return n
}

// Run requests an image for every section carrying a prompt, strictly in
// order. It returns a new slice; a failed section is returned unchanged.
// The batch stops early only when ctx ends.
func (p *Pipeline) Run(ctx context.Context, sections []website.Section, guard Guard, observe Observer) []website.Section {
	out := make([]website.Section, len(sections))
	copy(out, sections)

	progress := Progress{Total: Total(sections)}
	for i, s := range sections {
		if strings.TrimSpace(s.ImagePrompt) == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		img, err := p.one(ctx, s.ImagePrompt, guard)
		progress.Current++
		u := Update{Index: i, Progress: progress}
		if err != nil {
			u.Err = err
			p.log.Warn("image generation failed", zap.Int("section", i), zap.Error(err))
		} else {
			out[i].GeneratedImage = img
			u.Image = img
		}
		if observe != nil {
			observe(u)
		}
	}
	return out
}

// Regenerate replaces one section's image. A non-empty customPrompt is
// stored on the section only when the new image arrives; on failure the
// section is returned unchanged alongside the error.
func (p *Pipeline) Regenerate(ctx context.Context, s website.Section, customPrompt string, guard Guard) (website.Section, error) {
	prompt := strings.TrimSpace(customPrompt)
	if prompt == "" {
		prompt = strings.TrimSpace(s.ImagePrompt)
	}
	if prompt == "" {
		return s, ErrNoPrompt
	}
	img, err := p.one(ctx, prompt, guard)
	if err != nil {
		return s, err
	}
	s.ImagePrompt = prompt
	s.GeneratedImage = img
	return s, nil
}

// Single generates one image for a free-standing prompt.
func (p *Pipeline) Single(ctx context.Context, prompt string) (string, error) {
	return p.one(ctx, prompt, nil)
}

func (p *Pipeline) one(ctx context.Context, prompt string, guard Guard) (string, error) {
	if guard != nil {
		if err := guard(ctx); err != nil {
			metrics.ImagesTotal.WithLabelValues("denied").Inc()
			return "", err
		}
	}
	img, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		metrics.ImagesTotal.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.ImagesTotal.WithLabelValues("ok").Inc()

	if p.mirror == nil {
		return img, nil
	}
	mirrored, err := p.mirror.Mirror(ctx, img)
	if err != nil {
		p.log.Warn("image mirror failed, keeping provider url", zap.String("url", img), zap.Error(err))
		return img, nil
	}
	return mirrored, nil
}
