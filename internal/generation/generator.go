// Package generation turns a prompt into a validated GeneratedWebsite with a
// bounded number of model attempts.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
	"github.com/redirect10-prog/siteForge-ai/internal/llm"
	"github.com/redirect10-prog/siteForge-ai/internal/metrics"
	"github.com/redirect10-prog/siteForge-ai/internal/normalize"

	"go.uber.org/zap"
)

// Defaults for Config.
const (
	DefaultAttempts    = 3
	DefaultDelay       = 500 * time.Millisecond
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 4000
)

var (
	ErrNoSections    = errors.New("no sections generated")
	ErrMissingFields = errors.New("section missing required fields")
)

// ExhaustedError is returned after every attempt made failed. Attempts
// counts only the attempts that ran; Last is the reason the final one failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("Generation failed after %d attempts. %s", e.Attempts, reason(e.Last))
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// AttemptError tags a failure with the pipeline stage it happened in.
type AttemptError struct {
	Stage string // invoke, extract, parse, normalize, validate
	Err   error
}

func (e *AttemptError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *AttemptError) Unwrap() error { return e.Err }

// reason is the user facing text for an attempt failure. Upstream detail
// stays in the logs.
func reason(err error) string {
	var ae *AttemptError
	if !errors.As(err, &ae) {
		if err == nil {
			return "Unknown error"
		}
		return err.Error()
	}
	switch ae.Stage {
	case "invoke":
		if errors.Is(ae.Err, llm.ErrEmptyContent) {
			return "Empty response from AI"
		}
		return "AI generation failed"
	case "extract":
		return "Response is not valid JSON object"
	case "parse", "normalize":
		return "Failed to parse AI response as JSON"
	}
	switch {
	case errors.Is(ae.Err, ErrNoSections):
		return "No sections generated"
	case errors.Is(ae.Err, ErrMissingFields):
		return "Section missing required fields"
	}
	return ae.Err.Error()
}

type Config struct {
	Attempts    int
	Delay       time.Duration
	Model       string
	Temperature float32
	MaxTokens   int
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Delay <= 0 {
		c.Delay = DefaultDelay
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c
}

// Generator retries the whole attempt pipeline up to Config.Attempts times.
type Generator struct {
	client llm.Client
	cfg    Config
	log    *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

func New(client llm.Client, cfg Config, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{client: client, cfg: cfg.withDefaults(), log: log, sleep: sleepCtx}
}

// Input is one generation request.
type Input struct {
	Prompt       string
	TierContext  string
	ColorContext string
}

// Generate runs attempts until one succeeds. Every failure is retried the
// same way; only the last reason is reported.
func (g *Generator) Generate(ctx context.Context, in Input) (website.GeneratedWebsite, error) {
	req := llm.Request{
		System:      systemPrompt,
		User:        UserPrompt(in.Prompt, in.TierContext, in.ColorContext),
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		JSON:        true,
	}

	var (
		last error
		made int
	)
	for attempt := 1; attempt <= g.cfg.Attempts; attempt++ {
		made = attempt
		w, err := Attempt(ctx, g.client, req)
		if err == nil {
			metrics.GenerationAttemptsTotal.WithLabelValues("ok").Inc()
			metrics.GenerationsTotal.WithLabelValues("ok").Inc()
			g.log.Info("generation succeeded",
				zap.Int("attempt", attempt), zap.Int("sections", len(w.Sections)))
			return w, nil
		}
		last = err
		metrics.GenerationAttemptsTotal.WithLabelValues("error").Inc()
		g.log.Warn("generation attempt failed",
			zap.Int("attempt", attempt), zap.Int("of", g.cfg.Attempts), zap.Error(err))

		if attempt < g.cfg.Attempts {
			if err := g.sleep(ctx, g.cfg.Delay); err != nil {
				last = err
				break
			}
		}
	}
	metrics.GenerationsTotal.WithLabelValues("exhausted").Inc()
	return website.GeneratedWebsite{}, &ExhaustedError{Attempts: made, Last: last}
}

// Attempt is one pass of invoke, extract, parse, normalize and validate.
func Attempt(ctx context.Context, client llm.Client, req llm.Request) (website.GeneratedWebsite, error) {
	raw, err := client.Complete(ctx, req)
	if err != nil {
		return website.GeneratedWebsite{}, &AttemptError{Stage: "invoke", Err: err}
	}
	return ParseReply(raw)
}

// ParseReply is the offline half of an attempt: everything after the model
// answered.
func ParseReply(raw string) (website.GeneratedWebsite, error) {
	body, err := llm.ExtractObject(raw)
	if err != nil {
		return website.GeneratedWebsite{}, &AttemptError{Stage: "extract", Err: err}
	}
	var decoded any
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return website.GeneratedWebsite{}, &AttemptError{Stage: "parse", Err: err}
	}
	w, err := normalize.Website(decoded)
	if err != nil {
		return website.GeneratedWebsite{}, &AttemptError{Stage: "normalize", Err: err}
	}
	if err := Check(w); err != nil {
		return website.GeneratedWebsite{}, &AttemptError{Stage: "validate", Err: err}
	}
	return w, nil
}

// Check is the semantic validation a generated website must pass.
func Check(w website.GeneratedWebsite) error {
	if len(w.Sections) == 0 {
		return ErrNoSections
	}
	for _, s := range w.Sections {
		if s.Name == "" || s.Heading == "" {
			return ErrMissingFields
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
