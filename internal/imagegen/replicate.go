// Package imagegen turns section image prompts into image URLs.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redirect10-prog/siteForge-ai/internal/llm"
)

// PromptSuffix is appended to every prompt sent to the provider.
const PromptSuffix = ". High quality, professional, modern website imagery, clean aesthetics."

const (
	DefaultURL          = "https://api.replicate.com/v1/predictions"
	DefaultVersion      = "db21e45d3f7023abc2a46ee38a23973f6dce16bb082a930b0c49861f96d1e5bf"
	DefaultPollInterval = time.Second
	DefaultMaxPolls     = 60
	imageSize           = 1024
	maxErrorBody        = 2048
)

var (
	// ErrTimedOut is returned when the prediction did not finish within the
	// poll cap.
	ErrTimedOut = errors.New("imagegen: prediction timed out")
	// ErrNoImage is returned when a finished prediction carries no output.
	ErrNoImage = errors.New("imagegen: no image generated")
	// ErrNotConfigured is returned when no provider token is set.
	ErrNotConfigured = errors.New("imagegen: provider not configured")
)

// PredictionError is a prediction the provider gave up on.
type PredictionError struct {
	Status string
	Reason string
}

func (e *PredictionError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "Unknown error"
	}
	return fmt.Sprintf("imagegen: prediction %s: %s", e.Status, reason)
}

// Generator produces one image URL for one prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ReplicateConfig configures a ReplicateClient. Zero values take defaults.
type ReplicateConfig struct {
	URL          string
	Token        string
	Version      string
	PollInterval time.Duration
	MaxPolls     int
	Timeout      time.Duration
}

// ReplicateClient creates a prediction and polls it until it settles.
type ReplicateClient struct {
	http  *http.Client
	cfg   ReplicateConfig
	sleep func(context.Context, time.Duration) error
}

func NewReplicateClient(cfg ReplicateConfig) *ReplicateClient {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ReplicateClient{
		http:  &http.Client{Timeout: cfg.Timeout},
		cfg:   cfg,
		sleep: sleepCtx,
	}
}

type predictionInput struct {
	Prompt            string  `json:"prompt"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	NumOutputs        int     `json:"num_outputs"`
	Scheduler         string  `json:"scheduler"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
}

type predictionReq struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Output json.RawMessage `json:"output"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

// image returns the first output URL. Output is a list for most models and
// a bare string for some.
func (p prediction) image() string {
	var list []string
	if err := json.Unmarshal(p.Output, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	var one string
	if err := json.Unmarshal(p.Output, &one); err == nil {
		return one
	}
	return ""
}

func (c *ReplicateClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.Token == "" {
		return "", ErrNotConfigured
	}
	body, err := json.Marshal(predictionReq{
		Version: c.cfg.Version,
		Input: predictionInput{
			Prompt:            strings.TrimSpace(prompt) + PromptSuffix,
			Width:             imageSize,
			Height:            imageSize,
			NumOutputs:        1,
			Scheduler:         "K_EULER",
			NumInferenceSteps: 25,
			GuidanceScale:     7.5,
		},
	})
	if err != nil {
		return "", err
	}

	var p prediction
	if err := c.do(ctx, http.MethodPost, c.cfg.URL, body, &p); err != nil {
		return "", err
	}
	if p.URLs.Get == "" {
		return "", fmt.Errorf("imagegen: prediction %q has no poll url", p.ID)
	}
	return c.poll(ctx, p.URLs.Get)
}

func (c *ReplicateClient) poll(ctx context.Context, url string) (string, error) {
	for i := 0; i < c.cfg.MaxPolls; i++ {
		var p prediction
		if err := c.do(ctx, http.MethodGet, url, nil, &p); err != nil {
			return "", err
		}
		switch p.Status {
		case "succeeded":
			if img := p.image(); img != "" {
				return img, nil
			}
			return "", ErrNoImage
		case "failed", "canceled":
			return "", &PredictionError{Status: p.Status, Reason: p.Error}
		}
		if i == c.cfg.MaxPolls-1 {
			break
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return "", err
		}
	}
	return "", ErrTimedOut
}

func (c *ReplicateClient) do(ctx context.Context, method, url string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("imagegen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &llm.StatusError{Provider: "replicate", Code: resp.StatusCode, Body: string(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("imagegen: decode response: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
