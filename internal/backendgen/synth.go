package backendgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/website"
	"github.com/redirect10-prog/siteForge-ai/internal/llm"
	"github.com/redirect10-prog/siteForge-ai/internal/metrics"

	"go.uber.org/zap"
)

// Source tells where generated code came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceTemplate Source = "template"
)

// ErrEmptySQL rejects a model reply without a schema.
var ErrEmptySQL = errors.New("backendgen: reply has no sql")

const systemPrompt = `You are an expert full-stack developer specializing in Supabase, React, and TypeScript. Generate production-ready code based on the provided backend specification.

Your task is to generate complete, deployable code including:
1. SQL schema with proper RLS policies
2. React form components with validation
3. Supabase Edge Functions for API endpoints
4. Authentication setup if required

CRITICAL RULES:
- Generate COMPLETE, WORKING code - no placeholders or TODOs
- Use proper TypeScript types
- Include comprehensive error handling
- Add input validation for all forms
- Implement proper RLS policies based on the spec
- Use Supabase client correctly
- Make forms accessible and responsive

Return ONLY valid JSON in this exact format:
{
  "sql": "complete SQL schema with RLS policies",
  "forms": [
    {
      "id": "form_id",
      "name": "Form Name",
      "code": "complete React component code",
      "filename": "ComponentName.tsx"
    }
  ],
  "edgeFunctions": [
    {
      "name": "function-name",
      "path": "/api/path",
      "code": "complete edge function code",
      "filename": "function-name/index.ts"
    }
  ],
  "authSetup": {
    "loginComponent": "complete login form component code if auth required",
    "signupComponent": "complete signup form component code if auth required",
    "authContext": "complete auth context code if auth required"
  }
}

IMPORTANT: Return ONLY the JSON object, no markdown, no code blocks, no explanation.`

// UserPrompt embeds the spec in the request for code.
func UserPrompt(spec website.BackendSpec) (string, error) {
	b, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`Generate complete backend code for this specification:

%s

Requirements:
- SQL must include CREATE TABLE statements with proper types
- RLS policies must match the rlsPolicy field (user_owned, public_read, authenticated_only, admin_only)
- Forms must use shadcn/ui components and include validation
- Edge functions must handle CORS and errors properly
- If hasAuth is true, generate complete auth components

Generate production-ready code now.`, b), nil
}

// Config tunes the model call.
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type Synthesizer struct {
	client llm.Client
	cfg    Config
	log    *zap.Logger
}

// New returns a Synthesizer. A nil client always uses templates.
func New(client llm.Client, cfg Config, log *zap.Logger) *Synthesizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{client: client, cfg: cfg, log: log}
}

// Synthesize asks the model for code and falls back to templates on any
// model failure. It fails only if the templates themselves fail.
func (s *Synthesizer) Synthesize(ctx context.Context, spec website.BackendSpec) (website.GeneratedCode, Source, error) {
	if s.client != nil {
		code, err := s.fromModel(ctx, spec)
		if err == nil {
			metrics.BackendSynthesisTotal.WithLabelValues(string(SourceAI)).Inc()
			return code, SourceAI, nil
		}
		s.log.Warn("backend code from model rejected, using templates", zap.Error(err))
	}
	code, err := Template(spec)
	if err != nil {
		return website.GeneratedCode{}, "", err
	}
	metrics.BackendSynthesisTotal.WithLabelValues(string(SourceTemplate)).Inc()
	return code, SourceTemplate, nil
}

func (s *Synthesizer) fromModel(ctx context.Context, spec website.BackendSpec) (website.GeneratedCode, error) {
	user, err := UserPrompt(spec)
	if err != nil {
		return website.GeneratedCode{}, err
	}
	raw, err := s.client.Complete(ctx, llm.Request{
		System:      systemPrompt,
		User:        user,
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return website.GeneratedCode{}, err
	}
	return ParseCode(raw)
}

// ParseCode reads a model reply into GeneratedCode.
func ParseCode(raw string) (website.GeneratedCode, error) {
	body, err := llm.ExtractObject(raw)
	if err != nil {
		return website.GeneratedCode{}, err
	}
	var code website.GeneratedCode
	if err := json.Unmarshal([]byte(body), &code); err != nil {
		return website.GeneratedCode{}, fmt.Errorf("backendgen: parse reply: %w", err)
	}
	if strings.TrimSpace(code.SQL) == "" {
		return website.GeneratedCode{}, ErrEmptySQL
	}
	if code.Forms == nil {
		code.Forms = []website.FormCode{}
	}
	if code.EdgeFunctions == nil {
		code.EdgeFunctions = []website.EdgeFunctionCode{}
	}
	if code.AuthSetup != nil && *code.AuthSetup == (website.AuthSetup{}) {
		code.AuthSetup = nil
	}
	return code, nil
}

// Template renders code for spec without a model.
func Template(spec website.BackendSpec) (website.GeneratedCode, error) {
	var (
		code website.GeneratedCode
		err  error
	)
	if code.SQL, err = SQL(spec); err != nil {
		return code, fmt.Errorf("backendgen: sql: %w", err)
	}

	code.Forms = make([]website.FormCode, 0, len(spec.Forms))
	for _, f := range spec.Forms {
		src, err := FormComponent(f)
		if err != nil {
			return code, fmt.Errorf("backendgen: form %q: %w", f.ID, err)
		}
		code.Forms = append(code.Forms, website.FormCode{
			ID:       f.ID,
			Name:     f.Name,
			Code:     src,
			Filename: ComponentName(f) + ".tsx",
		})
	}

	code.EdgeFunctions = make([]website.EdgeFunctionCode, 0, len(spec.APIEndpoints))
	for _, e := range spec.APIEndpoints {
		src, err := EdgeFunction(e, spec)
		if err != nil {
			return code, fmt.Errorf("backendgen: endpoint %q: %w", e.Name, err)
		}
		name := slug(firstNonEmpty(e.Name, e.Path))
		code.EdgeFunctions = append(code.EdgeFunctions, website.EdgeFunctionCode{
			Name:     name,
			Path:     e.Path,
			Code:     src,
			Filename: name + "/index.ts",
		})
	}

	if code.AuthSetup, err = AuthComponents(spec.AuthConfig); err != nil {
		return code, fmt.Errorf("backendgen: auth: %w", err)
	}
	return code, nil
}
