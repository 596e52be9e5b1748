// Command siteforge generates a website from the terminal, without the
// HTTP server or a database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/redirect10-prog/siteForge-ai/config"
	"github.com/redirect10-prog/siteForge-ai/internal/backendgen"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
	"github.com/redirect10-prog/siteForge-ai/internal/generation"
	"github.com/redirect10-prog/siteForge-ai/internal/llm"
	"github.com/redirect10-prog/siteForge-ai/internal/logger"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to a YAML config file")
		prompt     = flag.String("prompt", "", "website description; prompts interactively when empty")
		tier       = flag.String("tier", plans.TierFree, "tier whose section count to aim for")
		out        = flag.String("out", "", "write the website JSON here instead of stdout")
		backendDir = flag.String("backend-dir", "", "also synthesize backend code into this directory")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *configFile, options{
		Prompt:     *prompt,
		Tier:       *tier,
		Out:        *out,
		BackendDir: *backendDir,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "siteforge:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string, opts options) error {
	cfg, err := config.Load(ctx, config.Options{File: configFile, Offline: true})
	if err != nil {
		return err
	}
	// stdout carries the website JSON, so logs go to a file.
	logCfg := cfg.Log
	logCfg.File = "siteforge-cli.log"
	logCfg.Console = false
	log, err := logger.New(logCfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	if opts.Prompt == "" {
		if opts, err = ask(opts); err != nil {
			return err
		}
	}

	client, err := llm.New(ctx, llm.Options{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		return err
	}
	client = llm.Wrap(client, llm.WithLogging(log))
	defer client.Close()

	gen := generation.New(client, generation.Config{
		Attempts:    cfg.Generation.Attempts,
		Delay:       cfg.Generation.Delay,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, log)

	log.Info("generating", zap.String("tier", plans.NormalizeTier(opts.Tier)))
	site, err := gen.Generate(ctx, generation.Input{
		Prompt:       opts.Prompt,
		TierContext:  generation.TierContext(opts.Tier),
		ColorContext: generation.ColorContext(opts.Colors),
	})
	if err != nil {
		return err
	}

	body, err := json.MarshalIndent(site, "", "  ")
	if err != nil {
		return err
	}
	if opts.Out == "" {
		fmt.Println(string(body))
	} else if err := os.WriteFile(opts.Out, append(body, '\n'), 0o644); err != nil {
		return err
	}

	if opts.BackendDir == "" {
		return nil
	}
	if site.Backend == nil {
		log.Warn("website has no backend specification; nothing to synthesize")
		return nil
	}
	synth := backendgen.New(client, backendgen.Config{
		Model: firstNonEmpty(cfg.LLM.BackendModel, cfg.LLM.Model),
	}, log)
	code, source, err := synth.Synthesize(ctx, *site.Backend)
	if err != nil {
		return err
	}
	files, err := writeCode(opts.BackendDir, code)
	if err != nil {
		return err
	}
	log.Info("backend written",
		zap.String("dir", opts.BackendDir), zap.String("source", string(source)), zap.Int("files", files))
	return nil
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
