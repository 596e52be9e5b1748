package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/redirect10-prog/siteForge-ai/config"
	"github.com/redirect10-prog/siteForge-ai/database"
	adminapi "github.com/redirect10-prog/siteForge-ai/internal/api/admin"
	authapi "github.com/redirect10-prog/siteForge-ai/internal/api/auth"
	"github.com/redirect10-prog/siteForge-ai/internal/api/generate"
	"github.com/redirect10-prog/siteForge-ai/internal/api/sessions"
	"github.com/redirect10-prog/siteForge-ai/internal/api/uploads"
	usersapi "github.com/redirect10-prog/siteForge-ai/internal/api/users"
	"github.com/redirect10-prog/siteForge-ai/internal/api/websites"
	routes "github.com/redirect10-prog/siteForge-ai/internal/app/http"
	"github.com/redirect10-prog/siteForge-ai/internal/app/http/middleware"
	"github.com/redirect10-prog/siteForge-ai/internal/backendgen"
	"github.com/redirect10-prog/siteForge-ai/internal/editor"
	"github.com/redirect10-prog/siteForge-ai/internal/generation"
	"github.com/redirect10-prog/siteForge-ai/internal/imagegen"
	"github.com/redirect10-prog/siteForge-ai/internal/llm"
	"github.com/redirect10-prog/siteForge-ai/internal/logger"
	"github.com/redirect10-prog/siteForge-ai/internal/session"
	"github.com/redirect10-prog/siteForge-ai/internal/storage"
	"github.com/redirect10-prog/siteForge-ai/internal/usage"
)

func main() {
	configFile := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, config.Options{File: *configFile})
	if err != nil {
		zap.S().Fatalw("config", "err", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		zap.S().Fatalw("logger", "err", err)
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	gin.SetMode(cfg.Server.Mode)

	db, err := database.Open(cfg.Database.DSN, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}

	client, err := llm.New(ctx, llm.Options{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		log.Fatal("llm client", zap.Error(err))
	}
	client = llm.Wrap(client, llm.WithLogging(log), llm.WithMetrics(), llm.WithTimeout(cfg.LLM.Timeout))
	defer client.Close()

	generator := generation.New(client, generation.Config{
		Attempts:    cfg.Generation.Attempts,
		Delay:       cfg.Generation.Delay,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}, log.Named("generation"))
	sectionEditor := editor.New(client, editor.Config{
		Model: firstNonEmpty(cfg.LLM.EditModel, cfg.LLM.Model),
	}, log.Named("editor"))
	synth := backendgen.New(client, backendgen.Config{
		Model: firstNonEmpty(cfg.LLM.BackendModel, cfg.LLM.Model),
	}, log.Named("backendgen"))

	var store storage.ObjectStore
	if cfg.Storage.Endpoint != "" {
		s3, err := storage.NewS3Store(storage.S3Config{
			Endpoint:   cfg.Storage.Endpoint,
			Region:     cfg.Storage.Region,
			AccessKey:  cfg.Storage.AccessKey,
			SecretKey:  cfg.Storage.SecretKey,
			Bucket:     cfg.Storage.Bucket,
			UseSSL:     cfg.Storage.UseSSL,
			PublicBase: cfg.Storage.PublicBase,
		})
		if err != nil {
			log.Fatal("object storage", zap.Error(err))
		}
		store = s3
	}

	var mirror imagegen.Mirror
	if cfg.Images.Mirror && store != nil {
		mirror = storage.NewMirror(store, "generated")
	}
	images := imagegen.NewPipeline(imagegen.NewReplicateClient(imagegen.ReplicateConfig{
		URL:          cfg.Images.URL,
		Token:        cfg.Images.Token,
		Version:      cfg.Images.Version,
		PollInterval: cfg.Images.PollInterval,
		MaxPolls:     cfg.Images.MaxPolls,
	}), mirror, log.Named("images"))

	quotas := usage.NewGormStore(db, cfg.Limits)
	gate := usage.NewGate(quotas, cfg.Limits)

	manager := session.NewManager(session.Deps{
		Generator: generator,
		Images:    images,
		Editor:    sectionEditor,
		Backend:   synth,
		Log:       log.Named("session"),
	}, cfg.Sessions.Capacity, cfg.Sessions.TTL)

	repo := &websites.Repo{DB: db}
	siteCache := websites.NewSiteCache(cfg.Cache.Size, cfg.Cache.TTL)
	secret := []byte(cfg.Auth.JWTSecret)

	var google *authapi.Google
	if cfg.Auth.Google.ClientID != "" {
		google, err = authapi.NewGoogle(ctx, authapi.GoogleConfig{
			ClientID:         cfg.Auth.Google.ClientID,
			ClientSecret:     cfg.Auth.Google.ClientSecret,
			RedirectURL:      cfg.Auth.Google.RedirectURL,
			FrontendRedirect: cfg.Auth.Google.FrontendRedirect,
			SecureCookie:     cfg.Server.Mode == gin.ReleaseMode,
		})
		if err != nil {
			log.Fatal("google sign-in", zap.Error(err))
		}
	}

	r := gin.New()
	r.Use(gin.Recovery())
	// CORS before routes so preflights answer without auth.
	r.Use(routes.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.Observe(log.Named("http")))

	routes.RegisterRoutes(r, routes.Handlers{
		Secret: secret,
		Limits: cfg.Limits,
		Auth: &authapi.Handler{
			DB:     db,
			Secret: secret,
			TTL:    cfg.Auth.TokenTTL,
			Google: google,
			Log:    log.Named("auth"),
		},
		Generate: &generate.Handler{
			Gate:      gate,
			Generator: generator,
			Images:    images,
			Editor:    sectionEditor,
			Backend:   synth,
			Log:       log.Named("generate"),
		},
		Websites: &websites.Handler{
			Repo:    repo,
			Gate:    gate,
			Editor:  sectionEditor,
			Cache:   siteCache,
			BaseURL: cfg.Server.PublicURL,
			Log:     log.Named("websites"),
		},
		Sessions: &sessions.Handler{
			Manager:  manager,
			Gate:     gate,
			Repo:     repo,
			Cache:    siteCache,
			BaseURL:  cfg.Server.PublicURL,
			Log:      log.Named("sessions"),
			Upgrader: websocket.Upgrader{CheckOrigin: allowOrigin(cfg.Server.CORSOrigins)},
		},
		Uploads: &uploads.Handler{DB: db, Store: store, Log: log.Named("uploads")},
		Users:   &usersapi.Handler{DB: db, Gate: gate},
		Admin:   &adminapi.Handler{DB: db, Tiers: quotas},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

// allowOrigin accepts websocket upgrades from the CORS origins. An empty
// list falls back to the same-origin check.
func allowOrigin(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin) || slices.Contains(origins, "*")
	}
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
