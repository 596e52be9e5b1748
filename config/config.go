package config

import (
	"time"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/plans"
)

// Config is the merged runtime configuration.
type Config struct {
	Server     Server      `koanf:"server"`
	Database   Database    `koanf:"database"`
	Auth       Auth        `koanf:"auth"`
	LLM        LLM         `koanf:"llm"`
	Generation Generation  `koanf:"generation"`
	Images     Images      `koanf:"images"`
	Storage    Storage     `koanf:"storage"`
	Limits     plans.Table `koanf:"limits"`
	Sessions   Sessions    `koanf:"sessions"`
	Cache      Cache       `koanf:"cache"`
	Log        Log         `koanf:"log"`
}

type Server struct {
	Port        string   `koanf:"port" validate:"required"`
	Mode        string   `koanf:"mode" validate:"oneof=debug release test"`
	CORSOrigins []string `koanf:"cors_origins"`
	PublicURL   string   `koanf:"public_url" validate:"omitempty,url"` // base of share links
}

type Database struct {
	DSN string `koanf:"dsn" validate:"required"`
}

type Auth struct {
	JWTSecret string        `koanf:"jwt_secret" validate:"required,min=16"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
	Google    Google        `koanf:"google"`
}

// Google login is optional; it is enabled when ClientID is set.
type Google struct {
	ClientID         string `koanf:"client_id"`
	ClientSecret     string `koanf:"client_secret" validate:"required_with=ClientID"`
	RedirectURL      string `koanf:"redirect_url" validate:"required_with=ClientID"`
	FrontendRedirect string `koanf:"frontend_redirect"`
}

type LLM struct {
	Provider     string        `koanf:"provider" validate:"oneof=groq gateway gemini"`
	APIKey       string        `koanf:"api_key"`
	BaseURL      string        `koanf:"base_url"`
	Model        string        `koanf:"model"`
	EditModel    string        `koanf:"edit_model"`
	BackendModel string        `koanf:"backend_model"`
	Temperature  float32       `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int           `koanf:"max_tokens" validate:"gte=0"`
	Timeout      time.Duration `koanf:"timeout"`
}

type Generation struct {
	Attempts int           `koanf:"attempts" validate:"gte=1,lte=10"`
	Delay    time.Duration `koanf:"delay"`
}

type Images struct {
	URL          string        `koanf:"url" validate:"omitempty,url"`
	Token        string        `koanf:"token"`
	Version      string        `koanf:"version"`
	PollInterval time.Duration `koanf:"poll_interval"`
	MaxPolls     int           `koanf:"max_polls" validate:"gte=0"`
	Mirror       bool          `koanf:"mirror"`
}

// Storage is the S3 compatible object store; empty Endpoint disables it.
type Storage struct {
	Endpoint   string `koanf:"endpoint"`
	Region     string `koanf:"region"`
	AccessKey  string `koanf:"access_key" validate:"required_with=Endpoint"`
	SecretKey  string `koanf:"secret_key" validate:"required_with=Endpoint"`
	Bucket     string `koanf:"bucket" validate:"required_with=Endpoint"`
	UseSSL     bool   `koanf:"use_ssl"`
	PublicBase string `koanf:"public_base"`
}

type Sessions struct {
	TTL      time.Duration `koanf:"ttl"`
	Capacity int           `koanf:"capacity" validate:"gte=0"`
}

// Cache sizes the public shared-site cache.
type Cache struct {
	Size int           `koanf:"size" validate:"gte=0"`
	TTL  time.Duration `koanf:"ttl"`
}

type Log struct {
	Level      string `koanf:"level" validate:"oneof=debug info warn error"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
	Console    bool   `koanf:"console"`
}

// Defaults is the bottom configuration layer.
func Defaults() Config {
	return Config{
		Server: Server{Port: "8080", Mode: "release", PublicURL: "http://localhost:5173"},
		Auth:   Auth{TokenTTL: 72 * time.Hour},
		LLM: LLM{
			Provider:    "groq",
			Temperature: 0.7,
			MaxTokens:   8000,
			Timeout:     2 * time.Minute,
		},
		Generation: Generation{Attempts: 3, Delay: time.Second},
		Images: Images{
			PollInterval: time.Second,
			MaxPolls:     60,
		},
		Limits:   plans.DefaultTable(),
		Sessions: Sessions{TTL: 2 * time.Hour, Capacity: 1024},
		Cache:    Cache{Size: 512, TTL: 5 * time.Minute},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 7,
			MaxAgeDays: 14,
			Compress:   true,
			Console:    true,
		},
	}
}
