package server

import (
	"context"
	"sync"
	"time"

	"applyforge/internal/ai"
	"applyforge/internal/config"
	"applyforge/internal/errors"
	"applyforge/internal/observability"
	"applyforge/internal/types"
)

// Service is the application API the handlers call
type Service interface {
	GenerateMaterials(ctx context.Context, jobDescription, companyDescription string, resume *types.ResumeData) (*types.PipelineResult, error)
	ParseResumeDocument(ctx context.Context, raw []byte, mimeType string) (*types.ResumeData, error)
	SavedResume(ctx context.Context) (*types.ResumeData, error)
	ModelInfo(ctx context.Context) *ai.ModelInfo
	Stats() map[string]any
	Stages() []string
	Directives() map[string]string
	SetDirective(stage, directive string) error
	StoreHealth(ctx context.Context) error
}

// ErrorResponse is the body of every failed request. Stage is set for
// pipeline failures and Phase for extraction failures.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Phase   string `json:"phase,omitempty"`
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	TLSConfig  config.TLSConfig
	Vault      config.VaultConfig
	Directives config.DirectiveConfig

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	RateLimit   config.RateLimitConfig
	RateLimiter *RateLimiter

	service Service
	om      *observability.ObservabilityManager
	logger  *errors.Logger

	keysMu  sync.RWMutex
	apiKeys map[string]bool

	vaultWatcher     *VaultWatcher
	directiveWatcher *DirectiveWatcher
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	Vault          config.VaultConfig
	Directives     config.DirectiveConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      config.RateLimitConfig
}

// NewServerConfig maps the application configuration onto a ServerConfig
func NewServerConfig(cfg *config.Config, version string) ServerConfig {
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		TLSConfig:      cfg.Server.TLS,
		Vault:          cfg.Vault,
		Directives:     cfg.AI.Directives,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.App.MaxFileSize,
		RateLimit:      cfg.Server.RateLimit,
	}
}

// NewServer creates a Server. om supplies tracing, metrics and the HTTP
// middleware; a disabled manager makes all of them no-ops.
func NewServer(cfg ServerConfig, svc Service, om *observability.ObservabilityManager, logger *errors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, logger)
	}

	s := &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		TLSConfig:      cfg.TLSConfig,
		Vault:          cfg.Vault,
		Directives:     cfg.Directives,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		service:        svc,
		om:             om,
		logger:         logger,
	}
	s.SetAPIKeys(cfg.APIKeys)
	return s
}

// SetAPIKeys replaces the accepted API keys. An empty list disables
// authentication.
func (s *Server) SetAPIKeys(keys []string) {
	apiKeyMap := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	s.keysMu.Lock()
	s.apiKeys = apiKeyMap
	s.keysMu.Unlock()
}

func (s *Server) authEnabled() bool {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return len(s.apiKeys) > 0
}

func (s *Server) validAPIKey(key string) bool {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return s.apiKeys[key]
}

func (s *Server) apiKeyCount() int {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return len(s.apiKeys)
}
