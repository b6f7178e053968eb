package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/imgbot/internal/api"
	"github.com/jackzampolin/imgbot/internal/chapters"
	"github.com/jackzampolin/imgbot/internal/config"
	"github.com/jackzampolin/imgbot/internal/extract"
	"github.com/jackzampolin/imgbot/internal/fetch"
	"github.com/jackzampolin/imgbot/internal/firebase"
	"github.com/jackzampolin/imgbot/internal/home"
	"github.com/jackzampolin/imgbot/internal/jobs"
	"github.com/jackzampolin/imgbot/internal/runlog"
	"github.com/jackzampolin/imgbot/internal/server/endpoints"
	"github.com/jackzampolin/imgbot/internal/svcctx"
	"github.com/jackzampolin/imgbot/internal/upload"
)

// Server is the imgbot HTTP server.
// It owns the chapter processor and the continuous checker, stopping both
// on shutdown.
type Server struct {
	httpServer *http.Server
	configMgr  *config.Manager
	home       *home.Dir
	logger     *slog.Logger

	store     *chapters.Store
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	uploader  *upload.Uploader

	runLog    *runlog.Log
	processor *jobs.Processor
	checker   *jobs.Checker

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// Home locates the run ledger and page dumps. Optional.
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support.
	// Defaults are used when nil.
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	conf := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		conf = cfg.ConfigManager.Get()
	}
	if err := conf.Validate(); err != nil {
		cfg.Logger.Warn("configuration incomplete, chapter endpoints disabled", "error", err)
	}

	db := firebase.NewClient(firebase.Config{
		URL:        conf.Firebase.ResolvedURL(),
		Secret:     conf.Firebase.ResolvedSecret(),
		Timeout:    conf.Firebase.Timeout,
		MaxRetries: conf.Firebase.MaxRetries,
	})

	rotator := fetch.NewRotator(poolsFrom(conf.Fetch), nil)
	fetcher, err := fetch.NewFetcher(rotator, fetch.Config{
		PageTimeout:      conf.Fetch.PageTimeout,
		ImageTimeout:     conf.Fetch.ImageTimeout,
		ProxyDelay:       conf.Fetch.ProxyDelay,
		RetryDelayBase:   conf.Fetch.RetryDelayBase,
		RetryJitter:      conf.Fetch.RetryJitter,
		ImageProbeRounds: conf.Fetch.ImageProbeRounds,
		ImageRoundDelay:  conf.Fetch.ImageRoundDelay,
		RateLimit:        conf.Fetch.RateLimit,
		MaxBodyBytes:     conf.Fetch.MaxBodyBytes,
		Logger:           cfg.Logger,

		LastChance:        conf.Fetch.LastChance,
		LastChanceReferer: conf.Fetch.LastChanceReferer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	uploader := upload.New(upload.Config{
		Endpoint: conf.Upload.Endpoint,
		APIKey:   conf.Upload.ResolvedKey(),
		Timeout:  conf.Upload.Timeout,
		Download: fetcher.Download,
		Logger:   cfg.Logger,
	})

	s := &Server{
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		logger:    cfg.Logger,
		store:     chapters.NewStore(db, conf.Processor.CompletionThreshold),
		fetcher:   fetcher,
		extractor: &extract.Extractor{
			Selectors:  conf.Extract.Selectors,
			Attributes: conf.Extract.Attributes,
			Extensions: conf.Extract.Extensions,
			BaseURL:    conf.Extract.BaseURL,
			MaxImages:  conf.Extract.MaxImages,
		},
		uploader: uploader,
	}

	// Proxy pools and the upload key follow the config file; everything
	// else needs a restart.
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			rotator.Reload(poolsFrom(c.Fetch))
			uploader.SetKey(c.Upload.ResolvedKey())
			cfg.Logger.Info("proxy pools and upload key reloaded from config",
				"proxies", len(c.Fetch.Proxies), "uploads", uploader.Enabled())
		})
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func poolsFrom(c config.FetchConfig) fetch.Pools {
	return fetch.Pools{
		Proxies:    c.Proxies,
		UserAgents: c.UserAgents,
		Referers:   c.Referers,
		Languages:  c.Languages,
	}
}

func (s *Server) currentConfig() *config.Config {
	if s.configMgr != nil {
		return s.configMgr.Get()
	}
	return config.DefaultConfig()
}

func (s *Server) runLogPath(conf *config.Config) string {
	if conf.RunLog.Path != "" {
		return conf.RunLog.Path
	}
	if s.home != nil {
		return s.home.RunLogPath()
	}
	return ""
}

// Start opens the run ledger, starts the HTTP server and, when configured,
// the continuous checker. It blocks until the context is cancelled or an
// error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	conf := s.currentConfig()

	if path := s.runLogPath(conf); path != "" {
		rl, err := runlog.Open(path)
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to open run log: %w", err)
		}
		s.runLog = rl
		s.logger.Info("run log opened", "path", path)
	} else {
		s.logger.Warn("no run log path, runs will not be recorded")
	}

	procCfg := jobs.ProcessorConfig{
		Store:              s.store,
		Fetcher:            s.fetcher,
		Extractor:          s.extractor,
		Uploader:           s.uploader,
		RunLog:             s.runLog,
		Logger:             s.logger,
		FetchAttempts:      conf.Fetch.MaxRetries,
		DelayBetweenImages: conf.Processor.DelayBetweenImages,
		ImageJitter:        conf.Processor.ImageJitter,
		MinHTMLLength:      conf.Processor.MinHTMLLength,
	}
	if s.home != nil {
		procCfg.DumpPath = s.home.DumpPath
	}
	processor, err := jobs.NewProcessor(procCfg)
	if err != nil {
		s.closeRunLog()
		s.setNotRunning()
		return fmt.Errorf("failed to create processor: %w", err)
	}
	s.processor = processor

	checker, err := jobs.NewChecker(jobs.CheckerConfig{
		Processor:            processor,
		Logger:               s.logger,
		MaxChaptersPerCycle:  conf.Checker.MaxChaptersPerCycle,
		MinPriority:          conf.Checker.MinPriority,
		DelayBetweenChapters: conf.Checker.DelayBetweenChapters,
		ChapterJitter:        conf.Checker.ChapterJitter,
		DelayBetweenGroups:   conf.Checker.DelayBetweenGroups,
		WaitHighErrors:       conf.Checker.WaitHighErrors,
		WaitIdle:             conf.Checker.WaitIdle,
		WaitLowSuccess:       conf.Checker.WaitLowSuccess,
		WaitNormal:           conf.Checker.WaitNormal,
		WaitAfterError:       conf.Checker.WaitAfterError,
	})
	if err != nil {
		processor.Close()
		s.closeRunLog()
		s.setNotRunning()
		return fmt.Errorf("failed to create checker: %w", err)
	}
	s.checker = checker

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Store:         s.store,
		Processor:     s.processor,
		Checker:       s.checker,
		Fetcher:       s.fetcher,
		Uploader:      s.uploader,
		RunLog:        s.runLog,
		ConfigManager: s.configMgr,
		Logger:        s.logger,
		Home:          s.home,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if conf.Checker.AutoStart && s.store.Configured() {
		go s.autoStart(ctx, conf.Checker.StartDelay)
	}

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

func (s *Server) autoStart(ctx context.Context, delay time.Duration) {
	s.logger.Info("continuous check scheduled", "delay", delay)
	if err := fetch.Sleep(ctx, delay); err != nil {
		return
	}
	s.checker.Start(ctx)
}

// shutdown stops the HTTP server, then the checker and any background
// runs, and finally closes the run ledger.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.checker != nil {
		s.checker.Stop()
	}
	if s.processor != nil {
		s.processor.Close()
	}
	s.closeRunLog()

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) closeRunLog() {
	if s.runLog == nil {
		return
	}
	if err := s.runLog.Close(); err != nil {
		s.logger.Error("run log close error", "error", err)
	}
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Store returns the chapter store.
func (s *Server) Store() *chapters.Store {
	return s.store
}

// Checker returns the continuous checker.
// Returns nil if the server hasn't started yet.
func (s *Server) Checker() *jobs.Checker {
	return s.checker
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the processor is running and the
// database is configured.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil || s.processor == nil || !s.store.Configured() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"success":false,"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
