// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/imgbot/internal/chapters"
	"github.com/jackzampolin/imgbot/internal/config"
	"github.com/jackzampolin/imgbot/internal/fetch"
	"github.com/jackzampolin/imgbot/internal/home"
	"github.com/jackzampolin/imgbot/internal/jobs"
	"github.com/jackzampolin/imgbot/internal/runlog"
	"github.com/jackzampolin/imgbot/internal/upload"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store         *chapters.Store
	Processor     *jobs.Processor
	Checker       *jobs.Checker
	Fetcher       *fetch.Fetcher
	Uploader      *upload.Uploader
	RunLog        *runlog.Log
	ConfigManager *config.Manager
	Logger        *slog.Logger
	Home          *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the chapter store from context.
func StoreFrom(ctx context.Context) *chapters.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// ProcessorFrom extracts the chapter processor from context.
func ProcessorFrom(ctx context.Context) *jobs.Processor {
	if s := ServicesFrom(ctx); s != nil {
		return s.Processor
	}
	return nil
}

// CheckerFrom extracts the continuous checker from context.
func CheckerFrom(ctx context.Context) *jobs.Checker {
	if s := ServicesFrom(ctx); s != nil {
		return s.Checker
	}
	return nil
}

// FetcherFrom extracts the page fetcher from context.
func FetcherFrom(ctx context.Context) *fetch.Fetcher {
	if s := ServicesFrom(ctx); s != nil {
		return s.Fetcher
	}
	return nil
}

// UploaderFrom extracts the image uploader from context.
func UploaderFrom(ctx context.Context) *upload.Uploader {
	if s := ServicesFrom(ctx); s != nil {
		return s.Uploader
	}
	return nil
}

// RunLogFrom extracts the run ledger from context.
func RunLogFrom(ctx context.Context) *runlog.Log {
	if s := ServicesFrom(ctx); s != nil {
		return s.RunLog
	}
	return nil
}

// ConfigFrom returns the current configuration, or nil without a manager.
func ConfigFrom(ctx context.Context) *config.Config {
	if s := ServicesFrom(ctx); s != nil && s.ConfigManager != nil {
		return s.ConfigManager.Get()
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
