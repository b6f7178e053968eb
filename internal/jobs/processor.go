// Package jobs drives chapter processing: the per-chapter pipeline and the
// continuous checker loop that feeds it.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/imgbot/internal/chapters"
	"github.com/jackzampolin/imgbot/internal/extract"
	"github.com/jackzampolin/imgbot/internal/fetch"
	"github.com/jackzampolin/imgbot/internal/runlog"
	"github.com/jackzampolin/imgbot/internal/upload"
)

// ErrInFlight is returned when the chapter is already being processed by this process.
var ErrInFlight = errors.New("chapter is already being processed")

// failTimeout bounds the error write-back once the run context is gone.
const failTimeout = 15 * time.Second

// Result is the outcome of one ProcessChapter call.
type Result struct {
	RunID            string          `json:"runId"`
	Key              chapters.Key    `json:"key"`
	Success          bool            `json:"success"`
	Skipped          bool            `json:"skipped,omitempty"`
	Status           chapters.Status `json:"status"`
	TotalImages      int             `json:"totalImages"`
	SuccessfulImages int             `json:"successfulImages"`
	SuccessRate      float64         `json:"successRate"`
	Error            string          `json:"error,omitempty"`
}

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Store     *chapters.Store
	Fetcher   *fetch.Fetcher
	Extractor *extract.Extractor
	Uploader  *upload.Uploader // optional
	RunLog    *runlog.Log      // optional
	Logger    *slog.Logger

	FetchAttempts      int           // default: 5
	DelayBetweenImages time.Duration // base wait between images
	ImageJitter        time.Duration // random extra wait, up to this
	MinHTMLLength      int           // default: 100

	// DumpPath, when set, names the file that receives a page that yielded
	// no images.
	DumpPath func(runID string) string
}

// Processor runs the fetch → extract → probe/upload → persist pipeline for
// one chapter at a time per key.
type Processor struct {
	cfg    ProcessorConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}

	// Background runs started with Dispatch.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewProcessor creates a processor.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 5
	}
	if cfg.MinHTMLLength <= 0 {
		cfg.MinHTMLLength = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Processor{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
		baseCtx:  ctx,
		cancel:   cancel,
	}, nil
}

// Store returns the chapter store.
func (p *Processor) Store() *chapters.Store {
	return p.cfg.Store
}

// InFlight returns the paths of chapters currently being processed.
func (p *Processor) InFlight() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	paths := make([]string, 0, len(p.inFlight))
	for path := range p.inFlight {
		paths = append(paths, path)
	}
	return paths
}

// ProcessChapter processes one chapter and waits for the outcome. Pipeline
// failures are reported in the Result; the returned error is only set for an
// invalid key, ErrInFlight, or a cancelled context.
func (p *Processor) ProcessChapter(ctx context.Context, key chapters.Key, trigger runlog.Trigger) (Result, error) {
	if err := key.Validate(); err != nil {
		return Result{Key: key}, err
	}
	if !p.acquire(key) {
		return Result{Key: key}, ErrInFlight
	}
	defer p.release(key)

	runID := p.startRun(ctx, key, trigger)
	res := p.process(ctx, key, runID)
	return res, ctx.Err()
}

// Dispatch starts processing in the background and returns the run ID.
// Background runs stop when Close is called.
func (p *Processor) Dispatch(key chapters.Key, trigger runlog.Trigger) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	if err := p.baseCtx.Err(); err != nil {
		return "", fmt.Errorf("processor is closed: %w", err)
	}
	if !p.acquire(key) {
		return "", ErrInFlight
	}

	runID := p.startRun(p.baseCtx, key, trigger)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.release(key)
		p.process(p.baseCtx, key, runID)
	}()
	return runID, nil
}

// Close cancels background runs and waits for them to write back.
func (p *Processor) Close() {
	p.cancel()
	p.wg.Wait()
}

func (p *Processor) acquire(key chapters.Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[key.Path()]; busy {
		return false
	}
	p.inFlight[key.Path()] = struct{}{}
	return true
}

func (p *Processor) release(key chapters.Key) {
	p.mu.Lock()
	delete(p.inFlight, key.Path())
	p.mu.Unlock()
}

// startRun records the run in the ledger. Without a ledger, or when the
// ledger write fails, the run still gets an ID.
func (p *Processor) startRun(ctx context.Context, key chapters.Key, trigger runlog.Trigger) string {
	id := uuid.NewString()
	if p.cfg.RunLog == nil {
		return id
	}
	_, err := p.cfg.RunLog.Start(ctx, runlog.Run{
		ID:        id,
		Trigger:   trigger,
		Group:     key.Group,
		MangaID:   key.MangaID,
		ChapterID: key.ChapterID,
		StartedAt: p.now(),
	})
	if err != nil {
		p.logger.Warn("failed to record run start", "run_id", id, "error", err)
	}
	return id
}

func (p *Processor) finishRun(key chapters.Key, res Result) {
	if p.cfg.RunLog == nil {
		return
	}
	out := runlog.Outcome{
		TotalImages:      res.TotalImages,
		SuccessfulImages: res.SuccessfulImages,
		Error:            res.Error,
	}
	switch {
	case res.Skipped:
		out.Status = runlog.StatusSkipped
	case !res.Success:
		out.Status = runlog.StatusFailed
	case res.Status == chapters.StatusPartial:
		out.Status = runlog.StatusPartial
	default:
		out.Status = runlog.StatusCompleted
	}

	// The ledger is local; record the outcome even if the run was cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), failTimeout)
	defer cancel()
	if err := p.cfg.RunLog.Finish(ctx, res.RunID, out); err != nil {
		p.logger.Warn("failed to record run outcome", "run_id", res.RunID, "path", key.Path(), "error", err)
	}
}

func (p *Processor) process(ctx context.Context, key chapters.Key, runID string) (res Result) {
	res = Result{RunID: runID, Key: key}
	logger := p.logger.With("run_id", runID, "group", key.Group, "manga_id", key.MangaID, "chapter_id", key.ChapterID)
	defer func() { p.finishRun(key, res) }()

	logger.Info("processing chapter")

	rec, err := p.cfg.Store.Claim(ctx, key, runID, p.now())
	switch {
	case errors.Is(err, chapters.ErrAlreadyProcessing),
		errors.Is(err, chapters.ErrAlreadyCompleted),
		errors.Is(err, chapters.ErrClaimConflict):
		res.Success = true
		res.Skipped = true
		if rec != nil {
			res.Status = rec.Status
		}
		logger.Info("chapter skipped", "reason", err)
		return res
	case err != nil:
		res.Status = chapters.StatusError
		res.Error = err.Error()
		logger.Error("failed to claim chapter", "error", err)
		return res
	}

	done, err := p.run(ctx, key, runID, rec, logger)
	if err != nil {
		res.Status = chapters.StatusError
		res.Error = err.Error()
		logger.Error("chapter processing failed", "error", err)
		p.fail(ctx, key, err, logger)
		return res
	}

	res.Success = true
	res.Status = done.Status
	res.TotalImages = done.TotalImages
	res.SuccessfulImages = done.SuccessfulImages
	res.SuccessRate = done.SuccessRate
	logger.Info("chapter processed",
		"status", done.Status,
		"images", done.TotalImages,
		"successful", done.SuccessfulImages,
		"success_rate", fmt.Sprintf("%.1f", done.SuccessRate))
	return res
}

// run is the pipeline after a successful claim.
func (p *Processor) run(ctx context.Context, key chapters.Key, runID string, rec *chapters.Record, logger *slog.Logger) (*chapters.Record, error) {
	html, err := p.cfg.Fetcher.FetchPage(ctx, rec.URL, p.cfg.FetchAttempts)
	if err != nil {
		return nil, err
	}
	if len(html) < p.cfg.MinHTMLLength {
		return nil, fmt.Errorf("html response too short (%d bytes)", len(html))
	}

	found, err := p.cfg.Extractor.Extract(html)
	if errors.Is(err, extract.ErrNoImages) {
		p.dump(runID, html, logger)
	}
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, extract.ErrNoImages
	}
	logger.Info("images found", "count", len(found))

	images := make([]chapters.Image, 0, len(found))
	for i, img := range found {
		if i > 0 {
			if err := fetch.Sleep(ctx, p.imageDelay()); err != nil {
				return nil, err
			}
		}
		images = append(images, p.resolveImage(ctx, img, logger))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done, err := p.cfg.Store.Complete(ctx, key, chapters.Completion{
		Images:            images,
		ProcessingStarted: rec.ProcessingStarted,
	}, p.now())
	if err != nil {
		return nil, err
	}

	if _, err := p.cfg.Store.AddImageStats(ctx, done.SuccessfulImages, done.TotalImages, p.now()); err != nil {
		logger.Warn("failed to update image stats", "error", err)
	}
	return done, nil
}

// resolveImage probes one image and, when uploads are enabled, re-hosts it.
func (p *Processor) resolveImage(ctx context.Context, img extract.Image, logger *slog.Logger) chapters.Image {
	entry := chapters.Image{
		Order:       img.Order,
		URL:         img.URL,
		OriginalURL: img.URL,
		Selector:    img.Selector,
		Alt:         img.Alt,
	}

	probe := p.cfg.Fetcher.ProbeImage(ctx, img.URL)
	entry.FetchedAt = p.now().UnixMilli()
	if !probe.Success {
		entry.Status = chapters.ImageFailed
		entry.Error = probe.Error
		logger.Debug("image probe failed", "order", img.Order, "error", probe.Error)
		return entry
	}

	entry.Success = true
	entry.Status = chapters.ImageDirect
	entry.ProxyUsed = probe.ProxyUsed

	if p.cfg.Uploader == nil || !p.cfg.Uploader.Enabled() {
		return entry
	}
	up := p.cfg.Uploader.Upload(ctx, img.URL)
	if up.Uploaded {
		entry.Status = chapters.ImageUploaded
		entry.URL = up.URL
		entry.UploadedURL = up.URL
	} else {
		entry.Error = up.Error
		logger.Debug("image upload failed, keeping direct link", "order", img.Order, "error", up.Error)
	}
	return entry
}

// fail marks the record as errored. It runs even when ctx is cancelled so
// the record does not stay in processing.
func (p *Processor) fail(ctx context.Context, key chapters.Key, cause error, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failTimeout)
	defer cancel()
	if err := p.cfg.Store.Fail(ctx, key, cause, p.now()); err != nil {
		logger.Error("failed to mark chapter as error", "error", err)
	}
}

func (p *Processor) dump(runID, html string, logger *slog.Logger) {
	if p.cfg.DumpPath == nil {
		return
	}
	path := p.cfg.DumpPath(runID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("failed to create dump directory", "error", err)
		return
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		logger.Warn("failed to dump page", "error", err)
		return
	}
	logger.Info("page without images dumped", "path", path)
}

func (p *Processor) imageDelay() time.Duration {
	return p.cfg.DelayBetweenImages + p.jitter(p.cfg.ImageJitter)
}

func (p *Processor) jitter(limit time.Duration) time.Duration {
	return p.cfg.Fetcher.Rotator().Jitter(limit)
}
