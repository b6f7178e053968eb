package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/imgbot/internal/chapters"
	"github.com/jackzampolin/imgbot/internal/fetch"
	"github.com/jackzampolin/imgbot/internal/runlog"
)

// CheckerConfig configures a Checker. Zero values take the defaults noted.
type CheckerConfig struct {
	Processor *Processor
	Logger    *slog.Logger

	MaxChaptersPerCycle  int     // default: 8
	MinPriority          float64 // default: 30
	DelayBetweenChapters time.Duration
	ChapterJitter        time.Duration
	DelayBetweenGroups   time.Duration

	WaitHighErrors time.Duration // default: 8m
	WaitIdle       time.Duration // default: 6m
	WaitLowSuccess time.Duration // default: 7m
	WaitNormal     time.Duration // default: 4m
	WaitAfterError time.Duration // default: 2m
}

// CycleSummary describes one pass over the chapter groups.
type CycleSummary struct {
	Processed        int       `json:"processed"`
	Skipped          int       `json:"skipped"`
	Errors           int       `json:"errors"`
	TotalImages      int       `json:"totalImages"`
	SuccessfulImages int       `json:"successfulImages"`
	SuccessRate      float64   `json:"successRate"`
	StartedAt        time.Time `json:"startedAt"`
	FinishedAt       time.Time `json:"finishedAt"`
	NextWait         string    `json:"nextWait,omitempty"`
	Error            string    `json:"error,omitempty"`
}

// CheckerStatus is a snapshot of the checker.
type CheckerStatus struct {
	Running     bool          `json:"running"`
	Cycles      int           `json:"cycles"`
	LastCycle   *CycleSummary `json:"lastCycle,omitempty"`
	NextCycleAt *time.Time    `json:"nextCycleAt,omitempty"`
}

// Checker continuously scans chapter groups and processes the chapters that
// most need images, a bounded number per cycle.
type Checker struct {
	cfg    CheckerConfig
	logger *slog.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	cycles    int
	lastCycle *CycleSummary
	nextCycle *time.Time
}

// NewChecker creates a checker.
func NewChecker(cfg CheckerConfig) (*Checker, error) {
	if cfg.Processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if cfg.MaxChaptersPerCycle <= 0 {
		cfg.MaxChaptersPerCycle = 8
	}
	if cfg.MinPriority <= 0 {
		cfg.MinPriority = 30
	}
	setDefault(&cfg.WaitHighErrors, 8*time.Minute)
	setDefault(&cfg.WaitIdle, 6*time.Minute)
	setDefault(&cfg.WaitLowSuccess, 7*time.Minute)
	setDefault(&cfg.WaitNormal, 4*time.Minute)
	setDefault(&cfg.WaitAfterError, 2*time.Minute)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{cfg: cfg, logger: logger}, nil
}

func setDefault(d *time.Duration, v time.Duration) {
	if *d <= 0 {
		*d = v
	}
}

// Start runs the loop in the background until ctx is done or Stop is called.
// It returns false if the loop is already running.
func (c *Checker) Start(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		defer func() {
			c.mu.Lock()
			if c.done == done {
				c.cancel = nil
				c.done = nil
				c.nextCycle = nil
			}
			c.mu.Unlock()
			cancel()
		}()
		c.loop(ctx)
	}()

	c.logger.Info("continuous check started")
	return true
}

// Stop stops the loop and waits for the current chapter to wind down.
// It returns false if the loop was not running.
func (c *Checker) Stop() bool {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	c.logger.Info("continuous check stopped")
	return true
}

// Running reports whether the loop is running.
func (c *Checker) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Status returns a snapshot of the checker.
func (c *Checker) Status() CheckerStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := CheckerStatus{Running: c.cancel != nil, Cycles: c.cycles}
	if c.lastCycle != nil {
		last := *c.lastCycle
		st.LastCycle = &last
	}
	if c.nextCycle != nil {
		next := *c.nextCycle
		st.NextCycleAt = &next
	}
	return st
}

func (c *Checker) loop(ctx context.Context) {
	for {
		summary, err := c.RunCycle(ctx)
		if ctx.Err() != nil {
			return
		}

		wait := c.NextWait(summary)
		if err != nil {
			wait = c.cfg.WaitAfterError
			summary.Error = err.Error()
			c.logger.Error("check cycle failed", "error", err, "retry_in", wait)
		} else {
			c.logger.Info("check cycle complete",
				"processed", summary.Processed,
				"skipped", summary.Skipped,
				"errors", summary.Errors,
				"images", summary.TotalImages,
				"successful", summary.SuccessfulImages,
				"next_wait", wait)
		}
		summary.NextWait = wait.String()

		next := time.Now().Add(wait)
		c.mu.Lock()
		c.cycles++
		c.lastCycle = &summary
		c.nextCycle = &next
		c.mu.Unlock()

		if err := fetch.Sleep(ctx, wait); err != nil {
			return
		}
	}
}

// NextWait picks the pause before the next cycle from the last cycle's results.
func (c *Checker) NextWait(s CycleSummary) time.Duration {
	switch {
	case float64(s.Errors) > float64(s.Processed)*0.6:
		return c.cfg.WaitHighErrors
	case s.Processed == 0:
		return c.cfg.WaitIdle
	case s.SuccessRate < 50:
		return c.cfg.WaitLowSuccess
	default:
		return c.cfg.WaitNormal
	}
}

// RunCycle walks every group once, processing candidates in priority order
// until MaxChaptersPerCycle chapters were processed. Skipped chapters do not
// count. A group that cannot be listed is logged and passed over.
func (c *Checker) RunCycle(ctx context.Context) (CycleSummary, error) {
	summary := CycleSummary{StartedAt: time.Now()}

	store := c.cfg.Processor.Store()
	groups, err := store.Groups(ctx)
	if err != nil {
		return c.finish(summary), err
	}

	for gi, group := range groups {
		if gi > 0 {
			if err := fetch.Sleep(ctx, c.cfg.DelayBetweenGroups); err != nil {
				return c.finish(summary), err
			}
		}

		queue, err := c.scan(ctx, group)
		if err != nil {
			if ctx.Err() != nil {
				return c.finish(summary), ctx.Err()
			}
			c.logger.Warn("failed to scan group", "group", group, "error", err)
			continue
		}
		c.logger.Debug("group scanned", "group", group, "chapters", queue.Len(),
			"candidates", queue.CountAtLeast(c.cfg.MinPriority))

		if err := c.drain(ctx, queue, &summary); err != nil {
			return c.finish(summary), err
		}
		if summary.Processed >= c.cfg.MaxChaptersPerCycle {
			c.logger.Info("cycle limit reached", "limit", c.cfg.MaxChaptersPerCycle)
			break
		}
	}
	return c.finish(summary), nil
}

func (c *Checker) drain(ctx context.Context, queue *PriorityQueue, summary *CycleSummary) error {
	for cand := queue.Pop(); cand != nil; cand = queue.Pop() {
		if summary.Processed >= c.cfg.MaxChaptersPerCycle {
			return nil
		}
		if cand.Priority < c.cfg.MinPriority {
			return nil
		}

		res, err := c.cfg.Processor.ProcessChapter(ctx, cand.Key, runlog.TriggerChecker)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrInFlight) || res.Skipped:
			summary.Skipped++
		case err != nil || !res.Success:
			summary.Errors++
		default:
			summary.Processed++
			summary.TotalImages += res.TotalImages
			summary.SuccessfulImages += res.SuccessfulImages
		}

		if summary.Processed < c.cfg.MaxChaptersPerCycle {
			delay := c.cfg.DelayBetweenChapters + c.cfg.Processor.jitter(c.cfg.ChapterJitter)
			if err := fetch.Sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Checker) finish(s CycleSummary) CycleSummary {
	if s.TotalImages > 0 {
		s.SuccessRate = float64(s.SuccessfulImages) / float64(s.TotalImages) * 100
	}
	s.FinishedAt = time.Now()
	return s
}

// scan lists a group and queues every chapter by priority.
func (c *Checker) scan(ctx context.Context, group string) (*PriorityQueue, error) {
	entries, err := c.cfg.Processor.Store().ListGroup(ctx, group)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	queue := NewPriorityQueue()
	for _, e := range entries {
		queue.Push(&Candidate{Key: e.Key, Record: e.Record, Priority: chapters.Priority(e.Record, now)})
	}
	return queue, nil
}

// NextCandidate scans every group and returns the highest-priority chapter
// at or above MinPriority that is not already in flight, or nil.
func (c *Checker) NextCandidate(ctx context.Context) (*Candidate, error) {
	groups, err := c.cfg.Processor.Store().Groups(ctx)
	if err != nil {
		return nil, err
	}

	busy := make(map[string]bool)
	for _, path := range c.cfg.Processor.InFlight() {
		busy[path] = true
	}

	var best *Candidate
	for _, group := range groups {
		queue, err := c.scan(ctx, group)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("failed to scan group", "group", group, "error", err)
			continue
		}
		for cand := queue.Pop(); cand != nil; cand = queue.Pop() {
			if cand.Priority < c.cfg.MinPriority {
				break
			}
			if busy[cand.Key.Path()] {
				continue
			}
			if best == nil || cand.Priority > best.Priority {
				best = cand
			}
			break
		}
	}
	return best, nil
}

// ProcessNext starts the best candidate in the background. It returns a nil
// candidate when nothing needs processing.
func (c *Checker) ProcessNext(ctx context.Context) (*Candidate, string, error) {
	cand, err := c.NextCandidate(ctx)
	if err != nil || cand == nil {
		return nil, "", err
	}
	runID, err := c.cfg.Processor.Dispatch(cand.Key, runlog.TriggerNext)
	if err != nil {
		return cand, "", err
	}
	c.logger.Info("dispatched next chapter", "run_id", runID, "path", cand.Key.Path(), "priority", cand.Priority)
	return cand, runID, nil
}
