package chapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackzampolin/imgbot/internal/firebase"
)

// Store errors.
var (
	ErrNotFound          = errors.New("chapter not found")
	ErrAlreadyProcessing = errors.New("chapter is already processing")
	ErrAlreadyCompleted  = errors.New("chapter is already completed")
	ErrClaimConflict     = errors.New("chapter was claimed concurrently")
)

// DefaultCompletionThreshold is the success rate (percent) at which a chapter counts as completed.
const DefaultCompletionThreshold = 70.0

const (
	chapterStatsPath = "System/chapter_stats"
	imageStatsPath   = "System/image_stats"
	statsWriteTries  = 3
)

// Entry is a listed chapter.
type Entry struct {
	Key    Key     `json:"key"`
	Record *Record `json:"record"`
}

// Completion is what the processor hands back for a claimed chapter.
type Completion struct {
	Images            []Image
	ProcessingStarted int64 // from the claim, unix ms
}

// Store reads and writes chapter records.
type Store struct {
	db        *firebase.Client
	threshold float64
}

// NewStore creates a store. A threshold <= 0 uses DefaultCompletionThreshold.
func NewStore(db *firebase.Client, threshold float64) *Store {
	if threshold <= 0 {
		threshold = DefaultCompletionThreshold
	}
	return &Store{db: db, threshold: threshold}
}

// Configured reports whether the underlying database client can be used.
func (s *Store) Configured() bool {
	return s.db != nil && s.db.Configured()
}

// DB returns the underlying client.
func (s *Store) DB() *firebase.Client {
	return s.db
}

// Get reads one record.
func (s *Store) Get(ctx context.Context, key Key) (*Record, error) {
	raw, err := s.db.ReadRaw(ctx, key.Path())
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key.Path())
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return &rec, nil
}

// Claim marks a record as processing by runID with a conditional write, so
// only one claimer wins. Fields the store does not model are kept.
func (s *Store) Claim(ctx context.Context, key Key, runID string, now time.Time) (*Record, error) {
	path := key.Path()
	raw, etag, err := s.db.ReadVersioned(ctx, path)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err := ValidateRecord(raw); err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	switch rec.Status {
	case StatusProcessing:
		return &rec, ErrAlreadyProcessing
	case StatusCompleted:
		return &rec, ErrAlreadyCompleted
	}

	doc, err := decodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	ms := now.UnixMilli()
	rec.Status = StatusProcessing
	rec.ProcessingStarted = ms
	rec.LastUpdated = ms
	rec.ClaimedBy = runID
	rec.RetryCount++

	doc["status"] = string(StatusProcessing)
	doc["processingStarted"] = ms
	doc["lastUpdated"] = ms
	doc["claimedBy"] = runID
	doc["retryCount"] = rec.RetryCount

	if err := s.db.WriteIfMatch(ctx, path, doc, etag); err != nil {
		if errors.Is(err, firebase.ErrPreconditionFailed) {
			return nil, fmt.Errorf("%w: %s", ErrClaimConflict, path)
		}
		return nil, fmt.Errorf("failed to claim %s: %w", path, err)
	}
	return &rec, nil
}

// Complete writes the processing outcome. The status is completed when the
// success rate reaches the threshold and partial otherwise.
func (s *Store) Complete(ctx context.Context, key Key, c Completion, now time.Time) (*Record, error) {
	total := len(c.Images)
	successful := 0
	for _, img := range c.Images {
		if img.Success {
			successful++
		}
	}
	rate := 0.0
	if total > 0 {
		rate = float64(successful) / float64(total) * 100
	}
	status := StatusPartial
	if rate >= s.threshold {
		status = StatusCompleted
	}

	ms := now.UnixMilli()
	started := c.ProcessingStarted
	if started <= 0 {
		started = ms
	}

	rec := &Record{
		Status:            status,
		Images:            c.Images,
		TotalImages:       total,
		SuccessfulImages:  successful,
		FailedImages:      total - successful,
		SuccessRate:       rate,
		CompletedAt:       ms,
		LastUpdated:       ms,
		ProcessingStarted: started,
		ProcessingTime:    ms - started,
	}

	// null removes the child: the claim and any earlier error are cleared.
	err := s.db.Update(ctx, key.Path(), map[string]any{
		"images":           c.Images,
		"totalImages":      total,
		"successfulImages": successful,
		"failedImages":     total - successful,
		"successRate":      round2(rate),
		"status":           string(status),
		"completedAt":      ms,
		"lastUpdated":      ms,
		"processingTime":   ms - started,
		"retryCount":       0,
		"claimedBy":        nil,
		"error":            nil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete %s: %w", key.Path(), err)
	}
	return rec, nil
}

// Fail marks an existing record as errored. A missing record is left alone.
func (s *Store) Fail(ctx context.Context, key Key, cause error, now time.Time) error {
	raw, err := s.db.ReadRaw(ctx, key.Path())
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}

	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	ms := now.UnixMilli()
	if err := s.db.Update(ctx, key.Path(), map[string]any{
		"status":      string(StatusError),
		"error":       msg,
		"lastError":   ms,
		"lastUpdated": ms,
		"claimedBy":   nil,
	}); err != nil {
		return fmt.Errorf("failed to mark %s as error: %w", key.Path(), err)
	}
	return nil
}

// Groups returns ImgChapter_1..N where N is System/chapter_stats.currentGroup.
func (s *Store) Groups(ctx context.Context) ([]string, error) {
	var stats struct {
		CurrentGroup float64 `json:"currentGroup"`
	}
	if _, err := s.db.Read(ctx, chapterStatsPath, &stats); err != nil {
		return nil, fmt.Errorf("failed to read chapter stats: %w", err)
	}
	n := int(stats.CurrentGroup)
	if n < 1 {
		n = 1
	}
	groups := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		groups = append(groups, GroupName(i))
	}
	return groups, nil
}

// ListGroup returns every chapter of a group, sorted by manga then chapter ID.
// Bookkeeping keys and malformed entries are skipped.
func (s *Store) ListGroup(ctx context.Context, group string) ([]Entry, error) {
	if err := ValidateGroup(group); err != nil {
		return nil, err
	}
	raw, err := s.db.ReadRaw(ctx, group)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	mangas, err := children(raw)
	if err != nil {
		return nil, fmt.Errorf("group %s is not an object: %w", group, err)
	}

	var entries []Entry
	for mangaID, mangaRaw := range mangas {
		if mangaID == "created" || mangaID == "type" {
			continue
		}
		var manga struct {
			Chapters json.RawMessage `json:"chapters"`
		}
		if err := json.Unmarshal(mangaRaw, &manga); err != nil || len(manga.Chapters) == 0 {
			continue
		}
		chapterList, err := children(manga.Chapters)
		if err != nil {
			continue
		}
		for chapterID, chapterRaw := range chapterList {
			var rec Record
			if err := json.Unmarshal(chapterRaw, &rec); err != nil {
				continue
			}
			entries = append(entries, Entry{
				Key:    Key{Group: group, MangaID: mangaID, ChapterID: chapterID},
				Record: &rec,
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key.MangaID != entries[j].Key.MangaID {
			return entries[i].Key.MangaID < entries[j].Key.MangaID
		}
		return entries[i].Key.ChapterID < entries[j].Key.ChapterID
	})
	return entries, nil
}

// ChapterStats returns System/chapter_stats as stored.
func (s *Store) ChapterStats(ctx context.Context) (map[string]any, error) {
	stats := map[string]any{}
	if _, err := s.db.Read(ctx, chapterStatsPath, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// ImageStats are the global image counters.
type ImageStats struct {
	TotalImages        int64   `json:"totalImages"`
	SuccessfulImages   int64   `json:"successfulImages"`
	TotalChapters      int64   `json:"totalChapters"`
	SuccessfulChapters int64   `json:"successfulChapters"`
	SuccessRate        Percent `json:"successRate"`
	LastUpdate         int64   `json:"lastUpdate"`
}

// ImageStats returns System/image_stats, zero valued when absent.
func (s *Store) ImageStats(ctx context.Context) (*ImageStats, error) {
	var stats ImageStats
	if _, err := s.db.Read(ctx, imageStatsPath, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// AddImageStats adds one processed chapter to the global counters.
// The read-modify-write is conditional and retried on conflict.
func (s *Store) AddImageStats(ctx context.Context, successful, total int, now time.Time) (*ImageStats, error) {
	for try := 0; try < statsWriteTries; try++ {
		raw, etag, err := s.db.ReadVersioned(ctx, imageStatsPath)
		if err != nil {
			return nil, err
		}

		var stats ImageStats
		if raw != nil {
			if err := json.Unmarshal(raw, &stats); err != nil {
				return nil, fmt.Errorf("failed to decode image stats: %w", err)
			}
		}

		stats.TotalImages += int64(total)
		stats.SuccessfulImages += int64(successful)
		stats.TotalChapters++
		if successful > 0 {
			stats.SuccessfulChapters++
		}
		stats.SuccessRate = 0
		if stats.TotalImages > 0 {
			stats.SuccessRate = Percent(round2(float64(stats.SuccessfulImages) / float64(stats.TotalImages) * 100))
		}
		stats.LastUpdate = now.UnixMilli()

		if etag == "" {
			if err := s.db.Write(ctx, imageStatsPath, stats); err != nil {
				return nil, err
			}
			return &stats, nil
		}

		err = s.db.WriteIfMatch(ctx, imageStatsPath, stats, etag)
		if err == nil {
			return &stats, nil
		}
		if !errors.Is(err, firebase.ErrPreconditionFailed) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to update image stats after %d conflicting writes", statsWriteTries)
}

// Percent decodes both numbers and numeric strings; older writers stored
// the success rate as a formatted string.
type Percent float64

// UnmarshalJSON implements json.Unmarshaler.
func (p *Percent) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*p = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*p = 0
		return nil
	}
	*p = Percent(f)
	return nil
}

// children decodes a node's children. Firebase returns objects whose keys
// are small integers as arrays; those are mapped back to their indexes.
func children(raw json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		out := make(map[string]json.RawMessage, len(list))
		for i, item := range list {
			if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
				continue
			}
			out[fmt.Sprint(i)] = item
		}
		return out, nil
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, err
	}
	for k, v := range out {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			delete(out, k)
		}
	}
	return out, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
