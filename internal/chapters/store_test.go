package chapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jackzampolin/imgbot/internal/firebase"
	"github.com/jackzampolin/imgbot/internal/testutil"
)

func newTestStore(t *testing.T) (*Store, *testutil.Firebase) {
	t.Helper()
	fake := testutil.NewFirebase(t, "secret")
	db := firebase.NewClient(firebase.Config{
		URL:        fake.URL,
		Secret:     "secret",
		RetryDelay: time.Millisecond,
	})
	return NewStore(db, 70), fake
}

var testKey = Key{Group: "ImgChapter_1", MangaID: "solo", ChapterID: "ch-1"}

func TestStore_Get(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, testKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on missing record error = %v, want ErrNotFound", err)
	}

	fake.Set(testKey.Path(), map[string]any{"url": "https://x/1", "title": "One", "status": "pending"})
	rec, err := store.Get(ctx, testKey)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Title != "One" || rec.Status != StatusPending {
		t.Errorf("Get() = %+v", rec)
	}
}

func TestStore_Claim(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	fake.Set(testKey.Path(), map[string]any{
		"url":        "https://x/1",
		"status":     "pending_images",
		"retryCount": 1,
		"uploader":   "scraper-7",
	})

	rec, err := store.Claim(ctx, testKey, "run-1", now)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if rec.Status != StatusProcessing || rec.RetryCount != 2 || rec.ClaimedBy != "run-1" {
		t.Errorf("Claim() = %+v", rec)
	}

	var stored map[string]any
	fake.GetJSON(testKey.Path(), &stored)
	if stored["status"] != "processing" || stored["claimedBy"] != "run-1" {
		t.Errorf("stored record = %v", stored)
	}
	if stored["uploader"] != "scraper-7" {
		t.Error("claim dropped a field it does not model")
	}
	if stored["processingStarted"] != float64(now.UnixMilli()) {
		t.Errorf("processingStarted = %v", stored["processingStarted"])
	}

	if _, err := store.Claim(ctx, testKey, "run-2", now); !errors.Is(err, ErrAlreadyProcessing) {
		t.Errorf("second Claim() error = %v, want ErrAlreadyProcessing", err)
	}
}

func TestStore_Claim_SkipStatesAndErrors(t *testing.T) {
	tests := []struct {
		name   string
		record any
		want   error
	}{
		{"missing", nil, ErrNotFound},
		{"completed", map[string]any{"url": "https://x", "status": "completed"}, ErrAlreadyCompleted},
		{"processing", map[string]any{"url": "https://x", "status": "processing"}, ErrAlreadyProcessing},
		{"invalid", map[string]any{"title": "no url"}, ErrInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, fake := newTestStore(t)
			if tt.record != nil {
				fake.Set(testKey.Path(), tt.record)
			}
			_, err := store.Claim(context.Background(), testKey, "run", time.Now())
			if !errors.Is(err, tt.want) {
				t.Errorf("Claim() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStore_Claim_Concurrent(t *testing.T) {
	store, fake := newTestStore(t)
	fake.Set(testKey.Path(), map[string]any{"url": "https://x/1", "status": "error"})

	const claimers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Claim(context.Background(), testKey, fmt.Sprintf("run-%d", i), time.Now())
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrClaimConflict) && !errors.Is(err, ErrAlreadyProcessing) {
				t.Errorf("unexpected claim error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("expected exactly one winning claim, got %d", winners)
	}
}

func TestStore_Complete(t *testing.T) {
	tests := []struct {
		name       string
		successes  int
		failures   int
		wantStatus Status
	}{
		{"all good", 4, 0, StatusCompleted},
		{"at threshold", 7, 3, StatusCompleted},
		{"below threshold", 1, 3, StatusPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, fake := newTestStore(t)
			fake.Set(testKey.Path(), map[string]any{
				"url":       "https://x/1",
				"status":    "processing",
				"claimedBy": "run-1",
				"error":     "old failure",
				"title":     "keep me",
			})

			var images []Image
			for i := 0; i < tt.successes+tt.failures; i++ {
				img := Image{Order: i + 1, URL: fmt.Sprintf("https://cdn/%d.jpg", i), Success: i < tt.successes, Status: ImageDirect}
				if !img.Success {
					img.Status = ImageFailed
				}
				images = append(images, img)
			}

			started := time.UnixMilli(1_700_000_000_000)
			now := started.Add(90 * time.Second)
			rec, err := store.Complete(context.Background(), testKey, Completion{Images: images, ProcessingStarted: started.UnixMilli()}, now)
			if err != nil {
				t.Fatalf("Complete() error = %v", err)
			}
			if rec.Status != tt.wantStatus {
				t.Errorf("Complete() status = %s, want %s", rec.Status, tt.wantStatus)
			}
			if rec.ProcessingTime != 90_000 {
				t.Errorf("ProcessingTime = %d", rec.ProcessingTime)
			}

			stored, err := store.Get(context.Background(), testKey)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if stored.Status != tt.wantStatus || stored.TotalImages != len(images) || stored.SuccessfulImages != tt.successes {
				t.Errorf("stored = %+v", stored)
			}
			if stored.ClaimedBy != "" || stored.Error != "" {
				t.Errorf("claim and error should be cleared, got %q / %q", stored.ClaimedBy, stored.Error)
			}
			if stored.Title != "keep me" || len(stored.Images) != len(images) {
				t.Errorf("unexpected stored record %+v", stored)
			}
		})
	}
}

func TestStore_Fail(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	// Missing records are not created.
	if err := store.Fail(ctx, testKey, errors.New("boom"), now); err != nil {
		t.Fatalf("Fail() on missing record error = %v", err)
	}
	if fake.Get(testKey.Path()) != nil {
		t.Fatal("Fail() created a record")
	}

	fake.Set(testKey.Path(), map[string]any{"url": "https://x/1", "status": "processing", "claimedBy": "run-1"})
	if err := store.Fail(ctx, testKey, errors.New("no images found"), now); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	rec, _ := store.Get(ctx, testKey)
	if rec.Status != StatusError || rec.Error != "no images found" || rec.LastError != now.UnixMilli() {
		t.Errorf("failed record = %+v", rec)
	}
	if rec.ClaimedBy != "" {
		t.Error("Fail() should release the claim")
	}
}

func TestStore_Groups(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	groups, err := store.Groups(ctx)
	if err != nil {
		t.Fatalf("Groups() error = %v", err)
	}
	if len(groups) != 1 || groups[0] != "ImgChapter_1" {
		t.Errorf("Groups() without stats = %v", groups)
	}

	fake.Set("System/chapter_stats", map[string]any{"currentGroup": 3, "totalChapters": 120})
	groups, _ = store.Groups(ctx)
	if len(groups) != 3 || groups[2] != "ImgChapter_3" {
		t.Errorf("Groups() = %v", groups)
	}
}

func TestStore_ListGroup(t *testing.T) {
	store, fake := newTestStore(t)

	fake.Set("ImgChapter_1", map[string]any{
		"created": 1700000000000,
		"type":    "images",
		"beta": map[string]any{
			"chapters": map[string]any{
				"c2": map[string]any{"url": "https://x/b2", "status": "error"},
				"c1": map[string]any{"url": "https://x/b1", "status": "completed"},
			},
		},
		"alpha": map[string]any{
			"chapters": map[string]any{
				"c1": map[string]any{"url": "https://x/a1", "status": "pending_images"},
				"bad": "not an object",
			},
		},
		"no-chapters": map[string]any{"title": "empty"},
	})

	entries, err := store.ListGroup(context.Background(), "ImgChapter_1")
	if err != nil {
		t.Fatalf("ListGroup() error = %v", err)
	}

	want := []string{"alpha/c1", "beta/c1", "beta/c2"}
	if len(entries) != len(want) {
		t.Fatalf("ListGroup() returned %d entries: %+v", len(entries), entries)
	}
	for i, e := range entries {
		if got := e.Key.MangaID + "/" + e.Key.ChapterID; got != want[i] {
			t.Errorf("entry %d = %s, want %s", i, got, want[i])
		}
		if e.Key.Group != "ImgChapter_1" {
			t.Errorf("entry %d group = %s", i, e.Key.Group)
		}
	}

	empty, err := store.ListGroup(context.Background(), "ImgChapter_2")
	if err != nil || len(empty) != 0 {
		t.Errorf("ListGroup(empty) = %v, %v", empty, err)
	}

	if _, err := store.ListGroup(context.Background(), "System"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("ListGroup(System) error = %v, want ErrInvalidKey", err)
	}
}

func TestChildren_ArrayForm(t *testing.T) {
	got, err := children([]byte(`[null,{"url":"https://x/1"},null,{"url":"https://x/3"}]`))
	if err != nil {
		t.Fatalf("children() error = %v", err)
	}
	if len(got) != 2 || got["1"] == nil || got["3"] == nil {
		t.Errorf("children() = %v", got)
	}
}

func TestStore_ImageStats(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)

	stats, err := store.ImageStats(ctx)
	if err != nil || stats.TotalImages != 0 {
		t.Fatalf("ImageStats() on empty db = %+v, %v", stats, err)
	}

	// Older writers stored the rate as a string.
	fake.Set("System/image_stats", map[string]any{
		"totalImages": 10, "successfulImages": 5, "totalChapters": 1, "successfulChapters": 1, "successRate": "50.00",
	})
	stats, err = store.ImageStats(ctx)
	if err != nil || stats.SuccessRate != 50 {
		t.Fatalf("ImageStats() = %+v, %v", stats, err)
	}

	updated, err := store.AddImageStats(ctx, 10, 10, now)
	if err != nil {
		t.Fatalf("AddImageStats() error = %v", err)
	}
	if updated.TotalImages != 20 || updated.SuccessfulImages != 15 || updated.TotalChapters != 2 || updated.SuccessfulChapters != 2 {
		t.Errorf("AddImageStats() = %+v", updated)
	}
	if updated.SuccessRate != 75 || updated.LastUpdate != now.UnixMilli() {
		t.Errorf("AddImageStats() rate/time = %v / %d", updated.SuccessRate, updated.LastUpdate)
	}

	updated, _ = store.AddImageStats(ctx, 0, 4, now)
	if updated.SuccessfulChapters != 2 || updated.TotalChapters != 3 {
		t.Errorf("a chapter without successes should not count as successful: %+v", updated)
	}
}

func TestStore_RetriesTransientReads(t *testing.T) {
	store, fake := newTestStore(t)
	fake.Set(testKey.Path(), map[string]any{"url": "https://x/1"})
	fake.FailNext(http.StatusServiceUnavailable, http.StatusBadGateway)

	if _, err := store.Get(context.Background(), testKey); err != nil {
		t.Errorf("Get() should recover from transient 5xx, got %v", err)
	}
}
