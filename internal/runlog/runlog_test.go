package runlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestStartFinishGet(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	clock := time.UnixMilli(1_700_000_000_000)
	l.now = func() time.Time { return clock }

	run, err := l.Start(ctx, Run{Trigger: TriggerHTTP, Group: "ImgChapter_1", MangaID: "solo", ChapterID: "ch-1"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if run.ID == "" || run.Status != StatusRunning || !run.StartedAt.Equal(clock) {
		t.Fatalf("Start() = %+v", run)
	}

	got, err := l.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusRunning || got.FinishedAt != nil || got.Trigger != TriggerHTTP {
		t.Errorf("Get() running = %+v", got)
	}

	clock = clock.Add(42 * time.Second)
	if err := l.Finish(ctx, run.ID, Outcome{Status: StatusPartial, TotalImages: 10, SuccessfulImages: 4}); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	got, err = l.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusPartial || got.TotalImages != 10 || got.SuccessfulImages != 4 {
		t.Errorf("Get() finished = %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(clock) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, clock)
	}
	if got.Group != "ImgChapter_1" || got.MangaID != "solo" || got.ChapterID != "ch-1" {
		t.Errorf("key fields = %+v", got)
	}
}

func TestFinish_Errors(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	if err := l.Finish(ctx, "missing", Outcome{Status: StatusFailed}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Finish(missing) error = %v, want ErrNotFound", err)
	}

	run, _ := l.Start(ctx, Run{Trigger: TriggerNext, Group: "ImgChapter_1", MangaID: "m", ChapterID: "c"})
	for _, status := range []Status{"", StatusRunning} {
		if err := l.Finish(ctx, run.ID, Outcome{Status: status}); err == nil {
			t.Errorf("Finish(%q) should fail", status)
		}
	}
}

func TestGet_NotFound(t *testing.T) {
	l := openTestLog(t)
	if _, err := l.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	l := openTestLog(t)
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	seed := []struct {
		manga  string
		status Status
	}{
		{"alpha", StatusCompleted},
		{"alpha", StatusFailed},
		{"beta", StatusCompleted},
		{"beta", StatusSkipped},
		{"alpha", StatusCompleted},
	}
	var ids []string
	for i, s := range seed {
		run, err := l.Start(ctx, Run{
			Trigger:   TriggerChecker,
			Group:     "ImgChapter_1",
			MangaID:   s.manga,
			ChapterID: "c",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := l.Finish(ctx, run.ID, Outcome{Status: s.status}); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
		ids = append(ids, run.ID)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{ids[4], ids[3], ids[2], ids[1], ids[0]}},
		{"by status", Filter{Status: StatusCompleted}, []string{ids[4], ids[2], ids[0]}},
		{"by manga", Filter{MangaID: "beta"}, []string{ids[3], ids[2]}},
		{"both", Filter{Status: StatusCompleted, MangaID: "alpha"}, []string{ids[4], ids[0]}},
		{"limit", Filter{Limit: 2}, []string{ids[4], ids[3]}},
		{"no match", Filter{MangaID: "gamma"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := l.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(runs) != len(tt.want) {
				t.Fatalf("List() returned %d runs, want %d", len(runs), len(tt.want))
			}
			for i, run := range runs {
				if run.ID != tt.want[i] {
					t.Errorf("run %d = %s, want %s", i, run.ID, tt.want[i])
				}
			}
		})
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	run, err := l.Start(context.Background(), Run{ID: "fixed-id", Trigger: TriggerHTTP, Group: "ImgChapter_1", MangaID: "m", ChapterID: "c"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	l.Close()

	l, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer l.Close()
	if _, err := l.Get(context.Background(), run.ID); err != nil {
		t.Errorf("run lost across reopen: %v", err)
	}
}
