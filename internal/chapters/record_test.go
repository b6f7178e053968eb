package chapters

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"pending_images", StatusPending},
		{"pending", StatusPending},
		{"processing", StatusProcessing},
		{"completed", StatusCompleted},
		{"partial", StatusPartial},
		{"failed", StatusFailed},
		{"failed_upload", StatusFailed},
		{"partially_failed", StatusFailed},
		{"error", StatusError},
		{" ERROR ", StatusError},
		{"", StatusUnknown},
		{"something_else", StatusUnknown},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.in); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecord_UnmarshalNormalizesStatus(t *testing.T) {
	var rec Record
	if err := json.Unmarshal([]byte(`{"url":"https://x","status":"failed_upload","retryCount":2}`), &rec); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if rec.Status != StatusFailed || rec.RetryCount != 2 {
		t.Errorf("unexpected record %+v", rec)
	}

	if err := json.Unmarshal([]byte(`{"url":"https://x","status":7}`), &rec); err != nil {
		t.Fatalf("non-string status should not fail decoding: %v", err)
	}
	if rec.Status != StatusUnknown {
		t.Errorf("expected unknown status, got %q", rec.Status)
	}
}

func TestKey(t *testing.T) {
	key := Key{Group: "ImgChapter_3", MangaID: "m-1", ChapterID: "c-10"}
	if key.Path() != "ImgChapter_3/m-1/chapters/c-10" {
		t.Errorf("Path() = %s", key.Path())
	}

	tests := []struct {
		name    string
		key     Key
		wantErr bool
	}{
		{"valid numbered group", key, false},
		{"valid plain group", Key{"ImgChapter", "m", "c"}, false},
		{"bad group", Key{"Chapters", "m", "c"}, true},
		{"zero group", Key{"ImgChapter_0", "m", "c"}, true},
		{"empty manga", Key{"ImgChapter_1", "", "c"}, true},
		{"dot in chapter", Key{"ImgChapter_1", "m", "c.1"}, true},
		{"slash in manga", Key{"ImgChapter_1", "a/b", "c"}, true},
		{"bracket", Key{"ImgChapter_1", "m", "c[0]"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.key.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Validate() error = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestPriority(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	daysAgo := func(d float64) int64 {
		return now.Add(-time.Duration(d * 24 * float64(time.Hour))).UnixMilli()
	}

	tests := []struct {
		name string
		rec  *Record
		want float64
	}{
		{"missing", nil, 40},
		{"pending", &Record{Status: StatusPending}, 100},
		{"error", &Record{Status: StatusError}, 80},
		{"partial", &Record{Status: StatusPartial}, 60},
		{"failed", &Record{Status: StatusFailed}, 50},
		{"no status", &Record{}, 40},
		{"processing", &Record{Status: StatusProcessing}, 0},
		{"completed without timestamp", &Record{Status: StatusCompleted}, 20},
		{"completed 5 days ago", &Record{Status: StatusCompleted, CompletedAt: daysAgo(5)}, 5},
		{"completed 90 days ago", &Record{Status: StatusCompleted, CompletedAt: daysAgo(90)}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Priority(tt.rec, now)
			if got < tt.want-0.001 || got > tt.want+0.001 {
				t.Errorf("Priority() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"minimal", `{"url":"https://azoramoon.com/series/x/chapter-1"}`, false},
		{"extra fields kept", `{"url":"https://x","uploader":"bot-2","views":10}`, false},
		{"missing url", `{"title":"Chapter 1"}`, true},
		{"empty url", `{"url":""}`, true},
		{"url not a string", `{"url":42}`, true},
		{"negative retry count", `{"url":"https://x","retryCount":-1}`, true},
		{"not an object", `["a"]`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("ValidateRecord() error = %v, want ErrInvalidRecord", err)
			}
		})
	}
}
