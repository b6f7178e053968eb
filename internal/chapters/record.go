// Package chapters models chapter records in the document store and the
// claim/complete/fail lifecycle the processor drives them through.
package chapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Status is the processing state of a chapter record.
type Status string

const (
	StatusUnknown    Status = ""
	StatusPending    Status = "pending_images"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusPartial    Status = "partial"
	StatusFailed     Status = "failed"
	StatusError      Status = "error"
)

// ParseStatus normalizes the spellings found in stored records.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending_images", "pending":
		return StatusPending
	case "processing":
		return StatusProcessing
	case "completed":
		return StatusCompleted
	case "partial":
		return StatusPartial
	case "failed", "failed_upload", "partially_failed":
		return StatusFailed
	case "error":
		return StatusError
	default:
		return StatusUnknown
	}
}

// UnmarshalJSON accepts any stored spelling; non-strings decode as unknown.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = StatusUnknown
		return nil
	}
	*s = ParseStatus(raw)
	return nil
}

// Skip reports whether ProcessChapter leaves a record in this state alone.
func (s Status) Skip() bool {
	return s == StatusCompleted || s == StatusProcessing
}

// ImageStatus records how an image was resolved.
type ImageStatus string

const (
	ImageDirect   ImageStatus = "direct_link"
	ImageUploaded ImageStatus = "uploaded"
	ImageFailed   ImageStatus = "failed_fetch"
)

// Image is one entry of a record's images list.
type Image struct {
	Order       int         `json:"order"`
	URL         string      `json:"url"`
	OriginalURL string      `json:"originalUrl,omitempty"`
	UploadedURL string      `json:"uploadedUrl,omitempty"`
	Success     bool        `json:"success"`
	Status      ImageStatus `json:"status"`
	Error       string      `json:"error,omitempty"`
	ProxyUsed   string      `json:"proxyUsed,omitempty"`
	Selector    string      `json:"selector,omitempty"`
	Alt         string      `json:"alt,omitempty"`
	FetchedAt   int64       `json:"fetchedAt"`
}

// Record is a chapter document. Timestamps are unix milliseconds.
// Fields written by other producers and not listed here are preserved by
// the store's writes.
type Record struct {
	Title             string  `json:"title,omitempty"`
	URL               string  `json:"url"`
	Status            Status  `json:"status,omitempty"`
	Images            []Image `json:"images,omitempty"`
	TotalImages       int     `json:"totalImages,omitempty"`
	SuccessfulImages  int     `json:"successfulImages,omitempty"`
	FailedImages      int     `json:"failedImages,omitempty"`
	SuccessRate       float64 `json:"successRate,omitempty"`
	RetryCount        int     `json:"retryCount,omitempty"`
	ProcessingStarted int64   `json:"processingStarted,omitempty"`
	CompletedAt       int64   `json:"completedAt,omitempty"`
	FailedAt          int64   `json:"failedAt,omitempty"`
	LastUpdated       int64   `json:"lastUpdated,omitempty"`
	LastError         int64   `json:"lastError,omitempty"`
	Error             string  `json:"error,omitempty"`
	ProcessingTime    int64   `json:"processingTime,omitempty"`
	ClaimedBy         string  `json:"claimedBy,omitempty"`
}

// ErrInvalidKey is returned for keys that cannot address a chapter.
var ErrInvalidKey = errors.New("invalid chapter key")

var groupPattern = regexp.MustCompile(`^ImgChapter(_[1-9][0-9]*)?$`)

// Key addresses a chapter record.
type Key struct {
	Group     string `json:"group"`
	MangaID   string `json:"mangaId"`
	ChapterID string `json:"chapterId"`
}

// Path is the record's location in the database.
func (k Key) Path() string {
	return k.Group + "/" + k.MangaID + "/chapters/" + k.ChapterID
}

func (k Key) String() string {
	return k.Path()
}

// Validate checks the group name and both IDs.
func (k Key) Validate() error {
	if err := ValidateGroup(k.Group); err != nil {
		return err
	}
	if err := ValidateID(k.MangaID); err != nil {
		return fmt.Errorf("manga id: %w", err)
	}
	if err := ValidateID(k.ChapterID); err != nil {
		return fmt.Errorf("chapter id: %w", err)
	}
	return nil
}

// ValidateGroup accepts ImgChapter and ImgChapter_<n>.
func ValidateGroup(group string) error {
	if !groupPattern.MatchString(group) {
		return fmt.Errorf("%w: group %q must look like ImgChapter_1", ErrInvalidKey, group)
	}
	return nil
}

// ValidateID rejects empty IDs and characters Firebase forbids in keys.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidKey)
	}
	if strings.ContainsAny(id, "/.#$[]") {
		return fmt.Errorf("%w: %q contains a forbidden character", ErrInvalidKey, id)
	}
	return nil
}

// GroupName returns the name of the n-th chapter group.
func GroupName(n int) string {
	return fmt.Sprintf("ImgChapter_%d", n)
}

// Priority scores a record for the checker; higher goes first.
// A nil record scores like one without a status.
func Priority(rec *Record, now time.Time) float64 {
	if rec == nil {
		return 40
	}
	switch rec.Status {
	case StatusPending:
		return 100
	case StatusError:
		return 80
	case StatusPartial:
		return 60
	case StatusFailed:
		return 50
	case StatusProcessing:
		return 0
	case StatusCompleted:
		if rec.CompletedAt <= 0 {
			return 20
		}
		days := now.Sub(time.UnixMilli(rec.CompletedAt)).Hours() / 24
		if days < 0 {
			days = 0
		}
		if days > 20 {
			return 20
		}
		return days
	default:
		return 40
	}
}
