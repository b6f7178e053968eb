package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestUploader_Disabled(t *testing.T) {
	var calls atomic.Int32
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer host.Close()

	u := New(Config{
		Endpoint: host.URL,
		Download: func(context.Context, string) ([]byte, error) {
			calls.Add(1)
			return nil, nil
		},
	})

	if u.Enabled() {
		t.Fatal("uploader without key should be disabled")
	}

	res := u.Upload(context.Background(), "https://cdn.test/1.jpg")
	if res.Uploaded || res.URL != "https://cdn.test/1.jpg" || res.Error != "" {
		t.Errorf("Upload() = %+v", res)
	}
	if _, err := u.UploadURL(context.Background(), "https://cdn.test/1.jpg"); !errors.Is(err, ErrDisabled) {
		t.Errorf("UploadURL() error = %v, want ErrDisabled", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no network calls, got %d", calls.Load())
	}
}

func TestUploader_Upload(t *testing.T) {
	img := []byte("fake-jpeg-bytes")

	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.PostForm.Get("key") != "k1" {
			t.Errorf("unexpected key %q", r.PostForm.Get("key"))
		}
		if r.PostForm.Get("image") != base64.StdEncoding.EncodeToString(img) {
			t.Errorf("image was not base64 encoded bytes")
		}
		w.Write([]byte(`{"success":true,"status":200,"data":{"url":"https://i.ibb.co/abc/1.jpg"}}`))
	}))
	defer host.Close()

	u := New(Config{
		Endpoint: host.URL,
		APIKey:   "k1",
		Download: func(_ context.Context, url string) ([]byte, error) {
			return img, nil
		},
	})

	res := u.Upload(context.Background(), "https://cdn.test/1.jpg")
	if !res.Uploaded || res.URL != "https://i.ibb.co/abc/1.jpg" || res.OriginalURL != "https://cdn.test/1.jpg" {
		t.Errorf("Upload() = %+v", res)
	}
}

func TestUploader_Upload_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		download error
		wantErr  string
	}{
		{"rejected", http.StatusBadRequest, `{"status_code":400,"error":{"message":"Invalid API v1 key."}}`, nil, "upload rejected: Invalid API v1 key."},
		{"garbage", http.StatusBadGateway, `<html>bad gateway</html>`, nil, "failed to decode upload response (status 502)"},
		{"download", http.StatusOK, ``, errors.New("status 404"), "failed to download image: status 404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer host.Close()

			u := New(Config{
				Endpoint: host.URL,
				APIKey:   "k",
				Download: func(context.Context, string) ([]byte, error) {
					return []byte("x"), tt.download
				},
			})

			res := u.Upload(context.Background(), "https://cdn.test/1.jpg")
			if res.Uploaded {
				t.Fatal("Upload() should fail")
			}
			if res.URL != "https://cdn.test/1.jpg" {
				t.Errorf("failed upload should keep the original URL, got %s", res.URL)
			}
			if len(res.Error) < len(tt.wantErr) || res.Error[:len(tt.wantErr)] != tt.wantErr {
				t.Errorf("Upload() error = %q, want prefix %q", res.Error, tt.wantErr)
			}
		})
	}
}

func TestUploader_UploadURL(t *testing.T) {
	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("image") != "https://cdn.test/sample.png" {
			t.Errorf("expected the URL itself, got %q", r.PostForm.Get("image"))
		}
		w.Write([]byte(`{"success":true,"data":{"url":"https://i.ibb.co/x/sample.png"}}`))
	}))
	defer host.Close()

	u := New(Config{Endpoint: host.URL, APIKey: "k"})
	res, err := u.UploadURL(context.Background(), "https://cdn.test/sample.png")
	if err != nil {
		t.Fatalf("UploadURL() error = %v", err)
	}
	if res.URL != "https://i.ibb.co/x/sample.png" {
		t.Errorf("UploadURL() = %+v", res)
	}
}

func TestUploader_DefaultDownload(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pixels"))
	}))
	defer origin.Close()

	host := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("image") != base64.StdEncoding.EncodeToString([]byte("pixels")) {
			t.Errorf("unexpected image payload")
		}
		w.Write([]byte(`{"success":true,"data":{"url":"https://i.ibb.co/y.jpg"}}`))
	}))
	defer host.Close()

	u := New(Config{Endpoint: host.URL, APIKey: "k"})
	if res := u.Upload(context.Background(), origin.URL+"/y.jpg"); !res.Uploaded {
		t.Errorf("Upload() = %+v", res)
	}
}

func TestUploader_SetKey(t *testing.T) {
	u := New(Config{})
	u.SetKey("  abc ")
	if !u.Enabled() {
		t.Error("SetKey should enable uploads")
	}
	u.SetKey("")
	if u.Enabled() {
		t.Error("empty key should disable uploads")
	}
}
