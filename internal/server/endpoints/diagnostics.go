package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/imgbot/internal/api"
	"github.com/jackzampolin/imgbot/internal/svcctx"
	"github.com/jackzampolin/imgbot/internal/upload"
)

// SampleImageURL is uploaded by /test-imgbb when no url is given.
const SampleImageURL = "https://www.google.com/images/branding/googlelogo/2x/googlelogo_color_272x92dp.png"

const (
	testProxyAttempts = 2
	previewLength     = 500
)

// TestImgbbResponse reports a trial upload.
type TestImgbbResponse struct {
	Envelope `yaml:",inline"`
	Result   upload.Result `json:"result"`
}

// TestImgbbEndpoint handles GET /test-imgbb.
type TestImgbbEndpoint struct{}

func (e *TestImgbbEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/test-imgbb", e.handler
}

func (e *TestImgbbEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Test the image host
//	@Description	Upload one image to verify the upload key
//	@Tags			diagnostics
//	@Produce		json
//	@Param			url	query		string	false	"Image to upload"
//	@Success		200	{object}	TestImgbbResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		502	{object}	TestImgbbResponse
//	@Router			/test-imgbb [get]
func (e *TestImgbbEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	uploader := svcctx.UploaderFrom(r.Context())
	if uploader == nil {
		writeError(w, http.StatusServiceUnavailable, "uploader not initialized")
		return
	}
	if !uploader.Enabled() {
		writeError(w, http.StatusBadRequest, "imgbb api key is not configured")
		return
	}

	target := r.URL.Query().Get("url")
	if target == "" {
		target = SampleImageURL
	}

	res, err := uploader.UploadURL(r.Context(), target)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, TestImgbbResponse{
			Envelope: Envelope{Error: err.Error()},
			Result:   res,
		})
		return
	}
	writeJSON(w, http.StatusOK, TestImgbbResponse{
		Envelope: Envelope{Success: true, Message: "upload succeeded"},
		Result:   res,
	})
}

func (e *TestImgbbEndpoint) Command(getServerURL func() string) *cobra.Command {
	var imageURL string
	cmd := &cobra.Command{
		Use:   "test-imgbb",
		Short: "Upload a sample image to verify the upload key",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/test-imgbb"
			if imageURL != "" {
				path += "?url=" + url.QueryEscape(imageURL)
			}
			var resp TestImgbbResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&imageURL, "url", "", "Image URL to upload (default: a sample image)")
	return cmd
}

// TestProxyResponse reports a trial page fetch.
type TestProxyResponse struct {
	Envelope `yaml:",inline"`
	URL      string `json:"url"`
	Length   int    `json:"length"`
	Preview  string `json:"preview"`
}

// TestProxyEndpoint handles GET /test-proxy.
type TestProxyEndpoint struct{}

func (e *TestProxyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/test-proxy", e.handler
}

func (e *TestProxyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Test the proxy rotation
//	@Description	Fetch a page through the proxies with two attempts
//	@Tags			diagnostics
//	@Produce		json
//	@Param			url	query		string	true	"Page to fetch"
//	@Success		200	{object}	TestProxyResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/test-proxy [get]
func (e *TestProxyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	if u, err := url.Parse(target); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid url %q", target))
		return
	}

	fetcher := svcctx.FetcherFrom(r.Context())
	if fetcher == nil {
		writeError(w, http.StatusServiceUnavailable, "fetcher not initialized")
		return
	}

	html, err := fetcher.FetchPage(r.Context(), target, testProxyAttempts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, TestProxyResponse{
		Envelope: Envelope{Success: true},
		URL:      target,
		Length:   len(html),
		Preview:  preview(html, previewLength),
	})
}

// preview returns the first n bytes of s, cut back to a rune boundary,
// followed by "...". Invalid bytes before the cut are kept.
func preview(s string, n int) string {
	if len(s) > n {
		i := n
		for back := 0; i > 0 && back < utf8.UTFMax && !utf8.RuneStart(s[i]); back++ {
			i--
		}
		if !utf8.RuneStart(s[i]) {
			i = n
		}
		s = s[:i]
	}
	return s + "..."
}

func (e *TestProxyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "test-proxy <url>",
		Short: "Fetch a page through the proxy rotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp TestProxyResponse
			if err := client.Get(cmd.Context(), "/test-proxy?url="+url.QueryEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
