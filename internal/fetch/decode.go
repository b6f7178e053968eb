package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// ErrBodyTooLarge is returned when a response exceeds the body cap.
var ErrBodyTooLarge = errors.New("response body too large")

// readBody decodes the response according to Content-Encoding and reads at
// most limit bytes. Proxies often pass the origin's encoding through, so
// gzip is also detected by its magic bytes.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader, closeFn, err := decoder(resp)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}

func decoder(resp *http.Response) (io.Reader, func(), error) {
	noop := func() {}
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))

	switch encoding {
	case "br":
		return brotli.NewReader(resp.Body), noop, nil
	case "deflate":
		fl := flate.NewReader(resp.Body)
		return fl, func() { fl.Close() }, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, noop, fmt.Errorf("gzip decode: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	}

	// Undeclared gzip: peek at the magic bytes.
	buf := make([]byte, 2)
	n, err := io.ReadFull(resp.Body, buf)
	prefix := io.MultiReader(bytes.NewReader(buf[:n]), resp.Body)
	if err == nil && buf[0] == 0x1f && buf[1] == 0x8b {
		gz, err := gzip.NewReader(prefix)
		if err != nil {
			return nil, noop, fmt.Errorf("gzip decode: %w", err)
		}
		return gz, func() { gz.Close() }, nil
	}
	return prefix, noop, nil
}
