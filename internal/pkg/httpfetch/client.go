// Package httpfetch downloads server-rendered pages with browser-like headers.
package httpfetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

type Client struct {
	httpClient *http.Client
	userAgent  string
}

func NewClient(timeout time.Duration, userAgent string) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = 15 * time.Second

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		userAgent:  userAgent,
	}
}

// Get fetches urlStr and returns the decoded body. Transport failures and
// non-200 responses wrap models.ErrResourceUnavailable.
func (c *Client) Get(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-AU,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("sec-fetch-dest", "document")
	req.Header.Set("sec-fetch-mode", "navigate")
	req.Header.Set("sec-fetch-site", "none")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %w", models.ErrResourceUnavailable, urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		preview := string(b)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		slog.Warn("Page request failed", "url", urlStr, "status", resp.StatusCode, "body_preview", preview)
		return nil, fmt.Errorf("%w: %s: unexpected status %d", models.ErrResourceUnavailable, urlStr, resp.StatusCode)
	}

	body, err := readBodyDecode(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", models.ErrResourceUnavailable, urlStr, err)
	}
	return body, nil
}

// readBodyDecode reads response body and decompresses it based on Content-Encoding (gzip, deflate, br, zstd).
func readBodyDecode(resp *http.Response) ([]byte, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch {
	case enc == "":
		return io.ReadAll(resp.Body)
	case strings.Contains(enc, "br"):
		return io.ReadAll(brotli.NewReader(resp.Body))
	case strings.Contains(enc, "zstd"):
		r, err := zstd.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case strings.Contains(enc, "gzip"):
		r, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer r.Close()
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read gzip body: %w", err)
		}
		return b, nil
	case strings.Contains(enc, "deflate"):
		return readDeflate(resp.Body)
	default:
		return io.ReadAll(resp.Body)
	}
}

// readDeflate decodes a deflate body. Servers send either the zlib-wrapped
// stream the encoding names or a bare deflate stream.
func readDeflate(body io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read deflate body: %w", err)
	}
	if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
		defer zr.Close()
		b, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("read zlib body: %w", err)
		}
		return b, nil
	}
	fr := flate.NewReader(bytes.NewReader(raw))
	defer fr.Close()
	b, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("read deflate body: %w", err)
	}
	return b, nil
}
