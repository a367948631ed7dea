package httpfetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/Vodeneev/raceodds/internal/pkg/models"
)

const page = `<html><body><a href="/horse-racing/flemington/race-5-123456">R5</a></body></html>`

func encode(t *testing.T, enc string) []byte {
	t.Helper()
	var buf bytes.Buffer
	switch enc {
	case "gzip":
		w := gzip.NewWriter(&buf)
		w.Write([]byte(page))
		w.Close()
	case "br":
		w := brotli.NewWriter(&buf)
		w.Write([]byte(page))
		w.Close()
	case "zstd":
		w, err := zstd.NewWriter(&buf)
		if err != nil {
			t.Fatalf("zstd writer: %v", err)
		}
		w.Write([]byte(page))
		w.Close()
	case "deflate":
		w := zlib.NewWriter(&buf)
		w.Write([]byte(page))
		w.Close()
	case "deflate-raw":
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			t.Fatalf("flate writer: %v", err)
		}
		w.Write([]byte(page))
		w.Close()
	default:
		buf.WriteString(page)
	}
	return buf.Bytes()
}

func TestClient_GetDecodesContentEncoding(t *testing.T) {
	for _, enc := range []string{"", "gzip", "br", "zstd", "deflate", "deflate-raw"} {
		t.Run("encoding="+enc, func(t *testing.T) {
			body := encode(t, enc)
			header := strings.TrimSuffix(enc, "-raw")
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("User-Agent"); got != "raceodds-test" {
					t.Errorf("User-Agent = %q", got)
				}
				if header != "" {
					w.Header().Set("Content-Encoding", header)
				}
				w.Write(body)
			}))
			defer srv.Close()

			got, err := NewClient(5*time.Second, "raceodds-test").Get(context.Background(), srv.URL)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != page {
				t.Errorf("Get body = %q, want %q", got, page)
			}
		})
	}
}

func TestClient_GetNon200IsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(5*time.Second, "ua").Get(context.Background(), srv.URL)
	if !errors.Is(err, models.ErrResourceUnavailable) {
		t.Fatalf("Get err = %v, want ErrResourceUnavailable", err)
	}
}

func TestClient_GetHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(5*time.Second, "ua").Get(ctx, srv.URL)
	if !errors.Is(err, models.ErrResourceUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Get err = %v, want ErrResourceUnavailable wrapping DeadlineExceeded", err)
	}
}
