package httpx

import (
	"compress/gzip"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// CompressionConfig holds configuration for the compression middleware.
type CompressionConfig struct {
	Level   int // gzip level 1-9; 0 selects gzip.DefaultCompression
	MinSize int // bodies shorter than this are sent uncompressed; 0 compresses everything
	Logger  *slog.Logger
}

var compressibleTypes = map[string]bool{ //nolint:gochecknoglobals // read-only lookup
	"application/json":       true,
	"application/javascript": true,
	"image/svg+xml":          true,
	"text/css":               true,
	"text/html":              true,
	"text/plain":             true,
}

// Compression returns a middleware that gzips compressible responses for clients that accept it.
// HEAD requests, 1xx/204/304 responses and responses that already carry a Content-Encoding pass through.
func Compression(cfg CompressionConfig) func(http.Handler) http.Handler {
	level := cfg.Level
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pool := &sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, level)
		return w
	}}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Accept-Encoding")

			gw := &gzipResponseWriter{ResponseWriter: w, pool: pool, minSize: cfg.MinSize}
			next.ServeHTTP(gw, r)
			if err := gw.finish(); err != nil {
				logger.ErrorContext(r.Context(), "closing gzip writer failed", "error", err)
			}
		})
	}
}

// acceptsGzip checks if the client accepts gzip encoding, respecting q=0.
func acceptsGzip(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(name), "gzip") {
			continue
		}
		if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if v, err := strconv.ParseFloat(q, 64); err == nil && v == 0 {
				return false
			}
		}
		return true
	}
	return false
}

func isCompressibleContentType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return compressibleTypes[mt]
}

// gzipResponseWriter defers the compression decision until the status and
// enough of the body are known.
type gzipResponseWriter struct {
	http.ResponseWriter
	pool    *sync.Pool
	minSize int

	status     int
	decided    bool
	compress   bool
	headerSent bool
	buf        []byte
	gz         *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(status int) {
	if w.status != 0 {
		return
	}
	w.status = status
	if status < http.StatusOK || status == http.StatusNoContent || status == http.StatusNotModified ||
		w.Header().Get("Content-Encoding") != "" {
		w.decide(false)
	}
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", http.DetectContentType(b))
	}
	if !w.decided {
		if !isCompressibleContentType(w.Header().Get("Content-Type")) {
			w.decide(false)
		} else {
			w.buf = append(w.buf, b...)
			if len(w.buf) < w.minSize {
				return len(b), nil
			}
			w.decide(true)
			buffered := w.buf
			w.buf = nil
			if _, err := w.gz.Write(buffered); err != nil {
				return 0, err
			}
			return len(b), nil
		}
	}
	if w.gz != nil {
		return w.gz.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

func (w *gzipResponseWriter) decide(compress bool) {
	if w.decided {
		return
	}
	w.decided = true
	w.compress = compress
	if compress {
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
		w.gz, _ = w.pool.Get().(*gzip.Writer)
		w.gz.Reset(w.ResponseWriter)
	}
	w.sendHeader()
}

func (w *gzipResponseWriter) sendHeader() {
	if w.headerSent {
		return
	}
	w.headerSent = true
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	w.ResponseWriter.WriteHeader(status)
}

// finish flushes any body still buffered below MinSize and returns the gzip writer to the pool.
func (w *gzipResponseWriter) finish() error {
	if !w.decided {
		if w.status == 0 && len(w.buf) == 0 {
			return nil
		}
		w.decide(false)
		if len(w.buf) > 0 {
			_, err := w.ResponseWriter.Write(w.buf)
			w.buf = nil
			return err
		}
		return nil
	}
	if w.gz == nil {
		return nil
	}
	err := w.gz.Close()
	w.gz.Reset(io.Discard)
	w.pool.Put(w.gz)
	w.gz = nil
	return err
}

// Flush implements http.Flusher for streaming responses.
func (w *gzipResponseWriter) Flush() {
	if !w.decided {
		w.decide(len(w.buf) > 0 && isCompressibleContentType(w.Header().Get("Content-Type")))
		if w.gz != nil && len(w.buf) > 0 {
			_, _ = w.gz.Write(w.buf)
			w.buf = nil
		}
	}
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *gzipResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
