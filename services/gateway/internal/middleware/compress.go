package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/Devendra181/ECommerceSystem-sub000/services/gateway/internal/config"
)

// compressibleTypes lists the content types worth compressing. text/* is
// matched by prefix.
var compressibleTypes = []string{
	"application/json",
	"application/xml",
	"application/javascript",
	"application/xhtml+xml",
}

func isCompressible(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if strings.HasPrefix(mediaType, "text/") {
		return true
	}
	return slices.Contains(compressibleTypes, mediaType)
}

// selectEncoding picks the response encoding: br when the client accepts it
// and the server enables it, else gzip, else the configured default. An
// unknown result means no compression.
func selectEncoding(acceptEncoding string, cfg config.CompressionSettings) string {
	accepts := func(enc string) bool {
		for _, part := range strings.Split(acceptEncoding, ",") {
			name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
			if strings.EqualFold(name, enc) || name == "*" {
				return true
			}
		}
		return false
	}
	enabled := func(enc string) bool {
		return slices.Contains(cfg.SupportedEncodings, enc)
	}

	if accepts("br") && enabled("br") {
		return "br"
	}
	if accepts("gzip") && enabled("gzip") {
		return "gzip"
	}
	return cfg.DefaultEncoding
}

// Compress returns middleware that buffers the downstream response and
// compresses it when the client accepts an enabled encoding, the content
// type is compressible, and the body exceeds the threshold.
func Compress(cfg config.CompressionSettings, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			capture := newCaptureWriter()
			next.ServeHTTP(capture, r)

			body := capture.body.Bytes()
			acceptEncoding := r.Header.Get("Accept-Encoding")

			skip := acceptEncoding == "" ||
				!isCompressible(capture.header.Get("Content-Type")) ||
				len(body) <= cfg.CompressionThresholdBytes

			encoding := ""
			if !skip {
				encoding = selectEncoding(acceptEncoding, cfg)
				if encoding != "br" && encoding != "gzip" {
					encoding = ""
				}
			}

			if encoding != "" {
				compressed, err := compressBytes(body, encoding)
				if err != nil {
					l.WarnContext(r.Context(), "compression failed, sending identity",
						slog.String("encoding", encoding),
						slog.String("error", err.Error()),
					)
				} else {
					body = compressed
					capture.header.Set("Content-Encoding", encoding)
				}
			}

			for name, values := range capture.header {
				for _, v := range values {
					w.Header().Add(name, v)
				}
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(capture.status)
			_, _ = w.Write(body)
		})
	}
}

func compressBytes(body []byte, encoding string) ([]byte, error) {
	var buf bytes.Buffer

	switch encoding {
	case "br":
		bw := brotli.NewWriter(&buf)
		if _, err := bw.Write(body); err != nil {
			return nil, err
		}
		if err := bw.Close(); err != nil {
			return nil, err
		}
	case "gzip":
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(body); err != nil {
			return nil, err
		}
		if err := gw.Close(); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}
