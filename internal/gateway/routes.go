package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/commerce"
)

// HealthResponse is the public health payload.
type HealthResponse struct {
	OK            bool    `json:"ok"`
	Uptime        float64 `json:"uptime,omitempty"`
	Version       string  `json:"version,omitempty"`
	ActiveSockets int     `json:"activeSockets"`
}

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /api/products", s.handleProducts)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(s.cfg.Server.UploadDir))))

	mux.HandleFunc("GET /webhooks/facebook", s.handleFacebookVerify)
	mux.HandleFunc("POST /webhooks/facebook", s.handleFacebookReceive)
	mux.HandleFunc("POST /webhooks/zapier", s.handleZapier)

	mux.HandleFunc("/", handleNotFound)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		OK:            true,
		Uptime:        time.Since(s.startedAt).Seconds(),
		Version:       s.version,
		ActiveSockets: s.clients.Count(),
	})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// handleProducts is the storefront browse endpoint used by the chat
// widget's product rail.
func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	if !s.shop.IsConfigured() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok": false, "error": "WC_NOT_CONFIGURED",
		})
		return
	}

	perPage := 12
	if v := r.URL.Query().Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			perPage = n
		}
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > 24 {
		perPage = 24
	}

	products, err := s.shop.SearchProducts(r.Context(), commerce.SearchParams{
		Search:   r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
		PerPage:  perPage,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("product listing failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "error": "STORE_UNAVAILABLE"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "products": products})
}

// handleUpload accepts one multipart image and stores it under the
// uploads directory with an unguessable name.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Server.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "FILE_TOO_LARGE"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "MISSING_FILE"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "UNSUPPORTED_TYPE"})
		return
	}

	name := fmt.Sprintf("%d-%06d%s", time.Now().UnixMilli(), rand.Intn(1000000), ext)
	dst := filepath.Join(s.cfg.Server.UploadDir, name)
	out, err := os.Create(dst)
	if err != nil {
		s.log.Error().Err(err).Str("path", dst).Msg("upload create failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "UPLOAD_FAILED"})
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		s.log.Error().Err(err).Msg("upload write failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "UPLOAD_FAILED"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "url": "/uploads/" + name})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// uploadResolver turns image URLs into data URLs the model can read:
// local uploads are read from disk, remote images fetched and inlined.
type uploadResolver struct {
	dir  string
	http *http.Client
}

func newUploadResolver(dir string, client *http.Client) *uploadResolver {
	return &uploadResolver{dir: dir, http: client}
}

func (u *uploadResolver) Resolve(ctx context.Context, url string) (string, error) {
	if strings.HasPrefix(url, "data:") {
		return url, nil
	}

	if rest, ok := strings.CutPrefix(url, "/uploads/"); ok {
		name := path.Base(rest) // no directory traversal
		data, err := os.ReadFile(filepath.Join(u.dir, name))
		if err != nil {
			return "", fmt.Errorf("reading upload: %w", err)
		}
		return dataURL(mimeForName(name), data), nil
	}

	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		resp, err := u.http.Do(req)
		if err != nil {
			// The model may be able to fetch it directly.
			return url, nil
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return url, nil
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxFramePayload))
		if err != nil {
			return url, nil
		}
		ct := resp.Header.Get("Content-Type")
		if ct == "" {
			ct = http.DetectContentType(data)
		}
		return dataURL(ct, data), nil
	}

	return "", errors.New("unsupported image url")
}

func mimeForName(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "image/jpeg"
}

func dataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
