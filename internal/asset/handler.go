package asset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/luneo/canvas-engine/internal/storage"
	"github.com/luneo/canvas-engine/internal/typeid"
)

const DefaultMaxUpload = 10 << 20

// UploadResponse is returned from the upload endpoint. Src can be placed
// directly in an image object.
type UploadResponse struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	URL      string `json:"url"`
	Src      string `json:"src"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	FileSize int64  `json:"fileSize"`
	Name     string `json:"name"`
}

// Handler serves asset upload and retrieval endpoints.
type Handler struct {
	store     storage.Store
	maxUpload int64
	logger    *zap.Logger
}

func NewHandler(store storage.Store, maxUpload int64, logger *zap.Logger) *Handler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, maxUpload: maxUpload, logger: logger}
}

// Upload handles POST /assets/upload (multipart form with a "file" field).
// Images are re-encoded as PNG; the original format and size are reported so
// zone image rules can be checked against them.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("file too large (max %d bytes)", h.maxUpload),
		})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !supportedType(contentType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "only PNG, JPEG and WebP images are supported"})
		return
	}

	var raw bytes.Buffer
	if _, err := raw.ReadFrom(file); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read file"})
		return
	}
	bm, err := Decode(raw.Bytes())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid image: " + err.Error()})
		return
	}

	var out bytes.Buffer
	if err := png.Encode(&out, bm.Image); err != nil {
		h.logger.Error("encode png", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to encode image"})
		return
	}

	id := typeid.NewAssetID()
	key := "assets/" + id + ".png"
	if err := h.store.Put(r.Context(), key, out.Bytes(), "image/png"); err != nil {
		h.logger.Error("store asset", zap.String("key", key), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save file"})
		return
	}
	u, err := h.store.URL(r.Context(), key)
	if err != nil {
		h.logger.Error("asset url", zap.String("key", key), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save file"})
		return
	}

	h.logger.Info("asset uploaded",
		zap.String("id", id),
		zap.String("format", bm.Format),
		zap.Int64("bytes", bm.Size))

	writeJSON(w, http.StatusOK, UploadResponse{
		ID:       id,
		Key:      key,
		URL:      u,
		Src:      "/" + key,
		Width:    bm.Width,
		Height:   bm.Height,
		Format:   bm.Format,
		FileSize: bm.Size,
		Name:     header.Filename,
	})
}

// Serve handles GET /assets/{name} and /exports/{name} straight from the
// store. Ids are unique, so responses are cached as immutable.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	if !strings.HasPrefix(key, "assets/") && !strings.HasPrefix(key, "exports/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	data, ct, err := h.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		h.logger.Error("read asset", zap.String("key", key), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid asset key"})
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}

func supportedType(ct string) bool {
	for _, prefix := range []string{"image/png", "image/jpeg", "image/webp"} {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
