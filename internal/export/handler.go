package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/luneo/canvas-engine/internal/document"
)

const maxBodySize = 32 << 20 // scenes may inline images as data URIs

type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(service *Service, validate *validator.Validate, logger *zap.Logger) *Handler {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, validate: validate, logger: logger}
}

// Export renders the snapshot in the body as /api/export/{kind}. The file is
// streamed back unless ?upload=true, which stores it and returns its URL.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var job Job
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	job.Kind = Kind(mux.Vars(r)["kind"])
	if err := h.validate.Struct(job); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationMessage(err)})
		return
	}

	upload, _ := strconv.ParseBool(r.URL.Query().Get("upload"))
	res, err := h.service.Run(r.Context(), job, upload)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("export failed", zap.String("kind", string(job.Kind)), zap.Error(err))
			writeJSON(w, status, map[string]string{"error": "export failed"})
			return
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	if upload {
		writeJSON(w, http.StatusOK, res)
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, fileName(r.URL.Query().Get("name")), res.Extension))
	w.Header().Set("Content-Length", strconv.Itoa(res.Size))
	w.Header().Set("X-Export-Id", res.ExportID)
	if res.Cached {
		w.Header().Set("X-Export-Cache", "hit")
	}
	if _, err := w.Write(res.Data); err != nil {
		h.logger.Debug("write export", zap.Error(err))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, document.ErrInvalidExportArea),
		errors.Is(err, document.ErrEngineNotInitialized),
		errors.Is(err, ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, document.ErrImageLoad),
		errors.Is(err, document.ErrQRGeneration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrNoStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fileName keeps letters, digits, '-' and '_'.
func fileName(name string) string {
	if name == "" {
		return "design"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
