package design

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/luneo/canvas-engine/internal/auth"
	"github.com/luneo/canvas-engine/internal/document"
	"github.com/luneo/canvas-engine/internal/pricing"
)

const maxBodySize = 32 << 20

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

type quoteRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=100000"`
}

type quoteResponse struct {
	DesignID string `json:"designId"`
	pricing.Quote
}

// Save stores the scene in the body as the next version: PUT /api/designs/{id}.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	var scene document.Scene
	if err := json.NewDecoder(r.Body).Decode(&scene); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	savedBy := ""
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		savedBy = claims.Subject
	}
	snap, err := h.service.Save(r.Context(), mux.Vars(r)["id"], savedBy, &scene)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Get returns the latest version, or ?version=N.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	version := 0
	if v := r.URL.Query().Get("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version"})
			return
		}
		version = n
	}
	snap, err := h.service.Load(r.Context(), mux.Vars(r)["id"], version)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity must be between 1 and 100000"})
		return
	}
	id := mux.Vars(r)["id"]
	q, err := h.service.Quote(r.Context(), id, req.Quantity)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{DesignID: id, Quote: q})
}

// Validate reports whether the latest version can be ordered. A design that
// fails its rules is still a 200; the body says why.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Validate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "design not found"})
	case errors.Is(err, ErrInvalidID), errors.Is(err, pricing.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, document.ErrInvalidScene):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("design request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
