package collab

import (
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/luneo/canvas-engine/internal/auth"
)

type Handler struct {
	hub     *Hub
	origins []string
	logger  *zap.Logger
}

// NewHandler accepts websocket upgrades from the given origins, given as
// full URLs or host patterns.
func NewHandler(hub *Hub, origins []string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		patterns = append(patterns, o)
	}
	return &Handler{hub: hub, origins: patterns, logger: logger}
}

// ServeWS joins the caller to the session of /ws/session/{designId}.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	designID := mux.Vars(r)["designId"]
	if designID == "" {
		http.Error(w, "missing design id", http.StatusBadRequest)
		return
	}

	userID := "anon-" + uuid.New().String()[:8]
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		userID = claims.Subject
	}
	displayName := r.URL.Query().Get("name")
	if displayName == "" {
		displayName = "Guest"
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Error("websocket accept", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, userID, displayName, designID, uuid.New().String())
	if !h.hub.Register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
