package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/chat"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store    store.MessageStore
	cache    *store.RedisStore // may be nil
	registry *chat.Registry
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(msgStore store.MessageStore, cache *store.RedisStore, registry *chat.Registry) *Handler {
	return &Handler{store: msgStore, cache: cache, registry: registry}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
