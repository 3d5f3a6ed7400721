package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/api/middleware"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/metrics"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/models"
)

// SendMessageRequest is the REST send-message request body.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// GetMessages handles GET /chat/room/{roomID}/messages?skip&limit.
//
// The page is served oldest-first for replay. Side effect: every unread
// message from the other participant is marked read. The mark is a batch
// keyed on (room, sender, unread), so it runs safely next to concurrent
// inserts; a message landing mid-update just stays unread until the next
// fetch.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	roomID := chi.URLParam(r, "roomID")
	room, err := h.store.FindRoom(r.Context(), roomID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "room lookup failed")
		return
	}
	if room == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}
	if !room.HasParticipant(identity.UserID) {
		h.Error(w, http.StatusForbidden, "access denied")
		return
	}

	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	messages, err := h.store.ListMessages(r.Context(), roomID, skip, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	// Fetching history doubles as the read receipt. Read counts are
	// eventually consistent, so a failed mark does not fail the fetch.
	_, _ = h.store.MarkRead(r.Context(), roomID, identity.UserID)

	h.JSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// SendMessage handles POST /chat/room/{roomID}/message, the poll-client
// send path. Validation and persistence mirror the socket path, and the
// result is fanned out to any live sessions so socket clients see REST
// sends too.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	roomID := chi.URLParam(r, "roomID")
	room, err := h.store.FindRoom(r.Context(), roomID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "room lookup failed")
		return
	}
	if room == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}
	if !room.HasParticipant(identity.UserID) {
		h.Error(w, http.StatusForbidden, "access denied")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	text := strings.TrimSpace(req.Message)
	if text == "" {
		h.Error(w, http.StatusBadRequest, "message is empty")
		return
	}

	msg := &models.Message{
		RoomID:     roomID,
		SenderID:   identity.UserID,
		SenderName: identity.UserName,
		Body:       text,
		CreatedAt:  time.Now().UTC(),
	}

	if _, err := h.store.InsertMessage(r.Context(), msg); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	metrics.MessagesPersisted.Inc()

	// Last-message cache is best-effort; the message itself is durable.
	_ = h.store.TouchRoomLastMessage(r.Context(), roomID, text, msg.CreatedAt)

	if h.cache != nil {
		_ = h.cache.CacheMessage(r.Context(), msg)
	}

	if h.registry != nil {
		h.registry.BroadcastMessage(msg)
	}

	h.JSON(w, http.StatusCreated, msg)
}

// RecentMessages handles GET /chat/room/{roomID}/recent?limit, a cheap poll
// fallback served from the Redis cache. No read-receipt side effect.
func (h *Handler) RecentMessages(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if h.cache == nil {
		h.Error(w, http.StatusServiceUnavailable, "recent cache not configured")
		return
	}

	roomID := chi.URLParam(r, "roomID")
	room, err := h.store.FindRoom(r.Context(), roomID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "room lookup failed")
		return
	}
	if room == nil {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}
	if !room.HasParticipant(identity.UserID) {
		h.Error(w, http.StatusForbidden, "access denied")
		return
	}

	limit := queryInt(r, "limit", 50)
	messages, err := h.cache.RecentMessages(r.Context(), roomID, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	h.JSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
