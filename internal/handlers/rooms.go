package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/api/middleware"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/models"
)

// CreateRoomRequest is the create-or-get room request body.
type CreateRoomRequest struct {
	TargetUserID   string `json:"target_user_id"`
	TargetUserName string `json:"target_user_name"`
}

// CreateRoomResponse reports the room id and whether it already existed.
type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
	Status string `json:"status"` // "created" or "existing"
}

// CreateRoom handles POST /chat/room/create. It is a find-or-create: both
// participants derive the same canonical room id, so whoever initiates,
// the pair ends up with exactly one room even when two connections race.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.TargetUserID == "" || req.TargetUserName == "" {
		h.Error(w, http.StatusBadRequest, "target user is required")
		return
	}
	if req.TargetUserID == identity.UserID {
		h.Error(w, http.StatusBadRequest, "cannot chat with yourself")
		return
	}

	room, created, err := h.store.CreateRoom(r.Context(),
		identity.UserID, identity.UserName, req.TargetUserID, req.TargetUserName)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	status := "existing"
	code := http.StatusOK
	if created {
		status = "created"
		code = http.StatusCreated
	}

	h.JSON(w, code, CreateRoomResponse{RoomID: room.RoomID, Status: status})
}

// ListRooms handles GET /chat/rooms: the caller's rooms ordered by last
// activity, each with the other participant, the denormalized last message,
// and the unread count.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	rooms, err := h.store.ListRoomsForUser(r.Context(), identity.UserID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch rooms")
		return
	}
	if rooms == nil {
		rooms = []models.RoomSummary{}
	}

	h.JSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}
