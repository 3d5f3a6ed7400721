package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/auth"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/metrics"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/models"
	"github.com/YouMinSeok/YouMinSeok-Forest-Research-backend/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBufferSize = 64
)

var (
	errSessionClosed  = errors.New("session closed")
	errSendBufferFull = errors.New("send buffer full")
)

// Session is one authenticated socket bound to exactly one room for its
// lifetime. The server goroutine handling the connection owns it; the
// Registry only references it.
type Session struct {
	conn     *websocket.Conn
	userID   string
	userName string
	roomID   string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, identity *auth.Identity, roomID string) *Session {
	return &Session{
		conn:     conn,
		userID:   identity.UserID,
		userName: identity.UserName,
		roomID:   roomID,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
	}
}

// enqueue hands a payload to the writer goroutine without blocking. A full
// buffer counts as a failed delivery; the caller decides what to do with
// the session.
func (s *Session) enqueue(payload []byte) error {
	select {
	case <-s.done:
		return errSessionClosed
	default:
	}

	select {
	case s.send <- payload:
		return nil
	case <-s.done:
		return errSessionClosed
	default:
		return errSendBufferFull
	}
}

// close tears the session down. Safe to call from any goroutine, any number
// of times; closing the conn also unblocks a pending read.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// writePump is the single writer for the connection. It drains the send
// channel and keeps the connection alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Server runs the chat session protocol: handshake authentication, room
// authorization, the receive loop, persistence, and fan-out through the
// Registry.
type Server struct {
	registry *Registry
	verifier *auth.Verifier
	store    store.MessageStore
	cache    *store.RedisStore // optional; nil disables the recent cache
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a chat server. cache may be nil.
func NewServer(registry *Registry, verifier *auth.Verifier, msgStore store.MessageStore, cache *store.RedisStore, logger zerolog.Logger) *Server {
	return &Server{
		registry: registry,
		verifier: verifier,
		store:    msgStore,
		cache:    cache,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers connect from the SPA origin; auth is the token,
			// not the Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Registry exposes the live-connection directory, mainly for stats.
func (srv *Server) Registry() *Registry {
	return srv.registry
}

// ServeWS is the websocket endpoint: GET /ws/chat/{roomID}.
//
// The handshake is resolved after the upgrade so failures can carry a
// protocol close code the client can inspect: 4001 no token, 4002 invalid
// or expired token, 4003 room not found, 4004 access denied.
func (srv *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	token := bearerToken(r)

	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}

	identity, code, reason := srv.authenticate(r.Context(), token, roomID)
	if identity == nil {
		metrics.WSAuthFailures.WithLabelValues(reason).Inc()
		srv.logger.Warn().
			Str("room_id", roomID).
			Int("code", code).
			Str("reason", reason).
			Msg("websocket handshake refused")
		closeWith(conn, code, reason)
		return
	}

	session := newSession(conn, identity, roomID)

	srv.registry.Register(roomID, session)
	go session.writePump()

	srv.logger.Info().
		Str("room_id", roomID).
		Str("user_id", identity.UserID).
		Str("user_name", identity.UserName).
		Msg("websocket connected")

	// Joining is announced before the session can send anything, so other
	// participants get the presence signal ahead of new content.
	srv.registry.Broadcast(roomID, marshalEvent(presenceEvent{
		Type:     EventUserJoined,
		UserID:   identity.UserID,
		UserName: identity.UserName,
	}), nil)

	srv.runSession(r.Context(), session)
}

// authenticate resolves the handshake: token verification, then room
// membership. Returns a nil identity with a close code and stable reason
// string on failure.
func (srv *Server) authenticate(ctx context.Context, token, roomID string) (*auth.Identity, int, string) {
	identity, err := srv.verifier.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrNoToken) {
			return nil, CloseNoToken, "no token provided"
		}
		return nil, CloseInvalidToken, "invalid token"
	}

	room, err := srv.store.FindRoom(ctx, roomID)
	if err != nil {
		srv.logger.Error().Err(err).Str("room_id", roomID).Msg("room lookup failed")
		return nil, CloseRoomNotFound, "room not found"
	}
	if room == nil {
		return nil, CloseRoomNotFound, "room not found"
	}
	if !room.HasParticipant(identity.UserID) {
		return nil, CloseAccessDenied, "access denied"
	}

	return identity, 0, ""
}

// runSession is the ACTIVE receive loop. Cleanup is deferred so that any
// exit path, including a panic inside an event handler, deregisters the
// session and announces the departure.
func (srv *Server) runSession(ctx context.Context, s *Session) {
	defer func() {
		srv.registry.Deregister(s)
		s.close()
		srv.registry.Broadcast(s.roomID, marshalEvent(presenceEvent{
			Type:     EventUserLeft,
			UserID:   s.userID,
			UserName: s.userName,
		}), nil)
		srv.logger.Info().
			Str("room_id", s.roomID).
			Str("user_id", s.userID).
			Msg("websocket disconnected")
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				srv.logger.Debug().Err(err).Str("user_id", s.userID).Msg("websocket read error")
			}
			return
		}

		var event inboundEvent
		if err := json.Unmarshal(data, &event); err != nil {
			// Not JSON at all; unrecoverable for a framed protocol.
			srv.logger.Warn().Err(err).Str("user_id", s.userID).Msg("undecodable event, closing")
			return
		}

		metrics.WSEventsTotal.WithLabelValues(event.Type).Inc()

		switch event.Type {
		case EventSendMessage:
			srv.handleSendMessage(ctx, s, event.Message)
		case EventTypingStart:
			srv.broadcastTyping(s, true)
		case EventTypingStop:
			srv.broadcastTyping(s, false)
		default:
			// Forward compatibility: unknown types are not fatal.
		}
	}
}

// handleSendMessage validates, persists, and fans out one chat message.
// Sender identity comes from session state, never from the payload.
func (srv *Server) handleSendMessage(ctx context.Context, s *Session, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		// Validation failure drops the event; the connection stays open.
		return
	}

	msg := &models.Message{
		RoomID:     s.roomID,
		SenderID:   s.userID,
		SenderName: s.userName,
		Body:       text,
		CreatedAt:  time.Now().UTC(),
		IsRead:     false,
	}

	id, err := srv.store.InsertMessage(ctx, msg)
	if err != nil {
		// Not durable, so not broadcast: a message shown as sent must be
		// recoverable on reconnect. The sender alone gets the failure ack.
		srv.logger.Error().Err(err).
			Str("room_id", s.roomID).
			Str("user_id", s.userID).
			Msg("message persist failed")
		s.enqueue(marshalEvent(errorEvent{
			Type:    EventError,
			Code:    "store_failure",
			Message: "message could not be saved",
		}))
		return
	}
	metrics.MessagesPersisted.Inc()

	if err := srv.store.TouchRoomLastMessage(ctx, s.roomID, text, msg.CreatedAt); err != nil {
		// The message itself is durable; the room list cache catches up
		// on the next send.
		srv.logger.Warn().Err(err).Str("room_id", s.roomID).Msg("last-message update failed")
	}

	if srv.cache != nil {
		if err := srv.cache.CacheMessage(ctx, msg); err != nil {
			srv.logger.Warn().Err(err).Str("room_id", s.roomID).Msg("recent cache write failed")
		}
	}

	// The sender receives its own message back as delivery confirmation.
	srv.registry.Broadcast(s.roomID, marshalEvent(messageEvent{
		Type:       EventNewMessage,
		ID:         id,
		RoomID:     s.roomID,
		SenderID:   s.userID,
		SenderName: s.userName,
		Message:    text,
		CreatedAt:  msg.CreatedAt,
		IsRead:     false,
	}), nil)
}

// broadcastTyping relays a transient typing signal to everyone but the
// sender.
func (srv *Server) broadcastTyping(s *Session, typing bool) {
	srv.registry.Broadcast(s.roomID, marshalEvent(typingEvent{
		Type:     EventUserTyping,
		UserID:   s.userID,
		UserName: s.userName,
		Typing:   typing,
	}), s)
}

// bearerToken extracts the credential from the Authorization header or the
// token query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// closeWith sends a close frame with a protocol code, then drops the
// connection.
func closeWith(conn *websocket.Conn, code int, reason string) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	conn.Close()
}
