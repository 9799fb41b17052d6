// Package realtime keeps the open websocket sessions of each user and pushes
// events to a user's private channel.
package realtime

import (
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"Bazaar/pkg/metrics"
)

const (
	EventJoin              = "join"
	EventJoined            = "joined"
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventError             = "error"
)

// Frame is the wire format in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub maps user ids to their sessions. A user may have several sessions open
// (tabs, devices); each receives every event of that user's channel.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Session
	log      *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		sessions: make(map[string]map[string]*Session),
		log:      log,
	}
}

// Join subscribes s to the private channel of s.UserID.
func (h *Hub) Join(s *Session) {
	h.mu.Lock()
	if h.sessions[s.UserID] == nil {
		h.sessions[s.UserID] = make(map[string]*Session)
	}
	h.sessions[s.UserID][s.ID] = s
	h.mu.Unlock()

	metrics.WebSocketSessions.Inc()
	h.log.Debug("session joined", zap.String("user_id", s.UserID), zap.String("session_id", s.ID))
}

// Leave unsubscribes s. Calling it for a session that is not joined is a no-op.
func (h *Hub) Leave(s *Session) {
	h.mu.Lock()
	sessions, ok := h.sessions[s.UserID]
	_, joined := sessions[s.ID]
	if ok && joined {
		delete(sessions, s.ID)
		if len(sessions) == 0 {
			delete(h.sessions, s.UserID)
		}
	}
	h.mu.Unlock()

	if joined {
		metrics.WebSocketSessions.Dec()
		h.log.Debug("session left", zap.String("user_id", s.UserID), zap.String("session_id", s.ID))
	}
}

// Publish queues event on every session of userID and returns how many
// accepted it. Users without sessions are skipped silently.
func (h *Hub) Publish(userID, event string, payload any) int {
	frame, err := json.Marshal(outFrame{Event: event, Data: payload})
	if err != nil {
		h.log.Error("encode event", zap.String("event", event), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, s := range h.sessions[userID] {
		if s.TrySend(frame) {
			delivered++
			metrics.RealtimeEventsPublished.WithLabelValues(event).Inc()
		} else {
			metrics.RealtimeEventsDropped.WithLabelValues(event).Inc()
		}
	}
	return delivered
}

// Sessions reports how many sessions userID has open.
func (h *Hub) Sessions(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[userID])
}

// Close closes every session. Their read loops then call Leave.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sessions := range h.sessions {
		for _, s := range sessions {
			s.Close()
		}
	}
}

func (h *Hub) reply(s *Session, event string, data any) {
	frame, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		return
	}
	s.TrySend(frame)
}

// HandleInbound processes one client frame. The session's channel comes from
// the authenticated identity, so join only acknowledges it; a join for any
// other user is refused.
func (h *Hub) HandleInbound(s *Session, raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		h.reply(s, EventError, errorData("invalid frame"))
		return
	}

	switch f.Event {
	case EventJoin:
		var userID string
		if len(f.Data) > 0 {
			// accepts both "id" and {"userId":"id"}
			if err := json.Unmarshal(f.Data, &userID); err != nil {
				var obj struct {
					UserID string `json:"userId"`
				}
				_ = json.Unmarshal(f.Data, &obj)
				userID = obj.UserID
			}
		}
		userID = strings.TrimSpace(userID)
		if userID != "" && userID != s.UserID {
			h.log.Warn("join for another user refused",
				zap.String("user_id", s.UserID),
				zap.String("requested_id", userID),
			)
			h.reply(s, EventError, errorData("cannot join another user's channel"))
			return
		}
		h.reply(s, EventJoined, map[string]string{"userId": s.UserID})
	case EventJoinConversation, EventLeaveConversation:
		// no per-conversation rooms; messages go to participants' private channels
	default:
		h.reply(s, EventError, errorData("unknown event"))
	}
}

func errorData(message string) map[string]string {
	return map[string]string{"message": message}
}
