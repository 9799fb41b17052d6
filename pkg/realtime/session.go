package realtime

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultSendQueue = 64
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxInboundBytes  = 64 << 10
)

// Session is one websocket connection of a user. Writes happen only on the
// session's own writer goroutine, in queue order.
type Session struct {
	ID     string
	UserID string

	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed atomic.Bool
	log    *zap.Logger
}

func NewSession(id, userID string, conn *websocket.Conn, queueSize int, log *zap.Logger) *Session {
	if queueSize <= 0 {
		queueSize = DefaultSendQueue
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		ID:     id,
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, queueSize),
		done:   make(chan struct{}),
		log:    log.With(zap.String("session_id", id), zap.String("user_id", userID)),
	}
}

// Start launches the writer goroutine.
func (s *Session) Start() {
	go s.writeLoop()
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

// TrySend queues a frame without blocking. A full queue means the client is
// not keeping up: the session is closed and the frame dropped.
func (s *Session) TrySend(frame []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.send <- frame:
		return true
	default:
		s.log.Warn("send queue full, dropping session")
		s.CloseWithReason(websocket.CloseTryAgainLater, "send queue overflow")
		return false
	}
}

func (s *Session) Close() {
	s.CloseWithReason(websocket.CloseNormalClosure, "server closing")
}

func (s *Session) CloseWithReason(code int, reason string) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.log.Debug("closing session", zap.Int("code", code), zap.String("reason", reason))
	close(s.done)

	if s.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		s.conn.Close()
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Debug("ping failed", zap.Error(err))
				return
			}
		case <-s.done:
			return
		}
	}
}

// ReadLoop blocks reading client frames and hands each text frame to handle.
// It returns when the connection fails or the session is closed.
func (s *Session) ReadLoop(handle func(frame []byte)) {
	if s.conn == nil {
		return
	}
	s.conn.SetReadLimit(maxInboundBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) && !s.Closed() {
				s.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		handle(frame)
	}
}
