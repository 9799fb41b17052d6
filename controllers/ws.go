package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Bazaar/middleware"
	"Bazaar/pkg/apperror"
	"Bazaar/pkg/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS handled at HTTP level; allow WS here
		return true
	},
}

// ChatWS upgrades to a websocket subscribed to the caller's private channel.
// Protocol (JSON frames {"event","data"}):
//
//	-> {event: "join", data: userId}          <- {event: "joined", data: {userId}}
//	-> {event: "joinConversation", data: id}  ignored
//	<- {event: "newMessage", data: {message, conversationId}}
//	<- {event: "error", data: {message}}
func ChatWS(auth *middleware.Authenticator, hub *realtime.Hub, queueSize int) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := middleware.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			raw = strings.TrimSpace(c.Query("token"))
		}
		if raw == "" {
			fail(c, apperror.KindUnauthorized, "Missing token")
			return
		}
		claims, err := auth.Authenticate(c.Request.Context(), raw)
		if err != nil {
			fail(c, apperror.KindUnauthorized, middleware.UnauthorizedMessage(err))
			return
		}
		userID := claims.UserID()
		c.Set(middleware.ContextUserIDKey, userID)

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			middleware.LoggerFrom(c).Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		log := middleware.LoggerFrom(c)
		session := realtime.NewSession(uuid.NewString(), userID, conn, queueSize, log)
		hub.Join(session)
		session.Start()

		session.ReadLoop(func(frame []byte) {
			hub.HandleInbound(session, frame)
		})

		hub.Leave(session)
		session.Close()
	}
}
