package websocket

import (
	"github.com/gin-gonic/gin"

	"Bazaar/controllers"
	"Bazaar/middleware"
	"Bazaar/pkg/realtime"
)

// Register mounts /ws. Authentication happens in the handler so browsers can
// pass the token as ?token= on the upgrade request.
func Register(r *gin.Engine, auth *middleware.Authenticator, hub *realtime.Hub, queueSize int) {
	r.GET("/ws", controllers.ChatWS(auth, hub, queueSize))
}
