package chat

import (
	"github.com/gin-gonic/gin"

	"Bazaar/controllers"
	"Bazaar/middleware"
	"Bazaar/pkg/services"
)

// Register registers the chat routes. The group must already have
// AuthMiddleware applied; writes are rate limited per user.
func Register(g *gin.RouterGroup, svc *services.ChatService, limiter *middleware.RateLimiter) {
	g.POST("/conversations", limiter.Handler(), controllers.StartConversation(svc))
	g.GET("/conversations", controllers.GetConversations(svc))
	g.GET("/conversations/:conversationId/messages", controllers.GetMessages(svc))
	g.POST("/messages", limiter.Handler(), controllers.SendMessage(svc))
}
