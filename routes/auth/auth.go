package auth

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"Bazaar/controllers"
	"Bazaar/pkg/token"
)

// RegisterPublic registers public auth routes: /register, /login
func RegisterPublic(g *gin.RouterGroup, db *gorm.DB, tm *token.Manager) {
	g.POST("/register", controllers.Register(db))
	g.POST("/login", controllers.Login(db, tm))
}

// RegisterProtected registers protected auth routes (e.g. logout)
func RegisterProtected(g *gin.RouterGroup, revoked token.RevocationStore) {
	g.POST("/logout", controllers.Logout(revoked))
}
