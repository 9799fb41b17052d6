package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"Bazaar/middleware"
	"Bazaar/pkg/realtime"
	"Bazaar/pkg/services"
	"Bazaar/pkg/token"

	authRoutes "Bazaar/routes/auth"
	chatRoutes "Bazaar/routes/chat"
	productRoutes "Bazaar/routes/products"
	profileRoutes "Bazaar/routes/profile"
	websocketRoutes "Bazaar/routes/websocket"
)

// Deps are the long-lived components the HTTP layer is built from.
type Deps struct {
	DB          *gorm.DB
	Tokens      *token.Manager
	Revocations token.RevocationStore
	Hub         *realtime.Hub
	Chat        *services.ChatService
	Limiter     *middleware.RateLimiter
	Log         *zap.Logger
	CORSOrigins []string
	WSSendQueue int
}

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	corsCfg := cors.Config{
		AllowOrigins:     d.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(d.CORSOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))

	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Bazaar messaging backend running"})
	})
	r.GET("/healthz", health(d.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.NewAuthenticator(d.Tokens, d.Revocations)
	websocketRoutes.Register(r, auth, d.Hub, d.WSSendQueue)

	api := r.Group("/api")
	authRoutes.RegisterPublic(api.Group("/auth"), d.DB, d.Tokens)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(auth))
	authRoutes.RegisterProtected(protected.Group("/auth"), d.Revocations)
	profileRoutes.Register(protected.Group("/users"), d.DB)
	productRoutes.Register(protected.Group("/products"), d.DB)
	chatRoutes.Register(protected.Group("/chat"), d.Chat, d.Limiter)
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			middleware.LoggerFrom(c).Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "database": "ok"})
	}
}
