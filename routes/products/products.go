package products

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"Bazaar/controllers"
)

func Register(g *gin.RouterGroup, db *gorm.DB) {
	g.POST("", controllers.CreateProduct(db))
	g.GET("/:productId", controllers.GetProduct(db))
}
