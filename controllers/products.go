package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"Bazaar/middleware"
	"Bazaar/models"
	"Bazaar/pkg/apperror"
)

// CreateProduct lists a product with the requester as seller.
func CreateProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Name        string  `json:"name"`
			Description string  `json:"description"`
			Price       float64 `json:"price"`
			Image       string  `json:"image"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, apperror.KindInvalidInput, "Invalid request body")
			return
		}
		name := strings.TrimSpace(body.Name)
		if name == "" {
			fail(c, apperror.KindInvalidInput, "Product name is required")
			return
		}
		if body.Price < 0 {
			fail(c, apperror.KindInvalidInput, "Price cannot be negative")
			return
		}

		product := models.Product{
			ID:          uuid.Must(uuid.NewV7()).String(),
			Name:        name,
			Description: strings.TrimSpace(body.Description),
			Price:       body.Price,
			Image:       strings.TrimSpace(body.Image),
			SellerID:    middleware.CurrentUserID(c),
		}
		if err := db.WithContext(c.Request.Context()).Create(&product).Error; err != nil {
			respondError(c, apperror.Internal(err))
			return
		}
		respondSuccess(c, http.StatusCreated, gin.H{"product": product})
	}
}

func GetProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var product models.Product
		err := db.WithContext(c.Request.Context()).First(&product, "id = ?", c.Param("productId")).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, apperror.KindNotFound, "Product not found")
			return
		}
		if err != nil {
			respondError(c, apperror.Internal(err))
			return
		}
		respondSuccess(c, http.StatusOK, gin.H{"product": product})
	}
}
