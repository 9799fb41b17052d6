package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"Bazaar/middleware"
	"Bazaar/models"
	"Bazaar/pkg/apperror"
	utils "Bazaar/pkg/utills"
)

// Profile serves GET and PUT /api/users/me.
func Profile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := middleware.CurrentUserID(c)
		db := db.WithContext(c.Request.Context())

		var user models.User
		if err := db.First(&user, "id = ?", uid).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fail(c, apperror.KindNotFound, "User not found")
				return
			}
			respondError(c, apperror.Internal(err))
			return
		}

		if c.Request.Method == http.MethodGet {
			respondSuccess(c, http.StatusOK, gin.H{"user": user})
			return
		}

		// PUT; empty fields are left unchanged
		var body struct {
			Name         string  `json:"name"`
			ProfileImage *string `json:"profileImage"`
			Password     string  `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, apperror.KindInvalidInput, "Invalid request body")
			return
		}

		if name := strings.TrimSpace(body.Name); name != "" {
			user.Name = name
		}
		if body.ProfileImage != nil {
			user.ProfileImage = strings.TrimSpace(*body.ProfileImage)
		}
		if body.Password != "" {
			if problem := utils.PasswordProblem(body.Password); problem != "" {
				fail(c, apperror.KindInvalidInput, problem)
				return
			}
			if err := user.SetPassword(body.Password); err != nil {
				respondError(c, apperror.Internal(err))
				return
			}
		}

		if err := db.Save(&user).Error; err != nil {
			respondError(c, apperror.Internal(err))
			return
		}
		respondSuccess(c, http.StatusOK, gin.H{"user": user})
	}
}
