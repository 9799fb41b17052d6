package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"Bazaar/middleware"
	"Bazaar/models"
	"Bazaar/pkg/apperror"
	"Bazaar/pkg/token"
	utils "Bazaar/pkg/utills"
)

// Register handler
func Register(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Name            string `json:"name"`
			Email           string `json:"email"`
			Password        string `json:"password"`
			ConfirmPassword string `json:"confirmPassword"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, apperror.KindInvalidInput, "Invalid request body")
			return
		}

		name := strings.TrimSpace(body.Name)
		email := utils.NormalizeEmail(body.Email)
		if name == "" || strings.TrimSpace(body.Email) == "" || body.Password == "" || body.ConfirmPassword == "" {
			fail(c, apperror.KindInvalidInput, "Name, email, password and confirm password are required")
			return
		}
		if email == "" {
			fail(c, apperror.KindInvalidInput, "Email is not valid")
			return
		}
		if body.Password != body.ConfirmPassword {
			fail(c, apperror.KindInvalidInput, "Passwords do not match")
			return
		}
		if problem := utils.PasswordProblem(body.Password); problem != "" {
			fail(c, apperror.KindInvalidInput, problem)
			return
		}

		user := models.User{ID: uuid.Must(uuid.NewV7()).String(), Name: name, Email: email}
		if err := user.SetPassword(body.Password); err != nil {
			respondError(c, apperror.Internal(err))
			return
		}
		if err := db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				fail(c, apperror.KindConflict, "Email already exists")
				return
			}
			respondError(c, apperror.Internal(err))
			return
		}

		middleware.LoggerFrom(c).Info("user registered", zap.String("user_id", user.ID))
		respondSuccess(c, http.StatusCreated, gin.H{"user": user})
	}
}

// Login handler
func Login(db *gorm.DB, tm *token.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, apperror.KindInvalidInput, "Invalid request body")
			return
		}
		email := strings.ToLower(strings.TrimSpace(body.Email))
		if email == "" || body.Password == "" {
			fail(c, apperror.KindInvalidInput, "Email and password are required")
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).Where("email = ?", email).First(&user).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				respondError(c, apperror.Internal(err))
				return
			}
			fail(c, apperror.KindUnauthorized, "Invalid credentials")
			return
		}
		if !user.CheckPassword(body.Password) {
			fail(c, apperror.KindUnauthorized, "Invalid credentials")
			return
		}

		signed, _, err := tm.Issue(user.ID)
		if err != nil {
			respondError(c, apperror.Internal(err))
			return
		}
		respondSuccess(c, http.StatusOK, gin.H{"token": signed, "user": user})
	}
}

// Logout revokes the presented token until it would have expired.
func Logout(revoked token.RevocationStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.CurrentClaims(c)
		if claims != nil && claims.ExpiresAt != nil {
			if err := revoked.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
				respondError(c, apperror.Internal(err))
				return
			}
		}
		respondSuccess(c, http.StatusOK, gin.H{"message": "Logged out"})
	}
}
