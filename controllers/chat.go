package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Bazaar/middleware"
	"Bazaar/pkg/apperror"
	"Bazaar/pkg/services"
)

// StartConversation resolves the buyer/seller conversation for a product.
// It answers 201 whether the conversation was just created or already existed.
func StartConversation(chat *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			ProductID string `json:"productId"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, apperror.KindInvalidInput, "Invalid request body")
			return
		}

		conv, _, err := chat.ResolveConversation(c.Request.Context(), middleware.CurrentUserID(c), body.ProductID)
		if err != nil {
			respondError(c, err)
			return
		}
		respondSuccess(c, http.StatusCreated, gin.H{"conversation": conv})
	}
}

func SendMessage(chat *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			ConversationID string `json:"conversationId"`
			Content        string `json:"content"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			fail(c, apperror.KindInvalidInput, "Invalid request body")
			return
		}

		msg, err := chat.SendMessage(c.Request.Context(), middleware.CurrentUserID(c), body.ConversationID, body.Content)
		if err != nil {
			respondError(c, err)
			return
		}
		respondSuccess(c, http.StatusCreated, gin.H{"message": msg})
	}
}

func GetMessages(chat *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := chat.ListMessages(c.Request.Context(), middleware.CurrentUserID(c), c.Param("conversationId"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondSuccess(c, http.StatusOK, gin.H{"messages": msgs})
	}
}

func GetConversations(chat *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		convs, err := chat.ListConversations(c.Request.Context(), middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		respondSuccess(c, http.StatusOK, gin.H{"conversations": convs})
	}
}
