// Package repository is the gorm-backed persistence layer for conversations,
// messages and the product/user rows they reference.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"Bazaar/models"
)

var ErrNotFound = errors.New("record not found")

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func orderedParticipants(tx *gorm.DB) *gorm.DB {
	return tx.Order("position ASC")
}

func userSummary(tx *gorm.DB) *gorm.DB {
	return tx.Select(models.UserSummaryColumns)
}

func productSummary(tx *gorm.DB) *gorm.DB {
	return tx.Select(models.ProductSummaryColumns)
}

func (r *Repository) FindProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindConversation loads a conversation with its participant ids.
func (r *Repository) FindConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants", orderedParticipants).
		First(&c, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// FindConversationByKey finds the conversation of an exact participant set
// about a product.
func (r *Repository) FindConversationByKey(ctx context.Context, productID, participantKey string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants", orderedParticipants).
		Where("product_id = ? AND participant_key = ?", productID, participantKey).
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CreateConversation inserts the conversation and its participants in one
// transaction. A duplicate (product, participant set) fails on the unique index.
func (r *Repository) CreateConversation(ctx context.Context, c *models.Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// CreateMessage stores msg and moves the conversation's last activity to at.
// Both writes commit together or not at all. Last activity never moves back.
func (r *Repository) CreateMessage(ctx context.Context, msg *models.Message, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sender").Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ? AND last_activity_at < ?", msg.ConversationID, at).
			Update("last_activity_at", at).Error
	})
}

// FindMessage loads a message with its sender summary.
func (r *Repository) FindMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	err := r.db.WithContext(ctx).
		Preload("Sender", userSummary).
		First(&m, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// ListMessages returns the conversation's messages oldest first. Ties on
// created_at fall back to the time-ordered id so the order is stable.
func (r *Repository) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.WithContext(ctx).
		Preload("Sender", userSummary).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListConversations returns the conversations userID takes part in with the
// given status, most recently active first, with participant and product
// summaries loaded.
func (r *Repository) ListConversations(ctx context.Context, userID string, status models.ConversationStatus) ([]models.Conversation, error) {
	memberOf := r.db.Model(&models.ConversationParticipant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	convs := []models.Conversation{}
	err := r.db.WithContext(ctx).
		Preload("Participants", orderedParticipants).
		Preload("Participants.User", userSummary).
		Preload("Product", productSummary).
		Where("id IN (?) AND status = ?", memberOf, status).
		Order("last_activity_at DESC").
		Order("id DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}
