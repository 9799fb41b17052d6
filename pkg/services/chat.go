package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Bazaar/models"
	"Bazaar/pkg/apperror"
	"Bazaar/pkg/cache"
	"Bazaar/pkg/metrics"
	"Bazaar/pkg/repository"
)

// EventNewMessage is pushed to every participant after a message is stored.
const EventNewMessage = "newMessage"

// ChatStore is the persistence the chat service needs. *repository.Repository
// implements it.
type ChatStore interface {
	FindProduct(ctx context.Context, id string) (*models.Product, error)
	FindConversation(ctx context.Context, id string) (*models.Conversation, error)
	FindConversationByKey(ctx context.Context, productID, participantKey string) (*models.Conversation, error)
	CreateConversation(ctx context.Context, c *models.Conversation) error
	CreateMessage(ctx context.Context, msg *models.Message, at time.Time) error
	FindMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	ListConversations(ctx context.Context, userID string, status models.ConversationStatus) ([]models.Conversation, error)
}

// Publisher delivers an event to the sessions subscribed to a user's private
// channel. It returns how many sessions accepted the event.
type Publisher interface {
	Publish(userID, event string, payload any) int
}

// NewMessageEvent is the payload of EventNewMessage.
type NewMessageEvent struct {
	Message        *models.Message `json:"message"`
	ConversationID string          `json:"conversationId"`
}

type ChatService struct {
	store      ChatStore
	pub        Publisher
	products   *cache.Cache
	productTTL time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewChatService wires the service. products may be nil to disable caching.
func NewChatService(store ChatStore, pub Publisher, products *cache.Cache, productTTL time.Duration, log *zap.Logger) *ChatService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatService{
		store:      store,
		pub:        pub,
		products:   products,
		productTTL: productTTL,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func productCacheKey(id string) string { return "product:" + id }

func (s *ChatService) product(ctx context.Context, id string) (*models.Product, error) {
	if v, ok := s.products.Get(productCacheKey(id)); ok {
		if p, ok := v.(*models.Product); ok {
			return p, nil
		}
	}
	p, err := s.store.FindProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	s.products.Set(productCacheKey(id), p, s.productTTL)
	return p, nil
}

// ResolveConversation returns the conversation between requester and the
// product's seller, creating it on first contact. created reports whether this
// call inserted it.
func (s *ChatService) ResolveConversation(ctx context.Context, requesterID, productID string) (conv *models.Conversation, created bool, err error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, false, apperror.InvalidInput("Product ID is required")
	}

	product, err := s.product(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperror.NotFound("Product not found")
	}
	if err != nil {
		return nil, false, apperror.Internal(fmt.Errorf("find product %s: %w", productID, err))
	}
	if product.SellerID == requesterID {
		return nil, false, apperror.InvalidInput("You cannot start a conversation about your own product")
	}

	key := models.ParticipantKey(requesterID, product.SellerID)
	existing, err := s.store.FindConversationByKey(ctx, productID, key)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, apperror.Internal(fmt.Errorf("find conversation: %w", err))
	}

	now := s.now()
	conv = &models.Conversation{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ProductID:      productID,
		ParticipantKey: key,
		Status:         models.ConversationActive,
		LastActivityAt: now,
		Participants: []models.ConversationParticipant{
			{UserID: requesterID, Position: 0},
			{UserID: product.SellerID, Position: 1},
		},
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		// a concurrent request for the same pair may have won the unique index
		if winner, ferr := s.store.FindConversationByKey(ctx, productID, key); ferr == nil {
			s.log.Debug("conversation created concurrently", zap.String("conversation_id", winner.ID))
			return winner, false, nil
		}
		return nil, false, apperror.Internal(fmt.Errorf("create conversation: %w", err))
	}
	metrics.ConversationsCreated.Inc()
	s.log.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("product_id", productID),
		zap.String("buyer_id", requesterID),
		zap.String("seller_id", product.SellerID),
	)
	return conv, true, nil
}

// participantConversation loads a conversation and checks userID belongs to it.
func (s *ChatService) participantConversation(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	conv, err := s.store.FindConversation(ctx, conversationID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Conversation not found")
	}
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("find conversation %s: %w", conversationID, err))
	}
	if !conv.HasParticipant(userID) {
		return nil, apperror.Forbidden("Not authorized to access this conversation")
	}
	return conv, nil
}

// SendMessage stores a message from senderID and pushes it to every
// participant. Delivery is best effort; the message is stored either way.
func (s *ChatService) SendMessage(ctx context.Context, senderID, conversationID, content string) (*models.Message, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" || strings.TrimSpace(content) == "" {
		return nil, apperror.InvalidInput("Conversation ID and content are required")
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		return nil, apperror.InvalidInput(fmt.Sprintf("Message content cannot exceed %d characters", models.MaxMessageLength))
	}

	conv, err := s.participantConversation(ctx, senderID, conversationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	msg := &models.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      now,
	}
	if err := s.store.CreateMessage(ctx, msg, now); err != nil {
		return nil, apperror.Internal(fmt.Errorf("store message: %w", err))
	}
	metrics.MessagesStored.Inc()

	if loaded, err := s.store.FindMessage(ctx, msg.ID); err == nil {
		msg = loaded
	} else {
		s.log.Warn("reload message with sender", zap.String("message_id", msg.ID), zap.Error(err))
	}

	event := NewMessageEvent{Message: msg, ConversationID: conv.ID}
	for _, uid := range conv.ParticipantIDs() {
		delivered := s.pub.Publish(uid, EventNewMessage, event)
		s.log.Debug("message published",
			zap.String("message_id", msg.ID),
			zap.String("recipient_id", uid),
			zap.Int("sessions", delivered),
		)
	}
	return msg, nil
}

// ListMessages returns the conversation history, oldest first.
func (s *ChatService) ListMessages(ctx context.Context, requesterID, conversationID string) ([]models.Message, error) {
	conv, err := s.participantConversation(ctx, requesterID, strings.TrimSpace(conversationID))
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list messages: %w", err))
	}
	return msgs, nil
}

// ListConversations returns the requester's active conversations, most
// recently active first, each with the other participant filled in.
func (s *ChatService) ListConversations(ctx context.Context, requesterID string) ([]models.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, requesterID, models.ConversationActive)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("list conversations: %w", err))
	}
	for i := range convs {
		convs[i].OtherUser = convs[i].OtherParticipant(requesterID)
	}
	return convs, nil
}
