package models

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// Conversation is a buyer/seller thread scoped to one product.
// ParticipantKey together with ProductID is unique, so a second insert for the
// same pair and product fails instead of creating a duplicate thread.
type Conversation struct {
	ID             string                    `gorm:"primaryKey;size:36" json:"id"`
	ProductID      string                    `gorm:"size:36;not null;uniqueIndex:idx_conversation_product_participants,priority:1" json:"-"`
	ParticipantKey string                    `gorm:"size:200;not null;uniqueIndex:idx_conversation_product_participants,priority:2" json:"-"`
	Status         ConversationStatus        `gorm:"size:16;not null;default:active;index" json:"status"`
	LastActivityAt time.Time                 `gorm:"index" json:"lastActivityAt"`
	CreatedAt      time.Time                 `json:"createdAt"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
	Participants   []ConversationParticipant `gorm:"constraint:OnDelete:CASCADE" json:"participants"`
	Product        *Product                  `gorm:"foreignKey:ProductID" json:"product,omitempty"`

	// OtherUser is derived per requester when listing; never stored.
	OtherUser *User `gorm:"-" json:"otherUser,omitempty"`
}

// MarshalJSON reports the product id when the product row was not loaded.
func (c Conversation) MarshalJSON() ([]byte, error) {
	type alias Conversation
	out := struct {
		alias
		Product any `json:"product"`
	}{alias: alias(c)}
	if c.Product != nil {
		out.Product = c.Product
	} else {
		out.Product = c.ProductID
	}
	return json.Marshal(out)
}

// ConversationParticipant keeps the participant order: position 0 is the buyer
// who opened the thread, position 1 the seller.
type ConversationParticipant struct {
	ConversationID string `gorm:"primaryKey;size:36"`
	UserID         string `gorm:"primaryKey;size:36;index"`
	Position       int    `gorm:"not null"`
	User           *User  `gorm:"foreignKey:UserID"`
}

// MarshalJSON renders the participant as the user summary when it was
// preloaded, otherwise as a bare id reference.
func (p ConversationParticipant) MarshalJSON() ([]byte, error) {
	if p.User != nil {
		return json.Marshal(p.User)
	}
	return json.Marshal(User{ID: p.UserID})
}

// ParticipantKey is the order-independent identity of a participant set.
func ParticipantKey(userIDs ...string) string {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	return strings.Join(ids, ":")
}

func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the first participant that is not userID, or nil.
func (c *Conversation) OtherParticipant(userID string) *User {
	for _, p := range c.Participants {
		if p.UserID == userID {
			continue
		}
		if p.User != nil {
			return p.User
		}
		return &User{ID: p.UserID}
	}
	return nil
}
