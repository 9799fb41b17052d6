package models

import (
	"encoding/json"
	"time"
)

const MaxMessageLength = 5000

// Message is immutable once written. ReadStatus is stored for future read
// receipts and is not updated by any handler yet.
type Message struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string    `gorm:"size:36;not null;index:idx_messages_conversation_created,priority:1" json:"conversation"`
	SenderID       string    `gorm:"size:36;not null" json:"-"`
	Sender         *User     `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	ReadStatus     bool      `gorm:"not null;default:false" json:"readStatus"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2" json:"createdAt"`
}

func (m Message) MarshalJSON() ([]byte, error) {
	type alias Message
	out := struct {
		alias
		Sender *User `json:"sender"`
	}{alias: alias(m), Sender: m.Sender}
	if out.Sender == nil {
		out.Sender = &User{ID: m.SenderID}
	}
	return json.Marshal(out)
}
