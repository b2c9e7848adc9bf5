package dbmysql

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"gochat/internal/chat/forward"
)

type Message struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement"`
	ConversationID  uint64         `gorm:"not null;index:idx_messages_conversation_created,priority:1"`
	SenderID        uint64         `gorm:"not null;index"`
	Body            *string        `gorm:"type:text"`
	ReplyToID       *uint64        `gorm:"index"`
	ForwardedFromID *uint64        `gorm:"index"`
	ForwardChain    datatypes.JSON `gorm:"not null"`
	IsEncrypted     bool           `gorm:"not null;default:false"`
	ExpiresAt       *time.Time     `gorm:"index"`
	ClientUUID      *string        `gorm:"size:36;uniqueIndex"`
	EditedAt        *time.Time
	CreatedAt       time.Time    `gorm:"not null;index:idx_messages_conversation_created,priority:2"`
	Attachments     []Attachment `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (Message) TableName() string {
	return "messages"
}

// Chain decodes the stored forward chain. A missing or corrupt column yields
// an empty chain.
func (m *Message) Chain() forward.Chain {
	if len(m.ForwardChain) == 0 {
		return nil
	}
	var chain forward.Chain
	if err := json.Unmarshal(m.ForwardChain, &chain); err != nil {
		return nil
	}
	return chain
}

func (m *Message) SetChain(chain forward.Chain) {
	if chain == nil {
		chain = forward.Chain{}
	}
	raw, err := json.Marshal(chain)
	if err != nil {
		raw = []byte("[]")
	}
	m.ForwardChain = datatypes.JSON(raw)
}

func (m *Message) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// MessageHide records a delete-for-me by one user.
type MessageHide struct {
	MessageID uint64    `gorm:"primaryKey;autoIncrement:false"`
	UserID    uint64    `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (MessageHide) TableName() string {
	return "message_hides"
}

type Attachment struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID  uint64    `gorm:"not null;index" json:"message_id"`
	StorageRef string    `gorm:"size:64;not null;uniqueIndex" json:"storage_ref"`
	MimeType   string    `gorm:"size:127;not null" json:"mime_type"`
	SizeBytes  int64     `gorm:"not null" json:"size_bytes"`
	FileName   string    `gorm:"size:255" json:"file_name"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}
