package service

import (
	"time"

	"gochat/internal/chat/cursor"
	"gochat/internal/chat/forward"
	"gochat/internal/common"
	"gochat/internal/dbmysql"
)

type AttachmentInput struct {
	StorageRef string
	MimeType   string
	SizeBytes  int64
	FileName   string
}

type SendInput struct {
	ConversationID uint64
	SenderID       uint64
	Body           *string
	Attachments    []AttachmentInput
	ReplyTo        *uint64
	ForwardFrom    *uint64
	ClientUUID     *string
	TTL            time.Duration
}

// MessageView is a message as a member sees it: body decrypted, chain
// snippets opened, attachments loaded.
type MessageView struct {
	ID              uint64               `json:"id"`
	ConversationID  uint64               `json:"conversation_id"`
	SenderID        uint64               `json:"sender_id"`
	Body            *string              `json:"body"`
	ReplyToID       *uint64              `json:"reply_to_id,omitempty"`
	ForwardedFromID *uint64              `json:"forwarded_from_id,omitempty"`
	ForwardChain    forward.Chain        `json:"forward_chain"`
	Attachments     []dbmysql.Attachment `json:"attachments"`
	IsEncrypted     bool                 `json:"is_encrypted"`
	ClientUUID      *string              `json:"client_uuid,omitempty"`
	ExpiresAt       *time.Time           `json:"expires_at,omitempty"`
	EditedAt        *time.Time           `json:"edited_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

type ConversationSummary struct {
	ID                uint64                   `json:"id"`
	Kind              dbmysql.ConversationKind `json:"kind"`
	Title             *string                  `json:"title,omitempty"`
	Role              dbmysql.MemberRole       `json:"role"`
	PinnedAt          *time.Time               `json:"pinned_at,omitempty"`
	MutedUntil        *time.Time               `json:"muted_until,omitempty"`
	Muted             bool                     `json:"muted"`
	LastReadMessageID uint64                   `json:"last_read_message_id"`
	Unread            int64                    `json:"unread"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

// HistoryQuery selects page mode when Page is set, cursor mode otherwise.
type HistoryQuery struct {
	Cursor  string
	Limit   int
	Page    int
	PerPage int
}

func (q HistoryQuery) PageMode() bool {
	return q.Page > 0
}

type HistoryPage struct {
	Messages   []MessageView
	NextCursor string
	HasMore    bool
	Page       *cursor.PageMeta
}

const (
	TargetConversation = "conversation"
	TargetGroup        = "group"
)

type ForwardTarget struct {
	Type string `json:"type"`
	ID   uint64 `json:"id"`
}

type ForwardResult struct {
	Target  ForwardTarget     `json:"target"`
	OK      bool              `json:"ok"`
	Message *MessageView      `json:"message,omitempty"`
	Error   *common.ErrorBody `json:"error,omitempty"`
}

type RecipientStatus struct {
	UserID      uint64                 `json:"user_id"`
	Status      dbmysql.DeliveryStatus `json:"status"`
	DeliveredAt *time.Time             `json:"delivered_at,omitempty"`
	ReadAt      *time.Time             `json:"read_at,omitempty"`
}

// Receipts reports per-recipient ticks. Aggregate is the lowest status any
// recipient has reached.
type Receipts struct {
	MessageID  uint64                 `json:"message_id"`
	Aggregate  dbmysql.DeliveryStatus `json:"aggregate"`
	Recipients []RecipientStatus      `json:"recipients"`
}
