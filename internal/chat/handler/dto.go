package handler

import (
	"time"

	"gochat/internal/dbmysql"
)

type createDirectRequest struct {
	UserID uint64 `json:"user_id" validate:"required"`
}

type createGroupRequest struct {
	Kind      string   `json:"kind" validate:"required,oneof=group channel"`
	Title     string   `json:"title" validate:"max=255"`
	MemberIDs []uint64 `json:"member_ids" validate:"max=1000"`
}

type pinRequest struct {
	Pinned *bool `json:"pinned" validate:"required"`
}

// muteRequest clears the mute when Until is null.
type muteRequest struct {
	Until *time.Time `json:"until"`
}

type attachmentRequest struct {
	StorageRef string `json:"storage_ref" validate:"required,max=64"`
	MimeType   string `json:"mime_type" validate:"required,max=127"`
	SizeBytes  int64  `json:"size_bytes" validate:"gte=0"`
	FileName   string `json:"file_name" validate:"max=255"`
}

type sendMessageRequest struct {
	Body        *string             `json:"body"`
	Attachments []attachmentRequest `json:"attachments" validate:"max=10,dive"`
	ReplyTo     *uint64             `json:"reply_to"`
	ForwardFrom *uint64             `json:"forward_from"`
	ClientUUID  *string             `json:"client_uuid"`
	TTLSeconds  int64               `json:"ttl_seconds" validate:"gte=0,max=31536000"`
}

type markReadRequest struct {
	MessageIDs []uint64 `json:"message_ids" validate:"required,min=1,max=500"`
}

type editRequest struct {
	Body string `json:"body"`
}

type statusRequest struct {
	Type string `json:"type" validate:"required,oneof=delivered read"`
}

type forwardTargetRequest struct {
	Type string `json:"type" validate:"required"`
	ID   uint64 `json:"id"`
}

type forwardRequest struct {
	MessageID uint64                 `json:"message_id" validate:"required"`
	Targets   []forwardTargetRequest `json:"targets" validate:"required,min=1,max=50,dive"`
}

type unreadResponse struct {
	ConversationID uint64 `json:"conversation_id"`
	Unread         int64  `json:"unread"`
}

type markReadResponse struct {
	Advanced []uint64 `json:"advanced"`
}

type markAllReadResponse struct {
	ConversationID    uint64 `json:"conversation_id"`
	LastReadMessageID uint64 `json:"last_read_message_id"`
}

type statusResponse struct {
	MessageID   uint64                 `json:"message_id"`
	UserID      uint64                 `json:"user_id"`
	Status      dbmysql.DeliveryStatus `json:"status"`
	DeliveredAt *time.Time             `json:"delivered_at,omitempty"`
	ReadAt      *time.Time             `json:"read_at,omitempty"`
}

type okResponse struct {
	OK bool `json:"ok"`
}
