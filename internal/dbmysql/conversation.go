package dbmysql

import (
	"fmt"
	"time"
)

type ConversationKind string

const (
	ConversationDirect  ConversationKind = "direct"
	ConversationGroup   ConversationKind = "group"
	ConversationChannel ConversationKind = "channel"
)

func (k ConversationKind) IsValid() bool {
	return k == ConversationDirect || k == ConversationGroup || k == ConversationChannel
}

// IsGroupLike reports whether the container is a multi-member group or channel.
func (k ConversationKind) IsGroupLike() bool {
	return k == ConversationGroup || k == ConversationChannel
}

type Conversation struct {
	ID        uint64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind      ConversationKind `gorm:"size:16;not null;index" json:"kind"`
	Title     *string          `gorm:"size:255" json:"title,omitempty"`
	DirectKey *string          `gorm:"size:64;uniqueIndex" json:"-"` // "<min>:<max>" for direct conversations
	CreatedBy uint64           `gorm:"not null" json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// DirectKey canonicalises an unordered user pair.
func DirectKey(userA, userB uint64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

func (r MemberRole) CanModerate() bool {
	return r == RoleOwner || r == RoleAdmin
}

type ConversationMember struct {
	ConversationID    uint64     `gorm:"primaryKey;autoIncrement:false" json:"conversation_id"`
	UserID            uint64     `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Role              MemberRole `gorm:"size:16;not null;default:member" json:"role"`
	PinnedAt          *time.Time `json:"pinned_at,omitempty"`
	MutedUntil        *time.Time `json:"muted_until,omitempty"`
	LastReadMessageID uint64     `gorm:"not null;default:0" json:"last_read_message_id"`
	JoinedAt          time.Time  `gorm:"autoCreateTime" json:"joined_at"`
}

func (ConversationMember) TableName() string {
	return "conversation_members"
}

func (m *ConversationMember) IsMuted(now time.Time) bool {
	return m.MutedUntil != nil && m.MutedUntil.After(now)
}
