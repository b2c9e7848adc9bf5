package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"gochat/internal/chat/cursor"
	"gochat/internal/dbmysql"
)

// ConversationRepository owns conversations and their member pivot rows.
type ConversationRepository interface {
	// CreateConversation inserts conv and its members atomically. A duplicate
	// direct_key surfaces as a unique violation.
	CreateConversation(ctx context.Context, conv *dbmysql.Conversation, members []dbmysql.ConversationMember) error
	ConversationByID(ctx context.Context, id uint64) (*dbmysql.Conversation, error)
	ConversationByDirectKey(ctx context.Context, key string) (*dbmysql.Conversation, error)
	ConversationsByIDs(ctx context.Context, ids []uint64) ([]dbmysql.Conversation, error)
	Member(ctx context.Context, conversationID, userID uint64) (*dbmysql.ConversationMember, error)
	MemberIDs(ctx context.Context, conversationID uint64) ([]uint64, error)
	MembershipsForUser(ctx context.Context, userID uint64) ([]dbmysql.ConversationMember, error)
	SetPinned(ctx context.Context, conversationID, userID uint64, pinnedAt *time.Time) error
	SetMuted(ctx context.Context, conversationID, userID uint64, until *time.Time) error
	// AdvanceLastRead moves the read cursor forward only; it reports whether
	// the row changed.
	AdvanceLastRead(ctx context.Context, conversationID, userID, messageID uint64) (bool, error)
	Touch(ctx context.Context, conversationID uint64, at time.Time) error
}

// HistoryFilter scopes message reads to what one viewer may see.
type HistoryFilter struct {
	ConversationID uint64
	ViewerID       uint64
	Now            time.Time
}

type MessageRepository interface {
	// CreateMessage inserts msg and its attachments. Run it inside Transaction.
	CreateMessage(ctx context.Context, msg *dbmysql.Message) error
	MessageByID(ctx context.Context, id uint64) (*dbmysql.Message, error)
	MessageByClientUUID(ctx context.Context, clientUUID string) (*dbmysql.Message, error)
	MessagesInConversation(ctx context.Context, conversationID uint64, ids []uint64) ([]dbmysql.Message, error)
	// HistoryAfter returns up to limit visible messages strictly after the
	// position, ascending by (created_at, id).
	HistoryAfter(ctx context.Context, f HistoryFilter, after *cursor.Position, limit int) ([]dbmysql.Message, error)
	// HistoryPage returns visible messages newest first plus the total.
	HistoryPage(ctx context.Context, f HistoryFilter, offset, limit int) ([]dbmysql.Message, int64, error)
	CountUnread(ctx context.Context, f HistoryFilter, afterID uint64) (int64, error)
	LatestMessageID(ctx context.Context, conversationID uint64) (uint64, error)
	Hide(ctx context.Context, messageID, userID uint64) error
	IsHidden(ctx context.Context, messageID, userID uint64) (bool, error)
	UpdateBody(ctx context.Context, id uint64, body string, encrypted bool, editedAt time.Time) error
	// DeleteMessage purges the message with its attachments, statuses and hides.
	DeleteMessage(ctx context.Context, id uint64) error
	ExpiredMessages(ctx context.Context, now time.Time, limit int) ([]dbmysql.Message, error)
}

type StatusRepository interface {
	// InsertIfAbsent creates the row unless one exists for the same
	// (message_id, user_id); it reports whether a row was inserted.
	InsertIfAbsent(ctx context.Context, st *dbmysql.MessageStatus) (bool, error)
	// AdvanceStatus raises the stored status to `to` only when it is lower.
	AdvanceStatus(ctx context.Context, messageID, userID uint64, to dbmysql.DeliveryStatus, at time.Time) (bool, error)
	Status(ctx context.Context, messageID, userID uint64) (*dbmysql.MessageStatus, error)
	StatusesForMessage(ctx context.Context, messageID uint64) ([]dbmysql.MessageStatus, error)
}

// Store groups the repositories behind one transaction boundary.
type Store interface {
	Conversations() ConversationRepository
	Messages() MessageRepository
	Statuses() StatusRepository
	// Transaction runs fn against a Store bound to a single transaction. A
	// non-nil error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// IsUniqueViolation recognises duplicate-key failures from either driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}
