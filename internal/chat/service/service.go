// Package service implements conversation state and message delivery on top
// of the repository Store.
package service

import (
	"context"
	"time"

	"gochat/internal/chat/forward"
	"gochat/internal/chat/repository"
	"gochat/internal/config"
	"gochat/internal/dbmysql"
)

//go:generate mockgen -source=service.go -destination=../handler/mocks/chat_service.go -package=mocks

// ChatService is what the transport layer talks to. Every operation takes
// the acting user explicitly.
type ChatService interface {
	// Conversation directory
	FindOrCreateDirect(ctx context.Context, userA, userB uint64) (*dbmysql.Conversation, error)
	CreateGroup(ctx context.Context, actorID uint64, kind dbmysql.ConversationKind, title string, memberIDs []uint64) (*dbmysql.Conversation, error)
	EnsureMember(ctx context.Context, conversationID, userID uint64) (*dbmysql.ConversationMember, error)
	ListForUser(ctx context.Context, actorID uint64) ([]ConversationSummary, error)
	SetPinned(ctx context.Context, conversationID, actorID uint64, pinned bool) (*dbmysql.ConversationMember, error)
	SetMuted(ctx context.Context, conversationID, actorID uint64, until *time.Time) (*dbmysql.ConversationMember, error)
	AdvanceLastRead(ctx context.Context, conversationID, userID, messageID uint64) (bool, error)

	// Messages
	Send(ctx context.Context, in SendInput) (*MessageView, bool, error)
	Get(ctx context.Context, messageID, actorID uint64) (*MessageView, error)
	History(ctx context.Context, conversationID, actorID uint64, q HistoryQuery) (*HistoryPage, error)
	EditBody(ctx context.Context, messageID, actorID uint64, body string) (*MessageView, error)
	DeleteForMe(ctx context.Context, messageID, actorID uint64) error
	DeleteForEveryone(ctx context.Context, messageID, actorID uint64) error
	Forward(ctx context.Context, actorID, messageID uint64, targets []ForwardTarget) ([]ForwardResult, error)

	// Delivery status and unread
	Advance(ctx context.Context, messageID, userID uint64, status dbmysql.DeliveryStatus) (*dbmysql.MessageStatus, bool, error)
	MarkRead(ctx context.Context, conversationID, userID uint64, messageIDs []uint64) ([]uint64, error)
	MarkAllRead(ctx context.Context, conversationID, userID uint64) (uint64, error)
	Receipts(ctx context.Context, messageID, actorID uint64) (*Receipts, error)
	UnreadCount(ctx context.Context, conversationID, userID uint64) (int64, error)

	// PurgeExpired hard deletes messages whose TTL has passed.
	PurgeExpired(ctx context.Context) (int, error)
}

type Options struct {
	DefaultLimit    int
	MaxLimit        int
	DefaultPageSize int
	MaxForwardDepth int
	MaxBodyLength   int
	ExpiryBatchSize int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultLimit:    cfg.Chat.DefaultLimit,
		MaxLimit:        cfg.Chat.MaxLimit,
		DefaultPageSize: cfg.Chat.DefaultPageSize,
		MaxForwardDepth: cfg.Chat.MaxForwardDepth,
		MaxBodyLength:   cfg.Chat.MaxBodyLength,
		ExpiryBatchSize: cfg.Chat.ExpiryBatchSize,
	}
}

type chatService struct {
	store    repository.Store
	notifier Notifier
	blobs    BlobStore
	cipher   BodyCipher
	users    UserDirectory
	chains   *forward.Builder
	opts     Options
	now      func() time.Time
}

// NewChatService wires the service. notifier, blobs, cipher and users may be
// nil: events are then dropped, forwarded attachments share the source blob,
// bodies are stored as plaintext and forward labels fall back to user ids.
func NewChatService(
	store repository.Store,
	notifier Notifier,
	blobs BlobStore,
	cipher BodyCipher,
	users UserDirectory,
	opts Options,
) ChatService {
	if opts.MaxBodyLength <= 0 {
		opts.MaxBodyLength = 10000
	}
	if opts.ExpiryBatchSize <= 0 {
		opts.ExpiryBatchSize = 200
	}

	var sealer forward.Sealer
	if cipher != nil {
		sealer = cipher
	}

	return &chatService{
		store:    store,
		notifier: notifier,
		blobs:    blobs,
		cipher:   cipher,
		users:    users,
		chains:   forward.NewBuilder(opts.MaxForwardDepth, sealer),
		opts:     opts,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}
