package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gochat/internal/chat/cursor"
	"gochat/internal/common"
	"gochat/internal/dbmysql"
)

type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Conversations() ConversationRepository {
	return NewConversationRepository(s.db)
}

func (s *gormStore) Messages() MessageRepository {
	return NewMessageRepository(s.db)
}

func (s *gormStore) Statuses() StatusRepository {
	return NewStatusRepository(s.db)
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.ErrNotFound
	}
	return err
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) CreateConversation(ctx context.Context, conv *dbmysql.Conversation, members []dbmysql.ConversationMember) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		if len(members) == 0 {
			return nil
		}
		for i := range members {
			members[i].ConversationID = conv.ID
		}
		return tx.Create(&members).Error
	})
}

func (r *conversationRepo) ConversationByID(ctx context.Context, id uint64) (*dbmysql.Conversation, error) {
	var conv dbmysql.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

func (r *conversationRepo) ConversationByDirectKey(ctx context.Context, key string) (*dbmysql.Conversation, error) {
	var conv dbmysql.Conversation
	if err := r.db.WithContext(ctx).Where("direct_key = ?", key).First(&conv).Error; err != nil {
		return nil, notFound(err)
	}
	return &conv, nil
}

func (r *conversationRepo) ConversationsByIDs(ctx context.Context, ids []uint64) ([]dbmysql.Conversation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var convs []dbmysql.Conversation
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&convs).Error
	return convs, err
}

func (r *conversationRepo) Member(ctx context.Context, conversationID, userID uint64) (*dbmysql.ConversationMember, error) {
	var m dbmysql.ConversationMember
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *conversationRepo) MemberIDs(ctx context.Context, conversationID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&dbmysql.ConversationMember{}).
		Where("conversation_id = ?", conversationID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *conversationRepo) MembershipsForUser(ctx context.Context, userID uint64) ([]dbmysql.ConversationMember, error) {
	var members []dbmysql.ConversationMember
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&members).Error
	return members, err
}

func (r *conversationRepo) SetPinned(ctx context.Context, conversationID, userID uint64, pinnedAt *time.Time) error {
	return r.db.WithContext(ctx).Model(&dbmysql.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("pinned_at", pinnedAt).Error
}

func (r *conversationRepo) SetMuted(ctx context.Context, conversationID, userID uint64, until *time.Time) error {
	return r.db.WithContext(ctx).Model(&dbmysql.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("muted_until", until).Error
}

func (r *conversationRepo) AdvanceLastRead(ctx context.Context, conversationID, userID, messageID uint64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&dbmysql.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ? AND last_read_message_id < ?", conversationID, userID, messageID).
		Update("last_read_message_id", messageID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *conversationRepo) Touch(ctx context.Context, conversationID uint64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&dbmysql.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumn("updated_at", at).Error
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) CreateMessage(ctx context.Context, msg *dbmysql.Message) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(msg).Error; err != nil {
		return err
	}
	if len(msg.Attachments) == 0 {
		return nil
	}
	for i := range msg.Attachments {
		msg.Attachments[i].MessageID = msg.ID
		if msg.Attachments[i].CreatedAt.IsZero() {
			msg.Attachments[i].CreatedAt = msg.CreatedAt
		}
	}
	if err := db.Create(&msg.Attachments).Error; err != nil {
		return fmt.Errorf("insert attachments: %w", err)
	}
	return nil
}

func (r *messageRepo) MessageByID(ctx context.Context, id uint64) (*dbmysql.Message, error) {
	var msg dbmysql.Message
	if err := r.db.WithContext(ctx).Preload("Attachments").Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

func (r *messageRepo) MessageByClientUUID(ctx context.Context, clientUUID string) (*dbmysql.Message, error) {
	var msg dbmysql.Message
	err := r.db.WithContext(ctx).Preload("Attachments").Where("client_uuid = ?", clientUUID).First(&msg).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

func (r *messageRepo) MessagesInConversation(ctx context.Context, conversationID uint64, ids []uint64) ([]dbmysql.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var msgs []dbmysql.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND id IN ?", conversationID, ids).
		Order("id").
		Find(&msgs).Error
	return msgs, err
}

// visibleTo excludes expired messages and messages the viewer deleted for themself.
func visibleTo(f HistoryFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("messages.conversation_id = ?", f.ConversationID).
			Where("(messages.expires_at IS NULL OR messages.expires_at > ?)", f.Now).
			Where("NOT EXISTS (SELECT 1 FROM message_hides h WHERE h.message_id = messages.id AND h.user_id = ?)", f.ViewerID)
	}
}

func (r *messageRepo) HistoryAfter(ctx context.Context, f HistoryFilter, after *cursor.Position, limit int) ([]dbmysql.Message, error) {
	q := r.db.WithContext(ctx).Scopes(visibleTo(f))
	if after != nil {
		q = q.Where("(messages.created_at > ? OR (messages.created_at = ? AND messages.id > ?))",
			after.CreatedAt, after.CreatedAt, after.ID)
	}
	var msgs []dbmysql.Message
	err := q.Order("messages.created_at ASC, messages.id ASC").
		Limit(limit).
		Preload("Attachments").
		Find(&msgs).Error
	return msgs, err
}

func (r *messageRepo) HistoryPage(ctx context.Context, f HistoryFilter, offset, limit int) ([]dbmysql.Message, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&dbmysql.Message{}).Scopes(visibleTo(f)).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var msgs []dbmysql.Message
	err := r.db.WithContext(ctx).Scopes(visibleTo(f)).
		Order("messages.created_at DESC, messages.id DESC").
		Offset(offset).
		Limit(limit).
		Preload("Attachments").
		Find(&msgs).Error
	return msgs, total, err
}

func (r *messageRepo) CountUnread(ctx context.Context, f HistoryFilter, afterID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&dbmysql.Message{}).Scopes(visibleTo(f)).
		Where("messages.id > ? AND messages.sender_id <> ?", afterID, f.ViewerID).
		Count(&n).Error
	return n, err
}

func (r *messageRepo) LatestMessageID(ctx context.Context, conversationID uint64) (uint64, error) {
	var id uint64
	err := r.db.WithContext(ctx).Model(&dbmysql.Message{}).
		Where("conversation_id = ?", conversationID).
		Select("COALESCE(MAX(id), 0)").
		Scan(&id).Error
	return id, err
}

func (r *messageRepo) Hide(ctx context.Context, messageID, userID uint64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&dbmysql.MessageHide{MessageID: messageID, UserID: userID}).Error
}

func (r *messageRepo) IsHidden(ctx context.Context, messageID, userID uint64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&dbmysql.MessageHide{}).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *messageRepo) UpdateBody(ctx context.Context, id uint64, body string, encrypted bool, editedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&dbmysql.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"body":         body,
			"is_encrypted": encrypted,
			"edited_at":    editedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *messageRepo) DeleteMessage(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&dbmysql.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", id).Delete(&dbmysql.MessageStatus{}).Error; err != nil {
			return err
		}
		if err := tx.Where("message_id = ?", id).Delete(&dbmysql.MessageHide{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&dbmysql.Message{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return common.ErrNotFound
		}
		return nil
	})
}

func (r *messageRepo) ExpiredMessages(ctx context.Context, now time.Time, limit int) ([]dbmysql.Message, error) {
	var msgs []dbmysql.Message
	err := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Order("id").
		Limit(limit).
		Preload("Attachments").
		Find(&msgs).Error
	return msgs, err
}

type statusRepo struct {
	db *gorm.DB
}

func NewStatusRepository(db *gorm.DB) StatusRepository {
	return &statusRepo{db: db}
}

func (r *statusRepo) InsertIfAbsent(ctx context.Context, st *dbmysql.MessageStatus) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(st)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *statusRepo) AdvanceStatus(ctx context.Context, messageID, userID uint64, to dbmysql.DeliveryStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	if to >= dbmysql.StatusDelivered {
		updates["delivered_at"] = gorm.Expr("COALESCE(delivered_at, ?)", at)
	}
	if to == dbmysql.StatusRead {
		updates["read_at"] = gorm.Expr("COALESCE(read_at, ?)", at)
	}
	res := r.db.WithContext(ctx).Model(&dbmysql.MessageStatus{}).
		Where("message_id = ? AND user_id = ? AND status < ?", messageID, userID, to).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *statusRepo) Status(ctx context.Context, messageID, userID uint64) (*dbmysql.MessageStatus, error) {
	var st dbmysql.MessageStatus
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&st).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &st, nil
}

func (r *statusRepo) StatusesForMessage(ctx context.Context, messageID uint64) ([]dbmysql.MessageStatus, error) {
	var statuses []dbmysql.MessageStatus
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("user_id").
		Find(&statuses).Error
	return statuses, err
}
