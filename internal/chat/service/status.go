package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gochat/internal/chat/repository"
	"gochat/internal/common"
	"gochat/internal/dbmysql"
)

func stampStatus(st *dbmysql.MessageStatus, at time.Time) {
	if st.Status >= dbmysql.StatusDelivered {
		st.DeliveredAt = &at
	}
	if st.Status == dbmysql.StatusRead {
		st.ReadAt = &at
	}
}

// advance inserts the row at `to` or raises an existing row with a guarded
// update. It never lowers a status.
func (s *chatService) advance(ctx context.Context, store repository.Store, msg *dbmysql.Message, userID uint64, to dbmysql.DeliveryStatus) (*dbmysql.MessageStatus, bool, error) {
	now := s.now()
	row := &dbmysql.MessageStatus{MessageID: msg.ID, UserID: userID, Status: to, UpdatedAt: now}
	stampStatus(row, now)

	changed, err := store.Statuses().InsertIfAbsent(ctx, row)
	if err != nil {
		return nil, false, fmt.Errorf("insert status: %w", err)
	}
	if !changed {
		changed, err = store.Statuses().AdvanceStatus(ctx, msg.ID, userID, to, now)
		if err != nil {
			return nil, false, fmt.Errorf("advance status: %w", err)
		}
	}

	st, err := store.Statuses().Status(ctx, msg.ID, userID)
	if err != nil {
		return nil, false, fmt.Errorf("reload status: %w", err)
	}
	return st, changed, nil
}

func (s *chatService) Advance(ctx context.Context, messageID, userID uint64, to dbmysql.DeliveryStatus) (*dbmysql.MessageStatus, bool, error) {
	if to != dbmysql.StatusDelivered && to != dbmysql.StatusRead {
		return nil, false, common.Validationf("status must be delivered or read")
	}
	msg, vis, err := s.visibilityOf(ctx, s.store, messageID, userID)
	if err != nil {
		return nil, false, err
	}
	if msg == nil {
		return nil, false, common.ErrNotFound
	}
	if _, err := s.member(ctx, s.store, msg.ConversationID, userID); err != nil {
		return nil, false, err
	}
	if vis.State == Purged {
		return nil, false, common.ErrNotFound
	}

	// the sender's own row stays at sent
	if msg.SenderID == userID {
		st, err := s.store.Statuses().Status(ctx, msg.ID, userID)
		if isNotFound(err) {
			return &dbmysql.MessageStatus{MessageID: msg.ID, UserID: userID, Status: dbmysql.StatusSent, UpdatedAt: msg.CreatedAt}, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("load status: %w", err)
		}
		return st, false, nil
	}

	st, changed, err := s.advance(ctx, s.store, msg, userID, to)
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.emitStatus(ctx, msg, st)
	}
	return st, changed, nil
}

type statusChange struct {
	msg dbmysql.Message
	st  *dbmysql.MessageStatus
}

// MarkRead advances every listed message of the conversation to read and
// moves the read cursor to the highest listed id. Ids outside the
// conversation and the user's own messages are skipped.
func (s *chatService) MarkRead(ctx context.Context, conversationID, userID uint64, messageIDs []uint64) ([]uint64, error) {
	if _, err := s.member(ctx, s.store, conversationID, userID); err != nil {
		return nil, err
	}
	ids := uniqueIDs(messageIDs...)
	if len(ids) == 0 {
		return []uint64{}, nil
	}

	var changes []statusChange
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		changes = changes[:0]
		msgs, err := tx.Messages().MessagesInConversation(ctx, conversationID, ids)
		if err != nil {
			return fmt.Errorf("load messages: %w", err)
		}

		var maxID uint64
		for i := range msgs {
			msg := &msgs[i]
			if msg.ID > maxID {
				maxID = msg.ID
			}
			if msg.SenderID == userID {
				continue
			}
			st, changed, err := s.advance(ctx, tx, msg, userID, dbmysql.StatusRead)
			if err != nil {
				return err
			}
			if changed {
				changes = append(changes, statusChange{msg: *msg, st: st})
			}
		}
		if maxID == 0 {
			return nil
		}
		if _, err := tx.Conversations().AdvanceLastRead(ctx, conversationID, userID, maxID); err != nil {
			return fmt.Errorf("advance last read: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	advanced := make([]uint64, 0, len(changes))
	for i := range changes {
		advanced = append(advanced, changes[i].msg.ID)
		s.emitStatus(ctx, &changes[i].msg, changes[i].st)
	}
	return advanced, nil
}

// MarkAllRead jumps the read cursor to the newest message and returns the
// cursor value. Per-message receipts are left alone.
func (s *chatService) MarkAllRead(ctx context.Context, conversationID, userID uint64) (uint64, error) {
	m, err := s.member(ctx, s.store, conversationID, userID)
	if err != nil {
		return 0, err
	}
	latest, err := s.store.Messages().LatestMessageID(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("latest message: %w", err)
	}
	if latest <= m.LastReadMessageID {
		return m.LastReadMessageID, nil
	}
	if _, err := s.store.Conversations().AdvanceLastRead(ctx, conversationID, userID, latest); err != nil {
		return 0, fmt.Errorf("advance last read: %w", err)
	}
	return latest, nil
}

func (s *chatService) Receipts(ctx context.Context, messageID, actorID uint64) (*Receipts, error) {
	msg, vis, err := s.visibilityOf(ctx, s.store, messageID, actorID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, common.ErrNotFound
	}
	if _, err := s.member(ctx, s.store, msg.ConversationID, actorID); err != nil {
		return nil, err
	}
	if vis.State != Visible {
		return nil, common.ErrNotFound
	}

	memberIDs, err := s.store.Conversations().MemberIDs(ctx, msg.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	rows, err := s.store.Statuses().StatusesForMessage(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("load statuses: %w", err)
	}
	byUser := make(map[uint64]dbmysql.MessageStatus, len(rows))
	for _, r := range rows {
		byUser[r.UserID] = r
	}

	out := &Receipts{MessageID: msg.ID, Aggregate: dbmysql.StatusRead, Recipients: []RecipientStatus{}}
	for _, uid := range memberIDs {
		if uid == msg.SenderID {
			continue
		}
		rs := RecipientStatus{UserID: uid, Status: dbmysql.StatusSent}
		if r, ok := byUser[uid]; ok {
			rs.Status = r.Status
			rs.DeliveredAt = r.DeliveredAt
			rs.ReadAt = r.ReadAt
		}
		if rs.Status < out.Aggregate {
			out.Aggregate = rs.Status
		}
		out.Recipients = append(out.Recipients, rs)
	}
	if len(out.Recipients) == 0 {
		out.Aggregate = dbmysql.StatusSent
	}
	return out, nil
}

func (s *chatService) UnreadCount(ctx context.Context, conversationID, userID uint64) (int64, error) {
	m, err := s.member(ctx, s.store, conversationID, userID)
	if err != nil {
		return 0, err
	}
	n, err := s.store.Messages().CountUnread(ctx, repository.HistoryFilter{
		ConversationID: conversationID,
		ViewerID:       userID,
		Now:            s.now(),
	}, m.LastReadMessageID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
