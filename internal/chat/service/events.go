package service

import (
	"context"

	"gochat/internal/dbmysql"
	"gochat/internal/fanout"
	"gochat/internal/logger"
)

// emit hands an event to the notifier. Call it only after the transaction
// that produced the change has committed.
func (s *chatService) emit(ctx context.Context, name string, messageID, conversationID uint64, targets []uint64, payload interface{}) {
	if s.notifier == nil || len(targets) == 0 {
		return
	}
	body, err := fanout.PayloadOf(payload)
	if err != nil {
		logger.FromContext(ctx).Error().Err(err).Str("event", name).Msg("cannot encode event payload")
		return
	}
	s.notifier.Notify(ctx, fanout.Event{
		Name:           name,
		MessageID:      messageID,
		ConversationID: conversationID,
		Targets:        targets,
		Payload:        body,
		OccurredAt:     s.now(),
	})
}

func without(ids []uint64, skip uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}

func uniqueIDs(ids ...uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// emitStatus tells the sender about a recipient's progress and syncs the
// recipient's other devices.
func (s *chatService) emitStatus(ctx context.Context, msg *dbmysql.Message, st *dbmysql.MessageStatus) {
	s.emit(ctx, fanout.EventMessageStatusUpdated, msg.ID, msg.ConversationID,
		uniqueIDs(msg.SenderID, st.UserID), st)
}

type deletePayload struct {
	MessageID  uint64     `json:"message_id"`
	Scope      string     `json:"scope"`
	Visibility Visibility `json:"visibility"`
}
