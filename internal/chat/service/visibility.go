package service

import (
	"context"
	"errors"
	"fmt"

	"gochat/internal/chat/forward"
	"gochat/internal/chat/repository"
	"gochat/internal/common"
	"gochat/internal/dbmysql"
	"gochat/internal/logger"
)

// VisibilityState is how one message looks to one viewer.
type VisibilityState string

const (
	Visible        VisibilityState = "visible"
	DeletedForUser VisibilityState = "deleted_for_user"
	Purged         VisibilityState = "purged"
)

// Visibility tags a state with the user it applies to (DeletedForUser only).
type Visibility struct {
	State  VisibilityState `json:"state"`
	UserID uint64          `json:"user_id,omitempty"`
}

// visibilityOf loads a message and classifies it for viewer. Expired rows the
// janitor has not reached yet already count as purged.
func (s *chatService) visibilityOf(ctx context.Context, store repository.Store, messageID, viewerID uint64) (*dbmysql.Message, Visibility, error) {
	msg, err := store.Messages().MessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, Visibility{State: Purged}, nil
		}
		return nil, Visibility{}, fmt.Errorf("load message %d: %w", messageID, err)
	}
	if msg.Expired(s.now()) {
		return msg, Visibility{State: Purged}, nil
	}
	hidden, err := store.Messages().IsHidden(ctx, messageID, viewerID)
	if err != nil {
		return nil, Visibility{}, fmt.Errorf("check hide: %w", err)
	}
	if hidden {
		return msg, Visibility{State: DeletedForUser, UserID: viewerID}, nil
	}
	return msg, Visibility{State: Visible}, nil
}

func (s *chatService) openText(ctx context.Context, text string, encrypted bool) (string, bool) {
	if !encrypted {
		return text, true
	}
	if s.cipher == nil {
		return "", false
	}
	plain, err := s.cipher.Open(text)
	if err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("cannot open sealed text")
		return "", false
	}
	return plain, true
}

func (s *chatService) sealText(text string) (string, bool, error) {
	if s.cipher == nil {
		return text, false, nil
	}
	sealed, err := s.cipher.Seal(text)
	if err != nil {
		return "", false, fmt.Errorf("seal body: %w", err)
	}
	return sealed, true, nil
}

// plainBody returns the decrypted body, or "" when there is none.
func (s *chatService) plainBody(ctx context.Context, msg *dbmysql.Message) string {
	if msg.Body == nil {
		return ""
	}
	plain, _ := s.openText(ctx, *msg.Body, msg.IsEncrypted)
	return plain
}

func (s *chatService) view(ctx context.Context, msg *dbmysql.Message) MessageView {
	v := MessageView{
		ID:              msg.ID,
		ConversationID:  msg.ConversationID,
		SenderID:        msg.SenderID,
		ReplyToID:       msg.ReplyToID,
		ForwardedFromID: msg.ForwardedFromID,
		ForwardChain:    msg.Chain(),
		Attachments:     msg.Attachments,
		IsEncrypted:     msg.IsEncrypted,
		ClientUUID:      msg.ClientUUID,
		ExpiresAt:       msg.ExpiresAt,
		EditedAt:        msg.EditedAt,
		CreatedAt:       msg.CreatedAt,
	}
	if msg.Body != nil {
		if plain, ok := s.openText(ctx, *msg.Body, msg.IsEncrypted); ok {
			v.Body = &plain
		}
	}
	for i, hop := range v.ForwardChain {
		if !hop.IsEncrypted {
			continue
		}
		if plain, ok := s.openText(ctx, hop.BodySnippet, true); ok {
			v.ForwardChain[i].BodySnippet = plain
		} else {
			v.ForwardChain[i].BodySnippet = ""
		}
	}
	if v.ForwardChain == nil {
		v.ForwardChain = forward.Chain{}
	}
	if v.Attachments == nil {
		v.Attachments = []dbmysql.Attachment{}
	}
	return v
}

func (s *chatService) views(ctx context.Context, msgs []dbmysql.Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		out = append(out, s.view(ctx, &msgs[i]))
	}
	return out
}
