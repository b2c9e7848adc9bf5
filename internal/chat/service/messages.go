package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"gochat/internal/chat/cursor"
	"gochat/internal/chat/forward"
	"gochat/internal/chat/repository"
	"gochat/internal/common"
	"gochat/internal/dbmysql"
	"gochat/internal/fanout"
	"gochat/internal/logger"
)

func hasText(body *string) bool {
	return body != nil && strings.TrimSpace(*body) != ""
}

func (s *chatService) checkLength(body string) error {
	if utf8.RuneCountInString(body) > s.opts.MaxBodyLength {
		return common.Validationf("body exceeds %d characters", s.opts.MaxBodyLength)
	}
	return nil
}

func canonicalClientUUID(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, common.Validationf("client_uuid must be a UUID")
	}
	canonical := parsed.String()
	return &canonical, nil
}

// replay returns the message already stored under clientUUID, or nil.
func (s *chatService) replay(ctx context.Context, clientUUID string, senderID uint64) (*dbmysql.Message, error) {
	existing, err := s.store.Messages().MessageByClientUUID(ctx, clientUUID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup client_uuid: %w", err)
	}
	if existing.SenderID != senderID {
		return nil, common.Validationf("client_uuid is already in use")
	}
	return existing, nil
}

// sameContainer reports whether a relational forward link may be kept.
// Channels count as groups.
func sameContainer(a, b dbmysql.ConversationKind) bool {
	return a.IsGroupLike() == b.IsGroupLike()
}

func (s *chatService) senderLabel(ctx context.Context, userID uint64) string {
	if s.users != nil {
		if handle, err := s.users.Handle(ctx, userID); err == nil && handle != "" {
			return handle
		}
	}
	return fmt.Sprintf("user #%d", userID)
}

type forwardSource struct {
	msg      *dbmysql.Message
	conv     *dbmysql.Conversation
	chain    forward.Chain
	body     string
	copied   []string
	attached []dbmysql.Attachment
}

// prepareForward validates the source and copies what the new message
// carries over. Copied blobs are listed so a failed send can remove them.
func (s *chatService) prepareForward(ctx context.Context, sourceID, actorID uint64) (*forwardSource, error) {
	msg, vis, err := s.visibilityOf(ctx, s.store, sourceID, actorID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, common.ErrInvalidTarget
	}
	srcConv, _, err := s.membership(ctx, s.store, msg.ConversationID, actorID)
	if err != nil {
		return nil, err
	}
	if vis.State != Visible {
		return nil, common.ErrInvalidTarget
	}

	src := &forwardSource{msg: msg, conv: srcConv, body: s.plainBody(ctx, msg)}
	src.chain, err = s.chains.Build(forward.Origin{
		MessageID:   msg.ID,
		SenderLabel: s.senderLabel(ctx, msg.SenderID),
		Body:        src.body,
		CreatedAt:   msg.CreatedAt,
		SourceKind:  forward.KindOf(srcConv.Kind == dbmysql.ConversationDirect),
		Chain:       msg.Chain(),
	})
	if err != nil {
		return nil, fmt.Errorf("build forward chain: %w", err)
	}

	for _, att := range msg.Attachments {
		ref := att.StorageRef
		if s.blobs != nil {
			ref, err = s.blobs.CopyFile(ctx, att.StorageRef)
			if err != nil {
				s.discardBlobs(ctx, src.copied)
				return nil, fmt.Errorf("copy attachment %s: %w", att.StorageRef, err)
			}
			src.copied = append(src.copied, ref)
		}
		src.attached = append(src.attached, dbmysql.Attachment{
			StorageRef: ref,
			MimeType:   att.MimeType,
			SizeBytes:  att.SizeBytes,
			FileName:   att.FileName,
		})
	}
	return src, nil
}

// checkBlobs makes sure every client supplied ref names an uploaded blob.
func (s *chatService) checkBlobs(ctx context.Context, atts []AttachmentInput) error {
	if s.blobs == nil {
		return nil
	}
	for _, att := range atts {
		ok, err := s.blobs.FileExists(ctx, att.StorageRef)
		if err != nil {
			return fmt.Errorf("check attachment %s: %w", att.StorageRef, err)
		}
		if !ok {
			return common.Validationf("attachment %s does not exist", att.StorageRef)
		}
	}
	return nil
}

func (s *chatService) discardBlobs(ctx context.Context, refs []string) {
	if s.blobs == nil {
		return
	}
	for _, ref := range refs {
		if err := s.blobs.DeleteFile(ctx, ref); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("storage_ref", ref).Msg("blob cleanup failed")
		}
	}
}

func (s *chatService) Send(ctx context.Context, in SendInput) (*MessageView, bool, error) {
	conv, _, err := s.membership(ctx, s.store, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, false, err
	}

	body := in.Body
	if !hasText(body) {
		body = nil
	}
	if body == nil && len(in.Attachments) == 0 && in.ForwardFrom == nil {
		return nil, false, common.ErrEmptyMessage
	}
	if body != nil {
		if err := s.checkLength(*body); err != nil {
			return nil, false, err
		}
	}
	refs := make(map[string]struct{}, len(in.Attachments))
	for _, att := range in.Attachments {
		if strings.TrimSpace(att.StorageRef) == "" {
			return nil, false, common.Validationf("attachment storage_ref is required")
		}
		if _, dup := refs[att.StorageRef]; dup {
			return nil, false, common.Validationf("attachment %s is listed twice", att.StorageRef)
		}
		refs[att.StorageRef] = struct{}{}
	}

	clientUUID, err := canonicalClientUUID(in.ClientUUID)
	if err != nil {
		return nil, false, err
	}
	if clientUUID != nil {
		existing, err := s.replay(ctx, *clientUUID, in.SenderID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			v := s.view(ctx, existing)
			return &v, true, nil
		}
	}

	if in.ReplyTo != nil {
		parent, err := s.store.Messages().MessageByID(ctx, *in.ReplyTo)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, false, fmt.Errorf("load reply target: %w", err)
		}
		if parent == nil || parent.ConversationID != in.ConversationID {
			return nil, false, common.ErrInvalidTarget
		}
	}
	if err := s.checkBlobs(ctx, in.Attachments); err != nil {
		return nil, false, err
	}

	now := s.now()
	msg := &dbmysql.Message{
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		ReplyToID:      in.ReplyTo,
		ClientUUID:     clientUUID,
		CreatedAt:      now,
	}
	if in.TTL > 0 {
		expires := now.Add(in.TTL)
		msg.ExpiresAt = &expires
	}
	for _, att := range in.Attachments {
		msg.Attachments = append(msg.Attachments, dbmysql.Attachment{
			StorageRef: att.StorageRef,
			MimeType:   att.MimeType,
			SizeBytes:  att.SizeBytes,
			FileName:   att.FileName,
			CreatedAt:  now,
		})
	}

	var copied []string
	if in.ForwardFrom != nil {
		src, err := s.prepareForward(ctx, *in.ForwardFrom, in.SenderID)
		if err != nil {
			return nil, false, err
		}
		copied = src.copied
		msg.SetChain(src.chain)
		if sameContainer(src.conv.Kind, conv.Kind) {
			msg.ForwardedFromID = &src.msg.ID
		}
		if body == nil && src.body != "" {
			b := src.body
			body = &b
		}
		for _, att := range src.attached {
			att.CreatedAt = now
			msg.Attachments = append(msg.Attachments, att)
		}
	} else {
		msg.SetChain(nil)
	}

	if body != nil {
		stored, encrypted, err := s.sealText(*body)
		if err != nil {
			s.discardBlobs(ctx, copied)
			return nil, false, err
		}
		msg.Body = &stored
		msg.IsEncrypted = encrypted
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Messages().CreateMessage(ctx, msg); err != nil {
			return err
		}
		if _, err := tx.Statuses().InsertIfAbsent(ctx, &dbmysql.MessageStatus{
			MessageID: msg.ID,
			UserID:    in.SenderID,
			Status:    dbmysql.StatusSent,
			UpdatedAt: now,
		}); err != nil {
			return err
		}
		return tx.Conversations().Touch(ctx, in.ConversationID, now)
	})
	if err != nil {
		s.discardBlobs(ctx, copied)
		if clientUUID != nil && repository.IsUniqueViolation(err) {
			existing, rerr := s.replay(ctx, *clientUUID, in.SenderID)
			if rerr != nil {
				return nil, false, rerr
			}
			if existing != nil {
				v := s.view(ctx, existing)
				return &v, true, nil
			}
		}
		if repository.IsUniqueViolation(err) && len(in.Attachments) > 0 {
			return nil, false, common.Validationf("attachment is already attached to another message")
		}
		return nil, false, fmt.Errorf("store message: %w", err)
	}

	v := s.view(ctx, msg)
	if memberIDs, err := s.store.Conversations().MemberIDs(ctx, in.ConversationID); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Uint64("conversation_id", in.ConversationID).Msg("cannot load members for fan-out")
	} else {
		s.emit(ctx, fanout.EventMessageCreated, msg.ID, msg.ConversationID, without(memberIDs, in.SenderID), v)
	}
	return &v, false, nil
}

func (s *chatService) Get(ctx context.Context, messageID, actorID uint64) (*MessageView, error) {
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
	v := s.view(ctx, msg)
	return &v, nil
}

func (s *chatService) History(ctx context.Context, conversationID, actorID uint64, q HistoryQuery) (*HistoryPage, error) {
	if _, err := s.member(ctx, s.store, conversationID, actorID); err != nil {
		return nil, err
	}
	filter := repository.HistoryFilter{ConversationID: conversationID, ViewerID: actorID, Now: s.now()}

	var (
		page *HistoryPage
		rows []dbmysql.Message
	)
	if q.PageMode() {
		perPage := cursor.ClampLimit(q.PerPage, s.pageSize(), s.maxLimit())
		var total int64
		var err error
		rows, total, err = s.store.Messages().HistoryPage(ctx, filter, cursor.Offset(q.Page, perPage), perPage)
		if err != nil {
			return nil, fmt.Errorf("load history page: %w", err)
		}
		meta := cursor.NewPageMeta(q.Page, perPage, total)
		page = &HistoryPage{Page: &meta}
	} else {
		limit := cursor.ClampLimit(q.Limit, s.opts.DefaultLimit, s.maxLimit())
		after := cursor.Decode(q.Cursor)
		var err error
		rows, err = s.store.Messages().HistoryAfter(ctx, filter, after, limit+1)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		page = &HistoryPage{HasMore: len(rows) > limit}
		if page.HasMore {
			rows = rows[:limit]
		}
		switch {
		case len(rows) > 0:
			last := rows[len(rows)-1]
			page.NextCursor = cursor.Encode(cursor.Position{CreatedAt: last.CreatedAt, ID: last.ID})
		case after != nil:
			page.NextCursor = cursor.Encode(*after)
		}
	}

	page.Messages = s.views(ctx, rows)
	s.markDelivered(ctx, actorID, rows)
	return page, nil
}

func (s *chatService) pageSize() int {
	if s.opts.DefaultPageSize > 0 {
		return s.opts.DefaultPageSize
	}
	return cursor.DefaultPageSize
}

func (s *chatService) maxLimit() int {
	if s.opts.MaxLimit > 0 {
		return s.opts.MaxLimit
	}
	return cursor.MaxLimit
}

// markDelivered is best effort: a failure never fails the read.
func (s *chatService) markDelivered(ctx context.Context, viewerID uint64, rows []dbmysql.Message) {
	for i := range rows {
		msg := &rows[i]
		if msg.SenderID == viewerID {
			continue
		}
		st, changed, err := s.advance(ctx, s.store, msg, viewerID, dbmysql.StatusDelivered)
		if err != nil {
			logger.FromContext(ctx).Warn().Err(err).Uint64("message_id", msg.ID).Msg("mark delivered failed")
			continue
		}
		if changed {
			s.emitStatus(ctx, msg, st)
		}
	}
}

func (s *chatService) EditBody(ctx context.Context, messageID, actorID uint64, body string) (*MessageView, error) {
	msg, vis, err := s.visibilityOf(ctx, s.store, messageID, actorID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, common.ErrNotFound
	}
	conv, _, err := s.membership(ctx, s.store, msg.ConversationID, actorID)
	if err != nil {
		return nil, err
	}
	if vis.State != Visible {
		return nil, common.ErrNotFound
	}
	if !conv.Kind.IsGroupLike() {
		return nil, common.ErrEditNotSupported
	}
	if msg.SenderID != actorID {
		return nil, common.ErrNotOwner
	}
	if strings.TrimSpace(body) == "" {
		return nil, common.ErrEmptyMessage
	}
	if err := s.checkLength(body); err != nil {
		return nil, err
	}

	stored, encrypted, err := s.sealText(body)
	if err != nil {
		return nil, err
	}
	editedAt := s.now()
	if err := s.store.Messages().UpdateBody(ctx, msg.ID, stored, encrypted, editedAt); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("update body: %w", err)
	}

	msg.Body = &stored
	msg.IsEncrypted = encrypted
	msg.EditedAt = &editedAt
	v := s.view(ctx, msg)

	if memberIDs, err := s.store.Conversations().MemberIDs(ctx, msg.ConversationID); err == nil {
		s.emit(ctx, fanout.EventMessageEdited, msg.ID, msg.ConversationID, memberIDs, v)
	}
	return &v, nil
}

// DeleteForMe hides the message for the actor only. Repeating it is a no-op.
func (s *chatService) DeleteForMe(ctx context.Context, messageID, actorID uint64) error {
	msg, err := s.store.Messages().MessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("load message: %w", err)
	}
	if _, err := s.member(ctx, s.store, msg.ConversationID, actorID); err != nil {
		return err
	}
	if err := s.store.Messages().Hide(ctx, messageID, actorID); err != nil {
		return fmt.Errorf("hide message: %w", err)
	}

	s.emit(ctx, fanout.EventMessageDeleted, msg.ID, msg.ConversationID, []uint64{actorID}, deletePayload{
		MessageID:  msg.ID,
		Scope:      "me",
		Visibility: Visibility{State: DeletedForUser, UserID: actorID},
	})
	return nil
}

// DeleteForEveryone purges the message. The sender may always do it; owners
// and admins may do it in groups and channels.
func (s *chatService) DeleteForEveryone(ctx context.Context, messageID, actorID uint64) error {
	msg, err := s.store.Messages().MessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("load message: %w", err)
	}
	conv, member, err := s.membership(ctx, s.store, msg.ConversationID, actorID)
	if err != nil {
		return err
	}
	if msg.SenderID != actorID && !(conv.Kind.IsGroupLike() && member.Role.CanModerate()) {
		return common.ErrNotOwner
	}

	return s.purge(ctx, msg, "everyone")
}

func (s *chatService) purge(ctx context.Context, msg *dbmysql.Message, scope string) error {
	memberIDs, err := s.store.Conversations().MemberIDs(ctx, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	if err := s.store.Messages().DeleteMessage(ctx, msg.ID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("delete message: %w", err)
	}

	refs := make([]string, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		refs = append(refs, att.StorageRef)
	}
	s.discardBlobs(ctx, refs)

	s.emit(ctx, fanout.EventMessageDeleted, msg.ID, msg.ConversationID, memberIDs, deletePayload{
		MessageID:  msg.ID,
		Scope:      scope,
		Visibility: Visibility{State: Purged},
	})
	return nil
}

// Forward sends messageID into every target. Targets that are missing, of
// the wrong type or not joined by the actor are reported and skipped.
func (s *chatService) Forward(ctx context.Context, actorID, messageID uint64, targets []ForwardTarget) ([]ForwardResult, error) {
	if len(targets) == 0 {
		return nil, common.Validationf("targets are required")
	}
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

	results := make([]ForwardResult, 0, len(targets))
	for _, target := range targets {
		res := ForwardResult{Target: target}
		if err := s.checkForwardTarget(ctx, actorID, target); err != nil {
			res.Error = errorBody(err)
			results = append(results, res)
			continue
		}
		sent, _, err := s.Send(ctx, SendInput{
			ConversationID: target.ID,
			SenderID:       actorID,
			ForwardFrom:    &messageID,
		})
		if err != nil {
			logger.FromContext(ctx).Warn().Err(err).Uint64("target", target.ID).Msg("forward to target failed")
			res.Error = errorBody(err)
		} else {
			res.OK = true
			res.Message = sent
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *chatService) checkForwardTarget(ctx context.Context, actorID uint64, target ForwardTarget) error {
	conv, _, err := s.membership(ctx, s.store, target.ID, actorID)
	if err != nil {
		if errors.Is(err, common.ErrNotMember) {
			return common.ErrInvalidTarget
		}
		return err
	}
	switch target.Type {
	case TargetConversation:
		if conv.Kind != dbmysql.ConversationDirect {
			return common.ErrInvalidTarget
		}
	case TargetGroup:
		if !conv.Kind.IsGroupLike() {
			return common.ErrInvalidTarget
		}
	default:
		return common.ErrInvalidTarget
	}
	return nil
}

func errorBody(err error) *common.ErrorBody {
	kind := common.KindOf(err)
	msg := "internal error"
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	return &common.ErrorBody{Kind: string(kind), Message: msg}
}
