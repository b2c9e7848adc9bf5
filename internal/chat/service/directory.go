package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gochat/internal/chat/repository"
	"gochat/internal/common"
	"gochat/internal/dbmysql"
)

func (s *chatService) FindOrCreateDirect(ctx context.Context, userA, userB uint64) (*dbmysql.Conversation, error) {
	if userA == 0 || userB == 0 {
		return nil, common.Validationf("user_id is required")
	}
	if userA == userB {
		return nil, common.Validationf("cannot open a direct conversation with yourself")
	}

	key := dbmysql.DirectKey(userA, userB)
	conv, err := s.store.Conversations().ConversationByDirectKey(ctx, key)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("lookup direct conversation: %w", err)
	}

	now := s.now()
	conv = &dbmysql.Conversation{
		Kind:      dbmysql.ConversationDirect,
		DirectKey: &key,
		CreatedBy: userA,
		CreatedAt: now,
		UpdatedAt: now,
	}
	members := []dbmysql.ConversationMember{
		{UserID: userA, Role: dbmysql.RoleMember, JoinedAt: now},
		{UserID: userB, Role: dbmysql.RoleMember, JoinedAt: now},
	}
	err = s.store.Conversations().CreateConversation(ctx, conv, members)
	if err == nil {
		return conv, nil
	}
	if !repository.IsUniqueViolation(err) {
		return nil, fmt.Errorf("create direct conversation: %w", err)
	}

	// lost the race; the winner's row is committed
	winner, err := s.store.Conversations().ConversationByDirectKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reload direct conversation: %w", err)
	}
	return winner, nil
}

func (s *chatService) CreateGroup(ctx context.Context, actorID uint64, kind dbmysql.ConversationKind, title string, memberIDs []uint64) (*dbmysql.Conversation, error) {
	if !kind.IsGroupLike() {
		return nil, common.Validationf("kind must be group or channel")
	}
	if actorID == 0 {
		return nil, common.Validationf("actor is required")
	}

	now := s.now()
	conv := &dbmysql.Conversation{
		Kind:      kind,
		CreatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if t := strings.TrimSpace(title); t != "" {
		conv.Title = &t
	}

	members := []dbmysql.ConversationMember{{UserID: actorID, Role: dbmysql.RoleOwner, JoinedAt: now}}
	for _, id := range uniqueIDs(memberIDs...) {
		if id == actorID {
			continue
		}
		members = append(members, dbmysql.ConversationMember{UserID: id, Role: dbmysql.RoleMember, JoinedAt: now})
	}

	if err := s.store.Conversations().CreateConversation(ctx, conv, members); err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}
	return conv, nil
}

// EnsureMember fails closed: a missing conversation is reported as NotMember.
func (s *chatService) EnsureMember(ctx context.Context, conversationID, userID uint64) (*dbmysql.ConversationMember, error) {
	return s.member(ctx, s.store, conversationID, userID)
}

func (s *chatService) member(ctx context.Context, store repository.Store, conversationID, userID uint64) (*dbmysql.ConversationMember, error) {
	m, err := store.Conversations().Member(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotMember
		}
		return nil, fmt.Errorf("load membership: %w", err)
	}
	return m, nil
}

// membership returns the conversation together with the actor's pivot row.
func (s *chatService) membership(ctx context.Context, store repository.Store, conversationID, userID uint64) (*dbmysql.Conversation, *dbmysql.ConversationMember, error) {
	m, err := s.member(ctx, store, conversationID, userID)
	if err != nil {
		return nil, nil, err
	}
	conv, err := store.Conversations().ConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrNotMember
		}
		return nil, nil, fmt.Errorf("load conversation: %w", err)
	}
	return conv, m, nil
}

func (s *chatService) SetPinned(ctx context.Context, conversationID, actorID uint64, pinned bool) (*dbmysql.ConversationMember, error) {
	if _, err := s.member(ctx, s.store, conversationID, actorID); err != nil {
		return nil, err
	}
	var pinnedAt *time.Time
	if pinned {
		now := s.now()
		pinnedAt = &now
	}
	if err := s.store.Conversations().SetPinned(ctx, conversationID, actorID, pinnedAt); err != nil {
		return nil, fmt.Errorf("set pinned: %w", err)
	}
	return s.member(ctx, s.store, conversationID, actorID)
}

func (s *chatService) SetMuted(ctx context.Context, conversationID, actorID uint64, until *time.Time) (*dbmysql.ConversationMember, error) {
	if _, err := s.member(ctx, s.store, conversationID, actorID); err != nil {
		return nil, err
	}
	if until != nil {
		u := until.UTC()
		until = &u
	}
	if err := s.store.Conversations().SetMuted(ctx, conversationID, actorID, until); err != nil {
		return nil, fmt.Errorf("set muted: %w", err)
	}
	return s.member(ctx, s.store, conversationID, actorID)
}

func (s *chatService) AdvanceLastRead(ctx context.Context, conversationID, userID, messageID uint64) (bool, error) {
	if _, err := s.member(ctx, s.store, conversationID, userID); err != nil {
		return false, err
	}
	changed, err := s.store.Conversations().AdvanceLastRead(ctx, conversationID, userID, messageID)
	if err != nil {
		return false, fmt.Errorf("advance last read: %w", err)
	}
	return changed, nil
}

// ListForUser orders pinned conversations first (latest pin on top), then
// the rest by recent activity.
func (s *chatService) ListForUser(ctx context.Context, actorID uint64) ([]ConversationSummary, error) {
	memberships, err := s.store.Conversations().MembershipsForUser(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []ConversationSummary{}, nil
	}

	ids := make([]uint64, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.ConversationID)
	}
	convs, err := s.store.Conversations().ConversationsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	byID := make(map[uint64]dbmysql.Conversation, len(convs))
	for _, c := range convs {
		byID[c.ID] = c
	}

	now := s.now()
	out := make([]ConversationSummary, 0, len(memberships))
	for i := range memberships {
		m := &memberships[i]
		conv, ok := byID[m.ConversationID]
		if !ok {
			continue
		}
		unread, err := s.store.Messages().CountUnread(ctx, repository.HistoryFilter{
			ConversationID: conv.ID,
			ViewerID:       actorID,
			Now:            now,
		}, m.LastReadMessageID)
		if err != nil {
			return nil, fmt.Errorf("count unread: %w", err)
		}
		out = append(out, ConversationSummary{
			ID:                conv.ID,
			Kind:              conv.Kind,
			Title:             conv.Title,
			Role:              m.Role,
			PinnedAt:          m.PinnedAt,
			MutedUntil:        m.MutedUntil,
			Muted:             m.IsMuted(now),
			LastReadMessageID: m.LastReadMessageID,
			Unread:            unread,
			UpdatedAt:         conv.UpdatedAt,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.PinnedAt != nil) != (b.PinnedAt != nil) {
			return a.PinnedAt != nil
		}
		if a.PinnedAt != nil && !a.PinnedAt.Equal(*b.PinnedAt) {
			return a.PinnedAt.After(*b.PinnedAt)
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID > b.ID
	})
	return out, nil
}
