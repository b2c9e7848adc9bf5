package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gochat/internal/chat/repository"
	"gochat/internal/common"
	"gochat/internal/dbmysql"
	"gochat/internal/fanout"
	"gochat/internal/media"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []fanout.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev fanout.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) named(name string) []fanout.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []fanout.Event
	for _, ev := range r.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	svc    *chatService
	store  *repository.MemoryStore
	blobs  *media.MemoryStorage
	events *recordingNotifier
	clock  *testClock
}

func newHarness(t *testing.T, cipher BodyCipher, opts Options) *harness {
	t.Helper()
	h := &harness{
		store:  repository.NewMemoryStore(),
		blobs:  media.NewMemoryStorage(),
		events: &recordingNotifier{},
		clock:  &testClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	svc, ok := NewChatService(h.store, h.events, h.blobs, cipher, nil, opts).(*chatService)
	require.True(t, ok)
	svc.now = h.clock.Now
	h.svc = svc
	return h
}

func (h *harness) group(t *testing.T, owner uint64, members ...uint64) uint64 {
	t.Helper()
	conv, err := h.svc.CreateGroup(context.Background(), owner, dbmysql.ConversationGroup, "team", members)
	require.NoError(t, err)
	return conv.ID
}

func (h *harness) direct(t *testing.T, a, b uint64) uint64 {
	t.Helper()
	conv, err := h.svc.FindOrCreateDirect(context.Background(), a, b)
	require.NoError(t, err)
	return conv.ID
}

func (h *harness) send(t *testing.T, conversationID, senderID uint64, body string) *MessageView {
	t.Helper()
	v, replay, err := h.svc.Send(context.Background(), SendInput{
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           &body,
	})
	require.NoError(t, err)
	require.False(t, replay)
	return v
}

func strPtr(s string) *string { return &s }

func u64Ptr(v uint64) *uint64 { return &v }

func TestFindOrCreateDirect_CanonicalPair(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()

	first, err := h.svc.FindOrCreateDirect(ctx, 7, 3)
	require.NoError(t, err)
	second, err := h.svc.FindOrCreateDirect(ctx, 3, 7)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, dbmysql.ConversationDirect, first.Kind)

	ids, err := h.store.Conversations().MemberIDs(ctx, first.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{3, 7}, ids)
}

func TestFindOrCreateDirect_ConcurrentFirstCalls(t *testing.T) {
	h := newHarness(t, nil, Options{})

	const callers = 24
	ids := make([]uint64, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := uint64(1), uint64(2)
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := h.svc.FindOrCreateDirect(context.Background(), a, b)
			errs[i] = err
			if conv != nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
}

func TestFindOrCreateDirect_Validation(t *testing.T) {
	h := newHarness(t, nil, Options{})

	_, err := h.svc.FindOrCreateDirect(context.Background(), 4, 4)
	assert.Equal(t, common.KindValidation, common.KindOf(err))

	_, err = h.svc.FindOrCreateDirect(context.Background(), 0, 4)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestCreateGroup_OwnerAndMembers(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()

	conv, err := h.svc.CreateGroup(ctx, 1, dbmysql.ConversationChannel, "  news  ", []uint64{2, 3, 3, 1, 0})
	require.NoError(t, err)
	require.NotNil(t, conv.Title)
	assert.Equal(t, "news", *conv.Title)

	owner, err := h.svc.EnsureMember(ctx, conv.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, dbmysql.RoleOwner, owner.Role)

	member, err := h.svc.EnsureMember(ctx, conv.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, dbmysql.RoleMember, member.Role)

	ids, err := h.store.Conversations().MemberIDs(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	_, err = h.svc.EnsureMember(ctx, conv.ID, 9)
	assert.ErrorIs(t, err, common.ErrNotMember)

	_, err = h.svc.EnsureMember(ctx, 404, 1)
	assert.ErrorIs(t, err, common.ErrNotMember)

	_, err = h.svc.CreateGroup(ctx, 1, dbmysql.ConversationDirect, "", []uint64{2})
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestListForUser_PinnedThenRecent(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()

	dm := h.direct(t, 1, 2)
	quiet := h.group(t, 1, 3)
	busy := h.group(t, 1, 4)

	h.clock.Add(time.Minute)
	h.send(t, dm, 2, "ping")
	h.clock.Add(time.Minute)
	h.send(t, busy, 1, "standup")
	h.clock.Add(time.Minute)
	_, err := h.svc.SetPinned(ctx, quiet, 1, true)
	require.NoError(t, err)

	list, err := h.svc.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, quiet, list[0].ID)
	assert.NotNil(t, list[0].PinnedAt)
	assert.Equal(t, busy, list[1].ID)
	assert.Equal(t, dm, list[2].ID)

	assert.EqualValues(t, 1, list[2].Unread)
	assert.EqualValues(t, 0, list[1].Unread)

	_, err = h.svc.SetPinned(ctx, quiet, 1, false)
	require.NoError(t, err)
	list, err = h.svc.ListForUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, busy, list[0].ID)

	empty, err := h.svc.ListForUser(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSetMuted(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	conv := h.group(t, 1, 2)

	until := h.clock.Now().Add(time.Hour)
	m, err := h.svc.SetMuted(ctx, conv, 2, &until)
	require.NoError(t, err)
	assert.True(t, m.IsMuted(h.clock.Now()))

	list, err := h.svc.ListForUser(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Muted)

	m, err = h.svc.SetMuted(ctx, conv, 2, nil)
	require.NoError(t, err)
	assert.False(t, m.IsMuted(h.clock.Now()))

	_, err = h.svc.SetMuted(ctx, conv, 5, nil)
	assert.ErrorIs(t, err, common.ErrNotMember)
}
