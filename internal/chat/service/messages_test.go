package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"gochat/internal/chat/forward"
	"gochat/internal/chat/repository"
	"gochat/internal/chat/service/mocks"
	"gochat/internal/common"
	"gochat/internal/dbmysql"
	"gochat/internal/fanout"
)

func TestSend_Validation(t *testing.T) {
	h := newHarness(t, nil, Options{MaxBodyLength: 5})
	ctx := context.Background()
	conv := h.direct(t, 1, 2)
	other := h.group(t, 1, 3)
	elsewhere := h.send(t, other, 1, "hey")

	tests := []struct {
		name string
		in   SendInput
		kind common.ErrorKind
	}{
		{"no content", SendInput{ConversationID: conv, SenderID: 1}, common.KindEmptyMessage},
		{"blank body", SendInput{ConversationID: conv, SenderID: 1, Body: strPtr(" \n\t ")}, common.KindEmptyMessage},
		{"not a member", SendInput{ConversationID: conv, SenderID: 3, Body: strPtr("hi")}, common.KindNotMember},
		{"too long", SendInput{ConversationID: conv, SenderID: 1, Body: strPtr("héllo!")}, common.KindValidation},
		{"bad client uuid", SendInput{ConversationID: conv, SenderID: 1, Body: strPtr("hi"), ClientUUID: strPtr("nope")}, common.KindValidation},
		{"reply elsewhere", SendInput{ConversationID: conv, SenderID: 1, Body: strPtr("hi"), ReplyTo: &elsewhere.ID}, common.KindInvalidTarget},
		{"reply missing", SendInput{ConversationID: conv, SenderID: 1, Body: strPtr("hi"), ReplyTo: u64Ptr(999)}, common.KindInvalidTarget},
		{"forward missing", SendInput{ConversationID: conv, SenderID: 1, ForwardFrom: u64Ptr(999)}, common.KindInvalidTarget},
		{"attachment without ref", SendInput{ConversationID: conv, SenderID: 1, Attachments: []AttachmentInput{{MimeType: "image/png"}}}, common.KindValidation},
		{"attachment never uploaded", SendInput{ConversationID: conv, SenderID: 1, Attachments: []AttachmentInput{{StorageRef: "nope", MimeType: "image/png"}}}, common.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _, err := h.svc.Send(ctx, tt.in)
			require.Error(t, err)
			assert.Nil(t, v)
			assert.Equal(t, tt.kind, common.KindOf(err))
		})
	}
}

func TestSend_StoresSenderStatusAndTouches(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	conv := h.group(t, 1, 2, 3)

	h.clock.Add(time.Minute)
	v := h.send(t, conv, 1, "hello")

	assert.Equal(t, "hello", *v.Body)
	assert.Equal(t, h.clock.Now(), v.CreatedAt)
	assert.NotNil(t, v.ForwardChain)
	assert.Empty(t, v.ForwardChain)
	assert.NotNil(t, v.Attachments)

	st, err := h.store.Statuses().Status(ctx, v.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, dbmysql.StatusSent, st.Status)

	stored, err := h.store.Conversations().ConversationByID(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now(), stored.UpdatedAt)

	created := h.events.named(fanout.EventMessageCreated)
	require.Len(t, created, 1)
	assert.ElementsMatch(t, []uint64{2, 3}, created[0].Targets)
	assert.Equal(t, v.ID, created[0].MessageID)
	assert.Equal(t, "hello", created[0].Payload["body"])
}

func TestSend_EmitsOnlyAfterCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockNotifier(ctrl)
	store := repository.NewMemoryStore()
	svc := NewChatService(store, notifier, nil, nil, nil, Options{})
	ctx := context.Background()

	conv, err := svc.CreateGroup(ctx, 1, dbmysql.ConversationGroup, "", []uint64{2})
	require.NoError(t, err)

	notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, ev fanout.Event) {
			assert.Equal(t, fanout.EventMessageCreated, ev.Name)
			assert.Equal(t, []uint64{2}, ev.Targets)
			msg, err := store.Messages().MessageByID(ctx, ev.MessageID)
			require.NoError(t, err)
			assert.Equal(t, conv.ID, msg.ConversationID)
		}).
		Times(1)

	_, _, err = svc.Send(ctx, SendInput{ConversationID: conv.ID, SenderID: 1, Body: strPtr("x")})
	require.NoError(t, err)

	// a rejected send emits nothing
	_, _, err = svc.Send(ctx, SendInput{ConversationID: conv.ID, SenderID: 1})
	assert.ErrorIs(t, err, common.ErrEmptyMessage)
}

func TestSend_ClientUUIDReplay(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	conv := h.direct(t, 1, 2)
	key := "3F2504E0-4F89-11D3-9A0C-0305E82C3301"

	first, replay, err := h.svc.Send(ctx, SendInput{ConversationID: conv, SenderID: 1, Body: strPtr("hi"), ClientUUID: &key})
	require.NoError(t, err)
	assert.False(t, replay)
	require.NotNil(t, first.ClientUUID)
	assert.Equal(t, strings.ToLower(key), *first.ClientUUID)

	h.clock.Add(time.Second)
	second, replay, err := h.svc.Send(ctx, SendInput{ConversationID: conv, SenderID: 1, Body: strPtr("different"), ClientUUID: strPtr(strings.ToLower(key))})
	require.NoError(t, err)
	assert.True(t, replay)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "hi", *second.Body)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	assert.Len(t, h.events.named(fanout.EventMessageCreated), 1)

	_, _, err = h.svc.Send(ctx, SendInput{ConversationID: conv, SenderID: 2, Body: strPtr("hi"), ClientUUID: &key})
	assert.Equal(t, common.KindValidation, common.KindOf(err))

	page, err := h.svc.History(ctx, conv, 1, HistoryQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Messages, 1)
}

func TestSend_ConcurrentReplaysCreateOneMessage(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	conv := h.group(t, 1, 2)
	key := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

	const senders = 16
	ids := make([]uint64, senders)
	replays := make([]bool, senders)
	errs := make([]error, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, replay, err := h.svc.Send(ctx, SendInput{ConversationID: conv, SenderID: 1, Body: strPtr("once"), ClientUUID: &key})
			errs[i] = err
			replays[i] = replay
			if v != nil {
				ids[i] = v.ID
			}
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < senders; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
		if !replays[i] {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Len(t, h.events.named(fanout.EventMessageCreated), 1)

	statuses, err := h.store.Statuses().StatusesForMessage(ctx, ids[0])
	require.NoError(t, err)
	assert.Len(t, statuses, 1)
}

func TestSend_ReplyInSameConversation(t *testing.T) {
	h := newHarness(t, nil, Options{})
	conv := h.group(t, 1, 2)
	parent := h.send(t, conv, 1, "question")

	reply, _, err := h.svc.Send(context.Background(), SendInput{ConversationID: conv, SenderID: 2, Body: strPtr("answer"), ReplyTo: &parent.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyToID)
	assert.Equal(t, parent.ID, *reply.ReplyToID)
}

func TestHistory_CursorPagingWithIdenticalTimestamps(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	conv := h.group(t, 1, 2)

	var want []uint64
	for i := 0; i < 7; i++ {
		want = append(want, h.send(t, conv, 1, "same instant").ID)
	}

	var got []uint64
	cur := ""
	for pages := 0; pages < 10; pages++ {
		page, err := h.svc.History(ctx, conv, 2, HistoryQuery{Cursor: cur, Limit: 3})
		require.NoError(t, err)
		for _, m := range page.Messages {
			got = append(got, m.ID)
		}
		if !page.HasMore {
			break
		}
		require.NotEmpty(t, page.NextCursor)
		cur = page.NextCursor
	}
	assert.Equal(t, want, got)

	// a malformed cursor starts from the beginning
	page, err := h.svc.History(ctx, conv, 2, HistoryQuery{Cursor: "%%%", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, want[0], page.Messages[0].ID)
	assert.True(t, page.HasMore)
}

func TestHistory_PageMode(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	conv := h.group(t, 1, 2)

	var ids []uint64
	for i := 0; i < 7; i++ {
		h.clock.Add(time.Second)
		ids = append(ids, h.send(t, conv, 1, "m").ID)
	}

	page, err := h.svc.History(ctx, conv, 1, HistoryQuery{Page: 1, PerPage: 3})
	require.NoError(t, err)
	require.NotNil(t, page.Page)
	assert.EqualValues(t, 7, page.Page.Total)
	assert.Equal(t, 3, page.Page.LastPage)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, ids[6], page.Messages[0].ID)
	assert.Equal(t, ids[4], page.Messages[2].ID)

	last, err := h.svc.History(ctx, conv, 1, HistoryQuery{Page: 3, PerPage: 3})
	require.NoError(t, err)
	require.Len(t, last.Messages, 1)
	assert.Equal(t, ids[0], last.Messages[0].ID)
}

func TestHistory_MarksOthersMessagesDelivered(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	conv := h.direct(t, 1, 2)
	mine := h.send(t, conv, 1, "to you")
	theirs := h.send(t, conv, 2, "back")
	h.events.reset()

	_, err := h.svc.History(ctx, conv, 2, HistoryQuery{})
	require.NoError(t, err)

	st, err := h.store.Statuses().Status(ctx, mine.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, dbmysql.StatusDelivered, st.Status)
	assert.NotNil(t, st.DeliveredAt)

	st, err = h.store.Statuses().Status(ctx, theirs.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, dbmysql.StatusSent, st.Status)

	updates := h.events.named(fanout.EventMessageStatusUpdated)
	require.Len(t, updates, 1)
	assert.ElementsMatch(t, []uint64{1, 2}, updates[0].Targets)

	// a second read changes nothing
	_, err = h.svc.History(ctx, conv, 2, HistoryQuery{})
	require.NoError(t, err)
	assert.Len(t, h.events.named(fanout.EventMessageStatusUpdated), 1)

	_, err = h.svc.History(ctx, conv, 5, HistoryQuery{})
	assert.ErrorIs(t, err, common.ErrNotMember)
}

func TestHistory_HidesDeletedForMeAndExpired(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	conv := h.group(t, 1, 2)

	hidden := h.send(t, conv, 1, "oops")
	ephemeral, _, err := h.svc.Send(ctx, SendInput{ConversationID: conv, SenderID: 1, Body: strPtr("soon gone"), TTL: time.Minute})
	require.NoError(t, err)
	require.NotNil(t, ephemeral.ExpiresAt)
	kept := h.send(t, conv, 1, "stays")

	require.NoError(t, h.svc.DeleteForMe(ctx, hidden.ID, 2))
	h.clock.Add(2 * time.Minute)

	ids := func(page *HistoryPage) []uint64 {
		var out []uint64
		for _, m := range page.Messages {
			out = append(out, m.ID)
		}
		return out
	}

	forTwo, err := h.svc.History(ctx, conv, 2, HistoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, []uint64{kept.ID}, ids(forTwo))

	forOne, err := h.svc.History(ctx, conv, 1, HistoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, []uint64{hidden.ID, kept.ID}, ids(forOne))

	_, err = h.svc.Get(ctx, hidden.ID, 2)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = h.svc.Get(ctx, ephemeral.ID, 1)
	assert.ErrorIs(t, err, common.ErrNotFound)

	got, err := h.svc.Get(ctx, hidden.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "oops", *got.Body)
}

func TestGet_RequiresMembership(t *testing.T) {
	h := newHarness(t, nil, Options{})
	conv := h.group(t, 1, 2)
	msg := h.send(t, conv, 1, "internal")

	_, err := h.svc.Get(context.Background(), msg.ID, 3)
	assert.ErrorIs(t, err, common.ErrNotMember)

	_, err = h.svc.Get(context.Background(), 12345, 1)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteForMe_IsIdempotentAndPrivate(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	conv := h.group(t, 1, 2, 3)
	msg := h.send(t, conv, 1, "hello")
	h.events.reset()

	require.NoError(t, h.svc.DeleteForMe(ctx, msg.ID, 2))
	require.NoError(t, h.svc.DeleteForMe(ctx, msg.ID, 2))

	deleted := h.events.named(fanout.EventMessageDeleted)
	require.Len(t, deleted, 2)
	assert.Equal(t, []uint64{2}, deleted[0].Targets)
	assert.Equal(t, "me", deleted[0].Payload["scope"])

	assert.ErrorIs(t, h.svc.DeleteForMe(ctx, msg.ID, 4), common.ErrNotMember)
	assert.ErrorIs(t, h.svc.DeleteForMe(ctx, 999, 2), common.ErrNotFound)
}

func TestDeleteForEveryone_Permissions(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()

	grp := h.group(t, 1, 2, 3)
	byTwo := h.send(t, grp, 2, "member post")
	assert.ErrorIs(t, h.svc.DeleteForEveryone(ctx, byTwo.ID, 3), common.ErrNotOwner)
	require.NoError(t, h.svc.DeleteForEveryone(ctx, byTwo.ID, 1))

	_, err := h.svc.Get(ctx, byTwo.ID, 2)
	assert.ErrorIs(t, err, common.ErrNotFound)

	deleted := h.events.named(fanout.EventMessageDeleted)
	require.Len(t, deleted, 1)
	assert.ElementsMatch(t, []uint64{1, 2, 3}, deleted[0].Targets)
	assert.Equal(t, "everyone", deleted[0].Payload["scope"])

	dm := h.direct(t, 1, 2)
	msg := h.send(t, dm, 1, "direct")
	assert.ErrorIs(t, h.svc.DeleteForEveryone(ctx, msg.ID, 2), common.ErrNotOwner)
	require.NoError(t, h.svc.DeleteForEveryone(ctx, msg.ID, 1))
	assert.ErrorIs(t, h.svc.DeleteForEveryone(ctx, msg.ID, 1), common.ErrNotFound)
}

func TestDeleteForEveryone_RemovesBlobs(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	conv := h.group(t, 1, 2)

	file, err := h.blobs.UploadFile(ctx, "cat.png", "image/png", 1, bytes.NewReader([]byte("png")))
	require.NoError(t, err)

	msg, _, err := h.svc.Send(ctx, SendInput{
		ConversationID: conv,
		SenderID:       1,
		Attachments:    []AttachmentInput{{StorageRef: file.ID, MimeType: "image/png", SizeBytes: 3, FileName: "cat.png"}},
	})
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)
	assert.Nil(t, msg.Body)

	require.NoError(t, h.svc.DeleteForEveryone(ctx, msg.ID, 1))
	assert.Equal(t, 0, h.blobs.Len())
}

func TestSend_StorageRefBelongsToOneMessage(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	conv := h.group(t, 1, 2)
	other := h.group(t, 2, 3)

	file, err := h.blobs.UploadFile(ctx, "cat.png", "image/png", 1, bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	att := AttachmentInput{StorageRef: file.ID, MimeType: "image/png", SizeBytes: 3}

	first, _, err := h.svc.Send(ctx, SendInput{ConversationID: conv, SenderID: 1, Attachments: []AttachmentInput{att}})
	require.NoError(t, err)

	_, _, err = h.svc.Send(ctx, SendInput{ConversationID: other, SenderID: 2, Attachments: []AttachmentInput{att}})
	require.Error(t, err)
	assert.Equal(t, common.KindValidation, common.KindOf(err))

	_, _, err = h.svc.Send(ctx, SendInput{ConversationID: conv, SenderID: 1, Attachments: []AttachmentInput{att, att}})
	require.Error(t, err)
	assert.Equal(t, common.KindValidation, common.KindOf(err))

	page, err := h.svc.History(ctx, other, 2, HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)

	// the blob survives until its only owner is deleted
	assert.Equal(t, 1, h.blobs.Len())
	got, err := h.svc.Get(ctx, first.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.Attachments[0].StorageRef)
	require.NoError(t, h.svc.DeleteForEveryone(ctx, first.ID, 1))
	assert.Equal(t, 0, h.blobs.Len())
}

func TestSend_ReplayWithAttachmentIsNotADuplicate(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	conv := h.group(t, 1, 2)

	file, err := h.blobs.UploadFile(ctx, "cat.png", "image/png", 1, bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	in := SendInput{
		ConversationID: conv,
		SenderID:       1,
		ClientUUID:     strPtr("6f1c2b7e-93a4-4d1e-8c55-0b8f2f0e4a11"),
		Attachments:    []AttachmentInput{{StorageRef: file.ID, MimeType: "image/png", SizeBytes: 3}},
	}

	first, replay, err := h.svc.Send(ctx, in)
	require.NoError(t, err)
	assert.False(t, replay)

	again, replay, err := h.svc.Send(ctx, in)
	require.NoError(t, err)
	assert.True(t, replay)
	assert.Equal(t, first.ID, again.ID)
}

func TestSend_BlobLookupFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	blobs := mocks.NewMockBlobStore(ctrl)
	store := repository.NewMemoryStore()
	svc := NewChatService(store, nil, blobs, nil, nil, Options{})
	ctx := context.Background()

	conv, err := svc.CreateGroup(ctx, 1, dbmysql.ConversationGroup, "", nil)
	require.NoError(t, err)

	blobs.EXPECT().FileExists(gomock.Any(), "a").Return(false, errors.New("gridfs unavailable"))

	_, _, err = svc.Send(ctx, SendInput{
		ConversationID: conv.ID,
		SenderID:       1,
		Attachments:    []AttachmentInput{{StorageRef: "a", MimeType: "image/png", SizeBytes: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, common.KindInternal, common.KindOf(err))
	assert.Contains(t, err.Error(), "gridfs unavailable")

	latest, err := store.Messages().LatestMessageID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Zero(t, latest)
}

func TestEditBody(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()

	dm := h.direct(t, 1, 2)
	direct := h.send(t, dm, 1, "typo")
	_, err := h.svc.EditBody(ctx, direct.ID, 1, "fixed")
	assert.ErrorIs(t, err, common.ErrEditNotSupported)

	grp := h.group(t, 1, 2)
	post := h.send(t, grp, 1, "typo")
	h.events.reset()

	_, err = h.svc.EditBody(ctx, post.ID, 2, "hijack")
	assert.ErrorIs(t, err, common.ErrNotOwner)
	_, err = h.svc.EditBody(ctx, post.ID, 1, "   ")
	assert.ErrorIs(t, err, common.ErrEmptyMessage)
	_, err = h.svc.EditBody(ctx, post.ID, 3, "outsider")
	assert.ErrorIs(t, err, common.ErrNotMember)

	h.clock.Add(time.Minute)
	edited, err := h.svc.EditBody(ctx, post.ID, 1, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", *edited.Body)
	require.NotNil(t, edited.EditedAt)
	assert.Equal(t, h.clock.Now(), *edited.EditedAt)

	got, err := h.svc.Get(ctx, post.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "fixed", *got.Body)

	events := h.events.named(fanout.EventMessageEdited)
	require.Len(t, events, 1)
	assert.ElementsMatch(t, []uint64{1, 2}, events[0].Targets)
}

func TestForward_ChainGrowsByOneHop(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()

	g1 := h.group(t, 1, 2)
	g2 := h.group(t, 1, 3)
	g3 := h.group(t, 1, 4)
	origin := h.send(t, g1, 2, "hello world")

	first, _, err := h.svc.Send(ctx, SendInput{ConversationID: g2, SenderID: 1, ForwardFrom: &origin.ID})
	require.NoError(t, err)
	require.Len(t, first.ForwardChain, 1)
	assert.Equal(t, origin.ID, first.ForwardChain[0].OriginMessageID)
	assert.Equal(t, forward.SourceGroup, first.ForwardChain[0].SourceKind)
	assert.Equal(t, "user #2", first.ForwardChain[0].SenderLabel)
	assert.Equal(t, "hello world", first.ForwardChain[0].BodySnippet)
	require.NotNil(t, first.ForwardedFromID)
	assert.Equal(t, origin.ID, *first.ForwardedFromID)
	assert.Equal(t, "hello world", *first.Body)

	second, _, err := h.svc.Send(ctx, SendInput{ConversationID: g3, SenderID: 1, ForwardFrom: &first.ID, Body: strPtr("fyi")})
	require.NoError(t, err)
	require.Len(t, second.ForwardChain, len(first.ForwardChain)+1)
	assert.Equal(t, first.ID, second.ForwardChain[0].OriginMessageID)
	assert.Equal(t, "user #1", second.ForwardChain[0].SenderLabel)
	assert.Equal(t, origin.ID, second.ForwardChain[1].OriginMessageID)
	assert.Equal(t, "fyi", *second.Body)
}

func TestForward_DepthIsBounded(t *testing.T) {
	h := newHarness(t, nil, Options{MaxForwardDepth: 3})
	ctx := context.Background()
	conv := h.group(t, 1, 2)

	last := h.send(t, conv, 1, "start")
	for i := 0; i < 5; i++ {
		next, _, err := h.svc.Send(ctx, SendInput{ConversationID: conv, SenderID: 1, ForwardFrom: &last.ID})
		require.NoError(t, err)
		last = next
	}
	assert.Len(t, last.ForwardChain, 3)
}

func TestForward_CrossTypeIsolation(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()

	dm := h.direct(t, 1, 2)
	grp := h.group(t, 1, 3)
	foreign := h.group(t, 5, 6)
	source := h.send(t, dm, 2, "private note")

	results, err := h.svc.Forward(ctx, 1, source.ID, []ForwardTarget{
		{Type: TargetGroup, ID: grp},
		{Type: TargetConversation, ID: grp},
		{Type: TargetGroup, ID: 999},
		{Type: TargetGroup, ID: foreign},
		{Type: "channel", ID: grp},
		{Type: TargetConversation, ID: 0},
	})
	require.NoError(t, err)
	require.Len(t, results, 6)

	ok := results[0]
	require.True(t, ok.OK)
	require.NotNil(t, ok.Message)
	assert.Nil(t, ok.Message.ForwardedFromID)
	require.Len(t, ok.Message.ForwardChain, 1)
	assert.Equal(t, forward.SourceDM, ok.Message.ForwardChain[0].SourceKind)
	assert.Equal(t, source.ID, ok.Message.ForwardChain[0].OriginMessageID)
	assert.Equal(t, grp, ok.Message.ConversationID)

	for _, res := range results[1:] {
		assert.False(t, res.OK)
		require.NotNil(t, res.Error)
		assert.Equal(t, string(common.KindInvalidTarget), res.Error.Kind)
	}

	_, err = h.svc.Forward(ctx, 1, source.ID, nil)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
	_, err = h.svc.Forward(ctx, 3, source.ID, []ForwardTarget{{Type: TargetGroup, ID: grp}})
	assert.ErrorIs(t, err, common.ErrNotMember)
}

func TestForward_SourceRequiresMembership(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()

	secret := h.group(t, 1, 2)
	open := h.group(t, 3, 1)
	msg := h.send(t, secret, 1, "for members")

	_, _, err := h.svc.Send(ctx, SendInput{ConversationID: open, SenderID: 3, ForwardFrom: &msg.ID})
	assert.ErrorIs(t, err, common.ErrNotMember)
}

func TestForward_CopiesAttachments(t *testing.T) {
	h := newHarness(t, nil, Options{})
	ctx := context.Background()
	src := h.group(t, 1, 2)
	dst := h.group(t, 1, 3)

	file, err := h.blobs.UploadFile(ctx, "doc.pdf", "application/pdf", 1, bytes.NewReader([]byte("%PDF")))
	require.NoError(t, err)
	orig, _, err := h.svc.Send(ctx, SendInput{
		ConversationID: src,
		SenderID:       1,
		Attachments:    []AttachmentInput{{StorageRef: file.ID, MimeType: "application/pdf", SizeBytes: 4, FileName: "doc.pdf"}},
	})
	require.NoError(t, err)

	fwd, _, err := h.svc.Send(ctx, SendInput{ConversationID: dst, SenderID: 1, ForwardFrom: &orig.ID})
	require.NoError(t, err)
	require.Len(t, fwd.Attachments, 1)
	assert.NotEqual(t, file.ID, fwd.Attachments[0].StorageRef)
	assert.Equal(t, "doc.pdf", fwd.Attachments[0].FileName)
	assert.Equal(t, 2, h.blobs.Len())

	require.NoError(t, h.svc.DeleteForEveryone(ctx, fwd.ID, 1))
	assert.Equal(t, 1, h.blobs.Len())
	got, err := h.svc.Get(ctx, orig.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, file.ID, got.Attachments[0].StorageRef)
}

func TestForward_CopyFailureReleasesCopiedBlobs(t *testing.T) {
	ctrl := gomock.NewController(t)
	blobs := mocks.NewMockBlobStore(ctrl)
	store := repository.NewMemoryStore()
	svc := NewChatService(store, nil, blobs, nil, nil, Options{})
	ctx := context.Background()

	src, err := svc.CreateGroup(ctx, 1, dbmysql.ConversationGroup, "", nil)
	require.NoError(t, err)
	dst, err := svc.CreateGroup(ctx, 1, dbmysql.ConversationGroup, "", nil)
	require.NoError(t, err)

	blobs.EXPECT().FileExists(gomock.Any(), "a").Return(true, nil)
	blobs.EXPECT().FileExists(gomock.Any(), "b").Return(true, nil)
	orig, _, err := svc.Send(ctx, SendInput{
		ConversationID: src.ID,
		SenderID:       1,
		Attachments: []AttachmentInput{
			{StorageRef: "a", MimeType: "image/png", SizeBytes: 1},
			{StorageRef: "b", MimeType: "image/png", SizeBytes: 1},
		},
	})
	require.NoError(t, err)

	gomock.InOrder(
		blobs.EXPECT().CopyFile(gomock.Any(), "a").Return("a-copy", nil),
		blobs.EXPECT().CopyFile(gomock.Any(), "b").Return("", errors.New("gridfs unavailable")),
		blobs.EXPECT().DeleteFile(gomock.Any(), "a-copy").Return(nil),
	)

	_, _, err = svc.Send(ctx, SendInput{ConversationID: dst.ID, SenderID: 1, ForwardFrom: &orig.ID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gridfs unavailable")

	page, err := svc.History(ctx, dst.ID, 1, HistoryQuery{})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
}

func TestForward_UsesDirectoryHandles(t *testing.T) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserDirectory(ctrl)
	store := repository.NewMemoryStore()
	svc := NewChatService(store, nil, nil, nil, users, Options{})
	ctx := context.Background()

	src, err := svc.CreateGroup(ctx, 1, dbmysql.ConversationGroup, "", []uint64{2})
	require.NoError(t, err)
	orig, _, err := svc.Send(ctx, SendInput{ConversationID: src.ID, SenderID: 2, Body: strPtr("hi")})
	require.NoError(t, err)

	users.EXPECT().Handle(gomock.Any(), uint64(2)).Return("alice", nil)

	fwd, _, err := svc.Send(ctx, SendInput{ConversationID: src.ID, SenderID: 1, ForwardFrom: &orig.ID})
	require.NoError(t, err)
	require.Len(t, fwd.ForwardChain, 1)
	assert.Equal(t, "alice", fwd.ForwardChain[0].SenderLabel)

	users.EXPECT().Handle(gomock.Any(), uint64(2)).Return("", common.ErrNotFound)
	fwd, _, err = svc.Send(ctx, SendInput{ConversationID: src.ID, SenderID: 1, ForwardFrom: &orig.ID})
	require.NoError(t, err)
	assert.Equal(t, "user #2", fwd.ForwardChain[0].SenderLabel)
}
