package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"gochat/internal/chat/cursor"
	"gochat/internal/common"
	"gochat/internal/dbmysql"
)

type pairKey struct {
	a, b uint64
}

type memoryState struct {
	nextConversationID uint64
	nextMessageID      uint64
	nextAttachmentID   uint64

	conversations map[uint64]dbmysql.Conversation
	directKeys    map[string]uint64
	members       map[pairKey]dbmysql.ConversationMember // (conversation, user)
	messages      map[uint64]dbmysql.Message
	clientUUIDs   map[string]uint64
	attachments   map[uint64][]dbmysql.Attachment // by message id
	storageRefs   map[string]uint64               // attachment storage ref -> message id
	hides         map[pairKey]time.Time           // (message, user)
	statuses      map[pairKey]dbmysql.MessageStatus
}

func newMemoryState() *memoryState {
	return &memoryState{
		conversations: make(map[uint64]dbmysql.Conversation),
		directKeys:    make(map[string]uint64),
		members:       make(map[pairKey]dbmysql.ConversationMember),
		messages:      make(map[uint64]dbmysql.Message),
		clientUUIDs:   make(map[string]uint64),
		attachments:   make(map[uint64][]dbmysql.Attachment),
		storageRefs:   make(map[string]uint64),
		hides:         make(map[pairKey]time.Time),
		statuses:      make(map[pairKey]dbmysql.MessageStatus),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	c.nextConversationID = s.nextConversationID
	c.nextMessageID = s.nextMessageID
	c.nextAttachmentID = s.nextAttachmentID
	for k, v := range s.conversations {
		c.conversations[k] = v
	}
	for k, v := range s.directKeys {
		c.directKeys[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.messages {
		c.messages[k] = v
	}
	for k, v := range s.clientUUIDs {
		c.clientUUIDs[k] = v
	}
	for k, v := range s.attachments {
		c.attachments[k] = append([]dbmysql.Attachment(nil), v...)
	}
	for k, v := range s.storageRefs {
		c.storageRefs[k] = v
	}
	for k, v := range s.hides {
		c.hides[k] = v
	}
	for k, v := range s.statuses {
		c.statuses[k] = v
	}
	return c
}

type memoryCore struct {
	mu    sync.Mutex
	txMu  sync.Mutex // held for the whole of a transaction
	state *memoryState
}

// memoryDB is one view of the shared core. Outside a transaction each call
// waits for the open transaction to finish, so a rollback only ever undoes
// the transaction's own writes and readers never see uncommitted rows.
type memoryDB struct {
	*memoryCore
	inTx bool
}

func (m *memoryDB) lock() func() {
	if !m.inTx {
		m.txMu.Lock()
	}
	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		if !m.inTx {
			m.txMu.Unlock()
		}
	}
}

// MemoryStore keeps everything in process memory. It backs the "memory"
// database driver and the service tests. Transactions are serialised and
// roll back by restoring a snapshot; unique keys behave like the SQL indexes.
type MemoryStore struct {
	db *memoryDB
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{db: &memoryDB{memoryCore: &memoryCore{state: newMemoryState()}}}
}

func (s *MemoryStore) Conversations() ConversationRepository { return s.db }
func (s *MemoryStore) Messages() MessageRepository           { return s.db }
func (s *MemoryStore) Statuses() StatusRepository            { return s.db }

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if s.db.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	core := s.db.memoryCore
	core.txMu.Lock()
	defer core.txMu.Unlock()

	core.mu.Lock()
	snapshot := core.state.clone()
	core.mu.Unlock()

	tx := &MemoryStore{db: &memoryDB{memoryCore: core, inTx: true}}
	if err := fn(tx); err != nil {
		core.mu.Lock()
		core.state = snapshot
		core.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryDB) CreateConversation(_ context.Context, conv *dbmysql.Conversation, members []dbmysql.ConversationMember) error {
	defer m.lock()()

	if conv.DirectKey != nil {
		if _, exists := m.state.directKeys[*conv.DirectKey]; exists {
			return gorm.ErrDuplicatedKey
		}
	}
	m.state.nextConversationID++
	conv.ID = m.state.nextConversationID
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	m.state.conversations[conv.ID] = *conv
	if conv.DirectKey != nil {
		m.state.directKeys[*conv.DirectKey] = conv.ID
	}
	for i := range members {
		members[i].ConversationID = conv.ID
		if members[i].JoinedAt.IsZero() {
			members[i].JoinedAt = conv.CreatedAt
		}
		m.state.members[pairKey{conv.ID, members[i].UserID}] = members[i]
	}
	return nil
}

func (m *memoryDB) ConversationByID(_ context.Context, id uint64) (*dbmysql.Conversation, error) {
	defer m.lock()()
	conv, ok := m.state.conversations[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &conv, nil
}

func (m *memoryDB) ConversationByDirectKey(_ context.Context, key string) (*dbmysql.Conversation, error) {
	defer m.lock()()
	id, ok := m.state.directKeys[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	conv := m.state.conversations[id]
	return &conv, nil
}

func (m *memoryDB) ConversationsByIDs(_ context.Context, ids []uint64) ([]dbmysql.Conversation, error) {
	defer m.lock()()
	var out []dbmysql.Conversation
	for _, id := range ids {
		if conv, ok := m.state.conversations[id]; ok {
			out = append(out, conv)
		}
	}
	return out, nil
}

func (m *memoryDB) Member(_ context.Context, conversationID, userID uint64) (*dbmysql.ConversationMember, error) {
	defer m.lock()()
	member, ok := m.state.members[pairKey{conversationID, userID}]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &member, nil
}

func (m *memoryDB) MemberIDs(_ context.Context, conversationID uint64) ([]uint64, error) {
	defer m.lock()()
	var ids []uint64
	for key := range m.state.members {
		if key.a == conversationID {
			ids = append(ids, key.b)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryDB) MembershipsForUser(_ context.Context, userID uint64) ([]dbmysql.ConversationMember, error) {
	defer m.lock()()
	var out []dbmysql.ConversationMember
	for key, member := range m.state.members {
		if key.b == userID {
			out = append(out, member)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })
	return out, nil
}

func (m *memoryDB) updateMember(conversationID, userID uint64, fn func(*dbmysql.ConversationMember) bool) bool {
	defer m.lock()()
	key := pairKey{conversationID, userID}
	member, ok := m.state.members[key]
	if !ok {
		return false
	}
	changed := fn(&member)
	m.state.members[key] = member
	return changed
}

func (m *memoryDB) SetPinned(_ context.Context, conversationID, userID uint64, pinnedAt *time.Time) error {
	m.updateMember(conversationID, userID, func(member *dbmysql.ConversationMember) bool {
		member.PinnedAt = pinnedAt
		return true
	})
	return nil
}

func (m *memoryDB) SetMuted(_ context.Context, conversationID, userID uint64, until *time.Time) error {
	m.updateMember(conversationID, userID, func(member *dbmysql.ConversationMember) bool {
		member.MutedUntil = until
		return true
	})
	return nil
}

func (m *memoryDB) AdvanceLastRead(_ context.Context, conversationID, userID, messageID uint64) (bool, error) {
	return m.updateMember(conversationID, userID, func(member *dbmysql.ConversationMember) bool {
		if member.LastReadMessageID >= messageID {
			return false
		}
		member.LastReadMessageID = messageID
		return true
	}), nil
}

func (m *memoryDB) Touch(_ context.Context, conversationID uint64, at time.Time) error {
	defer m.lock()()
	if conv, ok := m.state.conversations[conversationID]; ok {
		conv.UpdatedAt = at
		m.state.conversations[conversationID] = conv
	}
	return nil
}

func (m *memoryDB) CreateMessage(_ context.Context, msg *dbmysql.Message) error {
	defer m.lock()()

	if msg.ClientUUID != nil {
		if _, exists := m.state.clientUUIDs[*msg.ClientUUID]; exists {
			return gorm.ErrDuplicatedKey
		}
	}
	seen := make(map[string]struct{}, len(msg.Attachments))
	for _, att := range msg.Attachments {
		if _, exists := m.state.storageRefs[att.StorageRef]; exists {
			return gorm.ErrDuplicatedKey
		}
		if _, dup := seen[att.StorageRef]; dup {
			return gorm.ErrDuplicatedKey
		}
		seen[att.StorageRef] = struct{}{}
	}
	m.state.nextMessageID++
	msg.ID = m.state.nextMessageID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	atts := make([]dbmysql.Attachment, len(msg.Attachments))
	for i := range msg.Attachments {
		m.state.nextAttachmentID++
		msg.Attachments[i].ID = m.state.nextAttachmentID
		msg.Attachments[i].MessageID = msg.ID
		if msg.Attachments[i].CreatedAt.IsZero() {
			msg.Attachments[i].CreatedAt = msg.CreatedAt
		}
		atts[i] = msg.Attachments[i]
		m.state.storageRefs[atts[i].StorageRef] = msg.ID
	}

	stored := *msg
	stored.Attachments = nil
	m.state.messages[msg.ID] = stored
	if len(atts) > 0 {
		m.state.attachments[msg.ID] = atts
	}
	if msg.ClientUUID != nil {
		m.state.clientUUIDs[*msg.ClientUUID] = msg.ID
	}
	return nil
}

// withAttachments must be called with mu held.
func (m *memoryDB) withAttachments(msg dbmysql.Message) dbmysql.Message {
	if atts := m.state.attachments[msg.ID]; len(atts) > 0 {
		msg.Attachments = append([]dbmysql.Attachment(nil), atts...)
	} else {
		msg.Attachments = nil
	}
	return msg
}

func (m *memoryDB) MessageByID(_ context.Context, id uint64) (*dbmysql.Message, error) {
	defer m.lock()()
	msg, ok := m.state.messages[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := m.withAttachments(msg)
	return &out, nil
}

func (m *memoryDB) MessageByClientUUID(_ context.Context, clientUUID string) (*dbmysql.Message, error) {
	defer m.lock()()
	id, ok := m.state.clientUUIDs[clientUUID]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := m.withAttachments(m.state.messages[id])
	return &out, nil
}

func (m *memoryDB) MessagesInConversation(_ context.Context, conversationID uint64, ids []uint64) ([]dbmysql.Message, error) {
	defer m.lock()()
	var out []dbmysql.Message
	seen := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if msg, ok := m.state.messages[id]; ok && msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// visible must be called with mu held. Results are ascending by (created_at, id).
func (m *memoryDB) visible(f HistoryFilter) []dbmysql.Message {
	var out []dbmysql.Message
	for _, msg := range m.state.messages {
		if msg.ConversationID != f.ConversationID || msg.Expired(f.Now) {
			continue
		}
		if _, hidden := m.state.hides[pairKey{msg.ID, f.ViewerID}]; hidden {
			continue
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		return cursor.Less(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out
}

func (m *memoryDB) HistoryAfter(_ context.Context, f HistoryFilter, after *cursor.Position, limit int) ([]dbmysql.Message, error) {
	defer m.lock()()
	var out []dbmysql.Message
	for _, msg := range m.visible(f) {
		if after != nil && !after.After(msg.CreatedAt, msg.ID) {
			continue
		}
		out = append(out, m.withAttachments(msg))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryDB) HistoryPage(_ context.Context, f HistoryFilter, offset, limit int) ([]dbmysql.Message, int64, error) {
	defer m.lock()()
	asc := m.visible(f)
	total := int64(len(asc))
	var out []dbmysql.Message
	for i := len(asc) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.withAttachments(asc[i]))
	}
	return out, total, nil
}

func (m *memoryDB) CountUnread(_ context.Context, f HistoryFilter, afterID uint64) (int64, error) {
	defer m.lock()()
	var n int64
	for _, msg := range m.visible(f) {
		if msg.ID > afterID && msg.SenderID != f.ViewerID {
			n++
		}
	}
	return n, nil
}

func (m *memoryDB) LatestMessageID(_ context.Context, conversationID uint64) (uint64, error) {
	defer m.lock()()
	var latest uint64
	for id, msg := range m.state.messages {
		if msg.ConversationID == conversationID && id > latest {
			latest = id
		}
	}
	return latest, nil
}

func (m *memoryDB) Hide(_ context.Context, messageID, userID uint64) error {
	defer m.lock()()
	key := pairKey{messageID, userID}
	if _, ok := m.state.hides[key]; !ok {
		m.state.hides[key] = time.Now().UTC()
	}
	return nil
}

func (m *memoryDB) IsHidden(_ context.Context, messageID, userID uint64) (bool, error) {
	defer m.lock()()
	_, ok := m.state.hides[pairKey{messageID, userID}]
	return ok, nil
}

func (m *memoryDB) UpdateBody(_ context.Context, id uint64, body string, encrypted bool, editedAt time.Time) error {
	defer m.lock()()
	msg, ok := m.state.messages[id]
	if !ok {
		return common.ErrNotFound
	}
	msg.Body = &body
	msg.IsEncrypted = encrypted
	msg.EditedAt = &editedAt
	m.state.messages[id] = msg
	return nil
}

func (m *memoryDB) DeleteMessage(_ context.Context, id uint64) error {
	defer m.lock()()
	msg, ok := m.state.messages[id]
	if !ok {
		return common.ErrNotFound
	}
	delete(m.state.messages, id)
	for _, att := range m.state.attachments[id] {
		delete(m.state.storageRefs, att.StorageRef)
	}
	delete(m.state.attachments, id)
	if msg.ClientUUID != nil {
		delete(m.state.clientUUIDs, *msg.ClientUUID)
	}
	for key := range m.state.hides {
		if key.a == id {
			delete(m.state.hides, key)
		}
	}
	for key := range m.state.statuses {
		if key.a == id {
			delete(m.state.statuses, key)
		}
	}
	return nil
}

func (m *memoryDB) ExpiredMessages(_ context.Context, now time.Time, limit int) ([]dbmysql.Message, error) {
	defer m.lock()()
	var out []dbmysql.Message
	for _, msg := range m.state.messages {
		if msg.Expired(now) {
			out = append(out, m.withAttachments(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryDB) InsertIfAbsent(_ context.Context, st *dbmysql.MessageStatus) (bool, error) {
	defer m.lock()()
	key := pairKey{st.MessageID, st.UserID}
	if _, exists := m.state.statuses[key]; exists {
		return false, nil
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	m.state.statuses[key] = *st
	return true, nil
}

func (m *memoryDB) AdvanceStatus(_ context.Context, messageID, userID uint64, to dbmysql.DeliveryStatus, at time.Time) (bool, error) {
	defer m.lock()()
	key := pairKey{messageID, userID}
	st, ok := m.state.statuses[key]
	if !ok || st.Status >= to {
		return false, nil
	}
	st.Status = to
	st.UpdatedAt = at
	if to >= dbmysql.StatusDelivered && st.DeliveredAt == nil {
		st.DeliveredAt = &at
	}
	if to == dbmysql.StatusRead && st.ReadAt == nil {
		st.ReadAt = &at
	}
	m.state.statuses[key] = st
	return true, nil
}

func (m *memoryDB) Status(_ context.Context, messageID, userID uint64) (*dbmysql.MessageStatus, error) {
	defer m.lock()()
	st, ok := m.state.statuses[pairKey{messageID, userID}]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &st, nil
}

func (m *memoryDB) StatusesForMessage(_ context.Context, messageID uint64) ([]dbmysql.MessageStatus, error) {
	defer m.lock()()
	var out []dbmysql.MessageStatus
	for key, st := range m.state.statuses {
		if key.a == messageID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
