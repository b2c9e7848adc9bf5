package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	args := m.Called(ctx, channel, message)
	return redis.NewIntResult(1, args.Error(0))
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestRedisPublisher_PublishesEnvelope(t *testing.T) {
	pub := new(MockPublisher)
	var sent []byte
	pub.On("Publish", mock.Anything, "chat:events:fanout", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).([]byte) }).
		Return(nil).Once()

	p := NewRedisPublisher(pub, "chat:events:", "node-a")
	err := p.Update(context.Background(), Event{ID: "e", Name: EventMessageCreated, MessageID: 3, Targets: []uint64{7, 8}})
	require.NoError(t, err)
	pub.AssertExpectations(t)

	var env relayEnvelope
	require.NoError(t, json.Unmarshal(sent, &env))
	assert.Equal(t, "node-a", env.Origin)
	assert.Equal(t, []uint64{7, 8}, env.Event.Targets)
}

func TestRedisPublisher_WrapsErrors(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("conn refused"))

	err := NewRedisPublisher(pub, "p:", "node").Update(context.Background(), Event{Name: EventMessageDeleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis publish")
}

func TestRedisRelay_SkipsOwnEvents(t *testing.T) {
	rec := &recordingObserver{name: "local"}
	relay := NewRedisRelay(nil, "p:", "node-a", rec)

	own, err := json.Marshal(relayEnvelope{Origin: "node-a", Event: Event{ID: "mine"}})
	require.NoError(t, err)
	remote, err := json.Marshal(relayEnvelope{Origin: "node-b", Event: Event{ID: "theirs", Targets: []uint64{1}}})
	require.NoError(t, err)

	relay.handle(context.Background(), string(own))
	relay.handle(context.Background(), "not json")
	relay.handle(context.Background(), string(remote))

	events := rec.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "theirs", events[0].ID)
}

func TestKafkaPublisher_KeysByMessageID(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w)
	at := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, p.Update(context.Background(), Event{ID: "k", Name: EventMessageStatusUpdated, MessageID: 99, OccurredAt: at}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "99", string(w.msgs[0].Key))
	assert.Equal(t, at, w.msgs[0].Time)
	assert.Equal(t, "event", w.msgs[0].Headers[0].Key)
	assert.Equal(t, EventMessageStatusUpdated, string(w.msgs[0].Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "k", decoded.ID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := NewKafkaPublisher(&fakeWriter{err: errors.New("broker down")})
	err := p.Update(context.Background(), Event{Name: EventMessageCreated, MessageID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka write")
}
