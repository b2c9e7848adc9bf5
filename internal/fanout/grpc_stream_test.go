package fanout

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"gochat/internal/common"
	"gochat/internal/config"
)

const bufSize = 1024 * 1024

func setupEventStream(t *testing.T) (*GRPCHub, *grpc.ClientConn, *common.TokenManager) {
	t.Helper()
	tokens := common.NewTokenManager(&config.Config{Auth: config.AuthConfig{JWTSecret: "stream-secret", Issuer: "gochat"}})
	hub := NewGRPCHub()

	lis := bufconn.Listen(bufSize)
	s := grpc.NewServer(grpc.StreamInterceptor(common.StreamAuthInterceptor(tokens)))
	hub.Register(s)
	go func() {
		_ = s.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		s.Stop()
	})
	return hub, conn, tokens
}

func authedContext(t *testing.T, tokens *common.TokenManager, userID uint64) context.Context {
	t.Helper()
	token, err := tokens.GenerateToken(userID, "")
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func TestGRPCHub_StreamsTargetedEvents(t *testing.T) {
	hub, conn, tokens := setupEventStream(t)

	ctx, cancel := context.WithTimeout(authedContext(t, tokens, 2), 5*time.Second)
	defer cancel()
	stream, err := SubscribeEvents(ctx, conn)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Subscribers(2) == 1 }, 2*time.Second, 10*time.Millisecond)

	occurred := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, hub.Update(context.Background(), Event{ID: "skip", Name: EventMessageCreated, MessageID: 1, Targets: []uint64{3}}))
	require.NoError(t, hub.Update(context.Background(), Event{
		ID:             "e2",
		Name:           EventMessageEdited,
		MessageID:      11,
		ConversationID: 4,
		Targets:        []uint64{2},
		Payload:        map[string]interface{}{"body": "edited"},
		OccurredAt:     occurred,
	}))

	msg, err := stream.Recv()
	require.NoError(t, err)
	fields := msg.AsMap()
	assert.Equal(t, "e2", fields["id"])
	assert.Equal(t, EventMessageEdited, fields["event"])
	assert.Equal(t, float64(11), fields["message_id"])
	assert.Equal(t, occurred.Format(time.RFC3339Nano), fields["occurred_at"])
	assert.Equal(t, "edited", fields["payload"].(map[string]interface{})["body"])

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers(2) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestGRPCHub_RequiresToken(t *testing.T) {
	_, conn, _ := setupEventStream(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stream, err := SubscribeEvents(ctx, conn)
	if err == nil {
		_, err = stream.Recv()
	}
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestEventToStruct(t *testing.T) {
	msg, err := EventToStruct(Event{ID: "x", Name: EventMessageDeleted, MessageID: 5, ConversationID: 6})
	require.NoError(t, err)
	fields := msg.AsMap()
	assert.Equal(t, float64(6), fields["conversation_id"])
	assert.NotContains(t, fields, "payload")
}
