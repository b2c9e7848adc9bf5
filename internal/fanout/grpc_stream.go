package fanout

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"gochat/internal/common"
	"gochat/internal/logger"
)

const subscribeMethod = "/gochat.v1.EventStream/Subscribe"

// EventStreamServer is the server side of gochat.v1.EventStream.
type EventStreamServer interface {
	Subscribe(*emptypb.Empty, grpc.ServerStream) error
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(EventStreamServer).Subscribe(in, stream)
}

// EventStreamServiceDesc describes the service without generated stubs; the
// messages are well-known types so no .proto compilation is needed.
var EventStreamServiceDesc = grpc.ServiceDesc{
	ServiceName: "gochat.v1.EventStream",
	HandlerType: (*EventStreamServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "gochat/v1/events.proto",
}

type grpcSubscriber struct {
	userID uint64
	send   chan *structpb.Struct
}

// GRPCHub serves the event stream to authenticated gRPC clients.
type GRPCHub struct {
	mu     sync.RWMutex
	subs   map[uint64]map[*grpcSubscriber]struct{}
	buffer int
}

func NewGRPCHub() *GRPCHub {
	return &GRPCHub{
		subs:   make(map[uint64]map[*grpcSubscriber]struct{}),
		buffer: clientSendBuffer,
	}
}

func (h *GRPCHub) Register(s *grpc.Server) {
	s.RegisterService(&EventStreamServiceDesc, h)
}

func (h *GRPCHub) Name() string {
	return "grpc_hub"
}

func (h *GRPCHub) Subscribe(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ctx := stream.Context()
	userID, ok := common.UserIDFromContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "authorization required")
	}

	sub := &grpcSubscriber{userID: userID, send: make(chan *structpb.Struct, h.buffer)}
	h.add(sub)
	defer h.remove(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.send:
			if !ok {
				return status.Error(codes.ResourceExhausted, "subscriber fell behind")
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// Subscribers reports how many open streams userID has.
func (h *GRPCHub) Subscribers(userID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *GRPCHub) Update(_ context.Context, event Event) error {
	msg, err := EventToStruct(event)
	if err != nil {
		return err
	}

	var slow []*grpcSubscriber
	h.mu.RLock()
	for _, userID := range event.Targets {
		for sub := range h.subs[userID] {
			select {
			case sub.send <- msg:
			default:
				slow = append(slow, sub)
			}
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		logger.Get().Warn().Uint64("user_id", sub.userID).Msg("closing slow grpc subscriber")
		h.remove(sub)
	}
	return nil
}

func (h *GRPCHub) add(sub *grpcSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sub.userID] == nil {
		h.subs[sub.userID] = make(map[*grpcSubscriber]struct{})
	}
	h.subs[sub.userID][sub] = struct{}{}
}

func (h *GRPCHub) remove(sub *grpcSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subs[sub.userID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.send)
	if len(subs) == 0 {
		delete(h.subs, sub.userID)
	}
}

// EventToStruct renders event the way gRPC subscribers receive it.
func EventToStruct(event Event) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		"id":              event.ID,
		"event":           event.Name,
		"message_id":      event.MessageID,
		"conversation_id": event.ConversationID,
		"occurred_at":     event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if event.Payload != nil {
		fields["payload"] = event.Payload
	}
	return structpb.NewStruct(fields)
}

// EventStreamClient reads events from a Subscribe call.
type EventStreamClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type eventStreamClient struct {
	grpc.ClientStream
}

func (c *eventStreamClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// SubscribeEvents opens the event stream on cc.
func SubscribeEvents(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (EventStreamClient, error) {
	stream, err := cc.NewStream(ctx, &EventStreamServiceDesc.Streams[0], subscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &eventStreamClient{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
