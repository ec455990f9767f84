package main

import (
	"errors"
	"sync"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/PaulBabatuyi/directChat/internal/delivery"
)

const subscribeMethod = "/chat.v1.InboxService/Subscribe"

// inboxServer is the handler type behind inboxServiceDesc. Requests and
// events are well-known protobuf types, so no generated code is involved.
type inboxServer interface {
	Subscribe(*emptypb.Empty, grpc.ServerStream) error
}

var inboxServiceDesc = grpc.ServiceDesc{
	ServiceName: "chat.v1.InboxService",
	HandlerType: (*inboxServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "chat/v1/inbox.proto",
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(inboxServer).Subscribe(in, stream)
}

// Subscribe attaches the stream to the caller's inbox topic until the client
// goes away or falls too far behind. The first event is always "connected".
func (s *Server) Subscribe(_ *emptypb.Empty, stream grpc.ServerStream) error {
	claims, ok := getClaimsFromContext(stream.Context())
	if !ok {
		return status.Errorf(codes.Unauthenticated, "missing auth claims")
	}

	topic := delivery.InboxTopic(claims.UserID)
	sub := newStreamSubscriber()

	// hold the lock until "connected" is queued so no event overtakes it
	sub.mu.Lock()
	id := s.hub.Subscribe(topic, sub)
	err := sub.sendLocked(delivery.Event{
		Name:  delivery.EventConnected,
		Topic: topic,
		Data:  map[string]string{"socket_id": id},
	})
	sub.mu.Unlock()
	defer s.hub.Unsubscribe(topic, id)
	if err != nil {
		return status.Errorf(codes.Internal, "failed to queue handshake: %v", err)
	}

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case <-sub.overflow:
			return status.Errorf(codes.ResourceExhausted, "inbox stream fell behind")
		case msg := <-sub.out:
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

var errStreamBehind = errors.New("stream buffer exceeded")

// streamSubscriber adapts a server stream to delivery.Subscriber. Events are
// queued on out and written by the Subscribe goroutine, so Send never waits
// on gRPC flow control.
type streamSubscriber struct {
	mu       sync.Mutex
	out      chan *structpb.Struct
	once     sync.Once
	overflow chan struct{}
}

func newStreamSubscriber() *streamSubscriber {
	return &streamSubscriber{
		out:      make(chan *structpb.Struct, sendBuffer),
		overflow: make(chan struct{}),
	}
}

func (s *streamSubscriber) Send(evt delivery.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(evt)
}

func (s *streamSubscriber) sendLocked(evt delivery.Event) error {
	msg, err := eventToStruct(evt)
	if err != nil {
		return err
	}
	select {
	case s.out <- msg:
		return nil
	default:
		s.once.Do(func() { close(s.overflow) })
		return errStreamBehind
	}
}

var errEmptyEvent = errors.New("event has no name")

// eventToStruct renders evt as {event, topic, data}.
func eventToStruct(evt delivery.Event) (*structpb.Struct, error) {
	if evt.Name == "" {
		return nil, errEmptyEvent
	}
	fields := map[string]any{
		"event": evt.Name,
		"topic": evt.Topic,
	}
	if len(evt.Data) > 0 {
		fields["data"] = lo.MapValues(evt.Data, func(v string, _ string) any { return v })
	}
	return structpb.NewStruct(fields)
}
