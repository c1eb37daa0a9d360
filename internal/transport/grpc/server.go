package grpcx

import (
	"context"
	"strings"
	"time"

	"github.com/amarket/chat-service/internal/domain"
	"github.com/amarket/chat-service/internal/service"
	"github.com/amarket/chat-service/pkg/errs"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const HistoryServiceName = "chat.v1.HistoryService"

const (
	MethodListConversations = "/" + HistoryServiceName + "/ListConversations"
	MethodListMessages      = "/" + HistoryServiceName + "/ListMessages"
)

// HistoryServer — read-side чата по gRPC. Сообщения — google.protobuf.Struct,
// поэтому сервису не нужен сгенерированный код:
//
//	ListConversations({})                      -> {conversations: [...]}
//	ListMessages({peer: "bob", search: "..."}) -> {peer: {...}, messages: [...]}
type HistoryServer interface {
	ListConversations(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListMessages(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type HistorySvc interface {
	Conversations(ctx context.Context, me domain.User) ([]domain.ConversationSummary, error)
	Thread(ctx context.Context, me domain.User, username, search string) (*service.ThreadView, error)
}

type Server struct {
	history HistorySvc
}

func NewServer(history HistorySvc) *Server {
	return &Server{history: history}
}

// Register регистрирует HistoryService и стандартный health-check.
func Register(grpcServer *grpc.Server, s *Server) *health.Server {
	grpcServer.RegisterService(&historyServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(HistoryServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)
	return hs
}

func (s *Server) ListConversations(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	me, err := userFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.history.Conversations(ctx, me)
	if err != nil {
		return nil, errs.ToGRPC(err)
	}

	items := make([]any, 0, len(list))
	for _, c := range list {
		item := map[string]any{
			"id":           c.Conversation.ID,
			"peer":         mapUser(c.Peer),
			"unread_count": c.UnreadCount,
			"room_key":     domain.RoomKeyOf(me, c.Peer),
		}
		if c.LastMessage != nil {
			item["last_message"] = mapMessage(*c.LastMessage, me, c.Peer)
		}
		items = append(items, item)
	}

	return toStruct(map[string]any{"conversations": items})
}

func (s *Server) ListMessages(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	me, err := userFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	peer := strings.TrimSpace(in.GetFields()["peer"].GetStringValue())
	if peer == "" {
		return nil, status.Error(codes.InvalidArgument, "peer is required")
	}
	search := strings.TrimSpace(in.GetFields()["search"].GetStringValue())

	view, err := s.history.Thread(ctx, me, peer, search)
	if err != nil {
		return nil, errs.ToGRPC(err)
	}

	msgs := make([]any, 0, len(view.Messages))
	for _, m := range view.Messages {
		msgs = append(msgs, mapMessage(m, me, view.Peer))
	}

	return toStruct(map[string]any{
		"peer":        mapUser(view.Peer),
		"search":      view.Search,
		"marked_read": view.MarkedRead,
		"messages":    msgs,
	})
}

// -------- helpers --------

func mapUser(u domain.User) map[string]any {
	return map[string]any{"id": int64(u.ID), "username": u.Username}
}

func mapMessage(m domain.Message, me, peer domain.User) map[string]any {
	sender, receiver := me, peer
	if m.SenderID == peer.ID {
		sender, receiver = peer, me
	}
	out := map[string]any{
		"id":         m.ID,
		"sender":     sender.Username,
		"receiver":   receiver.Username,
		"content":    m.Content,
		"created_at": m.CreatedAt.UTC().Format(time.RFC3339Nano),
		"is_read":    m.IsRead,
	}
	if m.ReadAt != nil {
		out["read_at"] = m.ReadAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return st, nil
}

// -------- service descriptor --------

var historyServiceDesc = grpc.ServiceDesc{
	ServiceName: HistoryServiceName,
	HandlerType: (*HistoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListConversations", Handler: unaryHandler(MethodListConversations, HistoryServer.ListConversations)},
		{MethodName: "ListMessages", Handler: unaryHandler(MethodListMessages, HistoryServer.ListMessages)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chat/v1/history.proto",
}

func unaryHandler(
	fullMethod string,
	call func(HistoryServer, context.Context, *structpb.Struct) (*structpb.Struct, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(HistoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(HistoryServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
