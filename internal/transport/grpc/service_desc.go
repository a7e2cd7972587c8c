package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct values so the service needs no
// generated stubs.
const ServiceName = "tranzio.v1.ChatSession"

const (
	MethodGetStatus         = "GetStatus"
	MethodConnect           = "Connect"
	MethodDisconnect        = "Disconnect"
	MethodListConversations = "ListConversations"
	MethodOpenConversation  = "OpenConversation"
	MethodCloseConversation = "CloseConversation"
	MethodGetLog            = "GetLog"
	MethodSendMessage       = "SendMessage"
	MethodSearchMessages    = "SearchMessages"
	MethodToggleTranslation = "ToggleTranslation"
	MethodStreamEvents      = "StreamEvents"
)

// FullMethod returns the wire path of a method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type ChatSessionServer interface {
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Connect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Disconnect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListConversations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	OpenConversation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseConversation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchMessages(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleTranslation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamEvents(*structpb.Struct, grpc.ServerStream) error
}

type unaryCall func(ChatSessionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ChatSessionServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ChatSessionServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func streamEventsHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ChatSessionServer).StreamEvents(in, stream)
}

var ChatSessionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatSessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodGetStatus, ChatSessionServer.GetStatus),
		unaryMethod(MethodConnect, ChatSessionServer.Connect),
		unaryMethod(MethodDisconnect, ChatSessionServer.Disconnect),
		unaryMethod(MethodListConversations, ChatSessionServer.ListConversations),
		unaryMethod(MethodOpenConversation, ChatSessionServer.OpenConversation),
		unaryMethod(MethodCloseConversation, ChatSessionServer.CloseConversation),
		unaryMethod(MethodGetLog, ChatSessionServer.GetLog),
		unaryMethod(MethodSendMessage, ChatSessionServer.SendMessage),
		unaryMethod(MethodSearchMessages, ChatSessionServer.SearchMessages),
		unaryMethod(MethodToggleTranslation, ChatSessionServer.ToggleTranslation),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodStreamEvents,
			Handler:       streamEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "tranzio/v1/chat_session.proto",
}

func RegisterChatSessionServer(s grpc.ServiceRegistrar, srv ChatSessionServer) {
	s.RegisterService(&ChatSessionServiceDesc, srv)
}
