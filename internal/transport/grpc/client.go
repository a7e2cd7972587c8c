package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a ChatSession server.
type Client struct {
	conn *grpc.ClientConn
}

// Dial opens a plaintext client connection to address.
func Dial(address string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Call invokes a unary method with params as the request body.
func (c *Client) Call(ctx context.Context, method string, params map[string]interface{}) (*structpb.Struct, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	req, err := structpb.NewStruct(params)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// EventStream receives events from StreamEvents.
type EventStream struct {
	stream grpc.ClientStream
}

func (s *EventStream) Recv() (*structpb.Struct, error) {
	ev := new(structpb.Struct)
	if err := s.stream.RecvMsg(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// StreamEvents subscribes to the given event types, or the server default
// set when types is empty. The stream ends when ctx is cancelled.
func (c *Client) StreamEvents(ctx context.Context, types ...string) (*EventStream, error) {
	list := make([]interface{}, len(types))
	for i, t := range types {
		list[i] = t
	}
	req, err := structpb.NewStruct(map[string]interface{}{"types": list})
	if err != nil {
		return nil, err
	}

	desc := &ChatSessionServiceDesc.Streams[0]
	stream, err := c.conn.NewStream(ctx, desc, FullMethod(MethodStreamEvents))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: stream}, nil
}
