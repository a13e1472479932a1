package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	hostServiceName = "bolt.host.v1.Host"
	invokeMethod    = "/" + hostServiceName + "/Invoke"
	listenMethod    = "/" + hostServiceName + "/Listen"

	fieldCommand = "command"
	fieldArgs    = "args"

	headerEvent = "bolt-event"
)

// GRPCHost is a Host reached over a local gRPC connection, typically a unix
// socket owned by the host process.
type GRPCHost struct {
	conn     *grpc.ClientConn
	logger   *slog.Logger
	ownsConn bool
}

// DialHost connects to a host process at address (for example
// "unix:///run/bolt/host.sock" or "127.0.0.1:4459"). The connection is
// plaintext; the host must only listen locally.
func DialHost(address string, logger *slog.Logger) (*GRPCHost, error) {
	// Keep the long-lived response subscription alive while idle
	kaParams := keepalive.ClientParameters{
		Time:                10 * time.Second,
		Timeout:             3 * time.Second,
		PermitWithoutStream: true,
	}

	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kaParams),
	)
	if err != nil {
		logger.Error("failed to create host client",
			slog.String("address", address),
			slog.Any("error", err),
		)
		return nil, err
	}

	logger.Info("host client created", slog.String("address", address))

	host := NewGRPCHost(conn, logger)
	host.ownsConn = true
	return host, nil
}

// NewGRPCHost wraps an existing connection. The caller keeps ownership of conn.
func NewGRPCHost(conn *grpc.ClientConn, logger *slog.Logger) *GRPCHost {
	return &GRPCHost{
		conn:   conn,
		logger: logger,
	}
}

// Invoke implements Host.
func (h *GRPCHost) Invoke(ctx context.Context, command string, args []byte) (string, error) {
	req, err := structpb.NewStruct(map[string]any{
		fieldCommand: command,
		fieldArgs:    string(args),
	})
	if err != nil {
		return "", fmt.Errorf("build invoke request: %w", err)
	}

	reply := new(wrapperspb.StringValue)
	if err := h.conn.Invoke(ctx, invokeMethod, req, reply); err != nil {
		h.logger.Debug("host invoke failed",
			slog.String("command", command),
			slog.Any("error", err),
		)
		return "", err
	}

	return reply.GetValue(), nil
}

// Listen implements Host. It returns once the host has accepted the
// subscription, so a failure to subscribe surfaces here rather than on the
// first receive.
func (h *GRPCHost) Listen(ctx context.Context, event string) (<-chan string, error) {
	desc := &grpc.StreamDesc{StreamName: "Listen", ServerStreams: true}
	stream, err := h.conn.NewStream(ctx, desc, listenMethod)
	if err != nil {
		return nil, fmt.Errorf("open listen stream: %w", err)
	}
	if err := stream.SendMsg(wrapperspb.String(event)); err != nil {
		return nil, fmt.Errorf("send listen request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("close listen request: %w", err)
	}

	md, err := stream.Header()
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", event, err)
	}
	if md == nil {
		// The host refused the subscription; the status is on the stream
		err = stream.RecvMsg(new(wrapperspb.StringValue))
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("listen %s: stream ended before it was accepted", event)
		}
		return nil, fmt.Errorf("listen %s: %w", event, err)
	}

	out := make(chan string, listenBuffer)
	go func() {
		defer close(out)

		count := 0
		for {
			msg := new(wrapperspb.StringValue)
			if err := stream.RecvMsg(msg); err != nil {
				if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
					h.logger.Debug("host event stream closed",
						slog.String("event", event),
						slog.Int("message_count", count),
					)
				} else {
					h.logger.Error("host event stream failed",
						slog.String("event", event),
						slog.Int("message_count", count),
						slog.Any("error", err),
					)
				}
				return
			}

			count++
			select {
			case out <- msg.GetValue():
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close closes the connection when it was created by DialHost.
func (h *GRPCHost) Close() error {
	if !h.ownsConn {
		return nil
	}
	return h.conn.Close()
}

// RegisterHost exposes host on s under the bolt.host.v1.Host service, so a
// host process written in Go can serve GRPCHost clients.
func RegisterHost(s *grpc.Server, host Host) {
	s.RegisterService(&hostServiceDesc, host)
}

var hostServiceDesc = grpc.ServiceDesc{
	ServiceName: hostServiceName,
	HandlerType: (*Host)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Invoke",
			Handler:    invokeHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Listen",
			Handler:       listenHandler,
			ServerStreams: true,
		},
	},
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	call := func(ctx context.Context, req any) (any, error) {
		fields := req.(*structpb.Struct).GetFields()
		command := fields[fieldCommand].GetStringValue()
		args := fields[fieldArgs].GetStringValue()

		reply, err := srv.(Host).Invoke(ctx, command, []byte(args))
		if err != nil {
			if errors.Is(err, ErrUnknownCommand) {
				return nil, status.Error(codes.Unimplemented, err.Error())
			}
			return nil, status.Error(codes.Internal, err.Error())
		}
		return wrapperspb.String(reply), nil
	}

	if interceptor == nil {
		return call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: invokeMethod}
	return interceptor(ctx, in, info, call)
}

func listenHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	ctx := stream.Context()
	events, err := srv.(Host).Listen(ctx, in.GetValue())
	if err != nil {
		return status.Error(codes.Unavailable, err.Error())
	}

	// Headers mark the subscription as accepted for the client
	if err := stream.SendHeader(metadata.Pairs(headerEvent, in.GetValue())); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(wrapperspb.String(payload)); err != nil {
				return err
			}
		}
	}
}
