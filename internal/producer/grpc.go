package producer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region wire
// The producer RPC carries structpb.Struct messages:
//
//	request:  {prompt: string, query: string}
//	response: {response_text: string, commitment_vector: [number], identity: string}
const (
	serviceName    = "raist.v1.Producer"
	generateMethod = "/" + serviceName + "/Generate"

	fieldPrompt   = "prompt"
	fieldQuery    = "query"
	fieldResponse = "response_text"
	fieldVector   = "commitment_vector"
	fieldIdentity = "identity"
)

func encodeRequest(prompt, query string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		fieldPrompt: prompt,
		fieldQuery:  query,
	})
}

func encodeOutput(out Output) (*structpb.Struct, error) {
	vec := make([]interface{}, len(out.Vector))
	for i, x := range out.Vector {
		vec[i] = x
	}
	return structpb.NewStruct(map[string]interface{}{
		fieldResponse: out.ResponseText,
		fieldVector:   vec,
		fieldIdentity: out.Identity,
	})
}

func decodeOutput(s *structpb.Struct) (Output, error) {
	fields := s.GetFields()
	list := fields[fieldVector].GetListValue()
	if list == nil {
		return Output{}, fmt.Errorf("decode output: missing %s", fieldVector)
	}
	vec := make([]float64, len(list.GetValues()))
	for i, v := range list.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return Output{}, fmt.Errorf("decode output: %s[%d] is not a number", fieldVector, i)
		}
		vec[i] = n.NumberValue
	}
	return Output{
		ResponseText: fields[fieldResponse].GetStringValue(),
		Vector:       vec,
		Identity:     fields[fieldIdentity].GetStringValue(),
	}, nil
}

// #endregion wire

// #region client
// Client is a Producer backed by a remote gRPC producer service.
type Client struct {
	conn grpc.ClientConnInterface
	cc   *grpc.ClientConn // nil when the connection is injected
}

// NewClient connects to a producer service at addr. Without options the
// connection is plaintext.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: cc, cc: cc}, nil
}

// NewClientWithConn wraps an existing connection.
func NewClientWithConn(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Close shuts down a connection opened by NewClient.
func (c *Client) Close() error {
	if c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Generate calls the remote producer.
func (c *Client) Generate(ctx context.Context, prompt, query string) (Output, error) {
	req, err := encodeRequest(prompt, query)
	if err != nil {
		return Output{}, fmt.Errorf("encode request: %w", err)
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, generateMethod, req, resp); err != nil {
		return Output{}, fmt.Errorf("generate rpc: %w", err)
	}
	return decodeOutput(resp)
}

// #endregion client

// #region server
type generateServer interface {
	generate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type server struct {
	producer Producer
	logger   *zap.Logger
}

func (s *server) generate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	prompt, ok := fields[fieldPrompt].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "missing %s", fieldPrompt)
	}
	query := fields[fieldQuery].GetStringValue()

	out, err := s.producer.Generate(ctx, prompt.StringValue, query)
	if err != nil {
		s.logger.Warn("generate failed", zap.Error(err))
		return nil, status.Errorf(codes.Internal, "generate: %v", err)
	}
	resp, err := encodeOutput(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode output: %v", err)
	}
	return resp, nil
}

func generateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(generateServer).generate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: generateMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(generateServer).generate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*generateServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Generate", Handler: generateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "raist/v1/producer",
}

// RegisterServer exposes p as a producer service on s.
func RegisterServer(s grpc.ServiceRegistrar, p Producer, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s.RegisterService(&serviceDesc, &server{producer: p, logger: logger.Named("producer")})
}

// #endregion server
