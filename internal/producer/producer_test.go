package producer

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func TestCannedKeywords(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		prompt string
		query  string
		want   []float64
	}{
		{ReanchorPrefix + " drift", "anything", []float64{0.99, 0.99, 0.85, 0.80}},
		{"p", "What happens on a loss of control?", []float64{0.1, 0.1, 0.1, 0.1}},
		{"p", "Is this DANGEROUS?", []float64{0.1, 0.1, 0.1, 0.1}},
		{"p", "Which ethical standards apply?", []float64{0.98, 0.95, 0.88, 0.85}},
		{"p", "hello", []float64{0.4, 0.3, 0.5, 0.5}},
	}
	for _, tt := range tests {
		out, err := Canned{}.Generate(ctx, tt.prompt, tt.query)
		require.NoError(t, err)
		require.Equal(t, tt.want, out.Vector, "query %q", tt.query)
		require.Equal(t, CannedIdentity, out.Identity)
		require.NotEmpty(t, out.ResponseText)
	}
}

func TestCannedDeterministic(t *testing.T) {
	a, _ := Canned{}.Generate(context.Background(), "p", "ethics")
	b, _ := Canned{}.Generate(context.Background(), "p", "ethics")
	require.Equal(t, a, b)
}

func TestScriptedQueueAndCalls(t *testing.T) {
	s := NewScripted(Output{ResponseText: "one"})
	s.Push(Output{ResponseText: "two"})

	out, err := s.Generate(context.Background(), "p1", "q1")
	require.NoError(t, err)
	require.Equal(t, "one", out.ResponseText)

	out, err = s.Generate(context.Background(), "p2", "q2")
	require.NoError(t, err)
	require.Equal(t, "two", out.ResponseText)

	_, err = s.Generate(context.Background(), "p3", "q3")
	require.Error(t, err)

	calls := s.Calls()
	require.Len(t, calls, 3)
	require.Equal(t, Call{Prompt: "p2", Query: "q2"}, calls[1])
}

func TestFuncAdapter(t *testing.T) {
	var p Producer = Func(func(ctx context.Context, prompt, query string) (Output, error) {
		return Output{ResponseText: prompt + "/" + query}, nil
	})
	out, err := p.Generate(context.Background(), "a", "b")
	require.NoError(t, err)
	require.Equal(t, "a/b", out.ResponseText)
}

func startServer(t *testing.T, p Producer) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterServer(srv, p, zaptest.NewLogger(t))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCRoundTrip(t *testing.T) {
	client := startServer(t, Canned{})

	out, err := client.Generate(context.Background(), "Current query: ethics", "Which ethical standards apply?")
	require.NoError(t, err)
	require.Equal(t, []float64{0.98, 0.95, 0.88, 0.85}, out.Vector)
	require.Equal(t, CannedIdentity, out.Identity)
	require.True(t, strings.Contains(out.ResponseText, "ethics"))
}

func TestGRPCProducerError(t *testing.T) {
	failing := Func(func(ctx context.Context, prompt, query string) (Output, error) {
		return Output{}, errors.New("model offline")
	})
	client := startServer(t, failing)

	_, err := client.Generate(context.Background(), "p", "q")
	require.Error(t, err)
	st, ok := status.FromError(errors.Unwrap(err))
	require.True(t, ok)
	require.Equal(t, codes.Internal, st.Code())
}

func TestDecodeOutputRejectsNonNumbers(t *testing.T) {
	s, err := encodeOutput(Output{ResponseText: "x", Vector: []float64{1, 2}})
	require.NoError(t, err)
	out, err := decodeOutput(s)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2}, out.Vector)

	bad, err := encodeRequest("p", "q")
	require.NoError(t, err)
	_, err = decodeOutput(bad)
	require.Error(t, err)
}
