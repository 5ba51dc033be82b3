package atomix_test

import (
	"context"
	"testing"
	"time"

	"github.com/kenhorn/atomix"
	"github.com/kenhorn/atomix/memproto"
)

// sessionServer is a minimal memproto.Handler backing a single
// in-memory counter service, enough to exercise Session end-to-end
// without a real Raft cluster underneath.
type sessionServer struct {
	net     *memproto.Network
	self    atomix.MemberId
	nextID  uint64
	session atomix.SessionId
	counter uint64
}

func (s *sessionServer) OpenSession(ctx context.Context, req *atomix.OpenSessionRequest) (*atomix.OpenSessionResponse, error) {
	s.nextID++
	s.session = atomix.SessionId(s.nextID)
	return &atomix.OpenSessionResponse{Status: atomix.StatusOK, Session: s.session, Timeout: req.Timeout}, nil
}

func (s *sessionServer) CloseSession(ctx context.Context, req *atomix.CloseSessionRequest) (*atomix.CloseSessionResponse, error) {
	return &atomix.CloseSessionResponse{Status: atomix.StatusOK}, nil
}

func (s *sessionServer) KeepAlive(ctx context.Context, req *atomix.KeepAliveRequest) (*atomix.KeepAliveResponse, error) {
	return &atomix.KeepAliveResponse{Status: atomix.StatusOK, Leader: s.self}, nil
}

func (s *sessionServer) Command(ctx context.Context, req *atomix.CommandRequest) (*atomix.CommandResponse, error) {
	s.counter++
	return &atomix.CommandResponse{Status: atomix.StatusOK, Result: atomix.OperationResult{Index: s.counter, Output: []byte{byte(s.counter)}}}, nil
}

func (s *sessionServer) Query(ctx context.Context, req *atomix.QueryRequest) (*atomix.QueryResponse, error) {
	return &atomix.QueryResponse{Status: atomix.StatusOK, Result: atomix.OperationResult{Output: []byte{byte(s.counter)}}}, nil
}

func (s *sessionServer) Metadata(ctx context.Context, req *atomix.MetadataRequest) (*atomix.MetadataResponse, error) {
	return &atomix.MetadataResponse{Status: atomix.StatusOK, Sessions: []atomix.SessionId{s.session}}, nil
}

func Test750_session_open_command_query_close(t *testing.T) {
	net := memproto.NewNetwork(42)
	server := &sessionServer{net: net, self: "server-1"}
	net.JoinServer("server-1", server)
	net.JoinClient("client-1", nil)

	cp := net.ClientProtocolFor("client-1")
	sel := atomix.NewMemberSelector("server-1", []atomix.MemberId{"server-1"})

	cfg := atomix.NewConfig()
	cfg.KeepAliveInterval = 0 // disable the background ticker for a deterministic test
	cfg.ExecutorQueueDepth = 8

	conn := atomix.NewClientConnection(cp, sel, cfg)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sess, err := atomix.OpenSession(ctx, conn, "client-1", "counter", "counter-type", cfg)
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	if sess.ID() != 1 {
		t.Fatalf("expected session id 1, got %v", sess.ID())
	}

	result, err := sess.Command(ctx, "increment", nil)
	if err != nil {
		t.Fatalf("Command failed: %v", err)
	}
	if result.Output[0] != 1 {
		t.Fatalf("expected counter 1, got %v", result.Output)
	}

	qr, err := sess.Query(ctx, "get", nil, atomix.ReadSequential, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if qr.Output[0] != 1 {
		t.Fatalf("expected query to observe counter 1, got %v", qr.Output)
	}

	if err := sess.KeepAlive(ctx, 0); err != nil {
		t.Fatalf("KeepAlive failed: %v", err)
	}

	if err := sess.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
