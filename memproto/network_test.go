package memproto

import (
	"context"
	"testing"
	"time"

	"github.com/kenhorn/atomix"
)

// echoHandler answers OpenSession/Command directly, ignoring everything
// else, so tests can focus on the network's fault behavior rather than
// session semantics.
type echoHandler struct {
	session atomix.SessionId
}

func (h *echoHandler) OpenSession(ctx context.Context, req *atomix.OpenSessionRequest) (*atomix.OpenSessionResponse, error) {
	return &atomix.OpenSessionResponse{Status: atomix.StatusOK, Session: h.session}, nil
}
func (h *echoHandler) CloseSession(ctx context.Context, req *atomix.CloseSessionRequest) (*atomix.CloseSessionResponse, error) {
	return &atomix.CloseSessionResponse{Status: atomix.StatusOK}, nil
}
func (h *echoHandler) KeepAlive(ctx context.Context, req *atomix.KeepAliveRequest) (*atomix.KeepAliveResponse, error) {
	return &atomix.KeepAliveResponse{Status: atomix.StatusOK}, nil
}
func (h *echoHandler) Command(ctx context.Context, req *atomix.CommandRequest) (*atomix.CommandResponse, error) {
	return &atomix.CommandResponse{Status: atomix.StatusOK, Result: atomix.OperationResult{Index: req.Sequence, Output: req.Input}}, nil
}
func (h *echoHandler) Query(ctx context.Context, req *atomix.QueryRequest) (*atomix.QueryResponse, error) {
	return &atomix.QueryResponse{Status: atomix.StatusOK, Result: atomix.OperationResult{Output: req.Input}}, nil
}
func (h *echoHandler) Metadata(ctx context.Context, req *atomix.MetadataRequest) (*atomix.MetadataResponse, error) {
	return &atomix.MetadataResponse{Status: atomix.StatusOK, Sessions: []atomix.SessionId{h.session}}, nil
}

func Test740_partition_refuses_calls_and_heal_restores(t *testing.T) {
	net := NewNetwork(1)
	net.JoinServer("server-1", &echoHandler{session: 1})
	net.JoinClient("client-1", nil)

	cp := net.ClientProtocolFor("client-1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := cp.OpenSession(ctx, "server-1", &atomix.OpenSessionRequest{ClientId: "c1"}); err != nil {
		t.Fatalf("expected success before partition, got %v", err)
	}

	net.Partition("client-1", "server-1")
	if _, err := cp.OpenSession(ctx, "server-1", &atomix.OpenSessionRequest{ClientId: "c1"}); err != atomix.ErrConnectionClosed {
		t.Fatalf("expected ErrConnectionClosed while partitioned, got %v", err)
	}

	net.Heal("client-1", "server-1")
	if _, err := cp.OpenSession(ctx, "server-1", &atomix.OpenSessionRequest{ClientId: "c1"}); err != nil {
		t.Fatalf("expected success after heal, got %v", err)
	}
}

func Test741_leave_refuses_calls_as_connection_refused(t *testing.T) {
	net := NewNetwork(2)
	net.JoinServer("server-1", &echoHandler{session: 1})
	net.JoinClient("client-1", nil)
	net.Leave("server-1")

	cp := net.ClientProtocolFor("client-1")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := cp.OpenSession(ctx, "server-1", &atomix.OpenSessionRequest{ClientId: "c1"}); err != atomix.ErrConnectionRefused {
		t.Fatalf("expected ErrConnectionRefused for a departed node, got %v", err)
	}
}

func Test741b_joinEphemeralClient_mints_a_usable_distinct_identity(t *testing.T) {
	net := NewNetwork(20)
	net.JoinServer("server-1", &echoHandler{session: 1})

	id1 := net.JoinEphemeralClient(nil)
	id2 := net.JoinEphemeralClient(nil)
	if id1 == "" || id2 == "" {
		t.Fatalf("expected non-empty minted ids, got %q and %q", id1, id2)
	}
	if id1 == id2 {
		t.Fatalf("expected two ephemeral clients to get distinct ids, both were %q", id1)
	}

	cp := net.ClientProtocolFor(id1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := cp.OpenSession(ctx, "server-1", &atomix.OpenSessionRequest{ClientId: "c1"}); err != nil {
		t.Fatalf("expected the minted identity to be usable as a client, got %v", err)
	}
}

func Test742_latency_delays_but_eventually_delivers(t *testing.T) {
	net := NewNetwork(3)
	net.JoinServer("server-1", &echoHandler{session: 1})
	net.JoinClient("client-1", nil)
	net.SetLatency(30 * time.Millisecond)

	cp := net.ClientProtocolFor("client-1")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if _, err := cp.OpenSession(ctx, "server-1", &atomix.OpenSessionRequest{ClientId: "c1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatalf("expected the call to observe at least the configured latency")
	}
}

func Test743_dropRate_one_always_drops(t *testing.T) {
	net := NewNetwork(4)
	net.JoinServer("server-1", &echoHandler{session: 1})
	net.JoinClient("client-1", nil)
	net.SetDropRate(1.0)

	cp := net.ClientProtocolFor("client-1")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := cp.OpenSession(ctx, "server-1", &atomix.OpenSessionRequest{ClientId: "c1"}); err != atomix.ErrConnectionClosed {
		t.Fatalf("expected every call dropped at dropRate 1.0, got %v", err)
	}
}

func Test744_clientConnection_fails_over_across_a_partitioned_leader(t *testing.T) {
	net := NewNetwork(5)
	net.JoinServer("leader", &echoHandler{session: 9})
	net.JoinServer("follower", &echoHandler{session: 9})
	net.JoinClient("client-1", nil)

	net.Partition("client-1", "leader")

	cp := net.ClientProtocolFor("client-1")
	sel := atomix.NewMemberSelector("leader", []atomix.MemberId{"leader", "follower"})
	cfg := atomix.NewConfig()
	cfg.ExecutorQueueDepth = 8
	conn := atomix.NewClientConnection(cp, sel, cfg)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := conn.OpenSession(ctx, &atomix.OpenSessionRequest{ClientId: "c1"})
	if err != nil {
		t.Fatalf("expected the connection to fail over to the follower, got %v", err)
	}
	if resp.Session != 9 {
		t.Fatalf("expected session 9, got %v", resp.Session)
	}
	if conn.Leader() != "follower" {
		t.Fatalf("expected connection to pin the follower after failover, got %v", conn.Leader())
	}
}

func Test745_reset_is_routed_to_the_registered_session_listener(t *testing.T) {
	net := NewNetwork(6)
	net.JoinServer("server-1", &echoHandler{session: 1})
	net.JoinClient("client-1", nil)

	sp := net.ServerProtocolFor("server-1")
	seen := make(chan *atomix.ResetRequest, 1)
	sp.RegisterResetListener(1, func(req *atomix.ResetRequest) {
		seen <- req
	})

	cp := net.ClientProtocolFor("client-1")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := cp.Reset(ctx, "server-1", &atomix.ResetRequest{Session: 1, Index: 7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case req := <-seen:
		if req.Index != 7 {
			t.Fatalf("expected index 7, got %d", req.Index)
		}
	case <-time.After(time.Second):
		t.Fatalf("reset listener never fired")
	}
}

func Test746_publish_is_routed_to_the_joined_client(t *testing.T) {
	net := NewNetwork(7)
	net.JoinServer("server-1", &echoHandler{session: 1})

	received := make(chan *atomix.PublishRequest, 1)
	net.JoinClient("client-1", func(req *atomix.PublishRequest) error {
		received <- req
		return nil
	})

	sp := net.ServerProtocolFor("server-1")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sp.Publish(ctx, "client-1", &atomix.PublishRequest{Session: 1, EventIndex: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case req := <-received:
		if req.EventIndex != 5 {
			t.Fatalf("expected event index 5, got %d", req.EventIndex)
		}
	case <-time.After(time.Second):
		t.Fatalf("publish never reached the client")
	}
}
