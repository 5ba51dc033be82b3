// Package memproto is an in-process, injectable-fault implementation
// of atomix.ClientProtocol and atomix.ServerProtocol, for tests that
// need a concrete transport without a real network: a single actor
// owns every node's reachability, and callers inject faults
// (partitions, drops, latency) through a small control surface rather
// than a real socket.
package memproto

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/kenhorn/atomix"
)

// Handler is the server-side RPC surface a joined server node must
// implement; memproto routes simulated client calls to it.
type Handler interface {
	OpenSession(ctx context.Context, req *atomix.OpenSessionRequest) (*atomix.OpenSessionResponse, error)
	CloseSession(ctx context.Context, req *atomix.CloseSessionRequest) (*atomix.CloseSessionResponse, error)
	KeepAlive(ctx context.Context, req *atomix.KeepAliveRequest) (*atomix.KeepAliveResponse, error)
	Command(ctx context.Context, req *atomix.CommandRequest) (*atomix.CommandResponse, error)
	Query(ctx context.Context, req *atomix.QueryRequest) (*atomix.QueryResponse, error)
	Metadata(ctx context.Context, req *atomix.MetadataRequest) (*atomix.MetadataResponse, error)
}

// PublishHandler receives events pushed to a client node.
type PublishHandler func(req *atomix.PublishRequest) error

// Network is a shared, in-process fault-injecting transport. One
// Network typically backs one test: servers and clients Join it under
// stable MemberId values, and the test drives Partition/Heal/SetLatency/
// SetDropRate to exercise ClientConnection's retry behavior.
type Network struct {
	mu        sync.Mutex
	nodes     map[atomix.MemberId]*node
	cut       map[linkKey]bool
	latency   time.Duration
	dropRate  float64
	rng       *rand.Rand
	resetSubs map[atomix.SessionId]atomix.ResetHandler
}

type linkKey struct {
	a, b atomix.MemberId
}

func newLinkKey(a, b atomix.MemberId) linkKey {
	if a > b {
		a, b = b, a
	}
	return linkKey{a, b}
}

type node struct {
	id        atomix.MemberId
	handler   Handler
	onPublish PublishHandler
}

// NewNetwork builds an empty, fully healthy network with no added
// latency and no drop rate. seed fixes the drop-rate RNG so tests are
// reproducible.
func NewNetwork(seed int64) *Network {
	return &Network{
		nodes:     make(map[atomix.MemberId]*node),
		cut:       make(map[linkKey]bool),
		rng:       rand.New(rand.NewSource(seed)),
		resetSubs: make(map[atomix.SessionId]atomix.ResetHandler),
	}
}

// JoinServer registers a server node that answers RPCs via handler.
func (n *Network) JoinServer(id atomix.MemberId, handler Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodes[id] = &node{id: id, handler: handler}
}

// JoinClient registers a client node that receives published events
// via onPublish. onPublish may be nil for a client that never expects
// events (e.g. a pure metadata probe).
func (n *Network) JoinClient(id atomix.MemberId, onPublish PublishHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nodes[id] = &node{id: id, onPublish: onPublish}
}

// JoinEphemeralClient mints a throwaway MemberId via atomix.NewMemberID
// and joins it as a client, for tests and tooling that need a node
// identity but don't care what it is.
func (n *Network) JoinEphemeralClient(onPublish PublishHandler) atomix.MemberId {
	id := atomix.NewMemberID()
	n.JoinClient(id, onPublish)
	return id
}

// Leave removes a node entirely; calls addressed to it thereafter are
// refused as if the process had exited.
func (n *Network) Leave(id atomix.MemberId) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.nodes, id)
}

// Partition cuts the link between a and b: calls in either direction
// fail with atomix.ErrConnectionClosed until Heal is called.
func (n *Network) Partition(a, b atomix.MemberId) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cut[newLinkKey(a, b)] = true
}

// Heal restores the link between a and b.
func (n *Network) Heal(a, b atomix.MemberId) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.cut, newLinkKey(a, b))
}

// HealAll restores every cut link.
func (n *Network) HealAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cut = make(map[linkKey]bool)
}

// SetLatency adds a fixed delay to every call, simulating network RTT.
func (n *Network) SetLatency(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.latency = d
}

// SetDropRate sets the independent, per-call probability that a
// healthy link still silently drops a message, simulating packet loss
// distinct from a hard partition.
func (n *Network) SetDropRate(rate float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropRate = rate
}

// lookup returns the node at id, the network's current latency/drop
// settings, and whether the from-to link is cut, under a single lock.
func (n *Network) lookup(from, to atomix.MemberId) (target *node, delay time.Duration, dropRate float64, cut bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	target = n.nodes[to]
	delay = n.latency
	dropRate = n.dropRate
	cut = n.cut[newLinkKey(from, to)]
	return
}

// deliver simulates one hop from->to: it applies the partition check,
// the latency delay (respecting ctx cancellation), and the drop-rate
// coin flip, then reports whether the call should proceed.
func (n *Network) deliver(ctx context.Context, from, to atomix.MemberId) (*node, error) {
	target, delay, dropRate, cut := n.lookup(from, to)
	if target == nil {
		return nil, atomix.ErrConnectionRefused
	}
	if cut {
		return nil, atomix.ErrConnectionClosed
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if dropRate > 0 {
		n.mu.Lock()
		roll := n.rng.Float64()
		n.mu.Unlock()
		if roll < dropRate {
			return nil, atomix.ErrConnectionClosed
		}
	}
	return target, nil
}
