package memproto

import (
	"context"

	"github.com/kenhorn/atomix"
)

// clientProtocol is the atomix.ClientProtocol view of a Network as seen
// from one particular client identity: self is the "from" address used
// for partition lookups.
type clientProtocol struct {
	net  *Network
	self atomix.MemberId
}

// ClientProtocolFor returns the atomix.ClientProtocol a client
// identified as self should dispatch through. Multiple clients may
// share one Network, each with its own identity and therefore its own
// partition exposure.
func (n *Network) ClientProtocolFor(self atomix.MemberId) atomix.ClientProtocol {
	return &clientProtocol{net: n, self: self}
}

func (c *clientProtocol) OpenSession(ctx context.Context, member atomix.MemberId, req *atomix.OpenSessionRequest) (*atomix.OpenSessionResponse, error) {
	target, err := c.net.deliver(ctx, c.self, member)
	if err != nil {
		return nil, err
	}
	if target.handler == nil {
		return nil, atomix.ErrConnectionRefused
	}
	return target.handler.OpenSession(ctx, req)
}

func (c *clientProtocol) CloseSession(ctx context.Context, member atomix.MemberId, req *atomix.CloseSessionRequest) (*atomix.CloseSessionResponse, error) {
	target, err := c.net.deliver(ctx, c.self, member)
	if err != nil {
		return nil, err
	}
	if target.handler == nil {
		return nil, atomix.ErrConnectionRefused
	}
	return target.handler.CloseSession(ctx, req)
}

func (c *clientProtocol) KeepAlive(ctx context.Context, member atomix.MemberId, req *atomix.KeepAliveRequest) (*atomix.KeepAliveResponse, error) {
	target, err := c.net.deliver(ctx, c.self, member)
	if err != nil {
		return nil, err
	}
	if target.handler == nil {
		return nil, atomix.ErrConnectionRefused
	}
	return target.handler.KeepAlive(ctx, req)
}

func (c *clientProtocol) Command(ctx context.Context, member atomix.MemberId, req *atomix.CommandRequest) (*atomix.CommandResponse, error) {
	target, err := c.net.deliver(ctx, c.self, member)
	if err != nil {
		return nil, err
	}
	if target.handler == nil {
		return nil, atomix.ErrConnectionRefused
	}
	return target.handler.Command(ctx, req)
}

func (c *clientProtocol) Query(ctx context.Context, member atomix.MemberId, req *atomix.QueryRequest) (*atomix.QueryResponse, error) {
	target, err := c.net.deliver(ctx, c.self, member)
	if err != nil {
		return nil, err
	}
	if target.handler == nil {
		return nil, atomix.ErrConnectionRefused
	}
	return target.handler.Query(ctx, req)
}

func (c *clientProtocol) Metadata(ctx context.Context, member atomix.MemberId, req *atomix.MetadataRequest) (*atomix.MetadataResponse, error) {
	target, err := c.net.deliver(ctx, c.self, member)
	if err != nil {
		return nil, err
	}
	if target.handler == nil {
		return nil, atomix.ErrConnectionRefused
	}
	return target.handler.Metadata(ctx, req)
}

func (c *clientProtocol) Reset(ctx context.Context, member atomix.MemberId, req *atomix.ResetRequest) error {
	target, err := c.net.deliver(ctx, c.self, member)
	if err != nil {
		return err
	}
	if target.handler == nil {
		return atomix.ErrConnectionRefused
	}
	c.net.mu.Lock()
	handler, ok := c.net.resetSubs[req.Session]
	c.net.mu.Unlock()
	if !ok {
		return nil
	}
	handler(req)
	return nil
}
