package atomix

import (
	"context"

	"github.com/glycerine/loquet"
)

// ClientConnection is the client-side endpoint for one session: it owns
// the leader-seeking dispatch loop, grounded directly on
// RaftProxyConnection.java. All retry state
// (selector position, pinned member) is only ever touched from the
// connection's own Executor, so dispatch never needs a mutex.
type ClientConnection struct {
	protocol ClientProtocol
	selector *MemberSelector
	executor *Executor
	member   MemberId // pinned to the member that answered the last completed request
}

// NewClientConnection builds a connection that dispatches through
// protocol, trying members in selector's order, with all retry
// bookkeeping serialized on an Executor of its own sized from
// cfg.ExecutorQueueDepth. The caller owns the returned connection and
// must call Close when done with it.
func NewClientConnection(protocol ClientProtocol, selector *MemberSelector, cfg *Config) *ClientConnection {
	return &ClientConnection{
		protocol: protocol,
		selector: selector,
		executor: NewExecutor(cfg.ExecutorQueueDepth),
	}
}

// Close shuts down the connection's Executor. The connection must not
// be used afterward.
func (c *ClientConnection) Close() {
	c.executor.Close()
}

// Leader returns the connection's current pinned or best-guess leader.
// It reads that state on the executor, so it observes every
// RewindSelector/SetMembers call made before it.
func (c *ClientConnection) Leader() MemberId {
	done := make(chan MemberId, 1)
	c.executor.Submit(func() {
		if c.member != "" {
			done <- c.member
			return
		}
		done <- c.selector.Leader()
	})
	select {
	case m := <-done:
		return m
	case <-c.executor.Done():
		return ""
	}
}

// RewindSelector rewinds the connection to retry every member from the
// start of selector's order, clearing any pinned member. Used after a
// command or query sees a retryable failure on the pinned route.
func (c *ClientConnection) RewindSelector() {
	c.executor.Submit(func() {
		c.member = ""
		c.selector.Reset()
	})
}

// SetMembers replaces the known leader/membership, as with
// MemberSelector.ResetTo, and clears any pinned member.
func (c *ClientConnection) SetMembers(leader MemberId, members []MemberId) {
	c.executor.Submit(func() {
		c.member = ""
		c.selector.ResetTo(leader, members)
	})
}

// result is the payload carried across a dispatch's loquet.Chan: the
// response (possibly nil on transport failure) and/or an error.
type result[Resp any] struct {
	resp *Resp
	err  error
}

// dispatch implements RaftProxyConnection.sendRequest/retryRequest/handleResponse
// generically over the six RPC shapes: it tries call against the next
// candidate member, retries on transport failure or a non-terminal
// *RaftError by reselecting, and otherwise returns, pinning the member
// that answered; a terminal *RaftError is returned as the error along
// with the response. Every such completion also resets the
// selector's iteration position, mirroring handleResponse's
// future.complete(response); reset(): a future transient failure
// starts afresh from the leader hint instead of resuming wherever this
// round-trip's retries left off.
func dispatch[Req any, Resp any](
	ctx context.Context,
	c *ClientConnection,
	req *Req,
	call func(context.Context, MemberId, *Req) (*Resp, error),
	classify func(*Resp) *RaftError,
) (*Resp, error) {
	future := loquet.NewChan[struct{}](&struct{}{})
	var out result[Resp]

	// retry mirrors RaftProxyConnection.retryRequest: it clears the
	// pinned member only if it still matches the member that just
	// failed (a concurrent success elsewhere may have already
	// repinned it), then tries the next candidate, giving up with
	// ErrNoRoute once the selector is exhausted. Only ever called on
	// the executor.
	var attempt func(member MemberId)
	retry := func(failed MemberId) {
		if c.member == failed {
			c.member = ""
		}
		next := c.next()
		if next == "" {
			vv("dispatch: selector exhausted after %v failed, giving up with ErrNoRoute", failed)
			out = result[Resp]{nil, ErrNoRoute}
			future.Close()
			return
		}
		vv("dispatch: %v failed, retrying against %v", failed, next)
		go attempt(next)
	}

	attempt = func(member MemberId) {
		resp, err := call(ctx, member, req)
		c.executor.Submit(func() {
			if err != nil {
				if !IsTransportError(err) {
					c.selector.Reset()
					out = result[Resp]{nil, err}
					future.Close()
					return
				}
				retry(member)
				return
			}
			if resp == nil {
				out = result[Resp]{nil, nil}
				future.Close()
				return
			}
			rerr := classify(resp)
			if rerr != nil && !rerr.Type.terminal() {
				retry(member)
				return
			}
			c.member = member
			c.selector.Reset()
			out = result[Resp]{resp, nil}
			if rerr != nil {
				out.err = rerr
			}
			future.Close()
		})
	}

	c.executor.Submit(func() {
		member := c.next()
		if member == "" {
			out = result[Resp]{nil, ErrNoRoute}
			future.Close()
			return
		}
		go attempt(member)
	})

	select {
	case <-future.WhenClosed():
		return out.resp, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// next returns the pinned member if set, else the next candidate from
// selector, resetting and returning "" once exhausted -- mirroring
// RaftProxyConnection.next().
func (c *ClientConnection) next() MemberId {
	if c.member != "" {
		return c.member
	}
	if c.selector.HasNext() {
		return c.selector.Next()
	}
	c.selector.Reset()
	return ""
}

func (c *ClientConnection) OpenSession(ctx context.Context, req *OpenSessionRequest) (*OpenSessionResponse, error) {
	return dispatch(ctx, c, req, c.protocol.OpenSession, func(r *OpenSessionResponse) *RaftError { return r.Error })
}

func (c *ClientConnection) CloseSession(ctx context.Context, req *CloseSessionRequest) (*CloseSessionResponse, error) {
	return dispatch(ctx, c, req, c.protocol.CloseSession, func(r *CloseSessionResponse) *RaftError { return r.Error })
}

func (c *ClientConnection) KeepAlive(ctx context.Context, req *KeepAliveRequest) (*KeepAliveResponse, error) {
	return dispatch(ctx, c, req, c.protocol.KeepAlive, func(r *KeepAliveResponse) *RaftError { return r.Error })
}

func (c *ClientConnection) Command(ctx context.Context, req *CommandRequest) (*CommandResponse, error) {
	return dispatch(ctx, c, req, c.protocol.Command, func(r *CommandResponse) *RaftError { return r.Error })
}

func (c *ClientConnection) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	return dispatch(ctx, c, req, c.protocol.Query, func(r *QueryResponse) *RaftError { return r.Error })
}

func (c *ClientConnection) Metadata(ctx context.Context, req *MetadataRequest) (*MetadataResponse, error) {
	return dispatch(ctx, c, req, c.protocol.Metadata, func(r *MetadataResponse) *RaftError { return r.Error })
}

// SendReset acknowledges received events and asks for a resend of
// anything beyond req.Index. It is sent best-effort to the current
// leader (or pinned member) and is not retried: a dropped reset is
// simply superseded by the next one.
func (c *ClientConnection) SendReset(ctx context.Context, req *ResetRequest) error {
	member := c.Leader()
	if member == "" {
		return ErrNoRoute
	}
	return c.protocol.Reset(ctx, member, req)
}
