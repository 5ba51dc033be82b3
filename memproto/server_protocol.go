package memproto

import (
	"context"

	"github.com/kenhorn/atomix"
)

// serverProtocol is the atomix.ServerProtocol view of a Network as seen
// from one particular server identity.
type serverProtocol struct {
	net  *Network
	self atomix.MemberId
}

// ServerProtocolFor returns the atomix.ServerProtocol a server
// identified as self should use to publish events and hear resets.
func (n *Network) ServerProtocolFor(self atomix.MemberId) atomix.ServerProtocol {
	return &serverProtocol{net: n, self: self}
}

func (s *serverProtocol) Publish(ctx context.Context, member atomix.MemberId, req *atomix.PublishRequest) error {
	target, err := s.net.deliver(ctx, s.self, member)
	if err != nil {
		return err
	}
	if target.onPublish == nil {
		return atomix.ErrConnectionRefused
	}
	return target.onPublish(req)
}

func (s *serverProtocol) RegisterResetListener(session atomix.SessionId, handler atomix.ResetHandler) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	s.net.resetSubs[session] = handler
}

func (s *serverProtocol) UnregisterResetListener(session atomix.SessionId) {
	s.net.mu.Lock()
	defer s.net.mu.Unlock()
	delete(s.net.resetSubs, session)
}
