package atomix

import (
	"context"
	"sync/atomic"
	"time"
)

// Session is the client-facing handle bundling a ClientConnection with
// the request-sequence counter and background keep-alive loop a real
// caller needs: ClientConnection alone only knows how to dispatch one
// already-sequenced RPC, mirroring the split between
// RaftProxyConnection and the higher-level RaftProxySession.
type Session struct {
	conn   *ClientConnection
	id     SessionId
	client string

	requestSeq uint64 // atomic
	commandSeq uint64 // atomic, request sequence of the last command that returned a result

	halt *haltableTicker
}

// OpenSession opens a new session against the cluster reachable
// through conn, under clientID and the given service name/type,
// blocking until the server answers or ctx is done.
func OpenSession(ctx context.Context, conn *ClientConnection, clientID, serviceName, serviceType string, cfg *Config) (*Session, error) {
	resp, err := conn.OpenSession(ctx, &OpenSessionRequest{
		ClientId:        clientID,
		ServiceName:     serviceName,
		ServiceType:     serviceType,
		Timeout:         cfg.SessionTimeout,
		ReadConsistency: cfg.DefaultReadConsistency,
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	s := &Session{conn: conn, id: resp.Session, client: clientID}
	s.halt = startKeepAlive(s, cfg.KeepAliveInterval)
	return s, nil
}

func (s *Session) ID() SessionId { return s.id }

// nextRequestSequence returns the next client-assigned request number.
func (s *Session) nextRequestSequence() uint64 {
	return atomic.AddUint64(&s.requestSeq, 1)
}

// Command dispatches a sequenced write operation and returns its
// result once the cluster has produced one (applying it exactly once,
// even across a retry to a new leader, via the server's result cache).
func (s *Session) Command(ctx context.Context, name string, input []byte) (*OperationResult, error) {
	seq := s.nextRequestSequence()
	resp, err := s.conn.Command(ctx, &CommandRequest{
		Session:  s.id,
		Sequence: seq,
		Name:     name,
		Input:    input,
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	atomic.StoreUint64(&s.commandSeq, seq)
	return &resp.Result, nil
}

// Query dispatches a read operation under consistency, tagged with
// the command sequence (for ReadSequential) or log index (for
// ReadLinearizable) the caller wants the read gated on.
func (s *Session) Query(ctx context.Context, name string, input []byte, consistency ReadConsistency, index uint64) (*OperationResult, error) {
	resp, err := s.conn.Query(ctx, &QueryRequest{
		Session:     s.id,
		Sequence:    atomic.LoadUint64(&s.commandSeq),
		Index:       index,
		Consistency: consistency,
		Name:        name,
		Input:       input,
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &resp.Result, nil
}

// KeepAlive sends one keep-alive, acknowledging commandSeq and
// upToEventIndex, and adopts any leader/membership change reported.
func (s *Session) KeepAlive(ctx context.Context, upToEventIndex uint64) error {
	resp, err := s.conn.KeepAlive(ctx, &KeepAliveRequest{
		Session:         s.id,
		CommandSequence: atomic.LoadUint64(&s.commandSeq),
		EventIndex:      upToEventIndex,
	})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if resp.Leader != "" || len(resp.Members) > 0 {
		s.conn.SetMembers(resp.Leader, resp.Members)
	}
	return nil
}

// Close sends CloseSession and stops the keep-alive loop regardless of
// the outcome: a best-effort orderly close, not a guarantee the server
// saw it (the session will simply expire on timeout if it didn't).
func (s *Session) Close(ctx context.Context) error {
	s.halt.stop()
	resp, err := s.conn.CloseSession(ctx, &CloseSessionRequest{Session: s.id})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	return nil
}

// haltableTicker stops the keep-alive goroutine started by
// startKeepAlive, which sends a KeepAlive on every tick until stopped.
type haltableTicker struct {
	stopCh chan struct{}
}

func startKeepAlive(s *Session, interval time.Duration) *haltableTicker {
	h := &haltableTicker{stopCh: make(chan struct{})}
	if interval <= 0 {
		return h
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), interval)
				_ = s.KeepAlive(ctx, 0)
				cancel()
			case <-h.stopCh:
				return
			}
		}
	}()
	return h
}

func (h *haltableTicker) stop() {
	select {
	case <-h.stopCh:
	default:
		close(h.stopCh)
	}
}
