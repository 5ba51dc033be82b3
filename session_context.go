package atomix

import (
	"context"
	"time"
)

// SessionContext is the server-side bookkeeping for one open session:
// request/command sequencing, the result cache, pending out-of-order
// commands, query gating, and the event-publish pipeline. It is the
// direct analogue of RaftSessionContext.java, translated onto a single
// Executor goroutine instead of Java's synchronized methods plus a
// dedicated thread context.
//
// Every exported method either is safe to call from any goroutine
// (because it only enqueues onto the Executor) or is explicitly
// documented as "executor-only" because it mutates state directly and
// must only ever run as a closure submitted to Submit.
type SessionContext struct {
	id          SessionId
	member      MemberId
	name        string
	serviceType string
	consistency ReadConsistency
	timeout     time.Duration

	executor *Executor
	server   ServerContext
	service  ServiceContext

	state     SessionState
	timestamp time.Time

	requestSequence uint64
	commandSequence uint64
	lastApplied     uint64

	commandLowWaterMark uint64

	sequenceQueries *queryGate
	indexQueries    *queryGate

	pendingCommands map[uint64]PendingCommand
	results         map[uint64]OperationResult

	eventIndex    uint64
	completeIndex uint64
	events        eventQueue
	currentBatch  *EventBatch

	listeners listenerSet
}

// NewSessionContext creates a session in the OPEN state, seeded at id
// for eventIndex and completeIndex so a freshly opened session starts
// caught up with itself.
func NewSessionContext(id SessionId, member MemberId, name, serviceType string, consistency ReadConsistency, timeout time.Duration, executor *Executor, server ServerContext, service ServiceContext) *SessionContext {
	s := &SessionContext{
		id:              id,
		member:          member,
		name:            name,
		serviceType:     serviceType,
		consistency:     consistency,
		timeout:         timeout,
		executor:        executor,
		server:          server,
		service:         service,
		state:           SessionOpen,
		timestamp:       time.Now(),
		eventIndex:      uint64(id),
		completeIndex:   uint64(id),
		lastApplied:     uint64(id),
		sequenceQueries: newQueryGate(),
		indexQueries:    newQueryGate(),
		pendingCommands: make(map[uint64]PendingCommand),
		results:         make(map[uint64]OperationResult),
	}
	server.Protocol().RegisterResetListener(id, s.handleReset)
	return s
}

func (s *SessionContext) ID() SessionId     { return s.id }
func (s *SessionContext) Member() MemberId  { return s.member }

// State returns the session's current lifecycle state. Safe to call
// from any goroutine: it round-trips through the executor so it never
// races a concurrent setState.
func (s *SessionContext) State() SessionState {
	done := make(chan SessionState, 1)
	s.executor.Submit(func() { done <- s.state })
	return <-done
}

// AddListener registers l to be notified of this session's lifecycle
// transitions, on the executor.
func (s *SessionContext) AddListener(l SessionListener) {
	s.executor.Submit(func() { s.listeners.register(l) })
}

// setState is executor-only. It fans state transitions out to
// listeners exactly once per transition, matching
// RaftSessionContext.setState's guard against redundant notification.
func (s *SessionContext) setState(next SessionState) {
	if s.state == next {
		return
	}
	s.state = next
	switch next {
	case SessionOpen:
		s.listeners.notify(SessionEventOpen, s.id)
	case SessionExpired:
		s.listeners.notify(SessionEventExpire, s.id)
	case SessionClosed:
		s.listeners.notify(SessionEventClose, s.id)
	}
}

// setTimestamp advances the session's last-activity time, executor-only,
// always forward (a stale KeepAlive arriving after a newer one must not
// roll the clock back).
func (s *SessionContext) setTimestamp(t time.Time) {
	if t.After(s.timestamp) {
		s.timestamp = t
	}
}

// Expire transitions the session to EXPIRED, for the enclosing service
// to call once the cluster declares the session timed out. Safe to
// call from any goroutine: it hops onto the executor before mutating
// state.
func (s *SessionContext) Expire() {
	s.executor.Submit(func() { s.expire() })
}

// expire is the executor-only body of Expire.
func (s *SessionContext) expire() {
	if s.state.Terminal() {
		return
	}
	s.setState(SessionExpired)
	s.server.Protocol().UnregisterResetListener(s.id)
	s.clearCommands()
	s.events.clear()
	s.sequenceQueries.clear()
	s.indexQueries.clear()
}

// Close transitions the session to CLOSED, for the enclosing service
// to call on an orderly client-initiated close. Safe to call from any
// goroutine: it hops onto the executor before mutating state.
func (s *SessionContext) Close() {
	s.executor.Submit(func() { s.close() })
}

// close is the executor-only body of Close.
func (s *SessionContext) close() {
	if s.state.Terminal() {
		return
	}
	s.setState(SessionClosed)
	s.server.Protocol().UnregisterResetListener(s.id)
	s.clearCommands()
	s.events.clear()
	s.sequenceQueries.clear()
	s.indexQueries.clear()
}

// --- request sequencing -----------------------------------------------

// SetRequestSequence advances requestSequence to max(current, seq); a
// seq at or below the current value leaves it unchanged. Executor-only.
func (s *SessionContext) SetRequestSequence(seq uint64) {
	if seq > s.requestSequence {
		s.requestSequence = seq
	}
}

// ResetRequestSequence is SetRequestSequence under the name a new
// leader's bootstrap path uses when seeding requestSequence from
// already-applied state rather than from a live request.
func (s *SessionContext) ResetRequestSequence(seq uint64) {
	s.SetRequestSequence(seq)
}

// IsNextRequest reports whether seq is the next expected request
// number. Executor-only; callers use it to decide whether to apply a
// command immediately or buffer it in pendingCommands.
func (s *SessionContext) IsNextRequest(seq uint64) bool {
	return seq == s.requestSequence+1
}

// --- command sequencing and query gating -------------------------------

// SetCommandSequence advances commandSequence to seq (never backward)
// and fires every sequence-gated query at or below the new value in a
// single queryGate.fireThrough pass, skipping the empty indices between
// the old and new value rather than visiting each one. Executor-only.
func (s *SessionContext) SetCommandSequence(seq uint64) {
	if seq <= s.commandSequence {
		return
	}
	s.commandSequence = seq
	s.sequenceQueries.fireThrough(s.commandSequence)
}

// SetLastApplied advances lastApplied to index in one step, firing
// linearizable-read gates in a single fireThrough pass, mirroring
// RaftSessionContext.setLastApplied. Executor-only.
func (s *SessionContext) SetLastApplied(index uint64) {
	if index <= s.lastApplied {
		return
	}
	s.lastApplied = index
	s.indexQueries.fireThrough(s.lastApplied)
}

// RegisterSequenceQuery runs cb once commandSequence has reached seq,
// inline if it already has. Executor-only.
func (s *SessionContext) RegisterSequenceQuery(seq uint64, cb func()) {
	if seq <= s.commandSequence {
		cb()
		return
	}
	s.sequenceQueries.register(seq, cb)
}

// RegisterIndexQuery runs cb once lastApplied has reached index,
// inline if it already has. Executor-only.
func (s *SessionContext) RegisterIndexQuery(index uint64, cb func()) {
	if index <= s.lastApplied {
		cb()
		return
	}
	s.indexQueries.register(index, cb)
}

// --- pending command buffer and result cache ---------------------------

// RegisterCommand buffers a command that arrived ahead of its turn.
// Executor-only.
func (s *SessionContext) RegisterCommand(seq uint64, cmd PendingCommand) {
	s.pendingCommands[seq] = cmd
}

// GetCommand returns the buffered command at seq, if any. Executor-only.
func (s *SessionContext) GetCommand(seq uint64) (PendingCommand, bool) {
	c, ok := s.pendingCommands[seq]
	return c, ok
}

// RemoveCommand drops the buffered command at seq. Executor-only.
func (s *SessionContext) RemoveCommand(seq uint64) {
	delete(s.pendingCommands, seq)
}

// clearCommands drops every buffered command, used on expire/close.
func (s *SessionContext) clearCommands() {
	s.pendingCommands = make(map[uint64]PendingCommand)
}

// RegisterResult memoizes a command's output so a retransmission with
// the same sequence returns the cached answer instead of re-applying.
// Executor-only.
func (s *SessionContext) RegisterResult(seq uint64, result OperationResult) {
	s.results[seq] = result
}

// GetResult returns the cached result at seq, if any. Executor-only.
func (s *SessionContext) GetResult(seq uint64) (OperationResult, bool) {
	r, ok := s.results[seq]
	return r, ok
}

// ResultCacheSize reports how many results are currently cached, for
// observability: growth here is bounded only by how promptly clients
// ack via KeepAlive. Executor-only.
func (s *SessionContext) ResultCacheSize() int {
	return len(s.results)
}

// ClearResults evicts every cached result at or below
// commandLowWaterMark, the highest sequence the client has
// acknowledged via KeepAlive. Executor-only.
func (s *SessionContext) ClearResults(lowWaterMark uint64) {
	if lowWaterMark <= s.commandLowWaterMark {
		return
	}
	s.commandLowWaterMark = lowWaterMark
	for seq := range s.results {
		if seq <= lowWaterMark {
			delete(s.results, seq)
		}
	}
}

// --- event publish pipeline ---------------------------------------------

// Publish appends event to the batch being assembled for the service's
// current command index. It panics if called outside a COMMAND
// operation or against a terminal session: both are programmer errors
// in the calling service, per RaftSessionContext.publish's checkState.
// Executor-only.
func (s *SessionContext) Publish(event Event) {
	if s.state.Terminal() {
		panicf("atomix: publish on terminal session %v", s.id)
	}
	if s.service.CurrentOperation() != OpCommand {
		panicf("atomix: publish outside a command operation, session %v", s.id)
	}
	index := s.service.CurrentIndex()
	if s.completeIndex > index {
		return
	}
	if s.currentBatch == nil {
		s.currentBatch = &EventBatch{EventIndex: index, PreviousIndex: s.eventIndex}
		s.eventIndex = index
	}
	s.currentBatch.Events = append(s.currentBatch.Events, event)
}

// Commit closes out the batch being assembled for index (if any),
// enqueues it, pushes that batch to the client when this node is the
// leader, and advances lastApplied. Executor-only.
func (s *SessionContext) Commit(index uint64) {
	s.commit(index)
	s.SetLastApplied(index)
}

func (s *SessionContext) commit(index uint64) {
	if s.currentBatch != nil && s.currentBatch.EventIndex == index {
		batch := *s.currentBatch
		s.events.add(batch)
		s.currentBatch = nil
		s.sendEvents(batch)
	}
}

// sendEvents pushes the single newly-committed batch to the client,
// but only while this node is the leader: a follower only queues the
// batch, which reaches the client through resendEvents when the client
// sends a ResetRequest. Only the batch just enqueued by commit is
// sent here; a backlog of still-unacknowledged batches is not resent
// on every later commit -- that full-backlog resend is resendEvents'
// job, reserved for the reset path. The Publish call runs on the
// executor itself, so batches go out in commit order and each has been
// handed to the protocol by the time commit returns. Executor-only.
func (s *SessionContext) sendEvents(batch EventBatch) {
	if !s.server.IsLeader() {
		return
	}
	prev := batch.PreviousIndex
	if s.completeIndex > prev {
		prev = s.completeIndex
	}
	req := &PublishRequest{
		Session:       s.id,
		EventIndex:    batch.EventIndex,
		PreviousIndex: prev,
		Events:        batch.Events,
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	_ = s.server.Protocol().Publish(ctx, s.member, req)
}

const publishTimeout = 5 * time.Second

// resendEvents resends every queued, not-yet-acknowledged batch, used
// after a ResetRequest reports the client is behind where this session
// thought it was. Unlike sendEvents (which commit calls with just the
// one batch it just enqueued), this walks the full backlog -- the
// reset path is the one place a full resend is warranted. Executor-only.
func (s *SessionContext) resendEvents() {
	for _, batch := range s.events.all() {
		s.sendEvents(batch)
	}
}

// handleReset is the ResetHandler registered with the server protocol
// at session creation: it removes every queued
// batch at or below req.Index, advances completeIndex to req.Index,
// and unconditionally re-sends whatever remains -- this subsumes both
// post-reconnect catch-up and "I missed a batch" with one code path.
// Executor-only once submitted.
func (s *SessionContext) handleReset(req *ResetRequest) {
	s.executor.Submit(func() {
		s.events.compact(req.Index)
		if req.Index > s.completeIndex {
			s.completeIndex = req.Index
		}
		s.resendEvents()
	})
}

// GetLastCompleted returns the highest index safe to report to the
// compaction machinery: one below the oldest unacknowledged batch if
// any is queued (compaction cannot pass it), otherwise lastApplied
// (nothing holds compaction back). Executor-only.
func (s *SessionContext) GetLastCompleted() uint64 {
	if batches := s.events.all(); len(batches) > 0 {
		return batches[0].EventIndex - 1
	}
	return s.lastApplied
}
