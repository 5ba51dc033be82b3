package atomix

import "fmt"

//go:generate greenpack

// MemberId is the opaque, stable identifier of a cluster node. It is
// compared and used as a map key by value; there is no interning.
type MemberId string

// SessionId anchors a session in log time: it is
// assigned once at open time and also seeds eventIndex, completeIndex,
// and lastApplied, so a freshly opened session always starts "caught
// up" with itself. It is compared by value, never by reference.
type SessionId uint64

func (id SessionId) String() string {
	return fmt.Sprintf("session-%d", uint64(id))
}

// SessionState is the lifecycle of a session. Only OPEN, EXPIRED, and
// CLOSED are ever emitted by the server core. SUSPENDED is defined for
// client-side use, but nothing in this package sets it: ClientConnection
// reports an exhausted member selector as ErrNoRoute.
type SessionState int

const (
	SessionOpen SessionState = iota
	SessionSuspended
	SessionExpired
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionOpen:
		return "OPEN"
	case SessionSuspended:
		return "SUSPENDED"
	case SessionExpired:
		return "EXPIRED"
	case SessionClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

func (s SessionState) Terminal() bool {
	return s == SessionExpired || s == SessionClosed
}

// ReadConsistency selects how a query is gated before execution.
// Sequential gates on commandSequence (this session's own write
// order); Linearizable gates on lastApplied (cluster-wide commit
// order). See QueryGates and SessionContext.RegisterSequenceQuery /
// RegisterIndexQuery.
type ReadConsistency int

const (
	ReadSequential ReadConsistency = iota
	ReadLinearizable
)

// OperationType is the kind of operation the service is currently
// executing for a session, as reported by ServiceContext.CurrentOperation.
// Publish is only legal during OpCommand.
type OperationType int

const (
	OpNone OperationType = iota
	OpCommand
	OpQuery
	OpSnapshot
)

func (o OperationType) String() string {
	switch o {
	case OpCommand:
		return "COMMAND"
	case OpQuery:
		return "QUERY"
	case OpSnapshot:
		return "SNAPSHOT"
	default:
		return "NONE"
	}
}

// Event is an opaque, service-defined payload. The core never
// interprets event contents; it only orders and replays them.
type Event []byte

// EventBatch groups every event a single command publish produced, so
// clients observe one message per producing log index rather than one
// per event.
type EventBatch struct {
	EventIndex    uint64
	PreviousIndex uint64
	Events        []Event
}

// OperationResult is the memoized output of an applied command,
// cached in SessionContext's result cache so a retransmitted command
// with the same sequence returns the same answer instead of re-applying.
type OperationResult struct {
	Index  uint64
	Output []byte
	Err    error
}

// PendingCommand holds a command that arrived out of request-sequence
// order. The service layer (outside this package) is responsible for
// actually applying it once SessionContext.RegisterCommand has buffered
// it and the in-order predecessor has arrived; Apply is invoked by the
// service layer when it is this command's turn.
type PendingCommand struct {
	Sequence uint64
	Apply    func()
}

// PublishRequest is the wire message a session sends to push an event
// batch to its client: Session, EventIndex, PreviousIndex, Events.
type PublishRequest struct {
	Session       SessionId `zid:"0"`
	EventIndex    uint64    `zid:"1"`
	PreviousIndex uint64    `zid:"2"`
	Events        []Event   `zid:"3"`
}

// ResetRequest is sent by the client to acknowledge receipt of events
// up to Index, and to ask for replay of anything beyond it.
type ResetRequest struct {
	Session SessionId `zid:"0"`
	Index   uint64    `zid:"1"`
}
