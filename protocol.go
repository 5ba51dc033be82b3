package atomix

import (
	"context"
	"errors"
	"net"
	"time"
)

// Status is the top-level outcome of an RPC, independent of the error
// taxonomy in errors.go: OK responses may still be classified as
// terminal or retryable by *RaftError, but a Status of StatusError with
// no attached *RaftError means an empty/transport-adjacent failure.
type Status int

const (
	StatusOK Status = iota
	StatusError
)

// OpenSessionRequest asks a server to create a new session for a
// client against a named, typed service.
type OpenSessionRequest struct {
	ClientId        string
	ServiceName     string
	ServiceType     string
	Timeout         time.Duration
	ReadConsistency ReadConsistency
}

type OpenSessionResponse struct {
	Status  Status
	Error   *RaftError
	Session SessionId
	Timeout time.Duration
}

type CloseSessionRequest struct {
	Session SessionId
}

type CloseSessionResponse struct {
	Status Status
	Error  *RaftError
}

// KeepAliveRequest reports the client's progress: the highest command
// sequence it has seen a result for, and the highest event index it
// has fully received, so the server can advance commandLowWaterMark
// and completeIndex respectively.
type KeepAliveRequest struct {
	Session         SessionId
	CommandSequence uint64
	EventIndex      uint64
}

type KeepAliveResponse struct {
	Status  Status
	Error   *RaftError
	Leader  MemberId
	Members []MemberId
}

// CommandRequest carries a client-sequenced write operation.
type CommandRequest struct {
	Session  SessionId
	Sequence uint64
	Name     string
	Input    []byte
}

type CommandResponse struct {
	Status Status
	Error  *RaftError
	Result OperationResult
}

// QueryRequest carries a read operation gated by Consistency: at
// Sequence for ReadSequential, at Index for ReadLinearizable.
type QueryRequest struct {
	Session     SessionId
	Sequence    uint64
	Index       uint64
	Consistency ReadConsistency
	Name        string
	Input       []byte
}

type QueryResponse struct {
	Status Status
	Error  *RaftError
	Result OperationResult
}

type MetadataRequest struct {
	Session SessionId
}

type MetadataResponse struct {
	Status   Status
	Error    *RaftError
	Sessions []SessionId
}

// ClientProtocol is the narrow, external collaborator through which
// ClientConnection reaches the cluster: one method per RPC kind. Wire
// encoding and transport are out of scope for this package -- package
// memproto provides a concrete, in-process implementation for tests.
type ClientProtocol interface {
	OpenSession(ctx context.Context, member MemberId, req *OpenSessionRequest) (*OpenSessionResponse, error)
	CloseSession(ctx context.Context, member MemberId, req *CloseSessionRequest) (*CloseSessionResponse, error)
	KeepAlive(ctx context.Context, member MemberId, req *KeepAliveRequest) (*KeepAliveResponse, error)
	Command(ctx context.Context, member MemberId, req *CommandRequest) (*CommandResponse, error)
	Query(ctx context.Context, member MemberId, req *QueryRequest) (*QueryResponse, error)
	Metadata(ctx context.Context, member MemberId, req *MetadataRequest) (*MetadataResponse, error)

	// Reset acknowledges events received up to req.Index and asks the
	// session to resend anything beyond it. Unlike the other five RPCs
	// it carries no response: delivery is best-effort and the session
	// retries via its own publish pipeline.
	Reset(ctx context.Context, member MemberId, req *ResetRequest) error
}

// ResetHandler is invoked, on the session's Executor, when a client
// sends a ResetRequest.
type ResetHandler func(req *ResetRequest)

// ServerProtocol is the narrow, external collaborator through which a
// SessionContext pushes events to its client and hears reset requests.
type ServerProtocol interface {
	Publish(ctx context.Context, member MemberId, req *PublishRequest) error
	RegisterResetListener(session SessionId, handler ResetHandler)
	UnregisterResetListener(session SessionId)
}

// ServiceContext is the oracle for "what is the service doing right
// now": the current Raft log index, the kind of operation in flight,
// and the session's Executor. Consumed, not implemented, by this
// package.
type ServiceContext interface {
	CurrentIndex() uint64
	CurrentOperation() OperationType
	Executor() *Executor
	ServiceType() string
	ServiceName() string
}

// ServerContext is the oracle for "am I the leader, and how do I talk
// to clients": leader election itself is out of scope.
type ServerContext interface {
	IsLeader() bool
	Protocol() ServerProtocol
}

// IsTransportError reports whether err represents a connection-level
// failure (refused, timed out, or a closed channel) rather than an
// application response. These are retried on
// the next member with the same request; everything else that is not
// a *RaftError is surfaced directly as a non-retryable local error.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrConnectionClosed) ||
		errors.Is(err, ErrConnectionRefused) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

var ErrConnectionRefused = errors.New("atomix: connection refused")
var ErrConnectionClosed = errors.New("atomix: connection closed")
