package atomix

import (
	"errors"
	"fmt"
)

// ErrorType classifies application-level errors returned by a server
// in a response. The terminal subset must not grow or shrink without reconsidering ClientConnection's
// retry policy.
type ErrorType int

const (
	NoError ErrorType = iota
	NoLeader
	QueryFailure
	CommandFailure
	ApplicationError
	IllegalMemberState
	UnknownClient
	UnknownSession
	UnknownService
	ProtocolError
	ConfigurationError
)

func (t ErrorType) String() string {
	switch t {
	case NoLeader:
		return "NO_LEADER"
	case QueryFailure:
		return "QUERY_FAILURE"
	case CommandFailure:
		return "COMMAND_FAILURE"
	case ApplicationError:
		return "APPLICATION_ERROR"
	case IllegalMemberState:
		return "ILLEGAL_MEMBER_STATE"
	case UnknownClient:
		return "UNKNOWN_CLIENT"
	case UnknownSession:
		return "UNKNOWN_SESSION"
	case UnknownService:
		return "UNKNOWN_SERVICE"
	case ProtocolError:
		return "PROTOCOL_ERROR"
	case ConfigurationError:
		return "CONFIGURATION_ERROR"
	default:
		return "NONE"
	}
}

// terminal is the frozen set on which ClientConnection stops
// retrying and surfaces the error to the caller verbatim.
func (t ErrorType) terminal() bool {
	switch t {
	case CommandFailure, QueryFailure, ApplicationError,
		UnknownClient, UnknownSession, UnknownService, ProtocolError:
		return true
	default:
		return false
	}
}

// RaftError is an application-level error carried in a response, as
// opposed to a transport failure (which surfaces as a plain Go error
// from the protocol call itself).
type RaftError struct {
	Type    ErrorType
	Message string
}

func (e *RaftError) Error() string {
	if e.Message == "" {
		return e.Type.String()
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrNoRoute is returned when MemberSelector is exhausted without a
// usable member.
var ErrNoRoute = errors.New("atomix: no route to cluster")

// IsTerminal reports whether err represents a terminal application
// error per the classification in ClientConnection's dispatch rules.
// A plain transport error (not a *RaftError) is never terminal.
func IsTerminal(err error) bool {
	var re *RaftError
	if errors.As(err, &re) {
		return re.Type.terminal()
	}
	return false
}
