package atomix

// SessionEventType names a session lifecycle transition a listener can
// observe. Only the three terminal-adjacent transitions in
// RaftSessionContext.setState are surfaced; intermediate bookkeeping
// (sequence/index advancement) has no listener hook.
type SessionEventType int

const (
	SessionEventOpen SessionEventType = iota
	SessionEventExpire
	SessionEventClose
)

func (t SessionEventType) String() string {
	switch t {
	case SessionEventOpen:
		return "OPEN"
	case SessionEventExpire:
		return "EXPIRE"
	case SessionEventClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// SessionListener is notified of a session's lifecycle transitions, on
// the session's own Executor.
type SessionListener func(event SessionEventType, session SessionId)

// listenerSet is a copy-on-write set of SessionListener, grounded on
// RaftSessionContext's use of CopyOnWriteArraySet<SessionListener>:
// register builds a new slice instead of appending in place, so a
// fan-out already iterating the old slice is unaffected. Both register
// (via SessionContext.AddListener) and notify run on the single
// Executor goroutine, so neither takes a lock. There is no removal.
type listenerSet struct {
	listeners []SessionListener
}

func (s *listenerSet) register(l SessionListener) {
	next := make([]SessionListener, len(s.listeners)+1)
	copy(next, s.listeners)
	next[len(s.listeners)] = l
	s.listeners = next
}

func (s *listenerSet) notify(event SessionEventType, session SessionId) {
	for _, l := range s.listeners {
		l(event, session)
	}
}
