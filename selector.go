package atomix

// MemberSelector iterates candidate servers in preference order: the
// known leader first (if any), then the rest of the member list.
// ClientConnection consumes it to decide where to send the next
// request and where to retry after a transport failure. Grounded on
// RaftProxyConnection.java's leader()/servers()/reset() delegation to
// its MemberSelector collaborator.
type MemberSelector struct {
	leader  MemberId
	members []MemberId
	pos     int
}

// NewMemberSelector builds a selector over members, preferring leader
// first when leader is non-empty and present in members.
func NewMemberSelector(leader MemberId, members []MemberId) *MemberSelector {
	s := &MemberSelector{}
	s.ResetTo(leader, members)
	return s
}

// Leader returns the selector's current best guess at the leader, or
// the empty MemberId if none is known.
func (s *MemberSelector) Leader() MemberId {
	return s.leader
}

// Members returns the full candidate list, in configuration order (the
// leader is not moved to the front as it is by Next).
func (s *MemberSelector) Members() []MemberId {
	return s.members
}

// HasNext reports whether Next would return a member rather than
// exhausting the list.
func (s *MemberSelector) HasNext() bool {
	return s.pos < len(s.order())
}

// Next returns the next candidate member to try, advancing position.
// The empty MemberId signals exhaustion: every candidate has already
// been tried since the last Reset/ResetTo.
func (s *MemberSelector) Next() MemberId {
	order := s.order()
	if s.pos >= len(order) {
		return ""
	}
	m := order[s.pos]
	s.pos++
	return m
}

// order returns the leader-first candidate ordering, computed fresh
// each call so a ResetTo mid-iteration is always reflected.
func (s *MemberSelector) order() []MemberId {
	if s.leader == "" {
		return s.members
	}
	ordered := make([]MemberId, 0, len(s.members))
	ordered = append(ordered, s.leader)
	for _, m := range s.members {
		if m != s.leader {
			ordered = append(ordered, m)
		}
	}
	return ordered
}

// Reset rewinds iteration to the start of the current candidate order
// without changing leader or membership, so a fresh round of retries
// tries every member again.
func (s *MemberSelector) Reset() {
	s.pos = 0
}

// ResetTo replaces the known leader and/or membership and rewinds
// iteration. Either argument may be left unchanged by passing the
// selector's current value; an empty members slice retains the
// previous membership, mirroring RaftProxyConnection.reset()'s
// leader-only overload.
func (s *MemberSelector) ResetTo(leader MemberId, members []MemberId) {
	if len(members) > 0 {
		s.members = append([]MemberId(nil), members...)
	}
	s.leader = leader
	s.pos = 0
}
