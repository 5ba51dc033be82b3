package atomix

import (
	cryrand "crypto/rand"

	"github.com/cristalhq/base64"
)

// newRandomID returns a URL-safe, base64-encoded random token. Used by
// NewMemberID to mint MemberId values. SessionId is a uint64 and is
// not minted here: the enclosing system assigns it from Raft log
// position -- see SessionId's doc comment in types.go.
func newRandomID() string {
	var raw [18]byte
	if _, err := cryrand.Read(raw[:]); err != nil {
		panicOn(err)
	}
	return base64.URLEncoding.EncodeToString(raw[:])
}

// NewMemberID mints an opaque MemberId. Clusters typically assign
// MemberId from configuration instead; this is for tests and tooling
// that need a throwaway identifier.
func NewMemberID() MemberId {
	return MemberId(newRandomID())
}
