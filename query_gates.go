package atomix

import (
	rb "github.com/glycerine/rbtree"
)

// gateEntry is one key's worth of pending callbacks: every query that
// registered against the same sequence or index number is batched onto
// a single tree node so firing that key drains them all in one pass.
type gateEntry struct {
	key       uint64
	callbacks []func()
}

func gateCmp(a, b rb.Item) int {
	av := a.(*gateEntry)
	bv := b.(*gateEntry)
	switch {
	case av.key < bv.key:
		return -1
	case av.key > bv.key:
		return 1
	default:
		return 0
	}
}

// queryGate is an ordered map from a uint64 gate key (commandSequence
// or lastApplied) to the callbacks waiting on it, backed by a red-black
// tree so firing "everything at or below N" walks the tree in order
// instead of scanning a plain map. Grounded on the rbtree-backed
// ordered structures in tube/sess.go and tube/ticketpq.go.
type queryGate struct {
	tree *rb.Tree
}

func newQueryGate() *queryGate {
	return &queryGate{tree: rb.NewTree(gateCmp)}
}

// register adds cb to fire when fireThrough(key) is next called with an
// argument >= key. If the gate is already satisfied, the caller should
// not use register at all -- SessionContext checks the current
// sequence/index first and runs cb inline in that case.
func (g *queryGate) register(key uint64, cb func()) {
	probe := &gateEntry{key: key}
	it, found := g.tree.FindGE_isEqual(probe)
	if found {
		entry := it.Item().(*gateEntry)
		entry.callbacks = append(entry.callbacks, cb)
		return
	}
	probe.callbacks = append(probe.callbacks, cb)
	g.tree.InsertGetIt(probe)
}

// fireThrough runs and removes every callback registered at a key <=
// through, in ascending key order -- mirroring RaftSessionContext's
// unit-at-a-time setCommandSequence/setLastApplied loops, which ensure
// a gate at an intermediate value is never skipped even when several
// commands commit in the same batch.
func (g *queryGate) fireThrough(through uint64) {
	for {
		if g.tree.Len() == 0 {
			return
		}
		it := g.tree.Min()
		entry := it.Item().(*gateEntry)
		if entry.key > through {
			return
		}
		g.tree.DeleteWithIterator(it)
		for _, cb := range entry.callbacks {
			cb()
		}
	}
}

// clear drops every registered callback without firing it, used when a
// session transitions to a terminal state.
func (g *queryGate) clear() {
	g.tree.DeleteAll()
}
