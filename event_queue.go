package atomix

// eventQueue is the FIFO of not-yet-acknowledged EventBatch values a
// SessionContext has sent (or is about to send) to its client. Each
// batch's PreviousIndex chains to the prior batch's EventIndex so a
// client can detect a gap and ask for a resend via ResetRequest.
// Grounded on RaftSessionContext.java's Queue<EventHolder> events, kept
// as one batch per producing index rather than one per event.
type eventQueue struct {
	batches []EventBatch
}

// add appends batch to the tail of the queue. Callers are responsible
// for having set PreviousIndex correctly before calling add.
func (q *eventQueue) add(batch EventBatch) {
	q.batches = append(q.batches, batch)
}

// all returns every queued batch, oldest first, for a full resend.
func (q *eventQueue) all() []EventBatch {
	return q.batches
}

// empty reports whether the queue currently holds no batches.
func (q *eventQueue) empty() bool {
	return len(q.batches) == 0
}

// firstPreviousIndex returns the PreviousIndex of the oldest queued
// batch: the highest index the session knows its client has already
// fully received, absent any more specific acknowledgment. The second
// return value is false when the queue is empty.
func (q *eventQueue) firstPreviousIndex() (uint64, bool) {
	if len(q.batches) == 0 {
		return 0, false
	}
	return q.batches[0].PreviousIndex, true
}

// compact drops every batch whose EventIndex is at or below ack: the
// client has acknowledged receiving it, so it no longer needs to be
// held for resend.
func (q *eventQueue) compact(ack uint64) {
	i := 0
	for i < len(q.batches) && q.batches[i].EventIndex <= ack {
		i++
	}
	if i == 0 {
		return
	}
	remaining := make([]EventBatch, len(q.batches)-i)
	copy(remaining, q.batches[i:])
	q.batches = remaining
}

// clear drops every queued batch, unconditionally. Used when the
// session expires or closes.
func (q *eventQueue) clear() {
	q.batches = nil
}
