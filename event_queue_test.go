package atomix

import "testing"

func Test710_eventQueue_compact_drops_acknowledged_batches(t *testing.T) {
	var q eventQueue
	q.add(EventBatch{EventIndex: 10, PreviousIndex: 7})
	q.add(EventBatch{EventIndex: 20, PreviousIndex: 10})
	q.add(EventBatch{EventIndex: 30, PreviousIndex: 20})

	q.compact(20)

	all := q.all()
	if len(all) != 1 {
		t.Fatalf("expected 1 batch remaining, got %d", len(all))
	}
	if all[0].EventIndex != 30 {
		t.Fatalf("expected remaining batch to be index 30, got %d", all[0].EventIndex)
	}
}

func Test711_eventQueue_firstPreviousIndex_empty(t *testing.T) {
	var q eventQueue
	if _, ok := q.firstPreviousIndex(); ok {
		t.Fatalf("expected ok=false on empty queue")
	}
}

func Test712_eventQueue_clear(t *testing.T) {
	var q eventQueue
	q.add(EventBatch{EventIndex: 1})
	q.clear()
	if !q.empty() {
		t.Fatalf("expected queue empty after clear")
	}
}
