package atomix

import "testing"

func Test715_queryGate_fires_exactly_once_in_order(t *testing.T) {
	g := newQueryGate()
	var fired []uint64
	g.register(5, func() { fired = append(fired, 5) })
	g.register(3, func() { fired = append(fired, 3) })
	g.register(3, func() { fired = append(fired, 30) }) // second callback at same key

	g.fireThrough(4) // should fire key 3's two callbacks, not key 5's

	if len(fired) != 2 || fired[0] != 3 || fired[1] != 30 {
		t.Fatalf("expected [3 30] fired, got %v", fired)
	}

	g.fireThrough(10) // now fires key 5
	if len(fired) != 3 || fired[2] != 5 {
		t.Fatalf("expected key 5 to fire on second call, got %v", fired)
	}

	// firing again must not re-fire anything: the gate is one-shot.
	g.fireThrough(100)
	if len(fired) != 3 {
		t.Fatalf("gate re-fired after being drained: %v", fired)
	}
}

func Test716_queryGate_clear_drops_without_firing(t *testing.T) {
	g := newQueryGate()
	fired := false
	g.register(1, func() { fired = true })
	g.clear()
	g.fireThrough(100)
	if fired {
		t.Fatalf("callback fired after clear")
	}
}
