package atomix

import (
	"sync/atomic"

	"github.com/glycerine/idem"
)

// Executor is a single goroutine draining a channel of closures, one at
// a time, in submission order. Both ClientConnection and SessionContext
// run their state transitions exclusively on their own Executor so that
// sequencing, gate-firing, and listener fan-out never need a mutex:
// everything that touches that state does so from the same goroutine.
// Modeled on a central per-actor select{} loop plus idem.Halter for
// lifecycle.
type Executor struct {
	work chan func()
	halt *idem.Halter
	goID int64
}

// NewExecutor starts the draining goroutine and returns immediately.
// queueDepth bounds how many pending closures Submit will buffer before
// blocking its caller; see Config.ExecutorQueueDepth.
func NewExecutor(queueDepth int) *Executor {
	if queueDepth <= 0 {
		queueDepth = 1
	}
	e := &Executor{
		work: make(chan func(), queueDepth),
		halt: idem.NewHalter(),
	}
	go e.loop()
	return e
}

func (e *Executor) loop() {
	atomic.StoreInt64(&e.goID, int64(goroNumber()))
	defer e.halt.Done.Close()
	for {
		select {
		case fn := <-e.work:
			e.runOne(fn)
		case <-e.halt.ReqStop.Chan:
			e.drain()
			return
		}
	}
}

// runOne runs fn, recovering a panic so one bad closure cannot take the
// whole executor goroutine down with it -- the panic is logged with a
// stack dump rather than silently swallowed, since a closure panicking
// here is always a programmer error upstream.
func (e *Executor) runOne(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			alwaysPrintf("atomix: executor closure panicked: %v\n%s", r, stack())
		}
	}()
	fn()
}

// drain runs any closures already queued before exiting, so a Close
// does not silently drop work that was already accepted by Submit.
func (e *Executor) drain() {
	for {
		select {
		case fn := <-e.work:
			e.runOne(fn)
		default:
			return
		}
	}
}

// Submit enqueues fn to run on the executor goroutine. It blocks if the
// queue is full; it silently drops fn if the executor has already been
// closed, so a post-shutdown send is a no-op rather than a panic.
func (e *Executor) Submit(fn func()) {
	if e.halt.ReqStop.IsClosed() {
		pp("executor %p: Submit called after Close, dropping closure", e)
		return
	}
	select {
	case e.work <- fn:
	case <-e.halt.ReqStop.Chan:
	}
}

// IsCurrent reports whether the calling goroutine is this executor's
// own drain goroutine, mirroring Java ThreadContext.isCurrentContext():
// callers use it to decide whether they may run a closure inline
// instead of round-tripping through Submit.
func (e *Executor) IsCurrent() bool {
	return int64(goroNumber()) == atomic.LoadInt64(&e.goID)
}

// Close stops the executor after it finishes draining already-queued
// work. It does not wait for in-flight work to complete; callers that
// need that should block on Done().
func (e *Executor) Close() {
	e.halt.ReqStop.Close()
}

// Done returns a channel closed once the executor goroutine has exited.
func (e *Executor) Done() <-chan struct{} {
	return e.halt.Done.Chan
}

// IsClosed reports whether Close has been called.
func (e *Executor) IsClosed() bool {
	return e.halt.ReqStop.IsClosed()
}
