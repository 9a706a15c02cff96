package gateway

import (
	"sync"
)

// taskBuffer is the dispatch queue depth. Deep enough to absorb report
// bursts from a full 64-device bus without blocking the network goroutine.
const taskBuffer = 256

// dispatcher marshals work from arbitrary goroutines onto a single owning
// goroutine. All mutable connection state is owned by that goroutine, which
// replaces locking with single-owner discipline.
//
// In synchronous mode (no owning goroutine) posted functions run inline on
// the caller. This is the degraded legacy mode: the integrator accepts the
// resulting races in exchange for not having to run a loop.
type dispatcher struct {
	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup

	// sync selects legacy synchronous mode.
	sync bool

	closeOnce sync.Once
}

// newDispatcher creates a dispatcher. When synchronous is true no goroutine
// is started and post runs functions inline.
func newDispatcher(synchronous bool) *dispatcher {
	d := &dispatcher{
		tasks: make(chan func(), taskBuffer),
		done:  make(chan struct{}),
		sync:  synchronous,
	}
	if !synchronous {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// run is the owning goroutine: it executes posted functions in FIFO order
// until the dispatcher is closed.
func (d *dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case fn := <-d.tasks:
			fn()
		case <-d.done:
			// Drain anything already queued so in-order work posted
			// before close still runs, then exit.
			for {
				select {
				case fn := <-d.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// post schedules fn on the owning goroutine and returns immediately.
//
// Returns false if the dispatcher has been closed; the work is dropped
// rather than raised into the caller, since callers are network-thread
// callbacks where a panic would abort message processing.
func (d *dispatcher) post(fn func()) bool {
	if d.sync {
		fn()
		return true
	}

	select {
	case <-d.done:
		return false
	default:
	}

	select {
	case d.tasks <- fn:
		return true
	case <-d.done:
		return false
	}
}

// close shuts the dispatcher down and waits for the owning goroutine to
// drain queued work. Safe to call multiple times.
func (d *dispatcher) close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}
