package gateway

import (
	"math/rand/v2"
	"time"
)

// jitterFraction is the ±fraction applied to each computed backoff delay.
// Jitter desynchronises retries across gateways: after a shared network
// outage every configured gateway reconnects at once, and simultaneous
// attempts have caused resource contention and crashes in the field.
const jitterFraction = 0.1

// backoffDelay returns the pre-jitter delay before reconnection attempt
// number attempt (0-based: the counter value at the time the attempt is
// scheduled). The delay starts at initial, doubles per failed attempt and
// caps at max, yielding 1, 2, 4, 8, 16, 32, 60, 60, ... for the defaults.
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	if initial <= 0 {
		initial = time.Second
	}
	if max <= 0 {
		max = 60 * time.Second
	}

	delay := initial
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// jitter perturbs a delay by up to ±jitterFraction.
func jitter(d time.Duration) time.Duration {
	f := 1 + jitterFraction*(2*rand.Float64()-1)
	return time.Duration(float64(d) * f)
}

// reconnector schedules reconnection attempts with exponential backoff.
//
// It is owned by the dispatch loop: every method must be called from there.
// The timer callback itself fires on a runtime timer goroutine, so it only
// posts back onto the loop via the supplied schedule function.
type reconnector struct {
	initial time.Duration
	max     time.Duration

	// attempts counts failed reconnection attempts since the link was
	// lost. Reset to zero on every successful connection.
	attempts int

	// epoch is bumped on explicit disconnect so that results from
	// attempts already in flight are discarded instead of applied.
	epoch uint64

	timer *time.Timer
}

func newReconnector(initial, max time.Duration) *reconnector {
	return &reconnector{initial: initial, max: max}
}

// next schedules fn after the backoff delay for the current attempt counter
// and returns the scheduled (jittered) delay. fn must post onto the dispatch
// loop rather than touching state directly.
func (r *reconnector) next(fn func(epoch uint64)) time.Duration {
	delay := jitter(backoffDelay(r.attempts, r.initial, r.max))
	epoch := r.epoch
	r.timer = time.AfterFunc(delay, func() { fn(epoch) })
	return delay
}

// failed records a failed attempt, advancing the backoff schedule.
func (r *reconnector) failed() {
	r.attempts++
}

// reset clears the attempt counter after a successful connection.
func (r *reconnector) reset() {
	r.attempts = 0
}

// cancel stops any pending attempt and invalidates in-flight ones.
// A late success carrying a stale epoch must not resurrect the connection.
func (r *reconnector) cancel() {
	r.epoch++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// current reports whether epoch is still the live generation.
func (r *reconnector) current(epoch uint64) bool {
	return epoch == r.epoch
}
