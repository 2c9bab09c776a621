package batch

import (
	"sync"
	"time"
)

// DefaultProgressInterval is the minimum gap between progress notifications.
const DefaultProgressInterval = 100 * time.Millisecond

// Progress reports how many distinct files of a batch have finished.
type Progress struct {
	Processed int
	Total     int
}

// Done reports whether every file has finished.
func (p Progress) Done() bool { return p.Processed >= p.Total }

// ProgressFunc receives progress updates on a dedicated goroutine.
type ProgressFunc func(Progress)

// throttle forwards progress to a sink at most once per interval, dropping
// intermediate values. Update never blocks on the sink; the final value is
// always delivered by stop.
type throttle struct {
	sink     ProgressFunc
	interval time.Duration

	mu      sync.Mutex
	latest  Progress
	emitted Progress

	signal chan struct{}
	done   chan struct{}
	exited chan struct{}
}

func newThrottle(sink ProgressFunc, interval time.Duration, total int) *throttle {
	t := &throttle{
		sink:     sink,
		interval: interval,
		latest:   Progress{Total: total},
		emitted:  Progress{Processed: -1, Total: total},
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
	}

	go t.loop()

	return t
}

// increment records one more finished file.
func (t *throttle) increment() {
	t.mu.Lock()
	t.latest.Processed++
	t.mu.Unlock()

	select {
	case t.signal <- struct{}{}:
	default:
	}
}

func (t *throttle) loop() {
	defer close(t.exited)

	var last time.Time

	for {
		select {
		case <-t.done:
			t.emit()

			return
		case <-t.signal:
		}

		if wait := t.interval - time.Since(last); wait > 0 && !last.IsZero() {
			timer := time.NewTimer(wait)

			select {
			case <-t.done:
				timer.Stop()
				t.emit()

				return
			case <-timer.C:
			}
		}

		if t.emit() {
			last = time.Now()
		}
	}
}

// emit delivers the latest value if it advanced past the last one sent.
func (t *throttle) emit() bool {
	t.mu.Lock()
	cur := t.latest

	if cur.Processed <= t.emitted.Processed {
		t.mu.Unlock()

		return false
	}

	t.emitted = cur
	t.mu.Unlock()

	t.sink(cur)

	return true
}

// stop flushes the final value and waits for the loop to exit.
func (t *throttle) stop() {
	close(t.done)
	<-t.exited
}
