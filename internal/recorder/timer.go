package recorder

import (
	"fmt"
	"sync"
	"time"

	"github.com/0anu/VoiceAI/internal/clock"
)

// TickInterval is how often the elapsed-time display refreshes.
const TickInterval = 100 * time.Millisecond

// FormatElapsed renders whole elapsed seconds as m:ss.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Timer reports the elapsed recording time on every tick until stopped.
type Timer struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartTimer calls onTick with the formatted time elapsed since started,
// once per interval.
func StartTimer(clk clock.Clock, started time.Time, interval time.Duration, onTick func(elapsed string)) *Timer {
	t := &Timer{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	ticker := clk.NewTicker(interval)
	go func() {
		defer close(t.done)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				// Stop may have raced with this tick.
				select {
				case <-t.stop:
					return
				default:
				}
				onTick(FormatElapsed(clk.Now().Sub(started)))
			}
		}
	}()
	return t
}

// Stop cancels the timer. Once Stop returns no further tick is delivered.
// Safe to call more than once.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}
