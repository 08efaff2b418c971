// Package coarsetime is a clock refreshed every 50ms, for timestamps taken on
// every request and frame where the precision of time.Now is not needed.
package coarsetime

import (
	"sync/atomic"
	"time"
)

const tick = 50 * time.Millisecond

var now atomic.Pointer[time.Time]

func init() {
	t := time.Now()
	now.Store(&t)

	ticker := time.NewTicker(tick)
	go func() {
		for t := range ticker.C {
			now.Store(&t)
		}
	}()
}

// Now returns the current time, at most one tick old.
func Now() time.Time {
	return *now.Load()
}
