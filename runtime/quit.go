package runtime

import (
	"os"
	"os/signal"
	"sync/atomic"
)

// QuitFlag is raised by the user (a "q" answer or SIGINT) and checked by the
// runner between units.
type QuitFlag struct {
	raised atomic.Bool
}

func NewQuitFlag() *QuitFlag {
	return &QuitFlag{}
}

func (q *QuitFlag) Raise() {
	q.raised.Store(true)
}

func (q *QuitFlag) Raised() bool {
	return q != nil && q.raised.Load()
}

// WatchInterrupt raises the flag on SIGINT until stop is called. The running
// child receives the signal from the terminal on its own; the flag only
// stops the runner from starting the next unit.
func (q *QuitFlag) WatchInterrupt() (stop func()) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, os.Interrupt)
	go func() {
		for {
			select {
			case <-ch:
				q.Raise()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
