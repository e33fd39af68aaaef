// Package interrupt provides cooperative cancellation for long-running
// deploy stages. The reference implementation uses a single process-wide
// boolean flag armed at the start of a stage and disarmed on completion;
// here that is an explicit token threaded through each stage rather than a
// global, with identical polling semantics.
package interrupt

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
)

// Flag is a cooperatively-polled cancellation signal. Every iterator in
// internal/engine polls IsSet between admissions; it is never used to
// preempt a running child.
type Flag struct {
	set atomic.Bool
}

// Set marks the flag as tripped.
func (f *Flag) Set() { f.set.Store(true) }

// IsSet reports whether the flag has been tripped.
func (f *Flag) IsSet() bool { return f.set.Load() }

// Reset clears the flag, for reuse across independent deploy runs.
func (f *Flag) Reset() { f.set.Store(false) }

// Controller brackets a long-running stage with SIGINT handling: while
// armed, an incoming interrupt trips the Flag instead of killing the
// process; once disarmed, default SIGINT behaviour is restored so the user
// can abort cleanly between stages.
type Controller struct {
	flag   Flag
	cancel context.CancelFunc
}

// NewController returns an unarmed Controller with a fresh Flag.
func NewController() *Controller {
	return &Controller{}
}

// Flag returns the controller's cancellation flag.
func (c *Controller) Flag() *Flag { return &c.flag }

// Arm installs a SIGINT handler for the duration of a stage and returns a
// context that is cancelled when SIGINT arrives; the flag is tripped at the
// same moment so engine iterators polling it between admissions observe the
// interrupt even if they are not watching ctx directly.
func (c *Controller) Arm(ctx context.Context) context.Context {
	notifyCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	var disarmed atomic.Bool
	c.cancel = func() {
		disarmed.Store(true)
		stop()
	}

	go func() {
		<-notifyCtx.Done()
		if !disarmed.Load() {
			c.flag.Set()
		}
	}()

	return notifyCtx
}

// Disarm restores default SIGINT behaviour, ending the stage's interrupt
// window. It does not reset the flag: callers decide whether a subsequent
// stage should still observe the interruption.
func (c *Controller) Disarm() {
	if c.cancel != nil {
		c.cancel()
	}
}
