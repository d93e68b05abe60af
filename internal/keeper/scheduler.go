package keeper

import "time"

// Timer is a pending one-shot callback
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d. fn runs on an arbitrary goroutine; the
// keeper re-posts it onto its loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// after schedules fn on the keeper loop
func (k *Keeper) after(d time.Duration, fn func()) Timer {
	return k.sched.AfterFunc(d, func() { k.post(fn) })
}
