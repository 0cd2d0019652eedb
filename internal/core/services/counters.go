package services

import "sync/atomic"

// WindowCounters accumulates bytes transferred inside the current
// reporting window. Increments come from the send and receive callbacks
// on any goroutine; the reporter atomically takes and resets each window
// once per tick, so no increment is lost across the reset.
type WindowCounters struct {
	sent     atomic.Uint64
	received atomic.Uint64
}

func (c *WindowCounters) AddSent(n uint64) {
	c.sent.Add(n)
}

func (c *WindowCounters) AddReceived(n uint64) {
	c.received.Add(n)
}

// TakeWindows returns the bytes accumulated since the previous take and
// resets both counters to zero.
func (c *WindowCounters) TakeWindows() (sent, received uint64) {
	return c.sent.Swap(0), c.received.Swap(0)
}
