package redisson

import "sync"

// ShutdownGate is the cooperative barrier between the background monitors and
// shutdown. Every topology mutation is bracketed by Acquire/Release; Close
// flips the gate and then waits for all in-flight holders, after which
// Acquire permanently returns false and late ticks abort without mutating
// anything.
type ShutdownGate struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Acquire registers the caller as an in-flight holder. It returns false once
// the gate has been closed, in which case the caller must not proceed and must
// not call Release.
func (g *ShutdownGate) Acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.wg.Add(1)
	return true
}

// Release pairs with a successful Acquire.
func (g *ShutdownGate) Release() {
	g.wg.Done()
}

// Close flips the gate and blocks until every holder has released. Safe to
// call more than once.
func (g *ShutdownGate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
}
