package redisson

import (
	. "testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownGate(t *T) {
	var g ShutdownGate
	assert.True(t, g.Acquire())
	g.Release()

	g.Close()
	assert.False(t, g.Acquire())
	// closing again is fine
	g.Close()
}

func TestShutdownGateWaitsForHolders(t *T) {
	var g ShutdownGate
	assert.True(t, g.Acquire())

	closed := make(chan struct{})
	go func() {
		g.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while the gate was still held")
	case <-time.After(50 * time.Millisecond):
	}

	g.Release()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the holder released")
	}
}
