package simthread

import (
	"runtime"
	"strconv"
	"sync"
)

// The substrate's public API is parameterless — Yield(), mutex.Lock(),
// and friends all need to resolve "which TCB/CPU am I" without being
// handed one — the way a real OS thread's TLS slot resolves implicitly
// under ucontext. Go has no TLS for goroutines, so this file is a
// narrow, stdlib-only stand-in: every TCB's body runs on its own
// dedicated goroutine for that TCB's entire life (see tcb.go), so "which
// TCB am I" is a stable fact for that goroutine and can be looked up by
// goroutine id once and cached. This is the only place in the package
// that parses runtime.Stack; nothing else needs to.
var (
	selfMu sync.RWMutex
	selves = make(map[uint64]*TCB)
)

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Format is "goroutine 123 [running]:\n..."
	b := buf[:n]
	i := 0
	for i < len(b) && b[i] != ' ' {
		i++
	}
	i++ // skip space
	start := i
	for i < len(b) && b[i] != ' ' {
		i++
	}
	id, err := strconv.ParseUint(string(b[start:i]), 10, 64)
	if err != nil {
		panic("simthread: could not parse goroutine id: " + err.Error())
	}
	return id
}

// registerSelf binds the calling goroutine to tcb for the remainder of the
// goroutine's life. Called exactly once, at the top of a TCB's body
// goroutine, before it ever parks.
func registerSelf(tcb *TCB) {
	gid := goroutineID()
	selfMu.Lock()
	selves[gid] = tcb
	selfMu.Unlock()
}

func unregisterSelf() {
	gid := goroutineID()
	selfMu.Lock()
	delete(selves, gid)
	selfMu.Unlock()
}

// selfTCB returns the TCB bound to the calling goroutine. Panics if called
// from a goroutine that was never registered (a programmer error: every
// code path that can call into this library runs on a registered TCB
// goroutine or holds the CPU boot goroutine, which never calls Self-needing
// functions).
func selfTCB() *TCB {
	gid := goroutineID()
	selfMu.RLock()
	tcb := selves[gid]
	selfMu.RUnlock()
	if tcb == nil {
		panic("simthread: current goroutine is not a registered TCB")
	}
	return tcb
}
