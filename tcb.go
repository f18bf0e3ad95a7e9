package simthread

import "sync/atomic"

// StackSize is the fixed per-thread stack size the substrate this repo
// implements (see cpu.go) assumes when sizing a thread's execution
// context. It backs each TCB with a real goroutine instead of a manually
// allocated ucontext stack, so Go's runtime — not this constant —
// actually sizes and grows the stack. StackSize is kept only as a piece
// of the public contract (a caller may reasonably expect to see it) and
// is otherwise unused.
const StackSize = 262144

var nextThreadID atomic.Uint32

// TCB is the thread control block. Every field below is mutated only
// while the global guard is held, except resumeChan (a synchronization
// primitive, not scheduler state) and id (immutable after construction).
type TCB struct {
	id     uint32
	status Status

	// cpu is the CPU that most recently dispatched this TCB. Set by each
	// dispatch path just before it wakes this TCB; read by the TCB's own body
	// goroutine via selfTCB() to resolve "cpu::self()".
	cpu *CPU

	// resumeChan is this TCB's stand-in for a ucontext_t: sending on it is
	// "setcontext/swapcontext into this TCB", and the TCB's body goroutine
	// blocking on a receive from it is "this TCB's context is saved,
	// execution is elsewhere". Buffered with capacity 1 so a dispatcher
	// (or the IPI path) never blocks handing off even if the receiving
	// goroutine hasn't yet reached its receive.
	resumeChan chan struct{}

	// joinQ is the FIFO of TCBs blocked in Join() on this TCB's completion.
	joinQ tcbQueue

	// fn/arg are the thread body and its argument, consumed once by the
	// trampoline on the goroutine started by spawnTCBGoroutine.
	fn  ThreadFunc
	arg any

	// idle marks the synthetic per-CPU idle TCB: its body is
	// suspendHelper, and the dispatcher never timer-preempts it.
	idle bool

	// finishSignal, if non-nil, is closed by the trampoline right after
	// this TCB transitions to FINISHED. Only ever set on the root TCB
	// created by Boot, so BootHandle.Wait has something to block on.
	finishSignal chan struct{}
}

// ThreadFunc is the body of a simthread thread.
type ThreadFunc func(arg any)

func newTCB(fn ThreadFunc, arg any, idle bool) *TCB {
	t := &TCB{
		id:         nextThreadID.Add(1),
		status:     StatusNew,
		resumeChan: make(chan struct{}, 1),
		fn:         fn,
		arg:        arg,
		idle:       idle,
	}
	return t
}

// ID returns the TCB's unique, monotonically-assigned identity.
func (t *TCB) ID() uint32 { return t.id }

// Status returns the TCB's current status. Callers outside this package
// only ever see this through a Thread handle (thread.go), which only
// reports Status for diagnostics — the library never lets application
// code branch on it.
func (t *TCB) Status() Status { return t.status }
