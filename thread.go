package simthread

import "weak"

// Thread is the application-facing handle returned by New. It holds only
// a weak reference to the underlying TCB so that Join on an
// already-finished and already-reaped thread is safe rather than a
// dangling pointer: Go's weak package (stdlib, 1.24+) gives this for
// free in place of a hand-rolled reference-counted weak pointer.
type Thread struct {
	tcb weak.Pointer[TCB]
}

func newThreadHandle(t *TCB) *Thread {
	return &Thread{tcb: weak.Make(t)}
}

// ID returns the created thread's id. The id is read through the weak
// reference, so once the underlying TCB has been reaped ID returns 0.
func (h *Thread) ID() uint32 {
	if t := h.tcb.Value(); t != nil {
		return t.id
	}
	return 0
}

// Status reports the thread's last-known lifecycle state for
// diagnostics. Returns StatusFinished once the underlying TCB has been
// reaped, since that is the only state a reaped TCB could have been in.
func (h *Thread) Status() Status {
	if t := h.tcb.Value(); t != nil {
		return t.status
	}
	return StatusFinished
}

// New creates a thread running fn(arg) and makes it runnable. Must be
// called from inside a running simthread thread (i.e. from a ThreadFunc,
// directly or transitively).
func New(fn ThreadFunc, arg any) (*Thread, error) {
	maybeTimerYield()
	cpu := kernelGuardEnter()
	defer kernelGuardExit()

	if fn == nil {
		return nil, ErrNilFunc
	}

	t := newTCB(fn, arg, false)
	spawnTCBGoroutine(t)
	pushToQueue(cpu, t)
	return newThreadHandle(t), nil
}

// spawnTCBGoroutine starts the persistent goroutine backing a regular
// (non-idle) TCB. It registers the TCB against the goroutine (gid.go) and
// then parks immediately, waiting for its first dispatch — the Go
// analogue of makecontext() preparing a context without yet running it.
func spawnTCBGoroutine(t *TCB) {
	go func() {
		registerSelf(t)
		<-t.resumeChan
		trampoline(t)
	}()
}

// trampoline is the body every TCB goroutine actually runs: entered with
// interrupts disabled and the guard held (the switch invariant), it runs
// the user body inside a user gate, then performs the kernel-mode finish
// sequence — drain joiners, mark FINISHED, push to the finished list,
// dispatch next or suspend. Must not return to any caller; it is the
// goroutine's last frame.
func trampoline(t *TCB) {
	assertInterruptsDisabled(t.cpu)

	userGuardEnter()
	t.fn(t.arg)
	userGuardExit()

	cpu := currentCPU()
	assertInterruptsDisabled(cpu)
	s := cpu.sched

	for !t.joinQ.empty() {
		j := t.joinQ.pop()
		pushToQueue(cpu, j)
	}

	t.status = StatusFinished
	s.finished = append(s.finished, t)
	if t.finishSignal != nil {
		close(t.finishSignal)
	}
	unregisterSelf()

	if !s.readyQ.empty() {
		next := s.readyQ.pop()
		invariant(next.status == StatusReady, "thread_execution: popped non-ready TCB %d", next.id)
		next.status = StatusRunning
		cpu.curr = next
		next.cpu = cpu
		next.resumeChan <- struct{}{}
		return
	}
	cpu.curr = cpu.idleTCB
	cpu.idleTCB.cpu = cpu
	cpu.idleTCB.resumeChan <- struct{}{}
}

// yieldBody implements the voluntary-yield algorithm, assuming the caller
// already holds the kernel gate. Shared by the exported Yield and by the
// timer checkpoint (cpu.go's onTimerCheckpoint), which is exactly what a
// timer-driven preemption is: an involuntary yield.
func yieldBody(cpu *CPU) {
	s := cpu.sched
	if s.readyQ.empty() {
		return
	}
	prev := cpu.curr
	next := s.readyQ.pop()
	invariant(next.status == StatusReady, "yield: popped non-ready TCB %d", next.id)
	pushToQueue(cpu, prev)
	next.status = StatusRunning
	cpu.curr = next
	next.cpu = cpu
	switchTo(prev, next)
	sweepFinished(prev)
}

// Yield voluntarily gives up the CPU to the next ready thread, if any.
func Yield() {
	maybeTimerYield()
	cpu := kernelGuardEnter()
	defer kernelGuardExit()
	yieldBody(cpu)
}

// maybeTimerYield is the checkpoint every exported entry point calls
// before opening its own kernel gate: if this CPU's timer is due, run one
// full yield cycle first, then let the caller's own gated operation
// proceed. See SPEC_FULL.md's Open Questions for why this, not a truly
// asynchronous interrupt, is how preemption is realized here.
func maybeTimerYield() {
	cpu := currentCPU()
	if cpu.curr == cpu.idleTCB || !cpu.timerDue() {
		return
	}
	kernelGuardEnter()
	cpu.vectorTable[VectorTimer]()
	kernelGuardExit()
}

// Join blocks until the target thread finishes, or returns immediately if
// it already has finished (or has already been reaped).
func (h *Thread) Join() {
	maybeTimerYield()
	cpu := kernelGuardEnter()
	defer kernelGuardExit()

	target := h.tcb.Value()
	if target == nil || target.status == StatusFinished {
		return
	}

	self := cpu.curr
	self.status = StatusBlocked
	target.joinQ.push(self)
	getNextThread(cpu)
}
