package simthread

// Cond is a condition variable bound, at each call site, to a mutex.
// Signal uses re-contention (the woken thread re-acquires the mutex on
// resume, possibly blocking again), unlike Mutex.Unlock's direct
// handoff; the two primitives intentionally differ here.
type Cond struct {
	waitQ tcbQueue
}

// NewCond returns a condition variable with no waiters.
func NewCond() *Cond {
	return &Cond{}
}

// Wait releases m, blocks until signaled, then reacquires m before
// returning. Returns ErrNotOwner if the calling thread does not hold m.
func (c *Cond) Wait(m *Mutex) error {
	maybeTimerYield()
	cpu := kernelGuardEnter()
	defer kernelGuardExit()

	self := cpu.curr
	if m.owner != self.id {
		return ErrNotOwner
	}

	// Release (direct handoff if a waiter exists), mark self BLOCKED,
	// enqueue on this cv's waitlist, then dispatch away — all atomic
	// w.r.t. other kernel-gated actions because the gate is still held
	// throughout.
	_ = m.internalUnlock(cpu)
	self.status = StatusBlocked
	invariant(!c.waitQ.contains(self), "cv: thread %d already waiting", self.id)
	c.waitQ.push(self)
	getNextThread(cpu)

	// On resume, re-resolve the current CPU before reacquiring: a
	// blocked thread can be redispatched onto a different CPU than the
	// one it went to sleep on, so the cpu captured above is stale here.
	m.internalLock(currentCPU())
	return nil
}

// Signal wakes one waiter, if any. The woken thread re-contends for the
// mutex on resume rather than being handed ownership directly.
func (c *Cond) Signal() {
	maybeTimerYield()
	cpu := kernelGuardEnter()
	defer kernelGuardExit()

	if c.waitQ.empty() {
		return
	}
	next := c.waitQ.pop()
	pushToQueue(cpu, next)
}

// Broadcast wakes every waiter.
func (c *Cond) Broadcast() {
	maybeTimerYield()
	cpu := kernelGuardEnter()
	defer kernelGuardExit()

	for !c.waitQ.empty() {
		next := c.waitQ.pop()
		pushToQueue(cpu, next)
	}
}
