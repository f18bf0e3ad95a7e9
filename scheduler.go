package simthread

import "sync/atomic"

// scheduler groups the process-wide singletons: the ready queue, the idle
// CPU queue, the finished list, the single atomic guard flag, and the set
// of booted CPUs. Keeping these in one object passed by reference, rather
// than package-level static storage, lets a test boot, run a scenario,
// and tear down without cross-test interference.
type scheduler struct {
	guard atomic.Bool

	readyQ   tcbQueue
	idleCPUs cpuQueue
	finished []*TCB

	cpus []*CPU
}

func newScheduler() *scheduler {
	return &scheduler{}
}

func (s *scheduler) guardAcquire() {
	for !s.guard.CompareAndSwap(false, true) {
		// busy-spin: the guard is held only across short, non-blocking
		// stretches of scheduler bookkeeping.
	}
}

func (s *scheduler) guardRelease() {
	s.guard.Store(false)
}

// currentCPU resolves "which simulated CPU am I running on right now",
// the substrate's one piece of ambient context: the CPU that most
// recently dispatched the calling TCB's goroutine. Must always be called
// fresh rather than cached across a blocking point, since a thread that
// blocks and later resumes can be redispatched onto a different CPU.
func currentCPU() *CPU {
	return selfTCB().cpu
}

// kernelGuardEnter/Exit implement the kernel gate: mask interrupts, then
// acquire the guard; release, then unmask, symmetrically. Exit is
// deliberately argument-less and re-resolves currentCPU() itself rather
// than taking the CPU the caller entered on, because the calling thread
// may have blocked and been redispatched onto a different CPU in between
// — a stale CPU pointer captured before the block would unmask and
// release against the wrong CPU.
func kernelGuardEnter() *CPU {
	cpu := currentCPU()
	cpu.interruptDisable()
	cpu.sched.guardAcquire()
	return cpu
}

func kernelGuardExit() {
	cpu := currentCPU()
	cpu.sched.guardRelease()
	cpu.interruptEnable()
}

// userGuardEnter/Exit implement the user gate: the inverse of the kernel
// gate, bracketing execution of user-supplied thread bodies. Exit
// re-resolves currentCPU() for the same reason kernelGuardExit does: the
// user body it brackets can itself yield, lock, or join, which may move
// execution to a different CPU before the gate closes again.
func userGuardEnter() *CPU {
	cpu := currentCPU()
	cpu.sched.guardRelease()
	cpu.interruptEnable()
	return cpu
}

func userGuardExit() {
	cpu := currentCPU()
	cpu.interruptDisable()
	cpu.sched.guardAcquire()
}
