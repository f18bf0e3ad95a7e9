package simthread

import (
	"math/rand"
	"sync/atomic"
	"time"
)

// Interrupt vector slots, indexing a CPU's vectorTable.
const (
	VectorTimer = 0
	VectorIPI   = 1
)

// CPU is one simulated execution unit. A CPU does not itself run thread
// bodies on a borrowed OS-thread stack; each TCB carries its own
// goroutine (tcb.go), and CPU only tracks which TCB currently "owns"
// this stream of execution plus this stream's interrupt mask. See
// DESIGN.md for the full mapping from the substrate contract to this
// file.
type CPU struct {
	id    uint32
	sched *scheduler

	interruptsEnabled atomic.Bool

	curr    *TCB
	idleTCB *TCB

	vectorTable [2]func()

	// Deterministic synchronous timer (seeded per CPU) or asynchronous
	// wall-clock timer, consulted only at checkpoints — see
	// maybeTimerYield and SPEC_FULL.md §4.8/Open Questions.
	syncRNG      *rand.Rand
	asyncEnabled bool
	timerPending atomic.Bool

	stopped atomic.Bool
}

func (cpu *CPU) interruptDisable() { cpu.interruptsEnabled.Store(false) }
func (cpu *CPU) interruptEnable()  { cpu.interruptsEnabled.Store(true) }

func assertInterruptsDisabled(cpu *CPU) {
	invariant(!cpu.interruptsEnabled.Load(), "interrupts expected disabled on cpu %d", cpu.id)
}

func assertInterruptsEnabled(cpu *CPU) {
	invariant(cpu.interruptsEnabled.Load(), "interrupts expected enabled on cpu %d", cpu.id)
}

// Config is the boot-time configuration: the CPU count and the
// timer-generation knobs. The initial thread's func/arg pair is passed to
// Boot separately.
type Config struct {
	NumCPUs    uint
	Async      bool
	Sync       bool
	RandomSeed uint32
}

// BootHandle lets the caller observe completion of the thread created
// from Config's initial func/arg, and stop the per-CPU timer goroutines
// once done with it. The substrate itself never "returns" on success —
// a real process booted this way just keeps running application threads
// forever or exits — but a library used from tests needs an explicit,
// non-destructive way to know "the thing I booted to run is done."
type BootHandle struct {
	done chan struct{}
	s    *scheduler
}

// Wait blocks until the thread created from Boot's func/arg has finished.
func (h *BootHandle) Wait() {
	<-h.done
}

// Stop halts every CPU's background timer goroutine. Safe to call after
// Wait. If it is never called, the timer goroutine of a CPU booted with
// Config.Async keeps running.
func (h *BootHandle) Stop() {
	for _, c := range h.s.cpus {
		c.stopped.Store(true)
	}
}

// Boot brings up cfg.NumCPUs simulated CPUs; CPU 0 creates a thread
// running fn(arg), the rest start with no initial thread. Returns a
// handle instead of blocking forever, so callers (tests especially) can
// wait for specific completion rather than the process never returning.
func Boot(cfg Config, fn ThreadFunc, arg any) *BootHandle {
	if cfg.NumCPUs == 0 {
		cfg.NumCPUs = 1
	}
	s := newScheduler()
	handle := &BootHandle{done: make(chan struct{}), s: s}

	for i := uint32(0); i < uint32(cfg.NumCPUs); i++ {
		cpu := &CPU{id: i, sched: s}
		cpu.vectorTable[VectorTimer] = cpu.onTimerCheckpoint
		cpu.vectorTable[VectorIPI] = cpu.ipiHandler
		if cfg.Sync {
			cpu.syncRNG = rand.New(rand.NewSource(int64(cfg.RandomSeed) + int64(i)))
		}
		cpu.asyncEnabled = cfg.Async
		s.cpus = append(s.cpus, cpu)
	}

	for i, cpu := range s.cpus {
		var f ThreadFunc
		var a any
		if i == 0 {
			f, a = fn, arg
		}
		go cpuBoot(cpu, f, a, handle)
		go runTimerTicker(cpu)
	}
	return handle
}

// cpuBoot runs once per CPU: it sets up that CPU's idle TCB, creates the
// initial thread on the CPU that was given a non-nil func, and then
// dispatches — i.e. it is beginProcess's caller.
func cpuBoot(cpu *CPU, fn ThreadFunc, arg any, handle *BootHandle) {
	cpu.interruptDisable()
	cpu.sched.guardAcquire()

	idle := newTCB(nil, nil, true)
	idle.cpu = cpu
	cpu.idleTCB = idle
	idleRegistered := make(chan struct{})
	go func() {
		registerSelf(idle)
		close(idleRegistered)
		<-idle.resumeChan
		suspendHelper(cpu, idle)
	}()
	<-idleRegistered

	if fn != nil {
		t := newTCB(fn, arg, false)
		t.finishSignal = handle.done
		spawnTCBGoroutine(t)
		pushToQueue(cpu, t)
	}

	beginProcess(cpu)
}

// beginProcess dispatches a ready TCB if one exists, otherwise suspends.
// Never "returns" in the ucontext sense; here, it either hands off to a
// TCB goroutine (and this boot goroutine's job is done) or parks the
// boot goroutine's identity into the idle TCB directly (no prior context
// to preserve).
func beginProcess(cpu *CPU) {
	s := cpu.sched
	if !s.readyQ.empty() {
		next := s.readyQ.pop()
		invariant(next.status == StatusReady, "begin_process: popped non-ready TCB %d", next.id)
		next.status = StatusRunning
		cpu.curr = next
		next.cpu = cpu
		next.resumeChan <- struct{}{}
		return
	}
	suspendCPU(cpu)
}

// switchTo is this repo's stand-in for swapcontext(prev, next): wake next,
// then park prev until some later dispatch wakes it again.
func switchTo(prev, next *TCB) {
	next.resumeChan <- struct{}{}
	<-prev.resumeChan
}

// suspendCPU parks this CPU on its idle TCB: if there is a current
// thread, swap away from it to the idle TCB; otherwise this is the boot
// path and there is nothing to preserve.
func suspendCPU(cpu *CPU) {
	prev := cpu.curr
	cpu.curr = cpu.idleTCB
	cpu.idleTCB.cpu = cpu
	if prev != nil {
		switchTo(prev, cpu.idleTCB)
		return
	}
	cpu.idleTCB.resumeChan <- struct{}{}
}

// getNextThread is called by the thread that just transitioned to
// BLOCKED to hand the CPU to the next ready TCB, or park it on idle if
// there isn't one. Always sweeps the finished list immediately after the
// context switch returns, regardless of whether that return came via a
// direct dispatch or via a trip through suspend/IPI — see DESIGN.md for
// why this is deliberately stricter than a literal reading of the
// original algorithm.
func getNextThread(cpu *CPU) {
	s := cpu.sched
	prev := cpu.curr
	invariant(prev.status == StatusBlocked, "get_next_thread: outgoing TCB %d is not BLOCKED", prev.id)

	if !s.readyQ.empty() {
		next := s.readyQ.pop()
		invariant(next.status == StatusReady, "get_next_thread: popped non-ready TCB %d", next.id)
		next.status = StatusRunning
		cpu.curr = next
		next.cpu = cpu
		switchTo(prev, next)
	} else {
		suspendCPU(cpu)
	}
	sweepFinished(prev)
}

// pushToQueue is the sole enqueue point for making a TCB runnable.
func pushToQueue(cpu *CPU, t *TCB) {
	invariant(t.status == StatusNew || t.status == StatusRunning || t.status == StatusBlocked,
		"push_to_queue: TCB %d has invalid status %s", t.id, t.status)
	invariant(!cpu.sched.readyQ.contains(t), "push_to_queue: TCB %d already on ready queue", t.id)
	t.status = StatusReady
	cpu.sched.readyQ.push(t)
	fetchCPU(cpu)
}

// fetchCPU wakes one idle CPU, if any.
func fetchCPU(cpu *CPU) {
	s := cpu.sched
	if s.idleCPUs.empty() {
		return
	}
	target := s.idleCPUs.pop()
	invariant(target != cpu, "fetch_cpu: a running cpu cannot be its own idle target")
	target.interruptSend()
}

// interruptSend delivers an IPI: it wakes the target CPU's parked idle
// goroutine, which will itself invoke the IPI vector once scheduled.
func (cpu *CPU) interruptSend() {
	cpu.idleTCB.resumeChan <- struct{}{}
}

// suspendHelper is the idle TCB's body: loop forever, registering as
// idle, releasing the guard, enabling interrupts, and waiting for an IPI.
func suspendHelper(cpu *CPU, idle *TCB) {
	for {
		assertInterruptsDisabled(cpu)
		cpu.sched.idleCPUs.push(cpu)
		cpu.sched.guardRelease()
		cpu.interruptEnable()
		<-idle.resumeChan
		cpu.vectorTable[VectorIPI]()
	}
}

// ipiHandler is the IPI handler: mask interrupts and acquire the guard
// manually (not a scoped gate — the outgoing path must not release them
// before the switch), then dispatch one ready TCB away from idle. A
// spurious wake (ready queue already drained by someone else) just falls
// through with the guard held; suspendHelper's next loop iteration
// re-parks and releases it.
func (cpu *CPU) ipiHandler() {
	cpu.interruptDisable()
	cpu.sched.guardAcquire()

	s := cpu.sched
	if s.readyQ.empty() {
		return
	}
	next := s.readyQ.pop()
	invariant(next.status == StatusReady, "ipi_handler: popped non-ready TCB %d", next.id)
	prev := cpu.curr
	next.status = StatusRunning
	cpu.curr = next
	next.cpu = cpu
	switchTo(prev, next)
}

// onTimerCheckpoint is the timer vector: a timer interrupt handler
// adapted to fire at library checkpoints instead of at an arbitrary
// instruction boundary (Go cannot suspend a goroutine running arbitrary
// code from outside it; see SPEC_FULL.md Open Questions and DESIGN.md).
// Idle CPUs ignore timer preemption.
func (cpu *CPU) onTimerCheckpoint() {
	if cpu.curr == cpu.idleTCB {
		return
	}
	yieldBody(cpu)
}

// timerDue reports whether a timer interrupt should be considered to have
// fired since the last checkpoint on this CPU.
func (cpu *CPU) timerDue() bool {
	if cpu.syncRNG != nil {
		return cpu.syncRNG.Intn(4) == 0
	}
	if cpu.asyncEnabled {
		return cpu.timerPending.Swap(false)
	}
	return false
}

// runTimerTicker drives the asynchronous (wall-clock) timer for a CPU
// booted with Config.Async: an interrupt is considered to have fired
// roughly every millisecond. Grounded on toysched7.go's
// time.Sleep(100*time.Millisecond) scheduling tick, scaled down.
func runTimerTicker(cpu *CPU) {
	if !cpu.asyncEnabled {
		return
	}
	for !cpu.stopped.Load() {
		time.Sleep(time.Millisecond)
		if cpu.interruptsEnabled.Load() {
			cpu.timerPending.Store(true)
		}
	}
}

// sweepFinished drops every reference the finished list is still
// holding. Go's garbage collector does the actual reclamation once the
// last reference (this list, any waitlist, any CPU's curr slot) drops —
// there is no manual free() to call, unlike the original's
// unique_ptr<char[]> stack.
func sweepFinished(self *TCB) {
	s := self.cpu.sched
	for _, f := range s.finished {
		invariant(f.status == StatusFinished, "sweep: non-finished TCB %d on finished list", f.id)
		invariant(f != self, "sweep: currently running TCB %d found on finished list", self.id)
	}
	s.finished = s.finished[:0]
}

// Self returns the Thread handle for the calling goroutine's own TCB.
// Rarely needed by application code but useful for diagnostics.
func Self() *Thread {
	return newThreadHandle(selfTCB())
}
