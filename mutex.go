package simthread

// Mutex is a blocking lock with a FIFO waitlist and direct handoff on
// unlock. The owner field doubles as the "free" sentinel (0, since
// thread ids are assigned starting at 1), so there is no separate
// boolean tracking whether the mutex is held.
type Mutex struct {
	owner uint32
	waitQ tcbQueue
}

// NewMutex returns an unlocked mutex.
func NewMutex() *Mutex {
	return &Mutex{}
}

// Lock acquires the mutex, blocking (and yielding the CPU) on contention.
func (m *Mutex) Lock() {
	maybeTimerYield()
	cpu := kernelGuardEnter()
	defer kernelGuardExit()
	m.internalLock(cpu)
}

// internalLock does the actual locking work, callable with the kernel
// gate already held — used directly by Cond.Wait to reacquire on resume.
func (m *Mutex) internalLock(cpu *CPU) {
	self := cpu.curr
	if m.owner == 0 {
		m.owner = self.id
		return
	}
	self.status = StatusBlocked
	invariant(!m.waitQ.contains(self), "mutex: thread %d already on wait queue", self.id)
	m.waitQ.push(self)
	getNextThread(cpu)
}

// Unlock releases the mutex. Returns ErrNotOwner if the calling thread does
// not hold it.
func (m *Mutex) Unlock() error {
	maybeTimerYield()
	cpu := kernelGuardEnter()
	defer kernelGuardExit()
	return m.internalUnlock(cpu)
}

// internalUnlock does the actual unlocking work. On contention it
// transfers ownership directly to the head of the waitlist — the lock is
// never observed unlocked by a third thread between unlock and the
// waiter's acquisition.
func (m *Mutex) internalUnlock(cpu *CPU) error {
	self := cpu.curr
	if m.owner != self.id {
		return ErrNotOwner
	}
	if !m.waitQ.empty() {
		next := m.waitQ.pop()
		m.owner = next.id
		pushToQueue(cpu, next)
		return nil
	}
	m.owner = 0
	return nil
}
