package simthread

import "testing"

func TestCondBoundedBufferProducerConsumer(t *testing.T) {
	const capacity = 4
	const items = 25

	buf := make([]int, 0, capacity)
	m := NewMutex()
	notEmpty := NewCond()
	notFull := NewCond()

	var consumed []int

	handle := Boot(Config{NumCPUs: 2, Async: true}, func(arg any) {
		producer, _ := New(func(arg any) {
			for i := 0; i < items; i++ {
				m.Lock()
				for len(buf) == capacity {
					if err := notFull.Wait(m); err != nil {
						t.Errorf("notFull.Wait: %v", err)
					}
				}
				buf = append(buf, i)
				notEmpty.Signal()
				m.Unlock()
			}
		}, nil)

		consumer, _ := New(func(arg any) {
			for i := 0; i < items; i++ {
				m.Lock()
				for len(buf) == 0 {
					if err := notEmpty.Wait(m); err != nil {
						t.Errorf("notEmpty.Wait: %v", err)
					}
				}
				v := buf[0]
				buf = buf[1:]
				consumed = append(consumed, v)
				notFull.Signal()
				m.Unlock()
			}
		}, nil)

		producer.Join()
		consumer.Join()
	}, nil)
	handle.Wait()
	handle.Stop()

	if len(consumed) != items {
		t.Fatalf("consumed %d items, want %d", len(consumed), items)
	}
	for i, v := range consumed {
		if v != i {
			t.Fatalf("consumed out of order at %d: got %d, want %d (buffer is single-producer/single-consumer FIFO)", i, v, i)
		}
	}
}

func TestCondPingPongAlternatesWithoutLostWakeups(t *testing.T) {
	const rounds = 100
	m := NewMutex()
	cond := NewCond()
	turn := 0
	var trace []int

	handle := Boot(Config{NumCPUs: 2, Async: true}, func(arg any) {
		ping, _ := New(func(arg any) {
			for i := 0; i < rounds; i++ {
				m.Lock()
				for turn != 0 {
					cond.Wait(m)
				}
				trace = append(trace, 0)
				turn = 1
				cond.Signal()
				m.Unlock()
			}
		}, nil)

		pong, _ := New(func(arg any) {
			for i := 0; i < rounds; i++ {
				m.Lock()
				for turn != 1 {
					cond.Wait(m)
				}
				trace = append(trace, 1)
				turn = 0
				cond.Signal()
				m.Unlock()
			}
		}, nil)

		ping.Join()
		pong.Join()
	}, nil)
	handle.Wait()
	handle.Stop()

	if len(trace) != 2*rounds {
		t.Fatalf("trace has %d entries, want %d", len(trace), 2*rounds)
	}
	for i, v := range trace {
		want := i % 2
		if v != want {
			t.Fatalf("trace[%d] = %d, want %d (alternation broken, a lost wakeup would stall one side here)", i, v, want)
		}
	}
}

func TestCondBroadcastWakesEveryWaiter(t *testing.T) {
	const waiters = 6
	m := NewMutex()
	cond := NewCond()
	ready := false
	woken := 0

	handle := Boot(Config{NumCPUs: 3, Async: true}, func(arg any) {
		joins := make([]*Thread, 0, waiters)
		for i := 0; i < waiters; i++ {
			th, _ := New(func(arg any) {
				m.Lock()
				for !ready {
					cond.Wait(m)
				}
				woken++
				m.Unlock()
			}, nil)
			joins = append(joins, th)
		}

		waker, _ := New(func(arg any) {
			m.Lock()
			ready = true
			cond.Broadcast()
			m.Unlock()
		}, nil)
		waker.Join()

		for _, th := range joins {
			th.Join()
		}
	}, nil)
	handle.Wait()
	handle.Stop()

	if woken != waiters {
		t.Fatalf("woken = %d, want %d (a missed broadcast leaves a waiter stuck forever)", woken, waiters)
	}
}

func TestCondWaitWithoutOwnerFails(t *testing.T) {
	var gotErr error
	m := NewMutex()
	cond := NewCond()
	handle := Boot(Config{NumCPUs: 1}, func(arg any) {
		gotErr = cond.Wait(m)
	}, nil)
	handle.Wait()
	handle.Stop()

	if gotErr != ErrNotOwner {
		t.Fatalf("Wait without owning the mutex = %v, want %v", gotErr, ErrNotOwner)
	}
}
