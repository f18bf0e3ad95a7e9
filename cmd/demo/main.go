// Command demo boots the simthread substrate and runs one of a handful of
// canned scenarios against it, narrating scheduler-visible events with
// log/slog as they happen.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"simthread"
)

func main() {
	var (
		cpus      = flag.Uint("cpus", 2, "number of simulated CPUs")
		async     = flag.Bool("async", false, "drive the timer off the wall clock (has no effect while -sync is true)")
		syncTimer = flag.Bool("sync", true, "use a deterministic, seeded synchronous timer")
		seed      = flag.Uint("seed", 1, "random seed for the synchronous timer")
		scenario  = flag.String("scenario", "producer-consumer", "scenario to run: producer-consumer, ping-pong, join-chain, broadcast, contended-mutex, idle-wake")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := simthread.Config{
		NumCPUs:    *cpus,
		Async:      *async,
		Sync:       *syncTimer,
		RandomSeed: uint32(*seed),
	}

	run, ok := scenarios[*scenario]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown scenario %q\n", *scenario)
		os.Exit(2)
	}

	handle := simthread.Boot(cfg, func(arg any) {
		run(log)
	}, nil)
	handle.Wait()
	handle.Stop()
}

var scenarios = map[string]func(log *slog.Logger){
	"producer-consumer": producerConsumer,
	"ping-pong":         pingPong,
	"join-chain":        joinChain,
	"broadcast":         broadcastScenario,
	"contended-mutex":   contendedMutex,
	"idle-wake":         idleWake,
}

// producerConsumer runs a bounded-buffer producer and consumer pair
// synchronized with a mutex and two condition variables (not-empty,
// not-full), the classic bounded-buffer pattern.
func producerConsumer(log *slog.Logger) {
	const capacity = 4
	const items = 12

	buf := make([]int, 0, capacity)
	m := simthread.NewMutex()
	notEmpty := simthread.NewCond()
	notFull := simthread.NewCond()
	done := make(chan struct{})

	producer, _ := simthread.New(func(arg any) {
		for i := 0; i < items; i++ {
			m.Lock()
			for len(buf) == capacity {
				notFull.Wait(m)
			}
			buf = append(buf, i)
			log.Info("produced", "item", i, "depth", len(buf))
			notEmpty.Signal()
			m.Unlock()
		}
	}, nil)

	consumer, _ := simthread.New(func(arg any) {
		for i := 0; i < items; i++ {
			m.Lock()
			for len(buf) == 0 {
				notEmpty.Wait(m)
			}
			v := buf[0]
			buf = buf[1:]
			log.Info("consumed", "item", v, "depth", len(buf))
			notFull.Signal()
			m.Unlock()
		}
		close(done)
	}, nil)

	producer.Join()
	consumer.Join()
	<-done
}

// pingPong alternates two threads back and forth a fixed number of times
// using a pair of condition variables, checking that neither wakeup is
// ever lost.
func pingPong(log *slog.Logger) {
	const rounds = 10
	m := simthread.NewMutex()
	turn := 0 // 0 == ping's turn, 1 == pong's turn
	cond := simthread.NewCond()

	ping, _ := simthread.New(func(arg any) {
		for i := 0; i < rounds; i++ {
			m.Lock()
			for turn != 0 {
				cond.Wait(m)
			}
			log.Info("ping", "round", i)
			turn = 1
			cond.Signal()
			m.Unlock()
		}
	}, nil)

	pong, _ := simthread.New(func(arg any) {
		for i := 0; i < rounds; i++ {
			m.Lock()
			for turn != 1 {
				cond.Wait(m)
			}
			log.Info("pong", "round", i)
			turn = 0
			cond.Signal()
			m.Unlock()
		}
	}, nil)

	ping.Join()
	pong.Join()
}

// joinChain creates N threads where thread i joins thread i-1 before doing
// its own work, checking that Join's liveness holds transitively down a
// chain rather than just for a single pair.
func joinChain(log *slog.Logger) {
	const depth = 6
	var prev *simthread.Thread
	links := make([]*simthread.Thread, 0, depth)

	for i := 0; i < depth; i++ {
		index, predecessor := i, prev
		t, _ := simthread.New(func(arg any) {
			if predecessor != nil {
				predecessor.Join()
			}
			log.Info("link finished", "index", index)
		}, nil)
		links = append(links, t)
		prev = t
	}
	for _, t := range links {
		t.Join()
	}
}

// broadcastScenario wakes a pool of waiters in one shot and confirms every
// one of them observed the wakeup (none left stuck waiting).
func broadcastScenario(log *slog.Logger) {
	const waiters = 5
	m := simthread.NewMutex()
	cond := simthread.NewCond()
	ready := false
	var woken atomic.Int32
	joins := make([]*simthread.Thread, 0, waiters)

	for i := 0; i < waiters; i++ {
		idx := i
		t, _ := simthread.New(func(arg any) {
			m.Lock()
			for !ready {
				cond.Wait(m)
			}
			m.Unlock()
			woken.Add(1)
			log.Info("waiter woke", "index", idx)
		}, nil)
		joins = append(joins, t)
	}

	waker, _ := simthread.New(func(arg any) {
		simthread.Yield()
		m.Lock()
		ready = true
		cond.Broadcast()
		m.Unlock()
	}, nil)

	waker.Join()
	for _, t := range joins {
		t.Join()
	}
	log.Info("broadcast complete", "woken", woken.Load())
}

// contendedMutex has many threads race to increment a shared counter under
// a single mutex while timer preemption is active, checking that no
// increment is ever torn.
func contendedMutex(log *slog.Logger) {
	const workers = 8
	const incrementsPerWorker = 50

	m := simthread.NewMutex()
	counter := 0
	joins := make([]*simthread.Thread, 0, workers)

	for i := 0; i < workers; i++ {
		t, _ := simthread.New(func(arg any) {
			for j := 0; j < incrementsPerWorker; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}, nil)
		joins = append(joins, t)
	}
	for _, t := range joins {
		t.Join()
	}

	want := workers * incrementsPerWorker
	log.Info("contended mutex result", "counter", counter, "want", want, "matches", counter == want)
}

// idleWake has a CPU sit idle with nothing runnable, then checks it wakes
// promptly once another CPU pushes it a thread via an IPI.
func idleWake(log *slog.Logger) {
	done := make(chan struct{})
	t, _ := simthread.New(func(arg any) {
		log.Info("woke an idle CPU to run this thread", "thread", simthread.Self().ID())
		close(done)
	}, nil)
	t.Join()
	<-done
}
