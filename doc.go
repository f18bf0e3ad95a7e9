// Package simthread is a user-space, preemptible thread library running
// on top of a simulated multiprocessor substrate.
//
// Boot brings up one or more simulated CPUs and an initial thread. From
// inside that thread (or any thread it transitively creates), New spawns
// further threads, Yield gives up the CPU voluntarily, and Mutex/Cond
// provide blocking mutual exclusion and condition synchronization. Each
// simulated CPU can also deliver timer interrupts — synchronously and
// deterministically from a seeded generator when Config.Sync is set, or
// asynchronously off the wall clock when only Config.Async is set; with
// neither, no timer interrupts occur. A timer interrupt can preempt a
// running thread at any library entry point, the same way a real kernel's
// timer interrupt can preempt at any instruction boundary.
//
// The scheduler itself is single-threaded in spirit: at most one CPU at a
// time executes scheduler bookkeeping, guarded by a single spinlock
// (scheduler.guard), with interrupts on the holding CPU masked for the
// duration. Everything outside that gate — the user's own thread bodies —
// runs free of the guard and can be preempted.
package simthread
