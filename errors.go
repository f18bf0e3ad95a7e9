package simthread

import (
	"errors"
	"fmt"
)

// Sentinel errors for the application-visible precondition violations:
// cv-wait-without-owning-mutex, unlock-without-owning, and creating a
// thread with a nil body.
var (
	ErrNilFunc  = errors.New("simthread: thread func must not be nil")
	ErrNotOwner = errors.New("simthread: caller does not own the mutex")
)

// invariant panics with a formatted message when cond is false. Used for
// scheduler-invariant violations — queue corruption, status mismatches,
// anything that means the scheduler's own bookkeeping is broken — which
// are never recovered: an assert()-style crash-on-corruption, expressed
// with Go's panic instead of assert().
func invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("simthread: invariant violated: "+format, args...))
	}
}
