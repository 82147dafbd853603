// Package accnt accumulates per-process CPU-time accounting, consumed by
// cmd/kstat to render a pprof profile of where the scheduler spent time.
//
// Grounded on biscuit/src/accnt/accnt.go; Biscuit's version buckets time
// by sampling the wall clock around syscalls and I/O waits on a
// multi-core system protected by a mutex. This port runs on a single
// CPU with interrupts disabled during all kernel-held sections (spec.md
// §5), so the update paths (Utadd, Systadd, Finish) take no lock —
// nothing can observe an Accnt_t mid-update from this process's own
// execution. Add and Snapshot still lock, for readers outside the
// kernel's own control flow such as the cmd/kstat snapshot path.
package accnt

import (
	"sync"
	"time"
)

// Accnt_t holds nanosecond counters of user and kernel time consumed by
// one process. Named with the teacher's trailing-underscore-t
// convention since it is a direct structural port.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	mu     sync.Mutex
}

// Now returns the current time in nanoseconds since the Unix epoch, the
// clock every Accnt_t measurement is taken against.
func Now() int64 { return time.Now().UnixNano() }

// Now is the method form, for callers already holding an Accnt_t.
func (a *Accnt_t) Now() int64 { return Now() }

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int64) { a.Userns += delta }

// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int64) { a.Sysns += delta }

// Finish adds the time elapsed since inttime to the system-time counter,
// called when a syscall handler returns.
func (a *Accnt_t) Finish(inttime int64) {
	a.Systadd(a.Now() - inttime)
}

// Add merges another accounting record into this one under lock, for use
// by out-of-band readers like cmd/kstat.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Userns += n.Userns
	a.Sysns += n.Sysns
}

// Usage is a lock-free copy of an Accnt_t's counters, safe to pass
// around (e.g. into a pprof profile sample) after Snapshot.
type Usage struct {
	Userns int64 `json:"userns"`
	Sysns  int64 `json:"sysns"`
}

// Snapshot returns a lock-protected copy suitable for serializing.
func (a *Accnt_t) Snapshot() Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Usage{Userns: a.Userns, Sysns: a.Sysns}
}

// ProcUsage names one process's accounting snapshot, the unit a debug
// build dumps to a file for cmd/kstat to later load and render as a
// pprof profile. JSON-tagged with lowercase field names to keep the
// on-disk format stable independent of Go identifier renames.
type ProcUsage struct {
	Pid   uint32 `json:"pid"`
	Name  string `json:"name"`
	Usage Usage  `json:"usage"`
}
