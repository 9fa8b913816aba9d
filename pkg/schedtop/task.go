//go:build linux

package schedtop

import (
	"github.com/ja7ad/schedtop/pkg/system/cpumask"
	"github.com/ja7ad/schedtop/pkg/system/proc"
	"github.com/ja7ad/schedtop/pkg/types"
)

// Version is printed in every pass header.
const Version = "1.0.0"

// refreshInterval bounds a task's age: after this many passes a cached task
// is re-read and re-rendered even though it is not new.
const refreshInterval = 100

// Policy is the kernel scheduling policy number.
type Policy int

// PolicyNone marks a task whose stat record could not be read this refresh.
const PolicyNone Policy = -1

// Kernel policy numbers 0..6. Slots the sampler cannot name render as
// "unknown".
var policyNames = [...]string{"other", "fifo", "rr", "batch", "unknown", "idle", "unknown"}

func (p Policy) String() string {
	if p == PolicyNone {
		return "-"
	}
	if p < 0 || int(p) >= len(policyNames) {
		return "unknown"
	}
	return policyNames[p]
}

// Task is the cached attribute set for one schedulable unit.
type Task struct {
	ID       proc.TaskID
	PPID     int
	State    byte
	Comm     string
	Cmdline  string
	Workload string
	Policy   Policy
	Priority int64
	Nice     int64
	RTPrio   int
	LastCPU  int
	Affinity *cpumask.Mask
	VmRSS    types.Bytes
	VmSize   types.Bytes
	// StartTime is the stat starttime field, in clock ticks since boot.
	StartTime uint64

	// age counts passes since the last full attribute read; it wraps at
	// refreshInterval and forces a re-read.
	age int

	// defined is false when the affinity field could not be parsed (task
	// died mid-read); such tasks are cached but excluded from rendering.
	defined bool
}
