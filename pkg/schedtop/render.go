//go:build linux

package schedtop

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ja7ad/schedtop/pkg/system/cpumask"
	"github.com/ja7ad/schedtop/pkg/system/util"
)

const (
	affinityHeader = "AFFINITY"
	workloadWidth  = 16
	commWidth      = 15
	cmdlineWidth   = 120
)

// Renderer writes the per-pass diff table. A pass with an empty render set
// produces no output at all.
type Renderer struct {
	w        io.Writer
	tids     bool
	affWidth int
}

// NewRenderer sizes the affinity column from the online CPU count so the
// table stays aligned no matter how many CPUs are online.
func NewRenderer(w io.Writer, tids bool, onlineCPUs int) *Renderer {
	aw := cpumask.HexWidth(onlineCPUs)
	if aw < len(affinityHeader) {
		aw = len(affinityHeader)
	}
	return &Renderer{w: w, tids: tids, affWidth: aw}
}

// Pass renders the header and one row per task in the render set. Rows are
// sorted by parent pid, then pid, then tid; the reference tool rendered in
// enumeration order, which is nondeterministic, so the explicit sort is a
// documented choice.
func (r *Renderer) Pass(now time.Time, elapsed time.Duration, uptimeSec float64, tasks []*Task) {
	if len(tasks) == 0 {
		return
	}

	fmt.Fprintf(r.w, "schedtop %s -- %s  elapsed: %d ms  uptime: %s\n",
		Version,
		now.Format("2006-01-02 15:04:05.000"),
		elapsed.Milliseconds(),
		util.FormatUptime(uptimeSec),
	)

	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.PPID != b.PPID {
			return a.PPID < b.PPID
		}
		if a.ID.PID != b.ID.PID {
			return a.ID.PID < b.ID.PID
		}
		return a.ID.TID < b.ID.TID
	})

	if r.tids {
		fmt.Fprintf(r.w, "%8s %8s %8s %1s %4s %*s %-7s %5s %5s %-*s %-*s %s\n",
			"PPID", "PID", "TID", "S", "CPU", r.affWidth, affinityHeader,
			"POLICY", "NICE", "PRIO", workloadWidth, "CGROUP", commWidth, "COMM", "COMMAND")
	} else {
		fmt.Fprintf(r.w, "%8s %8s %1s %4s %*s %-7s %5s %5s %-*s %-*s %s\n",
			"PPID", "PID", "S", "CPU", r.affWidth, affinityHeader,
			"POLICY", "NICE", "PRIO", workloadWidth, "CGROUP", commWidth, "COMM", "COMMAND")
	}
	for _, t := range tasks {
		r.row(t)
	}
}

func (r *Renderer) row(t *Task) {
	if r.tids {
		fmt.Fprintf(r.w, "%8d %8d %8d %c %4d %*s %-7s %5d %5d %-*s %-*s %s\n",
			t.PPID, t.ID.PID, t.ID.TID, t.State, t.LastCPU,
			r.affWidth, t.Affinity.Hex(), t.Policy,
			t.Nice, t.Priority,
			workloadWidth, util.Truncate(t.Workload, workloadWidth),
			commWidth, util.Truncate(t.Comm, commWidth),
			util.Truncate(t.Cmdline, cmdlineWidth))
		return
	}
	fmt.Fprintf(r.w, "%8d %8d %c %4d %*s %-7s %5d %5d %-*s %-*s %s\n",
		t.PPID, t.ID.PID, t.State, t.LastCPU,
		r.affWidth, t.Affinity.Hex(), t.Policy,
		t.Nice, t.Priority,
		workloadWidth, util.Truncate(t.Workload, workloadWidth),
		commWidth, util.Truncate(t.Comm, commWidth),
		util.Truncate(t.Cmdline, cmdlineWidth))
}
