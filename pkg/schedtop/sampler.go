//go:build linux

package schedtop

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/phuslu/log"

	"github.com/ja7ad/schedtop/pkg/stats"
	"github.com/ja7ad/schedtop/pkg/system/cgroup"
	"github.com/ja7ad/schedtop/pkg/system/cpumask"
	"github.com/ja7ad/schedtop/pkg/system/proc"
	"github.com/ja7ad/schedtop/pkg/types"
)

const minSleep = time.Millisecond

// Options configures a Sampler. Zero values take the documented defaults.
type Options struct {
	// Delay is the inter-sample delay (default 1s).
	Delay time.Duration

	// Period is the total run duration; when set, the repeat count is
	// derived as Period/Delay.
	Period time.Duration

	// Repeat is the number of sampling passes after the initial snapshot
	// (default 1). Ignored when Period is set.
	Repeat int

	// Threads enables thread-level enumeration.
	Threads bool

	// FromCgroup scopes discovery to pids listed in the cgroup-v1 pids
	// hierarchy, indexed once at startup.
	FromCgroup bool

	// ProcRoot and CgroupRoot default to /proc and the pids controller
	// mount; tests point them at fixture trees.
	ProcRoot   string
	CgroupRoot string

	// Out receives the rendered table (default os.Stdout).
	Out io.Writer

	// Log receives recoverable per-task diagnostics at debug level.
	Log *log.Logger
}

// Sampler owns all sampling state: online CPU mask, snapshot cache,
// renderer and the pass-runtime histogram. It is single-threaded; Run is
// the only method that touches it after New.
type Sampler struct {
	opt      Options
	log      *log.Logger
	ncpu     int
	online   *cpumask.Mask
	pageSize int
	cache    *Cache
	renderer *Renderer
	hist     *stats.Histogram

	cgroupProcs []string
	repeat      int
	lastPass    time.Time
}

// New validates options and performs the fatal startup reads: online CPU
// count, host uptime, and (in cgroup-scoped mode) the pids hierarchy walk.
// The online mask is fixed here; CPU hot-plug after this is not re-detected.
func New(opt Options) (*Sampler, error) {
	if opt.Delay <= 0 {
		opt.Delay = time.Second
	}
	if opt.Repeat <= 0 {
		opt.Repeat = 1
	}
	if opt.ProcRoot == "" {
		opt.ProcRoot = proc.DefaultRoot
	}
	if opt.CgroupRoot == "" {
		opt.CgroupRoot = cgroup.DefaultRoot
	}
	if opt.Out == nil {
		opt.Out = os.Stdout
	}
	if opt.Log == nil {
		l := log.Logger{Level: log.InfoLevel, Writer: log.IOWriter{Writer: os.Stderr}}
		opt.Log = &l
	}

	ncpu, err := proc.CPUCount(opt.ProcRoot)
	if err != nil {
		return nil, err
	}
	if _, err := proc.Uptime(opt.ProcRoot); err != nil {
		return nil, err
	}

	s := &Sampler{
		opt:      opt,
		log:      opt.Log,
		ncpu:     ncpu,
		online:   cpumask.AllOnline(ncpu),
		pageSize: os.Getpagesize(),
		cache:    NewCache(),
		renderer: NewRenderer(opt.Out, opt.Threads, ncpu),
		hist:     stats.NewHistogram(stats.DefaultLatencyBounds),
		repeat:   opt.Repeat,
	}
	if opt.Period > 0 {
		s.repeat = int(opt.Period / opt.Delay)
		if s.repeat < 1 {
			s.repeat = 1
		}
	}
	if opt.FromCgroup {
		s.cgroupProcs, err = cgroup.ProcsIndex(opt.CgroupRoot)
		if err != nil {
			return nil, fmt.Errorf("index cgroup procs: %w", err)
		}
	}
	return s, nil
}

// OnlineCPUs returns the online CPU count fixed at startup.
func (s *Sampler) OnlineCPUs() int { return s.ncpu }

// Run takes the initial snapshot, performs the configured number of
// sampling passes, and finishes with the done line and processing summary.
// Context cancellation (the interrupt signal) exits cleanly between passes,
// never mid-row.
func (s *Sampler) Run(ctx context.Context) error {
	start := time.Now()
	var end time.Time
	if s.opt.Period > 0 {
		end = start.Add(s.opt.Period)
	}

	// initial snapshot populates the cache without rendering
	ids, err := s.enumerate()
	if err != nil {
		return err
	}
	s.cache.Advance(ids, s.readTask)
	s.lastPass = time.Now()
	initCost := s.lastPass.Sub(start)
	s.log.Debug().Int("tasks", s.cache.Len()).Dur("cost", initCost).Msg("initial snapshot")

	cost := initCost
	for i := 0; i < s.repeat; i++ {
		select {
		case <-ctx.Done():
			s.log.Debug().Msg("interrupted")
			s.finish()
			return nil
		case <-time.After(clampSleep(s.opt.Delay, cost)):
		}

		passStart := time.Now()
		if err := s.pass(passStart); err != nil {
			return err
		}
		cost = time.Since(passStart)
		s.hist.Observe(float64(cost) / float64(time.Millisecond))

		if !end.IsZero() && !time.Now().Before(end) {
			break
		}
	}
	s.finish()
	return nil
}

// clampSleep compensates for observed pass runtime so the cadence stays
// close to the requested delay, never sleeping under 1ms or past delay+1ms.
func clampSleep(delay, cost time.Duration) time.Duration {
	d := delay - cost
	if d < minSleep {
		return minSleep
	}
	if d > delay+time.Millisecond {
		return delay + time.Millisecond
	}
	return d
}

func (s *Sampler) enumerate() ([]proc.TaskID, error) {
	if s.opt.FromCgroup {
		seen := make(map[int]struct{})
		var pids []int
		for _, p := range s.cgroupProcs {
			for _, pid := range cgroup.ReadProcs(p) {
				if _, ok := seen[pid]; ok {
					continue
				}
				seen[pid] = struct{}{}
				pids = append(pids, pid)
			}
		}
		return proc.ListTasksOf(s.opt.ProcRoot, pids, s.opt.Threads), nil
	}
	return proc.ListTasks(s.opt.ProcRoot, s.opt.Threads)
}

func (s *Sampler) pass(now time.Time) error {
	ids, err := s.enumerate()
	if err != nil {
		return err
	}
	render := s.cache.Advance(ids, s.readTask)

	if len(render) > 0 {
		uptime, err := proc.Uptime(s.opt.ProcRoot)
		if err != nil {
			return err
		}
		s.renderer.Pass(now, now.Sub(s.lastPass), uptime, render)
	}
	s.lastPass = now
	return nil
}

// readTask performs one full attribute read. The status record gates the
// whole refresh: without it the task is treated as vanished for this pass.
// Every other record degrades only the fields it would have populated.
func (s *Sampler) readTask(id proc.TaskID) (*Task, bool) {
	root := s.opt.ProcRoot
	status, err := proc.ReadStatus(root, id)
	if err != nil {
		s.log.Debug().Int("pid", id.PID).Int("tid", id.TID).Err(err).
			Msg("status unreadable, refresh skipped")
		return nil, false
	}

	t := &Task{
		ID:       id,
		PPID:     status.PPid,
		State:    status.State,
		Comm:     status.Name,
		Workload: cgroup.Unknown,
		Policy:   PolicyNone,
		Affinity: cpumask.New(s.ncpu),
		VmRSS:    types.FromKB(status.VmRSSKB),
		VmSize:   types.FromKB(status.VmSizeKB),
	}

	if st, err := proc.ReadStat(root, id); err == nil {
		t.Policy = Policy(st.Policy)
		t.Priority = st.Priority
		t.Nice = st.Nice
		t.RTPrio = st.RTPrio
		t.LastCPU = st.Processor
		t.StartTime = st.StartTime
		if t.Comm == "" {
			t.Comm = st.Comm
		}
		// kernel threads report no Vm* keys in status
		if t.VmRSS == 0 {
			t.VmRSS = types.FromPages(st.RSSPages, s.pageSize)
		}
		if t.VmSize == 0 {
			t.VmSize = types.Bytes(st.VSize)
		}
	} else {
		s.log.Debug().Int("pid", id.PID).Int("tid", id.TID).Err(err).Msg("stat unreadable")
	}

	t.Cmdline = proc.ReadCmdline(root, id)
	if t.Cmdline == "" {
		t.Cmdline = t.Comm
	}

	if raw := proc.ReadCgroup(root, id); raw != "" {
		t.Workload = cgroup.Workload(raw)
	}

	if status.CpusAllowed != "" {
		if m, err := cpumask.Parse(status.CpusAllowed, s.ncpu); err == nil {
			t.Affinity = m.And(s.online)
			t.defined = true
		} else {
			s.log.Debug().Int("pid", id.PID).Int("tid", id.TID).Err(err).Msg("affinity undefined")
		}
	}

	s.log.Trace().Int("pid", id.PID).Int("tid", id.TID).
		Str("workload", t.Workload).Str("rss", t.VmRSS.Humanized()).
		Msg("task refreshed")
	return t, true
}

// finish prints the terminating done line and the processing-time summary.
func (s *Sampler) finish() {
	fmt.Fprintln(s.opt.Out, "done")
	fmt.Fprintf(s.opt.Out,
		"processing: passes=%d total=%.2f ms avg=%.2f ms p50=%.2f ms p95=%.2f ms max=%.2f ms\n",
		s.hist.Count(), s.hist.Sum(), s.hist.Mean(),
		s.hist.Quantile(0.50), s.hist.Quantile(0.95), s.hist.Max())
}
