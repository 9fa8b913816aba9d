//go:build linux

package schedtop

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ja7ad/schedtop/pkg/system/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statLine(pid int, comm string) string {
	f := make([]string, 39)
	for i := range f {
		f[i] = "0"
	}
	f[0] = "S"   // state
	f[1] = "1"   // ppid
	f[15] = "20" // priority
	f[17] = "1"  // num_threads
	f[19] = "77" // starttime
	f[20] = "4096"
	f[21] = "2" // rss pages
	f[36] = "1" // processor
	return fmt.Sprintf("%d (%s) %s", pid, comm, strings.Join(f, " "))
}

func statusBody(name, affinity string) string {
	return strings.Join([]string{
		"Name:\t" + name,
		"State:\tS (sleeping)",
		"PPid:\t1",
		"VmSize:\t1000 kB",
		"VmRSS:\t100 kB",
		"Cpus_allowed:\t" + affinity,
		"",
	}, "\n")
}

func newFixture(t *testing.T, ncpu int) string {
	t.Helper()
	root := t.TempDir()
	var cpuinfo strings.Builder
	for i := 0; i < ncpu; i++ {
		fmt.Fprintf(&cpuinfo, "processor\t: %d\nmodel name\t: test\n\n", i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "cpuinfo"), []byte(cpuinfo.String()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "uptime"), []byte("500.00 100.00\n"), 0o644))
	return root
}

func addTask(t *testing.T, root string, pid int, comm string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, fmt.Sprint(pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	defaults := map[string]string{
		"status":  statusBody(comm, "3"),
		"stat":    statLine(pid, comm) + "\n",
		"cmdline": "/usr/bin/" + comm + "\x00-f\x00",
		"cgroup":  "11:pids:/system.slice/" + comm + ".service\n",
	}
	for name, body := range files {
		defaults[name] = body
	}
	for name, body := range defaults {
		if body == "" {
			continue
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func newSampler(t *testing.T, root string, out *bytes.Buffer, opt Options) *Sampler {
	t.Helper()
	opt.ProcRoot = root
	opt.Out = out
	s, err := New(opt)
	require.NoError(t, err)
	return s
}

func TestNew_FatalStartupReads(t *testing.T) {
	_, err := New(Options{ProcRoot: t.TempDir()})
	require.Error(t, err, "missing cpuinfo is fatal")

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "cpuinfo"), []byte("processor : 0\n"), 0o644))
	_, err = New(Options{ProcRoot: root})
	require.Error(t, err, "missing uptime is fatal")
}

func TestPass_RendersNewTasksOnly(t *testing.T) {
	root := newFixture(t, 2)
	addTask(t, root, 100, "nginx", nil)
	addTask(t, root, 200, "redis", nil)

	var out bytes.Buffer
	s := newSampler(t, root, &out, Options{})

	require.NoError(t, s.pass(time.Now()))
	first := out.String()
	assert.Contains(t, first, "nginx")
	assert.Contains(t, first, "redis")
	assert.Contains(t, first, "schedtop "+Version)

	// stable enumeration: quiet pass, not even a header
	out.Reset()
	require.NoError(t, s.pass(time.Now()))
	assert.Empty(t, out.String())

	// one new arrival: only it is rendered
	addTask(t, root, 300, "postgres", nil)
	out.Reset()
	require.NoError(t, s.pass(time.Now()))
	assert.Contains(t, out.String(), "postgres")
	assert.NotContains(t, out.String(), "nginx")
}

func TestPass_EvictsVanishedTasks(t *testing.T) {
	root := newFixture(t, 2)
	addTask(t, root, 100, "nginx", nil)
	addTask(t, root, 200, "redis", nil)

	var out bytes.Buffer
	s := newSampler(t, root, &out, Options{})
	require.NoError(t, s.pass(time.Now()))
	require.Equal(t, 2, s.cache.Len())

	require.NoError(t, os.RemoveAll(filepath.Join(root, "200")))
	out.Reset()
	require.NoError(t, s.pass(time.Now()))
	assert.Empty(t, out.String())
	assert.Equal(t, 1, s.cache.Len())

	// and it never reappears in rendered output
	out.Reset()
	require.NoError(t, s.pass(time.Now()))
	assert.NotContains(t, out.String(), "redis")
}

func TestPass_ThreadEnumeration(t *testing.T) {
	root := newFixture(t, 2)
	addTask(t, root, 100, "worker", nil)
	for _, tid := range []int{100, 101} {
		dir := filepath.Join(root, "100", "task", fmt.Sprint(tid))
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "status"), []byte(statusBody("worker", "3")), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(statLine(tid, "worker")+"\n"), 0o644))
	}

	var out bytes.Buffer
	s := newSampler(t, root, &out, Options{Threads: true})
	require.NoError(t, s.pass(time.Now()))
	assert.Equal(t, 2, s.cache.Len())
	assert.Contains(t, out.String(), "101")
}

func TestReadTask_StatusGatesRefresh(t *testing.T) {
	root := newFixture(t, 2)
	var out bytes.Buffer
	s := newSampler(t, root, &out, Options{})

	_, ok := s.readTask(proc.TaskID{PID: 999, TID: 999})
	assert.False(t, ok)
}

func TestReadTask_DegradedFields(t *testing.T) {
	root := newFixture(t, 2)
	var out bytes.Buffer
	s := newSampler(t, root, &out, Options{})

	// no stat, no cmdline, no cgroup: fields fall back to placeholders
	addTask(t, root, 100, "bare", map[string]string{"stat": "", "cmdline": "", "cgroup": ""})
	tk, ok := s.readTask(proc.TaskID{PID: 100, TID: 100})
	require.True(t, ok)
	assert.Equal(t, PolicyNone, tk.Policy)
	assert.Equal(t, "-", tk.Policy.String())
	assert.Equal(t, "-", tk.Workload)
	assert.Equal(t, "bare", tk.Comm)
	assert.Equal(t, "bare", tk.Cmdline, "empty cmdline falls back to the status name")
	assert.True(t, tk.defined)

	// unparseable affinity: cached but excluded from rendering
	addTask(t, root, 200, "dying", map[string]string{"status": statusBody("dying", "zz")})
	tk, ok = s.readTask(proc.TaskID{PID: 200, TID: 200})
	require.True(t, ok)
	assert.False(t, tk.defined)
	assert.True(t, tk.Affinity.IsZero())
}

func TestReadTask_AffinityMaskedToOnline(t *testing.T) {
	root := newFixture(t, 2) // online mask is 0x3
	var out bytes.Buffer
	s := newSampler(t, root, &out, Options{})

	addTask(t, root, 100, "wide", map[string]string{"status": statusBody("wide", "ff")})
	tk, ok := s.readTask(proc.TaskID{PID: 100, TID: 100})
	require.True(t, ok)
	assert.Equal(t, "3", tk.Affinity.Hex())
}

func TestReadTask_KernelThreadMemoryFallback(t *testing.T) {
	root := newFixture(t, 2)
	var out bytes.Buffer
	s := newSampler(t, root, &out, Options{})

	status := "Name:\tkworker/0:1\nState:\tI (idle)\nPPid:\t2\nCpus_allowed:\t3\n"
	addTask(t, root, 100, "kworker/0:1", map[string]string{"status": status, "cmdline": ""})
	tk, ok := s.readTask(proc.TaskID{PID: 100, TID: 100})
	require.True(t, ok)
	// no Vm* keys in status: rss comes from the stat page count
	assert.EqualValues(t, 2*os.Getpagesize(), tk.VmRSS)
	assert.EqualValues(t, 4096, tk.VmSize)
}

func TestRun_EndToEnd(t *testing.T) {
	root := newFixture(t, 2)
	addTask(t, root, 100, "nginx", nil)

	var out bytes.Buffer
	s := newSampler(t, root, &out, Options{Delay: 2 * time.Millisecond, Repeat: 3})

	start := time.Now()
	require.NoError(t, s.Run(context.Background()))
	elapsed := time.Since(start)

	// initial snapshot consumed the only task; three quiet passes follow
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2, "quiet run prints only done and the summary:\n%s", out.String())
	assert.Equal(t, "done", lines[0])
	assert.Contains(t, lines[1], "processing: passes=3")
	assert.GreaterOrEqual(t, elapsed, 3*time.Millisecond, "one sleep per pass")
}

func TestRun_RendersMidRunArrival(t *testing.T) {
	root := newFixture(t, 2)
	addTask(t, root, 100, "nginx", nil)

	var out bytes.Buffer
	s := newSampler(t, root, &out, Options{Delay: 50 * time.Millisecond, Repeat: 3})

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	addTask(t, root, 300, "late", nil)
	require.NoError(t, <-done)

	assert.Contains(t, out.String(), "late")
	assert.NotContains(t, out.String(), "nginx", "initial snapshot is not rendered")
}

func TestRun_PeriodDerivesRepeat(t *testing.T) {
	root := newFixture(t, 2)
	var out bytes.Buffer
	s := newSampler(t, root, &out, Options{Delay: 2 * time.Millisecond, Period: 10 * time.Millisecond})
	assert.Equal(t, 5, s.repeat)
}

func TestRun_InterruptExitsCleanly(t *testing.T) {
	root := newFixture(t, 2)
	addTask(t, root, 100, "nginx", nil)

	var out bytes.Buffer
	s := newSampler(t, root, &out, Options{Delay: time.Hour, Repeat: 100})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	assert.Contains(t, out.String(), "done")
	assert.Contains(t, out.String(), "processing:")
}

func TestRun_FatalWhenProcRootDisappears(t *testing.T) {
	root := newFixture(t, 2)
	addTask(t, root, 100, "nginx", nil)

	var out bytes.Buffer
	sub := filepath.Join(root, "gone")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "cpuinfo"), []byte("processor : 0\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "uptime"), []byte("1.0 1.0\n"), 0o644))

	s := newSampler(t, sub, &out, Options{Delay: time.Millisecond, Repeat: 2})
	require.NoError(t, os.RemoveAll(sub))
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.NotContains(t, out.String(), "done")
}

func TestEnumerate_CgroupScoped(t *testing.T) {
	root := newFixture(t, 2)
	addTask(t, root, 100, "inpod", nil)
	addTask(t, root, 200, "outside", nil)

	cg := t.TempDir()
	leaf := filepath.Join(cg, "kubepods", "burstable", "podabc")
	require.NoError(t, os.MkdirAll(leaf, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(leaf, "cgroup.procs"), []byte("100\n"), 0o644))

	var out bytes.Buffer
	s := newSampler(t, root, &out, Options{FromCgroup: true, CgroupRoot: cg})

	ids, err := s.enumerate()
	require.NoError(t, err)
	assert.Equal(t, []proc.TaskID{{PID: 100, TID: 100}}, ids)

	require.NoError(t, s.pass(time.Now()))
	assert.Contains(t, out.String(), "inpod")
	assert.NotContains(t, out.String(), "outside")
}

func TestClampSleep(t *testing.T) {
	delay := 100 * time.Millisecond
	assert.Equal(t, 90*time.Millisecond, clampSleep(delay, 10*time.Millisecond))
	assert.Equal(t, minSleep, clampSleep(delay, 200*time.Millisecond))
	assert.Equal(t, delay, clampSleep(delay, 0))
}
