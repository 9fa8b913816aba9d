//go:build linux

package proc

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultRoot is the kernel process filesystem mount point. Every reader
// takes the root explicitly so the sampler owns it and tests can point at a
// fixture tree.
const DefaultRoot = "/proc"

// TaskID names one schedulable unit: a process, or a thread within one when
// thread-level tracking is enabled. For process-level tracking TID == PID.
type TaskID struct {
	PID int
	TID int
}

func taskDir(root string, id TaskID) string {
	if id.TID != id.PID {
		return fmt.Sprintf("%s/%d/task/%d", root, id.PID, id.TID)
	}
	return fmt.Sprintf("%s/%d", root, id.PID)
}

// ListPIDs returns every numeric subdirectory of the proc root. Failure to
// read the root listing is fatal to the caller; there is nothing sensible to
// sample without it.
func ListPIDs(root string) ([]int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	pids := make([]int, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// ListTasks enumerates the current task set. With threads=false each pid
// yields a single TaskID with TID == PID. With threads=true every entry of
// <root>/<pid>/task is listed as well; a process that exits between the pid
// listing and its thread listing is skipped, not an error.
func ListTasks(root string, threads bool) ([]TaskID, error) {
	pids, err := ListPIDs(root)
	if err != nil {
		return nil, err
	}
	return tasksFor(root, pids, threads), nil
}

// ListTasksOf is ListTasks restricted to a known pid set, used for
// cgroup-scoped discovery.
func ListTasksOf(root string, pids []int, threads bool) []TaskID {
	return tasksFor(root, pids, threads)
}

func tasksFor(root string, pids []int, threads bool) []TaskID {
	tasks := make([]TaskID, 0, len(pids))
	for _, pid := range pids {
		if !threads {
			tasks = append(tasks, TaskID{PID: pid, TID: pid})
			continue
		}
		entries, err := os.ReadDir(fmt.Sprintf("%s/%d/task", root, pid))
		if err != nil {
			// pid exited mid-enumeration
			continue
		}
		for _, e := range entries {
			tid, err := strconv.Atoi(e.Name())
			if err != nil {
				continue
			}
			tasks = append(tasks, TaskID{PID: pid, TID: tid})
		}
	}
	return tasks
}

// CPUCount counts the "processor" stanza lines of <root>/cpuinfo. It is read
// once at sampler start; CPU hot-plug after that is not re-detected.
func CPUCount(root string) (int, error) {
	f, err := os.Open(root + "/cpuinfo")
	if err != nil {
		return 0, fmt.Errorf("read cpuinfo: %w", err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.SplitN(sc.Text(), ":", 2)
		if len(fields) == 2 && strings.TrimSpace(fields[0]) == "processor" {
			n++
		}
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("scan cpuinfo: %w", err)
	}
	if n == 0 {
		return 0, ErrNoCPUs
	}
	return n, nil
}

// Uptime returns the host uptime in seconds, the first token of
// <root>/uptime.
func Uptime(root string) (float64, error) {
	b, err := os.ReadFile(root + "/uptime")
	if err != nil {
		return 0, fmt.Errorf("read uptime: %w", err)
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return 0, ErrNoUptime
	}
	sec, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse uptime: %w", err)
	}
	return sec, nil
}
