//go:build linux

package proc

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"
)

// Status carries the fields we use from the key:value status record. A
// missing key leaves its field at the zero value; State defaults to '-' so
// a degraded task still renders a placeholder.
type Status struct {
	Name        string
	State       byte
	PPid        int
	VmSizeKB    uint64
	VmRSSKB     uint64
	CpusAllowed string // raw comma-grouped hex, decoded by pkg/system/cpumask
}

// ReadStatus reads <task>/status. An open failure usually means the task
// exited between enumeration and read; callers treat it as a soft failure
// and keep any cached values.
func ReadStatus(root string, id TaskID) (Status, error) {
	f, err := os.Open(taskDir(root, id) + "/status")
	if err != nil {
		return Status{}, err
	}
	defer f.Close()
	return parseStatus(f), nil
}

func parseStatus(r io.Reader) Status {
	st := Status{State: '-'}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch key {
		case "Name":
			st.Name = val
		case "State":
			// e.g. "S (sleeping)"
			if len(val) > 0 {
				st.State = val[0]
			}
		case "PPid":
			st.PPid, _ = strconv.Atoi(val)
		case "VmSize":
			st.VmSizeKB, _ = strconv.ParseUint(firstField(val), 10, 64)
		case "VmRSS":
			st.VmRSSKB, _ = strconv.ParseUint(firstField(val), 10, 64)
		case "Cpus_allowed":
			st.CpusAllowed = val
		}
	}
	return st
}

func firstField(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

// Stat carries the positional statistics record. Field positions follow the
// kernel's documented layout: pid, comm, state, ppid, pgrp, session, tty_nr,
// tpgid, flags, minflt, cminflt, majflt, cmajflt, utime, stime, cutime,
// cstime, priority, nice, num_threads, itrealvalue, starttime, vsize, rss,
// rsslim, memory-layout addresses, signal masks, wchan, nswap, cnswap,
// exit_signal, processor, rt_priority, policy, blkio_ticks, guest times,
// more addresses, exit_code. The ordering and count must not be changed;
// they are the kernel interface.
type Stat struct {
	Comm       string
	State      byte
	PPid       int
	Priority   int64
	Nice       int64
	NumThreads int64
	StartTime  uint64
	VSize      uint64
	RSSPages   int64
	Processor  int
	RTPrio     int
	Policy     int
}

// ReadStat reads and parses <task>/stat.
func ReadStat(root string, id TaskID) (Stat, error) {
	b, err := os.ReadFile(taskDir(root, id) + "/stat")
	if err != nil {
		return Stat{}, err
	}
	return ParseStat(strings.TrimSpace(string(b)))
}

// ParseStat splits one stat line. The comm field is parenthesized and may
// contain spaces or parentheses itself, so everything up to the last ") "
// is pid + comm; the remaining fields are purely positional.
func ParseStat(line string) (Stat, error) {
	if line == "" {
		return Stat{}, ErrNoStat
	}
	end := strings.LastIndex(line, ") ")
	open := strings.IndexByte(line, '(')
	if end < 0 || open < 0 || open > end {
		return Stat{}, ErrNoStat
	}
	fields := strings.Fields(line[end+2:])
	// state through policy: overall fields 3..41, i.e. 39 after comm
	if len(fields) < 39 {
		return Stat{}, ErrShortStat
	}

	geti := func(idx int) int { v, _ := strconv.Atoi(fields[idx]); return v }
	get64 := func(idx int) int64 { v, _ := strconv.ParseInt(fields[idx], 10, 64); return v }
	getu := func(idx int) uint64 { v, _ := strconv.ParseUint(fields[idx], 10, 64); return v }

	st := Stat{
		Comm:       line[open+1 : end],
		State:      '-',
		PPid:       geti(1),
		Priority:   get64(15),
		Nice:       get64(16),
		NumThreads: get64(17),
		StartTime:  getu(19),
		VSize:      getu(20),
		RSSPages:   get64(21),
		Processor:  geti(36),
		RTPrio:     geti(37),
		Policy:     geti(38),
	}
	if len(fields[0]) > 0 {
		st.State = fields[0][0]
	}
	return st, nil
}

// ReadCmdline reads <task>/cmdline and converts the NUL-separated argument
// blob to space-separated text. Kernel threads have an empty cmdline; the
// caller substitutes the status Name in that case.
func ReadCmdline(root string, id TaskID) string {
	b, err := os.ReadFile(taskDir(root, id) + "/cmdline")
	if err != nil {
		return ""
	}
	b = bytes.ReplaceAll(b, []byte{0}, []byte{' '})
	return strings.TrimSpace(string(b))
}

// ReadCgroup returns the raw text of <task>/cgroup for classification by
// pkg/system/cgroup. Missing record yields "".
func ReadCgroup(root string, id TaskID) string {
	b, err := os.ReadFile(taskDir(root, id) + "/cgroup")
	if err != nil {
		return ""
	}
	return string(b)
}
