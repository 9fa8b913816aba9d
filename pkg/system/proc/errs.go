package proc

import "errors"

var (
	// ErrNoStat indicates a stat record that was empty or missing the
	// ") " comm delimiter.
	ErrNoStat = errors.New("proc: malformed or empty stat")

	// ErrShortStat indicates a stat record with fewer positional fields
	// than the kernel layout guarantees.
	ErrShortStat = errors.New("proc: short stat")

	// ErrNoCPUs indicates that cpuinfo contained no processor lines.
	ErrNoCPUs = errors.New("proc: no processor lines in cpuinfo")

	// ErrNoUptime indicates an empty uptime record.
	ErrNoUptime = errors.New("proc: empty uptime")
)
