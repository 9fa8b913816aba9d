// Package cgroup derives short workload labels from control-group paths and
// indexes the cgroup-v1 pids hierarchy for cgroup-scoped task discovery.
package cgroup

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// DefaultRoot is where the v1 pids controller is normally mounted.
const DefaultRoot = "/sys/fs/cgroup/pids"

// Unknown is the label for tasks whose cgroup path matches no pattern.
const Unknown = "-"

var (
	// kubepods/<qos-class>/<pod-uid>/<container-id>; QoS Guaranteed pods sit
	// directly under kubepods, so the class segment is optional.
	rePod = regexp.MustCompile(`kubepods/(?:[^/]+/)?(pod[0-9a-fA-F-]+)(?:/|$)`)

	// trailing systemd unit: <name>.service, <name>.scope or <name>.slice
	reUnit = regexp.MustCompile(`([^/]+)\.(?:service|scope|slice)$`)
)

func recognized(ctrl string) bool {
	if ctrl == "pids" {
		return true
	}
	return strings.Contains(ctrl, "cpu,cpuacct") || strings.Contains(ctrl, "cpuacct,cpu")
}

// Workload maps the raw text of a /proc/<pid>/cgroup record to a short
// workload label. Lines have the form hierarchy-id:controllers:path; only
// the first line with a recognized controller is consulted.
func Workload(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		if !recognized(parts[1]) {
			continue
		}
		return ClassifyPath(parts[2])
	}
	return Unknown
}

// ClassifyPath applies the ordered heuristics to a single cgroup path:
// Kubernetes pod directory first, then systemd unit name, else Unknown.
// Pod matching collapses container-level granularity to the pod level;
// that loss is intentional.
func ClassifyPath(path string) string {
	if m := rePod.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	if m := reUnit.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	return Unknown
}

// ProcsIndex walks the pids controller hierarchy once and returns every
// cgroup.procs path found. The walk happens at sampler start only; cgroups
// created later are not discovered.
func ProcsIndex(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// a cgroup removed mid-walk is not an error
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() && d.Name() == "cgroup.procs" {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// ReadProcs returns the pids listed in one cgroup.procs file. An unreadable
// or vanished file yields an empty set.
func ReadProcs(path string) []int {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var pids []int
	for _, f := range strings.Fields(string(b)) {
		if pid, err := strconv.Atoi(f); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}
