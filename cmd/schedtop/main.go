//go:build linux

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/ja7ad/schedtop/pkg/config"
	"github.com/ja7ad/schedtop/pkg/logger"
	"github.com/ja7ad/schedtop/pkg/schedtop"
)

const minDelay = 0.01

type opts struct {
	delay      float64
	repeat     int
	period     int
	tids       bool
	fromCgroup bool
	debug      bool
	configPath string
}

func main() {
	// bare invocation is a request for usage, not an error
	if len(os.Args) == 1 {
		root := newRootCmd(&opts{})
		_ = root.Help()
		return
	}

	o := &opts{}
	root := newRootCmd(o)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(o *opts) *cobra.Command {
	root := &cobra.Command{
		Use:   "schedtop",
		Short: "Periodic task-scheduling snapshot sampler",
		Long: `schedtop repeatedly samples every process (and optionally thread) on this
host, tracks scheduling attributes (CPU affinity, policy, priority, cgroup
workload, resident memory), and prints a row for each task that is new since
the previous sample or due for its periodic refresh.

Must be run as root.

Examples:
  schedtop --delay=1 --repeat=10
  schedtop --period=60 --tids
  schedtop --delay=0.5 --repeat=20 --from-cgroup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, o)
		},
	}

	root.Flags().Float64Var(&o.delay, "delay", 1.0, "inter-sample delay in seconds (min 0.01)")
	root.Flags().IntVar(&o.repeat, "repeat", 1, "number of samples to take; mutually exclusive with --period")
	root.Flags().IntVar(&o.period, "period", 0, "total run duration in seconds; repeat is derived as period/delay")
	root.Flags().BoolVar(&o.tids, "tids", false, "sample threads, not just processes")
	root.Flags().BoolVar(&o.fromCgroup, "from-cgroup", false, "discover tasks from the pids cgroup hierarchy")
	root.Flags().BoolVar(&o.debug, "debug", false, "log recoverable per-task read errors")
	root.Flags().StringVar(&o.configPath, "config", "", "YAML defaults file (default "+config.DefaultPath+")")
	return root
}

func run(cmd *cobra.Command, o *opts) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	applyDefaults(cmd, o, cfg)

	if cmd.Flags().Changed("repeat") && cmd.Flags().Changed("period") {
		return fmt.Errorf("--repeat and --period are mutually exclusive")
	}
	if o.delay < minDelay {
		return fmt.Errorf("--delay must be at least %g seconds", minDelay)
	}
	if unix.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "schedtop: must be run as root")
		os.Exit(1)
	}

	level := log.InfoLevel
	if o.debug {
		level = log.DebugLevel
	}
	lg := logger.New(level, os.Stderr)

	s, err := schedtop.New(schedtop.Options{
		Delay:      time.Duration(o.delay * float64(time.Second)),
		Repeat:     o.repeat,
		Period:     time.Duration(o.period) * time.Second,
		Threads:    o.tids,
		FromCgroup: o.fromCgroup,
		Log:        lg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "schedtop: %v\n", err)
		os.Exit(1)
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		printBanner(s.OnlineCPUs())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "schedtop: %v\n", err)
		os.Exit(1)
	}
	return nil
}

// applyDefaults fills in file-configured values for flags the user left
// unset; explicit flags always win.
func applyDefaults(cmd *cobra.Command, o *opts, cfg config.File) {
	f := cmd.Flags()
	if !f.Changed("delay") {
		o.delay = cfg.Delay
	}
	if !f.Changed("repeat") && cfg.Repeat > 0 {
		o.repeat = cfg.Repeat
	}
	if !f.Changed("period") {
		o.period = cfg.Period
	}
	if !f.Changed("tids") {
		o.tids = cfg.Tids
	}
	if !f.Changed("from-cgroup") {
		o.fromCgroup = cfg.FromCgroup
	}
	if !f.Changed("debug") {
		o.debug = cfg.Debug
	}
}

func printBanner(ncpu int) {
	host, _ := os.Hostname()
	var uts unix.Utsname
	kernel := "unknown"
	if err := unix.Uname(&uts); err == nil {
		kernel = unix.ByteSliceToString(uts.Release[:])
	}
	fmt.Printf("schedtop %s on %s (kernel %s, %d cpus online)\n\n",
		schedtop.Version, host, kernel, ncpu)
}
