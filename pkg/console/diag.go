package console

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/robotalks/stepctl/pkg/stepper"
)

// Diagnostics exposes the host runtime through console commands.
type Diagnostics struct {
	Started time.Time
	Version string
	Board   string
	// Units lists the named units of execution the device runs.
	Units func() []string

	// Sleeper, Period and Samples drive the sleep self test.
	Sleeper stepper.Sleeper
	Period  time.Duration
	Samples int
}

// SleepStats is the result of the sleep self test.
type SleepStats struct {
	Samples int
	Min     time.Duration
	Max     time.Duration
	Mean    time.Duration
}

// MeasureSleep requests n sleeps of period and measures the overshoot.
func MeasureSleep(ctx context.Context, s stepper.Sleeper, period time.Duration, n int) (SleepStats, error) {
	var stats SleepStats
	var total time.Duration
	for i := 0; i < n; i++ {
		start := time.Now()
		if err := s.Sleep(ctx, period); err != nil {
			return stats, err
		}
		over := time.Since(start) - period
		if stats.Samples == 0 || over < stats.Min {
			stats.Min = over
		}
		if over > stats.Max {
			stats.Max = over
		}
		total += over
		stats.Samples++
	}
	if stats.Samples > 0 {
		stats.Mean = total / time.Duration(stats.Samples)
	}
	return stats, nil
}

// Commands builds the diagnostic commands.
func (d *Diagnostics) Commands() []Command {
	return []Command{
		{Name: "mem", Help: "heap statistics", Run: d.mem},
		{Name: "threads", Help: "running units", Run: d.threads},
		{Name: "test", Help: "sleep timing self test", Run: d.test},
		{Name: "info", Help: "system information", Run: d.info},
		{Name: "systime", Help: "uptime in milliseconds", Run: d.systime},
		{Name: "echo", Usage: "text", Help: "print text", MaxArgs: -1, Run: echo},
	}
}

func (d *Diagnostics) mem(_ context.Context, out io.Writer, _ []string) error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	fmt.Fprintf(out, "heap in use      : %d bytes\r\n", ms.HeapInuse)
	fmt.Fprintf(out, "heap objects     : %d\r\n", ms.HeapObjects)
	fmt.Fprintf(out, "heap idle        : %d bytes\r\n", ms.HeapIdle)
	fmt.Fprintf(out, "total from system: %d bytes\r\n", ms.Sys)
	fmt.Fprintf(out, "gc cycles        : %d\r\n", ms.NumGC)
	return nil
}

func (d *Diagnostics) threads(_ context.Context, out io.Writer, _ []string) error {
	fmt.Fprintf(out, "goroutines: %d\r\n", runtime.NumGoroutine())
	if d.Units != nil {
		for _, name := range d.Units() {
			fmt.Fprintf(out, "  %s\r\n", name)
		}
	}
	return nil
}

func (d *Diagnostics) test(ctx context.Context, out io.Writer, _ []string) error {
	sleeper, period, samples := d.Sleeper, d.Period, d.Samples
	if sleeper == nil {
		sleeper = stepper.TimerSleeper{}
	}
	if period <= 0 {
		period = stepper.DefaultHalfPeriod
	}
	if samples <= 0 {
		samples = 100
	}
	fmt.Fprintf(out, "Sleep test: %d x %v\r\n", samples, period)
	stats, err := MeasureSleep(ctx, sleeper, period, samples)
	if err != nil {
		fmt.Fprint(out, "Aborted.\r\n")
		return err
	}
	fmt.Fprintf(out, "overshoot min %v max %v mean %v\r\n", stats.Min, stats.Max, stats.Mean)
	fmt.Fprint(out, "Final result: OK\r\n")
	return nil
}

func (d *Diagnostics) info(_ context.Context, out io.Writer, _ []string) error {
	version := d.Version
	if version == "" {
		version = "dev"
	}
	fmt.Fprintf(out, "Version:      %s\r\n", version)
	fmt.Fprintf(out, "Runtime:      %s\r\n", runtime.Version())
	fmt.Fprintf(out, "Architecture: %s/%s\r\n", runtime.GOOS, runtime.GOARCH)
	if d.Board != "" {
		fmt.Fprintf(out, "Board:        %s\r\n", d.Board)
	}
	return nil
}

func (d *Diagnostics) systime(_ context.Context, out io.Writer, _ []string) error {
	fmt.Fprintf(out, "%d\r\n", time.Since(d.Started)/time.Millisecond)
	return nil
}

func echo(_ context.Context, out io.Writer, args []string) error {
	fmt.Fprintf(out, "%s\r\n", strings.Join(args, " "))
	return nil
}
