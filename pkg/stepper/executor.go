// Package stepper executes motion requests on the STEP line.
package stepper

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/robotalks/stepctl/pkg/board"
)

// Defaults of a motion request.
const (
	DefaultMoves      = 800
	DefaultHalfPeriod = 5 * time.Millisecond
)

// MotionReport summarizes one motion request.
type MotionReport struct {
	Requester string
	Requested int
	Completed int
	Elapsed   time.Duration
	Aborted   bool
}

type requesterKey struct{}

// WithRequester tags motion requests issued with ctx, e.g. by session ID.
func WithRequester(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requesterKey{}, id)
}

// RequesterFrom gets the tag set by WithRequester.
func RequesterFrom(ctx context.Context) string {
	id, _ := ctx.Value(requesterKey{}).(string)
	return id
}

// Executor turns a step count into pulses on the STEP line.
//
// Each cycle clears STEP, holds HalfPeriod, sets STEP and holds HalfPeriod
// again. The holds are minimums: the Sleeper may over-sleep under load, so
// the pulse train is only soft real-time. DIR and ENABLE are never touched.
// Move is synchronous; callers must not run two moves on the same lines
// concurrently.
type Executor struct {
	Lines      board.Lines
	Sleeper    Sleeper
	HalfPeriod time.Duration
	// Report is called once per request when set.
	Report func(MotionReport)
}

// NewExecutor creates an Executor with the default timing.
func NewExecutor(lines board.Lines) *Executor {
	return &Executor{
		Lines:      lines,
		Sleeper:    TimerSleeper{},
		HalfPeriod: DefaultHalfPeriod,
	}
}

// Move runs moves full pulse cycles and writes progress to out.
// It returns the number of completed cycles. The context is checked once
// per cycle; on cancellation the run stops, STEP is left low and the
// context error is returned.
func (e *Executor) Move(ctx context.Context, moves int, out io.Writer) (completed int, err error) {
	start := time.Now()
	sleeper := e.Sleeper
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	defer func() {
		e.Lines.Clear(board.Step)
		if e.Report != nil {
			e.Report(MotionReport{
				Requester: RequesterFrom(ctx),
				Requested: moves,
				Completed: completed,
				Elapsed:   time.Since(start),
				Aborted:   err != nil,
			})
		}
	}()

	fmt.Fprintf(out, "Stepper: %d moves...\r\n", moves)
	for i := 0; i < moves; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		e.Lines.Clear(board.Step)
		if err = sleeper.Sleep(ctx, e.HalfPeriod); err != nil {
			break
		}
		e.Lines.Set(board.Step)
		if err = sleeper.Sleep(ctx, e.HalfPeriod); err != nil {
			break
		}
		completed++
		fmt.Fprintf(out, "Step: %d\r\n", i)
	}
	if err != nil {
		fmt.Fprint(out, "Aborted.\r\n")
		return
	}
	fmt.Fprint(out, "Done.\r\n")
	return
}
