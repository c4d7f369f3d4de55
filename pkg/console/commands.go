package console

import (
	"context"
	"fmt"
	"io"

	"github.com/robotalks/stepctl/pkg/stepper"
)

// StepperCommands builds the commands driving the axis.
func StepperCommands(axis *stepper.Axis, exec *stepper.Executor) []Command {
	say := func(out io.Writer, msg string) { fmt.Fprintf(out, "%s\r\n", msg) }
	return []Command{
		{
			Name: "enable",
			Help: "assert ENABLE",
			Run: func(_ context.Context, out io.Writer, _ []string) error {
				axis.Enable()
				say(out, "Stepper enabled")
				return nil
			},
		},
		{
			Name: "disable",
			Help: "deassert ENABLE",
			Run: func(_ context.Context, out io.Writer, _ []string) error {
				axis.Disable()
				say(out, "Stepper disabled")
				return nil
			},
		},
		{
			Name: "left",
			Help: "deassert DIR",
			Run: func(_ context.Context, out io.Writer, _ []string) error {
				axis.Left()
				say(out, "Stepper moves left")
				return nil
			},
		},
		{
			Name: "right",
			Help: "assert DIR",
			Run: func(_ context.Context, out io.Writer, _ []string) error {
				axis.Right()
				say(out, "Stepper moves right")
				return nil
			},
		},
		{
			Name:    "s",
			Usage:   "[moves]",
			Help:    fmt.Sprintf("run moves step pulses (default %d)", stepper.DefaultMoves),
			MaxArgs: 1,
			Run: func(ctx context.Context, out io.Writer, args []string) error {
				_, err := exec.Move(ctx, stepper.ParseMoves(args), out)
				return err
			},
		},
	}
}
