// Package board provides the digital output lines driving the stepper.
package board

import "fmt"

// Line names a digital output line.
type Line int

// Lines of the stepper driver.
const (
	Step Line = iota
	Dir
	Enable

	NumLines = 3
)

var lineNames = [NumLines]string{"STEP", "DIR", "ENABLE"}

// String implements fmt.Stringer.
func (l Line) String() string {
	if l >= 0 && int(l) < NumLines {
		return lineNames[l]
	}
	return fmt.Sprintf("LINE(%d)", int(l))
}

// Lines is the write-only actuation capability over the driver lines.
// Implementations are not required to be safe for concurrent writers:
// only the goroutine running the current command writes lines.
type Lines interface {
	// Set asserts the line.
	Set(Line)
	// Clear deasserts the line.
	Clear(Line)
}

// Reset puts the lines into the power-on state:
// STEP low, DIR high, ENABLE low.
func Reset(lines Lines) {
	lines.Clear(Step)
	lines.Set(Dir)
	lines.Clear(Enable)
}
