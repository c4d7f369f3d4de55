package stepper

import "github.com/robotalks/stepctl/pkg/board"

// Axis holds the persistent direction and enable state of the driver.
// Nothing here is reset by a motion request.
type Axis struct {
	Lines board.Lines
}

// Enable asserts ENABLE.
func (a *Axis) Enable() { a.Lines.Set(board.Enable) }

// Disable deasserts ENABLE.
func (a *Axis) Disable() { a.Lines.Clear(board.Enable) }

// Left deasserts DIR.
func (a *Axis) Left() { a.Lines.Clear(board.Dir) }

// Right asserts DIR.
func (a *Axis) Right() { a.Lines.Set(board.Dir) }
