package board

import (
	"sync"
	"time"
)

// Transition is one recorded write.
type Transition struct {
	Line  Line
	Value bool
	At    time.Time
}

// Recorder is an in-memory board. It keeps the current state of each
// line and, optionally, the history of writes.
type Recorder struct {
	// Keep limits the number of kept transitions, 0 keeps nothing,
	// negative keeps everything.
	Keep int

	lock    sync.Mutex
	state   [NumLines]bool
	writes  [NumLines]int
	history []Transition
}

// NewRecorder creates a Recorder keeping the full history.
func NewRecorder() *Recorder {
	return &Recorder{Keep: -1}
}

// Set implements Lines.
func (r *Recorder) Set(l Line) { r.write(l, true) }

// Clear implements Lines.
func (r *Recorder) Clear(l Line) { r.write(l, false) }

func (r *Recorder) write(l Line, v bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.state[l] = v
	r.writes[l]++
	if r.Keep == 0 {
		return
	}
	r.history = append(r.history, Transition{Line: l, Value: v, At: time.Now()})
	if r.Keep > 0 && len(r.history) > r.Keep {
		r.history = append(r.history[:0], r.history[len(r.history)-r.Keep:]...)
	}
}

// State reads back the last written value.
func (r *Recorder) State(l Line) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.state[l]
}

// Writes counts writes to the line.
func (r *Recorder) Writes(l Line) int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.writes[l]
}

// History returns a copy of recorded transitions, optionally
// filtered by lines.
func (r *Recorder) History(lines ...Line) []Transition {
	r.lock.Lock()
	defer r.lock.Unlock()
	var res []Transition
	for _, t := range r.history {
		if len(lines) == 0 || containsLine(lines, t.Line) {
			res = append(res, t)
		}
	}
	return res
}

// Pulses counts rising edges on a line in the history.
func (r *Recorder) Pulses(l Line) int {
	var n int
	prev := false
	for _, t := range r.History(l) {
		if t.Value && !prev {
			n++
		}
		prev = t.Value
	}
	return n
}

// ResetHistory drops recorded transitions and write counters.
func (r *Recorder) ResetHistory() {
	r.lock.Lock()
	r.history = nil
	r.writes = [NumLines]int{}
	r.lock.Unlock()
}

func containsLine(lines []Line, l Line) bool {
	for _, x := range lines {
		if x == l {
			return true
		}
	}
	return false
}
