// Package supervisor keeps exactly one console session alive.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/stepctl/pkg/framework"
)

// Handle identifies a running session.
type Handle interface {
	ID() string
	// Done is closed once the session terminated.
	Done() <-chan struct{}
	// Wait reclaims the resources of a terminated session.
	Wait() error
	// Close asks the session to terminate.
	Close() error
}

// Launcher creates sessions.
type Launcher interface {
	Launch(context.Context) (Handle, error)
}

// LaunchFunc is the func form of Launcher.
type LaunchFunc func(context.Context) (Handle, error)

// Launch implements Launcher.
func (f LaunchFunc) Launch(ctx context.Context) (Handle, error) {
	return f(ctx)
}

// Discipline selects how termination is noticed.
type Discipline int

const (
	// EventDriven reacts to session termination immediately and
	// falls back to the loop interval.
	EventDriven Discipline = iota
	// Polling checks on every loop interval only.
	Polling
)

// String implements fmt.Stringer.
func (d Discipline) String() string {
	switch d {
	case EventDriven:
		return "event"
	case Polling:
		return "poll"
	}
	return fmt.Sprintf("Discipline(%d)", int(d))
}

// ParseDiscipline parses "event" or "poll".
func ParseDiscipline(s string) (Discipline, error) {
	switch s {
	case "event", "":
		return EventDriven, nil
	case "poll":
		return Polling, nil
	}
	return EventDriven, fmt.Errorf("unknown discipline %q", s)
}

// SessionStarted is posted to the loop when a session is created.
type SessionStarted struct {
	ID string
	At time.Time
}

// SessionEnded is posted to the loop when a session is reclaimed.
type SessionEnded struct {
	ID  string
	Err error
	At  time.Time
}

// LaunchFailed is posted to the loop when a session can't be created.
type LaunchFailed struct {
	Err error
	At  time.Time
}

// Supervisor is a loop controller with two states: no session (Absent)
// and a session not yet seen terminated (Live). Each iteration reclaims
// a terminated session before creating a replacement, so there is never
// more than one live session.
type Supervisor struct {
	Launcher   Launcher
	Discipline Discipline
	// Interval overrides the loop interval when positive.
	Interval time.Duration

	lock     sync.Mutex
	session  Handle
	stopped  bool
	launches int
	failures int
}

// New creates a Supervisor.
func New(l Launcher, d Discipline) *Supervisor {
	return &Supervisor{Launcher: l, Discipline: d}
}

// Name implements framework.Named.
func (s *Supervisor) Name() string {
	return "supervisor"
}

// AddToLoop implements LoopAdder.
func (s *Supervisor) AddToLoop(loop *fx.Loop) {
	if s.Interval > 0 {
		loop.Interval = s.Interval
	}
	loop.AddController(fx.PrLvControl, s)
}

// Control implements Controller.
func (s *Supervisor) Control(cc fx.ControlContext) error {
	ctx := cc.Context()
	if ctx.Err() != nil {
		return nil
	}
	s.lock.Lock()
	sess, stopped := s.session, s.stopped
	s.lock.Unlock()
	if stopped {
		return nil
	}

	if sess != nil {
		select {
		case <-sess.Done():
		default:
			return nil
		}
		err := sess.Wait()
		s.lock.Lock()
		s.session = nil
		s.lock.Unlock()
		if err != nil {
			glog.Warningf("session %s terminated: %v", sess.ID(), err)
		} else {
			glog.Infof("session %s terminated", sess.ID())
		}
		cc.PostMessage(&SessionEnded{ID: sess.ID(), Err: err, At: time.Now()})
	}

	sess, err := s.Launcher.Launch(ctx)
	if err != nil {
		s.lock.Lock()
		s.failures++
		s.lock.Unlock()
		glog.Warningf("launch session failed, retry in next tick: %v", err)
		cc.PostMessage(&LaunchFailed{Err: err, At: time.Now()})
		return nil
	}

	s.lock.Lock()
	if s.stopped {
		s.lock.Unlock()
		sess.Close()
		sess.Wait()
		return nil
	}
	s.session = sess
	s.launches++
	s.lock.Unlock()

	glog.Infof("session %s started", sess.ID())
	cc.PostMessage(&SessionStarted{ID: sess.ID(), At: time.Now()})
	if s.Discipline == EventDriven {
		go func(done <-chan struct{}) {
			<-done
			cc.TriggerNext()
		}(sess.Done())
	}
	return nil
}

// Run implements Runnable. It closes and reclaims the live session
// when the loop stops.
func (s *Supervisor) Run(ctx context.Context) error {
	<-ctx.Done()
	s.lock.Lock()
	sess := s.session
	s.session, s.stopped = nil, true
	s.lock.Unlock()
	if sess != nil {
		glog.Infof("closing session %s", sess.ID())
		sess.Close()
		sess.Wait()
	}
	return ctx.Err()
}

// Live returns the number of live sessions held, 0 or 1.
func (s *Supervisor) Live() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.session != nil {
		return 1
	}
	return 0
}

// Current returns the ID of the live session, empty if none.
func (s *Supervisor) Current() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.session != nil {
		return s.session.ID()
	}
	return ""
}

// Launches counts created sessions.
func (s *Supervisor) Launches() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.launches
}

// Failures counts failed launches.
func (s *Supervisor) Failures() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.failures
}
