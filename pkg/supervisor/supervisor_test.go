package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/stepctl/pkg/framework"
)

type fakeSession struct {
	id       string
	done     chan struct{}
	once     sync.Once
	launcher *fakeLauncher
	closed   bool
	waited   bool
}

func (s *fakeSession) ID() string            { return s.id }
func (s *fakeSession) Done() <-chan struct{} { return s.done }

func (s *fakeSession) terminate() {
	s.once.Do(func() { close(s.done) })
}

func (s *fakeSession) Close() error {
	s.launcher.lock.Lock()
	s.closed = true
	s.launcher.lock.Unlock()
	s.terminate()
	return nil
}

func (s *fakeSession) Wait() error {
	<-s.done
	s.launcher.lock.Lock()
	defer s.launcher.lock.Unlock()
	if !s.waited {
		s.waited = true
		s.launcher.live--
	}
	return nil
}

type fakeLauncher struct {
	lock       sync.Mutex
	live       int
	maxLive    int
	violations int
	failNext   int
	attempts   int
	sessions   []*fakeSession
}

var errLaunch = errors.New("port busy")

func (l *fakeLauncher) Launch(ctx context.Context) (Handle, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.attempts++
	if l.live != 0 {
		l.violations++
	}
	if l.failNext != 0 {
		if l.failNext > 0 {
			l.failNext--
		}
		return nil, errLaunch
	}
	s := &fakeSession{
		id:       fmt.Sprintf("s%d", len(l.sessions)),
		done:     make(chan struct{}),
		launcher: l,
	}
	l.sessions = append(l.sessions, s)
	l.live++
	if l.live > l.maxLive {
		l.maxLive = l.live
	}
	return s, nil
}

func (l *fakeLauncher) count() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return len(l.sessions)
}

func (l *fakeLauncher) launchAttempts() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.attempts
}

func (l *fakeLauncher) session(n int) *fakeSession {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.sessions[n]
}

func startLoop(t *testing.T, s *Supervisor, interval time.Duration, ctls ...fx.Controller) (context.CancelFunc, chan error) {
	loop := fx.NewLoop().WithInterval(interval)
	loop.Add(s)
	for _, ctl := range ctls {
		loop.AddController(fx.PrLvReport, ctl)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()
	return cancel, errCh
}

func TestEventDrivenRestartsImmediately(t *testing.T) {
	l := &fakeLauncher{}
	s := New(l, EventDriven)
	cancel, _ := startLoop(t, s, time.Hour)
	defer cancel()

	require.Eventually(t, func() bool { return l.count() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 1, s.Live())
	require.Equal(t, "s0", s.Current())

	l.session(0).terminate()
	require.Eventually(t, func() bool { return l.count() == 2 }, time.Second, time.Millisecond)
	require.Equal(t, "s1", s.Current())
	require.Equal(t, 2, s.Launches())
}

func TestPollingRestartsWithinInterval(t *testing.T) {
	interval := 100 * time.Millisecond
	l := &fakeLauncher{}
	s := New(l, Polling)
	cancel, _ := startLoop(t, s, interval)
	defer cancel()

	require.Eventually(t, func() bool { return l.count() == 1 }, time.Second, time.Millisecond)
	for i := 1; i <= 3; i++ {
		// terminate at different phases of the tick
		time.Sleep(time.Duration(i) * interval / 4)
		start := time.Now()
		l.session(i - 1).terminate()
		require.Eventually(t, func() bool { return l.count() == i+1 }, time.Second, time.Millisecond)
		require.Less(t, int64(time.Since(start)), int64(interval+interval/2))
	}
}

func TestNeverMoreThanOneLiveSession(t *testing.T) {
	for _, d := range []Discipline{EventDriven, Polling} {
		t.Run(d.String(), func(t *testing.T) {
			l := &fakeLauncher{}
			s := New(l, d)
			cancel, _ := startLoop(t, s, 5*time.Millisecond)
			defer cancel()
			for i := 0; i < 20; i++ {
				require.Eventually(t, func() bool { return l.count() == i+1 },
					time.Second, time.Millisecond)
				l.session(i).terminate()
			}
			require.Eventually(t, func() bool { return l.count() == 21 }, time.Second, time.Millisecond)
			l.lock.Lock()
			defer l.lock.Unlock()
			require.Zero(t, l.violations)
			require.Equal(t, 1, l.maxLive)
			for _, sess := range l.sessions[:20] {
				require.True(t, sess.waited)
			}
		})
	}
}

func TestLaunchFailureRetried(t *testing.T) {
	l := &fakeLauncher{failNext: 2}
	s := New(l, Polling)
	cancel, _ := startLoop(t, s, 10*time.Millisecond)
	defer cancel()

	require.Eventually(t, func() bool { return l.count() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, 2, s.Failures())
	require.Equal(t, 1, s.Launches())
	require.Equal(t, 1, s.Live())
}

func TestLaunchFailureRetriedOncePerTick(t *testing.T) {
	interval := 50 * time.Millisecond
	for _, d := range []Discipline{EventDriven, Polling} {
		t.Run(d.String(), func(t *testing.T) {
			l := &fakeLauncher{failNext: -1}
			s := New(l, d)
			cancel, errCh := startLoop(t, s, interval)
			time.Sleep(10*interval + interval/2)
			cancel()
			<-errCh
			attempts := l.launchAttempts()
			// first attempt is immediate, then one per tick
			require.True(t, attempts >= 5 && attempts <= 13, "%d launch attempts", attempts)
			require.Equal(t, attempts, s.Failures())
			require.Zero(t, s.Launches())
			require.Zero(t, s.Live())
		})
	}
}

func TestShutdownReclaimsSession(t *testing.T) {
	l := &fakeLauncher{}
	s := New(l, EventDriven)
	cancel, errCh := startLoop(t, s, time.Hour)

	require.Eventually(t, func() bool { return l.count() == 1 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("loop not stopped")
	}
	require.Zero(t, s.Live())
	l.lock.Lock()
	defer l.lock.Unlock()
	require.Equal(t, 1, len(l.sessions))
	require.True(t, l.sessions[0].closed)
	require.True(t, l.sessions[0].waited)
	require.Zero(t, l.live)
}

func TestSessionMessages(t *testing.T) {
	var lock sync.Mutex
	var seen []string
	collector := fx.ControlFunc(func(cc fx.ControlContext) error {
		cc.Messages().Each(func(msg fx.Message) bool {
			lock.Lock()
			defer lock.Unlock()
			switch m := msg.(type) {
			case *SessionStarted:
				seen = append(seen, "started "+m.ID)
			case *SessionEnded:
				seen = append(seen, "ended "+m.ID)
			case *LaunchFailed:
				seen = append(seen, "failed")
			}
			return false
		})
		return nil
	})
	l := &fakeLauncher{failNext: 1}
	s := New(l, EventDriven)
	cancel, _ := startLoop(t, s, 10*time.Millisecond, collector)
	defer cancel()

	require.Eventually(t, func() bool { return l.count() == 1 }, time.Second, time.Millisecond)
	l.session(0).terminate()
	expected := []string{"failed", "started s0", "ended s0", "started s1"}
	require.Eventually(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return len(seen) >= len(expected)
	}, time.Second, time.Millisecond)
	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, expected, seen[:len(expected)])
}

func TestParseDiscipline(t *testing.T) {
	cases := []struct {
		in  string
		out Discipline
		err bool
	}{
		{"", EventDriven, false},
		{"event", EventDriven, false},
		{"poll", Polling, false},
		{"busy", EventDriven, true},
	}
	for _, c := range cases {
		d, err := ParseDiscipline(c.in)
		if c.err {
			require.Error(t, err, c.in)
			continue
		}
		require.NoError(t, err, c.in)
		require.Equal(t, c.out, d, c.in)
	}
}
