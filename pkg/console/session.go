package console

import (
	"context"
	"fmt"
	"sync"

	"github.com/abiosoft/ishell/v2"
	"github.com/abiosoft/readline"
	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/robotalks/stepctl/pkg/stepper"
)

// DefaultPrompt is the prompt of console sessions.
const DefaultPrompt = "ch> "

// ShellLauncher starts ishell sessions on a Port.
type ShellLauncher struct {
	Port   *Port
	Table  *Table
	Prompt string
	Banner string
	// LocalTerminal lets readline manage the host terminal
	// (raw mode, width) instead of treating the port as a dumb line.
	LocalTerminal bool
}

// Session is one run of the command shell bound to the port.
type Session struct {
	id     string
	shell  *ishell.Shell
	term   *Terminal
	cancel context.CancelFunc

	done chan struct{}
	err  error
	once sync.Once
}

// Launch attaches a terminal and runs a new shell on its own goroutine.
// It fails with ErrBusy if another session still holds the port.
func (l *ShellLauncher) Launch(ctx context.Context) (*Session, error) {
	term, err := l.Port.Attach()
	if err != nil {
		return nil, err
	}
	prompt := l.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	conf := &readline.Config{
		Prompt:       prompt,
		Stdin:        term,
		Stdout:       term,
		Stderr:       term,
		HistoryLimit: 32,
	}
	if !l.LocalTerminal {
		conf.FuncIsTerminal = func() bool { return true }
		conf.FuncMakeRaw = func() error { return nil }
		conf.FuncExitRaw = func() error { return nil }
		conf.FuncGetWidth = func() int { return 80 }
		conf.FuncOnWidthChanged = func(func()) {}
	}
	rl, err := readline.NewEx(conf)
	if err != nil {
		term.Close()
		return nil, fmt.Errorf("readline: %v", err)
	}

	s := &Session{
		id:   uuid.New().String(),
		term: term,
		done: make(chan struct{}),
	}
	var sctx context.Context
	sctx, s.cancel = context.WithCancel(stepper.WithRequester(ctx, s.id))
	s.shell = ishell.NewWithReadline(rl)
	l.setup(sctx, s.shell)

	if l.Banner != "" {
		fmt.Fprintf(term, "\r\n%s\r\n", l.Banner)
	}
	go s.run()
	return s, nil
}

func (l *ShellLauncher) setup(ctx context.Context, shell *ishell.Shell) {
	for _, name := range l.Table.Names() {
		cmd := l.Table.Lookup(name)
		help := cmd.Help
		if cmd.Usage != "" {
			help = cmd.Synopsis() + ": " + help
		}
		shell.AddCmd(&ishell.Cmd{
			Name: cmd.Name,
			Help: help,
			Func: func(c *ishell.Context) {
				l.exec(ctx, c, cmd.Name, c.Args)
			},
		})
	}
	shell.NotFound(func(c *ishell.Context) {
		if len(c.RawArgs) > 0 {
			l.exec(ctx, c, c.RawArgs[0], c.RawArgs[1:])
		}
	})
	shell.Interrupt(func(c *ishell.Context, count int, line string) {
		c.Print("^C\r\n")
	})
	shell.EOF(func(c *ishell.Context) {
		c.Stop()
	})
}

func (l *ShellLauncher) exec(ctx context.Context, c *ishell.Context, name string, args []string) {
	err := l.Table.Exec(ctx, contextWriter{c}, name, args)
	switch err {
	case nil, ErrUsage, ErrUnknownCommand, context.Canceled:
	default:
		c.Printf("Error: %v\r\n", err)
	}
}

type contextWriter struct {
	c *ishell.Context
}

func (w contextWriter) Write(p []byte) (int, error) {
	w.c.Print(string(p))
	return len(p), nil
}

func (s *Session) run() {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			s.err = fmt.Errorf("session panic: %v", r)
			glog.Errorf("session %s: %v", s.id, s.err)
		}
	}()
	glog.V(2).Infof("session %s started", s.id)
	s.shell.Run()
	glog.V(2).Infof("session %s stopped", s.id)
}

// ID is the unique session ID.
func (s *Session) ID() string {
	return s.id
}

// Done is closed when the shell stops.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close asks the session to terminate.
func (s *Session) Close() error {
	s.cancel()
	s.shell.Stop()
	s.term.Close()
	return nil
}

// Wait waits for the shell to stop and releases the terminal.
func (s *Session) Wait() error {
	<-s.done
	s.once.Do(func() {
		s.cancel()
		s.shell.Close()
		s.term.Close()
	})
	return s.err
}
