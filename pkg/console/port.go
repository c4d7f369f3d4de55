package console

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/stepctl/pkg/framework"
)

var (
	// ErrBusy indicates a terminal is already attached to the port.
	ErrBusy = errors.New("transport busy")
	// ErrClosed indicates the terminal has been closed.
	ErrClosed = errors.New("terminal closed")
)

// Port owns the console transport and hands it to at most one
// Terminal at a time. A single pump reads the transport for the lifetime
// of the device, so no reader is left behind when a session ends.
type Port struct {
	rw io.ReadWriter

	lock      sync.Mutex
	term      *Terminal
	eof       bool
	writeLock sync.Mutex
}

// NewPort wraps the transport.
func NewPort(rw io.ReadWriter) *Port {
	return &Port{rw: rw}
}

// Attach binds a new Terminal to the port.
func (p *Port) Attach() (*Terminal, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.term != nil {
		return nil, ErrBusy
	}
	t := &Terminal{
		port:    p,
		in:      make(chan []byte),
		closeCh: make(chan struct{}),
		eofCh:   make(chan struct{}),
	}
	if p.eof {
		close(t.eofCh)
	}
	p.term = t
	return t, nil
}

// Attached tells if a terminal is attached.
func (p *Port) Attached() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.term != nil
}

// Name implements framework.Named.
func (p *Port) Name() string {
	return "console-port"
}

// Run pumps input from the transport to the attached terminal.
// Input arriving with no terminal attached is dropped. On EOF of the
// transport, the attached and future terminals read EOF and Run
// returns nil.
func (p *Port) Run(ctx context.Context) error {
	dataCh, errCh := make(chan []byte), make(chan error, 1)
	go p.readLoop(ctx, dataCh, errCh)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			if err != io.EOF {
				return err
			}
			glog.Info("console transport reached EOF")
			p.lock.Lock()
			p.eof = true
			if p.term != nil {
				p.term.signalEOF()
			}
			p.lock.Unlock()
			return nil
		case data := <-dataCh:
			p.deliver(data)
		}
	}
}

// Runner wraps Run as a Runnable which calls onGone when the pump stops
// while ctx is still active: err is nil on EOF, otherwise the read error.
func (p *Port) Runner(onGone func(err error)) fx.Runnable {
	return fx.NamedRun(p.Name(), fx.RunFunc(func(ctx context.Context) error {
		err := p.Run(ctx)
		if ctx.Err() == nil && onGone != nil {
			onGone(err)
		}
		return err
	}))
}

func (p *Port) readLoop(ctx context.Context, dataCh chan<- []byte, errCh chan<- error) {
	buf := make([]byte, 256)
	for {
		n, err := p.rw.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			select {
			case dataCh <- data:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

func (p *Port) deliver(data []byte) {
	p.lock.Lock()
	t := p.term
	p.lock.Unlock()
	if t == nil {
		glog.V(4).Infof("console: dropped %d bytes, no terminal", len(data))
		return
	}
	select {
	case t.in <- data:
	case <-t.closeCh:
	}
}

func (p *Port) write(data []byte) (int, error) {
	p.writeLock.Lock()
	defer p.writeLock.Unlock()
	return p.rw.Write(data)
}

func (p *Port) detach(t *Terminal) {
	p.lock.Lock()
	if p.term == t {
		p.term = nil
	}
	p.lock.Unlock()
}

// Terminal is the view of the port given to one session.
type Terminal struct {
	port *Port
	in   chan []byte
	buf  []byte

	closeCh   chan struct{}
	closeOnce sync.Once
	eofCh     chan struct{}
	eofOnce   sync.Once
}

// Read implements io.Reader. It returns io.EOF once the terminal is
// closed or the transport ended.
func (t *Terminal) Read(p []byte) (int, error) {
	if len(t.buf) == 0 {
		select {
		case data := <-t.in:
			t.buf = data
		case <-t.closeCh:
			return 0, io.EOF
		case <-t.eofCh:
			return 0, io.EOF
		}
	}
	n := copy(p, t.buf)
	t.buf = t.buf[n:]
	return n, nil
}

// Write implements io.Writer.
func (t *Terminal) Write(p []byte) (int, error) {
	select {
	case <-t.closeCh:
		return 0, ErrClosed
	default:
	}
	return t.port.write(p)
}

// Close detaches the terminal from the port.
func (t *Terminal) Close() error {
	t.closeOnce.Do(func() {
		close(t.closeCh)
		t.port.detach(t)
	})
	return nil
}

func (t *Terminal) signalEOF() {
	t.eofOnce.Do(func() { close(t.eofCh) })
}
