package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipeTransport feeds the port from a pipe and records writes.
type pipeTransport struct {
	r *io.PipeReader
	w *io.PipeWriter

	lock sync.Mutex
	out  bytes.Buffer
}

func newPipeTransport() *pipeTransport {
	r, w := io.Pipe()
	return &pipeTransport{r: r, w: w}
}

func (p *pipeTransport) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *pipeTransport) Write(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.out.Write(b)
}

func (p *pipeTransport) written() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.out.String()
}

func readWithin(t *testing.T, r io.Reader, n int) (string, error) {
	type result struct {
		s   string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		buf := make([]byte, n)
		n, err := io.ReadFull(r, buf)
		ch <- result{string(buf[:n]), err}
	}()
	select {
	case res := <-ch:
		return res.s, res.err
	case <-time.After(time.Second):
		t.Fatal("read timeout")
	}
	return "", nil
}

func TestPortSingleTerminal(t *testing.T) {
	port := NewPort(newPipeTransport())
	term, err := port.Attach()
	require.NoError(t, err)
	require.True(t, port.Attached())
	_, err = port.Attach()
	require.Equal(t, ErrBusy, err)

	require.NoError(t, term.Close())
	require.False(t, port.Attached())
	n, err := term.Read(make([]byte, 1))
	require.Zero(t, n)
	require.Equal(t, io.EOF, err)
	_, err = term.Write([]byte("x"))
	require.Equal(t, ErrClosed, err)

	term2, err := port.Attach()
	require.NoError(t, err)
	require.NotEqual(t, term, term2)
	term2.Close()
	// closing a stale terminal doesn't detach the new one.
	term3, err := port.Attach()
	require.NoError(t, err)
	term2.Close()
	require.True(t, port.Attached())
	term3.Close()
}

func TestPortPump(t *testing.T) {
	transport := newPipeTransport()
	port := NewPort(transport)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- port.Run(ctx) }()

	term, err := port.Attach()
	require.NoError(t, err)
	go transport.w.Write([]byte("hello"))
	s, err := readWithin(t, term, 5)
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	_, err = term.Write([]byte("ch> "))
	require.NoError(t, err)
	require.Equal(t, "ch> ", transport.written())

	term.Close()
	term, err = port.Attach()
	require.NoError(t, err)
	go transport.w.Write([]byte("again"))
	s, err = readWithin(t, term, 5)
	require.NoError(t, err)
	require.Equal(t, "again", s)

	transport.w.Close()
	_, err = readWithin(t, term, 1)
	require.Equal(t, io.EOF, err)
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pump not stopped on EOF")
	}

	term.Close()
	term, err = port.Attach()
	require.NoError(t, err)
	_, err = readWithin(t, term, 1)
	require.Equal(t, io.EOF, err)
}

func TestPortDropsWhenDetached(t *testing.T) {
	port := NewPort(newPipeTransport())
	port.deliver([]byte("lost"))
	term, err := port.Attach()
	require.NoError(t, err)
	defer term.Close()
	go port.deliver([]byte("kept"))
	s, err := readWithin(t, term, 4)
	require.NoError(t, err)
	require.Equal(t, "kept", s)
}

func TestPortRunnerReportsTransportGone(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"eof", nil},
		{"read error", errors.New("device unplugged")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			transport := newPipeTransport()
			gone := make(chan error, 1)
			runner := NewPort(transport).Runner(func(err error) { gone <- err })
			errCh := make(chan error, 1)
			go func() { errCh <- runner.Run(context.Background()) }()

			transport.w.CloseWithError(c.err)
			select {
			case err := <-gone:
				require.Equal(t, c.err, err)
			case <-time.After(time.Second):
				t.Fatal("transport loss not reported")
			}
			require.Equal(t, c.err, <-errCh)
		})
	}
}

func TestPortRunnerQuietOnShutdown(t *testing.T) {
	gone := make(chan error, 1)
	runner := NewPort(newPipeTransport()).Runner(func(err error) { gone <- err })
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
	select {
	case err := <-gone:
		t.Fatalf("unexpected transport loss: %v", err)
	default:
	}
}
