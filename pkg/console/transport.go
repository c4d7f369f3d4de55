package console

import (
	"fmt"
	"io"
	"os"

	"github.com/tarm/serial"
)

// StdioTransport names the process standard input/output as transport.
const StdioTransport = "stdio"

// DefaultBaud is the baud rate of the serial console.
const DefaultBaud = 115200

type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdio) Close() error                { return nil }

// IsLocal tells if device names the local terminal.
func IsLocal(device string) bool {
	return device == "" || device == StdioTransport
}

// OpenTransport opens the console transport: stdio or a serial port.
func OpenTransport(device string, baud int) (io.ReadWriteCloser, error) {
	if IsLocal(device) {
		return stdio{}, nil
	}
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.OpenPort(&serial.Config{Name: device, Baud: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %v", device, err)
	}
	return port, nil
}
