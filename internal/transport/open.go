package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"go.bug.st/serial"
)

var ErrOpen = errors.New("transport: open failed")

// unixPrefix selects a unix socket instead of a tty, which is how modem
// emulators expose their links.
const unixPrefix = "unix:"

// Open connects to one modem link. Paths starting with "unix:" dial a socket;
// anything else is opened as a serial device at baud.
func Open(path string, baud int) (io.ReadWriteCloser, error) {
	if sock, ok := strings.CutPrefix(path, unixPrefix); ok {
		conn, err := net.Dial("unix", sock)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
		}
		return conn, nil
	}
	return OpenSerial(path, baud)
}

func OpenSerial(path string, baud int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	return port, nil
}
