package radio

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

type serialTransport struct {
	port serial.Port
	path string
}

func openSerial(d Descriptor) (Transport, error) {
	path := d.Path
	if path == "" {
		detected, err := detectSerialPort()
		if err != nil {
			return nil, err
		}
		path = detected
		log.Info().Str("port", path).Msg("radio: auto-detected serial port")
	}

	baud := d.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}

	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("radio: open serial %s: %w", path, err)
	}
	log.Info().Str("port", path).Int("baud", baud).Msg("radio: serial connected")
	return &serialTransport{port: port, path: path}, nil
}

func detectSerialPort() (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", fmt.Errorf("radio: list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return "", ErrNoSerialPorts
	}
	return ports[0], nil
}

// Read blocks until bytes arrive. Serial stacks deliver no EOF; a
// zero-length read after a quiet period is normal and liveness is
// judged by the session's heartbeat, not here.
func (t *serialTransport) Read(p []byte) (int, error) {
	return t.port.Read(p)
}

func (t *serialTransport) Write(p []byte) (int, error) {
	n, err := t.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("radio: serial write: %w", err)
	}
	return n, nil
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}

func (t *serialTransport) Kind() Kind { return KindSerial }
