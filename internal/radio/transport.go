// Package radio opens and owns the raw byte stream to a mesh device.
// It knows nothing about frames or envelopes; it hands chunks to the
// wire codec and writes fully framed bytes.
package radio

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	ErrNoTarget       = errors.New("radio: no connection target")
	ErrNoSerialPorts  = errors.New("radio: no serial ports found")
	ErrNotConnected   = errors.New("radio: not connected")
	ErrUnknownKind    = errors.New("radio: unknown descriptor kind")
	ErrScanTimeout    = errors.New("radio: ble scan timed out")
	ErrCharacteristic = errors.New("radio: ble characteristic missing")
)

// Kind selects the transport variant of a Descriptor.
type Kind int

const (
	KindSerial Kind = iota
	KindTCP
	KindBLE
)

func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindTCP:
		return "tcp"
	case KindBLE:
		return "ble"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

const (
	// DefaultTCPPort is the device's network API port.
	DefaultTCPPort = 4403
	// DefaultBaud is the device's serial console rate.
	DefaultBaud = 115200
)

// Descriptor names one connection target.
type Descriptor struct {
	Kind Kind

	// Serial
	Path string
	Baud int

	// TCP
	Addr string

	// BLE: MAC address or advertised name.
	Device string

	ConnectTimeout time.Duration
}

// ParseTarget interprets a user-supplied target string the way the
// CLI does: anything with a colon or a dotted-quad prefix is a
// network address, everything else is a serial port path. An empty
// target means auto-detect serial.
func ParseTarget(target string) Descriptor {
	target = strings.TrimSpace(target)
	if target == "" {
		return Descriptor{Kind: KindSerial, Baud: DefaultBaud}
	}
	if strings.Contains(target, ":") || strings.HasPrefix(target, "192.") || strings.HasPrefix(target, "10.") {
		addr := target
		if !strings.Contains(addr, ":") {
			addr = fmt.Sprintf("%s:%d", addr, DefaultTCPPort)
		}
		return Descriptor{Kind: KindTCP, Addr: addr}
	}
	return Descriptor{Kind: KindSerial, Path: target, Baud: DefaultBaud}
}

// Transport is one open byte-stream connection. Read blocks until
// bytes arrive or the link fails; a zero-length read without error is
// legal on serial links and means "still alive, nothing yet". Write
// must push the whole buffer or fail.
type Transport interface {
	io.ReadWriteCloser
	Kind() Kind
}

// Open establishes the transport described by d.
func Open(d Descriptor) (Transport, error) {
	if d.ConnectTimeout <= 0 {
		d.ConnectTimeout = 5 * time.Second
	}
	switch d.Kind {
	case KindSerial:
		return openSerial(d)
	case KindTCP:
		return openTCP(d)
	case KindBLE:
		return openBLE(d)
	default:
		return nil, ErrUnknownKind
	}
}
