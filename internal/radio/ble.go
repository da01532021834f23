package radio

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"
)

// Nordic UART service: the device exposes the byte stream as a write
// characteristic (host->device) and a notify characteristic
// (device->host). Notifications arrive in MTU-sized chunks the wire
// codec reassembles like any other read.
var (
	bleServiceUUID = mustUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")
	bleWriteUUID   = mustUUID("6e400002-b5a3-f393-e0a9-e50e24dcca9e")
	bleNotifyUUID  = mustUUID("6e400003-b5a3-f393-e0a9-e50e24dcca9e")
)

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

type bleTransport struct {
	device bluetooth.Device
	write  bluetooth.DeviceCharacteristic

	mu      sync.Mutex
	pending []byte
	chunks  chan []byte
	closed  chan struct{}
	once    sync.Once
}

func openBLE(d Descriptor) (Transport, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("radio: enable bluetooth: %w", err)
	}

	result, err := scanFor(adapter, d.Device, d.ConnectTimeout)
	if err != nil {
		return nil, err
	}

	device, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("radio: ble connect %s: %w", d.Device, err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{bleServiceUUID})
	if err != nil || len(services) == 0 {
		_ = device.Disconnect()
		return nil, fmt.Errorf("radio: ble service discovery: %w", err)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{bleWriteUUID, bleNotifyUUID})
	if err != nil || len(chars) < 2 {
		_ = device.Disconnect()
		return nil, ErrCharacteristic
	}

	t := &bleTransport{
		device: device,
		chunks: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
	var notify bluetooth.DeviceCharacteristic
	for _, c := range chars {
		switch c.UUID() {
		case bleWriteUUID:
			t.write = c
		case bleNotifyUUID:
			notify = c
		}
	}

	err = notify.EnableNotifications(func(buf []byte) {
		cp := make([]byte, len(buf))
		copy(cp, buf)
		select {
		case t.chunks <- cp:
		case <-t.closed:
		default:
			log.Warn().Int("len", len(cp)).Msg("radio: ble notify buffer full, dropping chunk")
		}
	})
	if err != nil {
		_ = device.Disconnect()
		return nil, fmt.Errorf("radio: ble notifications: %w", err)
	}

	log.Info().Str("device", d.Device).Msg("radio: ble connected")
	return t, nil
}

func scanFor(adapter *bluetooth.Adapter, target string, timeout time.Duration) (bluetooth.ScanResult, error) {
	found := make(chan bluetooth.ScanResult, 1)
	go func() {
		err := adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			if !matchesTarget(r, target) {
				return
			}
			_ = a.StopScan()
			select {
			case found <- r:
			default:
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("radio: ble scan ended")
		}
	}()

	select {
	case r := <-found:
		return r, nil
	case <-time.After(timeout):
		_ = adapter.StopScan()
		return bluetooth.ScanResult{}, fmt.Errorf("%w: %s", ErrScanTimeout, target)
	}
}

func matchesTarget(r bluetooth.ScanResult, target string) bool {
	if strings.EqualFold(r.Address.String(), target) {
		return true
	}
	name := r.LocalName()
	return name != "" && strings.EqualFold(name, target)
}

func (t *bleTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	if len(t.pending) > 0 {
		n := copy(p, t.pending)
		t.pending = t.pending[n:]
		t.mu.Unlock()
		return n, nil
	}
	t.mu.Unlock()

	select {
	case chunk := <-t.chunks:
		n := copy(p, chunk)
		if n < len(chunk) {
			t.mu.Lock()
			t.pending = append(t.pending, chunk[n:]...)
			t.mu.Unlock()
		}
		return n, nil
	case <-t.closed:
		return 0, io.EOF
	}
}

func (t *bleTransport) Write(p []byte) (int, error) {
	// GATT writes are bounded by the MTU; split conservatively.
	const maxChunk = 200
	total := 0
	for len(p) > 0 {
		n := len(p)
		if n > maxChunk {
			n = maxChunk
		}
		if _, err := t.write.WriteWithoutResponse(p[:n]); err != nil {
			return total, fmt.Errorf("radio: ble write: %w", err)
		}
		total += n
		p = p[n:]
	}
	return total, nil
}

func (t *bleTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return t.device.Disconnect()
}

func (t *bleTransport) Kind() Kind { return KindBLE }
