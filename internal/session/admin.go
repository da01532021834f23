package session

import (
	"context"
	"fmt"

	"github.com/danmuck/meshctl/internal/wire"
)

// GetConfigValue asks the device for one setting by dotted key. The
// reply also refreshes the local mirror.
func (s *Session) GetConfigValue(ctx context.Context, key string) (string, error) {
	env := wire.NewConfigGetEnvelope(key)
	reply, err := s.Request(ctx, env, RequestOptions{ExpectReply: true})
	if err != nil {
		return "", err
	}
	entry, err := wire.DecodeConfig(reply)
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

// SetConfigValue writes one setting and waits for the device to
// confirm it.
func (s *Session) SetConfigValue(ctx context.Context, key, value string) error {
	return s.adminRequest(ctx, wire.NewConfigSetEnvelope(key, value))
}

// SetChannel creates or replaces a channel slot.
func (s *Session) SetChannel(ctx context.Context, c wire.ChannelInfo) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.adminRequest(ctx, wire.NewChannelSetEnvelope(c))
}

// DeleteChannel clears a channel slot.
func (s *Session) DeleteChannel(ctx context.Context, index uint8) error {
	return s.adminRequest(ctx, wire.NewChannelDeleteEnvelope(index))
}

// Reboot asks the device to restart after the given delay. The
// session will observe the link drop shortly after.
func (s *Session) Reboot(ctx context.Context, seconds uint32) error {
	return s.adminRequest(ctx, wire.NewRebootEnvelope(seconds))
}

// Shutdown powers the device off after the given delay.
func (s *Session) Shutdown(ctx context.Context, seconds uint32) error {
	return s.adminRequest(ctx, wire.NewShutdownEnvelope(seconds))
}

// FactoryReset wipes the device configuration.
func (s *Session) FactoryReset(ctx context.Context) error {
	return s.adminRequest(ctx, wire.NewFactoryResetEnvelope())
}

// adminRequest sends env and maps the device's AdminAck into an
// error.
func (s *Session) adminRequest(ctx context.Context, env *wire.Envelope) error {
	reply, err := s.Request(ctx, env, RequestOptions{ExpectReply: true})
	if err != nil {
		return err
	}
	ack, err := wire.DecodeAdminAck(reply)
	if err != nil {
		return err
	}
	if ack.Status != wire.AdminStatusOK {
		if ack.Message != "" {
			return fmt.Errorf("session: device refused: %s", ack.Message)
		}
		return fmt.Errorf("session: device refused, status %d", ack.Status)
	}
	return nil
}
