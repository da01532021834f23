package wire

import "fmt"

// Broadcast is the destination node number addressing every node.
const Broadcast uint32 = 0xFFFFFFFF

// EnvelopeHeaderLen is the fixed header preceding the TLV fields.
const EnvelopeHeaderLen = 14

// Kind tags the payload variant of one envelope. The set is closed;
// a kind outside it is a decode failure.
type Kind uint8

const (
	KindNodeInfo       Kind = 1
	KindPosition       Kind = 2
	KindTelemetry      Kind = 3
	KindConfig         Kind = 4
	KindChannelInfo    Kind = 5
	KindText           Kind = 6
	KindRouting        Kind = 7
	KindAdminAck       Kind = 8
	KindMyInfo         Kind = 9
	KindConfigComplete Kind = 10
	KindWantConfig     Kind = 11
	KindConfigGet      Kind = 12
	KindConfigSet      Kind = 13
	KindChannelSet     Kind = 14
	KindChannelDelete  Kind = 15
	KindReboot         Kind = 16
	KindShutdown       Kind = 17
	KindFactoryReset   Kind = 18
	KindHeartbeat      Kind = 19
	KindTraceroute     Kind = 20
)

func (k Kind) String() string {
	switch k {
	case KindNodeInfo:
		return "node_info"
	case KindPosition:
		return "position"
	case KindTelemetry:
		return "telemetry"
	case KindConfig:
		return "config"
	case KindChannelInfo:
		return "channel_info"
	case KindText:
		return "text"
	case KindRouting:
		return "routing"
	case KindAdminAck:
		return "admin_ack"
	case KindMyInfo:
		return "my_info"
	case KindConfigComplete:
		return "config_complete"
	case KindWantConfig:
		return "want_config"
	case KindConfigGet:
		return "config_get"
	case KindConfigSet:
		return "config_set"
	case KindChannelSet:
		return "channel_set"
	case KindChannelDelete:
		return "channel_delete"
	case KindReboot:
		return "reboot"
	case KindShutdown:
		return "shutdown"
	case KindFactoryReset:
		return "factory_reset"
	case KindHeartbeat:
		return "heartbeat"
	case KindTraceroute:
		return "traceroute"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Envelope is one decoded protocol message: routing metadata plus a
// tagged TLV payload.
type Envelope struct {
	ID      uint32
	From    uint32
	To      uint32
	Channel uint8
	Kind    Kind
	Fields  []Field
}

// Field returns the payload field with the given id, if present.
func (e *Envelope) Field(id uint16) (Field, bool) {
	for _, f := range e.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}
