package wire

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// NodeInfo describes one mesh participant as reported by the device.
type NodeInfo struct {
	Num       uint32
	LongName  string
	ShortName string
	HwModel   string
	LastHeard uint32
	SNR       float32
	HasSNR    bool
	HopsAway  uint8
	HasHops   bool
}

func (n NodeInfo) Validate() error {
	if n.Num == 0 {
		return fmt.Errorf("node_info missing node_num")
	}
	if strings.TrimSpace(n.LongName) == "" {
		return fmt.Errorf("node_info missing long_name")
	}
	return nil
}

func NewNodeInfoEnvelope(from uint32, n NodeInfo) (*Envelope, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	fields := []Field{
		NewFieldUint32(FieldNodeNum, n.Num),
		NewFieldString(FieldLongName, n.LongName),
	}
	if n.ShortName != "" {
		fields = append(fields, NewFieldString(FieldShortName, n.ShortName))
	}
	if n.HwModel != "" {
		fields = append(fields, NewFieldString(FieldHwModel, n.HwModel))
	}
	if n.LastHeard != 0 {
		fields = append(fields, NewFieldUint32(FieldLastHeard, n.LastHeard))
	}
	if n.HasSNR {
		fields = append(fields, NewFieldFloat32(FieldSNR, n.SNR))
	}
	if n.HasHops {
		fields = append(fields, NewFieldUint8(FieldHopsAway, n.HopsAway))
	}
	return &Envelope{From: from, Kind: KindNodeInfo, Fields: fields}, nil
}

func DecodeNodeInfo(env *Envelope) (NodeInfo, error) {
	if env.Kind != KindNodeInfo {
		return NodeInfo{}, ErrKindMismatch
	}
	var n NodeInfo
	var err error
	if f, ok := env.Field(FieldNodeNum); ok {
		if n.Num, err = f.Uint32(); err != nil {
			return NodeInfo{}, err
		}
	}
	if f, ok := env.Field(FieldLongName); ok {
		if n.LongName, err = f.String(); err != nil {
			return NodeInfo{}, err
		}
	}
	if f, ok := env.Field(FieldShortName); ok {
		if n.ShortName, err = f.String(); err != nil {
			return NodeInfo{}, err
		}
	}
	if f, ok := env.Field(FieldHwModel); ok {
		if n.HwModel, err = f.String(); err != nil {
			return NodeInfo{}, err
		}
	}
	if f, ok := env.Field(FieldLastHeard); ok {
		if n.LastHeard, err = f.Uint32(); err != nil {
			return NodeInfo{}, err
		}
	}
	if f, ok := env.Field(FieldSNR); ok {
		if n.SNR, err = f.Float32(); err != nil {
			return NodeInfo{}, err
		}
		n.HasSNR = true
	}
	if f, ok := env.Field(FieldHopsAway); ok {
		if n.HopsAway, err = f.Uint8(); err != nil {
			return NodeInfo{}, err
		}
		n.HasHops = true
	}
	return n, nil
}

// Position is a GPS fix for the envelope's originating node.
// Coordinates use the device convention of degrees scaled by 1e7.
type Position struct {
	LatitudeI  int32
	LongitudeI int32
	Altitude   int32
	Time       uint32
}

func NewPositionEnvelope(from uint32, p Position) *Envelope {
	fields := []Field{
		NewFieldInt32(FieldLatitude, p.LatitudeI),
		NewFieldInt32(FieldLongitude, p.LongitudeI),
	}
	if p.Altitude != 0 {
		fields = append(fields, NewFieldInt32(FieldAltitude, p.Altitude))
	}
	if p.Time != 0 {
		fields = append(fields, NewFieldUint32(FieldTime, p.Time))
	}
	return &Envelope{From: from, Kind: KindPosition, Fields: fields}
}

func DecodePosition(env *Envelope) (Position, error) {
	if env.Kind != KindPosition {
		return Position{}, ErrKindMismatch
	}
	var p Position
	var err error
	if f, ok := env.Field(FieldLatitude); ok {
		if p.LatitudeI, err = f.Int32(); err != nil {
			return Position{}, err
		}
	}
	if f, ok := env.Field(FieldLongitude); ok {
		if p.LongitudeI, err = f.Int32(); err != nil {
			return Position{}, err
		}
	}
	if f, ok := env.Field(FieldAltitude); ok {
		if p.Altitude, err = f.Int32(); err != nil {
			return Position{}, err
		}
	}
	if f, ok := env.Field(FieldTime); ok {
		if p.Time, err = f.Uint32(); err != nil {
			return Position{}, err
		}
	}
	return p, nil
}

// Telemetry carries device metrics for the originating node.
type Telemetry struct {
	Time        uint32
	Battery     uint32
	Voltage     float32
	ChannelUtil float32
	AirUtil     float32
	Uptime      uint32
}

func NewTelemetryEnvelope(from uint32, t Telemetry) *Envelope {
	fields := []Field{
		NewFieldUint32(FieldTime, t.Time),
		NewFieldUint32(FieldBattery, t.Battery),
		NewFieldFloat32(FieldVoltage, t.Voltage),
		NewFieldFloat32(FieldChannelUtil, t.ChannelUtil),
		NewFieldFloat32(FieldAirUtil, t.AirUtil),
		NewFieldUint32(FieldUptime, t.Uptime),
	}
	return &Envelope{From: from, Kind: KindTelemetry, Fields: fields}
}

func DecodeTelemetry(env *Envelope) (Telemetry, error) {
	if env.Kind != KindTelemetry {
		return Telemetry{}, ErrKindMismatch
	}
	var t Telemetry
	var err error
	if f, ok := env.Field(FieldTime); ok {
		if t.Time, err = f.Uint32(); err != nil {
			return Telemetry{}, err
		}
	}
	if f, ok := env.Field(FieldBattery); ok {
		if t.Battery, err = f.Uint32(); err != nil {
			return Telemetry{}, err
		}
	}
	if f, ok := env.Field(FieldVoltage); ok {
		if t.Voltage, err = f.Float32(); err != nil {
			return Telemetry{}, err
		}
	}
	if f, ok := env.Field(FieldChannelUtil); ok {
		if t.ChannelUtil, err = f.Float32(); err != nil {
			return Telemetry{}, err
		}
	}
	if f, ok := env.Field(FieldAirUtil); ok {
		if t.AirUtil, err = f.Float32(); err != nil {
			return Telemetry{}, err
		}
	}
	if f, ok := env.Field(FieldUptime); ok {
		if t.Uptime, err = f.Uint32(); err != nil {
			return Telemetry{}, err
		}
	}
	return t, nil
}

// ConfigEntry is one device setting keyed by dotted name, e.g.
// "lora.region".
type ConfigEntry struct {
	Key   string
	Value string
}

func (c ConfigEntry) Validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("config missing key")
	}
	return nil
}

func NewConfigEnvelope(from uint32, c ConfigEntry) (*Envelope, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Envelope{From: from, Kind: KindConfig, Fields: []Field{
		NewFieldString(FieldKey, c.Key),
		NewFieldString(FieldValue, c.Value),
	}}, nil
}

func DecodeConfig(env *Envelope) (ConfigEntry, error) {
	if env.Kind != KindConfig {
		return ConfigEntry{}, ErrKindMismatch
	}
	var c ConfigEntry
	var err error
	if f, ok := env.Field(FieldKey); ok {
		if c.Key, err = f.String(); err != nil {
			return ConfigEntry{}, err
		}
	}
	if f, ok := env.Field(FieldValue); ok {
		if c.Value, err = f.String(); err != nil {
			return ConfigEntry{}, err
		}
	}
	return c, nil
}

// ChannelInfo is one channel slot as enumerated by the device.
type ChannelInfo struct {
	Index uint8
	Name  string
	PSK   []byte
	Role  string
}

func (c ChannelInfo) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("channel_info missing name")
	}
	return nil
}

func NewChannelInfoEnvelope(from uint32, c ChannelInfo) (*Envelope, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	fields := []Field{
		NewFieldUint8(FieldIndex, c.Index),
		NewFieldString(FieldName, c.Name),
	}
	if len(c.PSK) > 0 {
		fields = append(fields, NewFieldBytes(FieldPSK, c.PSK))
	}
	if c.Role != "" {
		fields = append(fields, NewFieldString(FieldRole, c.Role))
	}
	return &Envelope{From: from, Kind: KindChannelInfo, Fields: fields}, nil
}

func DecodeChannelInfo(env *Envelope) (ChannelInfo, error) {
	if env.Kind != KindChannelInfo {
		return ChannelInfo{}, ErrKindMismatch
	}
	var c ChannelInfo
	var err error
	if f, ok := env.Field(FieldIndex); ok {
		if c.Index, err = f.Uint8(); err != nil {
			return ChannelInfo{}, err
		}
	}
	if f, ok := env.Field(FieldName); ok {
		if c.Name, err = f.String(); err != nil {
			return ChannelInfo{}, err
		}
	}
	if f, ok := env.Field(FieldPSK); ok {
		if c.PSK, err = f.Bytes(); err != nil {
			return ChannelInfo{}, err
		}
	}
	if f, ok := env.Field(FieldRole); ok {
		if c.Role, err = f.String(); err != nil {
			return ChannelInfo{}, err
		}
	}
	return c, nil
}

// Text is a plain text message on a channel.
type Text struct {
	Body    string
	WantAck bool
	RxSNR   float32
	RxRSSI  int32
}

func NewTextEnvelope(to uint32, channel uint8, t Text) *Envelope {
	fields := []Field{NewFieldString(FieldBody, t.Body)}
	if t.WantAck {
		fields = append(fields, NewFieldBool(FieldWantAck, true))
	}
	return &Envelope{To: to, Channel: channel, Kind: KindText, Fields: fields}
}

func DecodeText(env *Envelope) (Text, error) {
	if env.Kind != KindText {
		return Text{}, ErrKindMismatch
	}
	var t Text
	var err error
	if f, ok := env.Field(FieldBody); ok {
		if t.Body, err = f.String(); err != nil {
			return Text{}, err
		}
	}
	if f, ok := env.Field(FieldWantAck); ok {
		if t.WantAck, err = f.Bool(); err != nil {
			return Text{}, err
		}
	}
	if f, ok := env.Field(FieldRxSNR); ok {
		if t.RxSNR, err = f.Float32(); err != nil {
			return Text{}, err
		}
	}
	if f, ok := env.Field(FieldRxRSSI); ok {
		if t.RxRSSI, err = f.Int32(); err != nil {
			return Text{}, err
		}
	}
	return t, nil
}

// Routing carries delivery acknowledgments and route discovery
// replies. AckFor names the request envelope id being acknowledged;
// Route is a packed sequence of big-endian node numbers.
type Routing struct {
	AckFor      uint32
	Route       []uint32
	ErrorReason uint8
	HasError    bool
}

func NewRoutingEnvelope(from uint32, r Routing) *Envelope {
	var fields []Field
	if r.AckFor != 0 {
		fields = append(fields, NewFieldUint32(FieldAckFor, r.AckFor))
	}
	if len(r.Route) > 0 {
		fields = append(fields, NewFieldBytes(FieldRoute, packRoute(r.Route)))
	}
	if r.HasError {
		fields = append(fields, NewFieldUint8(FieldErrorReason, r.ErrorReason))
	}
	return &Envelope{From: from, Kind: KindRouting, Fields: fields}
}

func DecodeRouting(env *Envelope) (Routing, error) {
	if env.Kind != KindRouting {
		return Routing{}, ErrKindMismatch
	}
	var r Routing
	var err error
	if f, ok := env.Field(FieldAckFor); ok {
		if r.AckFor, err = f.Uint32(); err != nil {
			return Routing{}, err
		}
	}
	if f, ok := env.Field(FieldRoute); ok {
		raw, err := f.Bytes()
		if err != nil {
			return Routing{}, err
		}
		if r.Route, err = unpackRoute(raw); err != nil {
			return Routing{}, err
		}
	}
	if f, ok := env.Field(FieldErrorReason); ok {
		if r.ErrorReason, err = f.Uint8(); err != nil {
			return Routing{}, err
		}
		r.HasError = true
	}
	return r, nil
}

func packRoute(route []uint32) []byte {
	buf := make([]byte, 4*len(route))
	for i, num := range route {
		binary.BigEndian.PutUint32(buf[4*i:], num)
	}
	return buf
}

func unpackRoute(raw []byte) ([]uint32, error) {
	if len(raw)%4 != 0 {
		return nil, ErrInvalidLength
	}
	route := make([]uint32, len(raw)/4)
	for i := range route {
		route[i] = binary.BigEndian.Uint32(raw[4*i:])
	}
	return route, nil
}

// Admin ack status codes.
const (
	AdminStatusOK     uint8 = 0
	AdminStatusFailed uint8 = 1
)

// AdminAck is the device's reply to an administrative request.
type AdminAck struct {
	Status  uint8
	Message string
}

func NewAdminAckEnvelope(from uint32, a AdminAck) *Envelope {
	fields := []Field{NewFieldUint8(FieldStatus, a.Status)}
	if a.Message != "" {
		fields = append(fields, NewFieldString(FieldMessage, a.Message))
	}
	return &Envelope{From: from, Kind: KindAdminAck, Fields: fields}
}

func DecodeAdminAck(env *Envelope) (AdminAck, error) {
	if env.Kind != KindAdminAck {
		return AdminAck{}, ErrKindMismatch
	}
	var a AdminAck
	var err error
	if f, ok := env.Field(FieldStatus); ok {
		if a.Status, err = f.Uint8(); err != nil {
			return AdminAck{}, err
		}
	}
	if f, ok := env.Field(FieldMessage); ok {
		if a.Message, err = f.String(); err != nil {
			return AdminAck{}, err
		}
	}
	return a, nil
}

// MyInfo is the connected device's own identity.
type MyInfo struct {
	Num           uint32
	RebootCount   uint32
	MinAppVersion uint32
	DeviceID      []byte
}

func NewMyInfoEnvelope(m MyInfo) *Envelope {
	fields := []Field{NewFieldUint32(FieldNodeNum, m.Num)}
	if m.RebootCount != 0 {
		fields = append(fields, NewFieldUint32(FieldRebootCount, m.RebootCount))
	}
	if m.MinAppVersion != 0 {
		fields = append(fields, NewFieldUint32(FieldMinAppVersion, m.MinAppVersion))
	}
	if len(m.DeviceID) > 0 {
		fields = append(fields, NewFieldBytes(FieldDeviceID, m.DeviceID))
	}
	return &Envelope{Kind: KindMyInfo, Fields: fields}
}

func DecodeMyInfo(env *Envelope) (MyInfo, error) {
	if env.Kind != KindMyInfo {
		return MyInfo{}, ErrKindMismatch
	}
	var m MyInfo
	var err error
	if f, ok := env.Field(FieldNodeNum); ok {
		if m.Num, err = f.Uint32(); err != nil {
			return MyInfo{}, err
		}
	}
	if f, ok := env.Field(FieldRebootCount); ok {
		if m.RebootCount, err = f.Uint32(); err != nil {
			return MyInfo{}, err
		}
	}
	if f, ok := env.Field(FieldMinAppVersion); ok {
		if m.MinAppVersion, err = f.Uint32(); err != nil {
			return MyInfo{}, err
		}
	}
	if f, ok := env.Field(FieldDeviceID); ok {
		if m.DeviceID, err = f.Bytes(); err != nil {
			return MyInfo{}, err
		}
	}
	return m, nil
}

// NewWantConfigEnvelope starts a full-state handshake; the device
// answers the enumeration with a ConfigComplete carrying the nonce.
func NewWantConfigEnvelope(nonce uint32) *Envelope {
	return &Envelope{Kind: KindWantConfig, Fields: []Field{
		NewFieldUint32(FieldNonce, nonce),
	}}
}

func NewConfigCompleteEnvelope(nonce uint32) *Envelope {
	return &Envelope{Kind: KindConfigComplete, Fields: []Field{
		NewFieldUint32(FieldNonce, nonce),
	}}
}

// Nonce extracts the handshake nonce from a WantConfig or
// ConfigComplete envelope.
func Nonce(env *Envelope) (uint32, error) {
	if env.Kind != KindWantConfig && env.Kind != KindConfigComplete {
		return 0, ErrKindMismatch
	}
	f, ok := env.Field(FieldNonce)
	if !ok {
		return 0, ErrMissingField
	}
	return f.Uint32()
}

func NewConfigGetEnvelope(key string) *Envelope {
	return &Envelope{Kind: KindConfigGet, Fields: []Field{
		NewFieldString(FieldKey, key),
	}}
}

func NewConfigSetEnvelope(key, value string) *Envelope {
	return &Envelope{Kind: KindConfigSet, Fields: []Field{
		NewFieldString(FieldKey, key),
		NewFieldString(FieldValue, value),
	}}
}

func NewChannelSetEnvelope(c ChannelInfo) *Envelope {
	fields := []Field{NewFieldUint8(FieldIndex, c.Index)}
	if c.Name != "" {
		fields = append(fields, NewFieldString(FieldName, c.Name))
	}
	if len(c.PSK) > 0 {
		fields = append(fields, NewFieldBytes(FieldPSK, c.PSK))
	}
	if c.Role != "" {
		fields = append(fields, NewFieldString(FieldRole, c.Role))
	}
	return &Envelope{Kind: KindChannelSet, Fields: fields}
}

func NewChannelDeleteEnvelope(index uint8) *Envelope {
	return &Envelope{Kind: KindChannelDelete, Fields: []Field{
		NewFieldUint8(FieldIndex, index),
	}}
}

func NewRebootEnvelope(seconds uint32) *Envelope {
	return &Envelope{Kind: KindReboot, Fields: []Field{
		NewFieldUint32(FieldSeconds, seconds),
	}}
}

func NewShutdownEnvelope(seconds uint32) *Envelope {
	return &Envelope{Kind: KindShutdown, Fields: []Field{
		NewFieldUint32(FieldSeconds, seconds),
	}}
}

func NewFactoryResetEnvelope() *Envelope {
	return &Envelope{Kind: KindFactoryReset}
}

func NewHeartbeatEnvelope() *Envelope {
	return &Envelope{Kind: KindHeartbeat}
}

func NewTracerouteEnvelope(dest uint32) *Envelope {
	return &Envelope{To: dest, Kind: KindTraceroute}
}
