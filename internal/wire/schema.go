package wire

import "fmt"

// Payload field ids. The id space is shared across kinds so a field
// keeps its meaning wherever it appears.
const (
	FieldNodeNum       uint16 = 1
	FieldLongName      uint16 = 2
	FieldShortName     uint16 = 3
	FieldHwModel       uint16 = 4
	FieldLastHeard     uint16 = 5
	FieldSNR           uint16 = 6
	FieldHopsAway      uint16 = 7
	FieldLatitude      uint16 = 8
	FieldLongitude     uint16 = 9
	FieldAltitude      uint16 = 10
	FieldTime          uint16 = 11
	FieldBattery       uint16 = 12
	FieldVoltage       uint16 = 13
	FieldChannelUtil   uint16 = 14
	FieldAirUtil       uint16 = 15
	FieldUptime        uint16 = 16
	FieldKey           uint16 = 17
	FieldValue         uint16 = 18
	FieldIndex         uint16 = 19
	FieldName          uint16 = 20
	FieldPSK           uint16 = 21
	FieldRole          uint16 = 22
	FieldBody          uint16 = 23
	FieldWantAck       uint16 = 24
	FieldRxSNR         uint16 = 25
	FieldRxRSSI        uint16 = 26
	FieldAckFor        uint16 = 27
	FieldRoute         uint16 = 28
	FieldErrorReason   uint16 = 29
	FieldNonce         uint16 = 30
	FieldRebootCount   uint16 = 31
	FieldMinAppVersion uint16 = 32
	FieldDeviceID      uint16 = 33
	FieldSeconds       uint16 = 34
	FieldStatus        uint16 = 35
	FieldMessage       uint16 = 36
)

// FieldSpec declares a known field within an envelope kind.
type FieldSpec struct {
	ID       uint16
	Type     FieldType
	Required bool
}

var schemas = map[Kind][]FieldSpec{
	KindNodeInfo: {
		{ID: FieldNodeNum, Type: FieldUint32, Required: true},
		{ID: FieldLongName, Type: FieldString, Required: true},
		{ID: FieldShortName, Type: FieldString},
		{ID: FieldHwModel, Type: FieldString},
		{ID: FieldLastHeard, Type: FieldUint32},
		{ID: FieldSNR, Type: FieldFloat32},
		{ID: FieldHopsAway, Type: FieldUint8},
	},
	KindPosition: {
		{ID: FieldLatitude, Type: FieldInt32, Required: true},
		{ID: FieldLongitude, Type: FieldInt32, Required: true},
		{ID: FieldAltitude, Type: FieldInt32},
		{ID: FieldTime, Type: FieldUint32},
	},
	KindTelemetry: {
		{ID: FieldTime, Type: FieldUint32},
		{ID: FieldBattery, Type: FieldUint32},
		{ID: FieldVoltage, Type: FieldFloat32},
		{ID: FieldChannelUtil, Type: FieldFloat32},
		{ID: FieldAirUtil, Type: FieldFloat32},
		{ID: FieldUptime, Type: FieldUint32},
	},
	KindConfig: {
		{ID: FieldKey, Type: FieldString, Required: true},
		{ID: FieldValue, Type: FieldString, Required: true},
	},
	KindChannelInfo: {
		{ID: FieldIndex, Type: FieldUint8, Required: true},
		{ID: FieldName, Type: FieldString, Required: true},
		{ID: FieldPSK, Type: FieldBytes},
		{ID: FieldRole, Type: FieldString},
	},
	KindText: {
		{ID: FieldBody, Type: FieldString, Required: true},
		{ID: FieldWantAck, Type: FieldBool},
		{ID: FieldRxSNR, Type: FieldFloat32},
		{ID: FieldRxRSSI, Type: FieldInt32},
	},
	KindRouting: {
		{ID: FieldAckFor, Type: FieldUint32},
		{ID: FieldRoute, Type: FieldBytes},
		{ID: FieldErrorReason, Type: FieldUint8},
	},
	KindAdminAck: {
		{ID: FieldStatus, Type: FieldUint8, Required: true},
		{ID: FieldMessage, Type: FieldString},
	},
	KindMyInfo: {
		{ID: FieldNodeNum, Type: FieldUint32, Required: true},
		{ID: FieldRebootCount, Type: FieldUint32},
		{ID: FieldMinAppVersion, Type: FieldUint32},
		{ID: FieldDeviceID, Type: FieldBytes},
	},
	KindConfigComplete: {
		{ID: FieldNonce, Type: FieldUint32, Required: true},
	},
	KindWantConfig: {
		{ID: FieldNonce, Type: FieldUint32, Required: true},
	},
	KindConfigGet: {
		{ID: FieldKey, Type: FieldString, Required: true},
	},
	KindConfigSet: {
		{ID: FieldKey, Type: FieldString, Required: true},
		{ID: FieldValue, Type: FieldString, Required: true},
	},
	KindChannelSet: {
		{ID: FieldIndex, Type: FieldUint8, Required: true},
		{ID: FieldName, Type: FieldString},
		{ID: FieldPSK, Type: FieldBytes},
		{ID: FieldRole, Type: FieldString},
	},
	KindChannelDelete: {
		{ID: FieldIndex, Type: FieldUint8, Required: true},
	},
	KindReboot: {
		{ID: FieldSeconds, Type: FieldUint32},
	},
	KindShutdown: {
		{ID: FieldSeconds, Type: FieldUint32},
	},
	KindFactoryReset: {},
	KindHeartbeat:    {},
	KindTraceroute:   {},
}

// ValidateKind checks fields against the schema for kind: required
// fields must be present and known fields must carry the declared
// type. Unknown field ids pass through untouched.
func ValidateKind(kind Kind, fields []Field) error {
	specs, ok := schemas[kind]
	if !ok {
		return ErrUnknownKind
	}
	known := make(map[uint16]FieldSpec, len(specs))
	required := make(map[uint16]struct{})
	for _, spec := range specs {
		known[spec.ID] = spec
		if spec.Required {
			required[spec.ID] = struct{}{}
		}
	}
	for _, f := range fields {
		spec, ok := known[f.ID]
		if !ok {
			continue
		}
		if f.Type != spec.Type {
			return fmt.Errorf("%w: field %d in %s", ErrFieldTypeMismatch, f.ID, kind)
		}
		delete(required, f.ID)
	}
	for id := range required {
		return fmt.Errorf("%w: field %d in %s", ErrMissingField, id, kind)
	}
	return nil
}
