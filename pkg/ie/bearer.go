package ie

import (
	"fmt"

	"github.com/gopri/pri/pkg/l3msg"
)

// Dialect is the subset of switch-dialect behavior that affects IE
// encoding/decoding (§6: "a single enum influencing three decisions").
// pkg/dialect provides the concrete implementation; ie only depends on
// this narrow interface to avoid an import cycle.
type Dialect interface {
	Is4ESS() bool
	IsNI2() bool
	IsDMS100() bool
}

// plainDialect is a fixed-flag Dialect. Its zero value is the
// dialect-neutral behavior NewTable uses, and tests set its flags
// directly; pkg/l3 passes the controller's real dialect through
// NewTableForDialect instead.
type plainDialect struct {
	fourESS, ni2, dms100 bool
}

func (d plainDialect) Is4ESS() bool   { return d.fourESS }
func (d plainDialect) IsNI2() bool    { return d.ni2 }
func (d plainDialect) IsDMS100() bool { return d.dms100 }

// NewTableForDialect builds the IE table with dialect-aware bearer
// capability encoding (§4.F; the 4ESS audio-code remap). Dialect-aware
// progress-indicator behavior (non-ISDN progress on SETUP/CONNECT) is
// a call-engine decision, not an IE-table one, and lives in
// pkg/l3.Engine's Setup/Answer instead.
func NewTableForDialect(d Dialect) *Table {
	t := NewTable()
	t.codecs[IDBearerCapability] = bearerCapabilityCodecForDialect(d)
	return t
}

func bearerCapabilityCodec() *Codec {
	return bearerCapabilityCodecForDialect(plainDialect{})
}

// audio31kCode returns the wire code libpri/Q.931 uses for 3.1kHz
// audio transfer capability, which 4ESS remaps (§4.F).
func audio31kCode(d Dialect) byte {
	if d.Is4ESS() {
		return 0x08
	}
	return 0x10
}

func bearerCapabilityCodecForDialect(d Dialect) *Codec {
	return &Codec{
		ID:   IDBearerCapability,
		Name: "Bearer Capability",
		Decode: func(f *CallFields, msgType l3msg.Type, data []byte) error {
			if len(data) < 2 {
				return fmt.Errorf("bearer capability too short")
			}
			codingStandard := (data[0] >> 5) & 0x03
			if codingStandard != 0 {
				return fmt.Errorf("bearer capability: unsupported coding standard %d", codingStandard)
			}
			capCode := data[0] & 0x1f
			switch capCode {
			case 0x00:
				f.TransferCapability = TransferCapabilitySpeech
			case 0x08:
				if d.Is4ESS() {
					f.TransferCapability = TransferCapabilityAudio31k
				} else {
					f.TransferCapability = TransferCapabilityUnrestrictedDigital
				}
			case 0x10, 0x09:
				f.TransferCapability = TransferCapabilityAudio31k
			default:
				f.TransferCapability = TransferCapabilitySpeech
			}
			rateByte := data[1] & 0x7f
			switch rateByte {
			case 0x10:
				f.TransferRate = TransferRate64kCircuit
			case 0x18:
				f.TransferRate = TransferRate384kCircuit
			case 0x19:
				f.TransferRate = TransferRate1536kCircuit
			case 0x11:
				f.TransferRate = TransferRateMultirate
			case 0x40:
				f.TransferRate = TransferRatePacket
			default:
				f.TransferRate = TransferRate64kCircuit
			}
			pos := 2
			if f.TransferRate == TransferRateMultirate {
				if pos >= len(data) {
					return fmt.Errorf("bearer capability: missing multirate multiplier")
				}
				f.Multiplier = int(data[pos] & 0x7f)
				pos++
			}
			if f.TransferRate == TransferRatePacket {
				if pos < len(data) {
					f.UserLayer2 = int(data[pos] & 0x1f)
					pos++
				}
				if pos < len(data) {
					f.UserLayer3 = int(data[pos] & 0x1f)
					pos++
				}
			} else if pos < len(data) && !d.Is4ESS() {
				layer1 := data[pos] & 0x1f
				if layer1 == 0x02 {
					f.UserLayer1 = UserLayer1ULaw
				} else if layer1 == 0x21 || layer1 == 0x01 {
					f.UserLayer1 = UserLayer1RateAdapt
				}
				pos++
				if f.UserLayer1 == UserLayer1RateAdapt && pos < len(data) {
					f.RateAdaption = 56
				}
			}
			f.BearerSet = true
			return nil
		},
		Encode: func(f *CallFields, msgType l3msg.Type) ([]byte, error) {
			if !f.BearerSet {
				return nil, nil
			}
			var capCode byte
			switch f.TransferCapability {
			case TransferCapabilitySpeech:
				capCode = 0x00
			case TransferCapabilityUnrestrictedDigital:
				capCode = 0x08
			case TransferCapabilityAudio31k:
				capCode = audio31kCode(d)
			}
			out := []byte{0x80 | capCode}
			var rateByte byte
			switch f.TransferRate {
			case TransferRate64kCircuit:
				rateByte = 0x10
			case TransferRate384kCircuit:
				rateByte = 0x18
			case TransferRate1536kCircuit:
				rateByte = 0x19
			case TransferRateMultirate:
				rateByte = 0x11
			case TransferRatePacket:
				rateByte = 0x40
			}
			out = append(out, 0x80|rateByte)
			if f.TransferRate == TransferRateMultirate {
				out = append(out, byte(f.Multiplier)&0x7f)
			}
			if f.TransferRate == TransferRatePacket {
				out = append(out, 0x80|byte(f.UserLayer2&0x1f))
				out = append(out, 0x80|byte(f.UserLayer3&0x1f))
			} else if !d.Is4ESS() {
				var l1 byte
				switch f.UserLayer1 {
				case UserLayer1ULaw:
					l1 = 0x02
				case UserLayer1RateAdapt:
					l1 = 0x21
				}
				out = append(out, 0x80|l1)
				if f.UserLayer1 == UserLayer1RateAdapt {
					out = append(out, 0xa0) // 56k rate adaption, per libpri encoding
				}
			}
			return out, nil
		},
		Dump: func(data []byte) string {
			return fmt.Sprintf("Bearer Capability (%d bytes): %x", len(data), data)
		},
	}
}
