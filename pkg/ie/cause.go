package ie

import (
	"fmt"

	"github.com/gopri/pri/pkg/l3msg"
)

// DefaultCause is the cause value libpri uses when hangup(-1) is
// called without an explicit cause (§6).
const DefaultCause = 16

func causeCodec() *Codec {
	return &Codec{
		ID:   IDCause,
		Name: "Cause",
		Decode: func(f *CallFields, msgType l3msg.Type, data []byte) error {
			if len(data) < 2 {
				return fmt.Errorf("cause too short")
			}
			f.CauseCoding = int((data[0] >> 5) & 0x03)
			f.CauseLocation = int(data[0] & 0x0f)
			// data[1] high bit terminates the class. Diagnostic bytes
			// that follow it are neither decoded nor kept.
			f.CauseValue = int(data[1] & 0x7f)
			f.CauseSet = true
			return nil
		},
		Encode: func(f *CallFields, msgType l3msg.Type) ([]byte, error) {
			if !f.CauseSet {
				return nil, nil
			}
			b0 := 0x80 | byte(f.CauseCoding&0x03)<<5 | byte(f.CauseLocation&0x0f)
			b1 := 0x80 | byte(f.CauseValue&0x7f)
			return []byte{b0, b1}, nil
		},
		Dump: func(data []byte) string {
			if len(data) >= 2 {
				return fmt.Sprintf("Cause: location=%d value=%d", data[0]&0x0f, data[1]&0x7f)
			}
			return fmt.Sprintf("Cause (%d bytes): %x", len(data), data)
		},
	}
}
