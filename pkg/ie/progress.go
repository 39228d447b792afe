package ie

import (
	"fmt"

	"github.com/gopri/pri/pkg/l3msg"
)

// Progress indicator codes the core emits (§4.G).
const (
	ProgressInBandAvailable = 0x08
	ProgressCalledNonISDN   = 0x02
	ProgressCallerNonISDN   = 0x03
)

func progressIndicatorCodec() *Codec {
	return &Codec{
		ID:   IDProgressIndicator,
		Name: "Progress Indicator",
		Decode: func(f *CallFields, msgType l3msg.Type, data []byte) error {
			if len(data) < 2 {
				return fmt.Errorf("progress indicator too short")
			}
			f.ProgressCoding = int((data[0] >> 5) & 0x03)
			f.ProgressLocation = int(data[0] & 0x0f)
			f.ProgressIndicator = int(data[1] & 0x7f)
			f.ProgressSet = true
			return nil
		},
		Encode: func(f *CallFields, msgType l3msg.Type) ([]byte, error) {
			if !f.ProgressSet {
				return nil, nil
			}
			b0 := 0x80 | byte(f.ProgressCoding&0x03)<<5 | byte(f.ProgressLocation&0x0f)
			b1 := byte(0x80) | byte(f.ProgressIndicator&0x7f)
			return []byte{b0, b1}, nil
		},
		Dump: func(data []byte) string {
			return fmt.Sprintf("Progress Indicator (%d bytes): %x", len(data), data)
		},
	}
}
