package ie

import (
	"fmt"

	"github.com/gopri/pri/pkg/l3msg"
)

func restartIndicatorCodec() *Codec {
	return &Codec{
		ID:   IDRestartIndicator,
		Name: "Restart Indicator",
		Decode: func(f *CallFields, msgType l3msg.Type, data []byte) error {
			if len(data) < 1 {
				return fmt.Errorf("restart indicator: empty")
			}
			switch data[0] & 0x07 {
			case 0x00:
				f.RestartClass = RestartClassIndicatedChannel
			case 0x06:
				f.RestartClass = RestartClassSingleInterface
			case 0x07:
				f.RestartClass = RestartClassAllInterfaces
			default:
				f.RestartClass = RestartClassIndicatedChannel
			}
			return nil
		},
		Encode: func(f *CallFields, msgType l3msg.Type) ([]byte, error) {
			var b byte
			switch f.RestartClass {
			case RestartClassIndicatedChannel:
				b = 0x00
			case RestartClassSingleInterface:
				b = 0x06
			case RestartClassAllInterfaces:
				b = 0x07
			}
			return []byte{0x80 | b}, nil
		},
		Dump: func(data []byte) string {
			return fmt.Sprintf("Restart Indicator (%d bytes): %x", len(data), data)
		},
	}
}
