package ie

import (
	"fmt"

	"github.com/gopri/pri/pkg/l3msg"
)

// channel-identification octet-3 flags (§4.F).
const (
	chanInterfacePRI    = 0x20
	chanDS1Present      = 0x10
	chanExplicit        = 0x40
	chanExclusive       = 0x08
	chanCodingStandard0 = 0x00
	chanTypeB           = 0x03
)

func channelIdentificationCodec() *Codec {
	return &Codec{
		ID:   IDChannelIdentification,
		Name: "Channel Identification",
		Decode: func(f *CallFields, msgType l3msg.Type, data []byte) error {
			if len(data) < 1 {
				return fmt.Errorf("channel identification: empty")
			}
			octet3 := data[0]
			isPRI := octet3&chanInterfacePRI != 0
			if !isPRI {
				return fmt.Errorf("channel identification: non-PRI interface type not supported")
			}
			f.ChannelExplicit = octet3&chanExplicit != 0
			if octet3&chanExclusive != 0 {
				f.ChannelSelection = ChannelSelectionExclusive
			} else {
				f.ChannelSelection = ChannelSelectionPreferred
			}
			pos := 1
			if pos >= len(data) {
				f.ChannelNumber = -1
				return nil
			}
			if octet3&chanDS1Present != 0 {
				if pos >= len(data) {
					return fmt.Errorf("channel identification: missing DS1 identifier octet")
				}
				f.DS1Identifier = int(data[pos] & 0x7f)
				pos++
			}
			if pos >= len(data) {
				return nil
			}
			chanOctet := data[pos]
			codingStandard := (chanOctet >> 5) & 0x03
			if codingStandard != chanCodingStandard0 {
				return fmt.Errorf("channel identification: unsupported coding standard %d", codingStandard)
			}
			channelType := chanOctet & 0x0f
			if channelType != chanTypeB {
				return fmt.Errorf("channel identification: unsupported channel type %d", channelType)
			}
			numberIndicated := chanOctet&0x10 != 0
			pos++
			if !numberIndicated {
				f.ChannelNumber = -1
				return nil
			}
			if pos >= len(data) {
				return fmt.Errorf("channel identification: missing channel number/slotmap")
			}
			if chanOctet&0x0f == chanTypeB && len(data)-pos == 3 {
				// 24-bit slot map.
				f.SlotMap = int32(data[pos])<<16 | int32(data[pos+1])<<8 | int32(data[pos+2])
				f.ChannelNumber = -1
				return nil
			}
			f.ChannelNumber = int(data[pos] & 0x7f)
			return nil
		},
		Encode: func(f *CallFields, msgType l3msg.Type) ([]byte, error) {
			octet3 := byte(chanInterfacePRI)
			if f.ChannelExplicit {
				octet3 |= chanExplicit
			}
			if f.ChannelSelection == ChannelSelectionExclusive {
				octet3 |= chanExclusive
			}
			if f.DS1Identifier >= 0 {
				octet3 |= chanDS1Present
			}
			out := []byte{0x80 | octet3}
			if f.DS1Identifier >= 0 {
				out = append(out, 0x80|byte(f.DS1Identifier&0x7f))
			}
			if f.ChannelNumber < 0 && f.SlotMap < 0 {
				return out, nil
			}
			chanOctet := byte(chanTypeB)
			if f.ChannelNumber >= 0 || f.SlotMap >= 0 {
				chanOctet |= 0x10
			}
			out = append(out, 0x80|chanOctet)
			if f.SlotMap >= 0 {
				out = append(out, byte(f.SlotMap>>16), byte(f.SlotMap>>8), byte(f.SlotMap))
			} else {
				out = append(out, 0x80|byte(f.ChannelNumber&0x7f))
			}
			return out, nil
		},
		Dump: func(data []byte) string {
			return fmt.Sprintf("Channel Identification (%d bytes): %x", len(data), data)
		},
	}
}
