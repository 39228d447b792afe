package ie

import (
	"fmt"

	"github.com/gopri/pri/pkg/l3msg"
)

// facilityCodec implements FACILITY as a raw-bytes passthrough IE: the
// ROSE/ASN.1 content is out of scope (§1), but libpri always recognizes
// the IE and preserves the bytes for an optional upper-layer/ROSE
// collaborator (SPEC_FULL.md Supplemented Features).
func facilityCodec() *Codec {
	return &Codec{
		ID:   IDFacility,
		Name: "Facility",
		Decode: func(f *CallFields, msgType l3msg.Type, data []byte) error {
			f.FacilityRaw = append([]byte(nil), data...)
			return nil
		},
		Encode: func(f *CallFields, msgType l3msg.Type) ([]byte, error) {
			if len(f.FacilityRaw) == 0 {
				return nil, nil
			}
			return f.FacilityRaw, nil
		},
		Dump: func(data []byte) string {
			return fmt.Sprintf("Facility (%d bytes, opaque)", len(data))
		},
	}
}

func notificationIndicatorCodec() *Codec {
	return &Codec{
		ID:   IDNotificationIndicator,
		Name: "Notification Indicator",
		Decode: func(f *CallFields, msgType l3msg.Type, data []byte) error {
			if len(data) < 1 {
				return fmt.Errorf("notification indicator: empty")
			}
			f.NotificationIndicator = int(data[0] & 0x7f)
			f.NotificationSet = true
			return nil
		},
		Encode: func(f *CallFields, msgType l3msg.Type) ([]byte, error) {
			if !f.NotificationSet {
				return nil, nil
			}
			return []byte{0x80 | byte(f.NotificationIndicator&0x7f)}, nil
		},
		Dump: func(data []byte) string {
			return fmt.Sprintf("Notification Indicator (%d bytes): %x", len(data), data)
		},
	}
}
