// Package frame implements the Layer 2 (Q.921 LAPD) octet codec: the
// two-octet address field and the one- or two-octet control field that
// prefix every frame on the D-channel. It is grounded on libpri's
// q921.c address/control bit-packing and on the teacher's frame-typed
// Bus/Frame abstraction (bus.go, driver.go) for the surrounding Go
// idiom: small value types, a Role-aware encoder, and a Dump helper
// gated by the caller's debug flag rather than always-on printing.
package frame

import "fmt"

// Role is the local side's point of attachment on the D-channel.
type Role int

const (
	RoleNetwork Role = iota
	RoleCPE
)

func (r Role) String() string {
	if r == RoleNetwork {
		return "NETWORK"
	}
	return "CPE"
}

// SAPI is fixed to call-control for this core (no broadcast TEI
// handling, §1 Non-goals).
const (
	SAPICallControl = 0
	BroadcastTEI    = 127
)

// Type identifies the Layer 2 frame family and, for U-frames, the
// specific command/response.
type Type int

const (
	TypeI Type = iota
	TypeRR
	TypeRNR
	TypeREJ
	TypeSABME
	TypeUA
	TypeDM
	TypeDISC
	TypeFRMR
	TypeXID
	TypeUnknown
)

func (t Type) String() string {
	switch t {
	case TypeI:
		return "I"
	case TypeRR:
		return "RR"
	case TypeRNR:
		return "RNR"
	case TypeREJ:
		return "REJ"
	case TypeSABME:
		return "SABME"
	case TypeUA:
		return "UA"
	case TypeDM:
		return "DM"
	case TypeDISC:
		return "DISC"
	case TypeFRMR:
		return "FRMR"
	case TypeXID:
		return "XID"
	default:
		return "UNKNOWN"
	}
}

// Address is the two-octet SAPI/C-R/EA0, TEI/EA1 field.
type Address struct {
	SAPI    uint8
	Command bool // the raw C/R bit; whether it marks a command depends on the sender's role (see IsCommand)
	TEI     uint8
}

// EncodeAddress packs the address field, writing addr.Command as the
// C/R bit unchanged. IsCommand gives the bit for a role and direction.
func EncodeAddress(addr Address) [2]byte {
	var b [2]byte
	cr := uint8(0)
	if addr.Command {
		cr = 1
	}
	b[0] = (addr.SAPI << 2) | (cr << 1) | 0x0
	b[1] = (addr.TEI << 1) | 0x1
	return b
}

// DecodeAddress unpacks the address field. It returns an error for
// malformed EA bits (§4.D receive dispatch step 1).
func DecodeAddress(b [2]byte) (Address, error) {
	if b[0]&0x01 != 0 {
		return Address{}, fmt.Errorf("frame: EA0 bit set in address octet 1 (%#02x)", b[0])
	}
	if b[1]&0x01 != 1 {
		return Address{}, fmt.Errorf("frame: EA1 bit clear in address octet 2 (%#02x)", b[1])
	}
	return Address{
		SAPI:    b[0] >> 2,
		Command: (b[0]>>1)&0x1 != 0,
		TEI:     b[1] >> 1,
	}, nil
}

// IsCommand applies the direction-of-command rule: a NETWORK side sets
// C/R=1 for commands it sends; CPE sets C/R=0 for commands. Responses
// invert the sender's command bit.
func IsCommand(localRole Role, outgoing bool) bool {
	networkSendsCommand := localRole == RoleNetwork
	if outgoing {
		return networkSendsCommand
	}
	return !networkSendsCommand
}

// Control is the decoded control field of a single frame, covering
// all three families (I, S, U).
type Control struct {
	Type Type
	NS   uint8 // I-frame only
	NR   uint8 // I and S frames
	PF   bool  // poll (command) / final (response) bit
}

// EncodeControl packs the control field. It returns 1 octet for
// U-frames, 2 octets for I- and S-frames.
func EncodeControl(c Control) []byte {
	switch c.Type {
	case TypeI:
		b0 := c.NS << 1
		b1 := (c.NR << 1)
		if c.PF {
			b1 |= 0x1
		}
		return []byte{b0, b1}
	case TypeRR, TypeRNR, TypeREJ:
		var ss uint8
		switch c.Type {
		case TypeRR:
			ss = 0x00
		case TypeRNR:
			ss = 0x01
		case TypeREJ:
			ss = 0x02
		}
		b0 := (ss << 2) | 0x01
		b1 := c.NR << 1
		if c.PF {
			b1 |= 0x1
		}
		return []byte{b0, b1}
	case TypeSABME, TypeUA, TypeDM, TypeDISC, TypeFRMR, TypeXID:
		m3, m2 := uFrameBits(c.Type)
		b := (m3 << 5) | (m2 << 2) | 0x03
		if c.PF {
			b |= 0x10
		}
		return []byte{b}
	default:
		return nil
	}
}

func uFrameBits(t Type) (m3, m2 uint8) {
	switch t {
	case TypeSABME:
		return 3, 3
	case TypeUA:
		return 3, 0
	case TypeDM:
		return 0, 3
	case TypeDISC:
		return 2, 0
	case TypeFRMR:
		return 4, 1
	case TypeXID:
		return 5, 3
	}
	return 0, 0
}

// DecodeControl inspects the leading control octet(s) of buf and
// returns the parsed Control plus the number of octets it consumed (1
// for U-frames, 2 for I/S-frames). An all-ones low-order pattern that
// matches no known U-frame bit combination decodes as TypeUnknown.
func DecodeControl(buf []byte) (Control, int, error) {
	if len(buf) == 0 {
		return Control{}, 0, fmt.Errorf("frame: empty control field")
	}
	b0 := buf[0]
	if b0&0x01 == 0 {
		// I-frame
		if len(buf) < 2 {
			return Control{}, 0, fmt.Errorf("frame: truncated I-frame control field")
		}
		return Control{
			Type: TypeI,
			NS:   b0 >> 1,
			NR:   buf[1] >> 1,
			PF:   buf[1]&0x01 != 0,
		}, 2, nil
	}
	if b0&0x03 == 0x01 {
		// S-frame
		if len(buf) < 2 {
			return Control{}, 0, fmt.Errorf("frame: truncated S-frame control field")
		}
		var t Type
		switch (b0 >> 2) & 0x03 {
		case 0x00:
			t = TypeRR
		case 0x01:
			t = TypeRNR
		case 0x02:
			t = TypeREJ
		default:
			t = TypeUnknown
		}
		return Control{
			Type: t,
			NR:   buf[1] >> 1,
			PF:   buf[1]&0x01 != 0,
		}, 2, nil
	}
	// U-frame
	m3 := (b0 >> 5) & 0x07
	m2 := (b0 >> 2) & 0x03
	pf := b0&0x10 != 0
	t := TypeUnknown
	switch {
	case m3 == 3 && m2 == 3:
		t = TypeSABME
	case m3 == 3 && m2 == 0:
		t = TypeUA
	case m3 == 0 && m2 == 3:
		t = TypeDM
	case m3 == 2 && m2 == 0:
		t = TypeDISC
	case m3 == 4 && m2 == 1:
		t = TypeFRMR
	case m3 == 5 && m2 == 3:
		t = TypeXID
	}
	return Control{Type: t, PF: pf}, 1, nil
}

// Dump renders a one-line human-readable trace of a frame's address
// and control fields. It is never called on non-debug paths — callers
// gate it behind the controller's debug flags.
func Dump(addr Address, ctl Control) string {
	cr := "RSP"
	if addr.Command {
		cr = "CMD"
	}
	switch ctl.Type {
	case TypeI:
		return fmt.Sprintf("I sapi=%d tei=%d %s ns=%d nr=%d p=%v", addr.SAPI, addr.TEI, cr, ctl.NS, ctl.NR, ctl.PF)
	case TypeRR, TypeRNR, TypeREJ:
		return fmt.Sprintf("%s sapi=%d tei=%d %s nr=%d pf=%v", ctl.Type, addr.SAPI, addr.TEI, cr, ctl.NR, ctl.PF)
	default:
		return fmt.Sprintf("%s sapi=%d tei=%d %s pf=%v", ctl.Type, addr.SAPI, addr.TEI, cr, ctl.PF)
	}
}
