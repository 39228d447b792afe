package ie

import (
	"fmt"

	"github.com/gopri/pri/pkg/l3msg"
)

func planByte(p NumberingPlan) byte {
	switch p {
	case NumberingPlanISDN:
		return 0x01
	case NumberingPlanNational:
		return 0x02
	case NumberingPlanPrivate:
		return 0x09
	default:
		return 0x00
	}
}

func planFromByte(b byte) NumberingPlan {
	switch b {
	case 0x01:
		return NumberingPlanISDN
	case 0x02:
		return NumberingPlanNational
	case 0x09:
		return NumberingPlanPrivate
	default:
		return NumberingPlanUnknown
	}
}

func calledPartyNumberCodec() *Codec {
	return &Codec{
		ID:   IDCalledPartyNumber,
		Name: "Called Party Number",
		Decode: func(f *CallFields, msgType l3msg.Type, data []byte) error {
			if len(data) < 1 {
				return fmt.Errorf("called party number: empty")
			}
			f.CalledPlan = planFromByte(data[0] & 0x0f)
			f.CalledNumber = string(data[1:])
			return nil
		},
		Encode: func(f *CallFields, msgType l3msg.Type) ([]byte, error) {
			if f.CalledNumber == "" {
				return nil, nil
			}
			typeOfNumber := byte(0x02) // national type of number, plan in low nibble
			out := []byte{0x80 | (typeOfNumber << 4) | planByte(f.CalledPlan)}
			out = append(out, []byte(f.CalledNumber)...)
			return out, nil
		},
		Dump: func(data []byte) string {
			if len(data) >= 1 {
				return fmt.Sprintf("Called Party Number: %q", string(data[1:]))
			}
			return "Called Party Number: (empty)"
		},
	}
}

func callingPartyNumberCodec() *Codec {
	return &Codec{
		ID:   IDCallingPartyNumber,
		Name: "Calling Party Number",
		Decode: func(f *CallFields, msgType l3msg.Type, data []byte) error {
			if len(data) < 2 {
				return fmt.Errorf("calling party number too short")
			}
			f.CallingPlan = planFromByte(data[0] & 0x0f)
			switch (data[1] >> 5) & 0x03 {
			case 0x00:
				f.CallingPresentation = PresentationAllowed
			case 0x01:
				f.CallingPresentation = PresentationRestricted
			case 0x02:
				f.CallingPresentation = PresentationUnavailable
			}
			switch data[1] & 0x03 {
			case 0x00:
				f.CallingScreening = ScreeningUserNotVerified
			case 0x01:
				f.CallingScreening = ScreeningUserVerifiedPassed
			case 0x02:
				f.CallingScreening = ScreeningUserVerifiedFailed
			case 0x03:
				f.CallingScreening = ScreeningNetworkProvided
			}
			f.CallingNumber = string(data[2:])
			return nil
		},
		Encode: func(f *CallFields, msgType l3msg.Type) ([]byte, error) {
			if f.CallingNumber == "" {
				return nil, nil
			}
			typeOfNumber := byte(0x02)
			out := []byte{(typeOfNumber << 4) | planByte(f.CallingPlan)}
			var pres byte
			switch f.CallingPresentation {
			case PresentationRestricted:
				pres = 0x01
			case PresentationUnavailable:
				pres = 0x02
			}
			var scr byte
			switch f.CallingScreening {
			case ScreeningUserVerifiedPassed:
				scr = 0x01
			case ScreeningUserVerifiedFailed:
				scr = 0x02
			case ScreeningNetworkProvided:
				scr = 0x03
			}
			out = append(out, 0x80|(pres<<5)|scr)
			out = append(out, []byte(f.CallingNumber)...)
			return out, nil
		},
		Dump: func(data []byte) string {
			if len(data) >= 2 {
				return fmt.Sprintf("Calling Party Number: %q", string(data[2:]))
			}
			return "Calling Party Number: (empty)"
		},
	}
}

func redirectingNumberCodec() *Codec {
	return &Codec{
		ID:   IDRedirectingNumber,
		Name: "Redirecting Number",
		Decode: func(f *CallFields, msgType l3msg.Type, data []byte) error {
			if len(data) < 3 {
				return fmt.Errorf("redirecting number too short")
			}
			f.RedirectPlan = planFromByte(data[0] & 0x0f)
			switch (data[1] >> 5) & 0x03 {
			case 0x00:
				f.RedirectPresentation = PresentationAllowed
			case 0x01:
				f.RedirectPresentation = PresentationRestricted
			case 0x02:
				f.RedirectPresentation = PresentationUnavailable
			}
			switch data[2] & 0x0f {
			case 0x01:
				f.RedirectReason = RedirectReasonBusy
			case 0x02:
				f.RedirectReason = RedirectReasonNoReply
			case 0x0f:
				f.RedirectReason = RedirectReasonUnconditional
			default:
				f.RedirectReason = RedirectReasonUnknown
			}
			f.RedirectNumber = string(data[3:])
			f.RedirectSet = true
			return nil
		},
		Encode: func(f *CallFields, msgType l3msg.Type) ([]byte, error) {
			if !f.RedirectSet {
				return nil, nil
			}
			typeOfNumber := byte(0x02)
			out := []byte{(typeOfNumber << 4) | planByte(f.RedirectPlan)}
			var pres byte
			switch f.RedirectPresentation {
			case PresentationRestricted:
				pres = 0x01
			case PresentationUnavailable:
				pres = 0x02
			}
			out = append(out, 0x80|(pres<<5))
			var reason byte
			switch f.RedirectReason {
			case RedirectReasonBusy:
				reason = 0x01
			case RedirectReasonNoReply:
				reason = 0x02
			case RedirectReasonUnconditional:
				reason = 0x0f
			}
			out = append(out, 0x80|reason)
			out = append(out, []byte(f.RedirectNumber)...)
			return out, nil
		},
		Dump: func(data []byte) string {
			if len(data) >= 3 {
				return fmt.Sprintf("Redirecting Number: %q", string(data[3:]))
			}
			return "Redirecting Number: (empty)"
		},
	}
}
