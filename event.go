package pri

import (
	"github.com/gopri/pri/pkg/ie"
	"github.com/gopri/pri/pkg/l3"
)

// Kind tags the single upward notification a Controller produces per
// pump, folding the Layer 2 link-state notifications together with
// the call-engine's event table into one tagged union (§4.H).
type Kind int

const (
	KindNone Kind = iota
	KindDChanUp
	KindDChanDown
	KindConfigError
	KindRing
	KindRinging
	KindAnswer
	KindHangup
	KindRestart
)

func (k Kind) String() string {
	switch k {
	case KindDChanUp:
		return "DCHAN_UP"
	case KindDChanDown:
		return "DCHAN_DOWN"
	case KindConfigError:
		return "CONFIG_ERR"
	case KindRing:
		return "RING"
	case KindRinging:
		return "RINGING"
	case KindAnswer:
		return "ANSWER"
	case KindHangup:
		return "HANGUP"
	case KindRestart:
		return "RESTART"
	default:
		return "NONE"
	}
}

// Event is the one record a Controller hands back per pump. Only the
// fields relevant to Kind are meaningful; the zero value of the rest
// is not significant.
type Event struct {
	Kind Kind

	ConfigErrorReason string

	CallRef    int
	CallHandle int
	Channel    int
	Cause      int

	CallingNumber       string
	CallingPresentation ie.Presentation
	CallingPlan         ie.NumberingPlan
	CalledNumber        string
	CalledPlan          ie.NumberingPlan
	Flexible            bool
	TransferCapability  ie.TransferCapability

	RestartClass int
}

func eventFromL3(e l3.Event) Event {
	var kind Kind
	switch e.Kind {
	case l3.EventRing:
		kind = KindRing
	case l3.EventRinging:
		kind = KindRinging
	case l3.EventAnswer:
		kind = KindAnswer
	case l3.EventHangup:
		kind = KindHangup
	case l3.EventRestart:
		kind = KindRestart
	default:
		kind = KindNone
	}
	return Event{
		Kind:                kind,
		CallRef:             int(e.CallRef),
		CallHandle:          int(e.CallHandle),
		Channel:             e.Channel,
		Cause:               e.Cause,
		CallingNumber:       e.CallingNumber,
		CallingPresentation: e.CallingPresentation,
		CallingPlan:         e.CallingPlan,
		CalledNumber:        e.CalledNumber,
		CalledPlan:          e.CalledPlan,
		Flexible:            e.Flexible,
		TransferCapability:  e.TransferCapability,
		RestartClass:        e.RestartClass,
	}
}
