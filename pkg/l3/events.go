package l3

import "github.com/gopri/pri/pkg/ie"

// EventKind tags the upward notifications the call engine raises
// (§4.G's "Emitted upward" column).
type EventKind int

const (
	EventNone EventKind = iota
	EventRing
	EventRinging
	EventAnswer
	EventHangup
	EventRestart
)

func (k EventKind) String() string {
	switch k {
	case EventRing:
		return "RING"
	case EventRinging:
		return "RINGING"
	case EventAnswer:
		return "ANSWER"
	case EventHangup:
		return "HANGUP"
	case EventRestart:
		return "RESTART"
	default:
		return "NONE"
	}
}

// Event is the call-engine half of the controller's single event
// record (§4.H). pri.Controller folds this together with the L2-level
// DCHAN_UP/DCHAN_DOWN/CONFIG_ERR notifications into its own Event type.
type Event struct {
	Kind EventKind

	CallRef uint16
	Channel int
	Cause   int

	// CallHandle is the application-facing handle for follow-up
	// operations on this call. In this redesign it is the call
	// reference itself (§9: no raw call pointers are handed upward,
	// unlike the original's struct pri_call *), kept as a distinct
	// field because spec.md §6 lists it separately from CallRef.
	CallHandle uint16

	CallingNumber       string
	CallingPresentation ie.Presentation
	CallingPlan         ie.NumberingPlan
	CalledNumber        string
	CalledPlan          ie.NumberingPlan
	Flexible            bool
	TransferCapability  ie.TransferCapability

	RestartClass int
}
