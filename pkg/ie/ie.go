// Package ie implements the Q.931 information-element codec table
// (§4.F). Each IE has an identifier octet, a decoder that writes into
// a CallFields record, an encoder that reads from one, and a dump
// helper. The driver in pkg/l3 walks an ordered IE list to build
// outgoing messages and consults the table by identifier to parse
// incoming ones.
//
// This replaces libpri's function-pointer-over-void* IE tables
// (q931.c's ie list) with a Go map of typed Codec values, per the §9
// "IE decoder table polymorphism" redesign note. An unrecognized IE is
// logged and skipped rather than force-cast to a known struct; its
// bytes are not kept, so it is not re-emitted on any outgoing message.
package ie

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/gopri/pri/pkg/l3msg"
)

// Identifier is a Q.931 information-element id.
type Identifier byte

const (
	IDBearerCapability     Identifier = 0x04
	IDCause                Identifier = 0x08
	IDChannelIdentification Identifier = 0x18
	IDFacility             Identifier = 0x1c
	IDProgressIndicator    Identifier = 0x1e
	IDNotificationIndicator Identifier = 0x27
	IDCallingPartyNumber   Identifier = 0x6c
	IDCalledPartyNumber    Identifier = 0x70
	IDRedirectingNumber    Identifier = 0x74
	IDRestartIndicator     Identifier = 0x79

	// IDSendingComplete is a one-octet (locking-shift style) IE: it
	// carries no length/content, only the identifier byte with its
	// high bit set.
	IDSendingComplete Identifier = 0xa1
)

// oneOctetMask identifies the one-octet IE form: identifier byte with
// bit 7 set and no trailing length/content (§4.A).
const oneOctetMask = 0x80

func isOneOctetForm(id byte) bool {
	return id&oneOctetMask != 0
}

// ChannelSelection flags (§3 Data model).
type ChannelSelection int

const (
	ChannelSelectionNone ChannelSelection = iota
	ChannelSelectionPreferred
	ChannelSelectionExclusive
)

// TransferCapability values (§4.F Bearer capability).
type TransferCapability int

const (
	TransferCapabilitySpeech TransferCapability = iota
	TransferCapabilityUnrestrictedDigital
	TransferCapabilityAudio31k
)

// TransferRate values.
type TransferRate int

const (
	TransferRate64kCircuit TransferRate = iota
	TransferRate384kCircuit
	TransferRate1536kCircuit
	TransferRateMultirate
	TransferRatePacket
)

// UserLayer1 codes.
type UserLayer1 int

const (
	UserLayer1ULaw UserLayer1 = iota
	UserLayer1RateAdapt
)

// RestartClass values (§4.F Restart indicator).
type RestartClass int

const (
	RestartClassIndicatedChannel RestartClass = iota
	RestartClassSingleInterface
	RestartClassAllInterfaces
)

// NumberingPlan values, shared by calling/called/redirecting numbers.
type NumberingPlan int

const (
	NumberingPlanUnknown NumberingPlan = iota
	NumberingPlanISDN
	NumberingPlanNational
	NumberingPlanPrivate
)

// Presentation / screening of a calling number.
type Presentation int

const (
	PresentationAllowed Presentation = iota
	PresentationRestricted
	PresentationUnavailable
)

type Screening int

const (
	ScreeningUserNotVerified Screening = iota
	ScreeningUserVerifiedPassed
	ScreeningUserVerifiedFailed
	ScreeningNetworkProvided
)

// RedirectReason values.
type RedirectReason int

const (
	RedirectReasonUnknown RedirectReason = iota
	RedirectReasonBusy
	RedirectReasonNoReply
	RedirectReasonUnconditional
)

// CallFields is the subset of the call record (§3) that information
// elements read from and write into. pkg/l3's Call embeds it, keeping
// the wire codec decoupled from call-directory bookkeeping.
type CallFields struct {
	// Channel selection.
	ChannelNumber    int // -1 if unset
	DS1Identifier    int // -1 if unset
	SlotMap          int32
	ChannelSelection ChannelSelection
	ChannelExplicit  bool

	// Bearer capability.
	TransferCapability TransferCapability
	TransferRate       TransferRate
	Multiplier         int
	UserLayer1         UserLayer1
	UserLayer2         int
	UserLayer3         int
	RateAdaption       int
	BearerSet          bool

	// Progress indicator.
	ProgressCoding    int
	ProgressLocation  int
	ProgressIndicator int
	ProgressSet       bool

	// Cause.
	CauseCoding   int
	CauseLocation int
	CauseValue    int
	CauseSet      bool

	// Calling party number.
	CallingPlan         NumberingPlan
	CallingPresentation Presentation
	CallingScreening    Screening
	CallingNumber       string

	// Called party number.
	CalledPlan   NumberingPlan
	CalledNumber string

	// Redirecting number.
	RedirectPlan         NumberingPlan
	RedirectPresentation Presentation
	RedirectReason       RedirectReason
	RedirectNumber       string
	RedirectSet          bool

	// Restart indicator.
	RestartClass RestartClass

	// Supplemented features (SPEC_FULL.md).
	NotificationIndicator int
	NotificationSet       bool
	SendingComplete       bool
	FacilityRaw           []byte
}

// NewCallFields returns a CallFields with the -1/unset sentinels the
// spec requires for channel/DS1/slotmap.
func NewCallFields() CallFields {
	return CallFields{
		ChannelNumber: -1,
		DS1Identifier: -1,
		SlotMap:       -1,
	}
}

// Decoder parses the content bytes of one IE occurrence into fields.
type Decoder func(fields *CallFields, msgType l3msg.Type, data []byte) error

// Encoder renders fields into the content bytes of one IE occurrence.
// A nil, nil return means "omit this IE". A non-nil error aborts the
// whole message build.
type Encoder func(fields *CallFields, msgType l3msg.Type) ([]byte, error)

// Dumper renders a human-readable trace of an IE's raw content.
type Dumper func(data []byte) string

// Codec is the {decode, encode, dump} triple for one IE identifier.
type Codec struct {
	ID     Identifier
	Name   string
	Decode Decoder
	Encode Encoder
	Dump   Dumper
}

// Table is the IE identifier -> Codec registry.
type Table struct {
	codecs map[Identifier]*Codec
}

// NewTable builds the table of IEs this core implements. It is built
// fresh per call rather than held in a package-level var, so nothing
// here is global mutable state (§9).
func NewTable() *Table {
	t := &Table{codecs: make(map[Identifier]*Codec)}
	for _, c := range []*Codec{
		bearerCapabilityCodec(),
		channelIdentificationCodec(),
		progressIndicatorCodec(),
		causeCodec(),
		callingPartyNumberCodec(),
		calledPartyNumberCodec(),
		redirectingNumberCodec(),
		restartIndicatorCodec(),
		facilityCodec(),
		notificationIndicatorCodec(),
	} {
		t.codecs[c.ID] = c
	}
	return t
}

// Lookup returns the codec for id, if this core implements it.
func (t *Table) Lookup(id Identifier) (*Codec, bool) {
	c, ok := t.codecs[id]
	return c, ok
}

// Build encodes the IEs named in order, in that fixed order, appending
// identifier+length+content for every encoder that doesn't omit its
// IE. It aborts and returns an error if any encoder does.
func (t *Table) Build(order []Identifier, fields *CallFields, msgType l3msg.Type) ([]byte, error) {
	out := make([]byte, 0, 64)
	for _, id := range order {
		if id == IDSendingComplete {
			if fields.SendingComplete {
				out = append(out, byte(IDSendingComplete))
			}
			continue
		}
		c, ok := t.codecs[id]
		if !ok {
			continue
		}
		content, err := c.Encode(fields, msgType)
		if err != nil {
			return nil, fmt.Errorf("ie: encoding %s: %w", c.Name, err)
		}
		if content == nil {
			continue
		}
		out = append(out, byte(id), byte(len(content)))
		out = append(out, content...)
	}
	return out, nil
}

// Parse walks buf as a sequence of IEs, dispatching each to its
// decoder. Unknown IEs are logged and skipped by length+2. An IE whose
// declared length exceeds the remaining buffer is a protocol error:
// Parse returns an error and the caller drops the whole message
// without emitting an event (§4.G).
func (t *Table) Parse(buf []byte, fields *CallFields, msgType l3msg.Type) error {
	pos := 0
	for pos < len(buf) {
		id := buf[pos]
		if isOneOctetForm(id) {
			if Identifier(id) == IDSendingComplete {
				fields.SendingComplete = true
			}
			pos++
			continue
		}
		if pos+1 >= len(buf) {
			return fmt.Errorf("ie: truncated IE header at offset %d", pos)
		}
		length := int(buf[pos+1])
		if pos+2+length > len(buf) {
			return fmt.Errorf("ie: IE %#02x declares length %d exceeding message bounds", id, length)
		}
		content := buf[pos+2 : pos+2+length]
		c, ok := t.codecs[Identifier(id)]
		if !ok {
			log.Warnf("[IE] unknown information element %#02x (len %d), skipping", id, length)
			pos += 2 + length
			continue
		}
		if err := c.Decode(fields, msgType, content); err != nil {
			log.Warnf("[IE] failed to decode %s: %v", c.Name, err)
		}
		pos += 2 + length
	}
	return nil
}
