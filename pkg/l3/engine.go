// Package l3 implements the Q.931 call directory and call engine
// (§4.E, §4.G): the state each call implies by which messages have
// been sent or received, the IE-table-driven message senders, and the
// receive dispatch table. It is grounded on libpri's q931.c
// send_setup/q931_receive family, re-expressed with the teacher's
// single-event-callback service idiom (nmt.go's AddStateChangeCallback)
// in place of libpri's caller-supplied pri_event pointer.
package l3

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/gopri/pri/pkg/ie"
	"github.com/gopri/pri/pkg/l3msg"
)

// causeBearerNotImplemented is raised when an incoming SETUP asks for
// a bearer this core does not carry (§4.G); ie.DefaultCause covers the
// normal-clearing default cause for Hangup(-1).
const causeBearerNotImplemented = 65

var (
	setupOrder          = []ie.Identifier{ie.IDBearerCapability, ie.IDChannelIdentification, ie.IDProgressIndicator, ie.IDCallingPartyNumber, ie.IDCalledPartyNumber}
	callProceedingOrder = []ie.Identifier{ie.IDChannelIdentification}
	alertingOrder       = []ie.Identifier{ie.IDChannelIdentification, ie.IDProgressIndicator}
	connectOrder        = []ie.Identifier{ie.IDProgressIndicator}
	disconnectOrder     = []ie.Identifier{ie.IDCause}
	releaseOrder        = []ie.Identifier{ie.IDCause}
	restartOrder        = []ie.Identifier{ie.IDChannelIdentification, ie.IDRestartIndicator}
	restartAckOrder     = []ie.Identifier{ie.IDChannelIdentification, ie.IDRestartIndicator}
	facilityOrder       = []ie.Identifier{ie.IDFacility}
)

// Sender is the L2 engine's outbound half, as implemented by
// *pkg/l2.Engine.
type Sender interface {
	Send(payload []byte) error
}

// Engine is the Layer 3 call-control driver for one controller.
type Engine struct {
	dir      *Directory
	table    *ie.Table
	dlg      Dialect
	l2       Sender
	notify   func(Event)
	facility func(callRef uint16, raw []byte) ([]byte, error)
}

// SetFacilityHandler installs the callback invoked with the content of
// the FACILITY IE of an incoming FACILITY message. A FACILITY IE that
// rides another message type is stored in the call's FacilityRaw but
// does not invoke the callback. A non-nil return is sent back as a new
// FACILITY message on the same call. pri.Controller.SetROSEHandler
// wires an application's ROSEHandler through here.
func (e *Engine) SetFacilityHandler(fn func(callRef uint16, raw []byte) ([]byte, error)) {
	e.facility = fn
}

// New creates a call engine bound to one dialect profile and one L2
// sender. notify is called synchronously with at most one Event per
// inbound message, mirroring the controller's single-event-per-pump
// contract (§4.H).
func New(dlg Dialect, l2 Sender, notify func(Event)) *Engine {
	return &Engine{
		dir:    NewDirectory(),
		table:  ie.NewTableForDialect(dlg),
		dlg:    dlg,
		l2:     l2,
		notify: notify,
	}
}

func (e *Engine) fire(ev Event) {
	if e.notify != nil {
		e.notify(ev)
	}
}

func (e *Engine) send(call *Call, msgType l3msg.Type, order []ie.Identifier) error {
	body, err := e.table.Build(order, &call.CallFields, msgType)
	if err != nil {
		return fmt.Errorf("l3: building %s: %w", msgType, err)
	}
	hdr := l3msg.EncodeHeader(l3msg.Header{
		ProtocolDiscriminator: l3msg.PDCallControl,
		CallRef:               l3msg.CallRef{Value: call.CallRef, Origin: call.Origin},
		MessageType:           msgType,
	})
	return e.l2.Send(append(hdr, body...))
}

// Directory exposes the call directory for diagnostics (e.g. the
// restart-class directory walk) and tests.
func (e *Engine) Directory() *Directory {
	return e.dir
}

// ---- Upper-layer call-shaped operations (§4.H) ----

// NewCall allocates a fresh outgoing call record.
func (e *Engine) NewCall() (*Call, error) {
	return e.dir.AllocateNew()
}

// SetupParams is everything an outbound SETUP needs from the caller,
// grouped to keep the Setup signature from growing unbounded as
// SPEC_FULL.md's supplemented fields accrue.
type SetupParams struct {
	Channel             int
	ChannelExclusive    bool
	NonISDN             bool
	CallingNumber       string
	CallingPlan         ie.NumberingPlan
	CallingPresentation ie.Presentation
	CalledNumber        string
	CalledPlan          ie.NumberingPlan
}

// Setup sends an outbound SETUP for a call allocated by NewCall
// (§4.G "Outbound SETUP").
func (e *Engine) Setup(call *Call, p SetupParams) error {
	if p.Channel < 0 {
		return fmt.Errorf("l3: setup requires a channel")
	}
	call.BearerSet = true
	call.TransferCapability = ie.TransferCapabilitySpeech
	call.TransferRate = ie.TransferRate64kCircuit
	call.UserLayer1 = ie.UserLayer1ULaw

	call.ChannelNumber = p.Channel
	call.ChannelExplicit = true
	if p.ChannelExclusive {
		call.ChannelSelection = ie.ChannelSelectionExclusive
	} else {
		call.ChannelSelection = ie.ChannelSelectionPreferred
	}

	call.CallingNumber = p.CallingNumber
	call.CallingPlan = p.CallingPlan
	call.CallingPresentation = p.CallingPresentation
	if e.dlg.MustNormalizePresentation() {
		call.CallingScreening = ie.ScreeningNetworkProvided
	}
	call.CalledNumber = p.CalledNumber
	call.CalledPlan = p.CalledPlan

	if p.NonISDN && e.dlg.SetupWantsNonISDNProgress() {
		call.ProgressSet = true
		call.ProgressIndicator = ie.ProgressCallerNonISDN
	}

	if err := e.send(call, l3msg.TypeSetup, setupOrder); err != nil {
		return err
	}
	call.Alive = true
	return nil
}

// Acknowledge sends CALL PROCEEDING (first call only) then ALERTING,
// for an incoming call the upper layer is ready to ring (§4.G).
func (e *Engine) Acknowledge(call *Call, channel int, inBandInfo bool) error {
	call.ChannelNumber = channel
	call.ChannelExplicit = true
	if !call.ProceedingSent {
		if err := e.send(call, l3msg.TypeCallProceeding, callProceedingOrder); err != nil {
			return err
		}
		call.ProceedingSent = true
	}
	if inBandInfo {
		call.ProgressSet = true
		call.ProgressIndicator = ie.ProgressInBandAvailable
	}
	return e.send(call, l3msg.TypeAlerting, alertingOrder)
}

// Answer sends CONNECT for an incoming call (§4.G).
func (e *Engine) Answer(call *Call, nonISDN bool) error {
	if nonISDN && !e.dlg.IsDMS100() {
		call.ProgressSet = true
		call.ProgressIndicator = ie.ProgressCalledNonISDN
	}
	return e.send(call, l3msg.TypeConnect, connectOrder)
}

// Hangup marks the call not alive and sends DISCONNECT with cause
// (§4.G). cause < 0 substitutes the default normal-clearing cause.
func (e *Engine) Hangup(call *Call, cause int) error {
	call.Alive = false
	call.CauseSet = true
	if cause < 0 {
		cause = ie.DefaultCause
	}
	call.CauseValue = cause
	return e.send(call, l3msg.TypeDisconnect, disconnectOrder)
}

// Information sends an INFORMATION message carrying overlap-dial
// digits, a supplemented feature (SPEC_FULL.md) beyond the base
// call-state table.
func (e *Engine) Information(call *Call, digits string) error {
	call.CalledNumber = digits
	return e.send(call, l3msg.TypeInformation, []ie.Identifier{ie.IDCalledPartyNumber})
}

// Reset sends an outbound RESTART of the given class.
func (e *Engine) Reset(call *Call, class ie.RestartClass) error {
	call.RestartClass = class
	return e.send(call, l3msg.TypeRestart, restartOrder)
}

// ---- Receive dispatch (§4.G) ----

// HandleMessage parses one inbound Layer 3 message and dispatches it,
// firing at most one Event. A malformed message is logged and dropped
// without an event, per §4.G's parsing-order rule.
func (e *Engine) HandleMessage(raw []byte) {
	hdr, n, err := l3msg.DecodeHeader(raw)
	if err != nil {
		log.Warnf("[L3] dropping malformed message: %v", err)
		return
	}
	body := raw[n:]

	if log.IsLevelEnabled(log.TraceLevel) {
		log.Tracef("[L3] rx %s", l3msg.DumpHeader(hdr))
	}

	if hdr.ProtocolDiscriminator == l3msg.PDMaintenance {
		e.reflectMaintenance(hdr)
		return
	}
	if hdr.ProtocolDiscriminator != l3msg.PDCallControl {
		log.Warnf("[L3] unsupported protocol discriminator %#02x, dropping", hdr.ProtocolDiscriminator)
		return
	}

	switch hdr.MessageType {
	case l3msg.TypeSetup:
		e.handleSetup(hdr, body)
	case l3msg.TypeAlerting:
		e.handleAlerting(hdr, body)
	case l3msg.TypeConnect:
		e.handleConnect(hdr, body)
	case l3msg.TypeDisconnect:
		e.handleDisconnect(hdr, body)
	case l3msg.TypeRelease:
		e.handleRelease(hdr, body)
	case l3msg.TypeReleaseComplete:
		e.handleReleaseComplete(hdr, body)
	case l3msg.TypeRestart:
		e.handleRestart(hdr, body)
	case l3msg.TypeFacility:
		e.handleFacility(hdr, body)
	case l3msg.NotifyType:
		e.handleNotify(hdr, body)
	default:
		log.Warnf("[L3] unhandled message type %s, dropping", hdr.MessageType)
	}
}

func (e *Engine) reflectMaintenance(hdr l3msg.Header) {
	reply := l3msg.Header{
		ProtocolDiscriminator: l3msg.PDMaintenance,
		CallRef:               hdr.CallRef,
		MessageType:           l3msg.Type(uint8(hdr.MessageType) - 0x08),
	}
	if err := e.l2.Send(l3msg.EncodeHeader(reply)); err != nil {
		log.Warnf("[L3] maintenance reflection failed: %v", err)
	}
}

func (e *Engine) handleSetup(hdr l3msg.Header, body []byte) {
	call := e.dir.FindOrCreate(hdr.CallRef.Value, hdr.CallRef.Origin)
	call.CallFields = ie.NewCallFields()
	if err := e.table.Parse(body, &call.CallFields, hdr.MessageType); err != nil {
		log.Warnf("[L3] dropping malformed SETUP: %v", err)
		e.dir.Destroy(call.CallRef)
		return
	}
	call.Alive = true

	if call.TransferRate != ie.TransferRate64kCircuit {
		call.CauseSet = true
		call.CauseValue = causeBearerNotImplemented
		_ = e.send(call, l3msg.TypeRelease, releaseOrder)
		call.Alive = false
		e.dir.Destroy(call.CallRef)
		return
	}

	e.fire(Event{
		Kind:                EventRing,
		CallRef:             call.CallRef,
		CallHandle:          call.CallRef,
		Channel:             call.ChannelNumber,
		CallingNumber:       call.CallingNumber,
		CallingPresentation: call.CallingPresentation,
		CallingPlan:         call.CallingPlan,
		CalledNumber:        call.CalledNumber,
		CalledPlan:          call.CalledPlan,
		Flexible:            call.ChannelSelection == ie.ChannelSelectionPreferred,
		TransferCapability:  call.TransferCapability,
	})
}

func (e *Engine) handleAlerting(hdr l3msg.Header, body []byte) {
	call, ok := e.dir.Find(hdr.CallRef.Value)
	if !ok {
		log.Warnf("[L3] ALERTING for unknown call reference %d", hdr.CallRef.Value)
		return
	}
	if err := e.table.Parse(body, &call.CallFields, hdr.MessageType); err != nil {
		log.Warnf("[L3] malformed ALERTING: %v", err)
		return
	}
	e.fire(Event{Kind: EventRinging, CallRef: call.CallRef, CallHandle: call.CallRef, Channel: call.ChannelNumber})
}

func (e *Engine) handleConnect(hdr l3msg.Header, body []byte) {
	call, ok := e.dir.Find(hdr.CallRef.Value)
	if !ok {
		log.Warnf("[L3] CONNECT for unknown call reference %d", hdr.CallRef.Value)
		return
	}
	if err := e.table.Parse(body, &call.CallFields, hdr.MessageType); err != nil {
		log.Warnf("[L3] malformed CONNECT: %v", err)
		return
	}
	if err := e.send(call, l3msg.TypeConnectAck, nil); err != nil {
		log.Warnf("[L3] CONNECT ACK send failed: %v", err)
	}
	e.fire(Event{Kind: EventAnswer, CallRef: call.CallRef, CallHandle: call.CallRef, Channel: call.ChannelNumber})
}

func (e *Engine) handleDisconnect(hdr l3msg.Header, body []byte) {
	call, ok := e.dir.Find(hdr.CallRef.Value)
	if !ok {
		log.Warnf("[L3] DISCONNECT for unknown call reference %d", hdr.CallRef.Value)
		return
	}
	wasAlive := call.Alive
	if err := e.table.Parse(body, &call.CallFields, hdr.MessageType); err != nil {
		log.Warnf("[L3] malformed DISCONNECT: %v", err)
	}
	call.Alive = false
	call.CauseSet = false
	if err := e.send(call, l3msg.TypeRelease, nil); err != nil {
		log.Warnf("[L3] RELEASE send failed: %v", err)
	}
	if wasAlive {
		e.fire(Event{Kind: EventHangup, CallRef: call.CallRef, CallHandle: call.CallRef, Channel: call.ChannelNumber, Cause: call.CauseValue})
	}
}

func (e *Engine) handleRelease(hdr l3msg.Header, body []byte) {
	call, ok := e.dir.Find(hdr.CallRef.Value)
	if !ok {
		return
	}
	_ = e.table.Parse(body, &call.CallFields, hdr.MessageType)
	wasAlive := call.Alive
	if err := e.send(call, l3msg.TypeReleaseComplete, nil); err != nil {
		log.Warnf("[L3] RELEASE COMPLETE send failed: %v", err)
	}
	e.dir.Destroy(call.CallRef)
	if wasAlive {
		e.fire(Event{Kind: EventHangup, CallRef: call.CallRef, CallHandle: call.CallRef, Cause: call.CauseValue})
	}
}

func (e *Engine) handleReleaseComplete(hdr l3msg.Header, body []byte) {
	call, ok := e.dir.Find(hdr.CallRef.Value)
	if !ok {
		return
	}
	_ = e.table.Parse(body, &call.CallFields, hdr.MessageType)
	wasAlive := call.Alive
	e.dir.Destroy(call.CallRef)
	if wasAlive {
		e.fire(Event{Kind: EventHangup, CallRef: call.CallRef, CallHandle: call.CallRef, Cause: call.CauseValue})
	}
}

func (e *Engine) handleRestart(hdr l3msg.Header, body []byte) {
	call := e.dir.FindOrCreate(hdr.CallRef.Value, hdr.CallRef.Origin)
	call.ChannelNumber = -1
	call.DS1Identifier = -1
	call.SlotMap = -1
	if err := e.table.Parse(body, &call.CallFields, hdr.MessageType); err != nil {
		log.Warnf("[L3] malformed RESTART: %v", err)
	}
	if err := e.send(call, l3msg.TypeRestartAck, restartAckOrder); err != nil {
		log.Warnf("[L3] RESTART ACK send failed: %v", err)
	}
	e.fire(Event{Kind: EventRestart, CallRef: call.CallRef, RestartClass: int(call.RestartClass)})
}

func (e *Engine) handleFacility(hdr l3msg.Header, body []byte) {
	call, ok := e.dir.Find(hdr.CallRef.Value)
	if !ok {
		call = e.dir.FindOrCreate(hdr.CallRef.Value, hdr.CallRef.Origin)
	}
	if err := e.table.Parse(body, &call.CallFields, hdr.MessageType); err != nil {
		log.Warnf("[L3] malformed FACILITY: %v", err)
		return
	}
	if e.facility == nil {
		return
	}
	reply, err := e.facility(call.CallRef, call.FacilityRaw)
	if err != nil {
		log.Warnf("[L3] facility handler error: %v", err)
		return
	}
	if reply == nil {
		return
	}
	call.FacilityRaw = reply
	if err := e.send(call, l3msg.TypeFacility, facilityOrder); err != nil {
		log.Warnf("[L3] FACILITY reply send failed: %v", err)
	}
}

// handleNotify decodes an incoming NOTIFY message and logs its
// notification indicator. The call engine has no NOTIFY event of its
// own to raise; libpri likewise treats NOTIFY as an informational
// message the application layer rarely acts on.
func (e *Engine) handleNotify(hdr l3msg.Header, body []byte) {
	call, ok := e.dir.Find(hdr.CallRef.Value)
	if !ok {
		log.Warnf("[L3] NOTIFY for unknown call reference %d, dropping", hdr.CallRef.Value)
		return
	}
	if err := e.table.Parse(body, &call.CallFields, hdr.MessageType); err != nil {
		log.Warnf("[L3] malformed NOTIFY: %v", err)
		return
	}
	if call.NotificationSet {
		log.Infof("[L3] call %d: NOTIFY indicator=%d", call.CallRef, call.NotificationIndicator)
	}
}

// RestartAll walks the directory sending an outbound RESTART that
// carries class for every live call (the restart-class directory
// walk, SPEC_FULL.md Supplemented Features). Calls that are not alive
// are skipped; no other filtering is applied.
func (e *Engine) RestartAll(class ie.RestartClass) {
	e.dir.Walk(func(c *Call) bool {
		if c.Alive {
			_ = e.Reset(c, class)
		}
		return true
	})
}
