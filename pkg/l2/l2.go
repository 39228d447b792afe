// Package l2 implements the Q.921 LAPD peer engine: the SABME/UA
// handshake, I/S/U frame dispatch, sliding-window accounting and the
// T200/T203/SABME timers that keep a single D-channel link up. It is
// grounded on libpri's q921.c state machine, re-expressed with the
// teacher's timer-driven service idiom (nmt.go's single-mutex state
// machine plus scheduled callbacks) in place of q921.c's process-wide
// globals (see DESIGN.md, "Global mutable state").
package l2

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/gopri/pri/pkg/frame"
	"github.com/gopri/pri/pkg/sched"
)

// Window is the maximum number of unacknowledged I-frames in flight,
// fixed at 7 (the standard LAPD modulo-128 window with k=7).
const Window = 7

// T200Ms and T203Ms are the default timer durations in milliseconds.
// The SABME timer reuses T200Ms (§4.D).
const (
	T200Ms = 1000
	T203Ms = 10000
)

// State is the link state per §4.D.
type State int

const (
	StateReleased State = iota
	StateAwaitingEstablish
	StateEstablished
)

func (s State) String() string {
	switch s {
	case StateReleased:
		return "RELEASED"
	case StateAwaitingEstablish:
		return "AWAITING_ESTABLISH"
	case StateEstablished:
		return "ESTABLISHED"
	default:
		return "UNKNOWN"
	}
}

// Writer is anything an Engine can hand finished frame octets to. A
// raw D-channel socket or an in-memory virtual pipe both satisfy it.
type Writer interface {
	Write(p []byte) error
}

// Callbacks are the upward notifications an Engine raises. All are
// optional; a nil callback is simply not invoked.
type Callbacks struct {
	// Up fires when the link transitions to ESTABLISHED.
	Up func()
	// Down fires when the link transitions away from ESTABLISHED (or
	// fails to come up).
	Down func()
	// ConfigError fires when the peer's role collides with ours
	// (NETWORK/NETWORK or CPE/CPE), a fatal misconfiguration.
	ConfigError func(reason string)
	// Receive fires once per delivered I-frame payload, in order.
	Receive func(payload []byte)
}

// Engine is one D-channel's Q.921 peer engine. It is single-threaded
// and non-reentrant: callers must not invoke Engine methods from
// inside a Callbacks handler triggered by the same Engine, mirroring
// the scheduler's own non-reentrancy contract.
type Engine struct {
	role  frame.Role
	w     Writer
	sched *sched.Scheduler
	cb    Callbacks

	addr frame.Address

	state State

	vs, va, vr uint8 // send / ack / receive sequence numbers, mod 128
	vna        uint8 // last n(r) we have communicated to the peer
	retrans    int
	solicitF   bool
	retransmitting bool

	queue txQueue

	t200ID int
	t203ID int
	sabmeID int
}

// New creates an Engine in the RELEASED state. role determines which
// side of the SAPI/TEI handshake asymmetry (C/R bit convention) this
// engine occupies.
func New(role frame.Role, w Writer, scheduler *sched.Scheduler, cb Callbacks) *Engine {
	return &Engine{
		role:  role,
		w:     w,
		sched: scheduler,
		cb:    cb,
		addr: frame.Address{
			SAPI: frame.SAPICallControl,
			TEI:  0,
		},
	}
}

// State reports the current link state.
func (e *Engine) State() State {
	return e.state
}

// Start brings the link up from RELEASED: resets all counters, sends
// SABME with P=1 and arms the SABME timer (§4.D Startup).
func (e *Engine) Start() {
	e.resetCounters()
	e.state = StateAwaitingEstablish
	e.armSabmeTimer()
	e.sendSABME(true)
}

func (e *Engine) resetCounters() {
	e.vs, e.va, e.vr, e.vna = 0, 0, 0, 0
	e.retrans = 0
	e.solicitF = false
	e.retransmitting = false
	e.queue.reset()
}

func (e *Engine) cancelAllTimers() {
	e.sched.Cancel(e.t200ID)
	e.sched.Cancel(e.t203ID)
	e.sched.Cancel(e.sabmeID)
	e.t200ID, e.t203ID, e.sabmeID = 0, 0, 0
}

func (e *Engine) armT200() {
	e.sched.Cancel(e.t200ID)
	e.t200ID = e.sched.Schedule(T200Ms, func(any) { e.onT200() }, nil)
}

func (e *Engine) armT203() {
	e.sched.Cancel(e.t203ID)
	e.t203ID = e.sched.Schedule(T203Ms, func(any) { e.onT203() }, nil)
}

func (e *Engine) armSabmeTimer() {
	e.sched.Cancel(e.sabmeID)
	e.sabmeID = e.sched.Schedule(T200Ms, func(any) { e.onSabmeTimer() }, nil)
}

// dchannelUp is q921_dchannel_up: reset all counters except role,
// cancel the SABME timer, start T203, emit DCHAN_UP.
func (e *Engine) dchannelUp() {
	e.resetCounters()
	e.sched.Cancel(e.sabmeID)
	e.sabmeID = 0
	e.state = StateEstablished
	e.armT203()
	if e.cb.Up != nil {
		e.cb.Up()
	}
}

// dchannelDown cancels all L2 timers, resets counters, emits
// DCHAN_DOWN.
func (e *Engine) dchannelDown() {
	e.cancelAllTimers()
	e.resetCounters()
	e.state = StateReleased
	if e.cb.Down != nil {
		e.cb.Down()
	}
}

func (e *Engine) onSabmeTimer() {
	if e.state != StateAwaitingEstablish {
		return
	}
	log.Debug("[L2] SABME timer fired, retransmitting SABME")
	e.sendSABME(true)
	e.armSabmeTimer()
}

func (e *Engine) onT200() {
	if e.state != StateEstablished {
		return
	}
	if !e.queue.empty() {
		e.retransmitHead()
		e.armT200()
		return
	}
	if e.solicitF {
		e.sendRR(true, true)
		e.armT200()
	}
}

func (e *Engine) onT203() {
	if e.state != StateEstablished {
		return
	}
	if e.queue.empty() && !e.solicitF {
		e.sendRR(true, true)
		e.solicitF = true
	}
	e.armT203()
}

// Send enqueues payload as a new outstanding I-frame (component C's
// enqueue) and, unless a retransmission is already in flight, writes
// it immediately. A failed write takes the link down (RELEASED,
// DCHAN_DOWN) and returns the write error.
func (e *Engine) Send(payload []byte) error {
	if e.state != StateEstablished {
		return fmt.Errorf("l2: send while link not established (state=%s)", e.state)
	}
	ctl := frame.Control{Type: frame.TypeI, NS: e.vs, NR: e.vr, PF: false}
	buf := e.buildFrame(true, ctl, payload)
	e.queue.append(e.vs, buf)
	e.vs = (e.vs + 1) & 0x7f
	e.vna = e.vr
	if !e.retransmitting {
		if err := e.w.Write(buf); err != nil {
			e.dchannelDown()
			return err
		}
		e.armT200()
	}
	return nil
}

func (e *Engine) ackTo(nr uint8) {
	if nr != e.va && !seqInRange(nr, e.va, (e.vs+1)&0x7f) {
		log.Warnf("[L2] n(r)=%d outside window (v(a)=%d, v(s)=%d), ignoring", nr, e.va, e.vs)
		return
	}
	e.queue.dropThrough(e.va, nr)
	e.retrans = 0
	e.va = nr
	e.retransmitting = false
	if e.queue.empty() {
		e.sched.Cancel(e.t200ID)
		e.t200ID = 0
	}
}

func (e *Engine) retransmitHead() {
	head, ok := e.queue.head()
	if !ok {
		return
	}
	ctl := frame.Control{Type: frame.TypeI, NS: head.ns, NR: e.vr, PF: true}
	buf := e.buildFrame(true, ctl, framePayload(head.frame))
	e.queue.entries[0].frame = buf
	e.retransmitting = true
	e.retrans++
	if err := e.w.Write(buf); err != nil {
		log.Warnf("[L2] retransmit write failed: %v", err)
	}
	e.vna = e.vr
}

// sendRR transmits an RR supervisory frame. command distinguishes an
// unsolicited poll (command=true, typically P=1) from the response to
// a peer's poll (command=false, F=1).
func (e *Engine) sendRR(pf, command bool) {
	ctl := frame.Control{Type: frame.TypeRR, NR: e.vr, PF: pf}
	buf := e.buildFrame(command, ctl, nil)
	e.vna = e.vr
	if err := e.w.Write(buf); err != nil {
		log.Warnf("[L2] RR write failed: %v", err)
	}
}

func (e *Engine) sendSABME(pf bool) {
	ctl := frame.Control{Type: frame.TypeSABME, PF: pf}
	buf := e.buildFrame(true, ctl, nil)
	if err := e.w.Write(buf); err != nil {
		log.Warnf("[L2] SABME write failed: %v", err)
	}
}

func (e *Engine) sendUA(pf bool) {
	ctl := frame.Control{Type: frame.TypeUA, PF: pf}
	buf := e.buildFrame(false, ctl, nil)
	if err := e.w.Write(buf); err != nil {
		log.Warnf("[L2] UA write failed: %v", err)
	}
}

func (e *Engine) sendDISC(pf bool) {
	ctl := frame.Control{Type: frame.TypeDISC, PF: pf}
	buf := e.buildFrame(true, ctl, nil)
	if err := e.w.Write(buf); err != nil {
		log.Warnf("[L2] DISC write failed: %v", err)
	}
}

// buildFrame assembles address+control+payload. command reports
// whether this transmission is itself a command (true) or a response
// (false), per the C/R convention in frame.IsCommand.
func (e *Engine) buildFrame(command bool, ctl frame.Control, payload []byte) []byte {
	addr := e.addr
	addr.Command = frame.IsCommand(e.role, command)
	addrBytes := frame.EncodeAddress(addr)
	ctlBytes := frame.EncodeControl(ctl)
	out := make([]byte, 0, 2+len(ctlBytes)+len(payload))
	out = append(out, addrBytes[:]...)
	out = append(out, ctlBytes...)
	out = append(out, payload...)
	return out
}

// framePayload strips the address+control prefix off a previously
// built I-frame to recover its payload for retransmission.
func framePayload(buf []byte) []byte {
	if len(buf) < 4 {
		return nil
	}
	return buf[4:]
}

// HandleFrame decodes and dispatches one inbound frame (already
// stripped of FCS by the framer), per §4.D's receive-dispatch steps.
func (e *Engine) HandleFrame(raw []byte) error {
	if len(raw) < 2 {
		return fmt.Errorf("l2: frame too short")
	}
	addr, err := frame.DecodeAddress([2]byte{raw[0], raw[1]})
	if err != nil {
		return fmt.Errorf("l2: %w", err)
	}
	if addr.SAPI != frame.SAPICallControl {
		log.Warnf("[L2] dropping frame for SAPI=%d", addr.SAPI)
		return nil
	}
	if addr.TEI == frame.BroadcastTEI {
		log.Warnf("[L2] dropping frame for broadcast TEI")
		return nil
	}
	ctl, n, err := frame.DecodeControl(raw[2:])
	if err != nil {
		return fmt.Errorf("l2: %w", err)
	}
	payload := raw[2+n:]

	if log.IsLevelEnabled(log.TraceLevel) {
		log.Tracef("[L2] rx %s", frame.Dump(addr, ctl))
	}

	switch ctl.Type {
	case frame.TypeI:
		return e.handleIFrame(ctl, payload)
	case frame.TypeRR, frame.TypeRNR, frame.TypeREJ:
		e.handleSFrame(ctl)
		return nil
	case frame.TypeSABME:
		e.handleSABME(addr, ctl)
		return nil
	case frame.TypeUA:
		e.handleUA(ctl)
		return nil
	case frame.TypeDISC:
		e.handleDISC(ctl)
		return nil
	case frame.TypeDM:
		e.handleDM(ctl)
		return nil
	case frame.TypeFRMR, frame.TypeXID:
		log.Debugf("[L2] ignoring %s", ctl.Type)
		return nil
	default:
		log.Warnf("[L2] unknown control field, dropping frame")
		return nil
	}
}

func (e *Engine) handleIFrame(ctl frame.Control, payload []byte) error {
	if e.state != StateEstablished {
		log.Warnf("[L2] I-frame received while not established, dropping")
		return nil
	}
	e.ackTo(ctl.NR)
	switch {
	case ctl.NS == e.vr:
		e.vr = (e.vr + 1) & 0x7f
		if ctl.PF {
			e.sendRR(true, false)
		}
		if e.cb.Receive != nil {
			e.cb.Receive(payload)
		}
		if e.vna != e.vr {
			e.sendRR(false, true)
		}
	case seqWithin(ctl.NS, e.vr, Window):
		e.sendRR(false, true)
	default:
		log.Warnf("[L2] out-of-window I-frame n(s)=%d (v(r)=%d), dropping", ctl.NS, e.vr)
	}
	return nil
}

func (e *Engine) handleSFrame(ctl frame.Control) {
	e.ackTo(ctl.NR)
	if ctl.PF {
		if e.solicitF {
			e.solicitF = false
			return
		}
		e.sendRR(true, false)
	}
}

func (e *Engine) handleSABME(addr frame.Address, ctl frame.Control) {
	expected := frame.IsCommand(e.role, false)
	if addr.Command != expected {
		msg := "peer role collides with local role"
		log.Errorf("[L2] %s", msg)
		if e.cb.ConfigError != nil {
			e.cb.ConfigError(msg)
		}
		return
	}
	e.sendUA(ctl.PF)
	e.dchannelUp()
}

func (e *Engine) handleUA(ctl frame.Control) {
	if e.state == StateAwaitingEstablish {
		e.dchannelUp()
	}
}

func (e *Engine) handleDISC(ctl frame.Control) {
	e.sendUA(ctl.PF)
	e.dchannelDown()
}

func (e *Engine) handleDM(ctl frame.Control) {
	if !ctl.PF {
		e.Start()
		return
	}
	if e.state != StateReleased {
		e.dchannelDown()
	}
}
