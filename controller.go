// Package pri is the controller façade: it owns one D-channel, wires
// the Layer 2 peer engine to the Layer 3 call engine, and exposes the
// call-shaped operations and single-event-record pump an application
// drives its own loop around. It is grounded on the teacher's
// top-level Node/Process pump (canopen.go, network.go): one struct
// owning every subsystem, one Process-style entry point, callbacks
// wired at construction time rather than discovered at call time.
package pri

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gopri/pri/pkg/dchannel"
	"github.com/gopri/pri/pkg/frame"
	"github.com/gopri/pri/pkg/ie"
	"github.com/gopri/pri/pkg/l2"
	"github.com/gopri/pri/pkg/l3"
	"github.com/gopri/pri/pkg/l3msg"
	"github.com/gopri/pri/pkg/sched"
)

// readBufferSize is generous for a single Q.931 message; libpri uses
// a similarly fixed-size scratch buffer per D-channel.
const readBufferSize = 4096

// Controller drives one D-channel's worth of Layer 2 and Layer 3
// state. It is not safe for concurrent use: like libpri, it expects a
// single goroutine to own the pump.
type Controller struct {
	framer dchannel.Framer
	sched  *sched.Scheduler
	l2     *l2.Engine
	l3     *l3.Engine
	rose   ROSEHandler

	debug       DebugFlags
	messageHook func(string)

	pending Event
	rxbuf   [readBufferSize]byte
}

// NewController builds a Controller for one D-channel. role is the
// local side (NETWORK or CPE), which fixes the C/R bit convention
// (§4.A); fr is the framer
// that reads and writes raw D-channel frames, typically a
// *dchannel.RawSocket in production or a *dchannel.Virtual in tests.
func NewController(role frame.Role, fr dchannel.Framer, dlg l3.Dialect) *Controller {
	c := &Controller{framer: fr, sched: sched.New()}

	c.l2 = l2.New(role, fr, c.sched, l2.Callbacks{
		Up:   func() { c.setPending(Event{Kind: KindDChanUp}) },
		Down: func() { c.setPending(Event{Kind: KindDChanDown}) },
		ConfigError: func(reason string) {
			c.setPending(Event{Kind: KindConfigError, ConfigErrorReason: reason})
		},
		Receive: func(payload []byte) { c.l3.HandleMessage(payload) },
	})
	c.l3 = l3.New(dlg, c.l2, func(e l3.Event) { c.setPending(eventFromL3(e)) })
	return c
}

func (c *Controller) setPending(e Event) {
	if c.pending.Kind != KindNone {
		log.Warnf("[PRI] dropping %v event: event record already holds %v", e.Kind, c.pending.Kind)
		return
	}
	c.pending = e
}

// Start brings the Layer 2 link up: it sends SABME, whichever role
// this side has, and waits for the peer's UA.
func (c *Controller) Start() {
	c.l2.Start()
}

// LinkState reports the current Layer 2 state.
func (c *Controller) LinkState() l2.State {
	return c.l2.State()
}

// Pump performs one non-blocking iteration: it services any expired
// timers, then tries to read and process at most one frame from the
// D-channel, and finally returns whatever event that work produced.
// Pump never blocks; callers that want a blocking pump should use Run.
func (c *Controller) Pump() (Event, bool) {
	c.sched.Run(func() bool { return c.pending.Kind != KindNone })

	if c.pending.Kind == KindNone {
		n, err := c.framer.Read(c.rxbuf[:])
		if err != nil {
			log.Warnf("[PRI] D-channel read error: %v", err)
		} else if n > 0 {
			c.traceFrame(c.rxbuf[:n])
			if err := c.l2.HandleFrame(c.rxbuf[:n]); err != nil {
				log.Warnf("[PRI] dropping malformed frame: %v", err)
			}
		}
	}

	return c.checkEvent()
}

// traceFrame feeds a raw D-channel frame through the message hook when
// DebugL2/DebugL3 tracing is enabled, using the same frame.Dump and
// l3msg.DumpHeader helpers the engines use for their own trace
// logging, so an application's sink sees the same rendering.
func (c *Controller) traceFrame(raw []byte) {
	if c.messageHook == nil || len(raw) < 2 {
		return
	}
	addr, err := frame.DecodeAddress([2]byte{raw[0], raw[1]})
	if err != nil {
		return
	}
	ctl, n, err := frame.DecodeControl(raw[2:])
	if err != nil {
		return
	}
	c.trace(DebugL2, frame.Dump(addr, ctl))

	if addr.SAPI != frame.SAPICallControl || ctl.Type != frame.TypeI {
		return
	}
	if hdr, _, err := l3msg.DecodeHeader(raw[2+n:]); err == nil {
		c.trace(DebugL3, l3msg.DumpHeader(hdr))
	}
}

func (c *Controller) checkEvent() (Event, bool) {
	if c.pending.Kind == KindNone {
		return Event{}, false
	}
	e := c.pending
	c.pending = Event{}
	return e, true
}

// NextTimeout reports how long until the soonest armed timer expires,
// for a caller building its own select loop around Pump instead of
// using Run.
func (c *Controller) NextTimeout() (time.Duration, bool) {
	deadline, ok := c.sched.NextDeadline()
	if !ok {
		return 0, false
	}
	if d := time.Until(deadline); d > 0 {
		return d, true
	}
	return 0, true
}

// pollInterval bounds how long Run can go between Pump calls when no
// timer is armed; the D-channel read itself is non-blocking, so
// something has to keep the loop moving.
const pollInterval = 20 * time.Millisecond

// Run pumps the controller until stop is closed, invoking handle with
// every event Pump produces. It is the blocking counterpart to
// calling Pump from a caller-owned loop.
func (c *Controller) Run(stop <-chan struct{}, handle func(Event)) {
	for {
		wait := pollInterval
		if d, ok := c.NextTimeout(); ok && d < wait {
			wait = d
		}
		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		if ev, ok := c.Pump(); ok {
			handle(ev)
		}
	}
}

// ---- call-shaped operations (§4.H), delegating to the call engine ----

// NewCall allocates a fresh outgoing call reference.
func (c *Controller) NewCall() (int, error) {
	call, err := c.l3.NewCall()
	if err != nil {
		return 0, err
	}
	return int(call.CallRef), nil
}

// Dial sends an outbound SETUP for a call reference obtained from
// NewCall.
func (c *Controller) Dial(callRef int, p l3.SetupParams) error {
	if c.l2.State() != l2.StateEstablished {
		return ErrLinkNotUp
	}
	if p.Channel < 0 {
		return ErrChannelRequired
	}
	call, ok := c.l3.Directory().Find(uint16(callRef))
	if !ok {
		return ErrNoSuchCall
	}
	return c.l3.Setup(call, p)
}

// Acknowledge sends CALL PROCEEDING/ALERTING for an incoming call.
func (c *Controller) Acknowledge(callRef int, channel int, inBandInfo bool) error {
	call, ok := c.l3.Directory().Find(uint16(callRef))
	if !ok {
		return ErrNoSuchCall
	}
	return c.l3.Acknowledge(call, channel, inBandInfo)
}

// Answer sends CONNECT for an incoming call.
func (c *Controller) Answer(callRef int, nonISDN bool) error {
	call, ok := c.l3.Directory().Find(uint16(callRef))
	if !ok {
		return ErrNoSuchCall
	}
	return c.l3.Answer(call, nonISDN)
}

// Hangup sends DISCONNECT with cause (cause < 0 for the default
// normal-clearing cause).
func (c *Controller) Hangup(callRef int, cause int) error {
	call, ok := c.l3.Directory().Find(uint16(callRef))
	if !ok {
		return ErrNoSuchCall
	}
	return c.l3.Hangup(call, cause)
}

// Information sends overlap-dial digits for an existing call.
func (c *Controller) Information(callRef int, digits string) error {
	call, ok := c.l3.Directory().Find(uint16(callRef))
	if !ok {
		return ErrNoSuchCall
	}
	return c.l3.Information(call, digits)
}

// Reset sends an outbound RESTART for one call's channel.
func (c *Controller) Reset(callRef int, class ie.RestartClass) error {
	call, ok := c.l3.Directory().Find(uint16(callRef))
	if !ok {
		return ErrNoSuchCall
	}
	return c.l3.Reset(call, class)
}

// RestartAll sends an outbound RESTART carrying class for every live
// call (the restart-class directory walk).
func (c *Controller) RestartAll(class ie.RestartClass) {
	c.l3.RestartAll(class)
}

// SetDebugLevel adjusts the package-wide logrus level used by every
// engine's bracketed-tag trace lines ([L2], [L3], [IE], [SCHED]).
func SetDebugLevel(level log.Level) {
	log.SetLevel(level)
}
