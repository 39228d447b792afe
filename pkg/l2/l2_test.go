package l2

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopri/pri/pkg/frame"
	"github.com/gopri/pri/pkg/sched"
)

// fakeWriter records every frame written to the wire, and optionally
// loops it back to a peer engine to simulate a two-sided exchange.
type fakeWriter struct {
	frames [][]byte
	loop   *Engine
}

func (w *fakeWriter) Write(p []byte) error {
	cp := append([]byte(nil), p...)
	w.frames = append(w.frames, cp)
	if w.loop != nil {
		return w.loop.HandleFrame(cp)
	}
	return nil
}

func (w *fakeWriter) last() []byte {
	if len(w.frames) == 0 {
		return nil
	}
	return w.frames[len(w.frames)-1]
}

func newClock(start time.Time) (sched.Clock, func(time.Duration)) {
	now := start
	clock := func() time.Time { return now }
	advance := func(d time.Duration) { now = now.Add(d) }
	return clock, advance
}

func TestLinkBringUpAsNetwork(t *testing.T) {
	clock, _ := newClock(time.Unix(0, 0))
	s := sched.NewWithClock(clock)
	w := &fakeWriter{}

	var upCount int
	e := New(frame.RoleNetwork, w, s, Callbacks{Up: func() { upCount++ }})
	e.Start()

	require.Len(t, w.frames, 1)
	addr, err := frame.DecodeAddress([2]byte{w.frames[0][0], w.frames[0][1]})
	require.NoError(t, err)
	assert.True(t, addr.Command, "SABME from NETWORK must carry C/R=1")
	ctl, _, err := frame.DecodeControl(w.frames[0][2:])
	require.NoError(t, err)
	assert.Equal(t, frame.TypeSABME, ctl.Type)
	assert.True(t, ctl.PF)
	assert.Equal(t, StateAwaitingEstablish, e.State())

	// Peer replies UA(P=1, C/R=0); handleUA accepts a UA whatever its
	// C/R bit.
	uaAddr := frame.Address{SAPI: frame.SAPICallControl, TEI: 0, Command: false}
	addrBytes := frame.EncodeAddress(uaAddr)
	ctlBytes := frame.EncodeControl(frame.Control{Type: frame.TypeUA, PF: true})
	ua := append(addrBytes[:], ctlBytes...)

	require.NoError(t, e.HandleFrame(ua))
	assert.Equal(t, 1, upCount)
	assert.Equal(t, StateEstablished, e.State())
	assert.NotZero(t, e.t203ID, "T203 must be armed on DCHAN_UP")
	assert.Zero(t, e.sabmeID, "SABME timer must be cancelled on DCHAN_UP")
}

func TestT200RetransmitsOnTimeout(t *testing.T) {
	clock, advance := newClock(time.Unix(0, 0))
	s := sched.NewWithClock(clock)
	w := &fakeWriter{}
	e := New(frame.RoleNetwork, w, s, Callbacks{})
	e.state = StateEstablished
	e.armT203()

	require.NoError(t, e.Send([]byte{0x01, 0x02, 0x03}))
	require.Len(t, w.frames, 1)
	firstRetrans := e.retrans

	advance(1100 * time.Millisecond)
	s.Run(func() bool { return false })

	require.Len(t, w.frames, 2, "I-frame must be retransmitted")
	ctl, _, err := frame.DecodeControl(w.frames[1][2:])
	require.NoError(t, err)
	assert.Equal(t, frame.TypeI, ctl.Type)
	assert.True(t, ctl.PF, "retransmission must set P=1")
	assert.Equal(t, firstRetrans+1, e.retrans)
	assert.Equal(t, w.frames[0][4:], w.frames[1][4:], "payload must be unchanged across retransmit")
}

func TestQuiescentPointArmsExactlyOneTimer(t *testing.T) {
	clock, _ := newClock(time.Unix(0, 0))
	s := sched.NewWithClock(clock)
	w := &fakeWriter{}
	e := New(frame.RoleNetwork, w, s, Callbacks{})
	e.dchannelUp()

	armed := 0
	for _, id := range []int{e.t200ID, e.t203ID, e.sabmeID} {
		if id != 0 {
			armed++
		}
	}
	assert.Equal(t, 1, armed, "exactly one of T200/T203/SABME timer should be armed at quiescence")
	assert.NotZero(t, e.t203ID)
}

func TestSABMERoleCollisionIsFatal(t *testing.T) {
	clock, _ := newClock(time.Unix(0, 0))
	s := sched.NewWithClock(clock)
	w := &fakeWriter{}
	var configErr string
	e := New(frame.RoleNetwork, w, s, Callbacks{ConfigError: func(reason string) { configErr = reason }})

	// A peer that is also NETWORK sends SABME with the same C/R
	// convention we would use ourselves: collision.
	addr := frame.Address{SAPI: frame.SAPICallControl, TEI: 0, Command: frame.IsCommand(frame.RoleNetwork, true)}
	addrBytes := frame.EncodeAddress(addr)
	ctlBytes := frame.EncodeControl(frame.Control{Type: frame.TypeSABME, PF: true})
	sabme := append(addrBytes[:], ctlBytes...)

	require.NoError(t, e.HandleFrame(sabme))
	assert.NotEmpty(t, configErr)
	assert.Equal(t, StateReleased, e.State())
}

func TestTwoEnginesHandshakeOverLoopback(t *testing.T) {
	clock, _ := newClock(time.Unix(0, 0))
	sNet := sched.NewWithClock(clock)
	sCPE := sched.NewWithClock(clock)

	netWriter := &fakeWriter{}
	cpeWriter := &fakeWriter{}

	var netUp, cpeUp bool
	network := New(frame.RoleNetwork, netWriter, sNet, Callbacks{Up: func() { netUp = true }})
	cpe := New(frame.RoleCPE, cpeWriter, sCPE, Callbacks{Up: func() { cpeUp = true }})
	netWriter.loop = cpe
	cpeWriter.loop = network

	network.Start()
	assert.True(t, netUp)
	assert.True(t, cpeUp)
	assert.Equal(t, StateEstablished, network.State())
	assert.Equal(t, StateEstablished, cpe.State())
}
