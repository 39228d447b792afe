package l3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gopri/pri/pkg/dialect"
	"github.com/gopri/pri/pkg/ie"
	"github.com/gopri/pri/pkg/l3msg"
)

type fakeSender struct {
	frames [][]byte
}

func (s *fakeSender) Send(p []byte) error {
	s.frames = append(s.frames, append([]byte(nil), p...))
	return nil
}

func (s *fakeSender) last() []byte {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func national() Dialect {
	return dialect.Default()[dialect.SwitchNational]
}

func encodeSetup(t *testing.T, cr uint16, origin l3msg.Origin, fields ie.CallFields) []byte {
	t.Helper()
	table := ie.NewTable()
	body, err := table.Build(setupOrder, &fields, l3msg.TypeSetup)
	require.NoError(t, err)
	hdr := l3msg.EncodeHeader(l3msg.Header{
		ProtocolDiscriminator: l3msg.PDCallControl,
		CallRef:               l3msg.CallRef{Value: cr, Origin: origin},
		MessageType:           l3msg.TypeSetup,
	})
	return append(hdr, body...)
}

// scenario 2: an incoming SETUP with an acceptable bearer rings, then
// acknowledge/answer complete the call in the expected order.
func TestIncomingCallRingsAcknowledgesAndAnswers(t *testing.T) {
	sender := &fakeSender{}
	var events []Event
	eng := New(national(), sender, func(e Event) { events = append(events, e) })

	fields := ie.NewCallFields()
	fields.BearerSet = true
	fields.TransferCapability = ie.TransferCapabilitySpeech
	fields.TransferRate = ie.TransferRate64kCircuit
	fields.UserLayer1 = ie.UserLayer1ULaw
	fields.ChannelExplicit = true
	fields.ChannelNumber = 4
	fields.ChannelSelection = ie.ChannelSelectionExclusive
	fields.CallingNumber = "2025551234"
	fields.CallingPlan = ie.NumberingPlanISDN
	fields.CallingPresentation = ie.PresentationAllowed
	fields.CalledNumber = "2025556789"
	fields.CalledPlan = ie.NumberingPlanISDN

	eng.HandleMessage(encodeSetup(t, 12, l3msg.OriginRemote, fields))

	require.Len(t, events, 1)
	assert.Equal(t, EventRing, events[0].Kind)
	assert.Equal(t, uint16(12), events[0].CallHandle)
	assert.Equal(t, "2025551234", events[0].CallingNumber)
	assert.Equal(t, ie.NumberingPlanISDN, events[0].CallingPlan)
	assert.Equal(t, ie.PresentationAllowed, events[0].CallingPresentation)
	assert.Equal(t, "2025556789", events[0].CalledNumber)
	assert.Equal(t, ie.NumberingPlanISDN, events[0].CalledPlan)
	assert.Equal(t, ie.TransferCapabilitySpeech, events[0].TransferCapability)

	call, ok := eng.Directory().Find(12)
	require.True(t, ok)
	require.NoError(t, eng.Acknowledge(call, 4, false))
	require.Len(t, sender.frames, 2, "CALL PROCEEDING then ALERTING")

	hdr, _, err := l3msg.DecodeHeader(sender.frames[0])
	require.NoError(t, err)
	assert.Equal(t, l3msg.TypeCallProceeding, hdr.MessageType)

	hdr, _, err = l3msg.DecodeHeader(sender.frames[1])
	require.NoError(t, err)
	assert.Equal(t, l3msg.TypeAlerting, hdr.MessageType)

	require.NoError(t, eng.Answer(call, false))
	hdr, _, err = l3msg.DecodeHeader(sender.last())
	require.NoError(t, err)
	assert.Equal(t, l3msg.TypeConnect, hdr.MessageType)
}

// scenario 3: a SETUP whose bearer is not 64k circuit-mode is rejected
// with RELEASE and cause 65, and no RING is raised.
func TestIncomingCallWithUnsupportedBearerIsRejected(t *testing.T) {
	sender := &fakeSender{}
	var events []Event
	eng := New(national(), sender, func(e Event) { events = append(events, e) })

	fields := ie.NewCallFields()
	fields.BearerSet = true
	fields.TransferCapability = ie.TransferCapabilitySpeech
	fields.TransferRate = ie.TransferRatePacket

	eng.HandleMessage(encodeSetup(t, 13, l3msg.OriginRemote, fields))

	assert.Empty(t, events, "a rejected bearer must not raise RING")
	require.Len(t, sender.frames, 1)
	hdr, n, err := l3msg.DecodeHeader(sender.frames[0])
	require.NoError(t, err)
	assert.Equal(t, l3msg.TypeRelease, hdr.MessageType)

	table := ie.NewTable()
	var got ie.CallFields
	require.NoError(t, table.Parse(sender.frames[0][n:], &got, l3msg.TypeRelease))
	assert.True(t, got.CauseSet)
	assert.Equal(t, 65, got.CauseValue)

	_, ok := eng.Directory().Find(13)
	assert.False(t, ok, "a rejected call must not remain in the directory")
}

// scenario 4: an outgoing call answered by the peer raises ANSWER and
// auto-acknowledges with CONNECT ACK.
func TestOutgoingCallAnsweredByPeer(t *testing.T) {
	sender := &fakeSender{}
	var events []Event
	eng := New(national(), sender, func(e Event) { events = append(events, e) })

	call, err := eng.NewCall()
	require.NoError(t, err)
	require.NoError(t, eng.Setup(call, SetupParams{
		Channel:      7,
		CallingPlan:  ie.NumberingPlanNational,
		CallingNumber: "2025551111",
		CalledPlan:   ie.NumberingPlanNational,
		CalledNumber: "2025552222",
	}))
	require.True(t, call.Alive)
	require.Len(t, sender.frames, 1)

	connectHdr := l3msg.EncodeHeader(l3msg.Header{
		ProtocolDiscriminator: l3msg.PDCallControl,
		CallRef:               l3msg.CallRef{Value: call.CallRef, Origin: l3msg.OriginRemote},
		MessageType:           l3msg.TypeConnect,
	})
	eng.HandleMessage(connectHdr)

	require.Len(t, events, 1)
	assert.Equal(t, EventAnswer, events[0].Kind)
	require.Len(t, sender.frames, 2)
	hdr, _, err := l3msg.DecodeHeader(sender.last())
	require.NoError(t, err)
	assert.Equal(t, l3msg.TypeConnectAck, hdr.MessageType)
}

// scenario 5: the peer hangs up with DISCONNECT; the engine answers
// with RELEASE and raises HANGUP exactly once.
func TestPeerDisconnectTriggersReleaseAndHangup(t *testing.T) {
	sender := &fakeSender{}
	var events []Event
	eng := New(national(), sender, func(e Event) { events = append(events, e) })

	fields := ie.NewCallFields()
	fields.BearerSet = true
	fields.TransferRate = ie.TransferRate64kCircuit
	eng.HandleMessage(encodeSetup(t, 20, l3msg.OriginRemote, fields))
	require.Len(t, events, 1)
	call, ok := eng.Directory().Find(20)
	require.True(t, ok)
	require.True(t, call.Alive)

	causeFields := ie.NewCallFields()
	causeFields.CauseSet = true
	causeFields.CauseValue = 16
	table := ie.NewTable()
	body, err := table.Build(disconnectOrder, &causeFields, l3msg.TypeDisconnect)
	require.NoError(t, err)
	hdr := l3msg.EncodeHeader(l3msg.Header{
		ProtocolDiscriminator: l3msg.PDCallControl,
		CallRef:               l3msg.CallRef{Value: 20, Origin: l3msg.OriginRemote},
		MessageType:           l3msg.TypeDisconnect,
	})
	eng.HandleMessage(append(hdr, body...))

	require.Len(t, events, 2)
	assert.Equal(t, EventHangup, events[1].Kind)
	assert.Equal(t, 16, events[1].Cause)
	assert.False(t, call.Alive)

	last := sender.last()
	rhdr, _, err := l3msg.DecodeHeader(last)
	require.NoError(t, err)
	assert.Equal(t, l3msg.TypeRelease, rhdr.MessageType)

	// A subsequent RELEASE COMPLETE from the peer destroys the record
	// silently (already not alive).
	relCompleteHdr := l3msg.EncodeHeader(l3msg.Header{
		ProtocolDiscriminator: l3msg.PDCallControl,
		CallRef:               l3msg.CallRef{Value: 20, Origin: l3msg.OriginRemote},
		MessageType:           l3msg.TypeReleaseComplete,
	})
	eng.HandleMessage(relCompleteHdr)
	require.Len(t, events, 2, "a RELEASE COMPLETE for an already-dead call must not raise another HANGUP")
	_, ok = eng.Directory().Find(20)
	assert.False(t, ok)
}

func TestAllocateNewNeverCollidesWithLiveCalls(t *testing.T) {
	sender := &fakeSender{}
	eng := New(national(), sender, func(Event) {})

	first, err := eng.NewCall()
	require.NoError(t, err)
	second, err := eng.NewCall()
	require.NoError(t, err)
	assert.NotEqual(t, first.CallRef, second.CallRef)
	assert.Equal(t, l3msg.OriginLocal, first.Origin)
}

func TestMaintenanceMessageIsReflectedWithDecrementedOpcode(t *testing.T) {
	sender := &fakeSender{}
	eng := New(national(), sender, func(Event) {})

	in := l3msg.EncodeHeader(l3msg.Header{
		ProtocolDiscriminator: l3msg.PDMaintenance,
		CallRef:               l3msg.CallRef{Value: 0, Origin: l3msg.OriginRemote},
		MessageType:           l3msg.Type(0x38),
	})
	eng.HandleMessage(in)

	require.Len(t, sender.frames, 1)
	hdr, _, err := l3msg.DecodeHeader(sender.frames[0])
	require.NoError(t, err)
	assert.Equal(t, l3msg.PDMaintenance, int(hdr.ProtocolDiscriminator))
	assert.Equal(t, l3msg.Type(0x30), hdr.MessageType)
}

func TestRestartResetsChannelFieldsAndAcks(t *testing.T) {
	sender := &fakeSender{}
	var events []Event
	eng := New(national(), sender, func(e Event) { events = append(events, e) })

	restartFields := ie.NewCallFields()
	restartFields.RestartClass = ie.RestartClassSingleInterface
	table := ie.NewTable()
	body, err := table.Build(restartOrder, &restartFields, l3msg.TypeRestart)
	require.NoError(t, err)
	hdr := l3msg.EncodeHeader(l3msg.Header{
		ProtocolDiscriminator: l3msg.PDCallControl,
		CallRef:               l3msg.CallRef{Value: 99, Origin: l3msg.OriginRemote},
		MessageType:           l3msg.TypeRestart,
	})
	eng.HandleMessage(append(hdr, body...))

	require.Len(t, events, 1)
	assert.Equal(t, EventRestart, events[0].Kind)
	assert.Equal(t, int(ie.RestartClassSingleInterface), events[0].RestartClass)

	call, ok := eng.Directory().Find(99)
	require.True(t, ok)
	assert.Equal(t, -1, call.ChannelNumber)
	assert.Equal(t, -1, call.DS1Identifier)
	assert.Equal(t, int32(-1), call.SlotMap)

	rhdr, _, err := l3msg.DecodeHeader(sender.last())
	require.NoError(t, err)
	assert.Equal(t, l3msg.TypeRestartAck, rhdr.MessageType)
}
