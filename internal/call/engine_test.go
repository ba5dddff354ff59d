package call_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"pulsechat/backend/internal/call"
	"pulsechat/backend/internal/models"
	"pulsechat/backend/internal/presence"
	"pulsechat/backend/internal/storage/storagetest"
	apperrors "pulsechat/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPusher struct {
	mu     sync.Mutex
	events map[string][]models.Event
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{events: make(map[string][]models.Event)}
}

func (p *recordingPusher) Push(userID string, ev models.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[userID] = append(p.events[userID], ev)
}

func (p *recordingPusher) named(userID, name string) []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Event
	for _, ev := range p.events[userID] {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

func newTestEngine(ringTimeout time.Duration) (*call.Engine, *storagetest.MemStorage, *presence.Registry, *recordingPusher) {
	store := storagetest.New()
	reg := presence.NewRegistry()
	pusher := newRecordingPusher()
	engine := call.NewEngine(store, reg, pusher, ringTimeout)
	return engine, store, reg, pusher
}

func bothOnline(reg *presence.Registry) {
	reg.SetOnline("caller", "conn-1")
	reg.SetOnline("callee", "conn-2")
}

func TestInitiateAndAccept(t *testing.T) {
	engine, store, reg, pusher := newTestEngine(30 * time.Second)
	bothOnline(reg)

	callID, err := engine.Initiate("caller", "callee", models.CallVoice)
	require.NoError(t, err)
	require.NotEmpty(t, callID)

	assert.True(t, engine.IsBusy("caller"))
	assert.True(t, engine.IsBusy("callee"))

	rec, err := store.GetCallByID(callID)
	require.NoError(t, err)
	assert.Equal(t, models.CallRinging, rec.Status)

	require.Len(t, pusher.named("caller", models.EvCallInitiated), 1)
	ringing := pusher.named("callee", models.EvCallRinging)
	require.Len(t, ringing, 1)
	var rp models.CallRingingPayload
	require.NoError(t, json.Unmarshal(ringing[0].Data, &rp))
	assert.Equal(t, "caller", rp.CallerID)
	assert.Equal(t, models.CallVoice, rp.CallType)

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	require.NoError(t, engine.Accept("callee", callID, answer))

	rec, _ = store.GetCallByID(callID)
	assert.Equal(t, models.CallConnected, rec.Status)
	assert.NotNil(t, rec.StartedAt)

	accepted := pusher.named("caller", models.EvCallAccepted)
	require.Len(t, accepted, 1)
	var ap models.CallAcceptedPayload
	require.NoError(t, json.Unmarshal(accepted[0].Data, &ap))
	assert.JSONEq(t, string(answer), string(ap.Answer))

	assert.Len(t, pusher.named("callee", models.EvCallAccepted), 1)
}

func TestInitiateGuards(t *testing.T) {
	engine, store, reg, _ := newTestEngine(30 * time.Second)
	bothOnline(reg)

	_, err := engine.Initiate("caller", "caller", models.CallVoice)
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	_, err = engine.Initiate("caller", "offline_user", models.CallVoice)
	assert.Equal(t, apperrors.CodeRecipientOffline, apperrors.CodeOf(err))
	assert.Empty(t, store.Calls, "offline rejection must not create a durable record")

	_, err = engine.Initiate("caller", "callee", models.CallVideo)
	require.NoError(t, err)

	reg.SetOnline("third", "conn-3")
	_, err = engine.Initiate("caller", "third", models.CallVoice)
	assert.Equal(t, apperrors.CodeAlreadyOnCall, apperrors.CodeOf(err))

	_, err = engine.Initiate("third", "callee", models.CallVoice)
	assert.Equal(t, apperrors.CodeRecipientBusy, apperrors.CodeOf(err))
}

func TestRingTimeoutMarksMissed(t *testing.T) {
	engine, store, reg, pusher := newTestEngine(50 * time.Millisecond)
	bothOnline(reg)

	callID, err := engine.Initiate("caller", "callee", models.CallVoice)
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)

	rec, _ := store.GetCallByID(callID)
	assert.Equal(t, models.CallMissed, rec.Status)
	assert.NotNil(t, rec.EndedAt)
	assert.Equal(t, 0, rec.Duration(), "never-connected call reports zero duration")

	assert.False(t, engine.IsBusy("caller"))
	assert.False(t, engine.IsBusy("callee"))

	// Caller learns why; the recipient just sees the call go away.
	callErrs := pusher.named("caller", models.EvCallError)
	require.Len(t, callErrs, 1)
	var ce models.CallErrorPayload
	require.NoError(t, json.Unmarshal(callErrs[0].Data, &ce))
	assert.Equal(t, string(apperrors.CodeTimeout), ce.Code)

	ended := pusher.named("callee", models.EvCallEnded)
	require.Len(t, ended, 1)
	var ep models.CallEndedPayload
	require.NoError(t, json.Unmarshal(ended[0].Data, &ep))
	assert.Equal(t, "timeout", ep.Reason)
}

func TestAcceptedCallNeverTimesOut(t *testing.T) {
	engine, store, reg, pusher := newTestEngine(50 * time.Millisecond)
	bothOnline(reg)

	callID, err := engine.Initiate("caller", "callee", models.CallVideo)
	require.NoError(t, err)
	require.NoError(t, engine.Accept("callee", callID, json.RawMessage(`{}`)))

	time.Sleep(150 * time.Millisecond)

	rec, _ := store.GetCallByID(callID)
	assert.Equal(t, models.CallConnected, rec.Status)
	assert.Empty(t, pusher.named("caller", models.EvCallError))
}

func TestAcceptGuards(t *testing.T) {
	engine, _, reg, _ := newTestEngine(30 * time.Second)
	bothOnline(reg)

	err := engine.Accept("callee", "no-such-call", nil)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	callID, _ := engine.Initiate("caller", "callee", models.CallVoice)
	err = engine.Accept("caller", callID, nil)
	assert.Equal(t, apperrors.CodeNotAuthorized, apperrors.CodeOf(err),
		"only the recipient of record may accept")
}

func TestAcceptRejectedOnceConnected(t *testing.T) {
	engine, store, reg, pusher := newTestEngine(30 * time.Second)
	bothOnline(reg)

	callID, _ := engine.Initiate("caller", "callee", models.CallVoice)
	require.NoError(t, engine.Accept("callee", callID, json.RawMessage(`{}`)))

	rec, _ := store.GetCallByID(callID)
	firstStart := rec.StartedAt

	err := engine.Accept("callee", callID, json.RawMessage(`{}`))
	assert.Equal(t, apperrors.CodeInvalidArgument, apperrors.CodeOf(err))

	rec, _ = store.GetCallByID(callID)
	assert.Equal(t, firstStart, rec.StartedAt, "startedAt is stamped exactly once")
	assert.Len(t, pusher.named("caller", models.EvCallAccepted), 1,
		"accepted notice does not refire")
}

func TestDecline(t *testing.T) {
	engine, store, reg, pusher := newTestEngine(30 * time.Second)
	bothOnline(reg)

	callID, _ := engine.Initiate("caller", "callee", models.CallVoice)
	require.NoError(t, engine.Decline("callee", callID))

	rec, _ := store.GetCallByID(callID)
	assert.Equal(t, models.CallDeclined, rec.Status)
	assert.NotNil(t, rec.EndedAt)
	assert.Equal(t, 0, rec.Duration())

	assert.False(t, engine.IsBusy("caller"))
	assert.False(t, engine.IsBusy("callee"))
	assert.Len(t, pusher.named("caller", models.EvCallDeclined), 1)
}

func TestEndNotifiesOtherParty(t *testing.T) {
	engine, store, reg, pusher := newTestEngine(30 * time.Second)
	bothOnline(reg)

	callID, _ := engine.Initiate("caller", "callee", models.CallVoice)
	require.NoError(t, engine.Accept("callee", callID, json.RawMessage(`{}`)))
	require.NoError(t, engine.End("caller", callID))

	rec, _ := store.GetCallByID(callID)
	assert.Equal(t, models.CallEnded, rec.Status)
	assert.NotNil(t, rec.StartedAt)
	assert.NotNil(t, rec.EndedAt)

	ended := pusher.named("callee", models.EvCallEnded)
	require.Len(t, ended, 1)
	var ep models.CallEndedPayload
	require.NoError(t, json.Unmarshal(ended[0].Data, &ep))
	assert.Equal(t, "caller", ep.EndedBy)
}

func TestEndIsIdempotent(t *testing.T) {
	engine, _, reg, _ := newTestEngine(30 * time.Second)
	bothOnline(reg)

	callID, _ := engine.Initiate("caller", "callee", models.CallVoice)
	require.NoError(t, engine.End("callee", callID))
	assert.NoError(t, engine.End("caller", callID), "already-ended call is acknowledged, not an error")
}

func TestEndRejectsOutsider(t *testing.T) {
	engine, _, reg, _ := newTestEngine(30 * time.Second)
	bothOnline(reg)

	callID, _ := engine.Initiate("caller", "callee", models.CallVoice)
	err := engine.End("stranger", callID)
	assert.Equal(t, apperrors.CodeNotAuthorized, apperrors.CodeOf(err))
	assert.True(t, engine.IsBusy("caller"))
}

func TestDisconnectForceEndsCall(t *testing.T) {
	engine, store, reg, pusher := newTestEngine(30 * time.Second)
	bothOnline(reg)

	callID, _ := engine.Initiate("caller", "callee", models.CallVoice)
	engine.HandleDisconnect("caller")

	rec, _ := store.GetCallByID(callID)
	assert.Equal(t, models.CallEnded, rec.Status)
	assert.False(t, engine.IsBusy("callee"))

	ended := pusher.named("callee", models.EvCallEnded)
	require.Len(t, ended, 1)
	var ep models.CallEndedPayload
	require.NoError(t, json.Unmarshal(ended[0].Data, &ep))
	assert.Equal(t, "disconnect", ep.Reason, "disconnect teardown is tagged distinctly from hangup")
}

func TestDisconnectWithoutCallIsNoop(t *testing.T) {
	engine, _, reg, _ := newTestEngine(30 * time.Second)
	bothOnline(reg)
	engine.HandleDisconnect("caller")
}

func TestICECandidateForDeadCallIsDropped(t *testing.T) {
	engine, _, reg, pusher := newTestEngine(30 * time.Second)
	bothOnline(reg)

	err := engine.RelayICECandidate("caller", "gone-call", json.RawMessage(`{"candidate":"x"}`))
	assert.NoError(t, err, "ICE trickle racing a teardown is benign")
	assert.Empty(t, pusher.named("callee", models.EvWebRTCICE))
}

func TestRelayForwardsToOtherParty(t *testing.T) {
	engine, _, reg, pusher := newTestEngine(30 * time.Second)
	bothOnline(reg)

	callID, _ := engine.Initiate("caller", "callee", models.CallVideo)

	require.NoError(t, engine.RelayOffer("caller", callID, json.RawMessage(`{"sdp":"o"}`)))
	assert.Len(t, pusher.named("callee", models.EvWebRTCOffer), 1)

	require.NoError(t, engine.RelayAnswer("callee", callID, json.RawMessage(`{"sdp":"a"}`)))
	assert.Len(t, pusher.named("caller", models.EvWebRTCAnswer), 1)

	require.NoError(t, engine.RelayICECandidate("caller", callID, json.RawMessage(`{"candidate":"c"}`)))
	assert.Len(t, pusher.named("callee", models.EvWebRTCICE), 1)

	err := engine.RelayOffer("stranger", callID, json.RawMessage(`{}`))
	assert.Equal(t, apperrors.CodeNotAuthorized, apperrors.CodeOf(err))
}

func TestUserNeverIndexedTwice(t *testing.T) {
	engine, _, reg, _ := newTestEngine(30 * time.Second)
	bothOnline(reg)
	reg.SetOnline("third", "conn-3")

	callID, _ := engine.Initiate("caller", "callee", models.CallVoice)
	_, err := engine.Initiate("callee", "third", models.CallVoice)
	assert.Equal(t, apperrors.CodeAlreadyOnCall, apperrors.CodeOf(err))

	require.NoError(t, engine.End("callee", callID))
	_, err = engine.Initiate("callee", "third", models.CallVoice)
	assert.NoError(t, err, "index slot frees up once the call ends")
}

func TestInitiateCleansUpWhenPersistenceFails(t *testing.T) {
	engine, store, reg, _ := newTestEngine(30 * time.Second)
	bothOnline(reg)

	store.CreateCallErr = apperrors.Internal("db down")
	_, err := engine.Initiate("caller", "callee", models.CallVoice)
	require.Error(t, err)

	assert.False(t, engine.IsBusy("caller"), "failed setup must not leave a phantom busy lock")
	assert.False(t, engine.IsBusy("callee"))
}
