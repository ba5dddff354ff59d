package call

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"pulsechat/backend/internal/models"
	"pulsechat/backend/internal/presence"
	"pulsechat/backend/internal/storage"
	apperrors "pulsechat/backend/pkg/errors"

	"github.com/google/uuid"
)

// Pusher delivers a server event to a user's live connection.
type Pusher interface {
	Push(userID string, event models.Event)
}

// activeCall is the in-memory state of a non-terminal call.
type activeCall struct {
	callID      string
	callerID    string
	recipientID string
	callType    models.CallType
	status      models.CallStatus
	startedAt   *time.Time
	timer       *time.Timer
	// generation invalidates a scheduled ring timeout that lost the race
	// with a state-exiting transition.
	generation uint64
}

func (ac *activeCall) otherParty(userID string) string {
	if ac.callerID == userID {
		return ac.recipientID
	}
	return ac.callerID
}

func (ac *activeCall) isParty(userID string) bool {
	return ac.callerID == userID || ac.recipientID == userID
}

// Engine owns the call lifecycle state machine. Calls are indexed twice:
// callID -> state and userID -> callID for both parties, making "is this
// user busy" an O(1) check. Both indices are cleared by the single cleanup
// path on every exit, so a half-cleaned busy flag cannot occur.
type Engine struct {
	mu          sync.Mutex
	calls       map[string]*activeCall
	byUser      map[string]string
	storage     storage.Storage
	registry    *presence.Registry
	pusher      Pusher
	ringTimeout time.Duration
}

func NewEngine(s storage.Storage, reg *presence.Registry, p Pusher, ringTimeout time.Duration) *Engine {
	return &Engine{
		calls:       make(map[string]*activeCall),
		byUser:      make(map[string]string),
		storage:     s,
		registry:    reg,
		pusher:      p,
		ringTimeout: ringTimeout,
	}
}

// Initiate starts a call attempt from callerID to recipientID. Guards reject
// self-calls, busy parties and offline recipients before any durable record
// is created.
func (e *Engine) Initiate(callerID, recipientID string, callType models.CallType) (string, error) {
	if callerID == recipientID {
		return "", apperrors.ErrSelfCall
	}

	e.mu.Lock()
	if _, busy := e.byUser[callerID]; busy {
		e.mu.Unlock()
		return "", apperrors.ErrAlreadyOnCall
	}
	if _, busy := e.byUser[recipientID]; busy {
		e.mu.Unlock()
		return "", apperrors.ErrRecipientBusy
	}
	if !e.registry.IsOnline(recipientID) {
		e.mu.Unlock()
		return "", apperrors.ErrRecipientOffline
	}

	// Claim both index slots inside the lock; persistence happens after.
	callID := uuid.New().String()
	ac := &activeCall{
		callID:      callID,
		callerID:    callerID,
		recipientID: recipientID,
		callType:    callType,
		status:      models.CallInitiated,
	}
	e.calls[callID] = ac
	e.byUser[callerID] = callID
	e.byUser[recipientID] = callID
	e.mu.Unlock()

	record := &models.Call{
		ID:          callID,
		CallerID:    callerID,
		RecipientID: recipientID,
		CallType:    callType,
		Status:      models.CallInitiated,
		CreatedAt:   time.Now(),
	}
	if err := e.storage.CreateCall(record); err != nil {
		// Setup failed mid-handshake; run the standard cleanup so neither
		// party is left with a phantom busy lock.
		e.mu.Lock()
		e.removeLocked(callID)
		e.mu.Unlock()
		return "", apperrors.Wrap(apperrors.CodeInternal, "failed to start call", err)
	}

	e.mu.Lock()
	ac, ok := e.calls[callID]
	if !ok {
		// Torn down while persisting (caller disconnected).
		e.mu.Unlock()
		return "", apperrors.ErrCallNotFound
	}
	ac.status = models.CallRinging
	gen := ac.generation
	ac.timer = time.AfterFunc(e.ringTimeout, func() { e.onRingTimeout(callID, gen) })
	e.mu.Unlock()

	if err := e.storage.UpdateCallStatus(callID, models.CallRinging, nil, nil); err != nil {
		log.Printf("ERROR: Failed to persist ringing for call %s: %v", callID, err)
	}

	e.pusher.Push(recipientID, models.NewEvent(models.EvCallRinging, models.CallRingingPayload{
		CallID:   callID,
		CallerID: callerID,
		CallType: callType,
	}))
	e.pusher.Push(callerID, models.NewEvent(models.EvCallInitiated, models.CallInitiatedPayload{
		CallID:      callID,
		RecipientID: recipientID,
		CallType:    callType,
	}))
	return callID, nil
}

// onRingTimeout fires when the ring timer elapses. The generation check plus
// the ringing guard make a late timer a no-op after accept/decline/end won
// the race.
func (e *Engine) onRingTimeout(callID string, gen uint64) {
	e.mu.Lock()
	ac, ok := e.calls[callID]
	if !ok || ac.generation != gen || ac.status != models.CallRinging {
		e.mu.Unlock()
		return
	}
	callerID, recipientID := ac.callerID, ac.recipientID
	e.removeLocked(callID)
	e.mu.Unlock()

	now := time.Now()
	if err := e.storage.UpdateCallStatus(callID, models.CallMissed, nil, &now); err != nil {
		log.Printf("ERROR: Failed to persist missed call %s: %v", callID, err)
	}

	// Asymmetric notices: the caller learns why, the recipient just sees the
	// ringing stop.
	e.pusher.Push(callerID, models.NewEvent(models.EvCallError, models.CallErrorPayload{
		CallID:  callID,
		Message: "call was not answered",
		Code:    string(apperrors.CodeTimeout),
	}))
	e.pusher.Push(recipientID, models.NewEvent(models.EvCallEnded, models.CallEndedPayload{
		CallID: callID,
		Reason: "timeout",
	}))
	log.Printf("Call %s timed out ringing", callID)
}

// Accept transitions a ringing call to connected and relays the SDP answer
// to the caller.
func (e *Engine) Accept(userID, callID string, answer json.RawMessage) error {
	e.mu.Lock()
	ac, ok := e.calls[callID]
	if !ok {
		e.mu.Unlock()
		return apperrors.ErrCallNotFound
	}
	if ac.recipientID != userID {
		e.mu.Unlock()
		return apperrors.ErrNotCallParty
	}
	if ac.status != models.CallRinging {
		// Re-accepting a connected call must not restamp startedAt or refire
		// the accepted notices.
		e.mu.Unlock()
		return apperrors.ErrCallNotRinging
	}
	now := time.Now()
	ac.status = models.CallConnected
	ac.startedAt = &now
	ac.generation++
	if ac.timer != nil {
		ac.timer.Stop()
	}
	callerID := ac.callerID
	e.mu.Unlock()

	if err := e.storage.UpdateCallStatus(callID, models.CallConnected, &now, nil); err != nil {
		log.Printf("ERROR: Failed to persist connected call %s: %v", callID, err)
	}

	if e.registry.IsOnline(callerID) {
		e.pusher.Push(callerID, models.NewEvent(models.EvCallAccepted, models.CallAcceptedPayload{
			CallID: callID,
			Answer: answer,
		}))
	}
	e.pusher.Push(userID, models.NewEvent(models.EvCallAccepted, models.CallAcceptedPayload{
		CallID:   callID,
		CallerID: callerID,
	}))
	return nil
}

// Decline rejects a ringing call.
func (e *Engine) Decline(userID, callID string) error {
	e.mu.Lock()
	ac, ok := e.calls[callID]
	if !ok {
		e.mu.Unlock()
		return apperrors.ErrCallNotFound
	}
	if ac.recipientID != userID {
		e.mu.Unlock()
		return apperrors.ErrNotCallParty
	}
	callerID := ac.callerID
	e.removeLocked(callID)
	e.mu.Unlock()

	now := time.Now()
	if err := e.storage.UpdateCallStatus(callID, models.CallDeclined, nil, &now); err != nil {
		log.Printf("ERROR: Failed to persist declined call %s: %v", callID, err)
	}

	if e.registry.IsOnline(callerID) {
		e.pusher.Push(callerID, models.NewEvent(models.EvCallDeclined, models.CallIDPayload{CallID: callID}))
	}
	return nil
}

// End hangs up a call from either participant. A call already absent from
// the active index is treated as already-ended and acknowledged idempotently.
func (e *Engine) End(userID, callID string) error {
	e.mu.Lock()
	ac, ok := e.calls[callID]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if !ac.isParty(userID) {
		e.mu.Unlock()
		return apperrors.ErrNotCallParty
	}
	other := ac.otherParty(userID)
	e.removeLocked(callID)
	e.mu.Unlock()

	now := time.Now()
	if err := e.storage.UpdateCallStatus(callID, models.CallEnded, nil, &now); err != nil {
		log.Printf("ERROR: Failed to persist ended call %s: %v", callID, err)
	}

	if e.registry.IsOnline(other) {
		e.pusher.Push(other, models.NewEvent(models.EvCallEnded, models.CallEndedPayload{
			CallID:  callID,
			EndedBy: userID,
		}))
	}
	return nil
}

// HandleDisconnect force-ends the active call of a user whose transport just
// went away. The remaining participant gets a reason tag distinct from a
// voluntary hangup.
func (e *Engine) HandleDisconnect(userID string) {
	e.mu.Lock()
	callID, ok := e.byUser[userID]
	if !ok {
		e.mu.Unlock()
		return
	}
	ac := e.calls[callID]
	other := ac.otherParty(userID)
	e.removeLocked(callID)
	e.mu.Unlock()

	now := time.Now()
	if err := e.storage.UpdateCallStatus(callID, models.CallEnded, nil, &now); err != nil {
		log.Printf("ERROR: Failed to persist ended call %s on disconnect: %v", callID, err)
	}

	if e.registry.IsOnline(other) {
		e.pusher.Push(other, models.NewEvent(models.EvCallEnded, models.CallEndedPayload{
			CallID:  callID,
			EndedBy: userID,
			Reason:  "disconnect",
		}))
	}
	log.Printf("Call %s ended: %s disconnected", callID, userID)
}

// IsBusy reports whether userID is associated with an active call.
func (e *Engine) IsBusy(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, busy := e.byUser[userID]
	return busy
}

// removeLocked clears both index directions and cancels the ring timer. It
// is the single cleanup path; every transition out of the active set goes
// through here. Caller must hold e.mu.
func (e *Engine) removeLocked(callID string) {
	ac, ok := e.calls[callID]
	if !ok {
		return
	}
	ac.generation++
	if ac.timer != nil {
		ac.timer.Stop()
	}
	delete(e.calls, callID)
	if e.byUser[ac.callerID] == callID {
		delete(e.byUser, ac.callerID)
	}
	if e.byUser[ac.recipientID] == callID {
		delete(e.byUser, ac.recipientID)
	}
}
