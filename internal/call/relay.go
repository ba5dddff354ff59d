package call

import (
	"encoding/json"

	"pulsechat/backend/internal/models"
	apperrors "pulsechat/backend/pkg/errors"
)

// Relay operations forward SDP and ICE payloads between the two parties of
// an active call. The server never inspects the payloads.

// partyCheck resolves the other participant for a relay, enforcing that the
// acting user belongs to the call.
func (e *Engine) partyCheck(userID, callID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ac, ok := e.calls[callID]
	if !ok {
		return "", apperrors.ErrCallNotFound
	}
	if !ac.isParty(userID) {
		return "", apperrors.ErrNotCallParty
	}
	return ac.otherParty(userID), nil
}

// RelayOffer forwards an SDP offer to the opposite party.
func (e *Engine) RelayOffer(userID, callID string, offer json.RawMessage) error {
	other, err := e.partyCheck(userID, callID)
	if err != nil {
		return err
	}
	e.pusher.Push(other, models.NewEvent(models.EvWebRTCOffer, models.WebRTCOfferPayload{
		CallID:      callID,
		RecipientID: other,
		Offer:       offer,
	}))
	return nil
}

// RelayAnswer forwards an SDP answer to the opposite party.
func (e *Engine) RelayAnswer(userID, callID string, answer json.RawMessage) error {
	other, err := e.partyCheck(userID, callID)
	if err != nil {
		return err
	}
	e.pusher.Push(other, models.NewEvent(models.EvWebRTCAnswer, models.WebRTCAnswerPayload{
		CallID:   callID,
		CallerID: userID,
		Answer:   answer,
	}))
	return nil
}

// RelayICECandidate forwards a trickled ICE candidate. A candidate for a
// call that no longer exists is silently dropped: ICE trickle can race with
// a benign teardown.
func (e *Engine) RelayICECandidate(userID, callID string, candidate json.RawMessage) error {
	other, err := e.partyCheck(userID, callID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return nil
		}
		return err
	}
	e.pusher.Push(other, models.NewEvent(models.EvWebRTCICE, models.ICECandidatePayload{
		CallID:      callID,
		RecipientID: other,
		Candidate:   candidate,
	}))
	return nil
}
