package models_test

import (
	"testing"
	"time"

	"pulsechat/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUserBeforeCreateGeneratesUUID(t *testing.T) {
	user := &models.User{Username: "alice"}
	assert.Empty(t, user.ID)

	err := user.BeforeCreate(nil)
	assert.NoError(t, err)

	parsed, parseErr := uuid.Parse(user.ID)
	assert.NoError(t, parseErr)
	assert.NotEqual(t, uuid.Nil, parsed)
}

func TestOrderPairIsSymmetric(t *testing.T) {
	a1, b1 := models.OrderPair("user_A", "user_B")
	a2, b2 := models.OrderPair("user_B", "user_A")

	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
	assert.True(t, a1 < b1)
}

func TestConversationParticipants(t *testing.T) {
	conv := &models.Conversation{UserAID: "user_A", UserBID: "user_B", UnreadA: 2, UnreadB: 5}

	assert.True(t, conv.HasParticipant("user_A"))
	assert.True(t, conv.HasParticipant("user_B"))
	assert.False(t, conv.HasParticipant("user_C"))

	assert.Equal(t, "user_B", conv.OtherParticipant("user_A"))
	assert.Equal(t, "user_A", conv.OtherParticipant("user_B"))

	assert.Equal(t, 2, conv.UnreadFor("user_A"))
	assert.Equal(t, 5, conv.UnreadFor("user_B"))
}

func TestMessageStatusRankIsMonotonic(t *testing.T) {
	assert.Less(t, models.MessageSent.Rank(), models.MessageDelivered.Rank())
	assert.Less(t, models.MessageDelivered.Rank(), models.MessageSeen.Rank())
}

func TestCallDuration(t *testing.T) {
	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ended := started.Add(95 * time.Second)

	connected := &models.Call{StartedAt: &started, EndedAt: &ended}
	assert.Equal(t, 95, connected.Duration())

	missed := &models.Call{EndedAt: &ended}
	assert.Equal(t, 0, missed.Duration(), "duration means connected time, not attempt lifetime")
}

func TestCallStatusTerminal(t *testing.T) {
	assert.True(t, models.CallEnded.IsTerminal())
	assert.True(t, models.CallDeclined.IsTerminal())
	assert.True(t, models.CallMissed.IsTerminal())
	assert.False(t, models.CallRinging.IsTerminal())
	assert.False(t, models.CallConnected.IsTerminal())
}
