// Package storagetest provides an in-memory Storage implementation for
// service tests, faithful to the persistence semantics the services rely on
// (canonical pair lookup, monotonic status compare-and-set, unread counters).
package storagetest

import (
	"sync"
	"time"

	"pulsechat/backend/internal/models"
	apperrors "pulsechat/backend/pkg/errors"

	"github.com/google/uuid"
)

type MemStorage struct {
	mu            sync.Mutex
	Users         map[string]*models.User
	Conversations map[string]*models.Conversation
	Messages      map[string]*models.Message
	Calls         map[string]*models.Call
	Banned        map[string]bool

	// Published records events that went over the Redis bridge.
	Published []models.RemoteEvent
	// CreateCallErr lets tests fail call persistence on purpose.
	CreateCallErr error
	// BanCheckErr lets tests fail the ban lookup on purpose.
	BanCheckErr error
}

func New() *MemStorage {
	return &MemStorage{
		Users:         make(map[string]*models.User),
		Conversations: make(map[string]*models.Conversation),
		Messages:      make(map[string]*models.Message),
		Calls:         make(map[string]*models.Call),
		Banned:        make(map[string]bool),
	}
}

func (m *MemStorage) GetUserByID(userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.Users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *MemStorage) SaveUser(user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	cp := *user
	m.Users[user.ID] = &cp
	return nil
}

func (m *MemStorage) UpdateUserLastOnline(userID string, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.Users[userID]; ok {
		u.LastOnline = t
	}
	return nil
}

func (m *MemStorage) GetOrCreateConversation(user1, user2 string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, b := models.OrderPair(user1, user2)
	for _, c := range m.Conversations {
		if c.UserAID == a && c.UserBID == b {
			cp := *c
			return &cp, nil
		}
	}
	conv := &models.Conversation{
		ID:        uuid.New().String(),
		UserAID:   a,
		UserBID:   b,
		CreatedAt: time.Now(),
	}
	m.Conversations[conv.ID] = conv
	cp := *conv
	return &cp, nil
}

func (m *MemStorage) GetConversationByID(conversationID string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.Conversations[conversationID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, apperrors.ErrConversationNotFound
}

func (m *MemStorage) RecordLastMessage(conv *models.Conversation, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Conversations[conv.ID]
	if !ok {
		return apperrors.ErrConversationNotFound
	}
	c.LastMessageContent = msg.Content
	c.LastMessageSenderID = msg.SenderID
	c.LastMessageAt = msg.CreatedAt
	if c.OtherParticipant(msg.SenderID) == c.UserAID {
		c.UnreadA++
	} else {
		c.UnreadB++
	}
	*conv = *c
	return nil
}

func (m *MemStorage) ResetUnread(conversationID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Conversations[conversationID]
	if !ok {
		return apperrors.ErrConversationNotFound
	}
	if c.UserAID == userID {
		c.UnreadA = 0
	} else {
		c.UnreadB = 0
	}
	return nil
}

func (m *MemStorage) CreateMessage(msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	cp := *msg
	m.Messages[msg.ID] = &cp
	return nil
}

func (m *MemStorage) GetMessageByID(messageID string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.Messages[messageID]; ok {
		cp := *msg
		return &cp, nil
	}
	return nil, apperrors.ErrMessageNotFound
}

func (m *MemStorage) AdvanceMessageStatus(messageID string, to models.MessageStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.Messages[messageID]
	if !ok {
		return false, nil
	}
	if msg.Status.Rank() >= to.Rank() {
		return false, nil
	}
	msg.Status = to
	switch to {
	case models.MessageDelivered:
		msg.DeliveredAt = &at
	case models.MessageSeen:
		msg.SeenAt = &at
		if msg.DeliveredAt == nil {
			msg.DeliveredAt = &at
		}
	}
	return true, nil
}

func (m *MemStorage) ListUnseenMessages(conversationID, readerID string, messageIDs []string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range messageIDs {
		wanted[id] = true
	}
	var out []models.Message
	for _, msg := range m.Messages {
		if msg.ConversationID != conversationID || msg.SenderID == readerID || msg.Status == models.MessageSeen {
			continue
		}
		if len(messageIDs) > 0 && !wanted[msg.ID] {
			continue
		}
		out = append(out, *msg)
	}
	sortByCreatedAt(out)
	return out, nil
}

func (m *MemStorage) ListUndeliveredMessages(conversationID, recipientID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.Messages {
		if msg.ConversationID == conversationID && msg.SenderID != recipientID && msg.Status == models.MessageSent {
			out = append(out, *msg)
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (m *MemStorage) CreateCall(callRec *models.Call) error {
	if m.CreateCallErr != nil {
		return m.CreateCallErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *callRec
	m.Calls[callRec.ID] = &cp
	return nil
}

func (m *MemStorage) GetCallByID(callID string) (*models.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.Calls[callID]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, apperrors.ErrCallNotFound
}

func (m *MemStorage) UpdateCallStatus(callID string, status models.CallStatus, startedAt, endedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Calls[callID]
	if !ok {
		return apperrors.ErrCallNotFound
	}
	c.Status = status
	if startedAt != nil {
		c.StartedAt = startedAt
	}
	if endedAt != nil {
		c.EndedAt = endedAt
	}
	return nil
}

func (m *MemStorage) IsUserBanned(userID string) (bool, error) {
	if m.BanCheckErr != nil {
		return false, m.BanCheckErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Banned[userID], nil
}

func (m *MemStorage) MirrorPresence(userID string, isOnline bool, lastOnline time.Time) error {
	return nil
}

func (m *MemStorage) PublishEvent(targetUserID string, event models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, models.RemoteEvent{UserID: targetUserID, Event: event})
	return nil
}

func sortByCreatedAt(msgs []models.Message) {
	for i := 1; i < len(msgs); i++ {
		for j := i; j > 0 && msgs[j].CreatedAt.Before(msgs[j-1].CreatedAt); j-- {
			msgs[j], msgs[j-1] = msgs[j-1], msgs[j]
		}
	}
}
