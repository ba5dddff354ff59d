package storage

import (
	"errors"
	"log"

	"pulsechat/backend/internal/models"
	apperrors "pulsechat/backend/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetOrCreateConversation resolves the conversation between two users,
// creating it if absent. Participants are stored in canonical order so the
// unordered pair is unique across all conversations.
func (s *Service) GetOrCreateConversation(user1, user2 string) (*models.Conversation, error) {
	a, b := models.OrderPair(user1, user2)

	var conv models.Conversation
	result := s.DB.Where("user_a_id = ? AND user_b_id = ?", a, b).
		FirstOrCreate(&conv, models.Conversation{
			ID:      uuid.New().String(),
			UserAID: a,
			UserBID: b,
		})
	if result.Error != nil {
		log.Printf("ERROR: Failed to resolve conversation for %s/%s: %v", a, b, result.Error)
		return nil, result.Error
	}
	return &conv, nil
}

func (s *Service) GetConversationByID(conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.First(&conv, "id = ?", conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// RecordLastMessage updates the denormalized last-message snapshot and bumps
// the recipient's unread counter in one statement. conv is refreshed in place.
func (s *Service) RecordLastMessage(conv *models.Conversation, msg *models.Message) error {
	unreadCol := "unread_b"
	if conv.OtherParticipant(msg.SenderID) == conv.UserAID {
		unreadCol = "unread_a"
	}

	err := s.DB.Model(&models.Conversation{}).
		Where("id = ?", conv.ID).
		Updates(map[string]interface{}{
			"last_message_content":   msg.Content,
			"last_message_sender_id": msg.SenderID,
			"last_message_at":        msg.CreatedAt,
			unreadCol:                gorm.Expr(unreadCol+" + 1"),
		}).Error
	if err != nil {
		log.Printf("ERROR: Failed to record last message for conversation %s: %v", conv.ID, err)
		return err
	}
	return s.DB.First(conv, "id = ?", conv.ID).Error
}

// ResetUnread zeroes the unread counter belonging to userID.
func (s *Service) ResetUnread(conversationID, userID string) error {
	conv, err := s.GetConversationByID(conversationID)
	if err != nil {
		return err
	}
	unreadCol := "unread_b"
	if conv.UserAID == userID {
		unreadCol = "unread_a"
	}
	return s.DB.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update(unreadCol, 0).Error
}
