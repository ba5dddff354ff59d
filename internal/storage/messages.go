package storage

import (
	"errors"
	"log"
	"time"

	"pulsechat/backend/internal/models"
	apperrors "pulsechat/backend/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *Service) CreateMessage(msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if err := s.DB.Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for conversation %s: %v", msg.ConversationID, err)
		return err
	}
	return nil
}

func (s *Service) GetMessageByID(messageID string) (*models.Message, error) {
	var msg models.Message
	err := s.DB.First(&msg, "id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// AdvanceMessageStatus moves a message forward in the sent->delivered->seen
// progression. The WHERE guard makes the write a compare-and-set: a status
// that already moved past `to` is left untouched and false is returned, so a
// racing delivered update can never regress a recorded seen.
func (s *Service) AdvanceMessageStatus(messageID string, to models.MessageStatus, at time.Time) (bool, error) {
	var result *gorm.DB
	switch to {
	case models.MessageDelivered:
		result = s.DB.Model(&models.Message{}).
			Where("id = ? AND status = ?", messageID, models.MessageSent).
			Updates(map[string]interface{}{
				"status":       models.MessageDelivered,
				"delivered_at": at,
			})
	case models.MessageSeen:
		// Seeing implies having been delivered; stamp delivered_at when the
		// delivery upgrade never happened separately.
		result = s.DB.Model(&models.Message{}).
			Where("id = ? AND status IN ?", messageID,
				[]models.MessageStatus{models.MessageSent, models.MessageDelivered}).
			Updates(map[string]interface{}{
				"status":       models.MessageSeen,
				"seen_at":      at,
				"delivered_at": gorm.Expr("COALESCE(delivered_at, ?)", at),
			})
	default:
		return false, apperrors.InvalidArg("cannot advance message to status " + string(to))
	}

	if result.Error != nil {
		log.Printf("ERROR: Failed to advance message %s to %s: %v", messageID, to, result.Error)
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListUnseenMessages returns messages in the conversation that were not sent
// by readerID and are not yet seen. When messageIDs is non-empty the result
// is restricted to those ids.
func (s *Service) ListUnseenMessages(conversationID, readerID string, messageIDs []string) ([]models.Message, error) {
	q := s.DB.Where("conversation_id = ? AND sender_id <> ? AND status <> ?",
		conversationID, readerID, models.MessageSeen)
	if len(messageIDs) > 0 {
		q = q.Where("id IN ?", messageIDs)
	}

	var msgs []models.Message
	if err := q.Order("created_at asc").Find(&msgs).Error; err != nil {
		log.Printf("ERROR: Failed to list unseen messages for conversation %s: %v", conversationID, err)
		return nil, err
	}
	return msgs, nil
}

// ListUndeliveredMessages returns messages addressed to recipientID that are
// still in status=sent, i.e. composed while the recipient was offline.
func (s *Service) ListUndeliveredMessages(conversationID, recipientID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.Where("conversation_id = ? AND sender_id <> ? AND status = ?",
		conversationID, recipientID, models.MessageSent).
		Order("created_at asc").
		Find(&msgs).Error
	if err != nil {
		log.Printf("ERROR: Failed to list undelivered messages for conversation %s: %v", conversationID, err)
		return nil, err
	}
	return msgs, nil
}
