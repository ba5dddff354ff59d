package storage

import (
	"errors"
	"log"
	"time"

	"pulsechat/backend/internal/models"
	apperrors "pulsechat/backend/pkg/errors"

	"gorm.io/gorm"
)

func (s *Service) CreateCall(call *models.Call) error {
	if err := s.DB.Create(call).Error; err != nil {
		log.Printf("ERROR: Failed to save call %s: %v", call.ID, err)
		return err
	}
	return nil
}

func (s *Service) GetCallByID(callID string) (*models.Call, error) {
	var call models.Call
	err := s.DB.First(&call, "id = ?", callID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrCallNotFound
	}
	if err != nil {
		return nil, err
	}
	return &call, nil
}

// UpdateCallStatus writes the durable call record's status and optional
// started/ended timestamps.
func (s *Service) UpdateCallStatus(callID string, status models.CallStatus, startedAt, endedAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if startedAt != nil {
		updates["started_at"] = *startedAt
	}
	if endedAt != nil {
		updates["ended_at"] = *endedAt
	}
	err := s.DB.Model(&models.Call{}).
		Where("id = ?", callID).
		Updates(updates).Error
	if err != nil {
		log.Printf("ERROR: Failed to update call %s to %s: %v", callID, status, err)
	}
	return err
}
