package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"pulsechat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Storage is the persistence collaborator of the realtime core. The core does
// not own the schema; it reads and mutates through this interface only.
type Storage interface {
	GetUserByID(userID string) (*models.User, error)
	SaveUser(user *models.User) error
	UpdateUserLastOnline(userID string, t time.Time) error

	GetOrCreateConversation(user1, user2 string) (*models.Conversation, error)
	GetConversationByID(conversationID string) (*models.Conversation, error)
	RecordLastMessage(conv *models.Conversation, msg *models.Message) error
	ResetUnread(conversationID, userID string) error

	CreateMessage(msg *models.Message) error
	GetMessageByID(messageID string) (*models.Message, error)
	AdvanceMessageStatus(messageID string, to models.MessageStatus, at time.Time) (bool, error)
	ListUnseenMessages(conversationID, readerID string, messageIDs []string) ([]models.Message, error)
	ListUndeliveredMessages(conversationID, recipientID string) ([]models.Message, error)

	CreateCall(call *models.Call) error
	GetCallByID(callID string) (*models.Call, error)
	UpdateCallStatus(callID string, status models.CallStatus, startedAt, endedAt *time.Time) error

	IsUserBanned(userID string) (bool, error)
	MirrorPresence(userID string, isOnline bool, lastOnline time.Time) error
	PublishEvent(targetUserID string, event models.Event) error
}

// Service implements Storage on PostgreSQL (gorm) and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// BroadcastChannel is the Redis pub/sub channel other instances listen on.
const BroadcastChannel = "events:broadcast"

const presenceTTL = 2 * time.Minute

func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

func (s *Service) GetUserByID(userID string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

// UpdateUserLastOnline flushes the in-memory last-seen timestamp to the
// durable user record on an online->offline transition.
func (s *Service) UpdateUserLastOnline(userID string, t time.Time) error {
	return s.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_online", t).Error
}

// IsUserBanned checks the moderation ban flag in Redis.
func (s *Service) IsUserBanned(userID string) (bool, error) {
	status, err := s.Redis.Get(s.Ctx, "ban:"+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// MirrorPresence keeps a Redis copy of the presence entry so other services
// can answer "is this user online" without hitting this process.
func (s *Service) MirrorPresence(userID string, isOnline bool, lastOnline time.Time) error {
	key := "presence:" + userID
	pipe := s.Redis.Pipeline()
	if isOnline {
		data, err := json.Marshal(map[string]any{
			"user_id":   userID,
			"is_online": true,
			"last_seen": lastOnline,
		})
		if err != nil {
			return err
		}
		pipe.Set(s.Ctx, key, data, presenceTTL)
		pipe.SAdd(s.Ctx, "online_users", userID)
	} else {
		pipe.Del(s.Ctx, key)
		pipe.SRem(s.Ctx, "online_users", userID)
	}
	_, err := pipe.Exec(s.Ctx)
	return err
}

// PublishEvent broadcasts an event to the shared Redis channel so sibling
// instances can deliver it to sockets they own.
func (s *Service) PublishEvent(targetUserID string, event models.Event) error {
	payload, err := json.Marshal(models.RemoteEvent{UserID: targetUserID, Event: event})
	if err != nil {
		return err
	}
	if err := s.Redis.Publish(s.Ctx, BroadcastChannel, string(payload)).Err(); err != nil {
		log.Printf("ERROR: Failed to publish event %s: %v", event.Event, err)
		return err
	}
	return nil
}

// Subscribe returns the pub/sub handle for the broadcast channel.
func (s *Service) Subscribe() *redis.PubSub {
	return s.Redis.Subscribe(s.Ctx, BroadcastChannel)
}
