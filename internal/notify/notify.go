package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-workflow/internal/logger"
	"ms-workflow/internal/models"
)

type DBLayer interface {
	InsertNotification(ctx context.Context, n models.Notification) error
}

type KafkaPublisher interface {
	Publish(topic string, key string, value []byte) error
}

// Service delivers user-facing notifications. Callers invoke it after their
// transaction has committed; a delivery failure is logged and never unwinds
// the operation that triggered it.
type Service struct {
	DB     DBLayer
	Kafka  KafkaPublisher
	Topic  string
	Logger *logger.Logger
}

func NewService(db DBLayer, kafka KafkaPublisher, topic string, log *logger.Logger) *Service {
	return &Service{DB: db, Kafka: kafka, Topic: topic, Logger: log}
}

// Notify persists the notification row and streams it to Kafka. The row is
// the primary record; a Kafka failure alone does not fail the call.
func (s *Service) Notify(ctx context.Context, n models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	if err := s.DB.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	if s.Kafka != nil {
		value, err := json.Marshal(n)
		if err != nil {
			s.Logger.Error("NOTIFY", fmt.Sprintf("failed to marshal notification %s: %v", n.ID, err))
			return nil
		}
		if err := s.Kafka.Publish(s.Topic, n.UserID, value); err != nil {
			s.Logger.Warn("NOTIFY", fmt.Sprintf("kafka publish failed for notification %s: %v", n.ID, err))
		}
	}

	return nil
}
