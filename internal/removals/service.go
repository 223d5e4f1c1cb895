package removals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-workflow/internal/auth"
	"ms-workflow/internal/logger"
	"ms-workflow/internal/models"
	"ms-workflow/internal/storage"
)

type DBLayer interface {
	GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error)
	GetSubEvent(ctx context.Context, id string) (*models.SubEvent, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListRemovals(ctx context.Context, subEventID string) ([]models.VolunteerRemoval, error)
	RemoveVolunteer(ctx context.Context, vol *models.Volunteer, removerID, reason string, at time.Time) error
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type KafkaPublisher interface {
	Publish(topic string, key string, value []byte) error
}

// Service is the removal logger: reasoned, audited ejection of an active
// volunteer, reversing the grants the approval or redemption flow made.
type Service struct {
	DB       DBLayer
	Notifier Notifier
	Kafka    KafkaPublisher
	Topic    string
	Logger   *logger.Logger
}

func NewService(db DBLayer, notifier Notifier, kafka KafkaPublisher, topic string, log *logger.Logger) *Service {
	return &Service{DB: db, Notifier: notifier, Kafka: kafka, Topic: topic, Logger: log}
}

// Remove ejects a volunteer from a sub-event. The reason is mandatory and is
// validated before any row is touched.
func (s *Service) Remove(ctx context.Context, actor auth.Actor, subEventID, volunteerID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}

	vol, err := s.DB.GetVolunteer(ctx, volunteerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrVolunteerNotFound
		}
		return fmt.Errorf("failed to load volunteer %s: %w", volunteerID, err)
	}
	if vol.SubEventID != subEventID {
		return ErrVolunteerNotFound
	}

	subEvent, err := s.DB.GetSubEvent(ctx, subEventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSubEventNotFound
		}
		return fmt.Errorf("failed to load sub-event %s: %w", subEventID, err)
	}

	event, err := s.DB.GetEvent(ctx, subEvent.EventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to load event %s: %w", subEvent.EventID, err)
	}

	isTeamLead := subEvent.TeamLeadID != "" && subEvent.TeamLeadID == actor.UserID
	if !actor.IsAdmin() && !event.OwnedBy(actor.UserID) && !isTeamLead {
		return ErrForbidden
	}

	if err := s.DB.RemoveVolunteer(ctx, vol, actor.UserID, reason, time.Now()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrVolunteerNotFound
		}
		return fmt.Errorf("failed to remove volunteer %s: %w", volunteerID, err)
	}

	s.Logger.LogRemoval("REMOVE", volunteerID, fmt.Sprintf("removed from sub-event %s by %s", subEventID, actor.UserID))
	s.afterRemoval(ctx, actor, vol, subEvent, event, reason)
	return nil
}

// afterRemoval delivers the post-commit notifications: the removed volunteer
// always, the event creator only when someone else did the removing.
func (s *Service) afterRemoval(ctx context.Context, actor auth.Actor, vol *models.Volunteer, subEvent *models.SubEvent, event *models.Event, reason string) {
	if err := s.Notifier.Notify(ctx, models.Notification{
		UserID:  vol.UserID,
		Type:    models.NotificationRemoval,
		Title:   "Removed from team",
		Message: fmt.Sprintf("You were removed from %q. Reason: %s", subEvent.Title, reason),
		Link:    fmt.Sprintf("/sub-events/%s", subEvent.ID),
	}); err != nil {
		s.Logger.Warn("REMOVAL", fmt.Sprintf("notification failed for volunteer %s: %v", vol.ID, err))
	}

	if actor.UserID != event.CreatorID && !actor.IsAdmin() {
		if err := s.Notifier.Notify(ctx, models.Notification{
			UserID:  event.CreatorID,
			Type:    models.NotificationRemoval,
			Title:   "Volunteer removed",
			Message: fmt.Sprintf("%s was removed from %q. Reason: %s", vol.UserID, subEvent.Title, reason),
			Link:    fmt.Sprintf("/creator/sub-events/%s", subEvent.ID),
		}); err != nil {
			s.Logger.Warn("REMOVAL", fmt.Sprintf("creator notification failed for volunteer %s: %v", vol.ID, err))
		}
	}

	if s.Kafka != nil {
		value, err := json.Marshal(map[string]string{
			"volunteer_id": vol.ID,
			"sub_event_id": subEvent.ID,
			"removed_by":   actor.UserID,
		})
		if err != nil {
			return
		}
		if err := s.Kafka.Publish(s.Topic, vol.ID, value); err != nil {
			s.Logger.Warn("KAFKA", fmt.Sprintf("failed to publish removal of %s: %v", vol.ID, err))
		}
	}
}

// Removals lists the append-only audit trail of one sub-event.
func (s *Service) Removals(ctx context.Context, actor auth.Actor, subEventID string) ([]models.VolunteerRemoval, error) {
	subEvent, err := s.DB.GetSubEvent(ctx, subEventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSubEventNotFound
		}
		return nil, fmt.Errorf("failed to load sub-event %s: %w", subEventID, err)
	}

	event, err := s.DB.GetEvent(ctx, subEvent.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event %s: %w", subEvent.EventID, err)
	}

	isTeamLead := subEvent.TeamLeadID != "" && subEvent.TeamLeadID == actor.UserID
	if !actor.IsAdmin() && !event.OwnedBy(actor.UserID) && !isTeamLead {
		return nil, ErrForbidden
	}

	return s.DB.ListRemovals(ctx, subEventID)
}
