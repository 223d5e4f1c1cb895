package applications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-workflow/internal/auth"
	"ms-workflow/internal/logger"
	"ms-workflow/internal/models"
	"ms-workflow/internal/storage"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type DBLayer interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetSubEvent(ctx context.Context, id string) (*models.SubEvent, error)
	GetEventApplication(ctx context.Context, id string) (*models.EventApplication, error)
	GetTeamLeadApplication(ctx context.Context, id string) (*models.TeamLeadApplication, error)
	FindEventApplication(ctx context.Context, eventID, creatorID string) (*models.EventApplication, error)
	FindActiveTeamLeadApplication(ctx context.Context, subEventID, userID string) (*models.TeamLeadApplication, error)
	ListPendingEventApplications(ctx context.Context, eventID string) ([]models.EventApplication, error)
	ListPendingTeamLeadApplications(ctx context.Context, subEventID string) ([]models.TeamLeadApplication, error)
	InsertEventApplication(ctx context.Context, app models.EventApplication) error
	ReopenEventApplication(ctx context.Context, id, message string, at time.Time) error
	InsertTeamLeadApplication(ctx context.Context, app models.TeamLeadApplication) error
	ApproveEventApplication(ctx context.Context, app *models.EventApplication, reviewerID string, at time.Time) error
	RejectEventApplication(ctx context.Context, id, reviewerID string, at time.Time) error
	ApproveTeamLeadApplication(ctx context.Context, app *models.TeamLeadApplication, reviewerID, feedback string, at time.Time) error
	RejectTeamLeadApplication(ctx context.Context, id, reviewerID, feedback string, at time.Time) error
}

type SlotLock interface {
	LockSlot(subEventID, holder string) (bool, error)
	UnlockSlot(subEventID, holder string) error
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type KafkaPublisher interface {
	Publish(topic string, key string, value []byte) error
}

// Service is the application ledger and approval orchestrator for both the
// event-creator and the team-lead flows. All ownership writes funnel through
// it; nothing else touches assigned_creator_id or team_lead_id.
type Service struct {
	DB       DBLayer
	Locks    SlotLock
	Notifier Notifier
	Kafka    KafkaPublisher
	Topic    string
	Logger   *logger.Logger
}

func NewService(db DBLayer, locks SlotLock, notifier Notifier, kafka KafkaPublisher, topic string, log *logger.Logger) *Service {
	return &Service{DB: db, Locks: locks, Notifier: notifier, Kafka: kafka, Topic: topic, Logger: log}
}

// ---------------- EVENT APPLICATIONS ----------------

// SubmitEventApplication records a creator's request to take over an event.
// A rejected row for the same pair is reopened in place; pending and approved
// rows refuse the submission.
func (s *Service) SubmitEventApplication(ctx context.Context, actor auth.Actor, eventID, message string) (string, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrEventNotFound
		}
		return "", fmt.Errorf("failed to load event %s: %w", eventID, err)
	}

	if event.OwnedBy(actor.UserID) {
		return "", ErrAlreadyOwner
	}

	existing, err := s.DB.FindEventApplication(ctx, eventID, actor.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("failed to look up application history: %w", err)
	}

	if existing != nil {
		switch existing.Status {
		case models.StatusPending:
			return "", ErrDuplicatePending
		case models.StatusApproved:
			return "", ErrAlreadyAssigned
		case models.StatusRejected:
			// Resubmission keeps one history row per (event, applicant).
			if err := s.DB.ReopenEventApplication(ctx, existing.ID, message, time.Now()); err != nil {
				return "", fmt.Errorf("failed to reopen application %s: %w", existing.ID, err)
			}
			s.Logger.LogApplication("RESUBMIT", existing.ID, fmt.Sprintf("creator %s reopened application for event %s", actor.UserID, eventID))
			return existing.ID, nil
		}
	}

	app := models.EventApplication{
		ID:        uuid.NewString(),
		EventID:   eventID,
		CreatorID: actor.UserID,
		Message:   message,
		Status:    models.StatusPending,
		AppliedAt: time.Now(),
	}
	if err := s.DB.InsertEventApplication(ctx, app); err != nil {
		return "", fmt.Errorf("failed to store application: %w", err)
	}

	s.Logger.LogApplication("SUBMIT", app.ID, fmt.Sprintf("creator %s applied for event %s", actor.UserID, eventID))
	return app.ID, nil
}

// DecideEventApplication approves or rejects a pending event application.
// Approval assigns the delegated owner and rejects every competing pending
// application in the same transaction.
func (s *Service) DecideEventApplication(ctx context.Context, actor auth.Actor, applicationID string, decision Decision) error {
	if decision != DecisionApprove && decision != DecisionReject {
		return ErrInvalidDecision
	}

	app, err := s.DB.GetEventApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrApplicationNotFound
		}
		return fmt.Errorf("failed to load application %s: %w", applicationID, err)
	}
	if app.Status != models.StatusPending {
		return ErrAlreadyReviewed
	}

	event, err := s.DB.GetEvent(ctx, app.EventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to load event %s: %w", app.EventID, err)
	}

	if !actor.IsAdmin() && !event.OwnedBy(actor.UserID) {
		return ErrForbidden
	}

	now := time.Now()
	if decision == DecisionApprove {
		err = s.DB.ApproveEventApplication(ctx, app, actor.UserID, now)
	} else {
		err = s.DB.RejectEventApplication(ctx, app.ID, actor.UserID, now)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotPending) {
			return ErrAlreadyReviewed
		}
		return fmt.Errorf("failed to apply decision: %w", err)
	}

	s.Logger.LogApplication("DECIDE", app.ID, fmt.Sprintf("reviewer %s decided event application: %s", actor.UserID, decision))
	s.afterEventDecision(ctx, app, event, decision)
	return nil
}

// afterEventDecision runs the post-commit side effects. Failures are logged
// and swallowed; the decision has already committed.
func (s *Service) afterEventDecision(ctx context.Context, app *models.EventApplication, event *models.Event, decision Decision) {
	title := "Event application rejected"
	message := fmt.Sprintf("Your application for %q was rejected.", event.Title)
	link := fmt.Sprintf("/events/%s", event.ID)
	if decision == DecisionApprove {
		title = "Event application approved"
		message = fmt.Sprintf("You are now the assigned creator of %q.", event.Title)
		link = fmt.Sprintf("/creator/events/%s", event.ID)
	}

	if err := s.Notifier.Notify(ctx, models.Notification{
		UserID:  app.CreatorID,
		Type:    models.NotificationApplication,
		Title:   title,
		Message: message,
		Link:    link,
	}); err != nil {
		s.Logger.Warn("APPLICATION", fmt.Sprintf("notification failed for application %s: %v", app.ID, err))
	}

	s.publishDecided(app.ID, "event", string(decision), app.CreatorID)
}

// ---------------- TEAM LEAD APPLICATIONS ----------------

// SubmitTeamLeadApplication records a user's request for a sub-event's
// team-lead slot. An occupied slot refuses the submission outright; a
// rejected history row leads to a fresh pending row, not a reopen.
func (s *Service) SubmitTeamLeadApplication(ctx context.Context, actor auth.Actor, subEventID, message string) (string, error) {
	subEvent, err := s.DB.GetSubEvent(ctx, subEventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrSubEventNotFound
		}
		return "", fmt.Errorf("failed to load sub-event %s: %w", subEventID, err)
	}

	if subEvent.TeamLeadID != "" {
		if subEvent.TeamLeadID == actor.UserID {
			return "", ErrAlreadyOwner
		}
		return "", ErrSlotAlreadyFilled
	}

	existing, err := s.DB.FindActiveTeamLeadApplication(ctx, subEventID, actor.UserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("failed to look up application history: %w", err)
	}
	if existing != nil {
		if existing.Status == models.StatusApproved {
			return "", ErrAlreadyAssigned
		}
		return "", ErrDuplicatePending
	}

	app := models.TeamLeadApplication{
		ID:         uuid.NewString(),
		UserID:     actor.UserID,
		SubEventID: subEventID,
		Message:    message,
		Status:     models.StatusPending,
		CreatedAt:  time.Now(),
	}
	if err := s.DB.InsertTeamLeadApplication(ctx, app); err != nil {
		return "", fmt.Errorf("failed to store application: %w", err)
	}

	s.Logger.LogApplication("SUBMIT", app.ID, fmt.Sprintf("user %s applied for sub-event %s", actor.UserID, subEventID))
	return app.ID, nil
}

// DecideTeamLeadApplication approves or rejects a pending team-lead
// application. Approval claims the slot (re-checked inside the transaction),
// promotes the applicant, records the membership and rejects the competitors.
func (s *Service) DecideTeamLeadApplication(ctx context.Context, actor auth.Actor, applicationID string, decision Decision, feedback string) error {
	if decision != DecisionApprove && decision != DecisionReject {
		return ErrInvalidDecision
	}

	app, err := s.DB.GetTeamLeadApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrApplicationNotFound
		}
		return fmt.Errorf("failed to load application %s: %w", applicationID, err)
	}
	if app.Status != models.StatusPending {
		return ErrAlreadyReviewed
	}

	subEvent, err := s.DB.GetSubEvent(ctx, app.SubEventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSubEventNotFound
		}
		return fmt.Errorf("failed to load sub-event %s: %w", app.SubEventID, err)
	}

	event, err := s.DB.GetEvent(ctx, subEvent.EventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to load event %s: %w", subEvent.EventID, err)
	}

	// The event's creator or assigned creator reviews; no team lead exists
	// for the slot yet at review time.
	if !actor.IsAdmin() && !event.OwnedBy(actor.UserID) {
		return ErrForbidden
	}

	now := time.Now()
	if decision == DecisionApprove {
		// Advisory lock narrows the window between the pending check and
		// the commit; the IS NULL guard inside the transaction decides.
		if s.Locks != nil {
			if ok, lockErr := s.Locks.LockSlot(app.SubEventID, app.ID); lockErr == nil && ok {
				defer s.Locks.UnlockSlot(app.SubEventID, app.ID)
			}
		}
		err = s.DB.ApproveTeamLeadApplication(ctx, app, actor.UserID, feedback, now)
	} else {
		err = s.DB.RejectTeamLeadApplication(ctx, app.ID, actor.UserID, feedback, now)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotPending) {
			return ErrAlreadyReviewed
		}
		if errors.Is(err, storage.ErrSlotTaken) {
			return ErrSlotAlreadyFilled
		}
		return fmt.Errorf("failed to apply decision: %w", err)
	}

	s.Logger.LogApplication("DECIDE", app.ID, fmt.Sprintf("reviewer %s decided team-lead application: %s", actor.UserID, decision))
	s.afterTeamLeadDecision(ctx, app, subEvent, decision)
	return nil
}

func (s *Service) afterTeamLeadDecision(ctx context.Context, app *models.TeamLeadApplication, subEvent *models.SubEvent, decision Decision) {
	title := "Team Lead application rejected"
	message := fmt.Sprintf("Your application for %q was rejected.", subEvent.Title)
	link := fmt.Sprintf("/sub-events/%s", subEvent.ID)
	if decision == DecisionApprove {
		title = "Team Lead application approved"
		message = fmt.Sprintf("You are now the Team Lead of %q.", subEvent.Title)
		link = fmt.Sprintf("/teamlead/sub-events/%s", subEvent.ID)
	}

	if err := s.Notifier.Notify(ctx, models.Notification{
		UserID:  app.UserID,
		Type:    models.NotificationApplication,
		Title:   title,
		Message: message,
		Link:    link,
	}); err != nil {
		s.Logger.Warn("APPLICATION", fmt.Sprintf("notification failed for application %s: %v", app.ID, err))
	}

	s.publishDecided(app.ID, "team_lead", string(decision), app.UserID)
}

func (s *Service) publishDecided(applicationID, kind, decision, applicantID string) {
	if s.Kafka == nil {
		return
	}
	value, err := json.Marshal(map[string]string{
		"application_id": applicationID,
		"kind":           kind,
		"decision":       decision,
		"applicant_id":   applicantID,
	})
	if err != nil {
		return
	}
	if err := s.Kafka.Publish(s.Topic, applicationID, value); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("failed to publish decision for %s: %v", applicationID, err))
	}
}

// ---------------- QUERIES ----------------

// EventApplicationStatus reports the ledger status for one (applicant, event)
// pair.
func (s *Service) EventApplicationStatus(ctx context.Context, eventID, applicantID string) (models.ApplicationStatus, error) {
	app, err := s.DB.FindEventApplication(ctx, eventID, applicantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrApplicationNotFound
		}
		return "", fmt.Errorf("failed to look up application: %w", err)
	}
	return app.Status, nil
}

// TeamLeadApplicationStatus reports the active ledger status for one
// (applicant, sub-event) pair.
func (s *Service) TeamLeadApplicationStatus(ctx context.Context, subEventID, userID string) (models.ApplicationStatus, error) {
	app, err := s.DB.FindActiveTeamLeadApplication(ctx, subEventID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrApplicationNotFound
		}
		return "", fmt.Errorf("failed to look up application: %w", err)
	}
	return app.Status, nil
}

// PendingEventApplications lists the review queue for an event's owner.
func (s *Service) PendingEventApplications(ctx context.Context, actor auth.Actor, eventID string) ([]models.EventApplication, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event %s: %w", eventID, err)
	}
	if !actor.IsAdmin() && !event.OwnedBy(actor.UserID) {
		return nil, ErrForbidden
	}
	return s.DB.ListPendingEventApplications(ctx, eventID)
}

// PendingTeamLeadApplications lists the review queue for a sub-event.
func (s *Service) PendingTeamLeadApplications(ctx context.Context, actor auth.Actor, subEventID string) ([]models.TeamLeadApplication, error) {
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
	if !actor.IsAdmin() && !event.OwnedBy(actor.UserID) {
		return nil, ErrForbidden
	}
	return s.DB.ListPendingTeamLeadApplications(ctx, subEventID)
}
