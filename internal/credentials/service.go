package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ms-workflow/internal/auth"
	"ms-workflow/internal/logger"
	"ms-workflow/internal/models"
	"ms-workflow/internal/storage"
	"ms-workflow/internal/utils"
)

const (
	passwordLength   = 12
	codeGenAttempts  = 3
	defaultTTLBackup = 7 * 24 * time.Hour
)

type DBLayer interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	GetCredential(ctx context.Context, id string) (*models.TeamLeadCredential, error)
	GetCredentialByCode(ctx context.Context, code string) (*models.TeamLeadCredential, error)
	ListEventCredentials(ctx context.Context, eventID string) ([]models.TeamLeadCredential, error)
	InsertCredential(ctx context.Context, cred models.TeamLeadCredential) error
	RedeemCredential(ctx context.Context, cred *models.TeamLeadCredential, redeemerID string, at time.Time) (int, error)
	RevokeCredential(ctx context.Context, id string) error
}

type CredentialLock interface {
	LockCredential(code, holder string) (bool, error)
	UnlockCredential(code, holder string) error
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type KafkaPublisher interface {
	Publish(topic string, key string, value []byte) error
}

type CodeGenerator func(prefix string) string

type PasswordGenerator func(length int) string

// Service issues and redeems team-lead credentials. A credential grants
// team-lead authority over every sub-event of one event from a single
// redemption, which the application flow never does.
type Service struct {
	DB            DBLayer
	Locks         CredentialLock
	Notifier      Notifier
	Kafka         KafkaPublisher
	IssuedTopic   string
	RedeemedTopic string
	CodePrefix    string
	DefaultTTL    time.Duration
	Logger        *logger.Logger

	GenerateCode     CodeGenerator
	GeneratePassword PasswordGenerator
}

func NewService(db DBLayer, locks CredentialLock, notifier Notifier, kafka KafkaPublisher, issuedTopic, redeemedTopic, codePrefix string, defaultTTL time.Duration, log *logger.Logger) *Service {
	return &Service{
		DB:               db,
		Locks:            locks,
		Notifier:         notifier,
		Kafka:            kafka,
		IssuedTopic:      issuedTopic,
		RedeemedTopic:    redeemedTopic,
		CodePrefix:       codePrefix,
		DefaultTTL:       defaultTTL,
		Logger:           log,
		GenerateCode:     utils.GenerateCredentialCode,
		GeneratePassword: utils.GeneratePassword,
	}
}

// IssueParams are the caller-supplied knobs of an issuance. StudentID,
// CustomCode and ExpiresAt are all optional.
type IssueParams struct {
	EventID    string
	StudentID  string
	CustomCode string
	ExpiresAt  time.Time
}

// IssuedCredential carries the plaintext password out of Issue exactly once.
// It is never persisted and never logged.
type IssuedCredential struct {
	ID        string    `json:"credential_id"`
	Code      string    `json:"credential_code"`
	Password  string    `json:"password"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RedeemResult struct {
	EventTitle  string      `json:"event_title"`
	NewRole     models.Role `json:"new_role"`
	SlotsFilled int         `json:"slots_filled"`
}

// Issue mints a new single-use credential for an event. Only an admin or the
// event's original creator may issue.
func (s *Service) Issue(ctx context.Context, actor auth.Actor, params IssueParams) (*IssuedCredential, error) {
	event, err := s.DB.GetEvent(ctx, params.EventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event %s: %w", params.EventID, err)
	}

	if !actor.IsAdmin() && event.CreatorID != actor.UserID {
		return nil, ErrForbidden
	}

	expiresAt := params.ExpiresAt
	if expiresAt.IsZero() {
		ttl := s.DefaultTTL
		if ttl <= 0 {
			ttl = defaultTTLBackup
		}
		expiresAt = time.Now().Add(ttl)
	}

	password := s.GeneratePassword(passwordLength)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash credential password: %w", err)
	}

	cred := models.TeamLeadCredential{
		ID:           uuid.NewString(),
		EventID:      params.EventID,
		StudentID:    params.StudentID,
		PasswordHash: string(hash),
		Status:       models.CredentialActive,
		ExpiresAt:    expiresAt,
		CreatedBy:    actor.UserID,
		CreatedAt:    time.Now(),
	}

	if params.CustomCode != "" {
		cred.CredentialCode = params.CustomCode
		if err := s.DB.InsertCredential(ctx, cred); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return nil, ErrCodeTaken
			}
			return nil, fmt.Errorf("failed to store credential: %w", err)
		}
	} else {
		// Generated codes retry on the (negligible) chance of a collision;
		// the unique constraint is the final word either way.
		inserted := false
		for attempt := 0; attempt < codeGenAttempts; attempt++ {
			cred.CredentialCode = s.GenerateCode(s.CodePrefix)
			err = s.DB.InsertCredential(ctx, cred)
			if err == nil {
				inserted = true
				break
			}
			if !errors.Is(err, storage.ErrDuplicate) {
				return nil, fmt.Errorf("failed to store credential: %w", err)
			}
		}
		if !inserted {
			return nil, fmt.Errorf("failed to generate a unique credential code: %w", err)
		}
	}

	s.Logger.LogCredential("ISSUE", cred.ID, fmt.Sprintf("issued for event %s by %s", params.EventID, actor.UserID))

	if cred.StudentID != "" {
		if err := s.Notifier.Notify(ctx, models.Notification{
			UserID:  cred.StudentID,
			Type:    models.NotificationCredential,
			Title:   "Team Lead credential issued",
			Message: fmt.Sprintf("A Team Lead credential for %q was issued to you. Code: %s", event.Title, cred.CredentialCode),
			Link:    fmt.Sprintf("/credentials/redeem?code=%s", cred.CredentialCode),
		}); err != nil {
			s.Logger.Warn("CREDENTIAL", fmt.Sprintf("notification failed for credential %s: %v", cred.ID, err))
		}
	}

	s.publish(s.IssuedTopic, cred.ID, map[string]string{
		"credential_id": cred.ID,
		"event_id":      cred.EventID,
		"issued_by":     actor.UserID,
	})

	return &IssuedCredential{
		ID:        cred.ID,
		Code:      cred.CredentialCode,
		Password:  password,
		ExpiresAt: cred.ExpiresAt,
	}, nil
}

// Redeem validates and consumes a credential, granting the redeemer
// team-lead authority over every open sub-event slot of the event. Each
// validation failure is terminal and leaves all state untouched.
func (s *Service) Redeem(ctx context.Context, actor auth.Actor, code, password string) (*RedeemResult, error) {
	cred, err := s.DB.GetCredentialByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	now := time.Now()
	switch {
	case cred.Expired(now):
		return nil, ErrCredentialExpired
	case cred.Status == models.CredentialUsed:
		return nil, ErrCredentialUsed
	case cred.Status == models.CredentialRevoked:
		return nil, ErrCredentialRevoked
	}
	if boundTo, bound := cred.BoundTo(); bound && boundTo != actor.UserID {
		return nil, ErrCredentialNotYours
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, ErrWrongPassword
	}

	if s.Locks != nil {
		ok, lockErr := s.Locks.LockCredential(code, actor.UserID)
		if lockErr == nil {
			if !ok {
				return nil, ErrRedemptionInProgress
			}
			defer s.Locks.UnlockCredential(code, actor.UserID)
		}
	}

	filled, err := s.DB.RedeemCredential(ctx, cred, actor.UserID, now)
	if err != nil {
		if errors.Is(err, storage.ErrCredentialSpent) {
			return nil, ErrCredentialUsed
		}
		return nil, fmt.Errorf("failed to redeem credential: %w", err)
	}

	event, err := s.DB.GetEvent(ctx, cred.EventID)
	if err != nil {
		// The redemption committed; a missing title is not worth failing over.
		event = &models.Event{ID: cred.EventID, Title: cred.EventID}
	}

	s.Logger.LogCredential("REDEEM", cred.ID, fmt.Sprintf("redeemed by %s, %d slots filled", actor.UserID, filled))

	if err := s.Notifier.Notify(ctx, models.Notification{
		UserID:  cred.CreatedBy,
		Type:    models.NotificationCredential,
		Title:   "Credential redeemed",
		Message: fmt.Sprintf("Your Team Lead credential for %q was redeemed.", event.Title),
		Link:    fmt.Sprintf("/creator/events/%s", cred.EventID),
	}); err != nil {
		s.Logger.Warn("CREDENTIAL", fmt.Sprintf("notification failed for credential %s: %v", cred.ID, err))
	}

	s.publish(s.RedeemedTopic, cred.ID, map[string]string{
		"credential_id": cred.ID,
		"event_id":      cred.EventID,
		"redeemed_by":   actor.UserID,
	})

	newRole := actor.Role
	if newRole == models.RoleStudent {
		newRole = models.RoleTeamLead
	}
	return &RedeemResult{
		EventTitle:  event.Title,
		NewRole:     newRole,
		SlotsFilled: filled,
	}, nil
}

// Revoke invalidates an active credential. Admins, the event creator and the
// original issuer may revoke.
func (s *Service) Revoke(ctx context.Context, actor auth.Actor, credentialID string) error {
	cred, err := s.DB.GetCredential(ctx, credentialID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCredentialNotFound
		}
		return fmt.Errorf("failed to load credential %s: %w", credentialID, err)
	}

	event, err := s.DB.GetEvent(ctx, cred.EventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("failed to load event %s: %w", cred.EventID, err)
	}

	if !actor.IsAdmin() && event.CreatorID != actor.UserID && cred.CreatedBy != actor.UserID {
		return ErrForbidden
	}

	if err := s.DB.RevokeCredential(ctx, credentialID); err != nil {
		if errors.Is(err, storage.ErrCredentialSpent) {
			if cred.Status == models.CredentialUsed {
				return ErrCredentialUsed
			}
			return ErrCredentialRevoked
		}
		return fmt.Errorf("failed to revoke credential %s: %w", credentialID, err)
	}

	s.Logger.LogCredential("REVOKE", credentialID, fmt.Sprintf("revoked by %s", actor.UserID))
	return nil
}

// EventCredentials lists an event's credentials for its creator or an admin.
// Password hashes never serialize.
func (s *Service) EventCredentials(ctx context.Context, actor auth.Actor, eventID string) ([]models.TeamLeadCredential, error) {
	event, err := s.DB.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event %s: %w", eventID, err)
	}
	if !actor.IsAdmin() && event.CreatorID != actor.UserID {
		return nil, ErrForbidden
	}
	return s.DB.ListEventCredentials(ctx, eventID)
}

func (s *Service) publish(topic, key string, payload map[string]string) {
	if s.Kafka == nil || topic == "" {
		return
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.Kafka.Publish(topic, key, value); err != nil {
		s.Logger.Warn("KAFKA", fmt.Sprintf("failed to publish credential event %s: %v", key, err))
	}
}
