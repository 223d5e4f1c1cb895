package removals_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ms-workflow/internal/auth"
	"ms-workflow/internal/logger"
	"ms-workflow/internal/models"
	"ms-workflow/internal/removals"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Volunteer), args.Error(1)
}

func (m *MockDBLayer) GetSubEvent(ctx context.Context, id string) (*models.SubEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubEvent), args.Error(1)
}

func (m *MockDBLayer) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockDBLayer) ListRemovals(ctx context.Context, subEventID string) ([]models.VolunteerRemoval, error) {
	args := m.Called(ctx, subEventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VolunteerRemoval), args.Error(1)
}

func (m *MockDBLayer) RemoveVolunteer(ctx context.Context, vol *models.Volunteer, removerID, reason string, at time.Time) error {
	args := m.Called(ctx, vol, removerID, reason, at)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type MockKafkaProducer struct {
	mock.Mock
}

func (m *MockKafkaProducer) Publish(topic string, key string, value []byte) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

func newTestService() (*removals.Service, *MockDBLayer, *MockNotifier, *MockKafkaProducer) {
	mockDB := new(MockDBLayer)
	mockNotifier := new(MockNotifier)
	mockKafka := new(MockKafkaProducer)
	svc := removals.NewService(mockDB, mockNotifier, mockKafka, "festly.workflow.volunteer.removed", logger.NewLogger())
	return svc, mockDB, mockNotifier, mockKafka
}

func expectMembership(mockDB *MockDBLayer, teamLeadID string) (*models.Volunteer, *models.SubEvent, *models.Event) {
	ctx := context.Background()
	vol := &models.Volunteer{ID: "vol-1", SubEventID: "sub-1", UserID: "student-1", Role: "volunteer"}
	subEvent := &models.SubEvent{ID: "sub-1", EventID: "event-1", Title: "Logistics", TeamLeadID: teamLeadID}
	event := &models.Event{ID: "event-1", Title: "Summer Fest", CreatorID: "creator-1"}
	mockDB.On("GetVolunteer", ctx, "vol-1").Return(vol, nil)
	mockDB.On("GetSubEvent", ctx, "sub-1").Return(subEvent, nil)
	mockDB.On("GetEvent", ctx, "event-1").Return(event, nil)
	return vol, subEvent, event
}

// Tests start here
func TestRemove(t *testing.T) {
	svc, mockDB, mockNotifier, mockKafka := newTestService()
	ctx := context.Background()
	actor := auth.Actor{UserID: "creator-1", Role: models.RoleCreator}

	vol, _, _ := expectMembership(mockDB, "")
	mockDB.On("RemoveVolunteer", ctx, vol, "creator-1", "repeated no-shows", mock.AnythingOfType("time.Time")).Return(nil)
	mockNotifier.On("Notify", ctx, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserID == "student-1" && n.Type == models.NotificationRemoval
	})).Return(nil)
	mockKafka.On("Publish", "festly.workflow.volunteer.removed", "vol-1", mock.Anything).Return(nil)

	err := svc.Remove(ctx, actor, "sub-1", "vol-1", "repeated no-shows")

	assert.NoError(t, err)
	mockDB.AssertExpectations(t)
	mockNotifier.AssertExpectations(t)
	mockKafka.AssertExpectations(t)
}

func TestRemove_ReasonRequired(t *testing.T) {
	svc, mockDB, _, _ := newTestService()

	err := svc.Remove(context.Background(), auth.Actor{UserID: "creator-1", Role: models.RoleCreator}, "sub-1", "vol-1", "   ")

	assert.ErrorIs(t, err, removals.ErrReasonRequired)
	mockDB.AssertNotCalled(t, "GetVolunteer", mock.Anything, mock.Anything)
}

func TestRemove_Forbidden(t *testing.T) {
	svc, mockDB, _, _ := newTestService()
	ctx := context.Background()

	expectMembership(mockDB, "")

	err := svc.Remove(ctx, auth.Actor{UserID: "stranger", Role: models.RoleStudent}, "sub-1", "vol-1", "some reason")

	assert.ErrorIs(t, err, removals.ErrForbidden)
	mockDB.AssertNotCalled(t, "RemoveVolunteer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRemove_TeamLeadMayRemove(t *testing.T) {
	svc, mockDB, mockNotifier, mockKafka := newTestService()
	ctx := context.Background()

	vol, _, _ := expectMembership(mockDB, "lead-1")
	mockDB.On("RemoveVolunteer", ctx, vol, "lead-1", "left the team", mock.AnythingOfType("time.Time")).Return(nil)
	// The team lead is not the creator, so the creator is informed too.
	mockNotifier.On("Notify", ctx, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserID == "student-1"
	})).Return(nil)
	mockNotifier.On("Notify", ctx, mock.MatchedBy(func(n models.Notification) bool {
		return n.UserID == "creator-1"
	})).Return(nil)
	mockKafka.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	err := svc.Remove(ctx, auth.Actor{UserID: "lead-1", Role: models.RoleTeamLead}, "sub-1", "vol-1", "left the team")

	assert.NoError(t, err)
	mockNotifier.AssertExpectations(t)
}

func TestRemove_WrongSubEvent(t *testing.T) {
	svc, mockDB, _, _ := newTestService()
	ctx := context.Background()

	vol := &models.Volunteer{ID: "vol-1", SubEventID: "sub-1", UserID: "student-1"}
	mockDB.On("GetVolunteer", ctx, "vol-1").Return(vol, nil)

	err := svc.Remove(ctx, auth.Actor{UserID: "creator-1", Role: models.RoleCreator}, "sub-OTHER", "vol-1", "reason")
	assert.ErrorIs(t, err, removals.ErrVolunteerNotFound)
}

func TestRemovals_Listing(t *testing.T) {
	svc, mockDB, _, _ := newTestService()
	ctx := context.Background()

	subEvent := &models.SubEvent{ID: "sub-1", EventID: "event-1"}
	event := &models.Event{ID: "event-1", CreatorID: "creator-1"}
	mockDB.On("GetSubEvent", ctx, "sub-1").Return(subEvent, nil)
	mockDB.On("GetEvent", ctx, "event-1").Return(event, nil)

	_, err := svc.Removals(ctx, auth.Actor{UserID: "stranger", Role: models.RoleStudent}, "sub-1")
	assert.ErrorIs(t, err, removals.ErrForbidden)

	history := []models.VolunteerRemoval{{ID: "rem-1", SubEventID: "sub-1"}}
	mockDB.On("ListRemovals", ctx, "sub-1").Return(history, nil)

	got, err := svc.Removals(ctx, auth.Actor{UserID: "creator-1", Role: models.RoleCreator}, "sub-1")
	assert.NoError(t, err)
	assert.Len(t, got, 1)
}
