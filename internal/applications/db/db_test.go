package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-workflow/internal/applications/db"
	"ms-workflow/internal/models"
	"ms-workflow/internal/storage"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ctx := context.Background()

	tables := []interface{}{
		(*models.User)(nil),
		(*models.Event)(nil),
		(*models.SubEvent)(nil),
		(*models.EventApplication)(nil),
		(*models.TeamLeadApplication)(nil),
		(*models.Volunteer)(nil),
	}
	for _, m := range tables {
		if _, err := bunDB.NewCreateTable().Model(m).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}

	// The ON CONFLICT clause in the approval cascade needs this index.
	_, err = bunDB.NewCreateIndex().
		Model((*models.Volunteer)(nil)).
		Index("volunteers_sub_event_user_key").
		Unique().
		Column("sub_event_id", "user_id").
		Exec(ctx)
	if err != nil {
		t.Fatalf("Failed to create volunteers unique index: %v", err)
	}

	return &db.DB{Bun: bunDB}, bunDB
}

func seedEvent(t *testing.T, bunDB *bun.DB, id, creatorID string) {
	event := models.Event{ID: id, Title: "Test Event", CreatorID: creatorID, Status: "published", CreatedAt: time.Now()}
	_, err := bunDB.NewInsert().Model(&event).Exec(context.Background())
	require.NoError(t, err)
}

func seedSubEvent(t *testing.T, bunDB *bun.DB, id, eventID, teamLeadID string) {
	subEvent := models.SubEvent{ID: id, EventID: eventID, Title: "Test Sub-Event", TeamLeadID: teamLeadID, CreatedAt: time.Now()}
	_, err := bunDB.NewInsert().Model(&subEvent).Exec(context.Background())
	require.NoError(t, err)
}

func seedUser(t *testing.T, bunDB *bun.DB, id string, role models.Role) {
	user := models.User{ID: id, Email: id + "@festly.test", FullName: "Test User " + id, Role: role, CreatedAt: time.Now()}
	_, err := bunDB.NewInsert().Model(&user).Exec(context.Background())
	require.NoError(t, err)
}

func seedEventApplication(t *testing.T, bunDB *bun.DB, id, eventID, creatorID string, status models.ApplicationStatus) {
	app := models.EventApplication{ID: id, EventID: eventID, CreatorID: creatorID, Status: status, AppliedAt: time.Now()}
	_, err := bunDB.NewInsert().Model(&app).Exec(context.Background())
	require.NoError(t, err)
}

func seedTeamLeadApplication(t *testing.T, bunDB *bun.DB, id, subEventID, userID string, status models.ApplicationStatus) {
	app := models.TeamLeadApplication{ID: id, SubEventID: subEventID, UserID: userID, Status: status, CreatedAt: time.Now()}
	_, err := bunDB.NewInsert().Model(&app).Exec(context.Background())
	require.NoError(t, err)
}

func TestApproveEventApplicationCascade(t *testing.T) {
	appDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedEvent(t, bunDB, "event-1", "creator-1")
	seedEventApplication(t, bunDB, "app-1", "event-1", "creator-2", models.StatusPending)
	seedEventApplication(t, bunDB, "app-2", "event-1", "creator-3", models.StatusPending)
	seedEventApplication(t, bunDB, "app-3", "event-1", "creator-4", models.StatusPending)

	winner, err := appDB.GetEventApplication(ctx, "app-1")
	require.NoError(t, err)

	err = appDB.ApproveEventApplication(ctx, winner, "creator-1", time.Now())
	require.NoError(t, err)

	// The winner is approved and stamped.
	approved, err := appDB.GetEventApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.Equal(t, "creator-1", approved.ReviewedBy)

	// The event carries the delegated owner.
	event, err := appDB.GetEvent(ctx, "event-1")
	require.NoError(t, err)
	assert.Equal(t, "creator-2", event.AssignedCreatorID)

	// Every competitor is rejected in the same commit.
	for _, id := range []string{"app-2", "app-3"} {
		loser, err := appDB.GetEventApplication(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, loser.Status, "competitor %s must be rejected", id)
	}

	// A second approval attempt finds no pending row.
	loser, err := appDB.GetEventApplication(ctx, "app-2")
	require.NoError(t, err)
	err = appDB.ApproveEventApplication(ctx, loser, "creator-1", time.Now())
	assert.ErrorIs(t, err, storage.ErrNotPending)
}

func TestRejectEventApplication_OnlyPending(t *testing.T) {
	appDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedEvent(t, bunDB, "event-1", "creator-1")
	seedEventApplication(t, bunDB, "app-1", "event-1", "creator-2", models.StatusPending)

	err := appDB.RejectEventApplication(ctx, "app-1", "creator-1", time.Now())
	require.NoError(t, err)

	err = appDB.RejectEventApplication(ctx, "app-1", "creator-1", time.Now())
	assert.ErrorIs(t, err, storage.ErrNotPending)
}

func TestReopenEventApplication(t *testing.T) {
	appDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedEvent(t, bunDB, "event-1", "creator-1")
	seedEventApplication(t, bunDB, "app-1", "event-1", "creator-2", models.StatusPending)

	require.NoError(t, appDB.RejectEventApplication(ctx, "app-1", "creator-1", time.Now()))

	err := appDB.ReopenEventApplication(ctx, "app-1", "one more try", time.Now())
	require.NoError(t, err)

	app, err := appDB.GetEventApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, app.Status)
	assert.Equal(t, "one more try", app.Message)
	assert.Empty(t, app.ReviewedBy, "review stamp must be cleared on reopen")
	assert.True(t, app.ReviewedAt.IsZero(), "review timestamp must be cleared on reopen")

	// Reopening a pending row is a no-op guarded by the status check.
	err = appDB.ReopenEventApplication(ctx, "app-1", "again", time.Now())
	assert.ErrorIs(t, err, storage.ErrNotPending)
}

func TestFindActiveTeamLeadApplication_IgnoresHistory(t *testing.T) {
	appDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedEvent(t, bunDB, "event-1", "creator-1")
	seedSubEvent(t, bunDB, "sub-1", "event-1", "")
	seedTeamLeadApplication(t, bunDB, "app-1", "sub-1", "student-1", models.StatusRejected)

	_, err := appDB.FindActiveTeamLeadApplication(ctx, "sub-1", "student-1")
	assert.ErrorIs(t, err, storage.ErrNotFound, "rejected rows are history, not active")

	seedTeamLeadApplication(t, bunDB, "app-2", "sub-1", "student-1", models.StatusPending)

	app, err := appDB.FindActiveTeamLeadApplication(ctx, "sub-1", "student-1")
	require.NoError(t, err)
	assert.Equal(t, "app-2", app.ID)
}

func TestApproveTeamLeadApplicationCascade(t *testing.T) {
	appDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedEvent(t, bunDB, "event-1", "creator-1")
	seedSubEvent(t, bunDB, "sub-1", "event-1", "")
	seedUser(t, bunDB, "student-1", models.RoleStudent)
	seedTeamLeadApplication(t, bunDB, "app-1", "sub-1", "student-1", models.StatusPending)
	seedTeamLeadApplication(t, bunDB, "app-2", "sub-1", "student-2", models.StatusPending)

	winner, err := appDB.GetTeamLeadApplication(ctx, "app-1")
	require.NoError(t, err)

	err = appDB.ApproveTeamLeadApplication(ctx, winner, "creator-1", "good record", time.Now())
	require.NoError(t, err)

	// Slot claimed.
	subEvent, err := appDB.GetSubEvent(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "student-1", subEvent.TeamLeadID)

	// Role promoted from student.
	var user models.User
	require.NoError(t, bunDB.NewSelect().Model(&user).Where("id = ?", "student-1").Scan(ctx))
	assert.Equal(t, models.RoleTeamLead, user.Role)

	// Membership recorded.
	count, err := bunDB.NewSelect().
		Model((*models.Volunteer)(nil)).
		Where("sub_event_id = ?", "sub-1").
		Where("user_id = ?", "student-1").
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Competitor rejected with the standard feedback.
	loser, err := appDB.GetTeamLeadApplication(ctx, "app-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, loser.Status)
	assert.Equal(t, "Another applicant was selected", loser.Feedback)
}

func TestApproveTeamLeadApplication_SlotTaken(t *testing.T) {
	appDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedEvent(t, bunDB, "event-1", "creator-1")
	seedSubEvent(t, bunDB, "sub-1", "event-1", "student-9")
	seedUser(t, bunDB, "student-1", models.RoleStudent)
	seedTeamLeadApplication(t, bunDB, "app-1", "sub-1", "student-1", models.StatusPending)

	app, err := appDB.GetTeamLeadApplication(ctx, "app-1")
	require.NoError(t, err)

	err = appDB.ApproveTeamLeadApplication(ctx, app, "creator-1", "", time.Now())
	assert.ErrorIs(t, err, storage.ErrSlotTaken)

	// The failed claim rolls back the approval too.
	after, err := appDB.GetTeamLeadApplication(ctx, "app-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, after.Status)

	var user models.User
	require.NoError(t, bunDB.NewSelect().Model(&user).Where("id = ?", "student-1").Scan(ctx))
	assert.Equal(t, models.RoleStudent, user.Role, "promotion must roll back with the claim")
}

func TestApproveTeamLeadApplication_ExistingMembershipIsIdempotent(t *testing.T) {
	appDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedEvent(t, bunDB, "event-1", "creator-1")
	seedSubEvent(t, bunDB, "sub-1", "event-1", "")
	seedUser(t, bunDB, "student-1", models.RoleStudent)
	seedTeamLeadApplication(t, bunDB, "app-1", "sub-1", "student-1", models.StatusPending)

	// Already a plain volunteer on the same sub-event.
	vol := models.Volunteer{ID: "vol-1", SubEventID: "sub-1", UserID: "student-1", Role: "volunteer", AssignedAt: time.Now()}
	_, err := bunDB.NewInsert().Model(&vol).Exec(ctx)
	require.NoError(t, err)

	app, err := appDB.GetTeamLeadApplication(ctx, "app-1")
	require.NoError(t, err)

	err = appDB.ApproveTeamLeadApplication(ctx, app, "creator-1", "", time.Now())
	require.NoError(t, err)

	count, err := bunDB.NewSelect().
		Model((*models.Volunteer)(nil)).
		Where("sub_event_id = ?", "sub-1").
		Where("user_id = ?", "student-1").
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "membership insert must not duplicate")
}
