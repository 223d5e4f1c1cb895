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

	"ms-workflow/internal/credentials/db"
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
		(*models.TeamLeadCredential)(nil),
		(*models.Volunteer)(nil),
	}
	for _, m := range tables {
		if _, err := bunDB.NewCreateTable().Model(m).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}

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

func seedCredential(t *testing.T, bunDB *bun.DB, cred models.TeamLeadCredential) {
	if cred.PasswordHash == "" {
		cred.PasswordHash = "hash"
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}
	_, err := bunDB.NewInsert().Model(&cred).Exec(context.Background())
	require.NoError(t, err)
}

func seedRedemptionFixture(t *testing.T, bunDB *bun.DB) {
	ctx := context.Background()

	user := models.User{ID: "student-1", Email: "student-1@festly.test", FullName: "Student One", Role: models.RoleStudent, CreatedAt: time.Now()}
	_, err := bunDB.NewInsert().Model(&user).Exec(ctx)
	require.NoError(t, err)

	event := models.Event{ID: "event-1", Title: "Summer Fest", CreatorID: "creator-1", Status: "published", CreatedAt: time.Now()}
	_, err = bunDB.NewInsert().Model(&event).Exec(ctx)
	require.NoError(t, err)

	subEvents := []models.SubEvent{
		{ID: "sub-1", EventID: "event-1", Title: "Logistics", CreatedAt: time.Now()},
		{ID: "sub-2", EventID: "event-1", Title: "Catering", CreatedAt: time.Now()},
		{ID: "sub-3", EventID: "event-1", Title: "Security", TeamLeadID: "student-9", CreatedAt: time.Now()},
	}
	_, err = bunDB.NewInsert().Model(&subEvents).Exec(ctx)
	require.NoError(t, err)
}

func TestInsertCredential_DuplicateCode(t *testing.T) {
	credDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	first := models.TeamLeadCredential{
		ID: "cred-1", EventID: "event-1", CredentialCode: "TL-abc", PasswordHash: "hash",
		Status: models.CredentialActive, ExpiresAt: time.Now().Add(time.Hour), CreatedBy: "creator-1", CreatedAt: time.Now(),
	}
	require.NoError(t, credDB.InsertCredential(ctx, first))

	second := first
	second.ID = "cred-2"
	err := credDB.InsertCredential(ctx, second)
	assert.ErrorIs(t, err, storage.ErrDuplicate)
}

func TestRedeemCredential(t *testing.T) {
	credDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedRedemptionFixture(t, bunDB)
	seedCredential(t, bunDB, models.TeamLeadCredential{
		ID: "cred-1", EventID: "event-1", CredentialCode: "TL-abc",
		Status: models.CredentialActive, ExpiresAt: time.Now().Add(time.Hour), CreatedBy: "creator-1",
	})

	cred, err := credDB.GetCredentialByCode(ctx, "TL-abc")
	require.NoError(t, err)

	filled, err := credDB.RedeemCredential(ctx, cred, "student-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, filled, "only the open slots are filled")

	// Credential consumed and stamped.
	after, err := credDB.GetCredential(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, models.CredentialUsed, after.Status)
	assert.Equal(t, "student-1", after.UsedBy)

	// Open slots claimed, the occupied one untouched.
	var subEvents []models.SubEvent
	require.NoError(t, bunDB.NewSelect().Model(&subEvents).Order("id ASC").Scan(ctx))
	assert.Equal(t, "student-1", subEvents[0].TeamLeadID)
	assert.Equal(t, "student-1", subEvents[1].TeamLeadID)
	assert.Equal(t, "student-9", subEvents[2].TeamLeadID, "redemption never displaces a sitting team lead")

	// Role promoted.
	var user models.User
	require.NoError(t, bunDB.NewSelect().Model(&user).Where("id = ?", "student-1").Scan(ctx))
	assert.Equal(t, models.RoleTeamLead, user.Role)

	// Membership recorded for every sub-event of the event.
	count, err := bunDB.NewSelect().
		Model((*models.Volunteer)(nil)).
		Where("user_id = ?", "student-1").
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRedeemCredential_SingleUse(t *testing.T) {
	credDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedRedemptionFixture(t, bunDB)
	seedCredential(t, bunDB, models.TeamLeadCredential{
		ID: "cred-1", EventID: "event-1", CredentialCode: "TL-abc",
		Status: models.CredentialActive, ExpiresAt: time.Now().Add(time.Hour), CreatedBy: "creator-1",
	})

	cred, err := credDB.GetCredentialByCode(ctx, "TL-abc")
	require.NoError(t, err)

	_, err = credDB.RedeemCredential(ctx, cred, "student-1", time.Now())
	require.NoError(t, err)

	// The stale in-memory copy still says active; the conditional update is
	// the authority.
	_, err = credDB.RedeemCredential(ctx, cred, "student-2", time.Now())
	assert.ErrorIs(t, err, storage.ErrCredentialSpent)
}

func TestRedeemCredential_ExpiredAtCommit(t *testing.T) {
	credDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedRedemptionFixture(t, bunDB)
	seedCredential(t, bunDB, models.TeamLeadCredential{
		ID: "cred-1", EventID: "event-1", CredentialCode: "TL-abc",
		Status: models.CredentialActive, ExpiresAt: time.Now().Add(-time.Minute), CreatedBy: "creator-1",
	})

	cred, err := credDB.GetCredentialByCode(ctx, "TL-abc")
	require.NoError(t, err)

	_, err = credDB.RedeemCredential(ctx, cred, "student-1", time.Now())
	assert.ErrorIs(t, err, storage.ErrCredentialSpent)

	// Nothing leaked out of the aborted transaction.
	var subEvent models.SubEvent
	require.NoError(t, bunDB.NewSelect().Model(&subEvent).Where("id = ?", "sub-1").Scan(ctx))
	assert.Empty(t, subEvent.TeamLeadID)
}

func TestRevokeCredential(t *testing.T) {
	credDB, bunDB := setupTestDB(t)
	defer bunDB.Close()
	ctx := context.Background()

	seedCredential(t, bunDB, models.TeamLeadCredential{
		ID: "cred-1", EventID: "event-1", CredentialCode: "TL-abc",
		Status: models.CredentialActive, ExpiresAt: time.Now().Add(time.Hour), CreatedBy: "creator-1",
	})

	require.NoError(t, credDB.RevokeCredential(ctx, "cred-1"))

	cred, err := credDB.GetCredential(ctx, "cred-1")
	require.NoError(t, err)
	assert.Equal(t, models.CredentialRevoked, cred.Status)

	// Revoking twice, or revoking a used credential, changes nothing.
	err = credDB.RevokeCredential(ctx, "cred-1")
	assert.ErrorIs(t, err, storage.ErrCredentialSpent)
}
