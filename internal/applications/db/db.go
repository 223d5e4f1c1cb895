package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-workflow/internal/models"
	"ms-workflow/internal/storage"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- READS ----------------

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (d *DB) GetSubEvent(ctx context.Context, id string) (*models.SubEvent, error) {
	var subEvent models.SubEvent
	err := d.Bun.NewSelect().
		Model(&subEvent).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &subEvent, nil
}

func (d *DB) GetEventApplication(ctx context.Context, id string) (*models.EventApplication, error) {
	var app models.EventApplication
	err := d.Bun.NewSelect().
		Model(&app).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (d *DB) GetTeamLeadApplication(ctx context.Context, id string) (*models.TeamLeadApplication, error) {
	var app models.TeamLeadApplication
	err := d.Bun.NewSelect().
		Model(&app).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

// FindEventApplication returns the single history row for the
// (event, applicant) pair, whatever its status.
func (d *DB) FindEventApplication(ctx context.Context, eventID, creatorID string) (*models.EventApplication, error) {
	var app models.EventApplication
	err := d.Bun.NewSelect().
		Model(&app).
		Where("event_id = ?", eventID).
		Where("creator_id = ?", creatorID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

// FindActiveTeamLeadApplication returns the pending or approved row for the
// (sub-event, user) pair. Rejected and removed rows are history and ignored.
func (d *DB) FindActiveTeamLeadApplication(ctx context.Context, subEventID, userID string) (*models.TeamLeadApplication, error) {
	var app models.TeamLeadApplication
	err := d.Bun.NewSelect().
		Model(&app).
		Where("sub_event_id = ?", subEventID).
		Where("user_id = ?", userID).
		Where("status IN (?)", bun.In([]models.ApplicationStatus{models.StatusPending, models.StatusApproved})).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (d *DB) ListPendingEventApplications(ctx context.Context, eventID string) ([]models.EventApplication, error) {
	var apps []models.EventApplication
	err := d.Bun.NewSelect().
		Model(&apps).
		Where("event_id = ?", eventID).
		Where("status = ?", models.StatusPending).
		Order("applied_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func (d *DB) ListPendingTeamLeadApplications(ctx context.Context, subEventID string) ([]models.TeamLeadApplication, error) {
	var apps []models.TeamLeadApplication
	err := d.Bun.NewSelect().
		Model(&apps).
		Where("sub_event_id = ?", subEventID).
		Where("status = ?", models.StatusPending).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// ---------------- SUBMISSIONS ----------------

func (d *DB) InsertEventApplication(ctx context.Context, app models.EventApplication) error {
	_, err := d.Bun.NewInsert().Model(&app).Exec(ctx)
	return err
}

// ReopenEventApplication resubmits a rejected application by resetting the
// same row to pending. The status guard in the WHERE clause keeps a
// concurrently approved or already reopened row untouched.
func (d *DB) ReopenEventApplication(ctx context.Context, id, message string, at time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.EventApplication)(nil)).
		Set("status = ?", models.StatusPending).
		Set("message = ?", message).
		Set("applied_at = ?", at).
		Set("reviewed_at = NULL").
		Set("reviewed_by = NULL").
		Where("id = ?", id).
		Where("status = ?", models.StatusRejected).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return storage.ErrNotPending
	}
	return nil
}

func (d *DB) InsertTeamLeadApplication(ctx context.Context, app models.TeamLeadApplication) error {
	_, err := d.Bun.NewInsert().Model(&app).Exec(ctx)
	return err
}

// ---------------- DECISIONS ----------------

// ApproveEventApplication runs the full owner-assignment cascade in one
// transaction: mark the application approved, set the event's delegated
// owner, and reject every other pending application for the event. The
// status guard on the first update makes a concurrent second approval fail
// with ErrNotPending instead of applying twice.
func (d *DB) ApproveEventApplication(ctx context.Context, app *models.EventApplication, reviewerID string, at time.Time) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.EventApplication)(nil)).
			Set("status = ?", models.StatusApproved).
			Set("reviewed_at = ?", at).
			Set("reviewed_by = ?", reviewerID).
			Where("id = ?", app.ID).
			Where("status = ?", models.StatusPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return storage.ErrNotPending
		}

		_, err = tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("assigned_creator_id = ?", app.CreatorID).
			Where("id = ?", app.EventID).
			Exec(ctx)
		if err != nil {
			return err
		}

		// Competitor-rejection cascade, same commit as the grant.
		_, err = tx.NewUpdate().
			Model((*models.EventApplication)(nil)).
			Set("status = ?", models.StatusRejected).
			Set("reviewed_at = ?", at).
			Set("reviewed_by = ?", reviewerID).
			Where("event_id = ?", app.EventID).
			Where("status = ?", models.StatusPending).
			Where("id != ?", app.ID).
			Exec(ctx)
		return err
	})
}

func (d *DB) RejectEventApplication(ctx context.Context, id, reviewerID string, at time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.EventApplication)(nil)).
		Set("status = ?", models.StatusRejected).
		Set("reviewed_at = ?", at).
		Set("reviewed_by = ?", reviewerID).
		Where("id = ?", id).
		Where("status = ?", models.StatusPending).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return storage.ErrNotPending
	}
	return nil
}

// ApproveTeamLeadApplication assigns the sub-event's team-lead slot in one
// transaction: approve the application, claim the slot, promote the user,
// record the membership and reject the competitors. The slot claim re-checks
// team_lead_id IS NULL immediately before writing, so two reviewers racing
// for the same slot cannot both succeed.
func (d *DB) ApproveTeamLeadApplication(ctx context.Context, app *models.TeamLeadApplication, reviewerID, feedback string, at time.Time) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.TeamLeadApplication)(nil)).
			Set("status = ?", models.StatusApproved).
			Set("feedback = ?", feedback).
			Set("reviewed_at = ?", at).
			Set("reviewed_by = ?", reviewerID).
			Where("id = ?", app.ID).
			Where("status = ?", models.StatusPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return storage.ErrNotPending
		}

		res, err = tx.NewUpdate().
			Model((*models.SubEvent)(nil)).
			Set("team_lead_id = ?", app.UserID).
			Where("id = ?", app.SubEventID).
			Where("team_lead_id IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return storage.ErrSlotTaken
		}

		// Promotion is a no-op for anyone already above student.
		_, err = tx.NewUpdate().
			Model((*models.User)(nil)).
			Set("role = ?", models.RoleTeamLead).
			Where("id = ?", app.UserID).
			Where("role = ?", models.RoleStudent).
			Exec(ctx)
		if err != nil {
			return err
		}

		volunteer := models.Volunteer{
			ID:         uuid.NewString(),
			SubEventID: app.SubEventID,
			UserID:     app.UserID,
			Role:       string(models.RoleTeamLead),
			AssignedAt: at,
		}
		_, err = tx.NewInsert().
			Model(&volunteer).
			On("CONFLICT (sub_event_id, user_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}

		_, err = tx.NewUpdate().
			Model((*models.TeamLeadApplication)(nil)).
			Set("status = ?", models.StatusRejected).
			Set("feedback = ?", "Another applicant was selected").
			Set("reviewed_at = ?", at).
			Set("reviewed_by = ?", reviewerID).
			Where("sub_event_id = ?", app.SubEventID).
			Where("status = ?", models.StatusPending).
			Where("id != ?", app.ID).
			Exec(ctx)
		return err
	})
}

func (d *DB) RejectTeamLeadApplication(ctx context.Context, id, reviewerID, feedback string, at time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.TeamLeadApplication)(nil)).
		Set("status = ?", models.StatusRejected).
		Set("feedback = ?", feedback).
		Set("reviewed_at = ?", at).
		Set("reviewed_by = ?", reviewerID).
		Where("id = ?", id).
		Where("status = ?", models.StatusPending).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return storage.ErrNotPending
	}
	return nil
}
