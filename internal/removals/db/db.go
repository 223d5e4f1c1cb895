package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-workflow/internal/models"
	"ms-workflow/internal/storage"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error) {
	var vol models.Volunteer
	err := d.Bun.NewSelect().
		Model(&vol).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &vol, nil
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

func (d *DB) ListRemovals(ctx context.Context, subEventID string) ([]models.VolunteerRemoval, error) {
	var removals []models.VolunteerRemoval
	err := d.Bun.NewSelect().
		Model(&removals).
		Where("sub_event_id = ?", subEventID).
		Order("removed_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return removals, nil
}

// RemoveVolunteer ejects a membership in one transaction: append the audit
// row, delete the volunteer, release the team-lead slot if the volunteer held
// it, and downgrade the matching approved application. A displaced team
// lead's application becomes removed; a plain volunteer's becomes rejected.
func (d *DB) RemoveVolunteer(ctx context.Context, vol *models.Volunteer, removerID, reason string, at time.Time) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		removal := models.VolunteerRemoval{
			ID:          uuid.NewString(),
			VolunteerID: vol.ID,
			SubEventID:  vol.SubEventID,
			RemovedBy:   removerID,
			Reason:      reason,
			RemovedAt:   at,
		}
		if _, err := tx.NewInsert().Model(&removal).Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewDelete().
			Model((*models.Volunteer)(nil)).
			Where("id = ?", vol.ID).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return storage.ErrNotFound
		}

		// Release the ownership slot if this volunteer held it.
		res, err = tx.NewUpdate().
			Model((*models.SubEvent)(nil)).
			Set("team_lead_id = NULL").
			Where("id = ?", vol.SubEventID).
			Where("team_lead_id = ?", vol.UserID).
			Exec(ctx)
		if err != nil {
			return err
		}
		displaced, err := res.RowsAffected()
		if err != nil {
			return err
		}

		status := models.StatusRejected
		if displaced > 0 {
			status = models.StatusRemoved
		}
		_, err = tx.NewUpdate().
			Model((*models.TeamLeadApplication)(nil)).
			Set("status = ?", status).
			Set("feedback = ?", fmt.Sprintf("Removed: %s", reason)).
			Set("reviewed_at = ?", at).
			Set("reviewed_by = ?", removerID).
			Where("sub_event_id = ?", vol.SubEventID).
			Where("user_id = ?", vol.UserID).
			Where("status = ?", models.StatusApproved).
			Exec(ctx)
		return err
	})
}
