package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-workflow/internal/models"
	"ms-workflow/internal/storage"
)

type DB struct {
	Bun *bun.DB
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

func (d *DB) GetCredential(ctx context.Context, id string) (*models.TeamLeadCredential, error) {
	var cred models.TeamLeadCredential
	err := d.Bun.NewSelect().
		Model(&cred).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

func (d *DB) GetCredentialByCode(ctx context.Context, code string) (*models.TeamLeadCredential, error) {
	var cred models.TeamLeadCredential
	err := d.Bun.NewSelect().
		Model(&cred).
		Where("credential_code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}

func (d *DB) ListEventCredentials(ctx context.Context, eventID string) ([]models.TeamLeadCredential, error) {
	var creds []models.TeamLeadCredential
	err := d.Bun.NewSelect().
		Model(&creds).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return creds, nil
}

// InsertCredential stores a new credential. Code uniqueness is a hard
// constraint on credential_code; a violation surfaces as ErrDuplicate.
func (d *DB) InsertCredential(ctx context.Context, cred models.TeamLeadCredential) error {
	_, err := d.Bun.NewInsert().Model(&cred).Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		return storage.ErrDuplicate
	}
	return err
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// RedeemCredential consumes the credential and grants team-lead authority
// over every sub-event of its event, all in one transaction. The decisive
// write is the conditional credential update: a credential that is no longer
// active, or that expired between validation and commit, aborts everything
// with ErrCredentialSpent. Returns the number of slots filled.
func (d *DB) RedeemCredential(ctx context.Context, cred *models.TeamLeadCredential, redeemerID string, at time.Time) (int, error) {
	var filled int
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.TeamLeadCredential)(nil)).
			Set("status = ?", models.CredentialUsed).
			Set("used_at = ?", at).
			Set("used_by = ?", redeemerID).
			Where("id = ?", cred.ID).
			Where("status = ?", models.CredentialActive).
			Where("expires_at > ?", at).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return storage.ErrCredentialSpent
		}

		_, err = tx.NewUpdate().
			Model((*models.User)(nil)).
			Set("role = ?", models.RoleTeamLead).
			Where("id = ?", redeemerID).
			Where("role = ?", models.RoleStudent).
			Exec(ctx)
		if err != nil {
			return err
		}

		var subEvents []models.SubEvent
		if err := tx.NewSelect().
			Model(&subEvents).
			Where("event_id = ?", cred.EventID).
			Scan(ctx); err != nil {
			return err
		}

		// Membership insert per sub-event; the conflict target makes a
		// re-run of this step a no-op.
		for _, subEvent := range subEvents {
			volunteer := models.Volunteer{
				ID:         uuid.NewString(),
				SubEventID: subEvent.ID,
				UserID:     redeemerID,
				Role:       string(models.RoleTeamLead),
				AssignedAt: at,
			}
			if _, err := tx.NewInsert().
				Model(&volunteer).
				On("CONFLICT (sub_event_id, user_id) DO NOTHING").
				Exec(ctx); err != nil {
				return err
			}
		}

		// Fill only the open slots; redemption never displaces a team lead.
		res, err = tx.NewUpdate().
			Model((*models.SubEvent)(nil)).
			Set("team_lead_id = ?", redeemerID).
			Where("event_id = ?", cred.EventID).
			Where("team_lead_id IS NULL").
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err = res.RowsAffected()
		if err != nil {
			return err
		}
		filled = int(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return filled, nil
}

// RevokeCredential transitions an active credential to revoked. Used and
// already-revoked credentials stay as they are.
func (d *DB) RevokeCredential(ctx context.Context, id string) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.TeamLeadCredential)(nil)).
		Set("status = ?", models.CredentialRevoked).
		Where("id = ?", id).
		Where("status = ?", models.CredentialActive).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return storage.ErrCredentialSpent
	}
	return nil
}
