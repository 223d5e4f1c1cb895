package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-workflow/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// InsertNotification appends one fan-out row.
func (d *DB) InsertNotification(ctx context.Context, n models.Notification) error {
	_, err := d.Bun.NewInsert().Model(&n).Exec(ctx)
	return err
}
