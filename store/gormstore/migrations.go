package gormstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/xraph/rewards/store/sqlmodel"
)

// Migration is one schema step. Steps run in order and must be idempotent.
type Migration struct {
	Name string
	Up   func(ctx context.Context, db *gorm.DB) error
}

// Migrations is the ordered schema for the rewards store. It runs unchanged
// on PostgreSQL and SQLite.
var Migrations = []Migration{
	{
		Name: "create_reward_tables",
		Up: func(ctx context.Context, db *gorm.DB) error {
			return db.WithContext(ctx).AutoMigrate(
				&sqlmodel.Account{},
				&sqlmodel.Entry{},
				&sqlmodel.Invoice{},
				&sqlmodel.Link{},
				&sqlmodel.Issuer{},
			)
		},
	},
	{
		// A seller holds at most one approved link.
		Name: "create_reward_links_one_approved",
		Up: func(ctx context.Context, db *gorm.DB) error {
			return db.WithContext(ctx).Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_reward_links_one_approved
    ON reward_links (seller_id)
    WHERE status = 'approved'
`).Error
		},
	},
}

// migrate applies every step in Migrations.
func migrate(ctx context.Context, db *gorm.DB) error {
	for _, m := range Migrations {
		if err := m.Up(ctx, db); err != nil {
			return fmt.Errorf("rewards/gormstore: migration %s: %w", m.Name, err)
		}
	}
	return nil
}
