package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// oneApprovedIndex enforces at most one approved link per seller.
const oneApprovedIndex = "idx_reward_links_one_approved"

// Migrations is the grove migration group for the rewards store.
var Migrations = migrate.NewGroup("rewards")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_reward_accounts",
			Version: "20240301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reward_accounts (
    id         TEXT PRIMARY KEY,
    role       TEXT NOT NULL,
    document   TEXT NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    store_id   TEXT,
    balance    BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_reward_accounts_document ON reward_accounts (document);
CREATE INDEX IF NOT EXISTS idx_reward_accounts_role ON reward_accounts (role);
CREATE INDEX IF NOT EXISTS idx_reward_accounts_store_id ON reward_accounts (store_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reward_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reward_entries",
			Version: "20240301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reward_entries (
    id          TEXT PRIMARY KEY,
    account_id  TEXT NOT NULL,
    amount      BIGINT NOT NULL,
    type        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    related_id  TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_reward_entries_account_created ON reward_entries (account_id, created_at);
CREATE INDEX IF NOT EXISTS idx_reward_entries_related_id ON reward_entries (related_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reward_entries`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reward_invoices",
			Version: "20240301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reward_invoices (
    id           TEXT PRIMARY KEY,
    owner_id     TEXT NOT NULL,
    access_key   TEXT NOT NULL,
    issuer_id    TEXT NOT NULL DEFAULT '',
    coins        BIGINT NOT NULL,
    status       TEXT NOT NULL,
    processed_at TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_reward_invoices_access_key ON reward_invoices (access_key);
CREATE INDEX IF NOT EXISTS idx_reward_invoices_owner_status ON reward_invoices (owner_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reward_invoices`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reward_links",
			Version: "20240301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reward_links (
    id         TEXT PRIMARY KEY,
    seller_id  TEXT NOT NULL,
    store_id   TEXT NOT NULL,
    status     TEXT NOT NULL,
    percentage INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_reward_links_pair ON reward_links (seller_id, store_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_reward_links_one_approved ON reward_links (seller_id) WHERE status = 'approved';
CREATE INDEX IF NOT EXISTS idx_reward_links_store_id ON reward_links (store_id);
CREATE INDEX IF NOT EXISTS idx_reward_links_status ON reward_links (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reward_links`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_reward_issuers",
			Version: "20240301000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS reward_issuers (
    id         TEXT PRIMARY KEY,
    code       TEXT NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    active     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_reward_issuers_code ON reward_issuers (code);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS reward_issuers`)
				return err
			},
		},
	)
}
