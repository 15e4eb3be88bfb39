package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"

	// registers the migrate executor for the driver
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate"
)

// Migrations is the grove migration group for the credits store.
var Migrations = migrate.NewGroup("credits")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_credit_pricing",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_pricing (
    kind         TEXT PRIMARY KEY,
    credits_cost BIGINT NOT NULL CHECK (credits_cost > 0),
    is_active    BOOLEAN NOT NULL DEFAULT TRUE,
    description  TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credit_pricing`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credit_balances",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_balances (
    user_id    TEXT PRIMARY KEY,
    balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credit_balances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credit_transactions",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_transactions (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    type                 TEXT NOT NULL,
    amount               BIGINT NOT NULL,
    balance_after        BIGINT NOT NULL CHECK (balance_after >= 0),
    source               TEXT NOT NULL,
    description          TEXT NOT NULL DEFAULT '',
    related_operation_id TEXT NOT NULL DEFAULT '',
    operation_kind       TEXT NOT NULL DEFAULT '',
    metadata             JSONB NOT NULL DEFAULT '{}',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_credit_txn_user_created ON credit_transactions (user_id, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_txn_reference ON credit_transactions (type, related_operation_id) WHERE related_operation_id <> '';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credit_transactions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credit_account_flags",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_account_flags (
    user_id         TEXT PRIMARY KEY,
    is_test_account BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credit_account_flags`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_credit_operations",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_operations (
    id                  TEXT PRIMARY KEY,
    user_id             TEXT NOT NULL,
    kind                TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL DEFAULT 'pending',
    credits_deducted    BOOLEAN NOT NULL DEFAULT FALSE,
    credits_amount      BIGINT,
    credits_deducted_at TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_credit_ops_user ON credit_operations (user_id);
CREATE INDEX IF NOT EXISTS idx_credit_ops_unsettled ON credit_operations (status, created_at) WHERE credits_deducted = FALSE;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credit_operations`)
				return err
			},
		},
	)
}
