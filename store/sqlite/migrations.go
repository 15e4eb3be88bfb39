package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"

	// registers the migrate executor for the driver
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
)

// Migrations is the grove migration group for the credits store (SQLite).
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
    credits_cost INTEGER NOT NULL CHECK (credits_cost > 0),
    is_active    INTEGER NOT NULL DEFAULT 1,
    description  TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
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
    balance    INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
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
				// The trigger moves the balance to the entry's balance_after in
				// the same statement that appends it. Trial entries are skipped.
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_transactions (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    type                 TEXT NOT NULL,
    amount               INTEGER NOT NULL,
    balance_after        INTEGER NOT NULL CHECK (balance_after >= 0),
    source               TEXT NOT NULL,
    description          TEXT NOT NULL DEFAULT '',
    related_operation_id TEXT NOT NULL DEFAULT '',
    operation_kind       TEXT NOT NULL DEFAULT '',
    metadata             TEXT NOT NULL DEFAULT '{}',
    created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_credit_txn_user_created ON credit_transactions (user_id, created_at);
CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_txn_reference ON credit_transactions (type, related_operation_id) WHERE related_operation_id <> '';

CREATE TRIGGER IF NOT EXISTS trg_credit_txn_apply
AFTER INSERT ON credit_transactions
WHEN NEW.source <> 'trial'
BEGIN
    UPDATE credit_balances
    SET balance = NEW.balance_after, updated_at = NEW.created_at
    WHERE user_id = NEW.user_id;
END;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TRIGGER IF EXISTS trg_credit_txn_apply;
DROP TABLE IF EXISTS credit_transactions;
`)
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
    is_test_account INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
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
    credits_deducted    INTEGER NOT NULL DEFAULT 0,
    credits_amount      INTEGER,
    credits_deducted_at DATETIME,
    created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_credit_ops_user ON credit_operations (user_id);
CREATE INDEX IF NOT EXISTS idx_credit_ops_status ON credit_operations (status, credits_deducted);
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
