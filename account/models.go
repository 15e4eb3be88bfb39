// Package account exposes the account flags the billing engine reads.
package account

import "github.com/xraph/credits/types"

// Flags are provisioned outside the engine. A user without a row is a
// regular, paying account.
type Flags struct {
	types.Entity
	UserID        string `json:"user_id"`
	IsTestAccount bool   `json:"is_test_account"`
}
