// Package balance models a user's spendable credit count.
package balance

import "github.com/xraph/credits/types"

// Balance is the current credit count of one user. It never goes below zero
// and is only changed by the store's debit and credit routines.
type Balance struct {
	types.Entity
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}
