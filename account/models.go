// Package account defines participant accounts: stores, sellers and the
// back-office roles that never hold links.
package account

import (
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/types"
)

type Role string

const (
	RoleStore          Role = "store"
	RoleSeller         Role = "seller"
	RoleRepresentative Role = "representative"
	RoleAdministrator  Role = "administrator"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStore, RoleSeller, RoleRepresentative, RoleAdministrator:
		return true
	}
	return false
}

type Account struct {
	types.Entity
	ID       id.AccountID `json:"id"`
	Role     Role         `json:"role"     validate:"required"`
	Document string       `json:"document" validate:"required,max=32"`
	Name     string       `json:"name"     validate:"max=255"`
	// StoreID is the seller's current store affiliation. Nil until a link is approved.
	StoreID id.AccountID `json:"store_id,omitempty"`
	// Balance mirrors the sum of the account's ledger entries. Only the
	// ledger engine writes it.
	Balance int64 `json:"balance"`
}
