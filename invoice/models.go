// Package invoice models submitted purchase receipts and their settlement
// status.
package invoice

import (
	"time"

	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/types"
)

type Status string

const (
	// StatusStandby marks an accepted receipt whose coins are not yet
	// distributed because the submitter's store split is unresolved.
	StatusStandby Status = "standby"
	// StatusApproved is terminal: coins were posted and ProcessedAt is set.
	StatusApproved Status = "approved"
)

type Invoice struct {
	types.Entity
	ID          id.InvoiceID `json:"id"`
	OwnerID     id.AccountID `json:"owner_id"`
	AccessKey   string       `json:"access_key"`
	IssuerID    string       `json:"issuer_id,omitempty"`
	Coins       int64        `json:"coins"`
	Status      Status       `json:"status"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
}

// IsStandby reports whether the invoice still awaits distribution.
func (i *Invoice) IsStandby() bool { return i.Status == StatusStandby }
