package entry

import (
	"time"

	"github.com/xraph/rewards/id"
)

type Type string

const (
	TypeInvoiceReward        Type = "invoice-reward"
	TypeInvoiceRewardCompany Type = "invoice-reward-company"
	TypeRedemptionDebit      Type = "redemption-debit"
	TypeAdjustment           Type = "adjustment"
)

// Entry is an immutable ledger posting. Entries are never updated or
// deleted; the owning account's balance is the sum of its entries.
type Entry struct {
	ID          id.EntryID   `json:"id"`
	AccountID   id.AccountID `json:"account_id"`
	Amount      int64        `json:"amount"`
	Type        Type         `json:"type"`
	Description string       `json:"description"`
	RelatedID   id.AnyID     `json:"related_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
