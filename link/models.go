// Package link models the approval relationship between a seller account and
// a store account, including the seller's share of each receipt reward.
package link

import (
	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/types"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// transitions lists the allowed status changes. Approved and rejected are
// terminal; a rejected pair cannot be requested again.
var transitions = map[Status][]Status{
	StatusPending: {StatusApproved, StatusRejected},
}

// CanTransition reports whether a link may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// State is the settlement view of a link. Approved links split into
// unfunded (0%) and funded (>0%); only funded links distribute coins.
type State string

const (
	StatePending          State = "pending"
	StateRejected         State = "rejected"
	StateApprovedUnfunded State = "approved_unfunded"
	StateApprovedFunded   State = "approved_funded"
)

const (
	MinPercentage = 0
	MaxPercentage = 100
)

type Link struct {
	types.Entity
	ID         id.LinkID    `json:"id"`
	SellerID   id.AccountID `json:"seller_id"`
	StoreID    id.AccountID `json:"store_id"`
	Status     Status       `json:"status"`
	Percentage int          `json:"percentage"`
}

// State derives the settlement state of the link.
func (l *Link) State() State {
	switch l.Status {
	case StatusApproved:
		if l.Percentage > 0 {
			return StateApprovedFunded
		}
		return StateApprovedUnfunded
	case StatusRejected:
		return StateRejected
	default:
		return StatePending
	}
}

// HoldsStandby reports whether invoices submitted by the seller while this
// link is in its current state must wait in standby.
func (l *Link) HoldsStandby() bool {
	s := l.State()
	return s == StatePending || s == StateApprovedUnfunded
}

// Funds reports whether moving from state prior to the link's current state
// unlocks the seller's standby invoices.
func (l *Link) Funds(prior State) bool {
	return prior != StateApprovedFunded && l.State() == StateApprovedFunded
}
