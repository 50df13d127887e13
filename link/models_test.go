package link_test

import (
	"testing"

	"github.com/xraph/rewards/id"
	"github.com/xraph/rewards/link"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to link.Status
		want     bool
	}{
		{link.StatusPending, link.StatusApproved, true},
		{link.StatusPending, link.StatusRejected, true},
		{link.StatusPending, link.StatusPending, false},
		{link.StatusApproved, link.StatusRejected, false},
		{link.StatusApproved, link.StatusPending, false},
		{link.StatusRejected, link.StatusPending, false},
		{link.StatusRejected, link.StatusApproved, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState(t *testing.T) {
	tests := []struct {
		name        string
		link        link.Link
		want        link.State
		holdStandby bool
	}{
		{"pending", link.Link{Status: link.StatusPending}, link.StatePending, true},
		{"rejected", link.Link{Status: link.StatusRejected, Percentage: 40}, link.StateRejected, false},
		{"approved zero", link.Link{Status: link.StatusApproved}, link.StateApprovedUnfunded, true},
		{"approved funded", link.Link{Status: link.StatusApproved, Percentage: 1}, link.StateApprovedFunded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.link.State(); got != tt.want {
				t.Errorf("State = %q, want %q", got, tt.want)
			}
			if got := tt.link.HoldsStandby(); got != tt.holdStandby {
				t.Errorf("HoldsStandby = %v, want %v", got, tt.holdStandby)
			}
		})
	}
}

func TestFunds(t *testing.T) {
	l := link.Link{Status: link.StatusApproved, Percentage: 10}
	if !l.Funds(link.StateApprovedUnfunded) {
		t.Error("0 -> 10 should fund")
	}
	if l.Funds(link.StateApprovedFunded) {
		t.Error("5 -> 10 must not fund again")
	}

	l.Percentage = 0
	if l.Funds(link.StateApprovedUnfunded) {
		t.Error("0 -> 0 should not fund")
	}
}

func TestListOptsMatches(t *testing.T) {
	seller, store := id.NewAccountID(), id.NewAccountID()
	l := &link.Link{SellerID: seller, StoreID: store, Status: link.StatusApproved}

	if !(link.ListOpts{}).Matches(l) {
		t.Error("empty filter should match")
	}
	if !(link.ListOpts{StoreID: store, Statuses: []link.Status{link.StatusPending, link.StatusApproved}}).Matches(l) {
		t.Error("store + status filter should match")
	}
	if (link.ListOpts{SellerID: store}).Matches(l) {
		t.Error("wrong seller should not match")
	}
	if (link.ListOpts{Statuses: []link.Status{link.StatusRejected}}).Matches(l) {
		t.Error("wrong status should not match")
	}
}
