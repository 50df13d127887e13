// Package rewards is the settlement core of a receipt rewards program.
//
// Sellers submit fiscal receipts and earn coins. A seller may link to the
// store they work for; once the store approves the link and sets the seller's
// share, every receipt reward is split between the two accounts. Receipts
// submitted while the split is still unknown wait in standby and are settled
// exactly once when it becomes known.
//
// Rewards is a library, not a service. It provides:
//
//   - Receipt intake with access key validation and an issuer allow-list
//   - A seller to store link state machine with a percentage split
//   - Standby replay gated on the zero to non-zero percentage edge
//   - An append-only coin ledger with a cached balance per account
//   - Memory, PostgreSQL, SQLite, GORM and MongoDB stores
//   - Plugin hooks for metrics and audit trails
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/rewards"
//	    "github.com/xraph/rewards/store/postgres"
//	)
//
//	s, err := postgres.Open(ctx, databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine := rewards.New(s, rewards.WithRewardPerInvoice(100))
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
// # Settlement
//
// SubmitInvoice classifies a receipt in this order:
//
//   - pending link, or approved link at 0%: standby, no postings
//   - approved link above 0%: seller gets floor(coins*pct/100), store the rest
//   - no link: the submitter gets every coin
//
// Store-side link changes drive the rest:
//
//	l, err := engine.RequestLink(ctx, sellerID, "12345678000199")
//	l, err = engine.RespondToLink(ctx, l.ID, storeID, true)
//	l, err = engine.UpdateLinkPercentage(ctx, l.ID, storeID, 30)
//
// The last call settles every standby receipt of the seller with a 30/70
// split. Raising the percentage again only affects future receipts.
//
// # Errors
//
// Every failure wraps a sentinel from this package. ErrorKind maps it to one
// of the validation, conflict, not found, forbidden or dependency classes;
// only dependency errors are worth retrying.
//
// # TypeID
//
// All entities use TypeID identifiers:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	inv_01h455vb4pex5vsknk084sn02q   // Invoice ID
//	lnk_01h455vb4pex5vsknk084sn02q   // Link ID
package rewards
