package audithook

// Action constants for audit events.
const (
	// Invoice actions
	ActionInvoiceSubmitted = "invoice.submitted"
	ActionInvoiceStandby   = "invoice.standby"
	ActionInvoiceSettled   = "invoice.settled"
	ActionStandbyReplayed  = "invoice.standby_replayed"
	ActionSettlementFailed = "settlement.failed"

	// Link actions
	ActionLinkRequested         = "link.requested"
	ActionLinkApproved          = "link.approved"
	ActionLinkRejected          = "link.rejected"
	ActionLinkPercentageChanged = "link.percentage_changed"

	// Ledger actions
	ActionEntryPosted = "entry.posted"
)

// Resource constants for audit events.
const (
	ResourceInvoice = "invoice"
	ResourceLink    = "link"
	ResourceEntry   = "entry"
)

// Category constants for audit events.
const (
	CategorySettlement  = "settlement"
	CategoryAffiliation = "affiliation"
	CategoryLedger      = "ledger"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
