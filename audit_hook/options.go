package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger used when the recorder fails.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithEnabledActions restricts auditing to the given actions.
// Without it every action is recorded.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, action := range actions {
			e.enabled[action] = true
		}
	}
}

// WithDisabledActions records every action except the given ones. Entry
// postings are the noisiest; disable ActionEntryPosted to audit only
// settlement and link decisions.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = make(map[string]bool)
			for _, action := range allActions() {
				e.enabled[action] = true
			}
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

// allActions returns all known audit actions.
func allActions() []string {
	return []string{
		ActionInvoiceSubmitted,
		ActionInvoiceStandby,
		ActionInvoiceSettled,
		ActionStandbyReplayed,
		ActionSettlementFailed,
		ActionLinkRequested,
		ActionLinkApproved,
		ActionLinkRejected,
		ActionLinkPercentageChanged,
		ActionEntryPosted,
	}
}
