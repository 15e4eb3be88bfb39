package audithook

// Action constants for audit events.
const (
	// Guard actions
	ActionCreditsDenied = "credits.denied"

	// Ledger actions
	ActionCreditsDeducted = "credits.deducted"
	ActionTrialRecorded   = "credits.trial_recorded"
	ActionCreditsGranted  = "credits.granted"

	// Pricing actions
	ActionPricingChanged = "pricing.changed"

	// Settlement actions
	ActionSettlementCompleted = "settlement.completed"
	ActionSettlementSkipped   = "settlement.skipped"
	ActionSettlementFailed    = "settlement.failed"
	ActionFlagUpdateFailed    = "settlement.flag_update_failed"
)

// Resource constants for audit events.
const (
	ResourceAccount     = "account"
	ResourceTransaction = "transaction"
	ResourcePricing     = "pricing"
	ResourceOperation   = "operation"
)

// Category constants for audit events.
const (
	CategoryBilling = "billing"
	CategoryAccess  = "access"
	CategoryConfig  = "config"
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
