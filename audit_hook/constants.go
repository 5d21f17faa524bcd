package audithook

// Action constants for audit events.
const (
	// Settlement actions
	ActionSplitExecuted = "split.executed"

	// Exchange actions
	ActionListingCreated   = "listing.created"
	ActionListingCanceled  = "listing.canceled"
	ActionListingFulfilled = "listing.fulfilled"

	// Entitlement actions
	ActionEntitlementPurchased = "entitlement.purchased"

	// Invoice actions
	ActionInvoiceIssued = "invoice.issued"
	ActionInvoicePaid   = "invoice.paid"

	// Invocation actions
	ActionInvocationFailed = "invocation.failed"
	ActionAccessDenied     = "access.denied"
)

// Resource constants for audit events.
const (
	ResourceSplit       = "split"
	ResourceListing     = "listing"
	ResourceEntitlement = "entitlement"
	ResourceInvoice     = "invoice"
	ResourceInvocation  = "invocation"
)

// Category constants for audit events.
const (
	CategorySettlement = "settlement"
	CategoryExchange   = "exchange"
	CategoryAccess     = "access"
	CategoryPayment    = "payment"
	CategoryRuntime    = "runtime"
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
)
