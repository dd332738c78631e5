package constants

// Static route constants
const (
	APIRoute   = "/api"
	APIV1Route = "/api/v1"
	DocsRoute  = "/docs/api/"

	// Paths relative to APIV1Route
	PlansRoute               = "/plans"
	EntitlementRoute         = "/entitlement"
	EntitlementCheckoutRoute = EntitlementRoute + "/checkout"
	EntitlementTrialRoute    = EntitlementRoute + "/trial"
	EntitlementCancelRoute   = EntitlementRoute + "/cancel"
	EntitlementCallbackRoute = EntitlementRoute + "/callback"
	EntitlementCountdown     = EntitlementRoute + "/countdown"
)
