package pipeline

// ResponseCache memoizes final safe responses keyed by prompt, tenant and
// user. Implementations handle TTL expiry and capacity eviction.
type ResponseCache interface {
	Get(prompt, tenantID, userID string) (string, bool)
	Set(prompt, tenantID, userID, response string)
}
