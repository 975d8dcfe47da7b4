package model

// Prices in USD as strings, keyed "{POLICY}_{TYPE}". String form is
// what the payment-gating layer consumes for exact pricing.
var pricingMap = map[string]string{
	"FAST_LLM_INFER":  "$0.010",
	"FAST_TASK":       "$0.003",
	"CHEAP_LLM_INFER": "$0.005",
	"CHEAP_TASK":      "$0.001",
}

// fallbackPrice is the cheapest known price; quote requests never fail.
const fallbackPrice = "$0.001"

// ResolvePolicy collapses AUTO deterministically: inference wants
// latency, tasks want cost.
func ResolvePolicy(policy Policy, jobType JobType) Policy {
	if policy != PolicyAuto {
		return policy
	}
	if jobType == JobTypeLLMInfer {
		return PolicyFast
	}
	return PolicyCheap
}

// PriceFor returns the table price for a resolved policy and job type,
// falling back to the cheapest price for an unknown key.
func PriceFor(policy Policy, jobType JobType) string {
	if p, ok := pricingMap[string(policy)+"_"+string(jobType)]; ok {
		return p
	}
	return fallbackPrice
}

// Quote is the answer to a price request.
type Quote struct {
	Price          string `json:"price"`
	ResolvedPolicy Policy `json:"resolved_policy"`
	Network        string `json:"network"`
}
