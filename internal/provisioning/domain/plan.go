package domain

import "strings"

type PlanSpec struct {
	Name           string `json:"name"`
	PackageID      int    `json:"packageId"`
	DurationDays   int    `json:"duration"`
	MaxConnections int    `json:"maxConnections"`
	// Defaulted is set when the requested plan was unknown and the lowest tier was used.
	Defaulted bool `json:"defaulted,omitempty"`
}

const DefaultPlan = "basic_monthly"

var plans = map[string]PlanSpec{
	"basic_monthly":    {Name: "basic_monthly", PackageID: 1, DurationDays: 30, MaxConnections: 1},
	"basic_yearly":     {Name: "basic_yearly", PackageID: 1, DurationDays: 365, MaxConnections: 1},
	"standard_monthly": {Name: "standard_monthly", PackageID: 2, DurationDays: 30, MaxConnections: 2},
	"standard_yearly":  {Name: "standard_yearly", PackageID: 2, DurationDays: 365, MaxConnections: 2},
	"premium_monthly":  {Name: "premium_monthly", PackageID: 3, DurationDays: 30, MaxConnections: 3},
	"premium_yearly":   {Name: "premium_yearly", PackageID: 3, DurationDays: 365, MaxConnections: 3},
}

// MapSubscriptionToPlan resolves a plan name to the provider package.
// Unknown plans fall back to basic_monthly with Defaulted set; callers
// should validate plan names upstream with IsKnownPlan.
func MapSubscriptionToPlan(plan string) PlanSpec {
	if spec, ok := plans[NormalizePlan(plan)]; ok {
		return spec
	}
	spec := plans[DefaultPlan]
	spec.Defaulted = true
	return spec
}

func IsKnownPlan(plan string) bool {
	_, ok := plans[NormalizePlan(plan)]
	return ok
}

func NormalizePlan(plan string) string {
	return strings.ToLower(strings.TrimSpace(plan))
}
