package enums

import "fmt"

// PlanKey identifies a subscription tier in the plan catalog.
type PlanKey string

const (
	PlanKeyBasic      PlanKey = "basic"
	PlanKeyPro        PlanKey = "pro"
	PlanKeyEnterprise PlanKey = "enterprise"
)

// PlanKeys lists every tier in catalog declaration order.
var PlanKeys = []PlanKey{
	PlanKeyBasic,
	PlanKeyPro,
	PlanKeyEnterprise,
}

// String implements fmt.Stringer.
func (p PlanKey) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanKey.
func (p PlanKey) IsValid() bool {
	for _, candidate := range PlanKeys {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanKey converts raw input into a PlanKey.
func ParsePlanKey(value string) (PlanKey, error) {
	for _, candidate := range PlanKeys {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan key %q", value)
}
