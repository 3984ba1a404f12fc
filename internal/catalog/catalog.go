package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/luxeaccount/luxeaccount-backend/pkg/config"
	"github.com/luxeaccount/luxeaccount-backend/pkg/enums"
	"github.com/luxeaccount/luxeaccount-backend/pkg/errors"
)

// Plan is an immutable catalog entry describing a subscription tier.
type Plan struct {
	Key         enums.PlanKey         `json:"key"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Price       decimal.Decimal       `json:"price"`
	Currency    enums.Currency        `json:"currency"`
	Interval    enums.BillingInterval `json:"interval"`
	PriceID     string                `json:"priceId"`
	Features    []string              `json:"features"`
	Popular     bool                  `json:"popular"`
}

// Catalog holds the fixed plan set, populated once at process start.
// Enumeration preserves declaration order: basic, pro, enterprise.
type Catalog struct {
	plans []Plan
	byKey map[enums.PlanKey]Plan
}

// New builds the catalog from the configured Stripe price IDs.
// A missing price ID is a boot failure, never a runtime error.
func New(cfg config.PlansConfig) (*Catalog, error) {
	priceIDs := map[enums.PlanKey]string{
		enums.PlanKeyBasic:      strings.TrimSpace(cfg.BasicPriceID),
		enums.PlanKeyPro:        strings.TrimSpace(cfg.ProPriceID),
		enums.PlanKeyEnterprise: strings.TrimSpace(cfg.EnterprisePriceID),
	}
	for _, key := range enums.PlanKeys {
		if priceIDs[key] == "" {
			return nil, errors.New(errors.CodeInternal, "missing price id for plan "+key.String())
		}
	}

	plans := []Plan{
		{
			Key:         enums.PlanKeyBasic,
			Name:        "Basic",
			Description: "Essentials for getting started",
			Price:       decimal.NewFromInt(29),
			Currency:    enums.CurrencyUSD,
			Interval:    enums.BillingIntervalMonth,
			PriceID:     priceIDs[enums.PlanKeyBasic],
			Features: []string{
				"Core account features",
				"Standard support",
				"Single workspace",
			},
		},
		{
			Key:         enums.PlanKeyPro,
			Name:        "Pro",
			Description: "Advanced tools for growing teams",
			Price:       decimal.NewFromInt(79),
			Currency:    enums.CurrencyUSD,
			Interval:    enums.BillingIntervalMonth,
			PriceID:     priceIDs[enums.PlanKeyPro],
			Features: []string{
				"Everything in Basic",
				"Priority support",
				"Unlimited workspaces",
				"Advanced analytics",
			},
			Popular: true,
		},
		{
			Key:         enums.PlanKeyEnterprise,
			Name:        "Enterprise",
			Description: "Full platform access with dedicated support",
			Price:       decimal.NewFromInt(199),
			Currency:    enums.CurrencyUSD,
			Interval:    enums.BillingIntervalMonth,
			PriceID:     priceIDs[enums.PlanKeyEnterprise],
			Features: []string{
				"Everything in Pro",
				"Dedicated account manager",
				"SSO and audit logs",
				"Custom contracts",
			},
		},
	}

	byKey := make(map[enums.PlanKey]Plan, len(plans))
	for _, plan := range plans {
		byKey[plan.Key] = plan
	}

	return &Catalog{plans: plans, byKey: byKey}, nil
}

// Lookup returns the plan for the given key.
func (c *Catalog) Lookup(key enums.PlanKey) (Plan, bool) {
	plan, ok := c.byKey[key]
	return plan, ok
}

// LookupByPriceID returns the plan whose Stripe price matches. Used by the
// webhook pipeline to recover the plan when event metadata is absent.
func (c *Catalog) LookupByPriceID(priceID string) (Plan, bool) {
	for _, plan := range c.plans {
		if plan.PriceID == priceID {
			return plan, true
		}
	}
	return Plan{}, false
}

// List returns all plans in declaration order. The returned slice is a copy.
func (c *Catalog) List() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}
