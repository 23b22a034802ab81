package models

// PlanType identifies a subscription plan.
type PlanType string

const (
	PlanStarter      PlanType = "STARTER"
	PlanProfessional PlanType = "PROFESSIONAL"
	PlanEnterprise   PlanType = "ENTERPRISE"
)

// Billing constants, in minor currency units.
const (
	DeploymentFee          int64 = 50000
	AdditionalAccountPrice int64 = 1000
	Currency                     = "usd"
)

// Plan describes pricing and quotas for a PlanType.
type Plan struct {
	Type         PlanType `json:"id"`
	Name         string   `json:"name"`
	MonthlyPrice int64    `json:"monthlyPrice"`
	Accounts     int      `json:"accounts"`
	GiftGroups   int      `json:"giftGroups"`
	Features     []string `json:"features"`
}

var planOrder = []PlanType{PlanStarter, PlanProfessional, PlanEnterprise}

var planCatalog = map[PlanType]Plan{
	PlanStarter: {
		Type:         PlanStarter,
		Name:         "Starter",
		MonthlyPrice: 3000,
		Accounts:     1,
		GiftGroups:   5,
		Features: []string{
			"Real-time Analytics",
			"Basic Overlay Styles",
			"Email Support",
			"7-day Data Retention",
		},
	},
	PlanProfessional: {
		Type:         PlanProfessional,
		Name:         "Professional",
		MonthlyPrice: 8000,
		Accounts:     3,
		GiftGroups:   15,
		Features: []string{
			"Advanced Analytics",
			"All Overlay Styles",
			"Chat Monitoring",
			"Priority Support",
			"30-day Data Retention",
			"Custom Reports",
		},
	},
	PlanEnterprise: {
		Type:         PlanEnterprise,
		Name:         "Enterprise",
		MonthlyPrice: 23000,
		Accounts:     20,
		GiftGroups:   50,
		Features: []string{
			"AI-Powered Analytics",
			"Custom Overlay Designs",
			"Team Collaboration",
			"24/7 Phone Support",
			"Unlimited Data Retention",
			"API Access",
			"White-label Options",
		},
	},
}

// LookupPlan returns the catalog entry for t.
func LookupPlan(t PlanType) (Plan, bool) {
	p, ok := planCatalog[t]
	return p, ok
}

// Plans returns the catalog in display order.
func Plans() []Plan {
	out := make([]Plan, 0, len(planOrder))
	for _, t := range planOrder {
		out = append(out, planCatalog[t])
	}
	return out
}

// MonthlyTotal is the plan base price plus the add-on for every requested
// account beyond the plan's included accounts.
func (p Plan) MonthlyTotal(requestedAccounts int) int64 {
	extra := requestedAccounts - p.Accounts
	if extra < 0 {
		extra = 0
	}
	return p.MonthlyPrice + int64(extra)*AdditionalAccountPrice
}

// ToMajorUnits converts minor currency units to a decimal amount for display.
func ToMajorUnits(minor int64) float64 {
	return float64(minor) / 100
}
