package builtin

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider"
)

// BudgetPayload holds the budget provider's own estimates. Upstream cost
// lines are reconciled together with these by the planner.
type BudgetPayload struct {
	Days      int                   `json:"days"`
	Travelers int                   `json:"travelers"`
	Costs     []domain.CategoryCost `json:"costs"`
	Inputs    []string              `json:"inputs"`
	Tips      []string              `json:"tips,omitempty"`
}

func newBudget(cfg config.ProviderConfig, _ provider.Dependencies) (ports.Provider, error) {
	set := provider.NewOperationSet(cfg.Name).Handle("estimate", estimateBudget)
	return configure(set, cfg), nil
}

func estimateBudget(ctx context.Context, req *domain.Request) (any, error) {
	t, err := trip(req)
	if err != nil {
		return nil, err
	}
	city := cityOrGeneric(t.Destination, t.BudgetCurrency)
	n := days(t)
	people := decimal.NewFromInt(int64(t.TravelerCount * n))

	out := BudgetPayload{
		Days:      n,
		Travelers: t.TravelerCount,
		Costs: []domain.CategoryCost{
			{
				Category: domain.CategoryMeals,
				Amount:   domain.MonetaryAmount{Value: city.MealsPerDay.Mul(people), Currency: city.Currency},
				Source:   Budget,
			},
			{
				Category: domain.CategoryTransport,
				Amount:   domain.MonetaryAmount{Value: city.TransitPerDay.Mul(people), Currency: city.Currency},
				Source:   Budget,
			},
		},
		Inputs: []string{},
	}
	for id := range req.Inputs {
		out.Inputs = append(out.Inputs, id)
	}
	sort.Strings(out.Inputs)

	if city.Currency != t.BudgetCurrency {
		out.Tips = append(out.Tips, "pay in "+city.Currency+" to avoid dynamic currency conversion fees")
	}
	if n >= 5 {
		out.Tips = append(out.Tips, "a multi-day transit pass is usually cheaper than single tickets")
	}
	return out, nil
}
