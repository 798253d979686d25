package models

import (
	"github.com/mmdatafocus/reconcile_backend/utils"
	"github.com/shopspring/decimal"
)

// IngredientUsage is one ingredient consumed by a product recipe.
type IngredientUsage struct {
	IngredientId int             `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
}

// ComputeProductCost turns ingredient usages into a cost breakdown. It is pure:
// nothing is read or written, and identical input yields identical output.
//
// Line totals and the total cost are exact. Only percentages (1 place) and the
// cost per serving (2 places) are rounded, half away from zero. Percentages
// are rounded independently, so their sum may differ from 100 by up to 0.1 per line.
func ComputeProductCost(ingredients []IngredientUsage, servings int) (*ProductCost, error) {
	if len(ingredients) == 0 {
		return nil, invalidInput("at least one ingredient is required")
	}
	if servings <= 0 {
		return nil, invalidInput("servings must be at least 1")
	}

	seen := make(map[int]bool, len(ingredients))
	lines := make([]ProductCostLine, 0, len(ingredients))
	lineTotals := make([]decimal.Decimal, 0, len(ingredients))
	for i, usage := range ingredients {
		if usage.IngredientId <= 0 {
			return nil, invalidInput("ingredient %d: ingredient_id is required", i+1)
		}
		if seen[usage.IngredientId] {
			return nil, invalidInput("ingredient %d is listed more than once", usage.IngredientId)
		}
		seen[usage.IngredientId] = true
		if !usage.Quantity.IsPositive() {
			return nil, invalidInput("ingredient %d: quantity must be greater than 0", usage.IngredientId)
		}
		if usage.UnitCost.IsNegative() {
			return nil, invalidInput("ingredient %d: unit cost cannot be negative", usage.IngredientId)
		}

		lineTotal := usage.Quantity.Mul(usage.UnitCost)
		lineTotals = append(lineTotals, lineTotal)
		lines = append(lines, ProductCostLine{
			IngredientId: usage.IngredientId,
			Quantity:     usage.Quantity,
			UnitCost:     usage.UnitCost,
			LineTotal:    lineTotal,
		})
	}

	totalCost := utils.SumDecimals(lineTotals...)
	for i := range lines {
		lines[i].Percentage = utils.RoundPercentage(utils.PercentageOf(lines[i].LineTotal, totalCost))
	}

	return &ProductCost{
		Servings:       servings,
		TotalCost:      totalCost,
		CostPerServing: utils.RoundCurrency(utils.Divide(totalCost, decimal.NewFromInt(int64(servings)))),
		Lines:          lines,
	}, nil
}

// PercentageTotal is the sum of the rounded line percentages. It is a
// reporting figure, not a balance: expect 100 ± 0.1 per line.
func (pc *ProductCost) PercentageTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range pc.Lines {
		total = total.Add(line.Percentage)
	}
	return total
}
