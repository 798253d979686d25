package models_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/mmdatafocus/reconcile_backend/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeProductCost_BurgerScenario(t *testing.T) {
	pc, err := models.ComputeProductCost([]models.IngredientUsage{
		{IngredientId: 1, Quantity: dec("0.300"), UnitCost: dec("12.50")},
		{IngredientId: 2, Quantity: dec("0.400"), UnitCost: dec("25.00")},
	}, 4)
	require.NoError(t, err)

	assert.True(t, pc.TotalCost.Equal(dec("13.75")), "total_cost=%s", pc.TotalCost)
	assert.Equal(t, "3.44", pc.CostPerServing.StringFixed(2))
	require.Len(t, pc.Lines, 2)
	assert.True(t, pc.Lines[0].LineTotal.Equal(dec("3.75")))
	assert.True(t, pc.Lines[1].LineTotal.Equal(dec("10.00")))
	assert.Equal(t, "27.3", pc.Lines[0].Percentage.StringFixed(1))
	assert.Equal(t, "72.7", pc.Lines[1].Percentage.StringFixed(1))
}

func TestComputeProductCost_ZeroCostIngredients(t *testing.T) {
	pc, err := models.ComputeProductCost([]models.IngredientUsage{
		{IngredientId: 1, Quantity: dec("1"), UnitCost: dec("0")},
		{IngredientId: 2, Quantity: dec("2"), UnitCost: dec("0")},
	}, 1)
	require.NoError(t, err)
	assert.True(t, pc.TotalCost.IsZero())
	assert.True(t, pc.CostPerServing.IsZero())
	for _, line := range pc.Lines {
		assert.True(t, line.Percentage.IsZero())
	}
}

func TestComputeProductCost_InvalidInput(t *testing.T) {
	valid := models.IngredientUsage{IngredientId: 1, Quantity: dec("1"), UnitCost: dec("1")}
	cases := map[string]struct {
		ingredients []models.IngredientUsage
		servings    int
	}{
		"empty ingredients": {nil, 1},
		"zero servings":     {[]models.IngredientUsage{valid}, 0},
		"negative servings": {[]models.IngredientUsage{valid}, -2},
		"zero quantity":     {[]models.IngredientUsage{{IngredientId: 1, Quantity: dec("0"), UnitCost: dec("1")}}, 1},
		"negative quantity": {[]models.IngredientUsage{{IngredientId: 1, Quantity: dec("-1"), UnitCost: dec("1")}}, 1},
		"negative cost":     {[]models.IngredientUsage{{IngredientId: 1, Quantity: dec("1"), UnitCost: dec("-0.01")}}, 1},
		"missing id":        {[]models.IngredientUsage{{Quantity: dec("1"), UnitCost: dec("1")}}, 1},
		"duplicate id":      {[]models.IngredientUsage{valid, valid}, 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			pc, err := models.ComputeProductCost(tc.ingredients, tc.servings)
			assert.Nil(t, pc)
			assert.True(t, errors.Is(err, models.ErrInvalidInput), "got %v", err)
			assert.Equal(t, models.ErrorKindInvalidInput, models.KindOf(err))
		})
	}
}

func TestComputeProductCost_IsDeterministic(t *testing.T) {
	ingredients := []models.IngredientUsage{
		{IngredientId: 7, Quantity: dec("0.125"), UnitCost: dec("3.333")},
		{IngredientId: 3, Quantity: dec("1.750"), UnitCost: dec("0.499")},
		{IngredientId: 9, Quantity: dec("0.001"), UnitCost: dec("999.999")},
	}
	first, err := models.ComputeProductCost(ingredients, 3)
	require.NoError(t, err)
	second, err := models.ComputeProductCost(ingredients, 3)
	require.NoError(t, err)

	assert.Equal(t, first.TotalCost.String(), second.TotalCost.String())
	assert.Equal(t, first.CostPerServing.String(), second.CostPerServing.String())
	for i := range first.Lines {
		assert.Equal(t, first.Lines[i].LineTotal.String(), second.Lines[i].LineTotal.String())
		assert.Equal(t, first.Lines[i].Percentage.String(), second.Lines[i].Percentage.String())
	}
}

// Properties over random recipes: exact line sum, bounded percentage drift and
// per-serving round trip within one cent.
func TestComputeProductCost_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tolerancePerLine := dec("0.1")
	cent := dec("0.01")

	for iter := 0; iter < 500; iter++ {
		n := 1 + rng.Intn(12)
		ingredients := make([]models.IngredientUsage, n)
		for i := range ingredients {
			ingredients[i] = models.IngredientUsage{
				IngredientId: i + 1,
				Quantity:     decimal.New(int64(1+rng.Intn(99999)), -3),
				UnitCost:     decimal.New(int64(rng.Intn(999999)), -3),
			}
		}
		servings := 1 + rng.Intn(24)

		pc, err := models.ComputeProductCost(ingredients, servings)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, line := range pc.Lines {
			sum = sum.Add(line.LineTotal)
		}
		require.True(t, sum.Equal(pc.TotalCost), "iter %d: sum %s != total %s", iter, sum, pc.TotalCost)

		if pc.TotalCost.IsPositive() {
			drift := pc.PercentageTotal().Sub(decimal.NewFromInt(100)).Abs()
			bound := tolerancePerLine.Mul(decimal.NewFromInt(int64(n)))
			require.True(t, drift.LessThanOrEqual(bound), "iter %d: percentages drift %s > %s", iter, drift, bound)
		}

		roundTrip := pc.CostPerServing.Mul(decimal.NewFromInt(int64(servings)))
		// cost_per_serving carries at most half a cent of rounding per serving
		maxErr := cent.Mul(decimal.NewFromInt(int64(servings))).Div(decimal.NewFromInt(2))
		require.True(t, roundTrip.Sub(pc.TotalCost).Abs().LessThanOrEqual(maxErr),
			fmt.Sprintf("iter %d: %s x %d vs %s", iter, pc.CostPerServing, servings, pc.TotalCost))
		require.True(t, round2(pc.TotalCost.Div(decimal.NewFromInt(int64(servings)))).Equal(pc.CostPerServing))
	}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
