package models_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/reconcile_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportProductCostSheet(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	product, ingredients := seedCatalogue(t, 2)

	_, err := models.SaveProductCost(ctx, &models.NewProductCost{
		ProductId: product.ID,
		Servings:  4,
		Ingredients: []models.IngredientUsage{
			{IngredientId: ingredients[0].ID, Quantity: dec("0.300"), UnitCost: dec("12.50")},
			{IngredientId: ingredients[1].ID, Quantity: dec("0.400"), UnitCost: dec("25.00")},
		},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, models.ExportProductCostSheet(ctx, product.ID, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Cost Sheet")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 8)
	assert.Equal(t, []string{"Product", "Burger"}, rows[0])
	assert.Equal(t, "Ingredient", rows[2][0])
	assert.Equal(t, ingredients[0].Name, rows[3][0])
	assert.Equal(t, "27.3", rows[3][5])
	assert.Equal(t, "72.7", rows[4][5])

	total, err := f.GetCellValue("Cost Sheet", "E7")
	require.NoError(t, err)
	assert.Equal(t, "13.75", total)
	perServing, err := f.GetCellValue("Cost Sheet", "E9")
	require.NoError(t, err)
	assert.Equal(t, "3.44", perServing)
}

func TestExportProductCostSheet_NotSaved(t *testing.T) {
	setupTestDB(t)
	product, _ := seedCatalogue(t, 1)

	var buf bytes.Buffer
	err := models.ExportProductCostSheet(context.Background(), product.ID, &buf)
	assert.True(t, errors.Is(err, models.ErrNotFound), "got %v", err)
	assert.Zero(t, buf.Len())
}
