package models

import (
	"context"
	"io"

	"github.com/mmdatafocus/reconcile_backend/config"
	"github.com/mmdatafocus/reconcile_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const costSheetName = "Cost Sheet"

var costSheetHeadings = []string{"Ingredient", "Unit", "Quantity", "Unit Cost", "Line Total", "Percentage"}

// ExportProductCostSheet writes the saved cost breakdown of a product as an
// xlsx workbook: one row per line, then total, servings and cost per serving.
func ExportProductCostSheet(ctx context.Context, productId int, w io.Writer) error {
	productCost, err := GetProductCost(ctx, productId)
	if err != nil {
		return err
	}

	var product Product
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&product, productId).Error; err != nil {
		return mapStorageError(err)
	}

	ingredientIds := make([]int, len(productCost.Lines))
	for i, line := range productCost.Lines {
		ingredientIds[i] = line.IngredientId
	}
	var ingredients []Ingredient
	if err := db.WithContext(ctx).Where("id IN ?", ingredientIds).Find(&ingredients).Error; err != nil {
		return err
	}
	ingredientById := make(map[int]Ingredient, len(ingredients))
	for _, ingredient := range ingredients {
		ingredientById[ingredient.ID] = ingredient
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", costSheetName); err != nil {
		return err
	}

	setRow := func(row int, values ...interface{}) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		return f.SetSheetRow(costSheetName, cell, &values)
	}

	if err := setRow(1, "Product", product.Name); err != nil {
		return err
	}
	headings := make([]interface{}, len(costSheetHeadings))
	for i, h := range costSheetHeadings {
		headings[i] = h
	}
	if err := setRow(3, headings...); err != nil {
		return err
	}

	rowNo := 4
	for _, line := range productCost.Lines {
		ingredient := ingredientById[line.IngredientId]
		err := setRow(rowNo,
			ingredient.Name,
			ingredient.Unit,
			sheetNumber(utils.RoundQuantity(line.Quantity)),
			sheetNumber(utils.RoundQuantity(line.UnitCost)),
			sheetNumber(utils.RoundCurrency(line.LineTotal)),
			sheetNumber(utils.RoundPercentage(line.Percentage)),
		)
		if err != nil {
			return err
		}
		rowNo++
	}

	rowNo++
	if err := setRow(rowNo, "Total Cost", nil, nil, nil, sheetNumber(utils.RoundCurrency(productCost.TotalCost))); err != nil {
		return err
	}
	if err := setRow(rowNo+1, "Servings", nil, nil, nil, productCost.Servings); err != nil {
		return err
	}
	if err := setRow(rowNo+2, "Cost Per Serving", nil, nil, nil, sheetNumber(productCost.CostPerServing)); err != nil {
		return err
	}

	return f.Write(w)
}

func sheetNumber(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
