package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/reconcile_backend/config"
	"github.com/shopspring/decimal"
)

// Ingredient is a raw material used in product recipes.
type Ingredient struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:255;not null;index" json:"name"`
	Unit      string          `gorm:"size:20;not null;default:'unit'" json:"unit"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(10,3);default:0" json:"unit_cost"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewIngredient struct {
	Name     string          `json:"name" validate:"required"`
	Unit     string          `json:"unit"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// Product is a sellable product or meal whose cost is computed from ingredients.
type Product struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null;index" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name string `json:"name" validate:"required"`
}

func CreateIngredient(ctx context.Context, input *NewIngredient) (*Ingredient, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, invalidInput("ingredient name is required")
	}
	if input.UnitCost.IsNegative() {
		return nil, invalidInput("unit cost cannot be negative")
	}
	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		unit = "unit"
	}

	ingredient := Ingredient{
		Name:     strings.TrimSpace(input.Name),
		Unit:     unit,
		UnitCost: input.UnitCost,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&ingredient).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, invalidInput("product name is required")
	}
	product := Product{Name: strings.TrimSpace(input.Name)}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}
