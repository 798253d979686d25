package models

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mmdatafocus/reconcile_backend/config"
	"github.com/mmdatafocus/reconcile_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductCost is the saved cost of one product. Lines are replaced wholesale
// on every save.
type ProductCost struct {
	ProductId      int               `gorm:"primaryKey;autoIncrement:false" json:"product_id"`
	Servings       int               `gorm:"not null;default:1" json:"servings"`
	TotalCost      decimal.Decimal   `gorm:"type:decimal(20,6);not null;default:0" json:"total_cost"`
	CostPerServing decimal.Decimal   `gorm:"type:decimal(20,2);not null;default:0" json:"cost_per_serving"`
	Lines          []ProductCostLine `gorm:"foreignKey:ProductId;references:ProductId" json:"lines"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductCostLine is one ingredient's share of a product's cost.
// Percentage is derived; it is never set independently.
type ProductCostLine struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ProductId    int             `gorm:"index;not null" json:"product_id"`
	IngredientId int             `gorm:"index;not null" json:"ingredient_id"`
	Quantity     decimal.Decimal `gorm:"type:decimal(10,3);not null;default:0" json:"quantity"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(10,3);not null;default:0" json:"unit_cost"`
	LineTotal    decimal.Decimal `gorm:"column:total_cost;type:decimal(16,6);not null;default:0" json:"line_total"`
	Percentage   decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"percentage"`
}

type NewProductCost struct {
	ProductId   int               `json:"product_id"`
	Servings    int               `json:"servings"`
	Ingredients []IngredientUsage `json:"ingredients"`
}

func productCostCacheKey(productId int) string {
	return "ProductCost:" + strconv.Itoa(productId)
}

func productCostLockKey(productId int) string {
	return "lock:product-cost:" + strconv.Itoa(productId)
}

// SaveProductCost recomputes and stores a product's cost. Quantities and unit
// costs are normalised to the stored scale (3 places) before computing, so the
// saved lines always multiply out to their stored totals.
//
// The existing lines are deleted and the new set inserted in one transaction;
// readers see either the old or the new breakdown, never an empty one.
func SaveProductCost(ctx context.Context, input *NewProductCost) (result *ProductCost, err error) {
	ctx, span := tracer.Start(ctx, "SaveProductCost")
	span.SetAttributes(attribute.Int("product_id", input.ProductId))
	defer func() { endSpan(span, err) }()

	if input.ProductId <= 0 {
		return nil, invalidInput("product_id is required")
	}

	normalized := make([]IngredientUsage, len(input.Ingredients))
	ingredientIds := make([]int, len(input.Ingredients))
	for i, usage := range input.Ingredients {
		// signs are checked on the raw values; rounding must not hide a negative cost
		if !usage.Quantity.IsPositive() {
			return nil, invalidInput("ingredient %d: quantity must be greater than 0", usage.IngredientId)
		}
		if usage.UnitCost.IsNegative() {
			return nil, invalidInput("ingredient %d: unit cost cannot be negative", usage.IngredientId)
		}
		quantity := utils.RoundQuantity(usage.Quantity)
		if quantity.IsZero() {
			return nil, invalidInput("ingredient %d: quantity %s is below the smallest storable quantity %s",
				usage.IngredientId, usage.Quantity.String(), utils.SmallestQuantity.String())
		}
		normalized[i] = IngredientUsage{
			IngredientId: usage.IngredientId,
			Quantity:     quantity,
			UnitCost:     utils.RoundQuantity(usage.UnitCost),
		}
		ingredientIds[i] = usage.IngredientId
	}

	productCost, err := ComputeProductCost(normalized, input.Servings)
	if err != nil {
		return nil, err
	}

	if err := utils.ValidateResourceId[Product](ctx, input.ProductId); err != nil {
		return nil, mapStorageError(fmt.Errorf("product %d: %w", input.ProductId, err))
	}
	missing, err := utils.MissingResourceIds[Ingredient](ctx, ingredientIds)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, notFound("ingredients %v", missing)
	}

	release, err := utils.ObtainLocks(ctx, []string{productCostLockKey(input.ProductId)}, "ProductCost", "SaveProductCost")
	if err != nil {
		return nil, mapStorageError(err)
	}
	defer release()

	productCost.ProductId = input.ProductId
	for i := range productCost.Lines {
		productCost.Lines[i].ProductId = input.ProductId
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, mapStorageError(tx.Error)
	}

	if err := tx.Where("product_id = ?", input.ProductId).Delete(&ProductCostLine{}).Error; err != nil {
		tx.Rollback()
		return nil, mapStorageError(err)
	}
	err = tx.Omit("Lines").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"servings", "total_cost", "cost_per_serving", "updated_at"}),
	}).Create(productCost).Error
	if err != nil {
		tx.Rollback()
		return nil, mapStorageError(err)
	}

	if err := tx.Create(&productCost.Lines).Error; err != nil {
		tx.Rollback()
		return nil, mapStorageError(err)
	}

	err = writeOutbox(ctx, tx, time.Now().UTC(), productCost.ProductId, OutboxReferenceTypeProductCost, OutboxActionReplace, productCost)
	if err != nil {
		tx.Rollback()
		return nil, mapStorageError(err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, mapStorageError(err)
	}

	if err := config.SetRedisObject(productCostCacheKey(productCost.ProductId), productCost, config.ProductCostCacheTTL()); err != nil {
		config.LogError(config.GetLogger(), "ProductCost", "SaveProductCost", "cache saved product cost", productCost.ProductId, err)
		_ = config.RemoveRedisKey(productCostCacheKey(productCost.ProductId))
	}

	return productCost, nil
}

// GetProductCost returns the saved breakdown of a product, read through the Redis cache.
func GetProductCost(ctx context.Context, productId int) (*ProductCost, error) {
	var cached ProductCost
	exists, err := config.GetRedisObject(productCostCacheKey(productId), &cached)
	if err != nil {
		config.LogError(config.GetLogger(), "ProductCost", "GetProductCost", "read cache", productId, err)
	}
	if exists {
		return &cached, nil
	}

	result, err := loadProductCost(ctx, productId)
	if err != nil {
		return nil, err
	}
	fillProductCostCache(result)
	return result, nil
}

func loadProductCost(ctx context.Context, productId int) (*ProductCost, error) {
	var result ProductCost
	db := config.GetDB()
	err := db.WithContext(ctx).
		Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Where("product_id = ?", productId).
		First(&result).Error
	if err != nil {
		return nil, mapStorageError(fmt.Errorf("product cost %d: %w", productId, err))
	}
	return &result, nil
}

// fillProductCostCache only writes an absent key. A save that committed after
// productCost was read has already written the newer breakdown, and a stale
// fill must not replace it.
func fillProductCostCache(productCost *ProductCost) bool {
	stored, err := config.SetRedisObjectNX(productCostCacheKey(productCost.ProductId), productCost, config.ProductCostCacheTTL())
	if err != nil {
		config.LogError(config.GetLogger(), "ProductCost", "GetProductCost", "fill cache", productCost.ProductId, err)
		return false
	}
	return stored
}
