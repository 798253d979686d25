package models_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/mmdatafocus/reconcile_backend/config"
	"github.com/mmdatafocus/reconcile_backend/models"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// setupTestDB installs a fresh file-backed SQLite database as the global
// connection and migrates it. Redis is disabled unless setupTestRedis is called.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenSQLite(filepath.Join(t.TempDir(), "reconcile_test.db"))
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	prevDB := config.GetDB()
	config.SetDB(db)
	config.SetRedis(nil)
	t.Cleanup(func() {
		config.SetDB(prevDB)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	config.SetRedis(client)
	t.Cleanup(func() {
		config.SetRedis(nil)
		_ = client.Close()
	})
	return mr
}

func mustCreateObligation(t *testing.T, kind models.ObligationKind, finalAmount string) *models.Obligation {
	t.Helper()
	obligation, err := models.CreateObligation(context.Background(), &models.NewObligation{
		Kind:        kind,
		Reference:   string(kind) + "-test",
		FinalAmount: dec(finalAmount),
	})
	require.NoError(t, err)
	return obligation
}

func mustGetObligation(t *testing.T, id int) *models.Obligation {
	t.Helper()
	obligation, err := models.GetObligation(context.Background(), id)
	require.NoError(t, err)
	return obligation
}

// seedCatalogue creates one product and the given number of ingredients.
func seedCatalogue(t *testing.T, ingredients int) (*models.Product, []*models.Ingredient) {
	t.Helper()
	ctx := context.Background()
	product, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Burger"})
	require.NoError(t, err)

	result := make([]*models.Ingredient, ingredients)
	for i := range result {
		result[i], err = models.CreateIngredient(ctx, &models.NewIngredient{
			Name:     "Ingredient " + string(rune('A'+i)),
			Unit:     "kg",
			UnitCost: dec("1"),
		})
		require.NoError(t, err)
	}
	return product, result
}

func singleTargetPayment(obligation *models.Obligation, amount string) *models.NewPayment {
	return &models.NewPayment{
		Amount: dec(amount),
		Method: models.PaymentMethodCash,
		Targets: []models.NewAllocationTarget{
			{ObligationKind: obligation.Kind, ObligationId: obligation.ID, AppliedAmount: dec(amount)},
		},
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
