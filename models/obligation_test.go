package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/reconcile_backend/config"
	"github.com/mmdatafocus/reconcile_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateObligation(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	obligation := mustCreateObligation(t, models.ObligationKindSale, "115.00")
	assert.Equal(t, models.ObligationStatusPending, obligation.Status)
	assert.True(t, obligation.AppliedAmount.IsZero())

	_, err := models.CreateObligation(ctx, &models.NewObligation{Kind: "Refund", FinalAmount: dec("1")})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	_, err = models.CreateObligation(ctx, &models.NewObligation{Kind: models.ObligationKindExpense, FinalAmount: dec("0")})
	assert.True(t, errors.Is(err, models.ErrInvalidInput))

	// a final amount finer than cents would be rounded by the column after status is derived
	_, err = models.CreateObligation(ctx, &models.NewObligation{Kind: models.ObligationKindExpense, FinalAmount: dec("100.005")})
	assert.True(t, errors.Is(err, models.ErrInvalidInput), "got %v", err)
}

func TestGetObligation_NotFound(t *testing.T) {
	setupTestDB(t)

	_, err := models.GetObligation(context.Background(), 42)
	assert.True(t, errors.Is(err, models.ErrNotFound), "got %v", err)
	assert.Equal(t, models.ErrorKindNotFound, models.KindOf(err))

	_, err = models.OutstandingBalance(context.Background(), 42)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func applyInTx(t *testing.T, id int, delta string, opts models.ApplyOptions) (*models.Obligation, error) {
	t.Helper()
	var result *models.Obligation
	err := config.GetDB().Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = models.ApplyToObligation(tx, id, dec(delta), opts)
		return err
	})
	return result, err
}

func TestApplyToObligation_DerivesStatus(t *testing.T) {
	setupTestDB(t)
	obligation := mustCreateObligation(t, models.ObligationKindPurchase, "100.00")

	steps := []struct {
		delta   string
		applied string
		status  models.ObligationStatus
	}{
		{"40.00", "40", models.ObligationStatusPartial},
		{"60.00", "100", models.ObligationStatusPaid},
		{"-0.01", "99.99", models.ObligationStatusPartial},
		{"-99.99", "0", models.ObligationStatusPending},
		{"150.00", "150", models.ObligationStatusPaid},
	}
	for _, step := range steps {
		updated, err := applyInTx(t, obligation.ID, step.delta, models.ApplyOptions{})
		require.NoError(t, err, "delta %s", step.delta)
		assert.Equal(t, step.status, updated.Status, "delta %s", step.delta)

		stored := mustGetObligation(t, obligation.ID)
		assert.True(t, stored.AppliedAmount.Equal(dec(step.applied)), "applied %s, want %s", stored.AppliedAmount, step.applied)
		assert.Equal(t, step.status, stored.Status)
	}

	balance, err := models.OutstandingBalance(context.Background(), obligation.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("-50")), "overpaid balance is negative, got %s", balance)
}

func TestApplyToObligation_StrictRejectsOverAllocation(t *testing.T) {
	setupTestDB(t)
	obligation := mustCreateObligation(t, models.ObligationKindPayroll, "100.00")

	_, err := applyInTx(t, obligation.ID, "100.01", models.ApplyOptions{Strict: true})
	assert.True(t, errors.Is(err, models.ErrOverAllocation), "got %v", err)
	assert.True(t, mustGetObligation(t, obligation.ID).AppliedAmount.IsZero())

	updated, err := applyInTx(t, obligation.ID, "100.00", models.ApplyOptions{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, models.ObligationStatusPaid, updated.Status)
}

func TestApplyToObligation_RejectsNegativeApplied(t *testing.T) {
	setupTestDB(t)
	obligation := mustCreateObligation(t, models.ObligationKindExpense, "10.00")

	_, err := applyInTx(t, obligation.ID, "-1", models.ApplyOptions{})
	assert.True(t, errors.Is(err, models.ErrInvalidInput), "got %v", err)
}

func TestApplyToObligation_KindMismatchIsNotFound(t *testing.T) {
	setupTestDB(t)
	obligation := mustCreateObligation(t, models.ObligationKindSale, "10.00")

	_, err := applyInTx(t, obligation.ID, "1", models.ApplyOptions{ExpectedKind: models.ObligationKindPurchase})
	assert.True(t, errors.Is(err, models.ErrNotFound), "got %v", err)
}

func TestDeleteObligation(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	unpaid := mustCreateObligation(t, models.ObligationKindSale, "10.00")
	_, err := models.DeleteObligation(ctx, unpaid.ID)
	require.NoError(t, err)
	_, err = models.GetObligation(ctx, unpaid.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	paid := mustCreateObligation(t, models.ObligationKindSale, "10.00")
	_, _, err = models.RegisterPayment(ctx, singleTargetPayment(paid, "4.00"))
	require.NoError(t, err)
	_, err = models.DeleteObligation(ctx, paid.ID)
	assert.True(t, errors.Is(err, models.ErrInvalidInput), "got %v", err)
	mustGetObligation(t, paid.ID)
}

func TestListOutstandingObligations(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	sale := mustCreateObligation(t, models.ObligationKindSale, "10.00")
	paidSale := mustCreateObligation(t, models.ObligationKindSale, "5.00")
	expense := mustCreateObligation(t, models.ObligationKindExpense, "7.00")
	_, _, err := models.RegisterPayment(ctx, singleTargetPayment(paidSale, "5.00"))
	require.NoError(t, err)

	all, err := models.ListOutstandingObligations(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, sale.ID, all[0].ID)
	assert.Equal(t, expense.ID, all[1].ID)

	sales, err := models.ListOutstandingObligations(ctx, models.ObligationKindSale)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, sale.ID, sales[0].ID)

	_, err = models.ListOutstandingObligations(ctx, "Nope")
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
}
