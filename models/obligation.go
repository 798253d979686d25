package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/reconcile_backend/config"
	"github.com/mmdatafocus/reconcile_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Obligation is any payable record: a sale, purchase, expense or payroll run.
// Status is always derived from AppliedAmount vs FinalAmount (BeforeSave).
type Obligation struct {
	ID            int              `gorm:"primary_key" json:"id"`
	Kind          ObligationKind   `gorm:"size:20;index;not null" json:"kind"`
	Reference     string           `gorm:"size:255;default:null" json:"reference"`
	FinalAmount   decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"final_amount"`
	AppliedAmount decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"applied_amount"`
	Status        ObligationStatus `gorm:"size:20;index;not null;default:'Pending'" json:"status"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewObligation struct {
	Kind        ObligationKind  `json:"kind"`
	Reference   string          `json:"reference"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

// ApplyOptions controls ApplyToObligation.
type ApplyOptions struct {
	// Strict rejects a delta that would take the applied amount above the final amount.
	Strict bool
	// ExpectedKind, when set, must match the stored kind or the obligation is treated as not found.
	ExpectedKind ObligationKind
}

// deriveObligationStatus: overpayment (applied > final) is Paid, not an error.
func deriveObligationStatus(applied decimal.Decimal, final decimal.Decimal) ObligationStatus {
	switch {
	case !applied.IsPositive():
		return ObligationStatusPending
	case applied.GreaterThanOrEqual(final):
		return ObligationStatusPaid
	default:
		return ObligationStatusPartial
	}
}

func (o *Obligation) BeforeSave(tx *gorm.DB) error {
	o.Status = deriveObligationStatus(o.AppliedAmount, o.FinalAmount)
	return nil
}

func (o *Obligation) BeforeDelete(tx *gorm.DB) error {
	if !o.AppliedAmount.IsZero() {
		return invalidInput("obligation %d has applied payments; reverse them before deleting", o.ID)
	}
	return nil
}

// OutstandingBalance is FinalAmount - AppliedAmount; negative when overpaid.
func (o *Obligation) OutstandingBalance() decimal.Decimal {
	return o.FinalAmount.Sub(o.AppliedAmount)
}

func CreateObligation(ctx context.Context, input *NewObligation) (*Obligation, error) {
	if !input.Kind.IsValid() {
		return nil, invalidInput("invalid obligation kind %q", input.Kind)
	}
	if !input.FinalAmount.IsPositive() {
		return nil, invalidInput("final amount must be greater than 0")
	}
	if !utils.FitsScale(input.FinalAmount, utils.ScaleCurrency) {
		return nil, invalidInput("final amount %s has more than %d decimal places", input.FinalAmount.String(), utils.ScaleCurrency)
	}

	obligation := Obligation{
		Kind:          input.Kind,
		Reference:     strings.TrimSpace(input.Reference),
		FinalAmount:   input.FinalAmount,
		AppliedAmount: decimal.Zero,
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&obligation).Error; err != nil {
		return nil, mapStorageError(err)
	}
	return &obligation, nil
}

func GetObligation(ctx context.Context, id int) (*Obligation, error) {
	db := config.GetDB()

	var result Obligation
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, mapStorageError(fmt.Errorf("obligation %d: %w", id, err))
	}
	return &result, nil
}

func GetObligations(ctx context.Context, ids []int) ([]*Obligation, error) {
	var results []*Obligation
	if len(ids) == 0 {
		return results, nil
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func OutstandingBalance(ctx context.Context, id int) (decimal.Decimal, error) {
	obligation, err := GetObligation(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return obligation.OutstandingBalance(), nil
}

// ListOutstandingObligations returns obligations that are not yet Paid, oldest first.
// kind may be empty to list every kind.
func ListOutstandingObligations(ctx context.Context, kind ObligationKind) ([]*Obligation, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("status <> ?", ObligationStatusPaid)
	if kind != "" {
		if !kind.IsValid() {
			return nil, invalidInput("invalid obligation kind %q", kind)
		}
		dbCtx = dbCtx.Where("kind = ?", kind)
	}
	var results []*Obligation
	if err := dbCtx.Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// lockObligation reads an obligation with an exclusive row lock held until tx ends.
func lockObligation(tx *gorm.DB, id int) (*Obligation, error) {
	var obligation Obligation
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&obligation, id).Error
	if err != nil {
		return nil, mapStorageError(fmt.Errorf("obligation %d: %w", id, err))
	}
	return &obligation, nil
}

// ApplyToObligation adds delta to the obligation's applied amount inside tx
// and re-derives its status. A negative delta (reversal) may not take the
// applied amount below zero.
func ApplyToObligation(tx *gorm.DB, id int, delta decimal.Decimal, opts ApplyOptions) (*Obligation, error) {
	obligation, err := lockObligation(tx, id)
	if err != nil {
		return nil, err
	}
	if opts.ExpectedKind != "" && obligation.Kind != opts.ExpectedKind {
		return nil, notFound("%s obligation %d", opts.ExpectedKind, id)
	}

	applied := obligation.AppliedAmount.Add(delta)
	if applied.IsNegative() {
		return nil, invalidInput("obligation %d: applied amount cannot go below zero", id)
	}
	if opts.Strict && applied.GreaterThan(obligation.FinalAmount) {
		return nil, fmt.Errorf("%w: obligation %d outstanding %s, requested %s", ErrOverAllocation,
			id, obligation.OutstandingBalance().StringFixed(2), delta.StringFixed(2))
	}

	obligation.AppliedAmount = applied
	if err := tx.Save(obligation).Error; err != nil {
		return nil, mapStorageError(err)
	}
	return obligation, nil
}

// DeleteObligation removes an obligation that has never been paid (or whose
// payments were all reversed).
func DeleteObligation(ctx context.Context, id int) (*Obligation, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, mapStorageError(tx.Error)
	}

	obligation, err := lockObligation(tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Delete(obligation).Error; err != nil {
		tx.Rollback()
		return nil, mapStorageError(err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, mapStorageError(err)
	}
	return obligation, nil
}
