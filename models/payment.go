package models

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/reconcile_backend/config"
	"github.com/mmdatafocus/reconcile_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Payment is immutable once created. A reversal is a separate Payment that
// points back to the one it cancels.
type Payment struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Method         PaymentMethod   `gorm:"size:20;not null" json:"method"`
	PaymentDate    time.Time       `gorm:"not null" json:"payment_date"`
	Notes          string          `gorm:"type:text;default:null" json:"notes"`
	ReversalOfId   *int            `gorm:"uniqueIndex" json:"reversal_of_id"`
	IdempotencyKey *string         `gorm:"size:100;uniqueIndex" json:"idempotency_key"`
	Allocations    []Allocation    `gorm:"foreignKey:PaymentId" json:"allocations"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Allocation is the share of a payment applied to one obligation. Reversal
// allocations carry the same positive amount with IsReversal set.
type Allocation struct {
	ID             int             `gorm:"primary_key" json:"id"`
	PaymentId      int             `gorm:"index;not null" json:"payment_id"`
	ObligationKind ObligationKind  `gorm:"size:20;not null" json:"obligation_kind"`
	ObligationId   int             `gorm:"index;not null" json:"obligation_id"`
	AppliedAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"applied_amount"`
	IsReversal     bool            `gorm:"not null;default:false" json:"is_reversal"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// SignedAmount is the allocation's effect on the obligation's applied amount.
func (a Allocation) SignedAmount() decimal.Decimal {
	if a.IsReversal {
		return a.AppliedAmount.Neg()
	}
	return a.AppliedAmount
}

type NewAllocationTarget struct {
	ObligationKind ObligationKind  `json:"obligation_kind"`
	ObligationId   int             `json:"obligation_id"`
	AppliedAmount  decimal.Decimal `json:"applied_amount"`
}

type NewPayment struct {
	Amount         decimal.Decimal       `json:"amount"`
	Method         PaymentMethod         `json:"method"`
	PaymentDate    time.Time             `json:"payment_date"`
	Notes          string                `json:"notes"`
	Targets        []NewAllocationTarget `json:"targets"`
	Strict         bool                  `json:"strict"`
	IdempotencyKey string                `json:"idempotency_key"`
}

type NewPaymentReversal struct {
	PaymentDate time.Time `json:"payment_date"`
	Notes       string    `json:"notes"`
}

func obligationLockKey(obligationId int) string {
	return "lock:obligation:" + strconv.Itoa(obligationId)
}

// obligationLockKeys must be called with ids already in ascending order.
func obligationLockKeys(ids []int) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = obligationLockKey(id)
	}
	return keys
}

func (input *NewPayment) validate() error {
	if !input.Amount.IsPositive() {
		return invalidInput("payment amount must be greater than 0")
	}
	if !utils.FitsScale(input.Amount, utils.ScaleCurrency) {
		return invalidInput("payment amount %s has more than %d decimal places", input.Amount.String(), utils.ScaleCurrency)
	}
	if !input.Method.IsValid() {
		return invalidInput("invalid payment method %q", input.Method)
	}
	if len(input.Targets) == 0 {
		return invalidInput("at least one allocation target is required")
	}

	seen := make(map[int]bool, len(input.Targets))
	amounts := make([]decimal.Decimal, 0, len(input.Targets))
	for _, target := range input.Targets {
		if !target.ObligationKind.IsValid() {
			return invalidInput("invalid obligation kind %q", target.ObligationKind)
		}
		if target.ObligationId <= 0 {
			return invalidInput("obligation_id is required")
		}
		if !target.AppliedAmount.IsPositive() {
			return invalidInput("applied amount for obligation %d must be greater than 0", target.ObligationId)
		}
		if !utils.FitsScale(target.AppliedAmount, utils.ScaleCurrency) {
			return invalidInput("applied amount %s for obligation %d has more than %d decimal places",
				target.AppliedAmount.String(), target.ObligationId, utils.ScaleCurrency)
		}
		if seen[target.ObligationId] {
			return invalidInput("obligation %d is targeted more than once", target.ObligationId)
		}
		seen[target.ObligationId] = true
		amounts = append(amounts, target.AppliedAmount)
	}
	if total := utils.SumDecimals(amounts...); !total.Equal(input.Amount) {
		return invalidInput("allocations total %s does not equal payment amount %s",
			utils.FormatCurrency(total), utils.FormatCurrency(input.Amount))
	}
	return nil
}

// RegisterPayment records a payment and applies it across its targets in one
// transaction. Obligations are locked in ascending id order, first in Redis
// (when configured) and then with row locks, so two payments sharing
// obligations cannot deadlock on each other.
//
// On any failure nothing is persisted: no payment, no allocation and no
// obligation change.
func RegisterPayment(ctx context.Context, input *NewPayment) (result *Payment, obligations []*Obligation, err error) {
	ctx, span := tracer.Start(ctx, "RegisterPayment")
	defer func() { endSpan(span, err) }()

	if err := input.validate(); err != nil {
		return nil, nil, err
	}
	strict := input.Strict || config.StrictAllocation()
	span.SetAttributes(attribute.Int("targets", len(input.Targets)), attribute.Bool("strict", strict))

	idempotencyKey := strings.TrimSpace(input.IdempotencyKey)
	if idempotencyKey != "" {
		existing, err := paymentByIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			return nil, nil, err
		}
		if existing != nil {
			return replayedPayment(ctx, existing)
		}
	}

	targets := make([]NewAllocationTarget, len(input.Targets))
	copy(targets, input.Targets)
	sort.Slice(targets, func(i, j int) bool { return targets[i].ObligationId < targets[j].ObligationId })

	ids := make([]int, len(targets))
	for i, target := range targets {
		ids[i] = target.ObligationId
	}
	release, err := utils.ObtainLocks(ctx, obligationLockKeys(ids), "Payment", "RegisterPayment")
	if err != nil {
		return nil, nil, mapStorageError(err)
	}
	defer release()

	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}
	payment := Payment{
		Amount:      input.Amount,
		Method:      input.Method,
		PaymentDate: paymentDate,
		Notes:       strings.TrimSpace(input.Notes),
		Allocations: make([]Allocation, 0, len(targets)),
	}
	if idempotencyKey != "" {
		payment.IdempotencyKey = &idempotencyKey
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, nil, mapStorageError(tx.Error)
	}

	obligations = make([]*Obligation, 0, len(targets))
	for _, target := range targets {
		obligation, err := ApplyToObligation(tx, target.ObligationId, target.AppliedAmount, ApplyOptions{
			Strict:       strict,
			ExpectedKind: target.ObligationKind,
		})
		if err != nil {
			tx.Rollback()
			return nil, nil, err
		}
		obligations = append(obligations, obligation)
		payment.Allocations = append(payment.Allocations, Allocation{
			ObligationKind: target.ObligationKind,
			ObligationId:   target.ObligationId,
			AppliedAmount:  target.AppliedAmount,
		})
	}

	if err := tx.Create(&payment).Error; err != nil {
		tx.Rollback()
		if idempotencyKey != "" {
			// a concurrent request with the same key won the insert
			if existing, lookupErr := paymentByIdempotencyKey(ctx, idempotencyKey); lookupErr == nil && existing != nil {
				return replayedPayment(ctx, existing)
			}
		}
		return nil, nil, mapStorageError(err)
	}

	err = writeOutbox(ctx, tx, payment.CreatedAt, payment.ID, OutboxReferenceTypePayment, OutboxActionCreate, payment)
	if err != nil {
		tx.Rollback()
		return nil, nil, mapStorageError(err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, nil, mapStorageError(err)
	}
	span.SetAttributes(attribute.Int("payment_id", payment.ID))
	return &payment, obligations, nil
}

// ReversePayment cancels a payment by appending a reversal payment whose
// allocations subtract the original amounts from the same obligations.
// A payment can be reversed once; a reversal cannot be reversed.
func ReversePayment(ctx context.Context, paymentId int, input *NewPaymentReversal) (result *Payment, obligations []*Obligation, err error) {
	ctx, span := tracer.Start(ctx, "ReversePayment")
	span.SetAttributes(attribute.Int("payment_id", paymentId))
	defer func() { endSpan(span, err) }()

	if input == nil {
		input = &NewPaymentReversal{}
	}

	original, err := GetPayment(ctx, paymentId)
	if err != nil {
		return nil, nil, err
	}
	if original.ReversalOfId != nil {
		return nil, nil, invalidInput("payment %d is a reversal and cannot be reversed", paymentId)
	}
	if err := ensureNotReversed(config.GetDB().WithContext(ctx), paymentId); err != nil {
		return nil, nil, err
	}

	allocations := make([]Allocation, len(original.Allocations))
	copy(allocations, original.Allocations)
	sort.Slice(allocations, func(i, j int) bool { return allocations[i].ObligationId < allocations[j].ObligationId })

	ids := make([]int, len(allocations))
	for i, allocation := range allocations {
		ids[i] = allocation.ObligationId
	}
	release, err := utils.ObtainLocks(ctx, obligationLockKeys(ids), "Payment", "ReversePayment")
	if err != nil {
		return nil, nil, mapStorageError(err)
	}
	defer release()

	paymentDate := input.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now().UTC()
	}
	notes := strings.TrimSpace(input.Notes)
	if notes == "" {
		notes = fmt.Sprintf("Reversal of payment #%d", paymentId)
	}
	reversal := Payment{
		Amount:       original.Amount,
		Method:       original.Method,
		PaymentDate:  paymentDate,
		Notes:        notes,
		ReversalOfId: &original.ID,
		Allocations:  make([]Allocation, 0, len(allocations)),
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, nil, mapStorageError(tx.Error)
	}

	obligations = make([]*Obligation, 0, len(allocations))
	for _, allocation := range allocations {
		obligation, err := ApplyToObligation(tx, allocation.ObligationId, allocation.AppliedAmount.Neg(), ApplyOptions{
			ExpectedKind: allocation.ObligationKind,
		})
		if err != nil {
			tx.Rollback()
			return nil, nil, err
		}
		obligations = append(obligations, obligation)
		reversal.Allocations = append(reversal.Allocations, Allocation{
			ObligationKind: allocation.ObligationKind,
			ObligationId:   allocation.ObligationId,
			AppliedAmount:  allocation.AppliedAmount,
			IsReversal:     true,
		})
	}

	if err := tx.Create(&reversal).Error; err != nil {
		tx.Rollback()
		// unique reversal_of_id: another request reversed it first
		if reversedErr := ensureNotReversed(db.WithContext(ctx), paymentId); reversedErr != nil {
			return nil, nil, reversedErr
		}
		return nil, nil, mapStorageError(err)
	}

	err = writeOutbox(ctx, tx, reversal.CreatedAt, reversal.ID, OutboxReferenceTypePaymentReversal, OutboxActionCreate, reversal)
	if err != nil {
		tx.Rollback()
		return nil, nil, mapStorageError(err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, nil, mapStorageError(err)
	}
	return &reversal, obligations, nil
}

func GetPayment(ctx context.Context, id int) (*Payment, error) {
	db := config.GetDB()

	var result Payment
	err := db.WithContext(ctx).
		Preload("Allocations", func(tx *gorm.DB) *gorm.DB { return tx.Order("obligation_id ASC") }).
		First(&result, id).Error
	if err != nil {
		return nil, mapStorageError(fmt.Errorf("payment %d: %w", id, err))
	}
	return &result, nil
}

func ensureNotReversed(db *gorm.DB, paymentId int) error {
	var count int64
	if err := db.Model(&Payment{}).Where("reversal_of_id = ?", paymentId).Count(&count).Error; err != nil {
		return mapStorageError(err)
	}
	if count > 0 {
		return invalidInput("payment %d has already been reversed", paymentId)
	}
	return nil
}

func paymentByIdempotencyKey(ctx context.Context, key string) (*Payment, error) {
	db := config.GetDB()

	var results []Payment
	err := db.WithContext(ctx).
		Preload("Allocations", func(tx *gorm.DB) *gorm.DB { return tx.Order("obligation_id ASC") }).
		Where("idempotency_key = ?", key).
		Limit(1).
		Find(&results).Error
	if err != nil {
		return nil, mapStorageError(err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// replayedPayment answers a resubmitted request with the stored payment and
// the current state of its obligations.
func replayedPayment(ctx context.Context, payment *Payment) (*Payment, []*Obligation, error) {
	ids := make([]int, len(payment.Allocations))
	for i, allocation := range payment.Allocations {
		ids[i] = allocation.ObligationId
	}
	obligations, err := GetObligations(ctx, ids)
	if err != nil {
		return nil, nil, mapStorageError(err)
	}
	return payment, obligations, nil
}
