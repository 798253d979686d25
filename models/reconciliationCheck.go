package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/reconcile_backend/config"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const reconciliationBatchSize = 500

// RunObligationReconciliation recomputes every obligation's applied amount from
// its allocations (reversals subtracted) and checks the stored status against
// the derived one. Each mismatch is written to reconciliation_reports and
// returned. It never repairs anything.
func RunObligationReconciliation(ctx context.Context) (*ReconciliationSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := config.GetDB()
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	logger := config.GetLogger()

	summary := &ReconciliationSummary{
		CorrelationId: correlationIdFromContextOrNew(ctx),
		Findings:      make([]*ReconciliationReport, 0),
	}
	now := time.Now().UTC()

	var batch []*Obligation
	err := db.WithContext(ctx).Order("id ASC").FindInBatches(&batch, reconciliationBatchSize, func(tx *gorm.DB, _ int) error {
		ids := make([]int, len(batch))
		for i, obligation := range batch {
			ids[i] = obligation.ID
		}

		var allocations []Allocation
		if err := db.WithContext(ctx).Where("obligation_id IN ?", ids).Find(&allocations).Error; err != nil {
			return err
		}
		applied := make(map[int]decimal.Decimal, len(batch))
		kindMismatch := make(map[int]ObligationKind)
		kinds := make(map[int]ObligationKind, len(batch))
		for _, obligation := range batch {
			kinds[obligation.ID] = obligation.Kind
		}
		for _, allocation := range allocations {
			applied[allocation.ObligationId] = applied[allocation.ObligationId].Add(allocation.SignedAmount())
			if allocation.ObligationKind != kinds[allocation.ObligationId] {
				kindMismatch[allocation.ObligationId] = allocation.ObligationKind
			}
		}

		for _, obligation := range batch {
			summary.Checked++
			expected := applied[obligation.ID]
			if !expected.Equal(obligation.AppliedAmount) {
				summary.Findings = append(summary.Findings, &ReconciliationReport{
					CheckType:  ReconciliationCheckAppliedAmount,
					EntityType: "Obligation",
					EntityId:   obligation.ID,
					Details: fmt.Sprintf("applied_amount=%s != sum(allocations)=%s",
						obligation.AppliedAmount.String(), expected.String()),
				})
			}
			if derived := deriveObligationStatus(obligation.AppliedAmount, obligation.FinalAmount); derived != obligation.Status {
				summary.Findings = append(summary.Findings, &ReconciliationReport{
					CheckType:  ReconciliationCheckStatus,
					EntityType: "Obligation",
					EntityId:   obligation.ID,
					Details:    fmt.Sprintf("status=%s, expected %s", obligation.Status, derived),
				})
			}
			if kind, ok := kindMismatch[obligation.ID]; ok {
				summary.Findings = append(summary.Findings, &ReconciliationReport{
					CheckType:  ReconciliationCheckAllocationKind,
					EntityType: "Obligation",
					EntityId:   obligation.ID,
					Details:    fmt.Sprintf("allocation kind %s on %s obligation", kind, obligation.Kind),
				})
			}
		}
		return nil
	}).Error
	if err != nil {
		return summary, err
	}

	for _, finding := range summary.Findings {
		finding.CorrelationId = summary.CorrelationId
		finding.CreatedAt = now
	}
	if len(summary.Findings) > 0 {
		if err := db.WithContext(ctx).CreateInBatches(summary.Findings, 100).Error; err != nil {
			return summary, err
		}
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":          "ReconciliationChecks",
			"correlation_id": summary.CorrelationId,
			"checked":        summary.Checked,
			"findings":       len(summary.Findings),
		}).Info("obligation reconciliation completed")
	}
	return summary, nil
}
