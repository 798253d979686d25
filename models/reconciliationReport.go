package models

import "time"

const (
	ReconciliationCheckAppliedAmount  = "APPLIED_AMOUNT"
	ReconciliationCheckStatus         = "OBLIGATION_STATUS"
	ReconciliationCheckAllocationKind = "ALLOCATION_KIND"
)

// ReconciliationReport is one drift finding written by RunObligationReconciliation.
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	CheckType     string    `gorm:"size:50;index;not null" json:"check_type"`
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"`
	EntityId      int       `gorm:"index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type ReconciliationSummary struct {
	CorrelationId string                  `json:"correlation_id"`
	Checked       int                     `json:"checked"`
	Findings      []*ReconciliationReport `json:"findings"`
}
