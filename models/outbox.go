package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/reconcile_backend/config"
	"github.com/mmdatafocus/reconcile_backend/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for OutboxMessage.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// OutboxMessage is a ledger event written in the same transaction as the
// change it describes. The dispatcher publishes it after commit.
type OutboxMessage struct {
	ID               int                 `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	OccurredAt       time.Time           `gorm:"index;not null" json:"occurred_at"`
	ReferenceId      int                 `gorm:"index;not null" json:"reference_id"`
	ReferenceType    OutboxReferenceType `gorm:"size:30;index;not null" json:"reference_type"`
	Action           OutboxAction        `gorm:"size:1;not null" json:"action"`
	Payload          []byte              `gorm:"type:blob" json:"payload"`
	PublishStatus    string              `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time          `gorm:"index" json:"published_at"`
	PubSubMessageId  *string             `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int                 `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time          `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time          `gorm:"index" json:"locked_at"`
	LockedBy         *string             `gorm:"size:100" json:"locked_by"`
	LastPublishError *string             `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string              `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// writeOutbox records an event inside the caller's transaction. It does not publish.
func writeOutbox(ctx context.Context, tx *gorm.DB, occurredAt time.Time, refId int, refType OutboxReferenceType, action OutboxAction, payload interface{}) error {
	payloadInByte, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := OutboxMessage{
		OccurredAt:    occurredAt,
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		Payload:       payloadInByte,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.WithContext(ctx).Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func ConvertToLedgerEvent(record OutboxMessage) config.LedgerEventMessage {
	return config.LedgerEventMessage{
		ID:            record.ID,
		OccurredAt:    record.OccurredAt,
		ReferenceId:   record.ReferenceId,
		ReferenceType: string(record.ReferenceType),
		Action:        string(record.Action),
		Payload:       json.RawMessage(record.Payload),
		CorrelationId: record.CorrelationId,
	}
}
