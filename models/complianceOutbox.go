package models

import (
	"encoding/json"
	"time"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/utils"
	"gorm.io/gorm"
)

// ComplianceEventRecord is the transactional outbox row for a ComplianceChanged
// event. It is written in the same transaction that changes the link status, so
// an event exists if and only if the transition committed. The dispatcher
// publishes after commit and records the outcome on the row.
type ComplianceEventRecord struct {
	ID        int    `gorm:"primary_key;index:idx_compliance_outbox_dispatch,priority:2" json:"id"`
	OrgId     string `gorm:"type:char(36);index;not null" json:"org_id"`
	Sku       string `gorm:"size:100;not null" json:"sku"`
	LinkId    string `gorm:"type:char(36);index;not null" json:"link_id"`
	OldStatus InventoryStatus `gorm:"size:20;not null" json:"old_status"`
	NewStatus InventoryStatus `gorm:"size:20;not null" json:"new_status"`
	Reasons   json.RawMessage `gorm:"type:json" json:"reasons"`
	// TriggeredBy is the document whose ingestion caused the transition.
	TriggeredBy string    `gorm:"type:char(36)" json:"triggered_by"`
	OccurredAt  time.Time `gorm:"index;not null" json:"occurred_at"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_compliance_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ConvertToComplianceMessage builds the wire payload from an outbox row.
func ConvertToComplianceMessage(record ComplianceEventRecord) config.ComplianceChangedMessage {
	var reasons []string
	if len(record.Reasons) > 0 {
		_ = utils.UnmarshalFromJSON(record.Reasons, &reasons)
	}
	return config.ComplianceChangedMessage{
		ID:            record.ID,
		OrgId:         record.OrgId,
		Sku:           record.Sku,
		LinkId:        record.LinkId,
		OldStatus:     string(record.OldStatus),
		NewStatus:     string(record.NewStatus),
		Reasons:       reasons,
		TriggeredBy:   record.TriggeredBy,
		OccurredAt:    record.OccurredAt,
		CorrelationId: record.CorrelationId,
	}
}

// EnqueueComplianceEvent writes the outbox row inside the caller's transaction.
// Call it only when old and new status or reasons actually differ.
func EnqueueComplianceEvent(tx *gorm.DB, link *DocumentInventoryLink, oldStatus InventoryStatus, triggeredBy string, correlationId string) error {
	record := ComplianceEventRecord{
		OrgId:         link.OrgId,
		Sku:           link.Sku,
		LinkId:        link.ID,
		OldStatus:     oldStatus,
		NewStatus:     link.InventoryStatus,
		Reasons:       link.CompromiseReasons,
		TriggeredBy:   triggeredBy,
		OccurredAt:    time.Now().UTC(),
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}
	return tx.Create(&record).Error
}
