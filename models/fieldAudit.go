package models

import "time"

// FieldAudit is the merge audit trail: one row per field changed by a ledger
// merge, so corrections stay reconstructible after the fact.
type FieldAudit struct {
	ID               int       `gorm:"primary_key" json:"id"`
	OrgId            string    `gorm:"type:char(36);index;not null" json:"org_id"`
	TransactionId    string    `gorm:"type:char(36);index;not null" json:"transaction_id"`
	Field            string    `gorm:"size:64;not null" json:"field"`
	OldValue         *string   `gorm:"size:255" json:"old_value"`
	NewValue         string    `gorm:"size:255;not null" json:"new_value"`
	SourceDocumentId string    `gorm:"type:char(36)" json:"source_document_id"`
	// ChangedByUserId is nil for pipeline-originated merges (no operator).
	ChangedByUserId *int      `gorm:"index" json:"changed_by_user_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
