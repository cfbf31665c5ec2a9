package models

import "time"

// IdempotencyKey makes ingest retries safe: the extraction pipeline may
// deliver the same document twice, and a retried delivery must not double-link
// or double-count. One row per (org, handler, message).
type IdempotencyKey struct {
	ID          int               `gorm:"primary_key" json:"id"`
	OrgId       string            `gorm:"type:char(36);not null;index:uniq_idem,unique" json:"org_id"`
	HandlerName string            `gorm:"size:100;not null;index:uniq_idem,unique" json:"handler_name"`
	MessageId   string            `gorm:"size:255;not null;index:uniq_idem,unique" json:"message_id"`
	Status      IdempotencyStatus `gorm:"size:20;not null;index" json:"status"`
	LastError   *string           `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
