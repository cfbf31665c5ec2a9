package models

// DocumentType identifies the kind of trade document an extraction produced.
type DocumentType string

const (
	DocumentTypePurchaseOrder     DocumentType = "purchase_order"
	DocumentTypeCommercialInvoice DocumentType = "commercial_invoice"
	DocumentTypeBillOfLading      DocumentType = "bill_of_lading"
)

func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypePurchaseOrder, DocumentTypeCommercialInvoice, DocumentTypeBillOfLading:
		return true
	}
	return false
}

// AllDocumentTypes in chronological causality order (PO -> invoice -> BOL).
func AllDocumentTypes() []DocumentType {
	return []DocumentType{DocumentTypePurchaseOrder, DocumentTypeCommercialInvoice, DocumentTypeBillOfLading}
}

type TransactionType string

const (
	TransactionTypePurchase  TransactionType = "purchase"
	TransactionTypeSale      TransactionType = "sale"
	TransactionTypeInventory TransactionType = "inventory"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypePurchase, TransactionTypeSale, TransactionTypeInventory:
		return true
	}
	return false
}

// InventoryStatus is the reconciliation verdict for a link. Transitions are
// re-evaluated fresh on every input change; a later document can move a link
// back toward normal.
type InventoryStatus string

const (
	InventoryStatusNormal      InventoryStatus = "normal"
	InventoryStatusAtRisk      InventoryStatus = "at_risk"
	InventoryStatusCompromised InventoryStatus = "compromised"
)

// Severity orders statuses: compromised > at_risk > normal.
func (s InventoryStatus) Severity() int {
	switch s {
	case InventoryStatusCompromised:
		return 2
	case InventoryStatusAtRisk:
		return 1
	default:
		return 0
	}
}

func MaxInventoryStatus(a, b InventoryStatus) InventoryStatus {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// CompromiseReason is a stable tag, not a prose sentence, so downstream UI can
// localize.
type CompromiseReason string

const (
	ReasonQuantityVariance  CompromiseReason = "quantity_variance"
	ReasonCostVariance      CompromiseReason = "cost_variance"
	ReasonShipmentShortfall CompromiseReason = "shipment_shortfall"
	ReasonLateDelivery      CompromiseReason = "late_delivery"
	ReasonMissingPo         CompromiseReason = "missing_po"
	ReasonMissingDocument   CompromiseReason = "missing_document"
)

// AnomalyFlag tags odd-but-tolerated states on the unified ledger.
type AnomalyFlag string

const (
	AnomalyMissingPo        AnomalyFlag = "missing_po"
	AnomalyNegativeStock    AnomalyFlag = "negative_stock"
	AnomalyCurrencyConflict AnomalyFlag = "currency_conflict"
)

// Outbox publish lifecycle for compliance-change events.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)
