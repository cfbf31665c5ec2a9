package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnifiedTransaction is the canonical ledger row for a purchase/shipment: one
// logical transaction per (org, sku, transaction type), merged from whichever
// documents reference it.
type UnifiedTransaction struct {
	ID                 string          `gorm:"type:char(36);primary_key" json:"id"`
	OrgId              string          `gorm:"type:char(36);uniqueIndex:idx_unified_org_sku_type;not null" json:"org_id"`
	Sku                string          `gorm:"size:100;uniqueIndex:idx_unified_org_sku_type;not null" json:"sku"`
	TransactionType    TransactionType `gorm:"type:enum('purchase','sale','inventory');uniqueIndex:idx_unified_org_sku_type;not null" json:"transaction_type"`
	ProductDescription string          `gorm:"size:255" json:"product_description"`
	Currency           string          `gorm:"size:10" json:"currency"`

	CommittedQuantity *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"committed_quantity"`
	ReceivedQuantity  *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"received_quantity"`
	ConsumedQuantity  decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"consumed_quantity"`
	AvailableStock    decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"available_stock"`

	PlannedCost           *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"planned_cost"`
	ActualCost            *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"actual_cost"`
	CostVariance          *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"cost_variance"`
	CostVariancePct       *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"cost_variance_percentage"`

	PoDate       *time.Time `gorm:"default:null" json:"po_date"`
	ShipDate     *time.Time `gorm:"default:null" json:"ship_date"`
	EtaDate      *time.Time `gorm:"default:null" json:"eta_date"`
	ReceivedDate *time.Time `gorm:"default:null" json:"received_date"`

	InventoryStatus  InventoryStatus `gorm:"type:enum('normal','at_risk','compromised');default:'normal'" json:"inventory_status"`
	ComplianceStatus InventoryStatus `gorm:"type:enum('normal','at_risk','compromised');default:'normal'" json:"compliance_status"`
	RiskScore        int             `gorm:"default:0" json:"risk_score"`
	AnomalyFlags     json.RawMessage `gorm:"type:json" json:"anomaly_flags"`

	// Weak reference to the first document that created this row. Lookup
	// only, no ownership.
	SourceDocumentId string `gorm:"type:char(36)" json:"source_document_id"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Anomalies decodes the anomaly flag set (empty when column is null).
func (t *UnifiedTransaction) Anomalies() []AnomalyFlag {
	if len(t.AnomalyFlags) == 0 {
		return nil
	}
	var flags []AnomalyFlag
	if err := json.Unmarshal(t.AnomalyFlags, &flags); err != nil {
		return nil
	}
	return flags
}

func (t *UnifiedTransaction) HasAnomaly(flag AnomalyFlag) bool {
	for _, f := range t.Anomalies() {
		if f == flag {
			return true
		}
	}
	return false
}

// AddAnomaly appends a flag if absent. Returns true when the set changed.
func (t *UnifiedTransaction) AddAnomaly(flag AnomalyFlag) bool {
	if t.HasAnomaly(flag) {
		return false
	}
	flags := append(t.Anomalies(), flag)
	raw, err := json.Marshal(flags)
	if err != nil {
		return false
	}
	t.AnomalyFlags = raw
	return true
}

// UnifiedTransactionFields carries the document-derived facts of one merge
// step. Nil pointers mean "document did not mention this field".
type UnifiedTransactionFields struct {
	ProductDescription string
	Currency           string
	CommittedQuantity  *decimal.Decimal
	ReceivedQuantity   *decimal.Decimal
	ConsumedQuantity   *decimal.Decimal
	PlannedCost        *decimal.Decimal
	ActualCost         *decimal.Decimal
	PoDate             *time.Time
	ShipDate           *time.Time
	EtaDate            *time.Time
	ReceivedDate       *time.Time
}

// FieldChange records one field-level delta of a merge, for the audit trail.
type FieldChange struct {
	Field    string
	OldValue *string
	NewValue string
}

// MergeUnifiedTransactionFields applies the additive merge semantics to an
// in-memory row: incoming non-null fields overwrite, cost variance is
// recomputed, available stock is clamped at zero (flagging an anomaly), and
// disagreement on the immutable currency keeps the earlier value while
// flagging `currency_conflict`. Pure with respect to I/O so the semantics are
// independently testable; the returned changes feed the audit trail and the
// conflict (if any) is logged by the caller.
func MergeUnifiedTransactionFields(t *UnifiedTransaction, in UnifiedTransactionFields) (changes []FieldChange, conflict *utils.ConflictError) {
	setDec := func(field string, dst **decimal.Decimal, src *decimal.Decimal) {
		if src == nil {
			return
		}
		v := *src
		if v.IsNegative() {
			// costs and quantities are non-negative
			v = decimal.Zero
		}
		if *dst != nil && (*dst).Equal(v) {
			return
		}
		changes = append(changes, FieldChange{Field: field, OldValue: decString(*dst), NewValue: v.String()})
		*dst = &v
	}
	setDate := func(field string, dst **time.Time, src *time.Time) {
		if src == nil {
			return
		}
		v := src.UTC()
		if *dst != nil && (*dst).Equal(v) {
			return
		}
		changes = append(changes, FieldChange{Field: field, OldValue: timeString(*dst), NewValue: v.Format(time.RFC3339)})
		*dst = &v
	}

	if in.ProductDescription != "" && in.ProductDescription != t.ProductDescription {
		old := t.ProductDescription
		changes = append(changes, FieldChange{Field: "product_description", OldValue: strPtrOrNil(old), NewValue: in.ProductDescription})
		t.ProductDescription = in.ProductDescription
	}

	// Currency is immutable once set: disagreement keeps the earlier value and
	// flags the row instead of crashing the pipeline.
	if in.Currency != "" {
		if t.Currency == "" {
			changes = append(changes, FieldChange{Field: "currency", OldValue: nil, NewValue: in.Currency})
			t.Currency = in.Currency
		} else if t.Currency != in.Currency {
			conflict = &utils.ConflictError{Field: "currency", Kept: t.Currency, Rejected: in.Currency}
			if t.AddAnomaly(AnomalyCurrencyConflict) {
				changes = append(changes, FieldChange{Field: "anomaly_flags", OldValue: nil, NewValue: string(AnomalyCurrencyConflict)})
			}
		}
	}

	setDec("committed_quantity", &t.CommittedQuantity, in.CommittedQuantity)
	setDec("received_quantity", &t.ReceivedQuantity, in.ReceivedQuantity)
	setDec("planned_cost", &t.PlannedCost, in.PlannedCost)
	setDec("actual_cost", &t.ActualCost, in.ActualCost)
	setDate("po_date", &t.PoDate, in.PoDate)
	setDate("ship_date", &t.ShipDate, in.ShipDate)
	setDate("eta_date", &t.EtaDate, in.EtaDate)
	setDate("received_date", &t.ReceivedDate, in.ReceivedDate)

	if in.ConsumedQuantity != nil && !in.ConsumedQuantity.Equal(t.ConsumedQuantity) {
		old := t.ConsumedQuantity.String()
		changes = append(changes, FieldChange{Field: "consumed_quantity", OldValue: &old, NewValue: in.ConsumedQuantity.String()})
		t.ConsumedQuantity = *in.ConsumedQuantity
		if t.ConsumedQuantity.IsNegative() {
			t.ConsumedQuantity = decimal.Zero
		}
	}

	recomputeDerived(t)
	return changes, conflict
}

// recomputeDerived keeps the ledger invariants:
// cost_variance = actual - planned (both present),
// cost_variance_percentage null when planned_cost is 0,
// available_stock = received - consumed, floored at zero with an anomaly.
func recomputeDerived(t *UnifiedTransaction) {
	if t.PlannedCost != nil && t.ActualCost != nil {
		v := t.ActualCost.Sub(*t.PlannedCost)
		t.CostVariance = &v
		if t.PlannedCost.IsZero() {
			t.CostVariancePct = nil
		} else {
			pct := v.Div(*t.PlannedCost).Mul(decimal.NewFromInt(100))
			t.CostVariancePct = &pct
		}
	} else {
		t.CostVariance = nil
		t.CostVariancePct = nil
	}

	if t.ReceivedQuantity != nil {
		stock := t.ReceivedQuantity.Sub(t.ConsumedQuantity)
		if stock.IsNegative() {
			stock = decimal.Zero
			t.AddAnomaly(AnomalyNegativeStock)
		}
		t.AvailableStock = stock
	}
}

func decString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func timeString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func strPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// UpsertUnifiedTransaction creates or additively merges the ledger row for
// (org, sku, transaction type) inside the caller's transaction. Field-level
// changes are recorded in field_audits. The caller must hold the per-(org,
// sku) reconcile lock.
func UpsertUnifiedTransaction(ctx context.Context, tx *gorm.DB, orgId string, sku string, txnType TransactionType, fields UnifiedTransactionFields, sourceDocumentId string) (*UnifiedTransaction, error) {
	if orgId == "" {
		return nil, utils.NewAuthorizationError("org id is required")
	}
	if !txnType.IsValid() {
		return nil, utils.NewValidationError("unknown transaction type")
	}

	var txn UnifiedTransaction
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("org_id = ? AND sku = ? AND transaction_type = ?", orgId, sku, txnType).
		First(&txn).Error
	isNew := false
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
		isNew = true
		txn = UnifiedTransaction{
			ID:               uuid.NewString(),
			OrgId:            orgId,
			Sku:              sku,
			TransactionType:  txnType,
			InventoryStatus:  InventoryStatusNormal,
			ComplianceStatus: InventoryStatusNormal,
			SourceDocumentId: sourceDocumentId,
		}
	}

	changes, conflict := MergeUnifiedTransactionFields(&txn, fields)
	if conflict != nil {
		config.LogError(config.GetLogger(), "unifiedTransaction.go", "UpsertUnifiedTransaction",
			"merge conflict", map[string]string{
				"org_id": orgId, "sku": sku, "field": conflict.Field,
				"kept": conflict.Kept, "rejected": conflict.Rejected,
			}, conflict)
	}

	if isNew {
		if err := tx.WithContext(ctx).Create(&txn).Error; err != nil {
			return nil, err
		}
	} else if len(changes) > 0 {
		if err := tx.WithContext(ctx).Save(&txn).Error; err != nil {
			return nil, err
		}
	}

	var changedBy *int
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		changedBy = &userId
	}
	for _, ch := range changes {
		audit := FieldAudit{
			OrgId:            orgId,
			TransactionId:    txn.ID,
			Field:            ch.Field,
			OldValue:         ch.OldValue,
			NewValue:         ch.NewValue,
			SourceDocumentId: sourceDocumentId,
			ChangedByUserId:  changedBy,
		}
		if err := tx.WithContext(ctx).Create(&audit).Error; err != nil {
			return nil, err
		}
	}

	return &txn, nil
}

// GetUnifiedTransaction returns the ledger row or NotFoundError.
func GetUnifiedTransaction(ctx context.Context, orgId string, sku string, txnType TransactionType) (*UnifiedTransaction, error) {
	if orgId == "" {
		return nil, utils.NewAuthorizationError("org id is required")
	}
	db := config.GetDB()
	var txn UnifiedTransaction
	err := db.WithContext(ctx).
		Where("org_id = ? AND sku = ? AND transaction_type = ?", orgId, sku, txnType).
		First(&txn).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// UpdateTransactionStatus mirrors the detector verdict onto the ledger row.
func UpdateTransactionStatus(ctx context.Context, tx *gorm.DB, txnId string, status InventoryStatus, riskScore int) error {
	return tx.WithContext(ctx).Model(&UnifiedTransaction{}).
		Where("id = ?", txnId).
		Updates(map[string]interface{}{
			"inventory_status":  status,
			"compliance_status": status,
			"risk_score":        riskScore,
		}).Error
}
