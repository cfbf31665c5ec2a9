package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/shopspring/decimal"
)

// DocumentInventoryLink is the reconciliation unit: the PO, invoice and BOL
// believed to describe the same physical shipment of one SKU, plus the
// detector's verdict. A link exists only when at least one document reference
// is non-null; a document may appear in multiple links when it covers
// multiple SKUs.
type DocumentInventoryLink struct {
	ID    string `gorm:"type:char(36);primary_key" json:"id"`
	OrgId string `gorm:"type:char(36);index:idx_link_org_sku;not null" json:"org_id"`
	Sku   string `gorm:"size:100;index:idx_link_org_sku;not null" json:"sku"`

	PoDocumentId      *string `gorm:"type:char(36);default:null" json:"po_document_id"`
	InvoiceDocumentId *string `gorm:"type:char(36);default:null" json:"invoice_document_id"`
	BolDocumentId     *string `gorm:"type:char(36);default:null" json:"bol_document_id"`

	ProductDescription string `gorm:"size:255" json:"product_description"`

	PoQuantity         *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"po_quantity"`
	ShippedQuantity    *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"shipped_quantity"`
	ReceivedQuantity   *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"received_quantity"`
	AvailableInventory *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"available_inventory"`

	PoUnitCost      *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"po_unit_cost"`
	InvoiceUnitCost *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"invoice_unit_cost"`
	LandedCost      *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"landed_cost"`

	InventoryStatus   InventoryStatus `gorm:"type:enum('normal','at_risk','compromised');default:'normal'" json:"inventory_status"`
	CompromiseReasons json.RawMessage `gorm:"type:json" json:"compromise_reasons"`

	PoDate       *time.Time `gorm:"default:null" json:"po_date"`
	ShipDate     *time.Time `gorm:"default:null" json:"ship_date"`
	EtaDate      *time.Time `gorm:"default:null" json:"eta_date"`
	ReceivedDate *time.Time `gorm:"default:null" json:"received_date"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Reasons decodes the ordered compromise reason list.
func (l *DocumentInventoryLink) Reasons() []CompromiseReason {
	if len(l.CompromiseReasons) == 0 {
		return nil
	}
	var reasons []CompromiseReason
	if err := json.Unmarshal(l.CompromiseReasons, &reasons); err != nil {
		return nil
	}
	return reasons
}

// SetReasons stores the ordered reason list. Returns true when it differs
// from what was stored (used to decide whether a compliance event fires).
func (l *DocumentInventoryLink) SetReasons(reasons []CompromiseReason) bool {
	old := l.Reasons()
	if equalReasons(old, reasons) {
		return false
	}
	if len(reasons) == 0 {
		l.CompromiseReasons = nil
		return true
	}
	raw, err := json.Marshal(reasons)
	if err != nil {
		return false
	}
	l.CompromiseReasons = raw
	return true
}

func equalReasons(a, b []CompromiseReason) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// HasDocumentReference enforces the link existence invariant.
func (l *DocumentInventoryLink) HasDocumentReference() bool {
	return l.PoDocumentId != nil || l.InvoiceDocumentId != nil || l.BolDocumentId != nil
}

// ReferencesDocument reports whether the link already points at the document.
func (l *DocumentInventoryLink) ReferencesDocument(docId string) bool {
	for _, ref := range []*string{l.PoDocumentId, l.InvoiceDocumentId, l.BolDocumentId} {
		if ref != nil && *ref == docId {
			return true
		}
	}
	return false
}

// ComplianceSummary is the dashboard rollup of link statuses for one org.
type ComplianceSummary struct {
	Normal      int `json:"normal"`
	AtRisk      int `json:"atRisk"`
	Compromised int `json:"compromised"`
}

// GetLinksForSku returns every reconciliation link of the SKU in the org.
// Cached per (org, sku); every write path to the SKU invalidates via
// InvalidateSkuLinksCache.
func GetLinksForSku(ctx context.Context, orgId string, sku string) ([]*DocumentInventoryLink, error) {
	if orgId == "" {
		return nil, utils.NewAuthorizationError("org id is required")
	}

	if cached, err := utils.RetrieveRedisList[DocumentInventoryLink](orgId + ":" + sku); err == nil && cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var links []*DocumentInventoryLink
	err := db.WithContext(ctx).
		Where("org_id = ? AND sku = ?", orgId, sku).
		Order("created_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}

	if len(links) > 0 {
		if err := utils.StoreRedisList[DocumentInventoryLink](links, orgId+":"+sku); err != nil {
			config.LogError(config.GetLogger(), "documentInventoryLink.go", "GetLinksForSku", "cache write", orgId, err)
		}
	}
	return links, nil
}

// InvalidateSkuLinksCache drops the cached link list after any write touching
// the SKU's links.
func InvalidateSkuLinksCache(orgId string, sku string) error {
	return utils.RemoveRedisList[DocumentInventoryLink](orgId + ":" + sku)
}

// GetComplianceSummary counts links per status, with a short-lived Redis
// cache in front (invalidated by the ingest pipeline on status change).
func GetComplianceSummary(ctx context.Context, orgId string) (*ComplianceSummary, error) {
	if orgId == "" {
		return nil, utils.NewAuthorizationError("org id is required")
	}

	cacheKey := utils.ComplianceSummaryCacheKey(orgId)
	var cached ComplianceSummary
	if exists, err := config.GetRedisObject(cacheKey, &cached); err == nil && exists {
		return &cached, nil
	}

	db := config.GetDB()
	type statusCount struct {
		InventoryStatus InventoryStatus
		Total           int
	}
	var rows []statusCount
	err := db.WithContext(ctx).Model(&DocumentInventoryLink{}).
		Select("inventory_status, count(*) as total").
		Where("org_id = ?", orgId).
		Group("inventory_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var summary ComplianceSummary
	for _, r := range rows {
		switch r.InventoryStatus {
		case InventoryStatusNormal:
			summary.Normal = r.Total
		case InventoryStatusAtRisk:
			summary.AtRisk = r.Total
		case InventoryStatusCompromised:
			summary.Compromised = r.Total
		}
	}

	if err := config.SetRedisObject(cacheKey, &summary, 5*time.Minute); err != nil {
		config.LogError(config.GetLogger(), "documentInventoryLink.go", "GetComplianceSummary", "cache write", orgId, err)
	}
	return &summary, nil
}
