package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeDocument is one extracted document version. Rows are immutable once
// extraction completes: corrections create a new version that supersedes the
// old row, never a mutation.
type TradeDocument struct {
	ID              string          `gorm:"type:char(36);primary_key" json:"id"`
	OrgId           string          `gorm:"type:char(36);index;not null" json:"org_id"`
	DocumentType    DocumentType    `gorm:"type:enum('purchase_order','commercial_invoice','bill_of_lading');not null" json:"document_type"`
	ExtractedFields json.RawMessage `gorm:"type:json;not null" json:"extracted_fields"`
	Confidence      decimal.Decimal `gorm:"type:decimal(5,4);not null" json:"confidence"`
	ExtractedAt     time.Time       `gorm:"index;not null" json:"extracted_at"`
	SupersededBy    *string         `gorm:"type:char(36);default:null" json:"superseded_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TradeDocumentSku is the (org_id, sku) secondary index for documents: one row
// per SKU a document's line items mention. Written inside the same transaction
// as the document row.
type TradeDocumentSku struct {
	ID         int    `gorm:"primary_key" json:"id"`
	DocumentId string `gorm:"type:char(36);index;not null" json:"document_id"`
	OrgId      string `gorm:"type:char(36);index:idx_doc_sku_org_sku;not null" json:"org_id"`
	Sku        string `gorm:"size:100;index:idx_doc_sku_org_sku;not null" json:"sku"`
}

// ExtractedLineItem is one SKU-bearing line of a document. Which numeric
// fields are present depends on the document type: a PO line carries ordered
// quantity and unit cost, an invoice line billed quantity, unit cost and
// landed unit cost, a BOL line shipped and received quantity.
type ExtractedLineItem struct {
	Sku              string           `json:"sku"`
	Description      string           `json:"description"`
	Quantity         decimal.Decimal  `json:"quantity"`
	UnitCost         *decimal.Decimal `json:"unit_cost,omitempty"`
	LandedUnitCost   *decimal.Decimal `json:"landed_unit_cost,omitempty"`
	ReceivedQuantity *decimal.Decimal `json:"received_quantity,omitempty"`
}

// ExtractedFields is the typed view of a document's extraction payload.
type ExtractedFields struct {
	Currency     string              `json:"currency,omitempty"`
	PoDate       *time.Time          `json:"po_date,omitempty"`
	InvoiceDate  *time.Time          `json:"invoice_date,omitempty"`
	ShipDate     *time.Time          `json:"ship_date,omitempty"`
	EtaDate      *time.Time          `json:"eta_date,omitempty"`
	ReceivedDate *time.Time          `json:"received_date,omitempty"`
	LineItems    []ExtractedLineItem `json:"line_items"`
}

// Skus returns the distinct SKUs mentioned by the document, in line order.
func (f *ExtractedFields) Skus() []string {
	seen := make(map[string]bool, len(f.LineItems))
	var skus []string
	for _, li := range f.LineItems {
		sku := strings.TrimSpace(li.Sku)
		if sku == "" || seen[sku] {
			continue
		}
		seen[sku] = true
		skus = append(skus, sku)
	}
	return skus
}

// LineFor returns the first line item for a SKU, nil when absent.
func (f *ExtractedFields) LineFor(sku string) *ExtractedLineItem {
	for i := range f.LineItems {
		if strings.TrimSpace(f.LineItems[i].Sku) == sku {
			return &f.LineItems[i]
		}
	}
	return nil
}

// DocumentDate is the business date a document describes: order date for a
// PO, invoice date for an invoice, ship date for a BOL. Used by the linker's
// matching window. Falls back to the extraction time.
func (d *TradeDocument) DocumentDate() time.Time {
	f, err := d.Fields()
	if err != nil {
		return d.ExtractedAt
	}
	switch d.DocumentType {
	case DocumentTypePurchaseOrder:
		if f.PoDate != nil {
			return *f.PoDate
		}
	case DocumentTypeCommercialInvoice:
		if f.InvoiceDate != nil {
			return *f.InvoiceDate
		}
	case DocumentTypeBillOfLading:
		if f.ShipDate != nil {
			return *f.ShipDate
		}
	}
	return d.ExtractedAt
}

func (d *TradeDocument) Fields() (*ExtractedFields, error) {
	var f ExtractedFields
	if err := json.Unmarshal(d.ExtractedFields, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

type NewTradeDocument struct {
	OrgId        string          `json:"org_id"`
	DocumentType DocumentType    `json:"document_type"`
	Fields       ExtractedFields `json:"fields"`
	Confidence   decimal.Decimal `json:"confidence"`
	ExtractedAt  *time.Time      `json:"extracted_at"`
	// SupersedesId marks this document as a correction of a prior version.
	SupersedesId string `json:"supersedes_id"`
}

// Fingerprint derives a stable delivery id from the document content. Ingest
// falls back to it when the transport supplies no message id, so redelivering
// an identical payload is absorbed by the idempotency table instead of
// minting a second document version and a sibling link.
func (input *NewTradeDocument) Fingerprint() string {
	h := sha256.New()
	sep := []byte{0}
	h.Write([]byte(input.OrgId))
	h.Write(sep)
	h.Write([]byte(input.DocumentType))
	h.Write(sep)
	h.Write([]byte(input.Confidence.String()))
	h.Write(sep)
	if input.ExtractedAt != nil {
		h.Write([]byte(input.ExtractedAt.UTC().Format(time.RFC3339Nano)))
	}
	h.Write(sep)
	h.Write([]byte(input.SupersedesId))
	h.Write(sep)
	if raw, err := json.Marshal(&input.Fields); err == nil {
		h.Write(raw)
	}
	return "doc-" + hex.EncodeToString(h.Sum(nil))
}

// Validate applies the document-store admission rules.
func (input *NewTradeDocument) Validate() error {
	if strings.TrimSpace(input.OrgId) == "" {
		return utils.NewValidationError("org id is required")
	}
	if !input.DocumentType.IsValid() {
		return utils.NewValidationError("unknown document type")
	}
	if input.Confidence.IsNegative() || input.Confidence.GreaterThan(decimal.NewFromInt(1)) {
		return utils.NewValidationError("confidence must be within [0,1]")
	}
	if len(input.Fields.Skus()) == 0 {
		return utils.NewValidationError("document has no SKU-bearing line item")
	}
	return nil
}

// PutTradeDocument stores a document version plus its SKU index rows inside
// the given transaction. When SupersedesId is set the prior version is marked
// superseded (kept, never deleted).
func PutTradeDocument(ctx context.Context, tx *gorm.DB, input *NewTradeDocument) (*TradeDocument, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(&input.Fields)
	if err != nil {
		return nil, err
	}

	extractedAt := time.Now().UTC()
	if input.ExtractedAt != nil {
		extractedAt = input.ExtractedAt.UTC()
	}

	doc := TradeDocument{
		ID:              uuid.NewString(),
		OrgId:           input.OrgId,
		DocumentType:    input.DocumentType,
		ExtractedFields: raw,
		Confidence:      input.Confidence,
		ExtractedAt:     extractedAt,
	}
	if err := tx.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, err
	}

	for _, sku := range input.Fields.Skus() {
		row := TradeDocumentSku{
			DocumentId: doc.ID,
			OrgId:      doc.OrgId,
			Sku:        sku,
		}
		if err := tx.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, err
		}
	}

	if input.SupersedesId != "" {
		res := tx.WithContext(ctx).Model(&TradeDocument{}).
			Where("id = ? AND org_id = ?", input.SupersedesId, input.OrgId).
			Update("superseded_by", doc.ID)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, utils.ErrorRecordNotFound
		}
	}

	return &doc, nil
}

// GetTradeDocumentsBySku returns the live (non-superseded) documents of the
// given types mentioning the SKU, ordered by extraction time ascending so the
// linker can establish chronological causality PO -> invoice -> BOL. The
// result is finite and the query restartable.
func GetTradeDocumentsBySku(ctx context.Context, orgId string, sku string, documentTypes []DocumentType) ([]*TradeDocument, error) {
	if orgId == "" {
		return nil, utils.NewAuthorizationError("org id is required")
	}
	if len(documentTypes) == 0 {
		documentTypes = AllDocumentTypes()
	}

	db := config.GetDB()
	var docs []*TradeDocument
	err := db.WithContext(ctx).
		Joins("JOIN trade_document_skus ON trade_document_skus.document_id = trade_documents.id").
		Where("trade_documents.org_id = ?", orgId).
		Where("trade_document_skus.org_id = ?", orgId).
		Where("trade_document_skus.sku = ?", sku).
		Where("trade_documents.document_type IN ?", documentTypes).
		Where("trade_documents.superseded_by IS NULL").
		Order("trade_documents.extracted_at ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// GetTradeDocument fetches one document scoped to the org.
func GetTradeDocument(ctx context.Context, orgId string, id string) (*TradeDocument, error) {
	return utils.FetchModel[TradeDocument](ctx, orgId, id)
}

// GetAllTradeDocuments returns every stored document version of the org,
// superseded rows included (the audit view needs the full history).
func GetAllTradeDocuments(ctx context.Context, orgId string) ([]*TradeDocument, error) {
	if orgId == "" {
		return nil, utils.NewAuthorizationError("org id is required")
	}
	return utils.FetchAllModels[TradeDocument](ctx, orgId)
}
