package workflow

import (
	"context"
	"time"

	"github.com/cargolense/tradedocs_backend/models"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// candidateDoc pairs a document with its decoded line for the SKU under
// reconciliation, so selection never re-parses JSON.
type candidateDoc struct {
	Doc    *models.TradeDocument
	Fields *models.ExtractedFields
	Line   *models.ExtractedLineItem
}

// loadCandidates reads the live documents of one type mentioning the SKU
// inside the reconcile transaction. Parse failures are skipped, not fatal:
// one malformed payload must not block reconciliation of the rest.
func loadCandidates(ctx context.Context, tx *gorm.DB, orgId string, sku string, docType models.DocumentType) ([]candidateDoc, error) {
	var docs []*models.TradeDocument
	err := tx.WithContext(ctx).
		Joins("JOIN trade_document_skus ON trade_document_skus.document_id = trade_documents.id").
		Where("trade_documents.org_id = ?", orgId).
		Where("trade_document_skus.org_id = ?", orgId).
		Where("trade_document_skus.sku = ?", sku).
		Where("trade_documents.document_type = ?", docType).
		Where("trade_documents.superseded_by IS NULL").
		Order("trade_documents.extracted_at ASC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]candidateDoc, 0, len(docs))
	for _, d := range docs {
		fields, err := d.Fields()
		if err != nil {
			continue
		}
		line := fields.LineFor(sku)
		if line == nil {
			continue
		}
		candidates = append(candidates, candidateDoc{Doc: d, Fields: fields, Line: line})
	}
	return candidates, nil
}

// withinWindow checks the candidate's business date against the matching
// window anchored at the PO date. With no anchor every candidate qualifies;
// partial reconciliation beats dropping data.
func withinWindow(candidate candidateDoc, anchor *time.Time, windowDays int) bool {
	if anchor == nil {
		return true
	}
	d := candidate.Doc.DocumentDate()
	if d.Before(*anchor) {
		return false
	}
	return !d.After(anchor.AddDate(0, 0, windowDays))
}

// selectCandidate picks the candidate whose declared quantity for the SKU is
// closest to the target quantity, tie-broken by most recent extraction time.
// Nil target quantity degrades to "most recent within window".
func selectCandidate(candidates []candidateDoc, targetQty *decimal.Decimal, anchor *time.Time, windowDays int) *candidateDoc {
	var best *candidateDoc
	var bestDist decimal.Decimal
	for i := range candidates {
		c := &candidates[i]
		if !withinWindow(*c, anchor, windowDays) {
			continue
		}
		if targetQty == nil {
			if best == nil || c.Doc.ExtractedAt.After(best.Doc.ExtractedAt) {
				best = c
			}
			continue
		}
		dist := c.Line.Quantity.Sub(*targetQty).Abs()
		switch {
		case best == nil:
			best, bestDist = c, dist
		case dist.LessThan(bestDist):
			best, bestDist = c, dist
		case dist.Equal(bestDist) && c.Doc.ExtractedAt.After(best.Doc.ExtractedAt):
			best = c
		}
	}
	return best
}

// RelinkSku rebuilds the document trio for one SKU after a new document
// arrived, then upserts the corresponding link row. The caller must hold the
// per-(org, SKU) reconcile lock and run inside a transaction.
//
// Anchoring: the PO, when one exists, anchors the matching window; invoice
// and BOL candidates are measured against the PO line's quantity. Without a
// PO the incoming document's own quantity is the target and the link is
// created with a null PO reference.
func RelinkSku(ctx context.Context, tx *gorm.DB, orgId string, sku string, incoming *models.TradeDocument, policy models.TolerancePolicy) (*models.DocumentInventoryLink, error) {
	incomingFields, err := incoming.Fields()
	if err != nil {
		return nil, utils.NewValidationError("document payload is not decodable")
	}
	incomingLine := incomingFields.LineFor(sku)
	if incomingLine == nil {
		return nil, utils.NewValidationError("document has no line for sku")
	}

	pos, err := loadCandidates(ctx, tx, orgId, sku, models.DocumentTypePurchaseOrder)
	if err != nil {
		return nil, err
	}

	// The PO is selected first: closest quantity to the incoming document.
	po := selectCandidate(pos, &incomingLine.Quantity, nil, policy.MatchingWindowDays)

	var anchor *time.Time
	var targetQty *decimal.Decimal
	if po != nil {
		if po.Fields.PoDate != nil {
			anchor = po.Fields.PoDate
		} else {
			d := po.Doc.DocumentDate()
			anchor = &d
		}
		targetQty = &po.Line.Quantity
	} else {
		targetQty = &incomingLine.Quantity
	}

	invoices, err := loadCandidates(ctx, tx, orgId, sku, models.DocumentTypeCommercialInvoice)
	if err != nil {
		return nil, err
	}
	bols, err := loadCandidates(ctx, tx, orgId, sku, models.DocumentTypeBillOfLading)
	if err != nil {
		return nil, err
	}
	invoice := selectCandidate(invoices, targetQty, anchor, policy.MatchingWindowDays)
	bol := selectCandidate(bols, targetQty, anchor, policy.MatchingWindowDays)

	if po == nil && invoice == nil && bol == nil {
		return nil, utils.NewValidationError("no documents found for sku")
	}

	link, err := findOrCreateLink(ctx, tx, orgId, sku, po, invoice, bol)
	if err != nil {
		return nil, err
	}
	applyTrioToLink(link, po, invoice, bol)
	if !link.HasDocumentReference() {
		return nil, utils.NewValidationError("link must reference at least one document")
	}

	if err := tx.WithContext(ctx).Save(link).Error; err != nil {
		return nil, err
	}
	return link, nil
}

// findOrCreateLink reuses the existing link row for the trio, so the link
// evolves in place as counterpart documents arrive instead of multiplying.
// A link already referencing any document of the trio wins; failing that, the
// oldest link whose populated slots the trio fills again. The fallback covers
// rebuilt trios that share no document id with the stored link, e.g. after a
// re-extraction replaced every document the link pointed at.
func findOrCreateLink(ctx context.Context, tx *gorm.DB, orgId string, sku string, po, invoice, bol *candidateDoc) (*models.DocumentInventoryLink, error) {
	ids := make(map[string]bool, 3)
	for _, c := range []*candidateDoc{po, invoice, bol} {
		if c != nil {
			ids[c.Doc.ID] = true
		}
	}

	var existing []*models.DocumentInventoryLink
	err := tx.WithContext(ctx).
		Where("org_id = ? AND sku = ?", orgId, sku).
		Order("created_at ASC").
		Find(&existing).Error
	if err != nil {
		return nil, err
	}
	for _, l := range existing {
		if linkReferencesAny(l, ids) {
			return l, nil
		}
	}
	for _, l := range existing {
		if trioReplacesLink(l, po, invoice, bol) {
			return l, nil
		}
	}

	return &models.DocumentInventoryLink{
		ID:              uuid.NewString(),
		OrgId:           orgId,
		Sku:             sku,
		InventoryStatus: models.InventoryStatusNormal,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

func linkReferencesAny(link *models.DocumentInventoryLink, ids map[string]bool) bool {
	for _, ref := range []*string{link.PoDocumentId, link.InvoiceDocumentId, link.BolDocumentId} {
		if ref != nil && ids[*ref] {
			return true
		}
	}
	return false
}

// trioReplacesLink reports whether the trio supplies a document for every
// slot the link has populated, i.e. saving the trio onto the link leaves no
// stale reference behind.
func trioReplacesLink(link *models.DocumentInventoryLink, po, invoice, bol *candidateDoc) bool {
	if link.PoDocumentId != nil && po == nil {
		return false
	}
	if link.InvoiceDocumentId != nil && invoice == nil {
		return false
	}
	if link.BolDocumentId != nil && bol == nil {
		return false
	}
	return true
}

// applyTrioToLink projects the selected documents onto the link columns. A
// slot whose document is absent stays null; the detector reads null as
// "unknown", never as zero.
func applyTrioToLink(link *models.DocumentInventoryLink, po, invoice, bol *candidateDoc) {
	if po != nil {
		link.PoDocumentId = &po.Doc.ID
		qty := po.Line.Quantity
		link.PoQuantity = &qty
		if po.Line.UnitCost != nil {
			cost := *po.Line.UnitCost
			link.PoUnitCost = &cost
		}
		link.PoDate = po.Fields.PoDate
		if link.ProductDescription == "" {
			link.ProductDescription = po.Line.Description
		}
	}

	if invoice != nil {
		link.InvoiceDocumentId = &invoice.Doc.ID
		if invoice.Line.UnitCost != nil {
			cost := *invoice.Line.UnitCost
			link.InvoiceUnitCost = &cost
		}
		if invoice.Line.LandedUnitCost != nil {
			landed := *invoice.Line.LandedUnitCost
			// Landed cost includes freight and duty, so it can never be below
			// the bare invoice unit cost.
			if link.InvoiceUnitCost != nil && landed.LessThan(*link.InvoiceUnitCost) {
				landed = *link.InvoiceUnitCost
			}
			link.LandedCost = &landed
		}
		if link.ProductDescription == "" {
			link.ProductDescription = invoice.Line.Description
		}
	}

	if bol != nil {
		link.BolDocumentId = &bol.Doc.ID
		qty := bol.Line.Quantity
		link.ShippedQuantity = &qty
		if bol.Line.ReceivedQuantity != nil {
			recv := *bol.Line.ReceivedQuantity
			link.ReceivedQuantity = &recv
		}
		link.ShipDate = bol.Fields.ShipDate
		link.EtaDate = bol.Fields.EtaDate
		link.ReceivedDate = bol.Fields.ReceivedDate
		if link.ProductDescription == "" {
			link.ProductDescription = bol.Line.Description
		}
	}

	if link.ReceivedQuantity != nil {
		avail := *link.ReceivedQuantity
		if avail.IsNegative() {
			avail = decimal.Zero
		}
		link.AvailableInventory = &avail
	}
}
