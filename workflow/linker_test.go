package workflow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cargolense/tradedocs_backend/models"
	"github.com/shopspring/decimal"
)

func makeCandidate(id string, qty string, extractedAt time.Time, docDate time.Time) candidateDoc {
	fields := models.ExtractedFields{
		PoDate: &docDate,
		LineItems: []models.ExtractedLineItem{
			{Sku: "ABC-100", Quantity: dec(qty)},
		},
	}
	raw, _ := json.Marshal(&fields)
	doc := &models.TradeDocument{
		ID:              id,
		OrgId:           "org-1",
		DocumentType:    models.DocumentTypePurchaseOrder,
		ExtractedFields: raw,
		ExtractedAt:     extractedAt,
	}
	f, _ := doc.Fields()
	return candidateDoc{Doc: doc, Fields: f, Line: f.LineFor("ABC-100")}
}

func TestSelectCandidate_ClosestQuantityWins(t *testing.T) {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	candidates := []candidateDoc{
		makeCandidate("far", "500", base, base),
		makeCandidate("close", "980", base.Add(time.Hour), base),
		makeCandidate("closer", "1005", base.Add(2*time.Hour), base),
	}

	target := dec("1000")
	best := selectCandidate(candidates, &target, nil, 180)
	if best == nil || best.Doc.ID != "closer" {
		t.Fatalf("expected 'closer' to win, got %+v", best)
	}
}

func TestSelectCandidate_TieBreaksOnExtractionTime(t *testing.T) {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	candidates := []candidateDoc{
		makeCandidate("older", "990", base, base),
		makeCandidate("newer", "1010", base.Add(time.Hour), base),
	}

	// Both are 10 off the target; the more recently extracted one wins.
	target := dec("1000")
	best := selectCandidate(candidates, &target, nil, 180)
	if best == nil || best.Doc.ID != "newer" {
		t.Fatalf("expected 'newer' to win the tie, got %+v", best)
	}
}

func TestSelectCandidate_MatchingWindowExcludes(t *testing.T) {
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := []candidateDoc{
		makeCandidate("before-window", "1000", anchor, anchor.AddDate(0, 0, -1)),
		makeCandidate("in-window", "900", anchor.Add(time.Hour), anchor.AddDate(0, 0, 30)),
		makeCandidate("after-window", "1000", anchor.Add(2*time.Hour), anchor.AddDate(0, 0, 181)),
	}

	target := dec("1000")
	best := selectCandidate(candidates, &target, &anchor, 180)
	if best == nil || best.Doc.ID != "in-window" {
		t.Fatalf("expected only 'in-window' to qualify, got %+v", best)
	}

	// No anchor: every candidate qualifies, closest quantity wins.
	best = selectCandidate(candidates, &target, nil, 180)
	if best == nil || best.Doc.ID != "after-window" {
		t.Fatalf("without anchor expected 'after-window' (tie-break by recency among exact matches), got %+v", best)
	}
}

func TestSelectCandidate_NilTargetPicksMostRecent(t *testing.T) {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	candidates := []candidateDoc{
		makeCandidate("old", "100", base, base),
		makeCandidate("new", "100", base.Add(time.Hour), base),
	}
	best := selectCandidate(candidates, nil, nil, 180)
	if best == nil || best.Doc.ID != "new" {
		t.Fatalf("expected most recent candidate, got %+v", best)
	}
}

func TestLinkReferencesAny_MatchesAnySlot(t *testing.T) {
	link := &models.DocumentInventoryLink{
		PoDocumentId:  strPtr("po-1"),
		BolDocumentId: strPtr("bol-1"),
	}
	if !linkReferencesAny(link, map[string]bool{"bol-1": true}) {
		t.Fatal("expected match on the BOL slot")
	}
	if linkReferencesAny(link, map[string]bool{"po-2": true, "bol-2": true}) {
		t.Fatal("unrelated document ids must not match")
	}
}

func TestTrioReplacesLink_CoversPopulatedSlots(t *testing.T) {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	bol := makeCandidate("bol-new", "950", base, base)

	// A BOL-only link is replaced by a trio carrying a BOL, even when the
	// document ids differ (the stored BOL may have been superseded).
	link := &models.DocumentInventoryLink{BolDocumentId: strPtr("bol-old")}
	if !trioReplacesLink(link, nil, nil, &bol) {
		t.Fatal("trio with a BOL must replace a BOL-only link")
	}

	// A trio that would leave the PO slot pointing at a document it did not
	// select must not claim the link.
	withPo := &models.DocumentInventoryLink{
		PoDocumentId:  strPtr("po-old"),
		BolDocumentId: strPtr("bol-old"),
	}
	if trioReplacesLink(withPo, nil, nil, &bol) {
		t.Fatal("trio without a PO must not replace a link holding a PO reference")
	}

	po := makeCandidate("po-new", "1000", base, base)
	if !trioReplacesLink(withPo, &po, nil, &bol) {
		t.Fatal("trio filling every populated slot must replace the link")
	}
}

func TestApplyTrioToLink_NullSlotsStayNull(t *testing.T) {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	po := makeCandidate("doc-po", "1000", base, base)

	link := &models.DocumentInventoryLink{ID: "l", OrgId: "org-1", Sku: "ABC-100"}
	applyTrioToLink(link, &po, nil, nil)

	if link.PoDocumentId == nil || *link.PoDocumentId != "doc-po" {
		t.Fatalf("expected PO reference, got %+v", link.PoDocumentId)
	}
	if link.InvoiceDocumentId != nil || link.BolDocumentId != nil {
		t.Fatal("absent documents must leave their slots null")
	}
	if link.ShippedQuantity != nil || link.ReceivedQuantity != nil {
		t.Fatal("quantities from absent documents must stay null, not zero")
	}
	if link.PoQuantity == nil || !link.PoQuantity.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected PO quantity 1000, got %+v", link.PoQuantity)
	}
}

func TestApplyTrioToLink_LandedCostFloor(t *testing.T) {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	unit := dec("5.75")
	landed := dec("5.10") // below unit cost, must be floored up
	fields := models.ExtractedFields{
		InvoiceDate: &base,
		LineItems: []models.ExtractedLineItem{
			{Sku: "ABC-100", Quantity: dec("1000"), UnitCost: &unit, LandedUnitCost: &landed},
		},
	}
	raw, _ := json.Marshal(&fields)
	doc := &models.TradeDocument{
		ID:              "doc-inv",
		OrgId:           "org-1",
		DocumentType:    models.DocumentTypeCommercialInvoice,
		ExtractedFields: raw,
		ExtractedAt:     base,
	}
	f, _ := doc.Fields()
	invoice := candidateDoc{Doc: doc, Fields: f, Line: f.LineFor("ABC-100")}

	link := &models.DocumentInventoryLink{ID: "l", OrgId: "org-1", Sku: "ABC-100"}
	applyTrioToLink(link, nil, &invoice, nil)

	if link.LandedCost == nil || !link.LandedCost.Equal(unit) {
		t.Fatalf("expected landed cost floored to %s, got %+v", unit, link.LandedCost)
	}
}
