package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cargolense/tradedocs_backend/utils"
)

func TestExtractedFields_SkusDeduplicated(t *testing.T) {
	f := ExtractedFields{
		LineItems: []ExtractedLineItem{
			{Sku: "ABC-100", Quantity: dec("10")},
			{Sku: "  XYZ-1 ", Quantity: dec("5")},
			{Sku: "ABC-100", Quantity: dec("3")},
			{Sku: "", Quantity: dec("1")},
		},
	}
	skus := f.Skus()
	if len(skus) != 2 || skus[0] != "ABC-100" || skus[1] != "XYZ-1" {
		t.Fatalf("expected [ABC-100 XYZ-1], got %v", skus)
	}
}

func TestNewTradeDocument_Validate(t *testing.T) {
	valid := func() *NewTradeDocument {
		return &NewTradeDocument{
			OrgId:        "org-1",
			DocumentType: DocumentTypePurchaseOrder,
			Confidence:   dec("0.92"),
			Fields: ExtractedFields{
				LineItems: []ExtractedLineItem{{Sku: "ABC-100", Quantity: dec("10")}},
			},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	in := valid()
	in.OrgId = " "
	if err := in.Validate(); !utils.IsValidationError(err) {
		t.Fatalf("missing org: expected ValidationError, got %v", err)
	}

	in = valid()
	in.DocumentType = "receipt"
	if err := in.Validate(); !utils.IsValidationError(err) {
		t.Fatalf("unknown type: expected ValidationError, got %v", err)
	}

	in = valid()
	in.Confidence = dec("1.01")
	if err := in.Validate(); !utils.IsValidationError(err) {
		t.Fatalf("confidence > 1: expected ValidationError, got %v", err)
	}

	in = valid()
	in.Fields.LineItems = nil
	if err := in.Validate(); !utils.IsValidationError(err) {
		t.Fatalf("no SKUs: expected ValidationError, got %v", err)
	}
}

func TestNewTradeDocument_FingerprintStableForIdenticalInput(t *testing.T) {
	cost := dec("5.00")
	mk := func() *NewTradeDocument {
		return &NewTradeDocument{
			OrgId:        "org-1",
			DocumentType: DocumentTypeBillOfLading,
			Confidence:   dec("0.92"),
			Fields: ExtractedFields{
				Currency: "USD",
				LineItems: []ExtractedLineItem{
					{Sku: "ABC-100", Quantity: dec("950"), UnitCost: &cost},
				},
			},
		}
	}

	// Identical inputs share one delivery id, so a redelivery without a
	// message id lands on the same idempotency row as the first delivery.
	if mk().Fingerprint() != mk().Fingerprint() {
		t.Fatal("identical inputs must produce the same fingerprint")
	}

	changed := mk()
	changed.Fields.LineItems[0].Quantity = dec("900")
	if changed.Fingerprint() == mk().Fingerprint() {
		t.Fatal("different line quantity must change the fingerprint")
	}

	otherOrg := mk()
	otherOrg.OrgId = "org-2"
	if otherOrg.Fingerprint() == mk().Fingerprint() {
		t.Fatal("same payload in another org must change the fingerprint")
	}

	stamped := mk()
	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	stamped.ExtractedAt = &at
	if stamped.Fingerprint() == mk().Fingerprint() {
		t.Fatal("explicit extraction time must change the fingerprint")
	}
}

func TestDocumentDate_PerType(t *testing.T) {
	poDate := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	shipDate := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	extracted := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mk := func(dt DocumentType, f ExtractedFields) *TradeDocument {
		raw, err := json.Marshal(&f)
		if err != nil {
			t.Fatal(err)
		}
		return &TradeDocument{DocumentType: dt, ExtractedFields: raw, ExtractedAt: extracted}
	}

	doc := mk(DocumentTypePurchaseOrder, ExtractedFields{PoDate: &poDate})
	if !doc.DocumentDate().Equal(poDate) {
		t.Fatalf("PO: expected po_date, got %s", doc.DocumentDate())
	}

	doc = mk(DocumentTypeBillOfLading, ExtractedFields{ShipDate: &shipDate})
	if !doc.DocumentDate().Equal(shipDate) {
		t.Fatalf("BOL: expected ship_date, got %s", doc.DocumentDate())
	}

	// Missing business date falls back to extraction time.
	doc = mk(DocumentTypeCommercialInvoice, ExtractedFields{})
	if !doc.DocumentDate().Equal(extracted) {
		t.Fatalf("fallback: expected extracted_at, got %s", doc.DocumentDate())
	}
}

func TestLinkSetReasons_DetectsChange(t *testing.T) {
	link := &DocumentInventoryLink{ID: "l", OrgId: "org-1", Sku: "ABC-100"}

	if !link.SetReasons([]CompromiseReason{ReasonCostVariance}) {
		t.Fatal("first write must report a change")
	}
	if link.SetReasons([]CompromiseReason{ReasonCostVariance}) {
		t.Fatal("identical reasons must not report a change")
	}
	if !link.SetReasons([]CompromiseReason{ReasonCostVariance, ReasonShipmentShortfall}) {
		t.Fatal("added reason must report a change")
	}
	got := link.Reasons()
	if len(got) != 2 || got[0] != ReasonCostVariance || got[1] != ReasonShipmentShortfall {
		t.Fatalf("reason order not preserved: %v", got)
	}
	if !link.SetReasons(nil) {
		t.Fatal("clearing reasons must report a change")
	}
	if link.Reasons() != nil {
		t.Fatalf("expected no reasons, got %v", link.Reasons())
	}
}
