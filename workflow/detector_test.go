package workflow

import (
	"testing"
	"time"

	"github.com/cargolense/tradedocs_backend/models"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func strPtr(s string) *string {
	return &s
}

var detectNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Fully-documented shipment: PO 1000 @ $5.00, invoice @ $5.75, BOL shipped
// 950 received 900. Quantity variance is exactly 5% (boundary, does not
// trigger), cost variance is 15% (at risk), received 900 < 950*0.95 = 902.5
// (compromised shortfall).
func fullTrioLink() *models.DocumentInventoryLink {
	return &models.DocumentInventoryLink{
		ID:                "link-1",
		OrgId:             "org-1",
		Sku:               "ABC-100",
		PoDocumentId:      strPtr("doc-po"),
		InvoiceDocumentId: strPtr("doc-inv"),
		BolDocumentId:     strPtr("doc-bol"),
		PoQuantity:        decPtr("1000"),
		ShippedQuantity:   decPtr("950"),
		ReceivedQuantity:  decPtr("900"),
		PoUnitCost:        decPtr("5.00"),
		InvoiceUnitCost:   decPtr("5.75"),
		PoDate:            timePtr(detectNow.AddDate(0, 0, -30)),
		EtaDate:           timePtr(detectNow.AddDate(0, 0, -5)),
		ReceivedDate:      timePtr(detectNow.AddDate(0, 0, -3)),
		CreatedAt:         detectNow.AddDate(0, 0, -30),
	}
}

func TestEvaluateLink_WorkedExample(t *testing.T) {
	link := fullTrioLink()
	result := EvaluateLink(link, models.DefaultTolerancePolicy(), detectNow)

	if result.Status != models.InventoryStatusCompromised {
		t.Fatalf("expected compromised, got %s", result.Status)
	}
	want := []models.CompromiseReason{models.ReasonCostVariance, models.ReasonShipmentShortfall}
	if len(result.Reasons) != len(want) {
		t.Fatalf("expected reasons %v, got %v", want, result.Reasons)
	}
	for i := range want {
		if result.Reasons[i] != want[i] {
			t.Fatalf("reason[%d]: expected %s, got %s", i, want[i], result.Reasons[i])
		}
	}
}

func TestEvaluateLink_QuantityBoundaryIsStrict(t *testing.T) {
	// PO 1000 vs shipped 950 is exactly 5%; strictly-greater must not trigger.
	link := fullTrioLink()
	link.InvoiceUnitCost = decPtr("5.00")
	link.ReceivedQuantity = decPtr("950")
	result := EvaluateLink(link, models.DefaultTolerancePolicy(), detectNow)

	for _, r := range result.Reasons {
		if r == models.ReasonQuantityVariance {
			t.Fatalf("quantity_variance must not trigger at exactly 5%%, got %v", result.Reasons)
		}
	}
	if result.Status != models.InventoryStatusNormal {
		t.Fatalf("expected normal, got %s (%v)", result.Status, result.Reasons)
	}
}

func TestEvaluateLink_QuantityVarianceSeverities(t *testing.T) {
	policy := models.DefaultTolerancePolicy()

	// 6% off: at risk.
	link := fullTrioLink()
	link.ShippedQuantity = decPtr("940")
	link.ReceivedQuantity = decPtr("940")
	link.InvoiceUnitCost = decPtr("5.00")
	result := EvaluateLink(link, policy, detectNow)
	if result.Status != models.InventoryStatusAtRisk {
		t.Fatalf("6%% variance: expected at_risk, got %s", result.Status)
	}

	// 25% off: compromised.
	link.ShippedQuantity = decPtr("750")
	link.ReceivedQuantity = decPtr("750")
	result = EvaluateLink(link, policy, detectNow)
	if result.Status != models.InventoryStatusCompromised {
		t.Fatalf("25%% variance: expected compromised, got %s", result.Status)
	}
	if result.Reasons[0] != models.ReasonQuantityVariance {
		t.Fatalf("expected quantity_variance first, got %v", result.Reasons)
	}
}

func TestEvaluateLink_MissingPoIsAtRisk(t *testing.T) {
	// Only a BOL exists: partial link, flagged immediately.
	link := &models.DocumentInventoryLink{
		ID:               "link-2",
		OrgId:            "org-1",
		Sku:              "XYZ-1",
		BolDocumentId:    strPtr("doc-bol"),
		ShippedQuantity:  decPtr("100"),
		ReceivedQuantity: decPtr("100"),
		ShipDate:         timePtr(detectNow.AddDate(0, 0, -2)),
		CreatedAt:        detectNow.AddDate(0, 0, -2),
	}
	result := EvaluateLink(link, models.DefaultTolerancePolicy(), detectNow)

	if result.Status != models.InventoryStatusAtRisk {
		t.Fatalf("expected at_risk, got %s", result.Status)
	}
	if len(result.Reasons) != 1 || result.Reasons[0] != models.ReasonMissingPo {
		t.Fatalf("expected [missing_po], got %v", result.Reasons)
	}
}

func TestEvaluateLink_MissingCounterpartAfterWindow(t *testing.T) {
	// PO only, 90 days old: missing_document fires past the 60-day window.
	link := &models.DocumentInventoryLink{
		ID:           "link-3",
		OrgId:        "org-1",
		Sku:          "ABC-100",
		PoDocumentId: strPtr("doc-po"),
		PoQuantity:   decPtr("100"),
		PoUnitCost:   decPtr("2.50"),
		PoDate:       timePtr(detectNow.AddDate(0, 0, -90)),
		CreatedAt:    detectNow.AddDate(0, 0, -90),
	}
	result := EvaluateLink(link, models.DefaultTolerancePolicy(), detectNow)

	if result.Status != models.InventoryStatusAtRisk {
		t.Fatalf("expected at_risk, got %s", result.Status)
	}
	if len(result.Reasons) != 1 || result.Reasons[0] != models.ReasonMissingDocument {
		t.Fatalf("expected [missing_document], got %v", result.Reasons)
	}

	// Same link 10 days after the PO date: window not elapsed, still normal.
	result = EvaluateLink(link, models.DefaultTolerancePolicy(), link.PoDate.AddDate(0, 0, 10))
	if result.Status != models.InventoryStatusNormal {
		t.Fatalf("within window: expected normal, got %s (%v)", result.Status, result.Reasons)
	}
}

func TestEvaluateLink_LateDelivery(t *testing.T) {
	link := fullTrioLink()
	link.InvoiceUnitCost = decPtr("5.00")
	link.ReceivedQuantity = decPtr("950")
	link.EtaDate = timePtr(detectNow.AddDate(0, 0, -30))
	link.ReceivedDate = timePtr(detectNow.AddDate(0, 0, -3)) // 27 days late

	result := EvaluateLink(link, models.DefaultTolerancePolicy(), detectNow)
	if result.Status != models.InventoryStatusAtRisk {
		t.Fatalf("expected at_risk, got %s", result.Status)
	}
	if len(result.Reasons) != 1 || result.Reasons[0] != models.ReasonLateDelivery {
		t.Fatalf("expected [late_delivery], got %v", result.Reasons)
	}

	// Inside the 14-day grace period nothing fires.
	link.ReceivedDate = timePtr(link.EtaDate.AddDate(0, 0, 14))
	result = EvaluateLink(link, models.DefaultTolerancePolicy(), detectNow)
	if result.Status != models.InventoryStatusNormal {
		t.Fatalf("within grace: expected normal, got %s (%v)", result.Status, result.Reasons)
	}
}

func TestEvaluateLink_StatusRecovers(t *testing.T) {
	// Not sticky: a corrected BOL that closes the shortfall returns the link
	// to normal on the next evaluation.
	link := fullTrioLink()
	link.InvoiceUnitCost = decPtr("5.00")

	result := EvaluateLink(link, models.DefaultTolerancePolicy(), detectNow)
	if result.Status != models.InventoryStatusCompromised {
		t.Fatalf("setup: expected compromised, got %s", result.Status)
	}

	link.ReceivedQuantity = decPtr("950")
	result = EvaluateLink(link, models.DefaultTolerancePolicy(), detectNow)
	if result.Status != models.InventoryStatusNormal {
		t.Fatalf("after correction: expected normal, got %s (%v)", result.Status, result.Reasons)
	}
	if len(result.Reasons) != 0 {
		t.Fatalf("after correction: expected no reasons, got %v", result.Reasons)
	}
}

func TestEvaluateLink_MissingInputsDoNotTrigger(t *testing.T) {
	// Nil quantities and costs are "unknown", never zero: none of the numeric
	// rules may fire on a document that omitted the field.
	link := &models.DocumentInventoryLink{
		ID:           "link-4",
		OrgId:        "org-1",
		Sku:          "ABC-100",
		PoDocumentId: strPtr("doc-po"),
		PoQuantity:   decPtr("100"),
		CreatedAt:    detectNow,
	}
	result := EvaluateLink(link, models.DefaultTolerancePolicy(), detectNow)
	for _, r := range result.Reasons {
		switch r {
		case models.ReasonQuantityVariance, models.ReasonCostVariance, models.ReasonShipmentShortfall, models.ReasonLateDelivery:
			t.Fatalf("numeric rule %s fired without inputs", r)
		}
	}
}

func TestRiskScore(t *testing.T) {
	policy := models.DefaultTolerancePolicy()

	// Worked example: cost_variance (at risk, 20) + shortfall (compromised, 60).
	link := fullTrioLink()
	result := EvaluateLink(link, policy, detectNow)
	if got := result.RiskScore(); got != 80 {
		t.Fatalf("expected risk score 80, got %d", got)
	}

	// Clean link scores zero.
	link.InvoiceUnitCost = decPtr("5.00")
	link.ReceivedQuantity = decPtr("950")
	result = EvaluateLink(link, policy, detectNow)
	if got := result.RiskScore(); got != 0 {
		t.Fatalf("expected risk score 0, got %d", got)
	}
}

func TestEvaluateLink_Deterministic(t *testing.T) {
	link := fullTrioLink()
	policy := models.DefaultTolerancePolicy()
	first := EvaluateLink(link, policy, detectNow)
	for i := 0; i < 50; i++ {
		again := EvaluateLink(link, policy, detectNow)
		if again.Status != first.Status || len(again.Reasons) != len(first.Reasons) {
			t.Fatalf("run %d diverged: %v vs %v", i, again, first)
		}
		for j := range first.Reasons {
			if again.Reasons[j] != first.Reasons[j] {
				t.Fatalf("run %d reason order diverged: %v vs %v", i, again.Reasons, first.Reasons)
			}
		}
	}
}
