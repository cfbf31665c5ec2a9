package models

import (
	"testing"
	"time"

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

func TestMerge_NonNullOverwritesNullPreserves(t *testing.T) {
	txn := &UnifiedTransaction{
		OrgId:           "org-1",
		Sku:             "ABC-100",
		TransactionType: TransactionTypePurchase,
	}

	// PO arrives first.
	changes, conflict := MergeUnifiedTransactionFields(txn, UnifiedTransactionFields{
		Currency:          "USD",
		CommittedQuantity: decPtr("1000"),
		PlannedCost:       decPtr("5.00"),
	})
	if conflict != nil {
		t.Fatalf("unexpected conflict: %v", conflict)
	}
	if len(changes) == 0 {
		t.Fatal("expected field changes on first merge")
	}

	// Invoice arrives: actual cost only. Committed quantity must survive.
	_, conflict = MergeUnifiedTransactionFields(txn, UnifiedTransactionFields{
		Currency:   "USD",
		ActualCost: decPtr("5.75"),
	})
	if conflict != nil {
		t.Fatalf("unexpected conflict: %v", conflict)
	}
	if txn.CommittedQuantity == nil || !txn.CommittedQuantity.Equal(dec("1000")) {
		t.Fatalf("committed quantity lost: %+v", txn.CommittedQuantity)
	}
	if txn.CostVariance == nil || !txn.CostVariance.Equal(dec("0.75")) {
		t.Fatalf("expected cost variance 0.75, got %+v", txn.CostVariance)
	}
	if txn.CostVariancePct == nil || !txn.CostVariancePct.Equal(dec("15")) {
		t.Fatalf("expected cost variance pct 15, got %+v", txn.CostVariancePct)
	}
}

func TestMerge_VariancePctUndefinedAtZeroPlannedCost(t *testing.T) {
	txn := &UnifiedTransaction{OrgId: "org-1", Sku: "FREE-1", TransactionType: TransactionTypePurchase}

	_, _ = MergeUnifiedTransactionFields(txn, UnifiedTransactionFields{
		PlannedCost: decPtr("0"),
		ActualCost:  decPtr("3.00"),
	})
	if txn.CostVariance == nil || !txn.CostVariance.Equal(dec("3.00")) {
		t.Fatalf("expected variance 3.00, got %+v", txn.CostVariance)
	}
	if txn.CostVariancePct != nil {
		t.Fatalf("variance pct must be null at zero planned cost, got %s", txn.CostVariancePct)
	}
}

func TestMerge_AvailableStockClampedWithAnomaly(t *testing.T) {
	txn := &UnifiedTransaction{OrgId: "org-1", Sku: "ABC-100", TransactionType: TransactionTypePurchase}

	_, _ = MergeUnifiedTransactionFields(txn, UnifiedTransactionFields{
		ReceivedQuantity: decPtr("100"),
		ConsumedQuantity: decPtr("150"),
	})
	if !txn.AvailableStock.IsZero() {
		t.Fatalf("expected stock floored at zero, got %s", txn.AvailableStock)
	}
	if !txn.HasAnomaly(AnomalyNegativeStock) {
		t.Fatal("expected negative_stock anomaly flag")
	}
}

func TestMerge_CurrencyImmutableKeepsEarlier(t *testing.T) {
	txn := &UnifiedTransaction{OrgId: "org-1", Sku: "ABC-100", TransactionType: TransactionTypePurchase}

	_, conflict := MergeUnifiedTransactionFields(txn, UnifiedTransactionFields{Currency: "USD"})
	if conflict != nil {
		t.Fatalf("first currency write must not conflict: %v", conflict)
	}

	_, conflict = MergeUnifiedTransactionFields(txn, UnifiedTransactionFields{Currency: "EUR"})
	if conflict == nil {
		t.Fatal("expected a currency conflict")
	}
	if conflict.Kept != "USD" || conflict.Rejected != "EUR" {
		t.Fatalf("expected kept=USD rejected=EUR, got %+v", conflict)
	}
	if txn.Currency != "USD" {
		t.Fatalf("currency mutated to %s", txn.Currency)
	}
	if !txn.HasAnomaly(AnomalyCurrencyConflict) {
		t.Fatal("expected currency_conflict anomaly flag")
	}
}

func TestMerge_NegativeInputsTreatedAsZero(t *testing.T) {
	txn := &UnifiedTransaction{OrgId: "org-1", Sku: "ABC-100", TransactionType: TransactionTypePurchase}

	_, _ = MergeUnifiedTransactionFields(txn, UnifiedTransactionFields{
		CommittedQuantity: decPtr("-50"),
		PlannedCost:       decPtr("-1.25"),
	})
	if txn.CommittedQuantity == nil || !txn.CommittedQuantity.IsZero() {
		t.Fatalf("negative quantity must clamp to zero, got %+v", txn.CommittedQuantity)
	}
	if txn.PlannedCost == nil || !txn.PlannedCost.IsZero() {
		t.Fatalf("negative cost must clamp to zero, got %+v", txn.PlannedCost)
	}
}

func TestMerge_ChangesFeedAuditTrail(t *testing.T) {
	txn := &UnifiedTransaction{OrgId: "org-1", Sku: "ABC-100", TransactionType: TransactionTypePurchase}

	changes, _ := MergeUnifiedTransactionFields(txn, UnifiedTransactionFields{
		Currency:          "USD",
		CommittedQuantity: decPtr("1000"),
	})

	byField := map[string]FieldChange{}
	for _, ch := range changes {
		byField[ch.Field] = ch
	}
	cq, ok := byField["committed_quantity"]
	if !ok {
		t.Fatalf("expected committed_quantity change, got %v", changes)
	}
	if cq.OldValue != nil || cq.NewValue != "1000" {
		t.Fatalf("expected old=nil new=1000, got %+v", cq)
	}

	// Re-merging identical values records nothing.
	changes, _ = MergeUnifiedTransactionFields(txn, UnifiedTransactionFields{
		Currency:          "USD",
		CommittedQuantity: decPtr("1000"),
	})
	if len(changes) != 0 {
		t.Fatalf("idempotent merge must record no changes, got %v", changes)
	}
}

func TestMerge_DatesNormalizedToUTC(t *testing.T) {
	txn := &UnifiedTransaction{OrgId: "org-1", Sku: "ABC-100", TransactionType: TransactionTypePurchase}

	loc := time.FixedZone("UTC+7", 7*3600)
	local := time.Date(2026, 2, 1, 7, 0, 0, 0, loc)
	_, _ = MergeUnifiedTransactionFields(txn, UnifiedTransactionFields{PoDate: &local})

	if txn.PoDate == nil || txn.PoDate.Location() != time.UTC {
		t.Fatalf("expected UTC-normalized date, got %+v", txn.PoDate)
	}
	if !txn.PoDate.Equal(local) {
		t.Fatalf("instant changed during normalization: %s vs %s", txn.PoDate, local)
	}
}
