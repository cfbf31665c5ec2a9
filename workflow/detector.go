package workflow

import (
	"time"

	"github.com/cargolense/tradedocs_backend/models"
	"github.com/shopspring/decimal"
)

// DetectionResult is one fresh evaluation of a link: the overall status and
// every triggered reason in evaluation order.
type DetectionResult struct {
	Status  models.InventoryStatus
	Reasons []models.CompromiseReason

	severities []models.InventoryStatus
}

// RiskScore weights the triggered reasons into a bounded 0-100 score: 60 per
// compromised reason, 20 per at-risk reason.
func (r DetectionResult) RiskScore() int {
	score := 0
	for _, severity := range r.severities {
		if severity == models.InventoryStatusCompromised {
			score += 60
		} else {
			score += 20
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// EvaluateLink re-derives the link's status from scratch. Transitions are not
// sticky: a later document that resolves a discrepancy moves the link back
// toward normal. Rules that lack an input (nil quantity, no ETA) simply do
// not trigger; absence is handled by the missing_po / missing_document rules,
// never treated as zero.
//
// Pure over (link, policy, now) so the rule table is testable without a
// database.
func EvaluateLink(link *models.DocumentInventoryLink, policy models.TolerancePolicy, now time.Time) DetectionResult {
	result := DetectionResult{Status: models.InventoryStatusNormal}

	trigger := func(reason models.CompromiseReason, severity models.InventoryStatus) {
		result.Reasons = append(result.Reasons, reason)
		result.severities = append(result.severities, severity)
		result.Status = models.MaxInventoryStatus(result.Status, severity)
	}

	// Quantity mismatch: |po - shipped| / po, strictly above tolerance.
	// Exactly at the ratio does not trigger.
	if link.PoQuantity != nil && link.ShippedQuantity != nil && link.PoQuantity.IsPositive() {
		ratio := varianceRatio(*link.PoQuantity, *link.ShippedQuantity)
		if ratio.GreaterThan(policy.QuantityCompromisedRatio) {
			trigger(models.ReasonQuantityVariance, models.InventoryStatusCompromised)
		} else if ratio.GreaterThan(policy.QuantityAtRiskRatio) {
			trigger(models.ReasonQuantityVariance, models.InventoryStatusAtRisk)
		}
	}

	// Unit-cost mismatch between PO and invoice.
	if link.PoUnitCost != nil && link.InvoiceUnitCost != nil && link.PoUnitCost.IsPositive() {
		ratio := varianceRatio(*link.PoUnitCost, *link.InvoiceUnitCost)
		if ratio.GreaterThan(policy.CostVarianceRatio) {
			trigger(models.ReasonCostVariance, models.InventoryStatusAtRisk)
		}
	}

	// Received shortfall against what the carrier says left the dock.
	if link.ReceivedQuantity != nil && link.ShippedQuantity != nil {
		floor := link.ShippedQuantity.Mul(policy.ReceiptShortfallRatio)
		if link.ReceivedQuantity.LessThan(floor) {
			trigger(models.ReasonShipmentShortfall, models.InventoryStatusCompromised)
		}
	}

	// Timeline breach past the ETA grace period.
	if link.ReceivedDate != nil && link.EtaDate != nil {
		deadline := link.EtaDate.AddDate(0, 0, policy.LateDeliveryGraceDays)
		if link.ReceivedDate.After(deadline) {
			trigger(models.ReasonLateDelivery, models.InventoryStatusAtRisk)
		}
	}

	// A link without a PO is reconciled partially rather than rejected, but it
	// is flagged immediately.
	if link.PoDocumentId == nil {
		trigger(models.ReasonMissingPo, models.InventoryStatusAtRisk)
	}

	// Invoice or BOL still absent long after the shipment's anchor date.
	if link.InvoiceDocumentId == nil || link.BolDocumentId == nil {
		anchor := linkAnchorDate(link)
		if !anchor.IsZero() && now.Sub(anchor) > time.Duration(policy.MissingDocumentDays)*24*time.Hour {
			trigger(models.ReasonMissingDocument, models.InventoryStatusAtRisk)
		}
	}

	return result
}

// linkAnchorDate is the earliest business date the link knows about, used as
// the clock origin for the missing-counterpart rule.
func linkAnchorDate(link *models.DocumentInventoryLink) time.Time {
	var anchor time.Time
	for _, d := range []*time.Time{link.PoDate, link.ShipDate, link.ReceivedDate} {
		if d == nil {
			continue
		}
		if anchor.IsZero() || d.Before(anchor) {
			anchor = *d
		}
	}
	if anchor.IsZero() {
		anchor = link.CreatedAt
	}
	return anchor
}

// varianceRatio is the relative deviation of other from base. Base must be
// positive.
func varianceRatio(base, other decimal.Decimal) decimal.Decimal {
	return base.Sub(other).Abs().Div(base)
}
