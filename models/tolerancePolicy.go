package models

import (
	"context"
	"time"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/shopspring/decimal"
)

// TolerancePolicy holds the reconciliation thresholds for one org. The code
// defaults match the documented tolerances; a per-org row overrides them so
// tenants can be tuned without a deploy.
type TolerancePolicy struct {
	ID    int    `gorm:"primary_key" json:"id"`
	OrgId string `gorm:"type:char(36);uniqueIndex;not null" json:"org_id"`

	// Quantity variance |po - shipped| / po ratios.
	QuantityAtRiskRatio      decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"quantity_at_risk_ratio"`
	QuantityCompromisedRatio decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"quantity_compromised_ratio"`

	// Received-shortfall floor: received < shipped * ratio is compromised.
	ReceiptShortfallRatio decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"receipt_shortfall_ratio"`

	// Unit-cost variance |po - invoice| / po ratio.
	CostVarianceRatio decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"cost_variance_ratio"`

	LateDeliveryGraceDays int `gorm:"not null" json:"late_delivery_grace_days"`
	MissingDocumentDays   int `gorm:"not null" json:"missing_document_days"`
	MatchingWindowDays    int `gorm:"not null" json:"matching_window_days"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// DefaultTolerancePolicy returns the stock thresholds: 5%/20% quantity, 95%
// receipt floor, 10% cost, 14 days late grace, 60 days missing counterpart,
// 180 days matching window.
func DefaultTolerancePolicy() TolerancePolicy {
	return TolerancePolicy{
		QuantityAtRiskRatio:      decimal.NewFromFloat(0.05),
		QuantityCompromisedRatio: decimal.NewFromFloat(0.20),
		ReceiptShortfallRatio:    decimal.NewFromFloat(0.95),
		CostVarianceRatio:        decimal.NewFromFloat(0.10),
		LateDeliveryGraceDays:    14,
		MissingDocumentDays:      60,
		MatchingWindowDays:       180,
	}
}

// ResolveTolerancePolicy returns the org's policy, falling back to defaults
// when no override row exists. Redis-cached; cache degrades to DB when Redis
// is absent.
func ResolveTolerancePolicy(ctx context.Context, orgId string) (TolerancePolicy, error) {
	if orgId == "" {
		return TolerancePolicy{}, utils.NewAuthorizationError("org id is required")
	}

	if cached, err := utils.RetrieveRedis[TolerancePolicy](orgId); err == nil && cached != nil {
		return *cached, nil
	}

	db := config.GetDB()
	var policy TolerancePolicy
	err := db.WithContext(ctx).Where("org_id = ?", orgId).First(&policy).Error
	if err != nil {
		policy = DefaultTolerancePolicy()
		policy.OrgId = orgId
	}

	if err := utils.StoreRedis[TolerancePolicy](&policy, orgId); err != nil {
		config.LogError(config.GetLogger(), "tolerancePolicy.go", "ResolveTolerancePolicy", "cache write", orgId, err)
	}
	return policy, nil
}

type NewTolerancePolicy struct {
	QuantityAtRiskRatio      decimal.Decimal `json:"quantity_at_risk_ratio"`
	QuantityCompromisedRatio decimal.Decimal `json:"quantity_compromised_ratio"`
	ReceiptShortfallRatio    decimal.Decimal `json:"receipt_shortfall_ratio"`
	CostVarianceRatio        decimal.Decimal `json:"cost_variance_ratio"`
	LateDeliveryGraceDays    int             `json:"late_delivery_grace_days"`
	MissingDocumentDays      int             `json:"missing_document_days"`
	MatchingWindowDays       int             `json:"matching_window_days"`
}

func (input *NewTolerancePolicy) Validate() error {
	one := decimal.NewFromInt(1)
	for _, r := range []decimal.Decimal{
		input.QuantityAtRiskRatio, input.QuantityCompromisedRatio,
		input.ReceiptShortfallRatio, input.CostVarianceRatio,
	} {
		if r.IsNegative() || r.GreaterThan(one) {
			return utils.NewValidationError("tolerance ratios must be within [0,1]")
		}
	}
	if input.QuantityAtRiskRatio.GreaterThan(input.QuantityCompromisedRatio) {
		return utils.NewValidationError("at-risk ratio must not exceed compromised ratio")
	}
	if input.LateDeliveryGraceDays < 0 || input.MissingDocumentDays < 0 || input.MatchingWindowDays <= 0 {
		return utils.NewValidationError("day thresholds must be positive")
	}
	return nil
}

// UpsertTolerancePolicy writes the per-org override and invalidates the
// cache. Existing links are not re-evaluated here; run the compliance recheck
// for that.
func UpsertTolerancePolicy(ctx context.Context, orgId string, input *NewTolerancePolicy) (*TolerancePolicy, error) {
	if orgId == "" {
		return nil, utils.NewAuthorizationError("org id is required")
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var policy TolerancePolicy
	err := db.WithContext(ctx).Where("org_id = ?", orgId).First(&policy).Error
	if err != nil {
		policy = TolerancePolicy{OrgId: orgId}
	}
	policy.QuantityAtRiskRatio = input.QuantityAtRiskRatio
	policy.QuantityCompromisedRatio = input.QuantityCompromisedRatio
	policy.ReceiptShortfallRatio = input.ReceiptShortfallRatio
	policy.CostVarianceRatio = input.CostVarianceRatio
	policy.LateDeliveryGraceDays = input.LateDeliveryGraceDays
	policy.MissingDocumentDays = input.MissingDocumentDays
	policy.MatchingWindowDays = input.MatchingWindowDays

	if err := db.WithContext(ctx).Save(&policy).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[TolerancePolicy](orgId); err != nil {
		config.LogError(config.GetLogger(), "tolerancePolicy.go", "UpsertTolerancePolicy", "cache invalidate", orgId, err)
	}
	return &policy, nil
}
