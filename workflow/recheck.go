package workflow

import (
	"context"
	"time"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/models"
	"github.com/cargolense/tradedocs_backend/utils"
	"gorm.io/gorm"
)

// RecheckResult summarizes one compliance sweep over an org.
type RecheckResult struct {
	Evaluated   int `json:"evaluated"`
	Transitions int `json:"transitions"`
}

// RecheckOrgCompliance re-evaluates every link of the org against the current
// tolerance policy. Run it after a policy change, and periodically so the
// time-based rules (late_delivery, missing_document) fire without a new
// document arriving.
func (r *Reconciler) RecheckOrgCompliance(ctx context.Context, orgId string) (*RecheckResult, error) {
	if err := models.ValidateOrganization(ctx, orgId); err != nil {
		return nil, err
	}
	policy, err := models.ResolveTolerancePolicy(ctx, orgId)
	if err != nil {
		return nil, err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	var result RecheckResult
	var touchedSkus []string
	err = r.DB.Transaction(func(tx *gorm.DB) error {
		var links []*models.DocumentInventoryLink
		if err := tx.WithContext(ctx).
			Where("org_id = ?", orgId).
			Order("sku ASC, created_at ASC").
			Find(&links).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, link := range links {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err := AcquireReconcileLock(tx, orgId, link.Sku); err != nil {
				return err
			}

			oldStatus := link.InventoryStatus
			verdict := EvaluateLink(link, policy, now)
			reasonsChanged := link.SetReasons(verdict.Reasons)
			statusChanged := verdict.Status != oldStatus
			link.InventoryStatus = verdict.Status
			result.Evaluated++

			if statusChanged || reasonsChanged {
				if err := tx.WithContext(ctx).Save(link).Error; err != nil {
					ReleaseReconcileLock(tx, orgId, link.Sku)
					return err
				}
				touchedSkus = append(touchedSkus, link.Sku)
			}
			if statusChanged {
				result.Transitions++
				if err := models.EnqueueComplianceEvent(tx, link, oldStatus, "", correlationId); err != nil {
					ReleaseReconcileLock(tx, orgId, link.Sku)
					return err
				}
			}
			ReleaseReconcileLock(tx, orgId, link.Sku)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Transitions > 0 {
		if err := config.RemoveRedisKey(utils.ComplianceSummaryCacheKey(orgId)); err != nil {
			config.LogError(r.Logger, "recheck.go", "RecheckOrgCompliance", "cache invalidate", orgId, err)
		}
	}
	for _, sku := range touchedSkus {
		if err := models.InvalidateSkuLinksCache(orgId, sku); err != nil {
			config.LogError(r.Logger, "recheck.go", "RecheckOrgCompliance", "link cache invalidate", sku, err)
		}
	}
	return &result, nil
}
