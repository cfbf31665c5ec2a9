package workflow

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/models"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const ingestHandlerName = "ingestDocument"

// Reconciler runs the ingest pipeline: store the document, relink every SKU
// it mentions, re-evaluate compliance, and queue events for transitions.
// Dependencies are injected explicitly so tests can assemble one against a
// scratch database.
type Reconciler struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewReconciler(db *gorm.DB, logger *logrus.Logger) *Reconciler {
	return &Reconciler{DB: db, Logger: logger}
}

// IngestResult is what one accepted document changed.
type IngestResult struct {
	Document *models.TradeDocument
	Links    []*models.DocumentInventoryLink
	// StatusChanged is true when at least one link transitioned, meaning a
	// ComplianceChanged event was queued.
	StatusChanged bool
}

// IngestDocument is the single inbound write path. messageId is the delivery
// id used for idempotent retries: a redelivery of an already succeeded message
// returns without re-linking. When the transport supplies none, the document's
// content fingerprint stands in, so calling twice with identical inputs still
// produces exactly one link per SKU.
//
// Processing per SKU is serialized via a per-(org, SKU) advisory lock, so two
// documents for the same SKU arriving concurrently produce the same final
// state as either order of sequential arrival.
func (r *Reconciler) IngestDocument(ctx context.Context, input *models.NewTradeDocument, messageId string) (*IngestResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if messageId == "" {
		messageId = input.Fingerprint()
	}

	// The org claim on the request must match the document's declared org.
	// Cross-tenant ingestion is an authorization failure, not a validation one.
	if config.StrictIngestOrgMatch() {
		ctxOrg, ok := utils.GetOrgIdFromContext(ctx)
		if !ok || ctxOrg != input.OrgId {
			return nil, utils.NewAuthorizationError("document org does not match authenticated org")
		}
	}
	if err := models.ValidateOrganization(ctx, input.OrgId); err != nil {
		return nil, err
	}

	policy, err := models.ResolveTolerancePolicy(ctx, input.OrgId)
	if err != nil {
		return nil, err
	}

	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	var result IngestResult
	err = r.DB.Transaction(func(tx *gorm.DB) error {
		skip, err := BeginIdempotency(tx, input.OrgId, ingestHandlerName, messageId)
		if err != nil {
			return err
		}
		if skip {
			return nil
		}

		doc, err := models.PutTradeDocument(ctx, tx, input)
		if err != nil {
			return err
		}
		result.Document = doc

		for _, sku := range input.Fields.Skus() {
			// A cancelled request must not start another SKU's section.
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			link, changed, err := r.reconcileSku(ctx, tx, doc, sku, policy, correlationId)
			if err != nil {
				return err
			}
			result.Links = append(result.Links, link)
			if changed {
				result.StatusChanged = true
			}
		}

		return MarkIdempotencySucceeded(tx, input.OrgId, ingestHandlerName, messageId)
	})
	if err != nil {
		if err != ErrIdempotencyInProgress {
			_ = MarkIdempotencyFailed(r.DB, input.OrgId, ingestHandlerName, messageId, err)
		}
		return nil, err
	}

	r.afterCommit(ctx, &result, input.OrgId)
	return &result, nil
}

// reconcileSku runs one SKU through the serialized section: advisory lock,
// ledger merge, relink, detect. Returns the link and whether its compliance
// verdict changed.
func (r *Reconciler) reconcileSku(ctx context.Context, tx *gorm.DB, doc *models.TradeDocument, sku string, policy models.TolerancePolicy, correlationId string) (*models.DocumentInventoryLink, bool, error) {
	// Best-effort distributed lock keeps other instances out of the section
	// early; the MySQL advisory lock below is the correctness guarantee.
	if locker := config.GetRedisLock(); locker != nil {
		redisLock, err := locker.Obtain(ctx, "reconcile:"+doc.OrgId+":"+sku, 30*time.Second, nil)
		if err == nil {
			defer redisLock.Release(context.WithoutCancel(ctx))
		} else if err != redislock.ErrNotObtained {
			config.LogError(r.Logger, "ingest.go", "reconcileSku", "redis lock", sku, err)
		}
	}

	if err := AcquireReconcileLock(tx, doc.OrgId, sku); err != nil {
		return nil, false, err
	}
	defer ReleaseReconcileLock(tx, doc.OrgId, sku)

	if err := r.mergeLedger(ctx, tx, doc, sku); err != nil {
		return nil, false, err
	}

	link, err := RelinkSku(ctx, tx, doc.OrgId, sku, doc, policy)
	if err != nil {
		return nil, false, err
	}

	oldStatus := link.InventoryStatus
	verdict := EvaluateLink(link, policy, time.Now().UTC())
	reasonsChanged := link.SetReasons(verdict.Reasons)
	statusChanged := verdict.Status != oldStatus
	link.InventoryStatus = verdict.Status
	if statusChanged || reasonsChanged {
		if err := tx.WithContext(ctx).Save(link).Error; err != nil {
			return nil, false, err
		}
	}

	// Mirror the verdict onto the ledger row so dashboards reading the ledger
	// agree with the link view. The row always exists here; mergeLedger just
	// upserted it.
	txn, err := r.ledgerRow(ctx, tx, doc.OrgId, sku)
	if err != nil {
		return nil, false, err
	}
	if err := models.UpdateTransactionStatus(ctx, tx, txn.ID, verdict.Status, verdict.RiskScore()); err != nil {
		return nil, false, err
	}

	if statusChanged {
		if err := models.EnqueueComplianceEvent(tx, link, oldStatus, doc.ID, correlationId); err != nil {
			return nil, false, err
		}
	}
	return link, statusChanged, nil
}

// mergeLedger folds the document's line facts for one SKU into the unified
// transaction row. Which fields a document contributes follows its type.
func (r *Reconciler) mergeLedger(ctx context.Context, tx *gorm.DB, doc *models.TradeDocument, sku string) error {
	fields, err := doc.Fields()
	if err != nil {
		return utils.NewValidationError("document payload is not decodable")
	}
	line := fields.LineFor(sku)
	if line == nil {
		return utils.NewValidationError("document has no line for sku")
	}

	in := models.UnifiedTransactionFields{
		ProductDescription: line.Description,
		Currency:           fields.Currency,
	}
	switch doc.DocumentType {
	case models.DocumentTypePurchaseOrder:
		qty := line.Quantity
		in.CommittedQuantity = &qty
		in.PlannedCost = line.UnitCost
		in.PoDate = fields.PoDate
	case models.DocumentTypeCommercialInvoice:
		in.ActualCost = line.UnitCost
	case models.DocumentTypeBillOfLading:
		in.ReceivedQuantity = line.ReceivedQuantity
		in.ShipDate = fields.ShipDate
		in.EtaDate = fields.EtaDate
		in.ReceivedDate = fields.ReceivedDate
	}

	_, err = models.UpsertUnifiedTransaction(ctx, tx, doc.OrgId, sku, models.TransactionTypePurchase, in, doc.ID)
	return err
}

func (r *Reconciler) ledgerRow(ctx context.Context, tx *gorm.DB, orgId string, sku string) (*models.UnifiedTransaction, error) {
	var txn models.UnifiedTransaction
	err := tx.WithContext(ctx).
		Where("org_id = ? AND sku = ? AND transaction_type = ?", orgId, sku, models.TransactionTypePurchase).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// afterCommit handles the best-effort side effects that must not be able to
// roll back the ingest: cache invalidation and raw payload archival.
func (r *Reconciler) afterCommit(ctx context.Context, result *IngestResult, orgId string) {
	if result.StatusChanged {
		if err := config.RemoveRedisKey(utils.ComplianceSummaryCacheKey(orgId)); err != nil {
			config.LogError(r.Logger, "ingest.go", "afterCommit", "cache invalidate", orgId, err)
		}
	}

	// Link quantities or costs may have changed even without a status
	// transition, so the per-SKU link cache drops unconditionally.
	for _, link := range result.Links {
		if err := models.InvalidateSkuLinksCache(orgId, link.Sku); err != nil {
			config.LogError(r.Logger, "ingest.go", "afterCommit", "link cache invalidate", link.Sku, err)
		}
	}

	if result.Document != nil && config.ArchiveRawPayloads() {
		if err := utils.ArchiveRawPayloadToGCS(ctx, orgId, result.Document.ID, result.Document.ExtractedFields); err != nil {
			config.LogError(r.Logger, "ingest.go", "afterCommit", "gcs archive", result.Document.ID, err)
		}
	}
}
