package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/models"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/cargolense/tradedocs_backend/workflow"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// relink-rebuild replays the linker over stored documents, rebuilding the
// document-inventory links from scratch. Run it after changing the matching
// window or after a bad deploy left links referencing superseded documents.
func main() {
	orgID := flag.String("org-id", "", "Required: org id (uuid)")
	sku := flag.String("sku", "", "Optional: restrict rebuild to one SKU")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing SKUs and continue rebuilding others")
	flag.Parse()

	if strings.TrimSpace(*orgID) == "" {
		fmt.Fprintln(os.Stderr, "--org-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	ctx := utils.SetOrgIdInContext(context.Background(), *orgID)
	ctx = utils.SetSkipTenantScopeInContext(ctx, false)

	policy, err := models.ResolveTolerancePolicy(ctx, *orgID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve tolerance policy: %v\n", err)
		os.Exit(1)
	}

	var skus []string
	if strings.TrimSpace(*sku) != "" {
		skus = []string{strings.TrimSpace(*sku)}
	} else {
		// Discover every SKU the org has documents for.
		if err := db.WithContext(ctx).
			Model(&models.TradeDocumentSku{}).
			Where("org_id = ?", *orgID).
			Distinct("sku").
			Order("sku ASC").
			Pluck("sku", &skus).Error; err != nil {
			fmt.Fprintf(os.Stderr, "discover skus: %v\n", err)
			os.Exit(1)
		}
	}

	start := time.Now()
	rebuilt, failed := 0, 0
	for _, s := range skus {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := workflow.AcquireReconcileLock(tx, *orgID, s); err != nil {
				return err
			}
			defer workflow.ReleaseReconcileLock(tx, *orgID, s)

			// The most recent live document anchors the relink.
			docs, err := models.GetTradeDocumentsBySku(ctx, *orgID, s, nil)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return nil
			}
			latest := docs[len(docs)-1]

			link, err := workflow.RelinkSku(ctx, tx, *orgID, s, latest, policy)
			if err != nil {
				return err
			}

			verdict := workflow.EvaluateLink(link, policy, time.Now().UTC())
			link.SetReasons(verdict.Reasons)
			link.InventoryStatus = verdict.Status
			return tx.WithContext(ctx).Save(link).Error
		})
		if err != nil {
			failed++
			logger.WithFields(logrus.Fields{"org_id": *orgID, "sku": s}).Error("rebuild failed: " + err.Error())
			if !*continueOnError {
				os.Exit(1)
			}
			continue
		}
		rebuilt++
		if err := models.InvalidateSkuLinksCache(*orgID, s); err != nil {
			logger.WithFields(logrus.Fields{"org_id": *orgID, "sku": s}).Warn("link cache invalidate failed: " + err.Error())
		}
	}

	// The summary cache is stale after any rebuild.
	if err := config.RemoveRedisKey(utils.ComplianceSummaryCacheKey(*orgID)); err != nil {
		logger.WithFields(logrus.Fields{"org_id": *orgID}).Warn("cache invalidate failed: " + err.Error())
	}

	fmt.Printf("rebuilt %d skus (%d failed) in %s\n", rebuilt, failed, time.Since(start).Round(time.Millisecond))
}
