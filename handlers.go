package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/models"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/cargolense/tradedocs_backend/workflow"
	"github.com/gin-gonic/gin"
)

// httpStatusFor maps the reconciliation error taxonomy to transport codes.
func httpStatusFor(err error) int {
	switch {
	case utils.IsValidationError(err):
		return http.StatusBadRequest
	case utils.IsAuthorizationError(err):
		return http.StatusForbidden
	case utils.IsNotFoundError(err):
		return http.StatusNotFound
	case utils.IsConflictError(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(httpStatusFor(err), gin.H{"error": err.Error()})
}

type ingestDocumentRequest struct {
	OrgId        string                 `json:"org_id"`
	DocumentType models.DocumentType    `json:"document_type"`
	Fields       models.ExtractedFields `json:"fields"`
	Confidence   json.Number            `json:"confidence"`
	ExtractedAt  *time.Time             `json:"extracted_at"`
	SupersedesId string                 `json:"supersedes_id"`
	// MessageId is the extraction pipeline's delivery id; retried deliveries
	// reuse it so ingestion stays idempotent.
	MessageId string `json:"message_id"`
}

func ingestDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "ingestDocument")
		defer span.End()

		var req ingestDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		confidence, err := utils.ParseDecimal(req.Confidence)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "confidence is not a number"})
			return
		}

		orgId := req.OrgId
		if orgId == "" {
			// Documents arriving without an explicit org belong to the caller's.
			orgId, _ = utils.GetOrgIdFromContext(ctx)
		}

		input := &models.NewTradeDocument{
			OrgId:        orgId,
			DocumentType: req.DocumentType,
			Fields:       req.Fields,
			Confidence:   confidence,
			ExtractedAt:  req.ExtractedAt,
			SupersedesId: req.SupersedesId,
		}

		reconciler := workflow.NewReconciler(config.GetDB(), config.GetLogger())
		result, err := reconciler.IngestDocument(ctx, input, req.MessageId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"document": result.Document,
			"links":    result.Links,
		})
	}
}

func listDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		orgId, _ := utils.GetOrgIdFromContext(ctx)
		docs, err := models.GetAllTradeDocuments(ctx, orgId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, docs)
	}
}

func getDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		orgId, _ := utils.GetOrgIdFromContext(ctx)
		doc, err := models.GetTradeDocument(ctx, orgId, c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func complianceSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "getComplianceSummary")
		defer span.End()

		orgId, _ := utils.GetOrgIdFromContext(ctx)
		summary, err := models.GetComplianceSummary(ctx, orgId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func linksForSkuHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "getLinksForSku")
		defer span.End()

		orgId, _ := utils.GetOrgIdFromContext(ctx)
		links, err := models.GetLinksForSku(ctx, orgId, c.Param("sku"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, links)
	}
}

func complianceRecheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "recheckCompliance")
		defer span.End()

		orgId, _ := utils.GetOrgIdFromContext(ctx)
		reconciler := workflow.NewReconciler(config.GetDB(), config.GetLogger())
		result, err := reconciler.RecheckOrgCompliance(ctx, orgId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getTolerancePolicyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		orgId, _ := utils.GetOrgIdFromContext(ctx)
		policy, err := models.ResolveTolerancePolicy(ctx, orgId)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, policy)
	}
}

func putTolerancePolicyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		orgId, _ := utils.GetOrgIdFromContext(ctx)

		var req models.NewTolerancePolicy
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		policy, err := models.UpsertTolerancePolicy(ctx, orgId, &req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, policy)
	}
}

type outboxReplayRequest struct {
	OrgId    string `json:"org_id"`
	RecordId int    `json:"record_id"`
}

func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, ok := utils.GetOrgIdFromContext(ctx); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if isAdmin, _ := utils.GetIsAdminFromContext(ctx); !isAdmin {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.OrgId == "" || req.RecordId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "org_id and record_id are required"})
			return
		}

		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
			return
		}
		if err := utils.ValidateResourceId[models.ComplianceEventRecord](ctx, req.OrgId, req.RecordId); err != nil {
			abortWithError(c, err)
			return
		}
		now := time.Now().UTC()
		if err := db.WithContext(ctx).
			Model(&models.ComplianceEventRecord{}).
			Where("id = ? AND org_id = ?", req.RecordId, req.OrgId).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusFailed,
				"next_attempt_at":    &now,
				"locked_at":          nil,
				"locked_by":          nil,
				"last_publish_error": nil,
			}).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"org_id":          req.OrgId,
			"record_id":       req.RecordId,
			"publish_status":  models.OutboxPublishStatusFailed,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}
