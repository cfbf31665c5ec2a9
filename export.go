package main

import (
	"net/http"

	"github.com/cargolense/tradedocs_backend/models/reports"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/gin-gonic/gin"
)

func complianceExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "exportCompliance")
		defer span.End()

		orgId, _ := utils.GetOrgIdFromContext(ctx)
		f, err := reports.BuildComplianceWorkbook(ctx, orgId)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+reports.ExportFilename(orgId))
		if err := f.Write(c.Writer); err != nil {
			c.Status(http.StatusInternalServerError)
		}
	}
}
