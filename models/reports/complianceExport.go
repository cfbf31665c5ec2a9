package reports

import (
	"context"
	"fmt"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/models"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ComplianceReportRow flattens one link for the export sheet.
type ComplianceReportRow struct {
	Sku                string
	ProductDescription string
	InventoryStatus    string
	CompromiseReasons  string
	PoQuantity         string
	ShippedQuantity    string
	ReceivedQuantity   string
	PoUnitCost         string
	InvoiceUnitCost    string
}

func getComplianceReport(ctx context.Context, orgId string) ([]ComplianceReportRow, error) {
	if orgId == "" {
		return nil, utils.NewAuthorizationError("org id is required")
	}
	db := config.GetDB()
	var links []*models.DocumentInventoryLink
	err := db.WithContext(ctx).
		Where("org_id = ?", orgId).
		Order("sku ASC, created_at ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}

	rows := make([]ComplianceReportRow, 0, len(links))
	for _, l := range links {
		reasons := ""
		for i, r := range l.Reasons() {
			if i > 0 {
				reasons += ", "
			}
			reasons += string(r)
		}
		rows = append(rows, ComplianceReportRow{
			Sku:                l.Sku,
			ProductDescription: l.ProductDescription,
			InventoryStatus:    string(l.InventoryStatus),
			CompromiseReasons:  reasons,
			PoQuantity:         decCell(l.PoQuantity),
			ShippedQuantity:    decCell(l.ShippedQuantity),
			ReceivedQuantity:   decCell(l.ReceivedQuantity),
			PoUnitCost:         decCell(l.PoUnitCost),
			InvoiceUnitCost:    decCell(l.InvoiceUnitCost),
		})
	}
	return rows, nil
}

func decCell(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

// BuildComplianceWorkbook renders the org's links into an XLSX workbook for
// the dashboard's export button.
func BuildComplianceWorkbook(ctx context.Context, orgId string) (*excelize.File, error) {
	data, err := getComplianceReport(ctx, orgId)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Sheet1"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}

	headers := []string{"SKU", "Description", "Status", "Reasons", "POQty", "ShippedQty", "ReceivedQty", "POUnitCost", "InvoiceUnitCost"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for rowIdx, d := range data {
		values := []string{
			d.Sku, d.ProductDescription, d.InventoryStatus, d.CompromiseReasons,
			d.PoQuantity, d.ShippedQuantity, d.ReceivedQuantity, d.PoUnitCost, d.InvoiceUnitCost,
		}
		for colIdx, v := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	return f, nil
}

// ExportFilename names the download by org so support can trace exports.
func ExportFilename(orgId string) string {
	return fmt.Sprintf("compliance_%s.xlsx", orgId)
}
