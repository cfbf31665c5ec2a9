package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/cargolense/tradedocs_backend/config"
	"github.com/cargolense/tradedocs_backend/models"
	"github.com/cargolense/tradedocs_backend/utils"
	"github.com/cargolense/tradedocs_backend/workflow"
	"github.com/shopspring/decimal"
)

// seed-demo provisions a demo org and one fully reconciled shipment (PO,
// invoice, BOL for the same SKU), so a fresh environment has data to show.
// Mint an access token for the org with cmd/mint-token.
func main() {
	orgName := flag.String("org-name", "Cargolense Demo", "Demo organization name")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	ctx := context.Background()

	org, err := models.CreateOrganization(ctx, &models.NewOrganization{
		Name:  *orgName,
		Email: "demo@cargolense.example",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create org: %v\n", err)
		os.Exit(1)
	}

	ctx = utils.SetOrgIdInContext(ctx, org.ID.String())
	reconciler := workflow.NewReconciler(config.GetDB(), config.GetLogger())

	poDate := time.Now().UTC().AddDate(0, 0, -30)
	shipDate := poDate.AddDate(0, 0, 12)
	etaDate := poDate.AddDate(0, 0, 25)
	receivedDate := poDate.AddDate(0, 0, 27)

	unitCost := decimal.NewFromFloat(5.00)
	invoiceCost := decimal.NewFromFloat(5.75)
	landedCost := decimal.NewFromFloat(6.10)
	received := decimal.NewFromInt(900)

	documents := []*models.NewTradeDocument{
		{
			OrgId:        org.ID.String(),
			DocumentType: models.DocumentTypePurchaseOrder,
			Confidence:   decimal.NewFromFloat(0.97),
			Fields: models.ExtractedFields{
				Currency: "USD",
				PoDate:   &poDate,
				LineItems: []models.ExtractedLineItem{
					{Sku: "ABC-100", Description: "Widget, industrial", Quantity: decimal.NewFromInt(1000), UnitCost: &unitCost},
				},
			},
		},
		{
			OrgId:        org.ID.String(),
			DocumentType: models.DocumentTypeCommercialInvoice,
			Confidence:   decimal.NewFromFloat(0.94),
			Fields: models.ExtractedFields{
				Currency:    "USD",
				InvoiceDate: &shipDate,
				LineItems: []models.ExtractedLineItem{
					{Sku: "ABC-100", Description: "Widget, industrial", Quantity: decimal.NewFromInt(1000), UnitCost: &invoiceCost, LandedUnitCost: &landedCost},
				},
			},
		},
		{
			OrgId:        org.ID.String(),
			DocumentType: models.DocumentTypeBillOfLading,
			Confidence:   decimal.NewFromFloat(0.91),
			Fields: models.ExtractedFields{
				Currency:     "USD",
				ShipDate:     &shipDate,
				EtaDate:      &etaDate,
				ReceivedDate: &receivedDate,
				LineItems: []models.ExtractedLineItem{
					{Sku: "ABC-100", Description: "Widget, industrial", Quantity: decimal.NewFromInt(950), ReceivedQuantity: &received},
				},
			},
		},
	}

	for i, doc := range documents {
		result, err := reconciler.IngestDocument(ctx, doc, fmt.Sprintf("seed-%d", i))
		if err != nil {
			fmt.Fprintf(os.Stderr, "ingest %s: %v\n", doc.DocumentType, err)
			os.Exit(1)
		}
		for _, link := range result.Links {
			payload, _ := utils.MarshalToJSON(link)
			fmt.Printf("ingested %s -> %s\n", doc.DocumentType, payload)
		}
	}

	fmt.Printf("demo org ready: org_id=%s\n", org.ID)
}
