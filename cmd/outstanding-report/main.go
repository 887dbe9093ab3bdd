package main

import (
	"context"
	"flag"
	"log"

	"bitbucket.org/mmdatafocus/billing_backend/config"
	"bitbucket.org/mmdatafocus/billing_backend/models"
	"bitbucket.org/mmdatafocus/billing_backend/models/reports"
	"bitbucket.org/mmdatafocus/billing_backend/salesapi"
	"bitbucket.org/mmdatafocus/billing_backend/workflow"
)

// Writes the outstanding-invoice list to an xlsx file. Authorizes against
// the sales backend with SALES_API_SERVICE_TOKEN.
//
// Usage:
//
//	outstanding-report -warehouse 3 -start 2026-01-01 -end 2026-01-31 -o january.xlsx
func main() {
	warehouse := flag.Int("warehouse", 0, "filter by warehouse id")
	start := flag.String("start", "", "start date (YYYY-MM-DD)")
	end := flag.String("end", "", "end date (YYYY-MM-DD)")
	search := flag.String("search", "", "free-text search over invoice id / customer")
	output := flag.String("o", "outstanding.xlsx", "output file")
	flag.Parse()

	client, err := salesapi.NewClient()
	if err != nil {
		log.Fatalf("sales api client: %v", err)
	}

	filter := models.OutstandingFilter{
		WarehouseId: *warehouse,
		StartDate:   *start,
		EndDate:     *end,
		Search:      *search,
	}
	invoices, err := workflow.LoadOutstandingInvoices(context.Background(), client, config.GetLogger(), filter)
	if err != nil {
		log.Fatalf("load outstanding invoices: %v", err)
	}

	workbook, err := reports.BuildOutstandingWorkbook(invoices)
	if err != nil {
		log.Fatalf("build workbook: %v", err)
	}
	if err := workbook.SaveAs(*output); err != nil {
		log.Fatalf("save workbook: %v", err)
	}
	log.Printf("wrote %d invoice(s) to %s", len(invoices), *output)
}
