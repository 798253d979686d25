package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/reconcile_backend/config"
	"github.com/mmdatafocus/reconcile_backend/models"
	"github.com/mmdatafocus/reconcile_backend/utils"
)

// obligation-reconcile recomputes every obligation's applied amount from its
// allocations and writes each mismatch to reconciliation_reports. It exits 2
// when drift is found so it can gate a nightly job.
//
// Example:
//
//	go run ./cmd/obligation-reconcile/ -correlation-id=nightly-2024-05-01
func main() {
	correlationID := flag.String("correlation-id", "", "Optional: correlation id stamped on report rows")
	quiet := flag.Bool("quiet", false, "Only print the summary line")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := context.Background()
	if *correlationID != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, *correlationID)
	}

	summary, err := models.RunObligationReconciliation(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconciliation failed: %v\n", err)
		os.Exit(1)
	}

	if !*quiet {
		for _, f := range summary.Findings {
			fmt.Printf("%-18s %s #%d: %s\n", f.CheckType, f.EntityType, f.EntityId, f.Details)
		}
	}
	fmt.Printf("correlation_id=%s checked=%d findings=%d\n", summary.CorrelationId, summary.Checked, len(summary.Findings))
	if len(summary.Findings) > 0 {
		os.Exit(2)
	}
}
