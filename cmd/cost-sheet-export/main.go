package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/reconcile_backend/config"
	"github.com/mmdatafocus/reconcile_backend/models"
)

// cost-sheet-export writes a product's saved cost breakdown to an xlsx file.
//
// Example:
//
//	go run ./cmd/cost-sheet-export/ -product-id=12 -out=burger.xlsx
func main() {
	productID := flag.Int("product-id", 0, "Required: product id")
	out := flag.String("out", "", "Output file (default cost-sheet-<product-id>.xlsx)")
	flag.Parse()

	if *productID <= 0 {
		fmt.Fprintln(os.Stderr, "--product-id is required")
		os.Exit(1)
	}
	path := *out
	if path == "" {
		path = fmt.Sprintf("cost-sheet-%d.xlsx", *productID)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", path, err)
		os.Exit(1)
	}
	if err := models.ExportProductCostSheet(context.Background(), *productID, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		fmt.Fprintf(os.Stderr, "export failed (%s): %v\n", models.KindOf(err), err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", path)
}
