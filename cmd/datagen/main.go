package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kpiscout/internal/testkit"
)

func main() {
	out := flag.String("out", "sales.csv", "output file path")
	orders := flag.Int("orders", 400, "number of orders (rows)")
	format := flag.String("format", "", "output format: xlsx or csv (default inferred from -out)")
	seed := flag.Int64("seed", 42, "RNG seed (deterministic)")
	start := flag.String("start", "2024-01-01", "first order date (YYYY-MM-DD)")
	days := flag.Int("days", 91, "number of days the orders span")
	missing := flag.Float64("missing", 0.03, "fraction of optional cells left empty")
	flag.Parse()

	if *orders <= 0 || *days <= 0 {
		fmt.Fprintln(os.Stderr, "orders and days must be > 0")
		os.Exit(2)
	}
	startDate, err := time.ParseInLocation("2006-01-02", *start, time.UTC)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid -start (expected YYYY-MM-DD):", err)
		os.Exit(2)
	}

	fmtName := strings.ToLower(strings.TrimSpace(*format))
	if fmtName == "" {
		fmtName = "csv"
		if strings.EqualFold(filepath.Ext(*out), ".xlsx") {
			fmtName = "xlsx"
		}
	}

	cfg := testkit.DefaultSalesConfig()
	cfg.Orders = *orders
	cfg.Seed = *seed
	cfg.StartDate = startDate
	cfg.EndDate = startDate.AddDate(0, 0, *days-1)
	cfg.MissingRate = *missing
	gen := testkit.NewSalesGenerator(cfg)

	var write func(io.Writer) error
	switch fmtName {
	case "csv":
		write = gen.WriteCSV
	case "xlsx":
		write = gen.WriteXLSX
	default:
		fmt.Fprintln(os.Stderr, "unsupported format:", fmtName)
		os.Exit(2)
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error creating output:", err)
		os.Exit(1)
	}
	if err := write(f); err != nil {
		f.Close()
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", fmtName, err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "error closing output:", err)
		os.Exit(1)
	}

	fmt.Printf("Sales dataset created: %s\n", *out)
	fmt.Printf("Total Columns: %d | Total Rows: %d\n", len(testkit.SalesHeaders), cfg.Orders)
}
