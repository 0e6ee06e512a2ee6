package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"integrator/internal/config"
	"integrator/internal/report"
	"integrator/internal/storage"

	_ "integrator/internal/storage/all"
)

// main is the entry point for the report binary. It reads the same pipeline
// config as the integration command, connects to the configured store and
// renders the aggregate reports.
func main() {
	var (
		cfgPath   string
		topN      int
		threshold string
		outPath   string
	)

	flag.StringVar(&cfgPath, "config", "configs/sample.json", "pipeline config JSON path")
	flag.IntVar(&topN, "top", 0, "top-N product count (overrides config)")
	flag.StringVar(&threshold, "threshold", "", "customer spend threshold (overrides config)")
	flag.StringVar(&outPath, "out", "", "write report to file instead of stdout")

	flag.Parse()

	_ = godotenv.Load()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	if topN == 0 {
		topN = p.Report.TopN
	}
	if threshold == "" {
		threshold = p.Report.Threshold
	}
	if outPath == "" {
		outPath = p.Report.OutFile
	}

	var min *decimal.Decimal
	if threshold != "" {
		d, err := decimal.NewFromString(threshold)
		if err != nil {
			fatalf("invalid threshold %q: %v", threshold, err)
		}
		min = &d
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			fatalf("create %s: %v", outPath, err)
		}
		defer f.Close()
		out = f
	}

	ctx := context.Background()
	st, err := storage.Open(ctx, storage.Config{
		Kind: p.Storage.Kind,
		DSN:  os.ExpandEnv(p.Storage.DSN),
	})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer st.Close()

	r := report.New(st)
	if err := r.All(ctx, out, topN, min); err != nil {
		log.Fatalf("%v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
