package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"integrator/internal/config"
	"integrator/internal/integrate"
	"integrator/internal/metrics"
	"integrator/internal/metrics/datadog"
	"integrator/internal/storage"

	// register all source adapters and storage backends; config selects
	// which ones a run actually uses.
	_ "integrator/internal/source/all"
	_ "integrator/internal/storage/all"
)

// main is the entry point for the integration binary. It loads the pipeline
// config, optionally initializes a metrics backend, runs the integration and
// prints the run summary.
func main() {
	var (
		cfgPath           string
		metricsBackendFlg string
		validateOnly      bool
		summaryJSON       bool
	)

	flag.StringVar(&cfgPath, "config", "configs/sample.json", "pipeline config JSON path")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none)")
	flag.BoolVar(&validateOnly, "validate", false, "validate the configuration and exit")
	flag.BoolVar(&summaryJSON, "json", false, "print the run summary as JSON")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	p, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidatePipeline(p)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validateOnly {
		log.Printf("configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	// Decide metrics backend: flag → config → env → none.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = p.Metrics.Backend
	}
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		jobName := p.Job
		if jobName == "" {
			jobName = "integrator_job"
		}
		tags := append([]string(nil), p.Metrics.Tags...)
		tags = append(tags, datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))...)

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName: jobName,
			Tags:    tags,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, tags)
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Close(); err != nil {
					log.Printf("metrics: close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		if *verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	start := time.Now()

	st, err := storage.Open(ctx, storage.Config{
		Kind: p.Storage.Kind,
		DSN:  os.ExpandEnv(p.Storage.DSN),
	})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer st.Close()

	eng := &integrate.Engine{
		Store:         st,
		Log:           log.Default(),
		ChannelBuffer: p.Runtime.ChannelBuffer,
		DebugTimings:  *verbose,
	}
	eng.Normalizer.DateLayout = p.Runtime.DateLayout

	sum, runErr := eng.Run(ctx, p)

	if summaryJSON {
		if err := json.NewEncoder(os.Stdout).Encode(sum); err != nil {
			log.Printf("summary: encode: %v", err)
		}
	} else {
		fmt.Printf("run %s\n", sum.RunID)
		fmt.Printf("  customers: accepted=%d rejected=%d malformed=%d\n",
			sum.Customers.Accepted, sum.Customers.Rejected, sum.Customers.Malformed)
		fmt.Printf("  products:  accepted=%d rejected=%d malformed=%d\n",
			sum.Products.Accepted, sum.Products.Rejected, sum.Products.Malformed)
		fmt.Printf("  orders:    accepted=%d rejected=%d malformed=%d\n",
			sum.Orders.Accepted, sum.Orders.Rejected, sum.Orders.Malformed)
		fmt.Printf("  total:     accepted=%d rejected=%d\n", sum.TotalAccepted(), sum.TotalRejected())
	}

	if runErr != nil {
		log.Fatalf("%v", runErr)
	}
	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
