package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"moonwalketl/internal/config"
	"moonwalketl/internal/metrics"
	"moonwalketl/internal/metrics/datadog"
	"moonwalketl/internal/pipeline"

	// register both sinks with the storage factory.
	_ "moonwalketl/internal/storage/postgres"
	_ "moonwalketl/internal/storage/sqlite"
)

// main is the entry point for the refresh binary. It loads the environment
// config, optionally initializes a metrics backend, and runs the pipeline.
func main() {
	var (
		transformOnly     bool
		loadOnly          bool
		verifyOnly        bool
		metricsBackendFlg string
	)

	flag.BoolVar(&transformOnly, "transform-only", false, "stop after writing the staging CSVs")
	flag.BoolVar(&loadOnly, "load-only", false, "reload the warehouses from existing staging CSVs")
	flag.BoolVar(&verifyOnly, "verify", false, "compare staged outputs against golden baselines and exit")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "", "metrics backend to use (datadog, none)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	if transformOnly && loadOnly {
		fatalf("-transform-only and -load-only are mutually exclusive")
	}

	cfg := config.Load()

	// Decide metrics backend: flag → env → disabled.
	backendName := metricsBackendFlg
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    "moonwalk_refresh",
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			log.Printf("metrics: backend=%v tags=%v", backendName, extraTags)
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
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

	if *verbose {
		log.Printf("config: downloads=%s staging=%s db=%s env=%s remote=%v",
			cfg.DownloadsPath, cfg.StagingPath, cfg.DBPath, cfg.Env, cfg.RemoteEnabled())
	}

	ctx := context.Background()
	start := time.Now()

	state, err := pipeline.NewRunner(cfg).Run(ctx, pipeline.Options{
		TransformOnly: transformOnly,
		LoadOnly:      loadOnly,
		VerifyOnly:    verifyOnly,
	})
	if err != nil {
		log.Printf("refresh failed at %s: %v", state, err)
		os.Exit(1)
	}

	log.Printf("refresh complete: %s in %s", state, time.Since(start).Truncate(time.Millisecond))
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
