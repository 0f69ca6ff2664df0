package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/fypalloc/internal/app"
	"github.com/shrimpsizemoose/fypalloc/internal/audit"
	"github.com/shrimpsizemoose/fypalloc/internal/console"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to start: %v", err)
	}
	defer service.Close()

	if _, err := service.RecomputeAllProjectAvailability(); err != nil {
		logger.Error.Fatalf("Failed to recompute availability: %v", err)
	}

	if schedule := service.Config.Allocation.AuditSchedule; schedule != "" {
		auditor := audit.NewAuditor(service.Coordinator)
		if err := auditor.Start(schedule); err != nil {
			logger.Error.Fatalf("Failed to start audit: %v", err)
		}
		defer auditor.Stop()
	}

	if listen := service.Config.Metrics.Listen; listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info.Printf("Serving metrics on %s", listen)
			if err := http.ListenAndServe(listen, mux); err != nil {
				logger.Error.Printf("Metrics listener failed: %v", err)
			}
		}()
	}

	logger.Info.Println("Console initialized successfully")
	c := console.New(service, os.Stdin, os.Stdout)
	if err := c.Run(context.Background()); err != nil {
		logger.Error.Printf("Console error: %v", err)
	}
}
