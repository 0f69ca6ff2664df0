// Package audit re-checks the committed allocation state on a schedule.
package audit

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/fypalloc/internal/allocation"
	"github.com/shrimpsizemoose/fypalloc/internal/metrics"
)

const metricsOp = "audit"

type Auditor struct {
	coord     *allocation.Coordinator
	scheduler *gocron.Scheduler
}

func NewAuditor(coord *allocation.Coordinator) *Auditor {
	return &Auditor{
		coord:     coord,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Start runs Audit on the cron schedule until Stop is called.
func (a *Auditor) Start(schedule string) error {
	_, err := a.scheduler.Cron(schedule).SingletonMode().Do(func() {
		if _, err := a.Audit(); err != nil {
			logger.Error.Printf("Audit failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule audit: %w", err)
	}

	a.scheduler.StartAsync()
	logger.Info.Printf("Invariant audit scheduled: %s", schedule)
	return nil
}

func (a *Auditor) Stop() {
	a.scheduler.Stop()
}

// Audit checks the committed state once and returns how many violations it
// found. Each one is logged.
func (a *Auditor) Audit() (int, error) {
	violations, err := a.coord.CheckInvariants()
	if err != nil {
		return 0, err
	}
	if len(violations) == 0 {
		logger.Debug.Println("Audit found no violations")
		return 0, nil
	}

	for _, v := range violations {
		logger.Error.Printf("Audit: %s", v)
	}
	metrics.InvariantViolations.WithLabelValues(metricsOp).Add(float64(len(violations)))
	return len(violations), nil
}
