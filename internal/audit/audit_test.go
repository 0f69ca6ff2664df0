package audit

import (
	"log"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/fypalloc/internal/allocation"
	"github.com/shrimpsizemoose/fypalloc/internal/metrics"
	"github.com/shrimpsizemoose/fypalloc/internal/models"
	"github.com/shrimpsizemoose/fypalloc/internal/store"
	fixtures "github.com/shrimpsizemoose/fypalloc/internal/testutil"
)

func TestMain(m *testing.M) {
	log.Println("Starting audit tests...")
	code := m.Run()
	log.Println("Finished audit tests")
	os.Exit(code)
}

func setupAuditor(t *testing.T) (*Auditor, store.EntityStore) {
	s := fixtures.NewStore(t)
	fixtures.Seed(t, s, fixtures.Campus())
	a := NewAuditor(allocation.NewCoordinator(s, allocation.Config{}))
	t.Cleanup(a.Stop)
	return a, s
}

func TestAudit(t *testing.T) {
	a, s := setupAuditor(t)

	t.Run("clean state", func(t *testing.T) {
		n, err := a.Audit()
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("partial write is reported", func(t *testing.T) {
		err := s.WithTx(func(tx store.Tx) error {
			st, err := tx.Students().Get("JQY001")
			if err != nil {
				return err
			}
			st.Status = models.StudentRegistered
			st.ProjectID = models.Ref("1")
			return tx.Students().Update(st)
		})
		require.NoError(t, err)

		before := testutil.ToFloat64(metrics.InvariantViolations.WithLabelValues(metricsOp))
		n, err := a.Audit()
		require.NoError(t, err)
		assert.Positive(t, n)
		after := testutil.ToFloat64(metrics.InvariantViolations.WithLabelValues(metricsOp))
		assert.Equal(t, float64(n), after-before)
	})
}

func TestStart(t *testing.T) {
	a, _ := setupAuditor(t)

	t.Run("bad schedule", func(t *testing.T) {
		assert.Error(t, a.Start("not a cron line"))
	})

	t.Run("scheduled", func(t *testing.T) {
		require.NoError(t, a.Start("*/5 * * * *"))
		assert.True(t, a.scheduler.IsRunning())
	})
}
