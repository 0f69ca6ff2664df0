package app

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/fypalloc/internal/apperrors"
	"github.com/shrimpsizemoose/fypalloc/internal/lock"
	"github.com/shrimpsizemoose/fypalloc/internal/models"
	"github.com/shrimpsizemoose/fypalloc/internal/testutil"
)

const testConfig = `
[database]
dsn = ":memory:"

[allocation]
default_capacity = 3
verify_invariants = true
audit_schedule = "0 * * * *"

[lock]
ttl = "2s"
`

func setupService(t *testing.T) *Service {
	config, err := ParseConfig([]byte(testConfig), "test")
	require.NoError(t, err)

	s := testutil.NewStore(t)
	testutil.Seed(t, s, testutil.Campus())
	return NewServiceWith(config, s, lock.NewLocal())
}

func TestMain(m *testing.M) {
	log.Println("Starting service tests...")
	code := m.Run()
	log.Println("Finished service tests")
	os.Exit(code)
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(path, []byte("[database]\ndsn = \"file:fyp.db\"\n"), 0o644))

		config, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "file:fyp.db", config.Database.DSN)
		assert.Equal(t, models.DefaultCapacity, config.Allocation.DefaultCapacity)
		assert.False(t, config.Allocation.VerifyInvariants)
		assert.Equal(t, 10*time.Second, config.LockTTL())
	})

	t.Run("explicit values", func(t *testing.T) {
		config, err := ParseConfig([]byte(testConfig), "test")
		require.NoError(t, err)
		assert.Equal(t, 3, config.Allocation.DefaultCapacity)
		assert.True(t, config.Allocation.VerifyInvariants)
		assert.Equal(t, "0 * * * *", config.Allocation.AuditSchedule)
		assert.Equal(t, 2*time.Second, config.LockTTL())
	})

	t.Run("missing dsn", func(t *testing.T) {
		_, err := ParseConfig([]byte("[allocation]\ndefault_capacity = 1\n"), "test")
		assert.Error(t, err)
	})

	t.Run("bad ttl", func(t *testing.T) {
		_, err := ParseConfig([]byte("[database]\ndsn = \":memory:\"\n[lock]\nttl = \"soon\"\n"), "test")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestNewStore(t *testing.T) {
	s, err := NewStore(":memory:", "")
	require.NoError(t, err)
	defer s.Close()

	svc := NewServiceWith(&Config{}, s, lock.NewLocal())
	sup, err := svc.AddSupervisor("BOAN001", "BO AN", "boan@ntu.edu.sg", 0)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCapacity, sup.Capacity)
}

func TestServiceWorkflow(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	req, err := svc.CreateRegistrationRequest(ctx, "1", "JQY001")
	require.NoError(t, err)

	status, err := svc.RequestStatus(req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, status)

	pending, err := svc.PendingRequests()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	forBoan, err := svc.RequestsForSupervisor("BOAN001")
	require.NoError(t, err)
	assert.Len(t, forBoan, 1)

	_, err = svc.ApproveAndApply(ctx, req.ID, "COORD001")
	require.NoError(t, err)

	st, err := svc.StudentStatus("JQY001")
	require.NoError(t, err)
	assert.Equal(t, models.StudentRegistered, st)

	ps, err := svc.ProjectStatus("2")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectUnavailable, ps)

	available, err := svc.AvailableProjects()
	require.NoError(t, err)
	ids := make([]string, 0, len(available))
	for _, p := range available {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"3", "4"}, ids)

	sups, err := svc.AvailableSupervisors()
	require.NoError(t, err)
	require.Len(t, sups, 1)
	assert.Equal(t, "LIFANG001", sups[0].ID)

	byBoan, err := svc.ProjectsBySupervisor("BOAN001")
	require.NoError(t, err)
	assert.Len(t, byBoan, 2)

	dereg, err := svc.CreateDeregistrationRequest(ctx, "1", "JQY001")
	require.NoError(t, err)
	_, err = svc.ApproveAndApply(ctx, dereg.ID, "COORD001")
	require.NoError(t, err)

	history, err := svc.RequestsByStudent("JQY001")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, req.ID, history[0].ID)
	assert.Equal(t, models.RequestApproved, history[1].Status)

	ps, err = svc.ProjectStatus("1")
	require.NoError(t, err)
	assert.Equal(t, models.ProjectAvailable, ps)

	violations, err := svc.CheckInvariants()
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestServiceUnknownRequest(t *testing.T) {
	svc := setupService(t)
	_, err := svc.Approve(context.Background(), "R42", "COORD001")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestConcurrentRegistrationsOnOneProject(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	students := []string{"JQY001", "FPU001", "YCHERN001"}
	errs := make([]error, len(students))

	var wg sync.WaitGroup
	for i, id := range students {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = svc.CreateRegistrationRequest(ctx, "3", id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	}
	assert.Equal(t, 1, succeeded)

	pending, err := svc.PendingRequests()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestLockTimeout(t *testing.T) {
	svc := setupService(t)

	unlock, err := svc.Locks.Lock(context.Background(), lock.ProjectKey("3"))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = svc.CreateRegistrationRequest(ctx, "3", "JQY001")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	st, err := svc.StudentStatus("JQY001")
	require.NoError(t, err)
	assert.Equal(t, models.StudentUnregistered, st)
}

func TestRequestIDsAcrossStudents(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	t.Run("sequence lock holds creation", func(t *testing.T) {
		unlock, err := svc.Locks.Lock(ctx, lock.SequenceKey("request"))
		require.NoError(t, err)

		short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = svc.CreateRegistrationRequest(short, "3", "JQY001")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		unlock()
	})

	t.Run("distinct ids", func(t *testing.T) {
		pairs := [][2]string{{"1", "JQY001"}, {"3", "FPU001"}, {"4", "YCHERN001"}}
		ids := make([]string, len(pairs))
		errs := make([]error, len(pairs))

		var wg sync.WaitGroup
		for i, pair := range pairs {
			wg.Add(1)
			go func(i int, projectID, studentID string) {
				defer wg.Done()
				req, err := svc.CreateRegistrationRequest(ctx, projectID, studentID)
				errs[i] = err
				if err == nil {
					ids[i] = req.ID
				}
			}(i, pair[0], pair[1])
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		assert.ElementsMatch(t, []string{"R1", "R2", "R3"}, ids)
	})
}

func TestNewStoreFailureReturnsNil(t *testing.T) {
	s, err := NewStore("postgres://fyp@127.0.0.1:1/fyp?sslmode=disable&connect_timeout=1", "")
	assert.Error(t, err)
	assert.True(t, s == nil)
}
