// internal/store/sqlite/store_test.go
package sqlite

import (
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/fypalloc/internal/apperrors"
	"github.com/shrimpsizemoose/fypalloc/internal/models"
	"github.com/shrimpsizemoose/fypalloc/internal/store"
	"github.com/shrimpsizemoose/fypalloc/migrations"
)

// setupTestDB creates an in-memory SQLite database with the full schema
func setupTestDB(t *testing.T) (*SQLiteStore, func()) {
	s, err := NewSQLiteStore(":memory:", migrations.FS)
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		err := s.Close()
		require.NoError(t, err, "Failed to close database")
	}

	return s, cleanup
}

type testData struct {
	store *SQLiteStore
	now   time.Time
}

func setupTestData(t *testing.T) (*testData, func()) {
	s, cleanup := setupTestDB(t)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	err := s.WithTx(func(tx store.Tx) error {
		if err := tx.Supervisors().Add(models.NewSupervisor("BOAN001", "BO AN", "boan@ntu.edu.sg", 1)); err != nil {
			return err
		}
		if err := tx.Students().Add(models.NewStudent("FPU001", "Pu Fanyi", "pufanyi@gmail.com")); err != nil {
			return err
		}
		if err := tx.Students().Add(models.NewStudent("JQY001", "Jin Qingyang", "jinqingyang@gmail.com")); err != nil {
			return err
		}
		return tx.Projects().Add(models.NewProject("1", "Blockchain technology", "BOAN001"))
	})
	require.NoError(t, err, "Failed to insert test data")

	return &testData{
		store: s,
		now:   now,
	}, cleanup
}

func TestMain(m *testing.M) {
	log.Println("Starting SQLite store tests...")
	code := m.Run()
	log.Println("Finished SQLite store tests")
	os.Exit(code)
}

func TestStudentOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	t.Run("get student", func(t *testing.T) {
		err := td.store.View(func(tx store.Tx) error {
			got, err := tx.Students().Get("JQY001")
			require.NoError(t, err)
			assert.Equal(t, "Jin Qingyang", got.Name)
			assert.Equal(t, models.StudentUnregistered, got.Status)
			assert.Nil(t, got.ProjectID)
			assert.Nil(t, got.SupervisorID)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("get non-existent student", func(t *testing.T) {
		err := td.store.View(func(tx store.Tx) error {
			_, err := tx.Students().Get("NOPE001")
			return err
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("duplicate student", func(t *testing.T) {
		err := td.store.WithTx(func(tx store.Tx) error {
			return tx.Students().Add(models.NewStudent("JQY001", "Someone Else", "else@gmail.com"))
		})
		assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	})

	t.Run("update keeps references", func(t *testing.T) {
		err := td.store.WithTx(func(tx store.Tx) error {
			s, err := tx.Students().Get("JQY001")
			if err != nil {
				return err
			}
			s.Status = models.StudentPending
			s.ProjectID = models.Ref("1")
			return tx.Students().Update(s)
		})
		require.NoError(t, err)

		err = td.store.View(func(tx store.Tx) error {
			got, err := tx.Students().Get("JQY001")
			require.NoError(t, err)
			assert.Equal(t, models.StudentPending, got.Status)
			assert.Equal(t, "1", models.Deref(got.ProjectID))
			assert.Nil(t, got.SupervisorID)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("update non-existent student", func(t *testing.T) {
		err := td.store.WithTx(func(tx store.Tx) error {
			return tx.Students().Update(models.NewStudent("NOPE001", "Nobody", "nobody@gmail.com"))
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("invalid student is rejected", func(t *testing.T) {
		err := td.store.WithTx(func(tx store.Tx) error {
			return tx.Students().Add(models.NewStudent("BAD001", "Bad", "not-an-email"))
		})
		assert.Error(t, err)
	})
}

func TestProjectOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	t.Run("project requires existing supervisor", func(t *testing.T) {
		err := td.store.WithTx(func(tx store.Tx) error {
			return tx.Projects().Add(models.NewProject("2", "Quantum things", "GHOST001"))
		})
		assert.Error(t, err)
	})

	t.Run("find by predicate", func(t *testing.T) {
		err := td.store.WithTx(func(tx store.Tx) error {
			p := models.NewProject("2", "Quantum things", "BOAN001")
			p.Status = models.ProjectUnavailable
			return tx.Projects().Add(p)
		})
		require.NoError(t, err)

		err = td.store.View(func(tx store.Tx) error {
			available, err := tx.Projects().FindAll(func(p *models.Project) bool {
				return p.Status == models.ProjectAvailable
			})
			require.NoError(t, err)
			require.Len(t, available, 1)
			assert.Equal(t, "1", available[0].ID)

			all, err := tx.Projects().FindAll(store.All[models.Project])
			require.NoError(t, err)
			assert.Len(t, all, 2)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("next project id", func(t *testing.T) {
		err := td.store.View(func(tx store.Tx) error {
			id, err := tx.NextProjectID()
			require.NoError(t, err)
			assert.Equal(t, "P1", id)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestRequestOperations(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	req := &models.Request{
		ID:           "R1",
		Status:       models.RequestPending,
		Payload:      models.TitleChange{NewTitle: "Blockchain technology II"},
		StudentID:    "JQY001",
		ProjectID:    "1",
		SupervisorID: "BOAN001",
		CreatedBy:    "JQY001",
		CreatedAt:    td.now,
	}

	t.Run("create request", func(t *testing.T) {
		err := td.store.WithTx(func(tx store.Tx) error {
			return tx.Requests().Add(req)
		})
		require.NoError(t, err)
	})

	t.Run("get request", func(t *testing.T) {
		err := td.store.View(func(tx store.Tx) error {
			got, err := tx.Requests().Get("R1")
			require.NoError(t, err)
			assert.Equal(t, models.KindTitleChange, got.Kind())
			assert.Equal(t, req.Payload, got.Payload)
			assert.True(t, td.now.Equal(got.CreatedAt))
			assert.Nil(t, got.ResolvedAt)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("resolve request", func(t *testing.T) {
		err := td.store.WithTx(func(tx store.Tx) error {
			got, err := tx.Requests().Get("R1")
			if err != nil {
				return err
			}
			if err := got.Resolve(models.RequestDenied, "BOAN001", td.now.Add(time.Hour)); err != nil {
				return err
			}
			return tx.Requests().Update(got)
		})
		require.NoError(t, err)

		err = td.store.View(func(tx store.Tx) error {
			got, err := tx.Requests().Get("R1")
			require.NoError(t, err)
			assert.Equal(t, models.RequestDenied, got.Status)
			assert.Equal(t, "BOAN001", models.Deref(got.ResolvedBy))
			require.NotNil(t, got.ResolvedAt)
			assert.True(t, td.now.Add(time.Hour).Equal(*got.ResolvedAt))
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("next request id", func(t *testing.T) {
		err := td.store.View(func(tx store.Tx) error {
			id, err := tx.NextRequestID()
			require.NoError(t, err)
			assert.Equal(t, "R2", id)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestWithTxRollsBack(t *testing.T) {
	td, cleanup := setupTestData(t)
	defer cleanup()

	boom := errors.New("boom")
	err := td.store.WithTx(func(tx store.Tx) error {
		if err := tx.Students().Add(models.NewStudent("NEW001", "New Student", "new@gmail.com")); err != nil {
			return err
		}
		p, err := tx.Projects().Get("1")
		if err != nil {
			return err
		}
		p.Status = models.ProjectReserved
		if err := tx.Projects().Update(p); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = td.store.View(func(tx store.Tx) error {
		_, err := tx.Students().Get("NEW001")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)

		p, err := tx.Projects().Get("1")
		require.NoError(t, err)
		assert.Equal(t, models.ProjectAvailable, p.Status)
		return nil
	})
	require.NoError(t, err)
}
