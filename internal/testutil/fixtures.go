// Package testutil seeds in-memory stores for package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/fypalloc/internal/models"
	"github.com/shrimpsizemoose/fypalloc/internal/store"
	"github.com/shrimpsizemoose/fypalloc/internal/store/sqlite"
	"github.com/shrimpsizemoose/fypalloc/migrations"
)

// NewStore returns an empty in-memory store with the schema applied. It is
// closed when the test ends.
func NewStore(t *testing.T) store.EntityStore {
	t.Helper()
	s, err := sqlite.NewSQLiteStore(":memory:", migrations.FS)
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() {
		require.NoError(t, s.Close(), "Failed to close database")
	})
	return s
}

type Fixture struct {
	Supervisors []*models.Supervisor
	Students    []*models.Student
	Projects    []*models.Project
}

// Campus is the small roster most tests start from. BOAN001 can take one
// project and LIFANG001 two.
func Campus() Fixture {
	return Fixture{
		Supervisors: []*models.Supervisor{
			models.NewSupervisor("BOAN001", "BO AN", "boan@ntu.edu.sg", 1),
			models.NewSupervisor("LIFANG001", "LI FANG", "lifang@ntu.edu.sg", 2),
		},
		Students: []*models.Student{
			models.NewStudent("JQY001", "Jin Qingyang", "jinqingyang@gmail.com"),
			models.NewStudent("FPU001", "Pu Fanyi", "pufanyi@gmail.com"),
			models.NewStudent("YCHERN001", "Chern Yee", "ychern@gmail.com"),
		},
		Projects: []*models.Project{
			models.NewProject("1", "Blockchain technology", "BOAN001"),
			models.NewProject("2", "Smart contracts", "BOAN001"),
			models.NewProject("3", "Graph neural networks", "LIFANG001"),
			models.NewProject("4", "Federated learning", "LIFANG001"),
		},
	}
}

// Seed writes f in one transaction.
func Seed(t *testing.T, s store.EntityStore, f Fixture) {
	t.Helper()
	err := s.WithTx(func(tx store.Tx) error {
		for _, sup := range f.Supervisors {
			if err := tx.Supervisors().Add(sup); err != nil {
				return err
			}
		}
		for _, st := range f.Students {
			if err := tx.Students().Add(st); err != nil {
				return err
			}
		}
		for _, p := range f.Projects {
			if err := tx.Projects().Add(p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err, "Failed to insert test data")
}

func Student(t *testing.T, s store.EntityStore, id string) *models.Student {
	t.Helper()
	var out *models.Student
	require.NoError(t, s.View(func(tx store.Tx) error {
		var err error
		out, err = tx.Students().Get(id)
		return err
	}))
	return out
}

func Project(t *testing.T, s store.EntityStore, id string) *models.Project {
	t.Helper()
	var out *models.Project
	require.NoError(t, s.View(func(tx store.Tx) error {
		var err error
		out, err = tx.Projects().Get(id)
		return err
	}))
	return out
}

func Request(t *testing.T, s store.EntityStore, id string) *models.Request {
	t.Helper()
	var out *models.Request
	require.NoError(t, s.View(func(tx store.Tx) error {
		var err error
		out, err = tx.Requests().Get(id)
		return err
	}))
	return out
}
