package store

import (
	"io/fs"

	"github.com/shrimpsizemoose/fypalloc/internal/models"
)

// Entity is anything kept in the store under a unique key.
type Entity interface {
	Key() string
}

// Collection is the keyed mapping for one entity type.
// Get and Update fail with apperrors.ErrNotFound, Add with
// apperrors.ErrAlreadyExists.
type Collection[T any] interface {
	Get(id string) (*T, error)
	Add(v *T) error
	Update(v *T) error
	FindAll(pred func(*T) bool) ([]*T, error)
}

// Tx is the store as seen from inside one atomic unit of work.
type Tx interface {
	Students() Collection[models.Student]
	Supervisors() Collection[models.Supervisor]
	Projects() Collection[models.Project]
	Requests() Collection[models.Request]

	NextRequestID() (string, error)
	NextProjectID() (string, error)
}

type EntityStore interface {
	Close() error
	ApplyMigrations(fsys fs.FS) error

	// WithTx runs fn in a transaction. Everything fn wrote is committed when
	// it returns nil and rolled back otherwise.
	WithTx(fn func(tx Tx) error) error
	// View runs fn against a consistent read-only snapshot.
	View(fn func(tx Tx) error) error
}

// All matches every entity; use it with FindAll.
func All[T any](*T) bool { return true }
