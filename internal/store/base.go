package store

import (
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/fypalloc/internal/models"
)

var (
	studentsTable = Table[models.Student]{
		Name:    "students",
		Entity:  "student",
		Columns: []string{"id", "name", "email", "status", "project_id", "supervisor_id"},
	}
	supervisorsTable = Table[models.Supervisor]{
		Name:    "supervisors",
		Entity:  "supervisor",
		Columns: []string{"id", "name", "email", "capacity"},
	}
	projectsTable = Table[models.Project]{
		Name:    "projects",
		Entity:  "project",
		Columns: []string{"id", "title", "supervisor_id", "student_id", "status"},
	}
	requestsTable = Table[requestRecord]{
		Name:   "requests",
		Entity: "request",
		Columns: []string{
			"id", "kind", "status", "student_id", "project_id", "supervisor_id",
			"details", "created_by", "created_at", "resolved_at", "resolved_by",
		},
		OrderBy: "created_at, id",
	}
)

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies the .sql files of fsys in name order, translating
// dialect if needed
func (s *BaseStore) ApplyMigrations(fsys fs.FS, translateSQL func(string) string) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		logger.Info.Printf("Applying migration: %s", name)
		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *BaseStore) WithTx(fn func(tx Tx) error) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(s.bind(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error.Printf("Rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *BaseStore) View(fn func(tx Tx) error) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(s.bind(tx))
}

func (s *BaseStore) bind(ext sqlx.Ext) *sqlTx {
	return &sqlTx{ext: ext, converter: s.Converter}
}

type sqlTx struct {
	ext       sqlx.Ext
	converter func(string) string
}

func (t *sqlTx) Students() Collection[models.Student] {
	return collection[models.Student]{table: studentsTable.with(t.converter), ext: t.ext}
}

func (t *sqlTx) Supervisors() Collection[models.Supervisor] {
	return collection[models.Supervisor]{table: supervisorsTable.with(t.converter), ext: t.ext}
}

func (t *sqlTx) Projects() Collection[models.Project] {
	return collection[models.Project]{table: projectsTable.with(t.converter), ext: t.ext}
}

func (t *sqlTx) Requests() Collection[models.Request] {
	return requestCollection{
		records: collection[requestRecord]{table: requestsTable.with(t.converter), ext: t.ext},
	}
}

func (t *sqlTx) NextRequestID() (string, error) {
	return nextID(t.ext, requestsTable.Name, "R")
}

func (t *sqlTx) NextProjectID() (string, error) {
	return nextID(t.ext, projectsTable.Name, "P")
}

func (t Table[T]) with(converter func(string) string) Table[T] {
	t.Converter = converter
	return t
}

// nextID returns prefix followed by one more than the largest numeric
// suffix among the ids of table that carry prefix.
func nextID(q sqlx.Queryer, table, prefix string) (string, error) {
	var ids []string
	if err := sqlx.Select(q, &ids, fmt.Sprintf("SELECT id FROM %s", table)); err != nil {
		return "", fmt.Errorf("failed to list %s ids: %w", table, err)
	}

	max := 0
	for _, id := range ids {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return prefix + strconv.Itoa(max+1), nil
}
