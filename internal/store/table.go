package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/fypalloc/internal/apperrors"
)

// Table maps one entity type onto one SQL table. Columns must match the
// entity's db tags, the first column being the key.
type Table[T Entity] struct {
	Name      string
	Entity    string
	Columns   []string
	OrderBy   string
	Converter func(string) string
}

func (t Table[T]) convert(query string) string {
	if t.Converter == nil {
		return query
	}
	return t.Converter(query)
}

func (t Table[T]) key() string {
	return t.Columns[0]
}

func (t Table[T]) Get(q sqlx.Queryer, id string) (*T, error) {
	var v T
	query := t.convert(fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ?",
		strings.Join(t.Columns, ", "), t.Name, t.key(),
	))
	err := sqlx.Get(q, &v, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(t.Entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", t.Entity, id, err)
	}
	return &v, nil
}

func (t Table[T]) Exists(q sqlx.Queryer, id string) (bool, error) {
	var count int
	query := t.convert(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", t.Name, t.key()))
	if err := sqlx.Get(q, &count, query, id); err != nil {
		return false, fmt.Errorf("failed to check %s %s: %w", t.Entity, id, err)
	}
	return count > 0, nil
}

func (t Table[T]) Add(e sqlx.Ext, v *T) error {
	id := (*v).Key()
	exists, err := t.Exists(e, id)
	if err != nil {
		return err
	}
	if exists {
		return apperrors.AlreadyExists(t.Entity, id)
	}

	named := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		named[i] = ":" + c
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(t.Columns, ", "), strings.Join(named, ", "),
	)
	if _, err := sqlx.NamedExec(e, query, v); err != nil {
		return fmt.Errorf("failed to create %s %s: %w", t.Entity, id, err)
	}
	return nil
}

func (t Table[T]) Update(e sqlx.Ext, v *T) error {
	id := (*v).Key()
	sets := make([]string, 0, len(t.Columns)-1)
	for _, c := range t.Columns[1:] {
		sets = append(sets, fmt.Sprintf("%s = :%s", c, c))
	}
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = :%s",
		t.Name, strings.Join(sets, ", "), t.key(), t.key(),
	)
	res, err := sqlx.NamedExec(e, query, v)
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", t.Entity, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s %s: %w", t.Entity, id, err)
	}
	if n == 0 {
		return apperrors.NotFound(t.Entity, id)
	}
	return nil
}

func (t Table[T]) FindAll(q sqlx.Queryer, pred func(*T) bool) ([]*T, error) {
	order := t.OrderBy
	if order == "" {
		order = t.key()
	}

	var rows []T
	query := fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY %s",
		strings.Join(t.Columns, ", "), t.Name, order,
	)
	if err := sqlx.Select(q, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.Name, err)
	}

	var out []*T
	for i := range rows {
		if pred == nil || pred(&rows[i]) {
			out = append(out, &rows[i])
		}
	}
	return out, nil
}

// collection binds a table to the transaction it runs in.
type collection[T Entity] struct {
	table Table[T]
	ext   sqlx.Ext
}

func (c collection[T]) Get(id string) (*T, error) { return c.table.Get(c.ext, id) }

func (c collection[T]) Add(v *T) error {
	if err := validateEntity(v); err != nil {
		return err
	}
	return c.table.Add(c.ext, v)
}

func (c collection[T]) Update(v *T) error {
	if err := validateEntity(v); err != nil {
		return err
	}
	return c.table.Update(c.ext, v)
}

func (c collection[T]) FindAll(pred func(*T) bool) ([]*T, error) {
	return c.table.FindAll(c.ext, pred)
}

type validatable interface {
	Validate() error
}

func validateEntity(v any) error {
	if val, ok := v.(validatable); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("invalid entity: %w", err)
		}
	}
	return nil
}
