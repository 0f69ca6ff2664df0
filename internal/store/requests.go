package store

import (
	"fmt"
	"time"

	"github.com/shrimpsizemoose/fypalloc/internal/models"
)

// requestRecord is the flat row form of models.Request; the kind-specific
// payload travels as JSON in details.
type requestRecord struct {
	ID           string               `db:"id"`
	Kind         models.RequestKind   `db:"kind"`
	Status       models.RequestStatus `db:"status"`
	StudentID    string               `db:"student_id"`
	ProjectID    string               `db:"project_id"`
	SupervisorID string               `db:"supervisor_id"`
	Details      string               `db:"details"`
	CreatedBy    string               `db:"created_by"`
	CreatedAt    time.Time            `db:"created_at"`
	ResolvedAt   *time.Time           `db:"resolved_at"`
	ResolvedBy   *string              `db:"resolved_by"`
}

func (r requestRecord) Key() string { return r.ID }

func toRecord(r *models.Request) (*requestRecord, error) {
	if r.Payload == nil {
		return nil, fmt.Errorf("request %s has no payload", r.ID)
	}
	details, err := models.EncodePayload(r.Payload)
	if err != nil {
		return nil, err
	}
	return &requestRecord{
		ID:           r.ID,
		Kind:         r.Kind(),
		Status:       r.Status,
		StudentID:    r.StudentID,
		ProjectID:    r.ProjectID,
		SupervisorID: r.SupervisorID,
		Details:      details,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt.UTC(),
		ResolvedAt:   utcPtr(r.ResolvedAt),
		ResolvedBy:   r.ResolvedBy,
	}, nil
}

func (rec *requestRecord) toRequest() (*models.Request, error) {
	payload, err := models.DecodePayload(rec.Kind, rec.Details)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", rec.ID, err)
	}
	return &models.Request{
		ID:           rec.ID,
		Status:       rec.Status,
		Payload:      payload,
		StudentID:    rec.StudentID,
		ProjectID:    rec.ProjectID,
		SupervisorID: rec.SupervisorID,
		CreatedBy:    rec.CreatedBy,
		CreatedAt:    rec.CreatedAt.UTC(),
		ResolvedAt:   utcPtr(rec.ResolvedAt),
		ResolvedBy:   rec.ResolvedBy,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type requestCollection struct {
	records collection[requestRecord]
}

func (c requestCollection) Get(id string) (*models.Request, error) {
	rec, err := c.records.Get(id)
	if err != nil {
		return nil, err
	}
	return rec.toRequest()
}

func (c requestCollection) Add(r *models.Request) error {
	if err := validateEntity(r); err != nil {
		return err
	}
	rec, err := toRecord(r)
	if err != nil {
		return err
	}
	return c.records.Add(rec)
}

func (c requestCollection) Update(r *models.Request) error {
	if err := validateEntity(r); err != nil {
		return err
	}
	rec, err := toRecord(r)
	if err != nil {
		return err
	}
	return c.records.Update(rec)
}

func (c requestCollection) FindAll(pred func(*models.Request) bool) ([]*models.Request, error) {
	recs, err := c.records.FindAll(nil)
	if err != nil {
		return nil, err
	}

	var out []*models.Request
	for _, rec := range recs {
		r, err := rec.toRequest()
		if err != nil {
			return nil, err
		}
		if pred == nil || pred(r) {
			out = append(out, r)
		}
	}
	return out, nil
}
