package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type RequestKind string

const (
	KindRegistration     RequestKind = "REGISTRATION"
	KindDeregistration   RequestKind = "DEREGISTRATION"
	KindTitleChange      RequestKind = "TITLE_CHANGE"
	KindSupervisorChange RequestKind = "SUPERVISOR_CHANGE"
)

// Payload is the kind-specific part of a request.
type Payload interface {
	Kind() RequestKind
}

type Registration struct{}

type Deregistration struct{}

type TitleChange struct {
	NewTitle string `json:"new_title" validate:"required,max=200"`
}

type SupervisorChange struct {
	NewSupervisorID string `json:"new_supervisor_id" validate:"required"`
}

func (Registration) Kind() RequestKind     { return KindRegistration }
func (Deregistration) Kind() RequestKind   { return KindDeregistration }
func (TitleChange) Kind() RequestKind      { return KindTitleChange }
func (SupervisorChange) Kind() RequestKind { return KindSupervisorChange }

// Request is immutable once created except for its status and resolution.
type Request struct {
	ID           string        `json:"id" validate:"required"`
	Status       RequestStatus `json:"status" validate:"required,oneof=PENDING APPROVED DENIED"`
	Payload      Payload       `json:"payload" validate:"required"`
	StudentID    string        `json:"student_id" validate:"required"`
	ProjectID    string        `json:"project_id" validate:"required"`
	SupervisorID string        `json:"supervisor_id" validate:"required"`
	CreatedBy    string        `json:"created_by" validate:"required"`
	CreatedAt    time.Time     `json:"created_at"`
	ResolvedAt   *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy   *string       `json:"resolved_by,omitempty"`
}

func (r Request) Key() string { return r.ID }

func (r *Request) Kind() RequestKind {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.Kind()
}

func (r *Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	return validate.Struct(r.Payload)
}

// Resolve moves a pending request to status, recording who resolved it.
func (r *Request) Resolve(status RequestStatus, actor string, at time.Time) error {
	if !r.Status.CanTransitionTo(status) {
		return fmt.Errorf("request %s cannot move from %s to %s", r.ID, r.Status, status)
	}
	r.Status = status
	r.ResolvedAt = &at
	r.ResolvedBy = Ref(actor)
	return nil
}

func EncodePayload(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s payload: %w", p.Kind(), err)
	}
	return string(data), nil
}

func DecodePayload(kind RequestKind, data string) (Payload, error) {
	var err error
	switch kind {
	case KindRegistration:
		return Registration{}, nil
	case KindDeregistration:
		return Deregistration{}, nil
	case KindTitleChange:
		var p TitleChange
		err = json.Unmarshal([]byte(data), &p)
		if err == nil {
			return p, nil
		}
	case KindSupervisorChange:
		var p SupervisorChange
		err = json.Unmarshal([]byte(data), &p)
		if err == nil {
			return p, nil
		}
	default:
		return nil, fmt.Errorf("unknown request kind %q", kind)
	}
	return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
}
