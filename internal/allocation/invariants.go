package allocation

import (
	"fmt"

	"github.com/shrimpsizemoose/fypalloc/internal/models"
	"github.com/shrimpsizemoose/fypalloc/internal/store"
)

type Violation struct {
	Entity string
	ID     string
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s: %s", v.Entity, v.ID, v.Reason)
}

// CheckInvariants walks the whole store and reports every place where the
// student, project and request records disagree with each other.
func CheckInvariants(tx store.Tx) ([]Violation, error) {
	students, err := tx.Students().FindAll(store.All[models.Student])
	if err != nil {
		return nil, fmt.Errorf("failed to load students: %w", err)
	}
	supervisors, err := tx.Supervisors().FindAll(store.All[models.Supervisor])
	if err != nil {
		return nil, fmt.Errorf("failed to load supervisors: %w", err)
	}
	projects, err := tx.Projects().FindAll(store.All[models.Project])
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}
	requests, err := tx.Requests().FindAll(func(r *models.Request) bool {
		return r.Status == models.RequestPending
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load requests: %w", err)
	}

	studentByID := make(map[string]*models.Student, len(students))
	for _, s := range students {
		studentByID[s.ID] = s
	}
	projectByID := make(map[string]*models.Project, len(projects))
	load := make(map[string]int)
	for _, p := range projects {
		projectByID[p.ID] = p
		if p.Status == models.ProjectAllocated {
			load[p.SupervisorID]++
		}
	}
	supervisorByID := make(map[string]*models.Supervisor, len(supervisors))
	for _, s := range supervisors {
		supervisorByID[s.ID] = s
	}

	var out []Violation
	add := func(entity, id, format string, args ...any) {
		out = append(out, Violation{Entity: entity, ID: id, Reason: fmt.Sprintf(format, args...)})
	}

	for _, s := range students {
		if !s.Status.Holding() {
			if s.ProjectID != nil || s.SupervisorID != nil {
				add("student", s.ID, "%s but still references a project or supervisor", s.Status)
			}
			continue
		}
		if s.ProjectID == nil {
			add("student", s.ID, "%s without a project", s.Status)
			continue
		}
		p, ok := projectByID[*s.ProjectID]
		if !ok {
			add("student", s.ID, "references missing project %s", *s.ProjectID)
			continue
		}
		if !models.RefIs(p.StudentID, s.ID) {
			add("student", s.ID, "holds project %s which names %q", p.ID, models.Deref(p.StudentID))
		}
		switch s.Status {
		case models.StudentPending:
			if p.Status != models.ProjectReserved {
				add("student", s.ID, "PENDING but project %s is %s", p.ID, p.Status)
			}
		case models.StudentRegistered:
			if p.Status != models.ProjectAllocated {
				add("student", s.ID, "REGISTERED but project %s is %s", p.ID, p.Status)
			}
			if !models.RefIs(s.SupervisorID, p.SupervisorID) {
				add("student", s.ID, "supervisor %q differs from project supervisor %s", models.Deref(s.SupervisorID), p.SupervisorID)
			}
		}
	}

	for _, p := range projects {
		sup, ok := supervisorByID[p.SupervisorID]
		if !ok {
			add("project", p.ID, "references missing supervisor %s", p.SupervisorID)
			continue
		}
		if !p.Status.Held() {
			if p.StudentID != nil {
				add("project", p.ID, "%s but names student %s", p.Status, *p.StudentID)
			}
			if want := models.FreeStatus(sup.HasCapacity(load[sup.ID])); p.Status != want {
				add("project", p.ID, "is %s, supervisor %s load %d/%d implies %s", p.Status, sup.ID, load[sup.ID], sup.Capacity, want)
			}
			continue
		}
		if p.StudentID == nil {
			add("project", p.ID, "%s without a student", p.Status)
			continue
		}
		s, ok := studentByID[*p.StudentID]
		if !ok {
			add("project", p.ID, "references missing student %s", *p.StudentID)
			continue
		}
		if !models.RefIs(s.ProjectID, p.ID) {
			add("project", p.ID, "names student %s who holds %q", s.ID, models.Deref(s.ProjectID))
		}
	}

	for _, sup := range supervisors {
		if load[sup.ID] > sup.Capacity {
			add("supervisor", sup.ID, "has %d allocated projects, capacity %d", load[sup.ID], sup.Capacity)
		}
	}

	for _, r := range requests {
		s, sok := studentByID[r.StudentID]
		p, pok := projectByID[r.ProjectID]
		if !sok || !pok {
			add("request", r.ID, "references missing student or project")
			continue
		}
		if !PendingConsistent(r, s, p) {
			add("request", r.ID, "pending %s does not match student %s (%s) and project %s (%s)",
				r.Kind(), s.ID, s.Status, p.ID, p.Status)
		}
	}

	return out, nil
}
