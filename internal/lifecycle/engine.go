// Package lifecycle creates requests and drives them from PENDING to a
// terminal status.
package lifecycle

import (
	"fmt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/fypalloc/internal/allocation"
	"github.com/shrimpsizemoose/fypalloc/internal/apperrors"
	"github.com/shrimpsizemoose/fypalloc/internal/metrics"
	"github.com/shrimpsizemoose/fypalloc/internal/models"
	"github.com/shrimpsizemoose/fypalloc/internal/store"
)

type Engine struct {
	coord *allocation.Coordinator
}

func NewEngine(coord *allocation.Coordinator) *Engine {
	return &Engine{coord: coord}
}

// CreateRegistrationRequest reserves projectID for studentID until a
// coordinator decides.
func (e *Engine) CreateRegistrationRequest(projectID, studentID string) (*models.Request, error) {
	var req *models.Request
	err := e.coord.Run("create_registration_request", func(ops *allocation.Ops) error {
		tx := ops.Tx()
		student, err := tx.Students().Get(studentID)
		if err != nil {
			return err
		}
		project, err := tx.Projects().Get(projectID)
		if err != nil {
			return err
		}
		if !student.Status.CanTransitionTo(models.StudentPending) {
			return apperrors.InvalidState("student", studentID, "status is %s", student.Status)
		}
		if project.Status != models.ProjectAvailable {
			return apperrors.InvalidState("project", projectID, "status is %s, not AVAILABLE", project.Status)
		}

		student.Status = models.StudentPending
		student.ProjectID = models.Ref(projectID)
		project.Status = models.ProjectReserved
		project.StudentID = models.Ref(studentID)
		if err := tx.Students().Update(student); err != nil {
			return err
		}
		if err := tx.Projects().Update(project); err != nil {
			return err
		}

		req, err = addRequest(ops, models.Registration{}, studentID, projectID, project.SupervisorID, studentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// CreateDeregistrationRequest asks to release a confirmed allocation. Nothing
// changes until the request is applied.
func (e *Engine) CreateDeregistrationRequest(projectID, studentID string) (*models.Request, error) {
	var req *models.Request
	err := e.coord.Run("create_deregistration_request", func(ops *allocation.Ops) error {
		project, err := registeredProject(ops.Tx(), projectID, studentID)
		if err != nil {
			return err
		}
		if err := noPending(ops.Tx(), models.KindDeregistration, studentID, projectID); err != nil {
			return err
		}
		req, err = addRequest(ops, models.Deregistration{}, studentID, projectID, project.SupervisorID, studentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (e *Engine) CreateTitleChangeRequest(projectID, studentID, newTitle string) (*models.Request, error) {
	var req *models.Request
	err := e.coord.Run("create_title_change_request", func(ops *allocation.Ops) error {
		project, err := registeredProject(ops.Tx(), projectID, studentID)
		if err != nil {
			return err
		}
		if err := noPending(ops.Tx(), models.KindTitleChange, studentID, projectID); err != nil {
			return err
		}
		payload := models.TitleChange{NewTitle: newTitle}
		req, err = addRequest(ops, payload, studentID, projectID, project.SupervisorID, studentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// CreateSupervisorChangeRequest is raised by the project's current
// supervisor to hand an allocated project over to newSupervisorID.
func (e *Engine) CreateSupervisorChangeRequest(projectID, requesterID, newSupervisorID string) (*models.Request, error) {
	var req *models.Request
	err := e.coord.Run("create_supervisor_change_request", func(ops *allocation.Ops) error {
		tx := ops.Tx()
		project, err := tx.Projects().Get(projectID)
		if err != nil {
			return err
		}
		if _, err := tx.Supervisors().Get(newSupervisorID); err != nil {
			return err
		}
		if project.SupervisorID != requesterID {
			return apperrors.InvalidState("project", projectID, "not supervised by %s", requesterID)
		}
		if newSupervisorID == requesterID {
			return apperrors.InvalidState("project", projectID, "already supervised by %s", newSupervisorID)
		}
		if project.Status != models.ProjectAllocated {
			return apperrors.InvalidState("project", projectID, "status is %s, not ALLOCATED", project.Status)
		}
		studentID := models.Deref(project.StudentID)
		if err := noPending(tx, models.KindSupervisorChange, studentID, projectID); err != nil {
			return err
		}
		payload := models.SupervisorChange{NewSupervisorID: newSupervisorID}
		req, err = addRequest(ops, payload, studentID, projectID, requesterID, requesterID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Approve marks the request APPROVED and nothing else. The matching
// coordinator confirmation is a separate step. A registration that could not
// be confirmed right now is refused and stays PENDING.
func (e *Engine) Approve(requestID, actor string) (*models.Request, error) {
	var req *models.Request
	err := e.coord.Run("approve_request", func(ops *allocation.Ops) error {
		var err error
		req, err = resolve(ops, requestID, models.RequestApproved, actor)
		if err != nil {
			return err
		}
		if req.Kind() == models.KindRegistration {
			return ops.CheckRegistration(req.StudentID, req.ProjectID, req.SupervisorID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ApproveAndApply approves the request and applies its effect in the same
// unit. If the effect cannot be applied the request stays PENDING.
func (e *Engine) ApproveAndApply(requestID, actor string) (*models.Request, error) {
	var req *models.Request
	err := e.coord.Run("approve_and_apply", func(ops *allocation.Ops) error {
		var err error
		req, err = resolve(ops, requestID, models.RequestApproved, actor)
		if err != nil {
			return err
		}
		return apply(ops, req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Reject denies the request. A rejected registration gives the reserved
// project back.
func (e *Engine) Reject(requestID, actor string) (*models.Request, error) {
	var req *models.Request
	err := e.coord.Run("reject_request", func(ops *allocation.Ops) error {
		var err error
		req, err = resolve(ops, requestID, models.RequestDenied, actor)
		if err != nil {
			return err
		}
		return withdraw(ops, req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Cancel lets whoever raised the request withdraw it while it is pending.
func (e *Engine) Cancel(requestID, requesterID string) (*models.Request, error) {
	var req *models.Request
	err := e.coord.Run("cancel_request", func(ops *allocation.Ops) error {
		current, err := ops.Tx().Requests().Get(requestID)
		if err != nil {
			return err
		}
		if current.CreatedBy != requesterID {
			return apperrors.InvalidState("request", requestID, "raised by %s, not %s", current.CreatedBy, requesterID)
		}
		req, err = resolve(ops, requestID, models.RequestDenied, requesterID)
		if err != nil {
			return err
		}
		return withdraw(ops, req)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func apply(ops *allocation.Ops, req *models.Request) error {
	switch p := req.Payload.(type) {
	case models.Registration:
		return ops.ConfirmRegistration(req.StudentID, req.ProjectID, req.SupervisorID)
	case models.Deregistration:
		return ops.ConfirmDeregistration(req.StudentID, req.ProjectID, req.SupervisorID)
	case models.TitleChange:
		return ops.ChangeProjectTitle(req.ProjectID, p.NewTitle)
	case models.SupervisorChange:
		project, err := ops.Tx().Projects().Get(req.ProjectID)
		if err != nil {
			return err
		}
		if project.SupervisorID != req.SupervisorID {
			return apperrors.InvalidState("project", req.ProjectID, "now supervised by %s", project.SupervisorID)
		}
		return ops.TransferSupervisor(req.ProjectID, p.NewSupervisorID)
	}
	return fmt.Errorf("request %s has unsupported kind %q", req.ID, req.Kind())
}

// withdraw undoes what creating the request changed. Only registrations
// touch entities up front.
func withdraw(ops *allocation.Ops, req *models.Request) error {
	if req.Kind() != models.KindRegistration {
		return nil
	}
	return ops.CancelReservation(req.StudentID, req.ProjectID)
}

func resolve(ops *allocation.Ops, requestID string, status models.RequestStatus, actor string) (*models.Request, error) {
	req, err := ops.Tx().Requests().Get(requestID)
	if err != nil {
		return nil, err
	}
	if req.Status.Resolved() {
		return nil, apperrors.AlreadyResolved(requestID, string(req.Status))
	}
	if err := req.Resolve(status, actor, ops.Now()); err != nil {
		return nil, err
	}
	if err := ops.Tx().Requests().Update(req); err != nil {
		return nil, err
	}

	metrics.RequestsResolved.WithLabelValues(string(req.Kind()), string(status)).Inc()
	logger.Info.Printf("Request %s (%s) %s by %s", req.ID, req.Kind(), status, actor)
	return req, nil
}

func addRequest(ops *allocation.Ops, payload models.Payload, studentID, projectID, supervisorID, createdBy string) (*models.Request, error) {
	id, err := ops.Tx().NextRequestID()
	if err != nil {
		return nil, err
	}
	req := &models.Request{
		ID:           id,
		Status:       models.RequestPending,
		Payload:      payload,
		StudentID:    studentID,
		ProjectID:    projectID,
		SupervisorID: supervisorID,
		CreatedBy:    createdBy,
		CreatedAt:    ops.Now(),
	}
	if err := ops.Tx().Requests().Add(req); err != nil {
		return nil, err
	}

	metrics.RequestsCreated.WithLabelValues(string(req.Kind())).Inc()
	logger.Info.Printf("Request %s (%s) created by %s for project %s", req.ID, req.Kind(), createdBy, projectID)
	return req, nil
}

func registeredProject(tx store.Tx, projectID, studentID string) (*models.Project, error) {
	student, err := tx.Students().Get(studentID)
	if err != nil {
		return nil, err
	}
	project, err := tx.Projects().Get(projectID)
	if err != nil {
		return nil, err
	}
	if student.Status != models.StudentRegistered || !models.RefIs(student.ProjectID, projectID) {
		return nil, apperrors.NotRegistered(studentID, projectID)
	}
	return project, nil
}

func noPending(tx store.Tx, kind models.RequestKind, studentID, projectID string) error {
	existing, err := tx.Requests().FindAll(func(r *models.Request) bool {
		return r.Status == models.RequestPending && r.Kind() == kind &&
			r.StudentID == studentID && r.ProjectID == projectID
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return apperrors.InvalidState("request", existing[0].ID, "%s already pending for %s", kind, studentID)
	}
	return nil
}
