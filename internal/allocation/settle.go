package allocation

import (
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/fypalloc/internal/metrics"
	"github.com/shrimpsizemoose/fypalloc/internal/models"
)

// SettlePendingRequests resolves pending requests whose student and project
// no longer match what the request expects. A registration whose student
// ended up allocated to the requested project is approved, anything else
// stale is denied. Resolved requests are never touched.
func (o *Ops) SettlePendingRequests() (int, error) {
	pending, err := o.tx.Requests().FindAll(func(r *models.Request) bool {
		return r.Status == models.RequestPending
	})
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, req := range pending {
		student, err := o.tx.Students().Get(req.StudentID)
		if err != nil {
			return settled, err
		}
		project, err := o.tx.Projects().Get(req.ProjectID)
		if err != nil {
			return settled, err
		}
		if PendingConsistent(req, student, project) {
			continue
		}

		status := models.RequestDenied
		if req.Kind() == models.KindRegistration &&
			student.Status == models.StudentRegistered && models.RefIs(student.ProjectID, req.ProjectID) {
			status = models.RequestApproved
		}
		if err := req.Resolve(status, SystemActor, o.now); err != nil {
			return settled, err
		}
		if err := o.tx.Requests().Update(req); err != nil {
			return settled, err
		}
		metrics.RequestsResolved.WithLabelValues(string(req.Kind()), string(status)).Inc()
		logger.Info.Printf("Request %s (%s) settled as %s", req.ID, req.Kind(), status)
		settled++
	}
	return settled, nil
}

// PendingConsistent reports whether a pending request still describes the
// current student and project.
func PendingConsistent(req *models.Request, student *models.Student, project *models.Project) bool {
	switch req.Kind() {
	case models.KindRegistration:
		return student.Status == models.StudentPending &&
			models.RefIs(student.ProjectID, req.ProjectID) &&
			project.Status == models.ProjectReserved &&
			models.RefIs(project.StudentID, req.StudentID)
	case models.KindDeregistration, models.KindTitleChange:
		return student.Status == models.StudentRegistered &&
			models.RefIs(student.ProjectID, req.ProjectID) &&
			project.Status == models.ProjectAllocated
	case models.KindSupervisorChange:
		return project.Status == models.ProjectAllocated &&
			models.RefIs(project.StudentID, req.StudentID)
	}
	return false
}
