package allocation

import (
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/fypalloc/internal/apperrors"
	"github.com/shrimpsizemoose/fypalloc/internal/models"
	"github.com/shrimpsizemoose/fypalloc/internal/store"
)

// SystemActor resolves requests that an allocation change made obsolete.
const SystemActor = "system"

// Ops applies allocation rules inside one unit of work. It never commits;
// the caller's transaction does.
type Ops struct {
	tx  store.Tx
	now time.Time
}

func With(tx store.Tx, now time.Time) *Ops {
	return &Ops{tx: tx, now: now}
}

func (o *Ops) Tx() store.Tx {
	return o.tx
}

// Now is the timestamp shared by every change in the unit.
func (o *Ops) Now() time.Time {
	return o.now
}

// ConfirmRegistration binds the student to the project under supervisorID.
// The binding is refused when either side is already allocated or the
// supervisor has no room left.
func (o *Ops) ConfirmRegistration(studentID, projectID, supervisorID string) error {
	student, project, err := o.registrationTargets(studentID, projectID, supervisorID)
	if err != nil {
		return err
	}
	supervisorID = project.SupervisorID

	project.Status = models.ProjectAllocated
	project.StudentID = models.Ref(studentID)
	student.Status = models.StudentRegistered
	student.ProjectID = models.Ref(projectID)
	student.SupervisorID = models.Ref(supervisorID)

	if err := o.tx.Projects().Update(project); err != nil {
		return err
	}
	if err := o.tx.Students().Update(student); err != nil {
		return err
	}
	logger.Debug.Printf("Allocated project %s to %s under %s", projectID, studentID, supervisorID)

	return o.afterLoadChange()
}

// CheckRegistration reports why ConfirmRegistration would refuse, without
// changing anything.
func (o *Ops) CheckRegistration(studentID, projectID, supervisorID string) error {
	_, _, err := o.registrationTargets(studentID, projectID, supervisorID)
	return err
}

func (o *Ops) registrationTargets(studentID, projectID, supervisorID string) (*models.Student, *models.Project, error) {
	project, err := o.tx.Projects().Get(projectID)
	if err != nil {
		return nil, nil, err
	}
	student, err := o.tx.Students().Get(studentID)
	if err != nil {
		return nil, nil, err
	}
	if supervisorID == "" {
		supervisorID = project.SupervisorID
	}
	if _, err := o.tx.Supervisors().Get(supervisorID); err != nil {
		return nil, nil, err
	}

	if project.Status == models.ProjectAllocated {
		return nil, nil, apperrors.AlreadyAllocated("project", projectID, "held by %s", models.Deref(project.StudentID))
	}
	if student.Status == models.StudentRegistered {
		return nil, nil, apperrors.AlreadyAllocated("student", studentID, "registered to %s", models.Deref(student.ProjectID))
	}
	if project.SupervisorID != supervisorID {
		return nil, nil, apperrors.InvalidState("project", projectID, "supervised by %s, not %s", project.SupervisorID, supervisorID)
	}
	if project.StudentID != nil && *project.StudentID != studentID {
		return nil, nil, apperrors.InvalidState("project", projectID, "reserved for %s", *project.StudentID)
	}
	if student.ProjectID != nil && *student.ProjectID != projectID {
		return nil, nil, apperrors.InvalidState("student", studentID, "holds project %s", *student.ProjectID)
	}
	ok, err := o.hasCapacity(supervisorID, projectID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperrors.InvalidState("supervisor", supervisorID, "at full capacity")
	}
	return student, project, nil
}

// ReleaseReservation drops the hold on a RESERVED project, whatever became
// of the request that placed it. A registration still pending for it is
// settled as denied.
func (o *Ops) ReleaseReservation(projectID string) error {
	project, err := o.tx.Projects().Get(projectID)
	if err != nil {
		return err
	}
	if project.Status != models.ProjectReserved {
		return apperrors.InvalidState("project", projectID, "status is %s, not RESERVED", project.Status)
	}
	if err := o.CancelReservation(models.Deref(project.StudentID), projectID); err != nil {
		return err
	}
	logger.Debug.Printf("Released reservation on %s", projectID)

	_, err = o.SettlePendingRequests()
	return err
}

// ConfirmDeregistration unbinds a registered student from the project.
func (o *Ops) ConfirmDeregistration(studentID, projectID, supervisorID string) error {
	student, err := o.tx.Students().Get(studentID)
	if err != nil {
		return err
	}
	project, err := o.tx.Projects().Get(projectID)
	if err != nil {
		return err
	}
	if student.Status != models.StudentRegistered || !models.RefIs(student.ProjectID, projectID) {
		return apperrors.NotRegistered(studentID, projectID)
	}
	if !models.RefIs(project.StudentID, studentID) {
		return apperrors.InvalidState("project", projectID, "not held by %s", studentID)
	}
	if supervisorID != "" && supervisorID != project.SupervisorID {
		logger.Debug.Printf("Deregistering %s from %s: supervisor moved from %s to %s",
			studentID, projectID, supervisorID, project.SupervisorID)
	}

	return o.release(student, project, models.StudentDeregistered)
}

// DeallocateProject force-releases an ALLOCATED project without a request.
func (o *Ops) DeallocateProject(projectID string) error {
	project, err := o.tx.Projects().Get(projectID)
	if err != nil {
		return err
	}
	if project.Status != models.ProjectAllocated {
		return apperrors.InvalidState("project", projectID, "status is %s, not ALLOCATED", project.Status)
	}
	student, err := o.tx.Students().Get(models.Deref(project.StudentID))
	if err != nil {
		return err
	}
	return o.release(student, project, models.StudentDeregistered)
}

// CancelReservation drops a RESERVED hold, putting the student back to
// UNREGISTERED.
func (o *Ops) CancelReservation(studentID, projectID string) error {
	student, err := o.tx.Students().Get(studentID)
	if err != nil {
		return err
	}
	project, err := o.tx.Projects().Get(projectID)
	if err != nil {
		return err
	}
	if student.Status != models.StudentPending || !models.RefIs(student.ProjectID, projectID) {
		return apperrors.InvalidState("student", studentID, "has no pending hold on %s", projectID)
	}
	if project.Status != models.ProjectReserved || !models.RefIs(project.StudentID, studentID) {
		return apperrors.InvalidState("project", projectID, "not reserved for %s", studentID)
	}

	student.Release(models.StudentUnregistered)
	if err := o.tx.Students().Update(student); err != nil {
		return err
	}
	ok, err := o.hasCapacity(project.SupervisorID, projectID)
	if err != nil {
		return err
	}
	project.Release(ok)
	return o.tx.Projects().Update(project)
}

func (o *Ops) release(student *models.Student, project *models.Project, status models.StudentStatus) error {
	student.Release(status)
	if err := o.tx.Students().Update(student); err != nil {
		return err
	}

	ok, err := o.hasCapacity(project.SupervisorID, project.ID)
	if err != nil {
		return err
	}
	project.Release(ok)
	if err := o.tx.Projects().Update(project); err != nil {
		return err
	}
	logger.Debug.Printf("Released project %s from %s", project.ID, student.ID)

	return o.afterLoadChange()
}

// TransferSupervisor moves the project, and its holder if any, to
// newSupervisorID.
func (o *Ops) TransferSupervisor(projectID, newSupervisorID string) error {
	if _, err := o.tx.Supervisors().Get(newSupervisorID); err != nil {
		return err
	}
	project, err := o.tx.Projects().Get(projectID)
	if err != nil {
		return err
	}
	if project.SupervisorID == newSupervisorID {
		return nil
	}
	if project.Status == models.ProjectReserved {
		return apperrors.InvalidState("project", projectID, "has a pending registration")
	}
	if project.Status == models.ProjectAllocated {
		ok, err := o.hasCapacity(newSupervisorID, projectID)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.InvalidState("supervisor", newSupervisorID, "at full capacity")
		}
	}

	old := project.SupervisorID
	project.SupervisorID = newSupervisorID
	if err := o.tx.Projects().Update(project); err != nil {
		return err
	}

	if project.StudentID != nil {
		student, err := o.tx.Students().Get(*project.StudentID)
		if err != nil {
			return err
		}
		student.SupervisorID = models.Ref(newSupervisorID)
		if err := o.tx.Students().Update(student); err != nil {
			return err
		}
	}
	logger.Debug.Printf("Project %s moved from %s to %s", projectID, old, newSupervisorID)

	return o.afterLoadChange()
}

func (o *Ops) ChangeProjectTitle(projectID, title string) error {
	project, err := o.tx.Projects().Get(projectID)
	if err != nil {
		return err
	}
	project.Title = title
	return o.tx.Projects().Update(project)
}

// AllocateProject allocates directly, bypassing the request workflow.
func (o *Ops) AllocateProject(projectID, studentID string) error {
	project, err := o.tx.Projects().Get(projectID)
	if err != nil {
		return err
	}
	return o.ConfirmRegistration(studentID, projectID, project.SupervisorID)
}

// AddProject stores a new project of an existing supervisor. Its status is
// derived from the supervisor's load.
func (o *Ops) AddProject(project *models.Project) error {
	if _, err := o.tx.Supervisors().Get(project.SupervisorID); err != nil {
		return err
	}
	project.StudentID = nil
	ok, err := o.hasCapacity(project.SupervisorID, project.ID)
	if err != nil {
		return err
	}
	project.Status = models.FreeStatus(ok)
	return o.tx.Projects().Add(project)
}

// CreateProject is AddProject with a generated P<n> id.
func (o *Ops) CreateProject(title, supervisorID string) (*models.Project, error) {
	id, err := o.tx.NextProjectID()
	if err != nil {
		return nil, err
	}
	project := models.NewProject(id, title, supervisorID)
	if err := o.AddProject(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (o *Ops) SetSupervisorCapacity(supervisorID string, capacity int) error {
	sup, err := o.tx.Supervisors().Get(supervisorID)
	if err != nil {
		return err
	}
	n, err := o.allocatedCount(supervisorID, "")
	if err != nil {
		return err
	}
	if capacity < n {
		return apperrors.InvalidState("supervisor", supervisorID, "already supervises %d allocated projects", n)
	}
	sup.Capacity = capacity
	if err := o.tx.Supervisors().Update(sup); err != nil {
		return err
	}
	return o.afterLoadChange()
}

// afterLoadChange runs once a supervisor's load moved.
func (o *Ops) afterLoadChange() error {
	if _, err := o.RecomputeAllProjectAvailability(); err != nil {
		return err
	}
	_, err := o.SettlePendingRequests()
	return err
}
