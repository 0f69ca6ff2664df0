package allocation

import (
	"errors"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/fypalloc/internal/apperrors"
	"github.com/shrimpsizemoose/fypalloc/internal/metrics"
	"github.com/shrimpsizemoose/fypalloc/internal/models"
	"github.com/shrimpsizemoose/fypalloc/internal/store"
)

// Coordinator runs allocation changes as atomic units against the store.
type Coordinator struct {
	store           store.EntityStore
	verify          bool
	defaultCapacity int
	now             func() time.Time
}

type Config struct {
	// VerifyInvariants checks the whole store before every commit.
	VerifyInvariants bool
	DefaultCapacity  int
}

func NewCoordinator(s store.EntityStore, cfg Config) *Coordinator {
	if cfg.DefaultCapacity <= 0 {
		cfg.DefaultCapacity = models.DefaultCapacity
	}
	return &Coordinator{
		store:           s,
		verify:          cfg.VerifyInvariants,
		defaultCapacity: cfg.DefaultCapacity,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for resolution timestamps.
func (c *Coordinator) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Coordinator) Now() time.Time {
	return c.now()
}

func (c *Coordinator) Store() store.EntityStore {
	return c.store
}

// Run executes fn as one unit of work. Either every change fn made is
// committed or none is.
func (c *Coordinator) Run(op string, fn func(ops *Ops) error) error {
	start := time.Now()
	err := c.store.WithTx(func(tx store.Tx) error {
		if err := fn(With(tx, c.now())); err != nil {
			return err
		}
		if !c.verify {
			return nil
		}
		return c.verifyBeforeCommit(op, tx)
	})

	outcome := "ok"
	switch {
	case err == nil:
		logger.Debug.Printf("%s committed", op)
	case isDomainError(err):
		outcome = "rejected"
		logger.Debug.Printf("%s rejected: %v", op, err)
	default:
		outcome = "error"
		logger.Error.Printf("%s aborted: %v", op, err)
	}
	metrics.OperationDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())

	return err
}

func (c *Coordinator) verifyBeforeCommit(op string, tx store.Tx) error {
	violations, err := CheckInvariants(tx)
	if err != nil {
		return fmt.Errorf("failed to check invariants: %w", err)
	}
	if len(violations) == 0 {
		return nil
	}
	for _, v := range violations {
		logger.Error.Printf("Invariant violated by %s: %s", op, v)
	}
	metrics.InvariantViolations.WithLabelValues(op).Add(float64(len(violations)))
	return &apperrors.StateError{
		Err:     apperrors.ErrInconsistent,
		Message: fmt.Sprintf("%s left %d violation(s), first: %s", op, len(violations), violations[0]),
	}
}

func isDomainError(err error) bool {
	var se *apperrors.StateError
	return errors.As(err, &se) && !errors.Is(err, apperrors.ErrInconsistent)
}

func (c *Coordinator) ConfirmRegistration(studentID, projectID, supervisorID string) error {
	return c.Run("confirm_registration", func(ops *Ops) error {
		return ops.ConfirmRegistration(studentID, projectID, supervisorID)
	})
}

func (c *Coordinator) ConfirmDeregistration(studentID, projectID, supervisorID string) error {
	return c.Run("confirm_deregistration", func(ops *Ops) error {
		return ops.ConfirmDeregistration(studentID, projectID, supervisorID)
	})
}

func (c *Coordinator) DeallocateProject(projectID string) error {
	return c.Run("deallocate_project", func(ops *Ops) error {
		return ops.DeallocateProject(projectID)
	})
}

func (c *Coordinator) ReleaseReservation(projectID string) error {
	return c.Run("release_reservation", func(ops *Ops) error {
		return ops.ReleaseReservation(projectID)
	})
}

func (c *Coordinator) TransferSupervisor(projectID, newSupervisorID string) error {
	return c.Run("transfer_supervisor", func(ops *Ops) error {
		return ops.TransferSupervisor(projectID, newSupervisorID)
	})
}

func (c *Coordinator) RecomputeAllProjectAvailability() (int, error) {
	var changed int
	err := c.Run("recompute_availability", func(ops *Ops) error {
		var err error
		changed, err = ops.RecomputeAllProjectAvailability()
		return err
	})
	return changed, err
}

func (c *Coordinator) CreateProject(title, supervisorID string) (*models.Project, error) {
	var project *models.Project
	err := c.Run("create_project", func(ops *Ops) error {
		var err error
		project, err = ops.CreateProject(title, supervisorID)
		return err
	})
	return project, err
}

func (c *Coordinator) AddProject(project *models.Project) error {
	return c.Run("add_project", func(ops *Ops) error {
		return ops.AddProject(project)
	})
}

func (c *Coordinator) ChangeProjectTitle(projectID, title string) error {
	return c.Run("change_project_title", func(ops *Ops) error {
		return ops.ChangeProjectTitle(projectID, title)
	})
}

func (c *Coordinator) AllocateProject(projectID, studentID string) error {
	return c.Run("allocate_project", func(ops *Ops) error {
		return ops.AllocateProject(projectID, studentID)
	})
}

func (c *Coordinator) SetSupervisorCapacity(supervisorID string, capacity int) error {
	return c.Run("set_capacity", func(ops *Ops) error {
		return ops.SetSupervisorCapacity(supervisorID, capacity)
	})
}

// AddStudent enrolls a new student as UNREGISTERED.
func (c *Coordinator) AddStudent(id, name, email string) (*models.Student, error) {
	student := models.NewStudent(id, name, email)
	err := c.Run("add_student", func(ops *Ops) error {
		return ops.Tx().Students().Add(student)
	})
	return student, err
}

// AddSupervisor enrolls a supervisor. A capacity of zero or less means the
// configured default.
func (c *Coordinator) AddSupervisor(id, name, email string, capacity int) (*models.Supervisor, error) {
	if capacity <= 0 {
		capacity = c.defaultCapacity
	}
	sup := models.NewSupervisor(id, name, email, capacity)
	err := c.Run("add_supervisor", func(ops *Ops) error {
		return ops.Tx().Supervisors().Add(sup)
	})
	return sup, err
}

// CheckInvariants reports violations in the committed state.
func (c *Coordinator) CheckInvariants() ([]Violation, error) {
	var out []Violation
	err := c.store.View(func(tx store.Tx) error {
		var err error
		out, err = CheckInvariants(tx)
		return err
	})
	return out, err
}
