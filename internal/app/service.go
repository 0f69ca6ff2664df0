package app

import (
	"context"
	"fmt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/fypalloc/internal/allocation"
	"github.com/shrimpsizemoose/fypalloc/internal/lifecycle"
	"github.com/shrimpsizemoose/fypalloc/internal/lock"
	"github.com/shrimpsizemoose/fypalloc/internal/models"
	"github.com/shrimpsizemoose/fypalloc/internal/store"
)

// Service is the single entry point for allocation work. Every mutation
// takes the entity locks it touches before its unit of work starts.
type Service struct {
	Config      *Config
	Store       store.EntityStore
	Locks       lock.Locker
	Coordinator *allocation.Coordinator
	Engine      *lifecycle.Engine
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	s, err := NewStore(config.Database.DSN, config.Database.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	var locker lock.Locker = lock.NewLocal()
	if config.Lock.RedisURL != "" {
		locker, err = lock.NewRedis(config.Lock.RedisURL, config.LockTTL())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to init locks: %w", err)
		}
		logger.Info.Println("Using redis entity locks")
	}

	return NewServiceWith(config, s, locker), nil
}

// NewServiceWith wires a service around an already opened store.
func NewServiceWith(config *Config, s store.EntityStore, locker lock.Locker) *Service {
	coord := allocation.NewCoordinator(s, allocation.Config{
		VerifyInvariants: config.Allocation.VerifyInvariants,
		DefaultCapacity:  config.Allocation.DefaultCapacity,
	})
	return &Service{
		Config:      config,
		Store:       s,
		Locks:       locker,
		Coordinator: coord,
		Engine:      lifecycle.NewEngine(coord),
	}
}

func (s *Service) locked(ctx context.Context, keys []string, fn func() error) error {
	unlock, err := s.Locks.Lock(ctx, keys...)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func lockedResult[T any](ctx context.Context, s *Service, keys []string, fn func() (T, error)) (T, error) {
	var out T
	err := s.locked(ctx, keys, func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

func pairKeys(projectID, studentID string) []string {
	return []string{lock.ProjectKey(projectID), lock.StudentKey(studentID)}
}

// createKeys also holds the request id sequence, which is read as max+1
// inside the unit of work.
func createKeys(keys ...string) []string {
	return append(keys, lock.SequenceKey("request"))
}

// requestKeys locks whatever the request will touch on resolution.
func (s *Service) requestKeys(requestID string) ([]string, error) {
	req, err := s.Request(requestID)
	if err != nil {
		return nil, err
	}
	keys := pairKeys(req.ProjectID, req.StudentID)
	return keys, nil
}

func (s *Service) CreateRegistrationRequest(ctx context.Context, projectID, studentID string) (*models.Request, error) {
	return lockedResult(ctx, s, createKeys(pairKeys(projectID, studentID)...), func() (*models.Request, error) {
		return s.Engine.CreateRegistrationRequest(projectID, studentID)
	})
}

func (s *Service) CreateDeregistrationRequest(ctx context.Context, projectID, studentID string) (*models.Request, error) {
	return lockedResult(ctx, s, createKeys(pairKeys(projectID, studentID)...), func() (*models.Request, error) {
		return s.Engine.CreateDeregistrationRequest(projectID, studentID)
	})
}

func (s *Service) CreateTitleChangeRequest(ctx context.Context, projectID, studentID, newTitle string) (*models.Request, error) {
	return lockedResult(ctx, s, createKeys(pairKeys(projectID, studentID)...), func() (*models.Request, error) {
		return s.Engine.CreateTitleChangeRequest(projectID, studentID, newTitle)
	})
}

func (s *Service) CreateSupervisorChangeRequest(ctx context.Context, projectID, requesterID, newSupervisorID string) (*models.Request, error) {
	return lockedResult(ctx, s, createKeys(lock.ProjectKey(projectID)), func() (*models.Request, error) {
		return s.Engine.CreateSupervisorChangeRequest(projectID, requesterID, newSupervisorID)
	})
}

type resolveFunc func(requestID, actor string) (*models.Request, error)

func (s *Service) resolve(ctx context.Context, requestID, actor string, fn resolveFunc) (*models.Request, error) {
	keys, err := s.requestKeys(requestID)
	if err != nil {
		return nil, err
	}
	return lockedResult(ctx, s, keys, func() (*models.Request, error) {
		return fn(requestID, actor)
	})
}

func (s *Service) Approve(ctx context.Context, requestID, actor string) (*models.Request, error) {
	return s.resolve(ctx, requestID, actor, s.Engine.Approve)
}

func (s *Service) ApproveAndApply(ctx context.Context, requestID, actor string) (*models.Request, error) {
	return s.resolve(ctx, requestID, actor, s.Engine.ApproveAndApply)
}

func (s *Service) Reject(ctx context.Context, requestID, actor string) (*models.Request, error) {
	return s.resolve(ctx, requestID, actor, s.Engine.Reject)
}

func (s *Service) Cancel(ctx context.Context, requestID, requesterID string) (*models.Request, error) {
	return s.resolve(ctx, requestID, requesterID, s.Engine.Cancel)
}

func (s *Service) ConfirmRegistration(ctx context.Context, studentID, projectID, supervisorID string) error {
	return s.locked(ctx, pairKeys(projectID, studentID), func() error {
		return s.Coordinator.ConfirmRegistration(studentID, projectID, supervisorID)
	})
}

func (s *Service) ConfirmDeregistration(ctx context.Context, studentID, projectID, supervisorID string) error {
	return s.locked(ctx, pairKeys(projectID, studentID), func() error {
		return s.Coordinator.ConfirmDeregistration(studentID, projectID, supervisorID)
	})
}

func (s *Service) AllocateProject(ctx context.Context, projectID, studentID string) error {
	return s.locked(ctx, pairKeys(projectID, studentID), func() error {
		return s.Coordinator.AllocateProject(projectID, studentID)
	})
}

func (s *Service) DeallocateProject(ctx context.Context, projectID string) error {
	keys := []string{lock.ProjectKey(projectID)}
	if p, err := s.Project(projectID); err == nil && p.StudentID != nil {
		keys = append(keys, lock.StudentKey(*p.StudentID))
	}
	return s.locked(ctx, keys, func() error {
		return s.Coordinator.DeallocateProject(projectID)
	})
}

func (s *Service) ReleaseReservation(ctx context.Context, projectID string) error {
	keys := []string{lock.ProjectKey(projectID)}
	if p, err := s.Project(projectID); err == nil && p.StudentID != nil {
		keys = append(keys, lock.StudentKey(*p.StudentID))
	}
	return s.locked(ctx, keys, func() error {
		return s.Coordinator.ReleaseReservation(projectID)
	})
}

func (s *Service) TransferSupervisor(ctx context.Context, projectID, newSupervisorID string) error {
	return s.locked(ctx, []string{lock.ProjectKey(projectID)}, func() error {
		return s.Coordinator.TransferSupervisor(projectID, newSupervisorID)
	})
}

func (s *Service) ChangeProjectTitle(ctx context.Context, projectID, title string) error {
	return s.locked(ctx, []string{lock.ProjectKey(projectID)}, func() error {
		return s.Coordinator.ChangeProjectTitle(projectID, title)
	})
}

func (s *Service) CreateProject(ctx context.Context, title, supervisorID string) (*models.Project, error) {
	return lockedResult(ctx, s, []string{lock.SequenceKey("project")}, func() (*models.Project, error) {
		return s.Coordinator.CreateProject(title, supervisorID)
	})
}

func (s *Service) AddProject(project *models.Project) error {
	return s.Coordinator.AddProject(project)
}

func (s *Service) AddStudent(id, name, email string) (*models.Student, error) {
	return s.Coordinator.AddStudent(id, name, email)
}

func (s *Service) AddSupervisor(id, name, email string, capacity int) (*models.Supervisor, error) {
	return s.Coordinator.AddSupervisor(id, name, email, capacity)
}

func (s *Service) SetSupervisorCapacity(supervisorID string, capacity int) error {
	return s.Coordinator.SetSupervisorCapacity(supervisorID, capacity)
}

func (s *Service) RecomputeAllProjectAvailability() (int, error) {
	return s.Coordinator.RecomputeAllProjectAvailability()
}

func (s *Service) CheckInvariants() ([]allocation.Violation, error) {
	return s.Coordinator.CheckInvariants()
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Locks.Close(); err != nil {
		errs = append(errs, fmt.Errorf("locks: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
