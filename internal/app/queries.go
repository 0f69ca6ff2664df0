package app

import (
	"github.com/shrimpsizemoose/fypalloc/internal/allocation"
	"github.com/shrimpsizemoose/fypalloc/internal/models"
	"github.com/shrimpsizemoose/fypalloc/internal/store"
)

func view[T any](s *Service, fn func(tx store.Tx) (T, error)) (T, error) {
	var out T
	err := s.Store.View(func(tx store.Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	return out, err
}

func (s *Service) Student(id string) (*models.Student, error) {
	return view(s, func(tx store.Tx) (*models.Student, error) {
		return tx.Students().Get(id)
	})
}

func (s *Service) Supervisor(id string) (*models.Supervisor, error) {
	return view(s, func(tx store.Tx) (*models.Supervisor, error) {
		return tx.Supervisors().Get(id)
	})
}

func (s *Service) Project(id string) (*models.Project, error) {
	return view(s, func(tx store.Tx) (*models.Project, error) {
		return tx.Projects().Get(id)
	})
}

func (s *Service) Request(id string) (*models.Request, error) {
	return view(s, func(tx store.Tx) (*models.Request, error) {
		return tx.Requests().Get(id)
	})
}

func (s *Service) StudentStatus(id string) (models.StudentStatus, error) {
	st, err := s.Student(id)
	if err != nil {
		return "", err
	}
	return st.Status, nil
}

func (s *Service) ProjectStatus(id string) (models.ProjectStatus, error) {
	p, err := s.Project(id)
	if err != nil {
		return "", err
	}
	return p.Status, nil
}

func (s *Service) RequestStatus(id string) (models.RequestStatus, error) {
	r, err := s.Request(id)
	if err != nil {
		return "", err
	}
	return r.Status, nil
}

// RequestsByStudent lists every request raised for the student, oldest first.
func (s *Service) RequestsByStudent(studentID string) ([]*models.Request, error) {
	return view(s, func(tx store.Tx) ([]*models.Request, error) {
		return tx.Requests().FindAll(func(r *models.Request) bool {
			return r.StudentID == studentID
		})
	})
}

func (s *Service) PendingRequests() ([]*models.Request, error) {
	return view(s, func(tx store.Tx) ([]*models.Request, error) {
		return tx.Requests().FindAll(func(r *models.Request) bool {
			return r.Status == models.RequestPending
		})
	})
}

// RequestsForSupervisor lists pending requests on the supervisor's projects.
func (s *Service) RequestsForSupervisor(supervisorID string) ([]*models.Request, error) {
	return view(s, func(tx store.Tx) ([]*models.Request, error) {
		return tx.Requests().FindAll(func(r *models.Request) bool {
			return r.Status == models.RequestPending && r.SupervisorID == supervisorID
		})
	})
}

func (s *Service) AvailableProjects() ([]*models.Project, error) {
	return view(s, func(tx store.Tx) ([]*models.Project, error) {
		return tx.Projects().FindAll(func(p *models.Project) bool {
			return p.Status == models.ProjectAvailable
		})
	})
}

func (s *Service) ProjectsBySupervisor(supervisorID string) ([]*models.Project, error) {
	return view(s, func(tx store.Tx) ([]*models.Project, error) {
		return tx.Projects().FindAll(func(p *models.Project) bool {
			return p.SupervisorID == supervisorID
		})
	})
}

func (s *Service) AllProjects() ([]*models.Project, error) {
	return view(s, func(tx store.Tx) ([]*models.Project, error) {
		return tx.Projects().FindAll(store.All[models.Project])
	})
}

func (s *Service) Students() ([]*models.Student, error) {
	return view(s, func(tx store.Tx) ([]*models.Student, error) {
		return tx.Students().FindAll(store.All[models.Student])
	})
}

func (s *Service) Supervisors() ([]*models.Supervisor, error) {
	return view(s, func(tx store.Tx) ([]*models.Supervisor, error) {
		return tx.Supervisors().FindAll(store.All[models.Supervisor])
	})
}

// AvailableSupervisors lists supervisors with room for another allocation.
func (s *Service) AvailableSupervisors() ([]*models.Supervisor, error) {
	return view(s, func(tx store.Tx) ([]*models.Supervisor, error) {
		return allocation.With(tx, s.Coordinator.Now()).AvailableSupervisors()
	})
}
