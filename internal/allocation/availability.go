package allocation

import (
	"fmt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/fypalloc/internal/apperrors"
	"github.com/shrimpsizemoose/fypalloc/internal/metrics"
	"github.com/shrimpsizemoose/fypalloc/internal/models"
	"github.com/shrimpsizemoose/fypalloc/internal/store"
)

// allocatedCount returns how many projects of supervisorID are ALLOCATED,
// not counting the project exclude.
func (o *Ops) allocatedCount(supervisorID, exclude string) (int, error) {
	projects, err := o.tx.Projects().FindAll(func(p *models.Project) bool {
		return p.SupervisorID == supervisorID && p.Status == models.ProjectAllocated && p.ID != exclude
	})
	if err != nil {
		return 0, err
	}
	return len(projects), nil
}

func (o *Ops) hasCapacity(supervisorID, exclude string) (bool, error) {
	sup, err := o.tx.Supervisors().Get(supervisorID)
	if err != nil {
		return false, err
	}
	n, err := o.allocatedCount(supervisorID, exclude)
	if err != nil {
		return false, err
	}
	return sup.HasCapacity(n), nil
}

// RecomputeAllProjectAvailability flips every AVAILABLE or UNAVAILABLE
// project according to its supervisor's remaining capacity. RESERVED and
// ALLOCATED projects are left alone. It returns the number of projects
// changed.
func (o *Ops) RecomputeAllProjectAvailability() (int, error) {
	supervisors, err := o.tx.Supervisors().FindAll(store.All[models.Supervisor])
	if err != nil {
		return 0, fmt.Errorf("failed to load supervisors: %w", err)
	}
	projects, err := o.tx.Projects().FindAll(store.All[models.Project])
	if err != nil {
		return 0, fmt.Errorf("failed to load projects: %w", err)
	}

	capacity := make(map[string]int, len(supervisors))
	for _, s := range supervisors {
		capacity[s.ID] = s.Capacity
	}
	load := make(map[string]int, len(supervisors))
	for _, p := range projects {
		if p.Status == models.ProjectAllocated {
			load[p.SupervisorID]++
		}
	}

	changed := 0
	byStatus := make(map[models.ProjectStatus]int)
	for _, p := range projects {
		if !p.Status.Held() {
			cap, ok := capacity[p.SupervisorID]
			if !ok {
				return changed, apperrors.NotFound("supervisor", p.SupervisorID)
			}
			want := models.FreeStatus(load[p.SupervisorID] < cap)
			if p.Status != want {
				logger.Debug.Printf("Project %s: %s -> %s", p.ID, p.Status, want)
				p.Status = want
				if err := o.tx.Projects().Update(p); err != nil {
					return changed, err
				}
				changed++
			}
		}
		byStatus[p.Status]++
	}

	metrics.SweepFlips.Add(float64(changed))
	for _, status := range []models.ProjectStatus{
		models.ProjectAvailable,
		models.ProjectReserved,
		models.ProjectUnavailable,
		models.ProjectAllocated,
	} {
		metrics.ProjectsByStatus.WithLabelValues(string(status)).Set(float64(byStatus[status]))
	}

	return changed, nil
}

// AvailableSupervisors returns the supervisors that can take another project.
func (o *Ops) AvailableSupervisors() ([]*models.Supervisor, error) {
	supervisors, err := o.tx.Supervisors().FindAll(store.All[models.Supervisor])
	if err != nil {
		return nil, err
	}
	var out []*models.Supervisor
	for _, s := range supervisors {
		n, err := o.allocatedCount(s.ID, "")
		if err != nil {
			return nil, err
		}
		if s.HasCapacity(n) {
			out = append(out, s)
		}
	}
	return out, nil
}
