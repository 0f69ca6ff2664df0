package models

type Project struct {
	ID           string        `db:"id" json:"id" validate:"required,max=32"`
	Title        string        `db:"title" json:"title" validate:"required,max=200"`
	SupervisorID string        `db:"supervisor_id" json:"supervisor_id" validate:"required"`
	StudentID    *string       `db:"student_id" json:"student_id,omitempty"`
	Status       ProjectStatus `db:"status" json:"status" validate:"required,oneof=AVAILABLE RESERVED UNAVAILABLE ALLOCATED"`
}

// NewProject returns an AVAILABLE project. The availability sweep corrects
// the status once the supervisor's load is known.
func NewProject(id, title, supervisorID string) *Project {
	return &Project{
		ID:           id,
		Title:        title,
		SupervisorID: supervisorID,
		Status:       ProjectAvailable,
	}
}

func (p Project) Key() string { return p.ID }

func (p *Project) Validate() error {
	return validate.Struct(p)
}

// Release clears the student binding. The project becomes AVAILABLE or
// UNAVAILABLE depending on whether its supervisor still has room.
func (p *Project) Release(supervisorHasCapacity bool) {
	p.StudentID = nil
	p.Status = FreeStatus(supervisorHasCapacity)
}

func FreeStatus(supervisorHasCapacity bool) ProjectStatus {
	if supervisorHasCapacity {
		return ProjectAvailable
	}
	return ProjectUnavailable
}
