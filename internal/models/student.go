package models

type Student struct {
	ID           string        `db:"id" json:"id" validate:"required,max=32"`
	Name         string        `db:"name" json:"name" validate:"required"`
	Email        string        `db:"email" json:"email" validate:"required,email"`
	Status       StudentStatus `db:"status" json:"status" validate:"required,oneof=UNREGISTERED PENDING REGISTERED DEREGISTERED"`
	ProjectID    *string       `db:"project_id" json:"project_id,omitempty"`
	SupervisorID *string       `db:"supervisor_id" json:"supervisor_id,omitempty"`
}

func NewStudent(id, name, email string) *Student {
	return &Student{
		ID:     id,
		Name:   name,
		Email:  email,
		Status: StudentUnregistered,
	}
}

func (s Student) Key() string { return s.ID }

func (s *Student) Validate() error {
	return validate.Struct(s)
}

// Release drops the project binding and moves the student to status.
func (s *Student) Release(status StudentStatus) {
	s.Status = status
	s.ProjectID = nil
	s.SupervisorID = nil
}
