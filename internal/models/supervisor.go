package models

// DefaultCapacity is the number of concurrently allocated projects a
// supervisor may hold unless configured otherwise.
const DefaultCapacity = 2

type Supervisor struct {
	ID       string `db:"id" json:"id" validate:"required,max=32"`
	Name     string `db:"name" json:"name" validate:"required"`
	Email    string `db:"email" json:"email" validate:"required,email"`
	Capacity int    `db:"capacity" json:"capacity" validate:"gte=0"`
}

func NewSupervisor(id, name, email string, capacity int) *Supervisor {
	return &Supervisor{
		ID:       id,
		Name:     name,
		Email:    email,
		Capacity: capacity,
	}
}

func (s Supervisor) Key() string { return s.ID }

func (s *Supervisor) Validate() error {
	return validate.Struct(s)
}

// HasCapacity reports whether another project can be allocated given the
// number of projects already allocated to the supervisor.
func (s *Supervisor) HasCapacity(allocated int) bool {
	return allocated < s.Capacity
}
