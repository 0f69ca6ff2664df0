package console

import (
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/fypalloc/internal/models"
)

func (c *Console) writeProjects(projects []*models.Project) {
	if len(projects) == 0 {
		c.println("No projects found.")
		return
	}
	for _, p := range projects {
		line := fmt.Sprintf("%-6s %-12s %-10s %s", p.ID, p.Status, p.SupervisorID, p.Title)
		if p.StudentID != nil {
			line += " [" + *p.StudentID + "]"
		}
		c.println(line)
	}
}

func (c *Console) writeRequests(requests []*models.Request) {
	if len(requests) == 0 {
		c.println("No requests found.")
		return
	}
	for _, r := range requests {
		c.printf("%-5s %-17s %-8s student=%s project=%s %s%s\n",
			r.ID, r.Kind(), r.Status, r.StudentID, r.ProjectID, c.timestamp(r), details(r))
	}
}

func details(r *models.Request) string {
	var parts []string
	switch p := r.Payload.(type) {
	case models.TitleChange:
		parts = append(parts, fmt.Sprintf("title=%q", p.NewTitle))
	case models.SupervisorChange:
		parts = append(parts, "to="+p.NewSupervisorID)
	}
	if r.ResolvedBy != nil {
		parts = append(parts, "by="+*r.ResolvedBy)
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func (c *Console) writeStudents(students []*models.Student) {
	if len(students) == 0 {
		c.println("No students found.")
		return
	}
	for _, s := range students {
		c.printf("%-10s %-13s %-6s %s <%s>\n", s.ID, s.Status, models.Deref(s.ProjectID), s.Name, s.Email)
	}
}

func (c *Console) writeSupervisors(supervisors []*models.Supervisor) {
	if len(supervisors) == 0 {
		c.println("No supervisors found.")
		return
	}
	for _, s := range supervisors {
		c.printf("%-10s capacity=%d %s <%s>\n", s.ID, s.Capacity, s.Name, s.Email)
	}
}
