package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shrimpsizemoose/fypalloc/internal/apperrors"
	"github.com/shrimpsizemoose/fypalloc/internal/models"
)

const (
	commonHelp = `Commands:
login <id>              - Act as a student, supervisor or coordinator
logout                  - End the current identity
whoami                  - Show who you are acting as
projects [all]          - List available (or all) projects
project <id>            - Show one project
request <id>            - Show one request
help                    - Show this message
quit                    - Leave the console`

	studentHelp = `
Student commands:
status                  - Show your registration status
register <project>      - Ask for a project
deregister              - Ask to leave your project
title <new title>       - Ask to rename your project
cancel <request>        - Withdraw one of your pending requests
requests                - Show your request history`

	supervisorHelp = `
Supervisor commands:
mine                    - List your projects
create <title>          - Add a new project
handover <project> <supervisor> - Ask to hand a project to another supervisor
pending                 - Pending requests on your projects
cancel <request>        - Withdraw one of your pending requests`

	coordinatorHelp = `
Coordinator commands:
pending                 - List every pending request
approve <request>       - Approve and apply a request
accept <request>        - Approve without applying
reject <request>        - Deny a request
confirm <request>       - Apply an approved registration or deregistration
allocate <project> <student>       - Allocate directly
deallocate <project>               - Release an allocated project
release <project>                  - Drop the hold on a reserved project
transfer <project> <supervisor>    - Move a project to another supervisor
capacity <supervisor> <n>          - Change a supervisor's capacity
students | supervisors             - List people
history <student>                  - Request history of a student
add-student <id> <email> <name>
add-supervisor <id> <email> <capacity> <name>
add-project <supervisor> <title>
rename <project> <title>
sweep                   - Recompute project availability
check                   - Report invariant violations`
)

type commandHandler func(ctx context.Context, args []string) error

type usageError struct {
	usage string
}

func (e usageError) Error() string {
	return "usage: " + e.usage
}

func need(args []string, n int, usage string) error {
	if len(args) < n {
		return usageError{usage: usage}
	}
	return nil
}

func (c *Console) routeCommonCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"help":     c.handleHelp,
		"login":    c.handleLogin,
		"logout":   c.handleLogout,
		"whoami":   c.handleWhoami,
		"projects": c.handleProjects,
		"project":  c.handleProject,
		"request":  c.handleRequest,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (c *Console) routeStudentCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"status":     c.handleStatus,
		"register":   c.handleRegister,
		"deregister": c.handleDeregister,
		"title":      c.handleTitle,
		"cancel":     c.handleCancel,
		"requests":   c.handleMyRequests,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (c *Console) routeSupervisorCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"mine":     c.handleMine,
		"create":   c.handleCreate,
		"handover": c.handleHandover,
		"pending":  c.handleSupervisorPending,
		"cancel":   c.handleCancel,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (c *Console) routeCoordinatorCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"pending":        c.handlePending,
		"approve":        c.handleApprove,
		"accept":         c.handleAccept,
		"reject":         c.handleReject,
		"confirm":        c.handleConfirm,
		"allocate":       c.handleAllocate,
		"deallocate":     c.handleDeallocate,
		"release":        c.handleRelease,
		"transfer":       c.handleTransfer,
		"capacity":       c.handleCapacity,
		"students":       c.handleStudents,
		"supervisors":    c.handleSupervisors,
		"history":        c.handleHistory,
		"add-student":    c.handleAddStudent,
		"add-supervisor": c.handleAddSupervisor,
		"add-project":    c.handleAddProject,
		"rename":         c.handleRename,
		"sweep":          c.handleSweep,
		"check":          c.handleCheck,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (c *Console) handleHelp(ctx context.Context, args []string) error {
	text := commonHelp
	switch c.role {
	case RoleStudent:
		text += studentHelp
	case RoleSupervisor:
		text += supervisorHelp
	case RoleCoordinator:
		text += coordinatorHelp
	}
	c.println(text)
	return nil
}

func (c *Console) handleLogin(ctx context.Context, args []string) error {
	if err := need(args, 1, "login <id>"); err != nil {
		return err
	}
	role, err := c.login(args[0])
	if err != nil {
		return err
	}
	c.user, c.role = args[0], role
	c.printf("Logged in as %s (%s).\n", c.user, c.role)
	return nil
}

func (c *Console) handleLogout(ctx context.Context, args []string) error {
	c.user, c.role = "", RoleNone
	c.println("Logged out.")
	return nil
}

func (c *Console) handleWhoami(ctx context.Context, args []string) error {
	if c.user == "" {
		c.println("Not logged in.")
		return nil
	}
	c.printf("%s (%s)\n", c.user, c.role)
	return nil
}

func (c *Console) handleProjects(ctx context.Context, args []string) error {
	var (
		projects []*models.Project
		err      error
	)
	if len(args) > 0 && args[0] == "all" {
		projects, err = c.svc.AllProjects()
	} else {
		projects, err = c.svc.AvailableProjects()
	}
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	c.writeProjects(projects)
	return nil
}

func (c *Console) handleProject(ctx context.Context, args []string) error {
	if err := need(args, 1, "project <id>"); err != nil {
		return err
	}
	p, err := c.svc.Project(args[0])
	if err != nil {
		return err
	}
	c.writeProjects([]*models.Project{p})
	return nil
}

func (c *Console) handleRequest(ctx context.Context, args []string) error {
	if err := need(args, 1, "request <id>"); err != nil {
		return err
	}
	r, err := c.svc.Request(args[0])
	if err != nil {
		return err
	}
	c.writeRequests([]*models.Request{r})
	return nil
}

func (c *Console) handleStatus(ctx context.Context, args []string) error {
	st, err := c.svc.Student(c.user)
	if err != nil {
		return err
	}
	c.printf("Status: %s\n", st.Status)
	if st.ProjectID != nil {
		c.printf("Project: %s\n", *st.ProjectID)
	}
	if st.SupervisorID != nil {
		c.printf("Supervisor: %s\n", *st.SupervisorID)
	}
	return nil
}

func (c *Console) handleRegister(ctx context.Context, args []string) error {
	if err := need(args, 1, "register <project>"); err != nil {
		return err
	}
	r, err := c.svc.CreateRegistrationRequest(ctx, args[0], c.user)
	if err != nil {
		return err
	}
	c.printf("Request %s submitted: registration for project %s.\n", r.ID, r.ProjectID)
	return nil
}

func (c *Console) handleDeregister(ctx context.Context, args []string) error {
	projectID, err := c.ownProject()
	if err != nil {
		return err
	}
	r, err := c.svc.CreateDeregistrationRequest(ctx, projectID, c.user)
	if err != nil {
		return err
	}
	c.printf("Request %s submitted: deregistration from project %s.\n", r.ID, r.ProjectID)
	return nil
}

func (c *Console) handleTitle(ctx context.Context, args []string) error {
	if err := need(args, 1, "title <new title>"); err != nil {
		return err
	}
	projectID, err := c.ownProject()
	if err != nil {
		return err
	}
	r, err := c.svc.CreateTitleChangeRequest(ctx, projectID, c.user, strings.Join(args, " "))
	if err != nil {
		return err
	}
	c.printf("Request %s submitted: title change for project %s.\n", r.ID, r.ProjectID)
	return nil
}

func (c *Console) ownProject() (string, error) {
	st, err := c.svc.Student(c.user)
	if err != nil {
		return "", err
	}
	if st.Status != models.StudentRegistered || st.ProjectID == nil {
		return "", apperrors.InvalidState("student", c.user, "not registered to any project")
	}
	return *st.ProjectID, nil
}

func (c *Console) handleCancel(ctx context.Context, args []string) error {
	if err := need(args, 1, "cancel <request>"); err != nil {
		return err
	}
	r, err := c.svc.Cancel(ctx, args[0], c.user)
	if err != nil {
		return err
	}
	c.printf("Request %s cancelled.\n", r.ID)
	return nil
}

func (c *Console) handleMyRequests(ctx context.Context, args []string) error {
	requests, err := c.svc.RequestsByStudent(c.user)
	if err != nil {
		return err
	}
	c.writeRequests(requests)
	return nil
}

func (c *Console) handleMine(ctx context.Context, args []string) error {
	projects, err := c.svc.ProjectsBySupervisor(c.user)
	if err != nil {
		return err
	}
	c.writeProjects(projects)
	return nil
}

func (c *Console) handleCreate(ctx context.Context, args []string) error {
	if err := need(args, 1, "create <title>"); err != nil {
		return err
	}
	p, err := c.svc.CreateProject(ctx, strings.Join(args, " "), c.user)
	if err != nil {
		return err
	}
	c.printf("Project %s created (%s).\n", p.ID, p.Status)
	return nil
}

func (c *Console) handleHandover(ctx context.Context, args []string) error {
	if err := need(args, 2, "handover <project> <supervisor>"); err != nil {
		return err
	}
	r, err := c.svc.CreateSupervisorChangeRequest(ctx, args[0], c.user, args[1])
	if err != nil {
		return err
	}
	c.printf("Request %s submitted: hand project %s to %s.\n", r.ID, r.ProjectID, args[1])
	return nil
}

func (c *Console) handleSupervisorPending(ctx context.Context, args []string) error {
	requests, err := c.svc.RequestsForSupervisor(c.user)
	if err != nil {
		return err
	}
	c.writeRequests(requests)
	return nil
}

func (c *Console) handlePending(ctx context.Context, args []string) error {
	requests, err := c.svc.PendingRequests()
	if err != nil {
		return err
	}
	c.writeRequests(requests)
	return nil
}

func (c *Console) handleApprove(ctx context.Context, args []string) error {
	if err := need(args, 1, "approve <request>"); err != nil {
		return err
	}
	r, err := c.svc.ApproveAndApply(ctx, args[0], c.user)
	if err != nil {
		return err
	}
	c.printf("Request %s approved and applied.\n", r.ID)
	return nil
}

func (c *Console) handleAccept(ctx context.Context, args []string) error {
	if err := need(args, 1, "accept <request>"); err != nil {
		return err
	}
	r, err := c.svc.Approve(ctx, args[0], c.user)
	if err != nil {
		return err
	}
	c.printf("Request %s approved. Run confirm %s to apply it.\n", r.ID, r.ID)
	return nil
}

func (c *Console) handleReject(ctx context.Context, args []string) error {
	if err := need(args, 1, "reject <request>"); err != nil {
		return err
	}
	r, err := c.svc.Reject(ctx, args[0], c.user)
	if err != nil {
		return err
	}
	c.printf("Request %s rejected.\n", r.ID)
	return nil
}

// handleConfirm applies an already approved request through the
// coordinator's confirm step.
func (c *Console) handleConfirm(ctx context.Context, args []string) error {
	if err := need(args, 1, "confirm <request>"); err != nil {
		return err
	}
	r, err := c.svc.Request(args[0])
	if err != nil {
		return err
	}
	if r.Status != models.RequestApproved {
		return fmt.Errorf("request %s is %s, approve it first", r.ID, r.Status)
	}
	switch r.Kind() {
	case models.KindRegistration:
		err = c.svc.ConfirmRegistration(ctx, r.StudentID, r.ProjectID, r.SupervisorID)
	case models.KindDeregistration:
		err = c.svc.ConfirmDeregistration(ctx, r.StudentID, r.ProjectID, r.SupervisorID)
	default:
		return fmt.Errorf("request %s is a %s, use approve instead", r.ID, r.Kind())
	}
	if err != nil {
		return err
	}
	c.printf("Request %s confirmed.\n", r.ID)
	return nil
}

func (c *Console) handleAllocate(ctx context.Context, args []string) error {
	if err := need(args, 2, "allocate <project> <student>"); err != nil {
		return err
	}
	if err := c.svc.AllocateProject(ctx, args[0], args[1]); err != nil {
		return err
	}
	c.printf("Project %s allocated to %s.\n", args[0], args[1])
	return nil
}

func (c *Console) handleDeallocate(ctx context.Context, args []string) error {
	if err := need(args, 1, "deallocate <project>"); err != nil {
		return err
	}
	if err := c.svc.DeallocateProject(ctx, args[0]); err != nil {
		return err
	}
	c.printf("Project %s deallocated.\n", args[0])
	return nil
}

func (c *Console) handleRelease(ctx context.Context, args []string) error {
	if err := need(args, 1, "release <project>"); err != nil {
		return err
	}
	if err := c.svc.ReleaseReservation(ctx, args[0]); err != nil {
		return err
	}
	c.printf("Reservation on project %s released.\n", args[0])
	return nil
}

func (c *Console) handleTransfer(ctx context.Context, args []string) error {
	if err := need(args, 2, "transfer <project> <supervisor>"); err != nil {
		return err
	}
	if err := c.svc.TransferSupervisor(ctx, args[0], args[1]); err != nil {
		return err
	}
	c.printf("Project %s now supervised by %s.\n", args[0], args[1])
	return nil
}

func (c *Console) handleCapacity(ctx context.Context, args []string) error {
	if err := need(args, 2, "capacity <supervisor> <n>"); err != nil {
		return err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid capacity %q: %v", args[1], err)
	}
	if err := c.svc.SetSupervisorCapacity(args[0], n); err != nil {
		return err
	}
	c.printf("Supervisor %s capacity set to %d.\n", args[0], n)
	return nil
}

func (c *Console) handleStudents(ctx context.Context, args []string) error {
	students, err := c.svc.Students()
	if err != nil {
		return err
	}
	c.writeStudents(students)
	return nil
}

func (c *Console) handleSupervisors(ctx context.Context, args []string) error {
	supervisors, err := c.svc.Supervisors()
	if err != nil {
		return err
	}
	c.writeSupervisors(supervisors)
	return nil
}

func (c *Console) handleHistory(ctx context.Context, args []string) error {
	if err := need(args, 1, "history <student>"); err != nil {
		return err
	}
	requests, err := c.svc.RequestsByStudent(args[0])
	if err != nil {
		return err
	}
	c.writeRequests(requests)
	return nil
}

func (c *Console) handleAddStudent(ctx context.Context, args []string) error {
	if err := need(args, 3, "add-student <id> <email> <name>"); err != nil {
		return err
	}
	st, err := c.svc.AddStudent(args[0], strings.Join(args[2:], " "), args[1])
	if err != nil {
		return err
	}
	c.printf("Student %s added.\n", st.ID)
	return nil
}

func (c *Console) handleAddSupervisor(ctx context.Context, args []string) error {
	if err := need(args, 4, "add-supervisor <id> <email> <capacity> <name>"); err != nil {
		return err
	}
	capacity, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid capacity %q: %v", args[2], err)
	}
	sup, err := c.svc.AddSupervisor(args[0], strings.Join(args[3:], " "), args[1], capacity)
	if err != nil {
		return err
	}
	c.printf("Supervisor %s added with capacity %d.\n", sup.ID, sup.Capacity)
	return nil
}

func (c *Console) handleAddProject(ctx context.Context, args []string) error {
	if err := need(args, 2, "add-project <supervisor> <title>"); err != nil {
		return err
	}
	p, err := c.svc.CreateProject(ctx, strings.Join(args[1:], " "), args[0])
	if err != nil {
		return err
	}
	c.printf("Project %s created (%s).\n", p.ID, p.Status)
	return nil
}

func (c *Console) handleRename(ctx context.Context, args []string) error {
	if err := need(args, 2, "rename <project> <title>"); err != nil {
		return err
	}
	if err := c.svc.ChangeProjectTitle(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
		return err
	}
	c.printf("Project %s renamed.\n", args[0])
	return nil
}

func (c *Console) handleSweep(ctx context.Context, args []string) error {
	changed, err := c.svc.RecomputeAllProjectAvailability()
	if err != nil {
		return err
	}
	c.printf("%d project(s) changed availability.\n", changed)
	return nil
}

func (c *Console) handleCheck(ctx context.Context, args []string) error {
	violations, err := c.svc.CheckInvariants()
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		c.println("No violations.")
		return nil
	}
	for _, v := range violations {
		c.printf("! %s\n", v)
	}
	return nil
}
