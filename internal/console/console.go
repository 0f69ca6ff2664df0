// Package console is the operator's line-oriented front end to the
// allocation service.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/fypalloc/internal/app"
	"github.com/shrimpsizemoose/fypalloc/internal/apperrors"
	"github.com/shrimpsizemoose/fypalloc/internal/models"
)

type Role string

const (
	RoleNone        Role = ""
	RoleStudent     Role = "student"
	RoleSupervisor  Role = "supervisor"
	RoleCoordinator Role = "coordinator"
)

type Console struct {
	svc    *app.Service
	in     io.Reader
	out    io.Writer
	prompt string

	coordinators map[string]bool

	user string
	role Role
}

func New(svc *app.Service, in io.Reader, out io.Writer) *Console {
	coordinators := make(map[string]bool)
	for _, id := range svc.Config.Console.Coordinators {
		coordinators[id] = true
	}

	return &Console{
		svc:          svc,
		in:           in,
		out:          out,
		prompt:       svc.Config.Console.Prompt,
		coordinators: coordinators,
	}
}

// Run reads commands until the input ends, the user quits, ctx is done or
// the process is interrupted.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	c.showPrompt()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if c.Execute(ctx, line) {
				return nil
			}
			c.showPrompt()

		case <-sigChan:
			logger.Info.Println("Shutting down console...")
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Execute runs one command line and reports whether the session should end.
func (c *Console) Execute(ctx context.Context, line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	if cmd == "quit" || cmd == "exit" {
		c.println("Bye.")
		return true
	}

	handler, ok := c.route(cmd)
	if !ok {
		c.println("Unknown command. Type help for the list of commands.")
		return false
	}

	if err := handler(ctx, args); err != nil {
		c.reportError(cmd, err)
	}
	return false
}

func (c *Console) route(cmd string) (commandHandler, bool) {
	if handler, ok := c.routeCommonCommands(cmd); ok {
		return handler, true
	}
	switch c.role {
	case RoleStudent:
		return c.routeStudentCommands(cmd)
	case RoleSupervisor:
		return c.routeSupervisorCommands(cmd)
	case RoleCoordinator:
		return c.routeCoordinatorCommands(cmd)
	}
	return nil, false
}

func (c *Console) reportError(cmd string, err error) {
	var se *apperrors.StateError
	var ue usageError
	switch {
	case errors.As(err, &ue):
		c.printf("Usage: %s\n", ue.usage)
	case errors.As(err, &se):
		logger.Debug.Printf("Command %s refused: %v", cmd, err)
		c.printf("Error: %v\n", err)
	default:
		logger.Error.Printf("Command error: %v", err)
		c.printf("Error: %v\n", err)
	}
}

// login picks the role from who id turns out to be.
func (c *Console) login(id string) (Role, error) {
	if c.coordinators[id] {
		return RoleCoordinator, nil
	}
	if _, err := c.svc.Student(id); err == nil {
		return RoleStudent, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return RoleNone, err
	}
	if _, err := c.svc.Supervisor(id); err == nil {
		return RoleSupervisor, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return RoleNone, err
	}
	return RoleNone, apperrors.NotFound("user", id)
}

func (c *Console) showPrompt() {
	if c.user != "" {
		fmt.Fprintf(c.out, "%s@%s", c.user, c.prompt)
		return
	}
	fmt.Fprint(c.out, c.prompt)
}

func (c *Console) println(text string) {
	fmt.Fprintln(c.out, text)
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) timestamp(r *models.Request) string {
	return r.CreatedAt.Format(c.svc.Config.Display.TimestampFormat)
}
