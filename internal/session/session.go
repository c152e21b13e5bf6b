// Package session hands the terminal to an interactive shell inside a
// container and takes it back afterwards.
//
// The render loop suspends through tea.Exec with a ShellCommand: bubbletea
// stops rendering and restores the terminal, ShellCommand.Run blocks until the
// shell exits, then bubbletea re-enters raw mode and the alternate screen.
// The caller forces a full redraw when it receives the exit message.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"dockyard/pkg/logging"
)

var (
	// ErrSessionActive is returned when a shell is requested while another one runs.
	ErrSessionActive = errors.New("a shell session is already active")
	// ErrNoShell is returned when none of the candidate shells exists in the container.
	ErrNoShell = errors.New("no usable shell found in container")
)

// DefaultShells are tried in order; the first one present in the container is used.
var DefaultShells = []string{"/bin/bash", "/bin/sh"}

const probeTimeout = 5 * time.Second

// ShellRunner starts shells inside containers.
type ShellRunner interface {
	// Probe reports whether shell exists and is executable in the container.
	Probe(ctx context.Context, containerID, shell string) bool
	// Run attaches shell to the given streams and blocks until it exits.
	// A non-zero exit status is returned as exitCode, not as an error.
	Run(containerID, shell string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, err error)
}

// Admitter bounds outbound calls. scheduler.Gate implements it.
type Admitter interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Controller allows at most one shell session at a time.
type Controller struct {
	runner ShellRunner
	shells []string
	gate   Admitter

	mu     sync.Mutex
	active bool
}

// NewController creates a controller trying shells in order. With no shells,
// DefaultShells is used.
func NewController(runner ShellRunner, shells ...string) *Controller {
	if len(shells) == 0 {
		shells = DefaultShells
	}
	return &Controller{runner: runner, shells: shells}
}

// WithGate sends the shell checks through gate. The interactive session
// itself does not hold a slot while it runs.
func (c *Controller) WithGate(gate Admitter) *Controller {
	c.gate = gate
	return c
}

// probe checks one candidate shell, admitted through the gate when there is one.
func (c *Controller) probe(ctx context.Context, containerID, shell string) bool {
	if c.gate == nil {
		return c.runner.Probe(ctx, containerID, shell)
	}
	found := false
	err := c.gate.Do(ctx, func(ctx context.Context) error {
		found = c.runner.Probe(ctx, containerID, shell)
		return nil
	})
	return err == nil && found
}

// Begin reserves the session slot and returns the command to hand to tea.Exec.
// The slot is released when the command's Run returns.
func (c *Controller) Begin(containerID, name string) (*ShellCommand, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return nil, ErrSessionActive
	}
	c.active = true
	return &ShellCommand{
		ctl:         c,
		containerID: containerID,
		name:        name,
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		ExitCode:    -1,
	}, nil
}

// Active reports whether a session is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) end() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

// ShellCommand implements tea.ExecCommand for one shell session.
type ShellCommand struct {
	ctl         *Controller
	containerID string
	name        string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// Shell and ExitCode are set once Run returns.
	Shell    string
	ExitCode int
}

// Run picks the first available shell and runs it to completion.
func (s *ShellCommand) Run() error {
	defer s.ctl.end()

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	shell := ""
	for _, candidate := range s.ctl.shells {
		if s.ctl.probe(ctx, s.containerID, candidate) {
			shell = candidate
			break
		}
	}
	cancel()

	if shell == "" {
		logging.Warn("session", "no shell in %s (tried %v)", s.name, s.ctl.shells)
		return fmt.Errorf("%s: %w", s.name, ErrNoShell)
	}

	s.Shell = shell
	logging.Info("session", "exec %s in %s", shell, s.name)

	code, err := s.ctl.runner.Run(s.containerID, shell, s.stdin, s.stdout, s.stderr)
	s.ExitCode = code
	if err != nil {
		logging.Error("session", err, "shell in %s failed", s.name)
		return fmt.Errorf("shell in %s: %w", s.name, err)
	}
	logging.Info("session", "shell in %s exited with status %d", s.name, code)
	return nil
}

func (s *ShellCommand) SetStdin(r io.Reader)  { s.stdin = r }
func (s *ShellCommand) SetStdout(w io.Writer) { s.stdout = w }
func (s *ShellCommand) SetStderr(w io.Writer) { s.stderr = w }

// DockerCLI runs shells with `docker exec`, which owns TTY setup and resizing.
type DockerCLI struct {
	Binary string // defaults to "docker" on PATH
}

func (d DockerCLI) binary() string {
	if d.Binary != "" {
		return d.Binary
	}
	return "docker"
}

// Probe checks for the shell with `docker exec <id> test -x <shell>`.
func (d DockerCLI) Probe(ctx context.Context, containerID, shell string) bool {
	return exec.CommandContext(ctx, d.binary(), "exec", containerID, "test", "-x", shell).Run() == nil
}

// Run starts an interactive shell with `docker exec -it`.
func (d DockerCLI) Run(containerID, shell string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	cmd := exec.Command(d.binary(), "exec", "-it", containerID, shell)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, err
	}
	return 0, nil
}
