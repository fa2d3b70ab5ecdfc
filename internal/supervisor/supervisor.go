// Package supervisor keeps the bot process alive: it runs it as a child,
// restarts it with exponential backoff when it crashes, and forwards
// termination signals to it.
package supervisor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Process is a running child.
type Process interface {
	Pid() int
	// Wait blocks until the process exits. A nil error means exit code 0.
	Wait() error
	Signal(sig os.Signal) error
}

// SpawnFunc starts a new child.
type SpawnFunc func() (Process, error)

// Clock provides the restart timers.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Supervisor owns at most one child at a time.
type Supervisor struct {
	spawn   SpawnFunc
	tracker *Tracker
	clock   Clock
	log     zerolog.Logger
}

// New creates a Supervisor. A nil clock uses real time.
func New(spawn SpawnFunc, policy Policy, clock Clock, log zerolog.Logger) *Supervisor {
	if clock == nil {
		clock = realClock{}
	}
	return &Supervisor{
		spawn:   spawn,
		tracker: NewTracker(policy),
		clock:   clock,
		log:     log,
	}
}

// Tracker exposes the restart state.
func (s *Supervisor) Tracker() *Tracker { return s.tracker }

// Run spawns the child and keeps restarting it until a signal arrives on
// sigs (forwarded to the child) or ctx is done (SIGTERM is forwarded). It
// does not wait for the child to exit after forwarding.
func (s *Supervisor) Run(ctx context.Context, sigs <-chan os.Signal) error {
	attempt := 0
	for {
		attempt++
		s.log.Info().Int("attempt", attempt).Int("restart_count", s.tracker.RestartCount()).Msg("Starting bot process")

		proc, err := s.spawn()
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to start bot process")
		} else {
			exited := make(chan error, 1)
			go func() { exited <- proc.Wait() }()

			select {
			case sig := <-sigs:
				s.shutdown(proc, sig)
				return nil
			case <-ctx.Done():
				s.shutdown(proc, syscall.SIGTERM)
				return nil
			case err = <-exited:
			}

			if err == nil {
				s.tracker.Stop()
				s.log.Info().Int("pid", proc.Pid()).Msg("Bot process exited cleanly, not restarting")
				return s.idle(ctx, sigs)
			}
			s.log.Warn().Int("pid", proc.Pid()).Int("code", exitCode(err)).Err(err).Msg("Bot process exited")
		}

		delay, ok := s.tracker.Crashed()
		if !ok {
			return s.idle(ctx, sigs)
		}
		if s.tracker.State() == Cooldown {
			s.log.Warn().Dur("cooldown", delay).Msg("Maximum restart attempts reached, cooling down")
		} else {
			s.log.Info().Dur("delay", delay).Int("restart_count", s.tracker.RestartCount()).Msg("Restarting bot process")
		}

		select {
		case <-s.clock.After(delay):
			s.tracker.Respawned()
		case sig := <-sigs:
			s.log.Info().Stringer("signal", sig).Msg("Received signal, shutting down")
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

// idle waits for termination with no child running.
func (s *Supervisor) idle(ctx context.Context, sigs <-chan os.Signal) error {
	select {
	case sig := <-sigs:
		s.log.Info().Stringer("signal", sig).Msg("Received signal, shutting down")
	case <-ctx.Done():
	}
	return nil
}

func (s *Supervisor) shutdown(proc Process, sig os.Signal) {
	s.log.Info().Stringer("signal", sig).Int("pid", proc.Pid()).Msg("Received signal, shutting down")
	if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.log.Warn().Err(err).Msg("Failed to forward signal to bot process")
	}
}

func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// Command describes the child to run.
type Command struct {
	Path   string
	Args   []string
	Env    []string // nil inherits the supervisor's environment
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Spawn starts the command. It satisfies SpawnFunc.
func (c Command) Spawn() (Process, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int                   { return p.cmd.Process.Pid }
func (p *execProcess) Wait() error                { return p.cmd.Wait() }
func (p *execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }
