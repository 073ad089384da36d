package main

import (
	"context"
	"sync"

	modreg "discoveryd/internal/modkit/module"
	"discoveryd/internal/platform/logger"
	discmod "discoveryd/internal/services/discovery/module"
)

// supervisorState is the discoveryd process lifecycle.
type supervisorState int

const (
	stateInit supervisorState = iota
	stateStarting
	stateRunning
	stateDraining
	stateStopped
	stateFailed
)

func (s supervisorState) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateStarting:
		return "starting"
	case stateRunning:
		return "running"
	case stateDraining:
		return "draining"
	case stateStopped:
		return "stopped"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// supervisor owns the discovery module's lifecycle and exposes the
// operator-facing state the scheduler/staleness ports don't: what phase
// the process is in right now, and whether a manual trigger is safe to
// accept (only once RUNNING).
type supervisor struct {
	mu    sync.RWMutex
	state supervisorState

	mod *discmod.Module
	log logger.Logger
}

func newSupervisor(mod *discmod.Module, log logger.Logger) *supervisor {
	return &supervisor{state: stateInit, mod: mod, log: log}
}

func (s *supervisor) setState(st supervisorState) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	s.log.Info().Str("from", prev.String()).Str("to", st.String()).Msg("discoveryd: state transition")
}

// State returns the current lifecycle state.
func (s *supervisor) State() supervisorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Run drives the module through STARTING -> RUNNING, blocks until ctx is
// canceled, marks DRAINING, waits for the module's own graceful stop, then
// settles on STOPPED or FAILED.
func (s *supervisor) Run(ctx context.Context) error {
	s.setState(stateStarting)

	done := make(chan error, 1)
	go func() { done <- s.mod.Run(ctx) }()

	// module.Run blocks on ctx.Done() internally before stopping its
	// children, so once Run has been launched the process is RUNNING
	// until the context is canceled.
	s.setState(stateRunning)

	<-ctx.Done()
	s.setState(stateDraining)

	err := <-done
	if err != nil {
		s.setState(stateFailed)
		return err
	}
	s.setState(stateStopped)
	return nil
}

// Trigger forwards a manual strategy trigger to the scheduler port, refusing
// it outside the RUNNING state so a trigger can't race a drain in progress.
func (s *supervisor) Trigger(name string) bool {
	if s.State() != stateRunning {
		return false
	}
	ports, ok := modreg.PortsOf[discmod.Ports](s.mod)
	if !ok || ports.Scheduler == nil {
		return false
	}
	return ports.Scheduler.Trigger(name)
}
