// Package supervisor implements agent fate-sharing: if any one of a set of
// agents exits, the others are aborted. cmd/latemate-device runs its ADC
// sampling, recorder, streamer and USB RX loops under it; the host binary
// starts its USB RX and dispatcher loops without it. Grounded on
// original_source/host-and-shared/late-mate-device/src/agents/agent_watcher.rs
// (a JoinSet that cancels siblings on the first exit) and on the teacher's
// context+WaitGroup lifecycle (internal/server/server.go Serve/Shutdown).
package supervisor

import (
	"context"
	"sync"

	"github.com/late-mate/late-mate/internal/logging"
)

// Agent is one fate-sharing task. It must return promptly once ctx is
// canceled.
type Agent struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor runs a fixed set of agents and cancels all of them as soon as
// any one returns, for any reason.
type Supervisor struct {
	agents []Agent
}

// New builds a supervisor for the given agents.
func New(agents ...Agent) *Supervisor {
	return &Supervisor{agents: agents}
}

// Run blocks until every agent has exited, which happens as soon as the
// first one does. It returns the error of whichever agent exited first
// (nil if that agent returned nil).
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, len(s.agents))

	for _, a := range s.agents {
		wg.Add(1)
		go func(a Agent) {
			defer wg.Done()
			err := a.Run(ctx)
			logging.L().Info("agent_exited", "agent", a.Name, "error", err)
			errs <- err
		}(a)
	}

	first := <-errs
	cancel()
	wg.Wait()
	close(errs)
	return first
}
