package engines

import (
	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/sim"
)

// A Controller pauses and resumes a running kernel.
type Controller interface {
	sim.TimeTeller
	Pause()
	Continue()
	IsPaused() bool
}

// A Kernel runs every LP of the process.
type Kernel interface {
	lp.Kernel

	// Inject delivers payload to the LP that owns in at time at, bypassing
	// the minimum delay.
	Inject(in *lp.InChannel, payload any, at sim.VTime) error

	// RegisterPoller adds a poller that runs while the kernel runs.
	RegisterPoller(p Poller)

	// Run processes the events up to end.
	Run(end sim.VTime) error

	// Delivered returns the number of payloads delivered so far.
	Delivered() uint64

	// Controller returns what pauses and resumes the kernel.
	Controller() Controller
}

var (
	_ Kernel = (*Local)(nil)
	_ Kernel = (*Evt)(nil)
)
