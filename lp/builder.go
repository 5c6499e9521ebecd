package lp

import (
	"fmt"

	"github.com/iti/rngstream"
	"github.com/sirupsen/logrus"

	"github.com/sim-x/simx-sub002/fault"
)

// Builder can build LPs.
type Builder struct {
	kernel        Kernel
	numLPs        int
	delays        MinDelays
	log           *logrus.Entry
	policy        fault.Policy
	exit          fault.ExitFunc
	escalateAfter int
}

// MakeBuilder creates a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numLPs: 1,
		delays: MinDelays{Local: 0, Remote: 1},
		log:    logrus.NewEntry(logrus.StandardLogger()),
		policy: fault.DefaultPolicy(),
	}
}

// WithKernel sets the engine that moves events between the LPs.
func (b Builder) WithKernel(k Kernel) Builder {
	b.kernel = k
	return b
}

// WithNumLPs sets the number of LPs in the run.
func (b Builder) WithNumLPs(n int) Builder {
	b.numLPs = n
	return b
}

// WithMinDelays sets the lookahead between LPs.
func (b Builder) WithMinDelays(d MinDelays) Builder {
	b.delays = d
	return b
}

// WithLogger sets the log entry the LPs log to.
func (b Builder) WithLogger(log *logrus.Entry) Builder {
	b.log = log
	return b
}

// WithPolicy sets how event errors are handled.
func (b Builder) WithPolicy(p fault.Policy) Builder {
	b.policy = p
	return b
}

// WithExitFunc replaces the function called on fatal errors. By default the
// process exits through atexit.
func (b Builder) WithExitFunc(f fault.ExitFunc) Builder {
	b.exit = f
	return b
}

// WithLatenessEscalation makes late sends be logged as errors once an LP made
// more than n of them. 0 disables the escalation.
func (b Builder) WithLatenessEscalation(n int) Builder {
	b.escalateAfter = n
	return b
}

func (b Builder) parametersMustBeValid(id LPID) {
	if b.kernel == nil {
		panic("kernel is not set")
	}

	if b.numLPs <= 0 {
		panic(fmt.Sprintf("invalid number of LPs %d", b.numLPs))
	}

	if id < 0 || int(id) >= b.numLPs {
		panic(fmt.Sprintf("LP %d is out of range [0, %d)", id, b.numLPs))
	}

	if b.delays.Local < 0 || b.delays.Remote < 0 {
		panic("minimum delays must not be negative")
	}
}

// Build creates the LP with the given ID and publishes its inbound channels
// to the kernel.
func (b Builder) Build(id LPID) (*LP, error) {
	b.parametersMustBeValid(id)

	lp := &LP{
		id:  id,
		log: b.log.WithField("lp", id),
	}
	lp.rng = rngstream.New(lp.Name())

	boundary := fault.NewBoundary(b.log)
	boundary.Policy = b.policy
	if b.exit != nil {
		boundary.Exit = b.exit
	}

	router, err := newRouter(lp, b.kernel, b.numLPs, b.delays, boundary, b.log)
	if err != nil {
		return nil, err
	}

	router.escalateAfter = b.escalateAfter
	lp.router = router

	return lp, nil
}
