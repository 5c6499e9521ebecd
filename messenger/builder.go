package messenger

import (
	"github.com/sirupsen/logrus"

	"github.com/sim-x/simx-sub002/fault"
)

// Builder can build messengers.
type Builder struct {
	handler Handler
	log     *logrus.Entry
	policy  fault.Policy
	exit    fault.ExitFunc
}

// MakeBuilder creates a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		log:    logrus.NewEntry(logrus.StandardLogger()),
		policy: fault.DefaultPolicy(),
	}
}

// WithHandler sets the consumer of the received control messages.
func (b Builder) WithHandler(h Handler) Builder {
	b.handler = h
	return b
}

// WithLogger sets the log entry the messenger logs to.
func (b Builder) WithLogger(log *logrus.Entry) Builder {
	b.log = log
	return b
}

// WithPolicy sets how handler errors are handled.
func (b Builder) WithPolicy(p fault.Policy) Builder {
	b.policy = p
	return b
}

// WithExitFunc replaces the function called on fatal handler errors.
func (b Builder) WithExitFunc(f fault.ExitFunc) Builder {
	b.exit = f
	return b
}

// Build creates an inactive messenger. Call Init to attach it to a world.
func (b Builder) Build() *Messenger {
	log := b.log.WithField("component", "messenger")

	boundary := fault.NewBoundary(log)
	boundary.Policy = b.policy
	if b.exit != nil {
		boundary.Exit = b.exit
	}

	handler := b.handler
	if handler == nil {
		handler = HandlerFunc(func(ci *ControlInfo) error {
			return fault.Warn("no handler for control message to LP %d", ci.DestLP)
		})
	}

	return &Messenger{
		rank:     -1,
		handler:  handler,
		boundary: boundary,
		log:      log,
	}
}
