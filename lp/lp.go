package lp

import (
	"fmt"

	"github.com/iti/rngstream"
	"github.com/sirupsen/logrus"

	"github.com/sim-x/simx-sub002/sim"
)

// An LP is a logical process. It owns a router, a random stream and a
// logger, and executes the events delivered to it.
type LP struct {
	id     LPID
	router *Router
	rng    *rngstream.RngStream
	log    *logrus.Entry
}

// ID returns the identifier of the LP.
func (lp *LP) ID() LPID {
	return lp.id
}

// Name returns a printable name of the LP.
func (lp *LP) Name() string {
	return fmt.Sprintf("LP%d", lp.id)
}

// Now returns the current simulated time.
func (lp *LP) Now() sim.VTime {
	return lp.router.kernel.CurrentTime()
}

// Random returns the random stream of the LP.
func (lp *LP) Random() *rngstream.RngStream {
	return lp.rng
}

// Router returns the router of the LP.
func (lp *LP) Router() *Router {
	return lp.router
}

// Logger returns a log entry tagged with the LP ID.
func (lp *LP) Logger() *logrus.Entry {
	return lp.log
}

// Send sends evt to dest, to be executed after delay.
func (lp *LP) Send(dest LPID, evt Event, delay sim.VTime) error {
	return lp.router.SendEvent(dest, evt, delay)
}
