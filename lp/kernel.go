package lp

import (
	"github.com/sim-x/simx-sub002/sim"
)

// A Kernel is the discrete-event engine that moves events between channels.
//
// The kernel owns simulated time. It delivers a payload written with delay d
// on a channel mapped with minimum delay m at time now + m + d, and never
// earlier.
type Kernel interface {
	sim.TimeTeller

	// Publish makes an inbound channel visible under its name so that
	// outbound channels can be mapped to it.
	Publish(in *InChannel) error

	// MapTo binds an outbound channel to a published inbound channel.
	MapTo(out *OutChannel, inName string, minDelay sim.VTime) error

	// Write schedules the delivery of a payload.
	Write(out *OutChannel, payload any, delay sim.VTime) error
}

// A Dispatcher executes the events that became ready on inbound channels.
// Kernels call Dispatch once per batch of same-time deliveries.
type Dispatcher interface {
	Dispatch(active []*InChannel)
}

// An Event is a payload that can be executed by the LP that receives it.
// Payloads that do not implement Event are dropped on dispatch.
type Event interface {
	Execute(lp *LP) error
}

// EventFunc turns a function into an Event.
type EventFunc func(lp *LP) error

// Execute calls f(lp).
func (f EventFunc) Execute(lp *LP) error {
	return f(lp)
}
