package lp

import (
	"fmt"

	"github.com/sim-x/simx-sub002/sim"
)

// LPID identifies a logical process. IDs are dense, starting from 0.
type LPID int32

// MinDelays holds the lookahead the kernel guarantees between LPs.
type MinDelays struct {
	// Local applies to events an LP sends to itself.
	Local sim.VTime

	// Remote applies to events sent to any other LP.
	Remote sim.VTime
}

// For returns the minimum delay from src to dst.
func (d MinDelays) For(src, dst LPID) sim.VTime {
	if src == dst {
		return d.Local
	}

	return d.Remote
}

// ChannelState is the life cycle stage of a channel. A channel only moves
// forward, from Unconfigured to Mapped to Active.
type ChannelState int

// The channel states.
const (
	Unconfigured ChannelState = iota
	Mapped
	Active
)

func (s ChannelState) String() string {
	switch s {
	case Unconfigured:
		return "Unconfigured"
	case Mapped:
		return "Mapped"
	case Active:
		return "Active"
	default:
		return fmt.Sprintf("ChannelState(%d)", int(s))
	}
}

// InChannelName returns the name of the inbound channel owned by owner that
// receives the events sent by peer.
func InChannelName(owner, peer LPID) string {
	return fmt.Sprintf("I%d.%d", owner, peer)
}

// OutChannelName returns the name of the outbound channel owned by owner that
// carries events to peer.
func OutChannelName(owner, peer LPID) string {
	return fmt.Sprintf("O%d.%d", owner, peer)
}

// An OutChannel carries events from its owner to one destination LP. It is
// bound to the inbound channel of the destination that has the owner as peer.
type OutChannel struct {
	name     string
	src      LPID
	dst      LPID
	target   string
	minDelay sim.VTime
	state    ChannelState
}

// Name returns the channel name.
func (c *OutChannel) Name() string { return c.name }

// Source returns the owner of the channel.
func (c *OutChannel) Source() LPID { return c.src }

// Destination returns the LP that receives the events.
func (c *OutChannel) Destination() LPID { return c.dst }

// Target returns the name of the inbound channel the channel is mapped to.
// It is empty before the channel is mapped.
func (c *OutChannel) Target() string { return c.target }

// MinDelay returns the minimum delay of the mapping.
func (c *OutChannel) MinDelay() sim.VTime { return c.minDelay }

// State returns the life cycle stage.
func (c *OutChannel) State() ChannelState { return c.state }

// An InChannel receives the events sent by one peer LP. Delivered events wait
// in the channel until the owner dispatches them.
type InChannel struct {
	name       string
	owner      LPID
	peer       LPID
	state      ChannelState
	ready      []any
	dispatcher Dispatcher
}

// Name returns the channel name.
func (c *InChannel) Name() string { return c.name }

// Owner returns the LP that owns the channel.
func (c *InChannel) Owner() LPID { return c.owner }

// Peer returns the LP that sends on the channel.
func (c *InChannel) Peer() LPID { return c.peer }

// State returns the life cycle stage.
func (c *InChannel) State() ChannelState { return c.state }

// Dispatcher returns the router that executes the channel's events.
func (c *InChannel) Dispatcher() Dispatcher { return c.dispatcher }

// Deliver appends a payload to the ready events. Kernels call it when the
// delivery time of the payload is reached.
func (c *InChannel) Deliver(payload any) {
	c.ready = append(c.ready, payload)
}

// Pending returns the number of delivered events that are not dispatched
// yet.
func (c *InChannel) Pending() int {
	return len(c.ready)
}

// ActiveEvents removes and returns the delivered events, oldest first.
func (c *InChannel) ActiveEvents() []any {
	events := c.ready
	c.ready = nil

	return events
}
