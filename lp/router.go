package lp

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sim-x/simx-sub002/fault"
	"github.com/sim-x/simx-sub002/sim"
)

// ErrChannelNotActive is returned when sending on a channel before all the
// routers are initialized and started.
var ErrChannelNotActive = errors.New("channel is not active")

// HookPosBeforeExecute triggers before an event is executed. The hook item is
// the event and the detail is the inbound channel.
var HookPosBeforeExecute = &sim.HookPos{Name: "BeforeExecute"}

// HookPosAfterExecute triggers after an event is executed. The hook item is
// the event and the detail is an Execution.
var HookPosAfterExecute = &sim.HookPos{Name: "AfterExecute"}

// HookPosLateSend triggers when a send requests less than the minimum delay.
// The hook detail is a LateSend.
var HookPosLateSend = &sim.HookPos{Name: "LateSend"}

// HookPosDropped triggers when a delivered payload cannot be executed. The
// hook item is the payload and the detail is the inbound channel.
var HookPosDropped = &sim.HookPos{Name: "Dropped"}

// Execution is the detail of the HookPosAfterExecute hook.
type Execution struct {
	Channel *InChannel
	Outcome fault.Outcome
}

// RouterStats counts what a router did.
type RouterStats struct {
	Dispatched uint64 `json:"dispatched"`
	Failed     uint64 `json:"failed"`
	Dropped    uint64 `json:"dropped"`
	LateSends  int    `json:"late_sends"`
}

// A Router owns the channels of one LP. It maps them at initialization,
// applies the minimum delay on every send and executes every delivered event
// inside a fault boundary.
type Router struct {
	sim.HookableBase

	host     *LP
	kernel   Kernel
	delays   MinDelays
	in       []*InChannel
	out      []*OutChannel
	boundary *fault.Boundary
	log      *logrus.Entry

	escalateAfter int
	lateness      latenessTracker
	terminated    bool
	stats         RouterStats
}

func newRouter(
	host *LP,
	kernel Kernel,
	numLPs int,
	delays MinDelays,
	boundary *fault.Boundary,
	log *logrus.Entry,
) (*Router, error) {
	r := &Router{
		host:     host,
		kernel:   kernel,
		delays:   delays,
		in:       make([]*InChannel, numLPs),
		out:      make([]*OutChannel, numLPs),
		boundary: boundary,
		log:      log,
	}

	self := host.id
	for i := 0; i < numLPs; i++ {
		peer := LPID(i)

		r.out[i] = &OutChannel{
			name: OutChannelName(self, peer),
			src:  self,
			dst:  peer,
		}

		r.in[i] = &InChannel{
			name:       InChannelName(self, peer),
			owner:      self,
			peer:       peer,
			dispatcher: r,
		}

		err := kernel.Publish(r.in[i])
		if err != nil {
			return nil, fmt.Errorf("publishing %s: %w", r.in[i].name, err)
		}
	}

	return r, nil
}

// NumLPs returns the number of LPs the router has channels to.
func (r *Router) NumLPs() int {
	return len(r.out)
}

// OutChannel returns the outbound channel to dest.
func (r *Router) OutChannel(dest LPID) *OutChannel {
	r.mustBeKnown(dest)
	return r.out[dest]
}

// InChannel returns the inbound channel from src.
func (r *Router) InChannel(src LPID) *InChannel {
	r.mustBeKnown(src)
	return r.in[src]
}

func (r *Router) mustBeKnown(id LPID) {
	if id < 0 || int(id) >= len(r.out) {
		panic(fmt.Sprintf("LP %d does not exist, there are %d LPs",
			id, len(r.out)))
	}
}

// Init maps every outbound channel to the inbound channel of its destination.
// The inbound channels of every LP must be published before any router is
// initialized.
func (r *Router) Init() error {
	self := r.host.id

	for i, out := range r.out {
		if out.state != Unconfigured {
			return fmt.Errorf("%s is already %s", out.name, out.state)
		}

		peer := LPID(i)
		inName := InChannelName(peer, self)
		minDelay := r.delays.For(self, peer)

		err := r.kernel.MapTo(out, inName, minDelay)
		if err != nil {
			return fmt.Errorf("mapping %s to %s: %w", out.name, inName, err)
		}

		out.target = inName
		out.minDelay = minDelay
		out.state = Mapped
	}

	for _, in := range r.in {
		in.state = Mapped
	}

	return nil
}

// Start activates the channels. It must be called after every router of the
// run is initialized.
func (r *Router) Start() error {
	for _, out := range r.out {
		if out.state != Mapped {
			return fmt.Errorf("cannot start %s, it is %s", out.name, out.state)
		}
	}

	for _, out := range r.out {
		out.state = Active
	}

	for _, in := range r.in {
		in.state = Active
	}

	return nil
}

// EffectiveDelay returns the delay to write on the channel to dest so that the
// event arrives after the requested delay. If the requested delay is below the
// minimum delay, the effective delay is 0 and late is true.
func (r *Router) EffectiveDelay(
	dest LPID,
	requested sim.VTime,
) (effective sim.VTime, late bool) {
	minDelay := r.delays.For(r.host.id, dest)
	if requested < minDelay {
		return 0, true
	}

	return requested - minDelay, false
}

// SendEvent sends a payload to dest, to arrive after the requested delay. A
// request below the minimum delay is not rejected. The event is sent with the
// minimum delay and a warning is logged.
func (r *Router) SendEvent(dest LPID, payload any, requested sim.VTime) error {
	r.mustBeKnown(dest)

	out := r.out[dest]
	if out.state != Active {
		return fmt.Errorf("sending on %s: %w (%s)",
			out.name, ErrChannelNotActive, out.state)
	}

	effective, late := r.EffectiveDelay(dest, requested)
	if late {
		r.reportLateSend(LateSend{
			Dest:      dest,
			Requested: requested,
			MinDelay:  out.minDelay,
		})
	}

	return r.kernel.Write(out, payload, effective)
}

func (r *Router) reportLateSend(s LateSend) {
	n := r.lateness.record(s)

	level := logrus.WarnLevel
	if r.escalateAfter > 0 && n > r.escalateAfter {
		level = logrus.ErrorLevel
	}

	now := r.kernel.CurrentTime()
	r.log.WithFields(logrus.Fields{
		"lp":        r.host.id,
		"time":      now,
		"dest":      s.Dest,
		"requested": s.Requested,
		"min_delay": s.MinDelay,
	}).Logf(level,
		"requested delay %v is below the minimum delay %v, "+
			"the event arrives %v later than requested",
		s.Requested, s.MinDelay, s.Shortfall())

	r.InvokeHook(sim.HookCtx{
		Domain: r,
		Now:    now,
		Pos:    HookPosLateSend,
		Detail: s,
	})
}

// Dispatch executes the ready events of the given channels, channel by
// channel, oldest event first. A failing event does not prevent the
// following ones from running unless it is fatal.
func (r *Router) Dispatch(active []*InChannel) {
	for _, ch := range active {
		for _, payload := range ch.ActiveEvents() {
			if r.terminated {
				return
			}

			r.dispatchOne(ch, payload)
		}
	}
}

func (r *Router) dispatchOne(ch *InChannel, payload any) {
	now := r.kernel.CurrentTime()

	evt, ok := payload.(Event)
	if !ok {
		r.stats.Dropped++
		r.log.WithFields(logrus.Fields{
			"lp":      r.host.id,
			"time":    now,
			"channel": ch.name,
		}).Errorf("dropping payload of type %T, it is not an executable event",
			payload)

		r.InvokeHook(sim.HookCtx{
			Domain: r,
			Now:    now,
			Pos:    HookPosDropped,
			Item:   payload,
			Detail: ch,
		})

		return
	}

	ctx := sim.HookCtx{
		Domain: r,
		Now:    now,
		Pos:    HookPosBeforeExecute,
		Item:   evt,
		Detail: ch,
	}
	r.InvokeHook(ctx)

	outcome := r.boundary.Run(logrus.Fields{
		"lp":    r.host.id,
		"time":  now,
		"event": fmt.Sprintf("%T", evt),
	}, func() error {
		return evt.Execute(r.host)
	})

	r.stats.Dispatched++
	if outcome.Err != nil {
		r.stats.Failed++
	}

	if outcome.Action == fault.Terminate {
		r.terminated = true
	}

	ctx.Pos = HookPosAfterExecute
	ctx.Detail = Execution{Channel: ch, Outcome: outcome}
	r.InvokeHook(ctx)
}

// Terminated tells if a fatal error stopped the router.
func (r *Router) Terminated() bool {
	return r.terminated
}

// Stats returns the counters of the router.
func (r *Router) Stats() RouterStats {
	s := r.stats
	s.LateSends = r.lateness.count()

	return s
}

// Lateness summarizes the late sends of the router.
func (r *Router) Lateness() LatenessReport {
	return r.lateness.report()
}
