// Package engines provides the discrete-event kernels that move events
// between the channels of LPs.
package engines

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/sim"
)

// A Poller is polled regularly while the kernel runs. Messengers use it to
// make progress on out-of-band traffic.
type Poller interface {
	Poll() error
}

type binding struct {
	in       *lp.InChannel
	minDelay sim.VTime
}

type dispatchKey struct {
	dispatcher lp.Dispatcher
	time       sim.VTime
}

// Local is a conservative kernel that runs every LP of the process on a
// single serial engine.
//
// A payload written on a channel is delivered by a primary event at
// now + minDelay + delay. All the deliveries of one LP at one time are
// dispatched together by a single secondary event, which runs after every
// same-time delivery.
type Local struct {
	engine       *sim.SerialEngine
	log          *logrus.Entry
	inbound      map[string]*lp.InChannel
	bindings     map[*lp.OutChannel]binding
	scheduled    map[dispatchKey]*dispatchEvent
	pollers      []Poller
	pollInterval int
	sincePoll    int
	delivered    uint64
}

// NewLocal creates a Local kernel. Pollers run every pollInterval handled
// events. A pollInterval of 0 disables polling.
func NewLocal(pollInterval int, log *logrus.Entry) *Local {
	k := &Local{
		engine:       sim.NewSerialEngine(),
		log:          log,
		inbound:      make(map[string]*lp.InChannel),
		bindings:     make(map[*lp.OutChannel]binding),
		scheduled:    make(map[dispatchKey]*dispatchEvent),
		pollInterval: pollInterval,
	}

	k.engine.AcceptHook(sim.HookFunc(k.afterEvent))

	return k
}

// Engine returns the underlying serial engine.
func (k *Local) Engine() *sim.SerialEngine {
	return k.engine
}

// Controller returns the serial engine, which can be paused between events.
func (k *Local) Controller() Controller {
	return k.engine
}

// CurrentTime returns the current simulated time.
func (k *Local) CurrentTime() sim.VTime {
	return k.engine.CurrentTime()
}

// Publish registers an inbound channel under its name.
func (k *Local) Publish(in *lp.InChannel) error {
	if _, found := k.inbound[in.Name()]; found {
		return fmt.Errorf("channel %s is already published", in.Name())
	}

	k.inbound[in.Name()] = in

	return nil
}

// MapTo binds an outbound channel to a published inbound channel.
func (k *Local) MapTo(
	out *lp.OutChannel,
	inName string,
	minDelay sim.VTime,
) error {
	in, found := k.inbound[inName]
	if !found {
		return fmt.Errorf("no inbound channel named %s", inName)
	}

	if _, mapped := k.bindings[out]; mapped {
		return fmt.Errorf("%s is already mapped", out.Name())
	}

	if minDelay < 0 {
		return fmt.Errorf("negative minimum delay %v", minDelay)
	}

	k.bindings[out] = binding{in: in, minDelay: minDelay}

	return nil
}

// Write schedules the delivery of payload.
func (k *Local) Write(out *lp.OutChannel, payload any, delay sim.VTime) error {
	b, found := k.bindings[out]
	if !found {
		return fmt.Errorf("%s is not mapped", out.Name())
	}

	if delay < 0 {
		return fmt.Errorf("negative delay %v on %s", delay, out.Name())
	}

	t := k.engine.CurrentTime() + b.minDelay + delay
	k.engine.Schedule(&deliverEvent{
		EventBase: sim.NewEventBase(t, sim.HandlerFunc(k.deliver)),
		in:        b.in,
		payload:   payload,
	})

	return nil
}

// Inject delivers payload to the LP that owns in at time at, bypassing the
// minimum delay. It is used to seed the initial events of a run.
func (k *Local) Inject(in *lp.InChannel, payload any, at sim.VTime) error {
	if at < k.engine.CurrentTime() {
		return fmt.Errorf("cannot inject into %s at %v, now is %v",
			in.Name(), at, k.engine.CurrentTime())
	}

	k.engine.Schedule(&deliverEvent{
		EventBase: sim.NewEventBase(at, sim.HandlerFunc(k.deliver)),
		in:        in,
		payload:   payload,
	})

	return nil
}

// RegisterPoller adds a poller.
func (k *Local) RegisterPoller(p Poller) {
	k.pollers = append(k.pollers, p)
}

// Run processes the events up to end.
func (k *Local) Run(end sim.VTime) error {
	err := k.engine.RunUntil(end)
	if err != nil {
		return err
	}

	err = k.poll()
	k.engine.Finished()

	return err
}

// Delivered returns the number of payloads delivered so far.
func (k *Local) Delivered() uint64 {
	return k.delivered
}

type deliverEvent struct {
	*sim.EventBase
	in      *lp.InChannel
	payload any
}

type dispatchEvent struct {
	*sim.EventBase
	dispatcher lp.Dispatcher
	channels   []*lp.InChannel
}

func (k *Local) deliver(e sim.Event) error {
	evt := e.(*deliverEvent)
	evt.in.Deliver(evt.payload)
	k.delivered++

	key := dispatchKey{dispatcher: evt.in.Dispatcher(), time: evt.Time()}
	d, found := k.scheduled[key]
	if !found {
		d = &dispatchEvent{
			EventBase: sim.NewSecondaryEventBase(
				evt.Time(), sim.HandlerFunc(k.dispatch)),
			dispatcher: key.dispatcher,
		}
		k.scheduled[key] = d
		k.engine.Schedule(d)
	}

	for _, c := range d.channels {
		if c == evt.in {
			return nil
		}
	}

	d.channels = append(d.channels, evt.in)

	return nil
}

func (k *Local) dispatch(e sim.Event) error {
	evt := e.(*dispatchEvent)
	delete(k.scheduled, dispatchKey{dispatcher: evt.dispatcher, time: evt.Time()})

	evt.dispatcher.Dispatch(evt.channels)

	return nil
}

func (k *Local) afterEvent(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosAfterEvent || k.pollInterval <= 0 {
		return
	}

	k.sincePoll++
	if k.sincePoll < k.pollInterval {
		return
	}

	err := k.poll()
	if err != nil {
		k.log.WithField("time", ctx.Now).Errorf("polling: %v", err)
	}
}

func (k *Local) poll() error {
	k.sincePoll = 0

	for _, p := range k.pollers {
		err := p.Poll()
		if err != nil {
			return err
		}
	}

	return nil
}
