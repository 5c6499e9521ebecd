package engines

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/iti/evt/evtm"
	"github.com/iti/evt/vrtime"
	"github.com/sirupsen/logrus"

	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/sim"
)

// Evt is a kernel backed by an evtm.EventManager. Simulated time is expressed
// in seconds of the event manager's clock. Every delivery is dispatched on
// its own.
type Evt struct {
	mgr      *evtm.EventManager
	log      *logrus.Entry
	inbound  map[string]*lp.InChannel
	bindings map[*lp.OutChannel]binding

	pollers      []Poller
	pollInterval int
	sincePoll    int
	delivered    atomic.Uint64

	// now holds the bits of the time of the last delivery. step is held
	// while a delivery is handled and while the kernel is paused.
	now     atomic.Uint64
	step    sync.Mutex
	pauseMu sync.Mutex
	paused  bool
}

// NewEvt creates a kernel on top of mgr. Pollers run every pollInterval
// deliveries. A pollInterval of 0 disables polling.
func NewEvt(mgr *evtm.EventManager, pollInterval int, log *logrus.Entry) *Evt {
	return &Evt{
		mgr:          mgr,
		log:          log,
		inbound:      make(map[string]*lp.InChannel),
		bindings:     make(map[*lp.OutChannel]binding),
		pollInterval: pollInterval,
	}
}

// Manager returns the event manager.
func (k *Evt) Manager() *evtm.EventManager {
	return k.mgr
}

// Controller returns the kernel itself.
func (k *Evt) Controller() Controller {
	return k
}

// CurrentTime returns the time of the last delivery.
func (k *Evt) CurrentTime() sim.VTime {
	return sim.VTime(math.Float64frombits(k.now.Load()))
}

// Publish registers an inbound channel under its name.
func (k *Evt) Publish(in *lp.InChannel) error {
	if _, found := k.inbound[in.Name()]; found {
		return fmt.Errorf("channel %s is already published", in.Name())
	}

	k.inbound[in.Name()] = in

	return nil
}

// MapTo binds an outbound channel to a published inbound channel.
func (k *Evt) MapTo(
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

// Write schedules the delivery of payload with the event manager.
func (k *Evt) Write(out *lp.OutChannel, payload any, delay sim.VTime) error {
	b, found := k.bindings[out]
	if !found {
		return fmt.Errorf("%s is not mapped", out.Name())
	}

	if delay < 0 {
		return fmt.Errorf("negative delay %v on %s", delay, out.Name())
	}

	k.schedule(b.in, payload, b.minDelay+delay)

	return nil
}

// Inject delivers payload to the LP that owns in at time at, bypassing the
// minimum delay.
func (k *Evt) Inject(in *lp.InChannel, payload any, at sim.VTime) error {
	now := k.CurrentTime()
	if at < now {
		return fmt.Errorf("cannot inject into %s at %v, now is %v",
			in.Name(), at, now)
	}

	k.schedule(in, payload, at-now)

	return nil
}

func (k *Evt) schedule(in *lp.InChannel, payload any, offset sim.VTime) {
	k.mgr.Schedule(in, payload, k.deliver,
		vrtime.SecondsToTime(float64(offset)))
}

// RegisterPoller adds a poller.
func (k *Evt) RegisterPoller(p Poller) {
	k.pollers = append(k.pollers, p)
}

// Run runs the event manager until the given time.
func (k *Evt) Run(end sim.VTime) error {
	k.mgr.Run(float64(end))

	k.step.Lock()
	defer k.step.Unlock()

	return k.poll()
}

// Delivered returns the number of payloads delivered so far.
func (k *Evt) Delivered() uint64 {
	return k.delivered.Load()
}

// Pause waits for the current delivery to finish and keeps the kernel from
// handling the next one. Pausing a paused kernel does nothing.
func (k *Evt) Pause() {
	k.pauseMu.Lock()
	defer k.pauseMu.Unlock()

	if !k.paused {
		k.step.Lock()
		k.paused = true
	}
}

// Continue resumes a paused kernel.
func (k *Evt) Continue() {
	k.pauseMu.Lock()
	defer k.pauseMu.Unlock()

	if k.paused {
		k.paused = false
		k.step.Unlock()
	}
}

// IsPaused tells if the kernel is paused.
func (k *Evt) IsPaused() bool {
	k.pauseMu.Lock()
	defer k.pauseMu.Unlock()

	return k.paused
}

func (k *Evt) deliver(mgr *evtm.EventManager, context any, data any) any {
	k.step.Lock()
	defer k.step.Unlock()

	k.now.Store(math.Float64bits(mgr.CurrentSeconds()))

	in := context.(*lp.InChannel)
	in.Deliver(data)
	k.delivered.Add(1)
	in.Dispatcher().Dispatch([]*lp.InChannel{in})

	k.afterDelivery()

	return nil
}

func (k *Evt) afterDelivery() {
	if k.pollInterval <= 0 {
		return
	}

	k.sincePoll++
	if k.sincePoll < k.pollInterval {
		return
	}

	err := k.poll()
	if err != nil {
		k.log.WithField("time", k.CurrentTime()).Errorf("polling: %v", err)
	}
}

func (k *Evt) poll() error {
	k.sincePoll = 0

	for _, p := range k.pollers {
		err := p.Poll()
		if err != nil {
			return err
		}
	}

	return nil
}
