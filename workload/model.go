// Package workload provides the relay model: tokens that hop between LPs
// with random destinations and delays until they made enough hops.
package workload

import (
	"fmt"
	"sync/atomic"

	"github.com/sim-x/simx-sub002/config"
	"github.com/sim-x/simx-sub002/fault"
	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/messenger"
	"github.com/sim-x/simx-sub002/packed"
	"github.com/sim-x/simx-sub002/sim"
)

// ControlEntity is the entity that receives the checkpoints of the relays.
const ControlEntity = "relay"

// ControlService is the service of ControlEntity that counts checkpoints.
const ControlService = 1

// Checkpoint is the control message a relay sends every few hops.
type Checkpoint struct {
	Relay int32
	Hop   int32
	Trail []int32
}

// Pack writes the checkpoint.
func (c *Checkpoint) Pack(b *packed.Buffer) {
	b.AddInt32(c.Relay)
	b.AddInt32(c.Hop)
	packed.PutSlice(b, c.Trail)
}

// Unpack reads a checkpoint written by Pack.
func (c *Checkpoint) Unpack(b *packed.Buffer) bool {
	return b.GetInt32(&c.Relay) &&
		b.GetInt32(&c.Hop) &&
		packed.TakeSlice(b, &c.Trail)
}

func init() {
	messenger.MustRegisterInfo(&Checkpoint{})
}

// An Injector places an event on an inbound channel at a given time.
type Injector interface {
	Inject(in *lp.InChannel, payload any, at sim.VTime) error
}

// Stats counts what happened to the relays.
type Stats struct {
	Hops             uint64 `json:"hops"`
	Completed        uint64 `json:"completed"`
	Lost             uint64 `json:"lost"`
	Warnings         uint64 `json:"warnings"`
	LateRequests     uint64 `json:"late_requests"`
	ControlsSent     uint64 `json:"controls_sent"`
	ControlsReceived uint64 `json:"controls_received"`
}

type counters struct {
	hops, completed, lost, warnings, late atomic.Uint64
	controlsSent, controlsReceived        atomic.Uint64
}

// Model is the relay model. Its counters may be read while the simulation
// runs.
type Model struct {
	cfg        config.Workload
	numLPs     int
	messengers map[lp.LPID]*messenger.Messenger
	counters   counters
}

// NewModel creates a relay model for numLPs LPs.
func NewModel(cfg config.Workload, numLPs int) *Model {
	return &Model{
		cfg:        cfg,
		numLPs:     numLPs,
		messengers: make(map[lp.LPID]*messenger.Messenger),
	}
}

// AttachMessenger lets the relays hosted by LP id send checkpoints through m.
func (m *Model) AttachMessenger(id lp.LPID, msgr *messenger.Messenger) {
	m.messengers[id] = msgr
}

// Seed injects the relays at time 0, spread over the LPs round-robin.
func (m *Model) Seed(k Injector, lps []*lp.LP) error {
	if len(lps) == 0 {
		return nil
	}

	for i := 0; i < m.cfg.Relays; i++ {
		host := lps[i%len(lps)]
		in := host.Router().InChannel(host.ID())

		err := k.Inject(in, &Relay{model: m, ID: int32(i)}, 0)
		if err != nil {
			return fmt.Errorf("seeding relay %d: %w", i, err)
		}
	}

	return nil
}

// HandleControl consumes the checkpoints sent by the relays.
func (m *Model) HandleControl(ci *messenger.ControlInfo) error {
	if ci.DestEntity != ControlEntity || ci.DestService != ControlService {
		return fault.Warn("no service %d on entity %q", ci.DestService, ci.DestEntity)
	}

	cp, ok := ci.Info.(*Checkpoint)
	if !ok {
		return fault.Errorf("unexpected control info %T", ci.Info)
	}

	if int(cp.Hop) > m.cfg.Hops {
		return fault.Errorf("relay %d reported hop %d beyond %d",
			cp.Relay, cp.Hop, m.cfg.Hops)
	}

	m.counters.controlsReceived.Add(1)

	return nil
}

// Stats returns the counters of the model.
func (m *Model) Stats() Stats {
	return Stats{
		Hops:             m.counters.hops.Load(),
		Completed:        m.counters.completed.Load(),
		Lost:             m.counters.lost.Load(),
		Warnings:         m.counters.warnings.Load(),
		LateRequests:     m.counters.late.Load(),
		ControlsSent:     m.counters.controlsSent.Load(),
		ControlsReceived: m.counters.controlsReceived.Load(),
	}
}
