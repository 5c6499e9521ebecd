package workload

import (
	"math"

	"github.com/sim-x/simx-sub002/fault"
	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/messenger"
	"github.com/sim-x/simx-sub002/sim"
)

const maxTrail = 8

// A Relay is a token that hops from LP to LP.
type Relay struct {
	model *Model

	ID    int32
	Hop   int32
	Trail []int32
}

// Execute counts the hop and forwards the relay to a random LP. Some hops
// fail with a warning, an error that loses the relay, or a fatal error.
func (r *Relay) Execute(host *lp.LP) error {
	m := r.model
	rng := host.Random()

	m.counters.hops.Add(1)
	r.Hop++
	r.Trail = append(r.Trail, int32(host.ID()))
	if len(r.Trail) > maxTrail {
		r.Trail = r.Trail[1:]
	}

	var warning error

	u := rng.RandU01()
	switch {
	case u < m.cfg.FatalRate:
		m.counters.lost.Add(1)
		return fault.Fatal("relay %d is corrupted at hop %d", r.ID, r.Hop)
	case u < m.cfg.FatalRate+m.cfg.FaultRate/2:
		m.counters.lost.Add(1)
		return fault.Errorf("relay %d is lost at hop %d", r.ID, r.Hop)
	case u < m.cfg.FatalRate+m.cfg.FaultRate:
		m.counters.warnings.Add(1)
		warning = fault.Warn("relay %d is slow at hop %d", r.ID, r.Hop)
	}

	if m.cfg.ControlEvery > 0 && int(r.Hop)%m.cfg.ControlEvery == 0 {
		err := r.checkpoint(host)
		if err != nil {
			return err
		}
	}

	if int(r.Hop) >= m.cfg.Hops {
		m.counters.completed.Add(1)
		return warning
	}

	dest := lp.LPID(rng.RandInt(0, m.numLPs-1))
	minDelay := host.Router().OutChannel(dest).MinDelay()

	delay := minDelay + sim.VTime(-m.cfg.MeanDelay*math.Log(1-rng.RandU01()))
	if minDelay > 0 && rng.RandU01() < m.cfg.LateRate {
		m.counters.late.Add(1)
		delay = minDelay * sim.VTime(rng.RandU01())
	}

	err := host.Send(dest, r, delay)
	if err != nil {
		return fault.Wrap(fault.LevelError, err, "forwarding relay")
	}

	return warning
}

func (r *Relay) checkpoint(host *lp.LP) error {
	m := r.model

	msgr, found := m.messengers[host.ID()]
	if !found || !msgr.Active() {
		return nil
	}

	dest := lp.LPID(host.Random().RandInt(0, m.numLPs-1))
	ci := &messenger.ControlInfo{
		SrcLP:       host.ID(),
		DestLP:      dest,
		DestEntity:  ControlEntity,
		DestService: ControlService,
		SentTime:    host.Now(),
		Info: &Checkpoint{
			Relay: r.ID,
			Hop:   r.Hop,
			Trail: append([]int32(nil), r.Trail...),
		},
	}

	sent, err := msgr.Send(host.ID(), dest, ci)
	if err != nil {
		return fault.Wrap(fault.LevelError, err, "sending checkpoint")
	}

	if sent {
		m.counters.controlsSent.Add(1)
	}

	return nil
}
