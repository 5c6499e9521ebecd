// Package simulation assembles the kernel, the LPs, the messengers and the
// optional recording and monitoring of a run.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sim-x/simx-sub002/comm/tcp"
	"github.com/sim-x/simx-sub002/config"
	"github.com/sim-x/simx-sub002/datarecording"
	"github.com/sim-x/simx-sub002/engines"
	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/messenger"
	"github.com/sim-x/simx-sub002/monitoring"
	"github.com/sim-x/simx-sub002/sim"
	"github.com/sim-x/simx-sub002/tracing"
	"github.com/sim-x/simx-sub002/workload"
)

// maxDrainRounds bounds the polling of the messengers after the kernel
// stopped.
const maxDrainRounds = 10000

func vtime(t float64) sim.VTime {
	return sim.VTime(t)
}

// A Simulation is a ready-to-run set of LPs.
type Simulation struct {
	id  string
	cfg config.Config
	log *logrus.Entry

	kernel     engines.Kernel
	node       *tcp.Node
	lps        []*lp.LP
	messengers []*messenger.Messenger
	model      *workload.Model

	recorder     datarecording.DataRecorder
	execRecorder *datarecording.ExecRecorder
	tracer       *tracing.DispatchTracer

	monitor  *monitoring.Monitor
	progress *monitoring.ProgressBar

	terminated bool
}

// Result summarizes a run.
type Result struct {
	ID         string          `json:"id"`
	EndTime    float64         `json:"end_time"`
	Delivered  uint64          `json:"delivered"`
	Routers    lp.RouterStats  `json:"routers"`
	Terminated bool            `json:"terminated"`
	Workload   workload.Stats  `json:"workload"`
	Messengers messenger.Stats `json:"messengers"`
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Kernel returns the kernel that runs the LPs.
func (s *Simulation) Kernel() engines.Kernel {
	return s.kernel
}

// LPs returns the LPs, ordered by ID.
func (s *Simulation) LPs() []*lp.LP {
	return s.lps
}

// Node returns the TCP node of a distributed run, or nil.
func (s *Simulation) Node() *tcp.Node {
	return s.node
}

// Messengers returns the messengers, one per LP hosted by the process.
func (s *Simulation) Messengers() []*messenger.Messenger {
	return s.messengers
}

// Model returns the workload.
func (s *Simulation) Model() *workload.Model {
	return s.model
}

// Monitor returns the monitor, or nil if monitoring is disabled.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Tracer returns the dispatch tracer, or nil if tracing is disabled.
func (s *Simulation) Tracer() *tracing.DispatchTracer {
	return s.tracer
}

// Run seeds the workload, runs the kernel up to the configured end time and
// terminates the simulation.
func (s *Simulation) Run() (Result, error) {
	start := time.Now()

	err := s.model.Seed(s.kernel, s.lps)
	if err != nil {
		return Result{}, err
	}

	runErr := s.kernel.Run(vtime(s.cfg.EndTime))
	drainErr := s.drainMessengers()
	if s.node != nil {
		drainErr = errors.Join(drainErr, s.waitForPeers())
	}

	res := s.result()

	s.log.WithFields(logrus.Fields{
		"time":      res.EndTime,
		"delivered": res.Delivered,
		"hops":      res.Workload.Hops,
		"elapsed":   time.Since(start).String(),
	}).Info("simulation finished")

	termErr := s.Terminate()

	return res, errors.Join(runErr, drainErr, termErr)
}

// drainMessengers polls the messengers until no send is pending and no
// message arrived for two rounds.
func (s *Simulation) drainMessengers() error {
	var errs []error

	quietRounds := 0
	for round := 0; round < maxDrainRounds && quietRounds < 2; round++ {
		busy := 0
		for _, m := range s.messengers {
			before := m.Stats()

			err := m.CheckStatus()
			if err != nil {
				errs = append(errs, err)
			}

			busy += m.NumPending()
			if after := m.Stats(); after.Received != before.Received ||
				after.Malformed != before.Malformed {
				busy++
			}
		}

		if busy == 0 {
			quietRounds++
		} else {
			quietRounds = 0
		}
	}

	return errors.Join(errs...)
}

// waitForPeers tells the other processes that this one is done and keeps
// consuming their control messages until they are done too.
func (s *Simulation) waitForPeers() error {
	err := s.node.Finish()
	if err != nil {
		return err
	}

	linger := time.Duration(s.cfg.Cluster.Linger * float64(time.Second))
	deadline := time.Now().Add(linger)

	var errs []error
	for !s.node.PeersFinished() {
		if time.Now().After(deadline) {
			errs = append(errs, fmt.Errorf(
				"other processes did not finish within %v", linger))
			break
		}

		for _, m := range s.messengers {
			errs = append(errs, m.CheckStatus())
		}

		time.Sleep(time.Millisecond)
	}

	errs = append(errs, s.drainMessengers())

	return errors.Join(errs...)
}

func (s *Simulation) result() Result {
	res := Result{
		ID:        s.id,
		EndTime:   float64(s.kernel.CurrentTime()),
		Delivered: s.kernel.Delivered(),
		Workload:  s.model.Stats(),
	}

	for _, l := range s.lps {
		st := l.Router().Stats()
		res.Routers.Dispatched += st.Dispatched
		res.Routers.Failed += st.Failed
		res.Routers.Dropped += st.Dropped
		res.Routers.LateSends += st.LateSends
		res.Terminated = res.Terminated || l.Router().Terminated()
	}

	for _, m := range s.messengers {
		st := m.Stats()
		res.Messengers.Sent += st.Sent
		res.Messengers.Completed += st.Completed
		res.Messengers.Failed += st.Failed
		res.Messengers.Received += st.Received
		res.Messengers.Malformed += st.Malformed
		res.Messengers.Pending += st.Pending
	}

	return res
}

// Terminate releases the messengers, writes the records and stops the
// monitor.
func (s *Simulation) Terminate() error {
	if s.terminated {
		return nil
	}

	s.terminated = true

	var errs []error

	for _, m := range s.messengers {
		errs = append(errs, m.Finalize())
	}

	errs = append(errs, s.closeNode())

	if s.tracer != nil {
		s.tracer.Terminate()
		s.execRecorder.End()
		errs = append(errs, s.recorder.Close())
	}

	if s.monitor != nil {
		s.monitor.CompleteProgressBar(s.progress)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		errs = append(errs, s.monitor.StopServer(ctx))
	}

	return errors.Join(errs...)
}

func (s *Simulation) closeNode() error {
	if s.node == nil {
		return nil
	}

	err := s.node.Close()
	s.node = nil

	return err
}

type progressPoller struct {
	bar    *monitoring.ProgressBar
	kernel sim.TimeTeller
}

func (p *progressPoller) Poll() error {
	p.bar.SetFinished(uint64(p.kernel.CurrentTime()))
	return nil
}
