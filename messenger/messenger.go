// Package messenger carries control messages between the processes of a
// distributed run, outside of the event channels.
package messenger

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sim-x/simx-sub002/comm"
	"github.com/sim-x/simx-sub002/fault"
	"github.com/sim-x/simx-sub002/lp"
	"github.com/sim-x/simx-sub002/packed"
)

const (
	// ControlTag is the tag of every control message.
	ControlTag = 1

	// MaxMessageSize is the largest control message that can be received.
	MaxMessageSize = 1 << 20
)

// A Handler consumes the control messages addressed to this process.
type Handler interface {
	HandleControl(ci *ControlInfo) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ci *ControlInfo) error

// HandleControl calls f.
func (f HandlerFunc) HandleControl(ci *ControlInfo) error {
	return f(ci)
}

// PendingSend is a send that has not completed yet. It keeps the message
// bytes alive until the transport is done with them.
type PendingSend struct {
	Request comm.Request
	Buffer  []byte
	Dest    int
}

// Stats counts what a messenger did.
type Stats struct {
	Sent      uint64 `json:"sent"`
	Completed uint64 `json:"completed"`
	Failed    uint64 `json:"failed"`
	Received  uint64 `json:"received"`
	Malformed uint64 `json:"malformed"`
	Pending   int    `json:"pending"`
}

// A Messenger sends and receives control messages. It is driven by the
// simulation loop through CheckStatus and is not safe for concurrent use.
type Messenger struct {
	comm   comm.Communicator
	active bool
	rank   int

	recvBuf  []byte
	recv     comm.Request
	pending  []*PendingSend
	received []*ControlInfo

	handler  Handler
	boundary *fault.Boundary
	log      *logrus.Entry
	stats    Stats
}

// Init attaches the messenger to the world. The messenger stays inactive if
// there is no live transport or if the run has a single process.
func (m *Messenger) Init(world comm.World) error {
	if m.active {
		return errors.New("messenger is already initialized")
	}

	if world == nil || !world.Live() {
		m.log.Info("no live transport, control messages are disabled")
		return nil
	}

	if world.Size() < 2 {
		m.log.Info("single process run, control messages are disabled")
		return nil
	}

	ranks := make([]int, world.Size())
	for i := range ranks {
		ranks[i] = i
	}

	c, err := world.Sub(ranks)
	if err != nil {
		return comm.Wrap("init", err)
	}

	m.comm = c
	m.rank = c.Rank()
	m.recvBuf = make([]byte, MaxMessageSize)
	m.active = true
	m.log = m.log.WithField("rank", m.rank)

	return m.armReceive()
}

func (m *Messenger) armReceive() error {
	req, err := m.comm.IRecv(m.recvBuf, comm.AnySource, ControlTag)
	if err != nil {
		m.recv = nil
		return comm.Wrap("recv", err)
	}

	m.recv = req

	return nil
}

// Active tells if control messages can be exchanged.
func (m *Messenger) Active() bool {
	return m.active
}

// Rank returns the rank of this process, or -1 if the messenger is inactive.
func (m *Messenger) Rank() int {
	if !m.active {
		return -1
	}

	return m.rank
}

// NumPending returns the number of sends that have not completed.
func (m *Messenger) NumPending() int {
	return len(m.pending)
}

// Stats returns the counters of the messenger.
func (m *Messenger) Stats() Stats {
	s := m.stats
	s.Pending = len(m.pending)

	return s
}

// Send starts sending ci from LP src to LP dest. It returns false without an
// error when the message cannot be sent from here, and false with a
// TransportError when the transport fails.
func (m *Messenger) Send(src, dest lp.LPID, ci *ControlInfo) (bool, error) {
	if !m.active {
		m.log.WithField("dest", dest).
			Error("messenger is not active, dropping control message")
		return false, nil
	}

	if int(src) != m.rank {
		m.log.WithFields(logrus.Fields{
			"src":  src,
			"dest": dest,
		}).Error("control messages can only be sent from the local LP")
		return false, nil
	}

	b := packed.New()
	ci.Pack(b)

	if b.Len() > MaxMessageSize {
		return false, &comm.TransportError{
			Op:  "send",
			Msg: fmt.Sprintf("message of %d bytes exceeds %d", b.Len(), MaxMessageSize),
		}
	}

	buf := b.Bytes()

	req, err := m.comm.ISend(buf, int(dest), ControlTag)
	if err != nil {
		return false, comm.Wrap("send", err)
	}

	m.pending = append(m.pending, &PendingSend{
		Request: req,
		Buffer:  buf,
		Dest:    int(dest),
	})
	m.stats.Sent++

	return true, nil
}

// CheckStatus makes progress without blocking. It hands the messages of a
// completed receive to the handler, starts the next receive and releases the
// sends that completed.
func (m *Messenger) CheckStatus() error {
	if !m.active {
		return nil
	}

	recvErr := m.progressReceive()
	sendErr := m.progressSends()

	return errors.Join(recvErr, sendErr)
}

// Poll is CheckStatus under the name the engine polls with.
func (m *Messenger) Poll() error {
	return m.CheckStatus()
}

func (m *Messenger) progressReceive() error {
	if m.recv == nil {
		return m.armReceive()
	}

	done, status, err := m.recv.Test()
	if err != nil {
		m.recv = nil
		return errors.Join(comm.Wrap("recv", err), m.armReceive())
	}

	if !done {
		return nil
	}

	if status.Tag != ControlTag {
		m.log.WithFields(logrus.Fields{
			"source": status.Source,
			"tag":    status.Tag,
		}).Errorf("unexpected message tag, expecting %d", ControlTag)

		return m.armReceive()
	}

	m.decode(status.Source, m.recvBuf[:status.Count])

	err = m.armReceive()

	m.process()

	return err
}

func (m *Messenger) decode(source int, data []byte) {
	b := packed.Wrap(data, packed.WithMaxLength(MaxMessageSize))

	for b.Remaining() > 0 {
		ci := &ControlInfo{}
		if !ci.Unpack(b) {
			m.stats.Malformed++
			m.log.WithFields(logrus.Fields{
				"source": source,
				"offset": b.ReadOffset(),
			}).Error("malformed control message, dropping the rest")

			return
		}

		m.received = append(m.received, ci)
	}
}

func (m *Messenger) process() {
	defer func() {
		clear(m.received)
		m.received = m.received[:0]
	}()

	for _, ci := range m.received {
		m.stats.Received++

		outcome := m.boundary.Run(logrus.Fields{
			"src":     ci.SrcLP,
			"dest":    ci.DestLP,
			"entity":  ci.DestEntity,
			"service": ci.DestService,
		}, func() error {
			return m.handler.HandleControl(ci)
		})

		if outcome.Action == fault.Terminate {
			return
		}
	}
}

func (m *Messenger) progressSends() error {
	var errs []error

	kept := m.pending[:0]

	for _, p := range m.pending {
		done, _, err := p.Request.Test()

		switch {
		case err != nil:
			m.stats.Failed++
			errs = append(errs, comm.Wrap("send", err))
		case done:
			m.stats.Completed++
		default:
			kept = append(kept, p)
		}
	}

	clear(m.pending[len(kept):])
	m.pending = kept

	return errors.Join(errs...)
}

// Finalize releases the resources of the messenger. Sends that did not
// complete and messages that were received but not processed are reported
// and discarded.
func (m *Messenger) Finalize() error {
	if !m.active {
		return nil
	}

	if len(m.pending) > 0 {
		m.log.WithField("count", len(m.pending)).
			Warn("control messages are still in flight at finalization")

		for _, p := range m.pending {
			p.Request.Cancel()
		}
	}

	if m.recv != nil {
		done, _, err := m.recv.Test()
		if done && err == nil {
			m.log.Warn("a received control message was never processed")
		} else {
			m.recv.Cancel()
		}
	}

	m.pending = nil
	m.received = nil
	m.recv = nil
	m.recvBuf = nil
	m.active = false

	return nil
}
