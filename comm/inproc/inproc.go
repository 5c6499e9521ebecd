// Package inproc provides a transport whose ranks live in the same process.
// A send completes when a receive on the destination takes the message.
package inproc

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sim-x/simx-sub002/comm"
)

// A Network connects a fixed number of in-process ranks.
type Network struct {
	mu    sync.Mutex
	boxes []*comm.Mailbox
}

// NewNetwork creates a network of size ranks.
func NewNetwork(size int) *Network {
	n := &Network{boxes: make([]*comm.Mailbox, size)}
	for i := range n.boxes {
		n.boxes[i] = comm.NewMailbox()
	}

	return n
}

// Size returns the number of ranks.
func (n *Network) Size() int {
	return len(n.boxes)
}

// World returns the world communicator of one rank.
func (n *Network) World(rank int) *comm.Group {
	if rank < 0 || rank >= len(n.boxes) {
		panic(fmt.Sprintf("rank %d is out of range [0, %d)", rank, len(n.boxes)))
	}

	return comm.NewWorld(&endpoint{network: n, rank: rank})
}

// Break makes every pending and future receive of rank fail with a transport
// error.
func (n *Network) Break(rank int, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.boxes[rank].Fail(&comm.TransportError{Op: "recv", Msg: reason})
}

type endpoint struct {
	network *Network
	rank    int
	nextCtx uint32
}

func (e *endpoint) WorldRank() int {
	return e.rank
}

func (e *endpoint) WorldSize() int {
	return len(e.network.boxes)
}

func (e *endpoint) Live() bool {
	return true
}

func (e *endpoint) Mailbox() *comm.Mailbox {
	return e.network.boxes[e.rank]
}

func (e *endpoint) NextContext() uint32 {
	e.nextCtx++
	return e.nextCtx
}

func (e *endpoint) Send(env *comm.Envelope) (comm.Request, error) {
	if env.Dest < 0 || env.Dest >= len(e.network.boxes) {
		return nil, fmt.Errorf("no rank %d", env.Dest)
	}

	req := &sendRequest{dest: env.Dest, tag: env.Tag, count: len(env.Data)}
	env.OnMatch = func() { req.done.Store(true) }

	e.network.mu.Lock()
	box := e.network.boxes[env.Dest]
	e.network.mu.Unlock()

	box.Arrive(env)

	return req, nil
}

type sendRequest struct {
	done  atomic.Bool
	dest  int
	tag   int
	count int
}

func (r *sendRequest) Test() (bool, comm.Status, error) {
	if !r.done.Load() {
		return false, comm.Status{}, nil
	}

	return true, comm.Status{Source: r.dest, Tag: r.tag, Count: r.count}, nil
}

func (r *sendRequest) Cancel() {}
