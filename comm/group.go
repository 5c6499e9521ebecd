package comm

import (
	"fmt"
)

// A Fabric is what a transport provides to build groups on.
type Fabric interface {
	WorldRank() int
	WorldSize() int
	Live() bool
	Mailbox() *Mailbox

	// Send starts delivering env to the rank env.Dest.
	Send(env *Envelope) (Request, error)

	// NextContext returns a new context ID. Every rank returns the same
	// sequence of IDs.
	NextContext() uint32
}

// A Group is a Communicator over a subset of the ranks of a fabric.
type Group struct {
	fabric Fabric
	ctx    uint32
	ranks  []int
	rank   int
}

// NewWorld creates the group of all the ranks of a fabric.
func NewWorld(f Fabric) *Group {
	ranks := make([]int, f.WorldSize())
	for i := range ranks {
		ranks[i] = i
	}

	return &Group{
		fabric: f,
		ranks:  ranks,
		rank:   f.WorldRank(),
	}
}

// Rank returns the rank of the caller in the group.
func (g *Group) Rank() int {
	return g.rank
}

// Size returns the number of ranks in the group.
func (g *Group) Size() int {
	return len(g.ranks)
}

// Live tells if the fabric is usable.
func (g *Group) Live() bool {
	return g.fabric.Live()
}

// ISend starts sending buf to dest.
func (g *Group) ISend(buf []byte, dest, tag int) (Request, error) {
	if dest < 0 || dest >= len(g.ranks) {
		return nil, &TransportError{
			Op:  "send",
			Msg: fmt.Sprintf("invalid rank %d in a group of %d", dest, len(g.ranks)),
		}
	}

	req, err := g.fabric.Send(&Envelope{
		Context: g.ctx,
		Source:  g.fabric.WorldRank(),
		Dest:    g.ranks[dest],
		Tag:     tag,
		Data:    buf,
	})

	return req, Wrap("send", err)
}

// IRecv starts receiving one message into buf.
func (g *Group) IRecv(buf []byte, source, tag int) (Request, error) {
	worldSource := AnySource
	if source != AnySource {
		if source < 0 || source >= len(g.ranks) {
			return nil, &TransportError{
				Op:  "recv",
				Msg: fmt.Sprintf("invalid rank %d in a group of %d", source, len(g.ranks)),
			}
		}

		worldSource = g.ranks[source]
	}

	return g.fabric.Mailbox().Post(g.ctx, worldSource, tag, buf, g.groupRank), nil
}

func (g *Group) groupRank(worldRank int) int {
	for i, r := range g.ranks {
		if r == worldRank {
			return i
		}
	}

	return AnySource
}

// Sub creates a group of the given group ranks.
func (g *Group) Sub(ranks []int) (Communicator, error) {
	ctx := g.fabric.NextContext()

	worldRanks := make([]int, len(ranks))
	me := -1
	for i, r := range ranks {
		if r < 0 || r >= len(g.ranks) {
			return nil, &TransportError{
				Op:  "sub",
				Msg: fmt.Sprintf("invalid rank %d in a group of %d", r, len(g.ranks)),
			}
		}

		worldRanks[i] = g.ranks[r]
		if r == g.rank {
			me = i
		}
	}

	if me < 0 {
		return nil, ErrNotMember
	}

	return &Group{
		fabric: g.fabric,
		ctx:    ctx,
		ranks:  worldRanks,
		rank:   me,
	}, nil
}
