// Package tcp provides a transport that connects the ranks of a run over TCP.
//
// Every pair of ranks shares one connection. Each connection has a reader
// goroutine that turns frames into envelopes and a writer goroutine that
// drains an unbounded queue of outgoing frames, so sends never block. Only
// byte slices and completion flags cross goroutines.
package tcp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sim-x/simx-sub002/comm"
)

const headerSize = 16

// MaxFrameSize is the largest payload a frame may carry. A peer announcing a
// larger frame is treated as a lost connection.
const MaxFrameSize = 1 << 20

// byeContext marks the frame a node sends once it will not send anymore.
const byeContext = math.MaxUint32

var errClosed = errors.New("node is closed")

// A Node is the TCP endpoint of one rank.
type Node struct {
	rank     int
	size     int
	listener net.Listener
	mailbox  *comm.Mailbox
	peers    []*peer
	nextCtx  uint32
	log      *logrus.Entry

	dialTimeout time.Duration
	closed      atomic.Bool
	wg          sync.WaitGroup
}

// Listen creates the node of rank and starts listening on addr. Use ":0" to
// pick a free port.
func Listen(rank int, addr string, log *logrus.Entry) (*Node, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, comm.Wrap("listen", err)
	}

	return &Node{
		rank:        rank,
		listener:    l,
		mailbox:     comm.NewMailbox(),
		log:         log.WithField("rank", rank),
		dialTimeout: 10 * time.Second,
	}, nil
}

// Addr returns the address the node listens on.
func (n *Node) Addr() string {
	return n.listener.Addr().String()
}

// Connect connects the node to every other rank and returns the world
// communicator. addrs holds the address of every rank, in rank order. A rank
// dials the ranks below it and accepts connections from the ranks above it.
func (n *Node) Connect(addrs []string) (*comm.Group, error) {
	if n.rank < 0 || n.rank >= len(addrs) {
		return nil, &comm.TransportError{
			Op:  "connect",
			Msg: fmt.Sprintf("rank %d is out of range [0, %d)", n.rank, len(addrs)),
		}
	}

	n.size = len(addrs)
	n.peers = make([]*peer, n.size)

	for r := 0; r < n.rank; r++ {
		conn, err := n.dial(addrs[r])
		if err != nil {
			return nil, comm.Wrap("connect", err)
		}

		err = writeHandshake(conn, n.rank)
		if err != nil {
			return nil, comm.Wrap("connect", err)
		}

		n.startPeer(r, conn)
	}

	for accepted := n.rank + 1; accepted < n.size; accepted++ {
		conn, err := n.listener.Accept()
		if err != nil {
			return nil, comm.Wrap("accept", err)
		}

		r, err := readHandshake(conn)
		if err != nil {
			return nil, comm.Wrap("accept", err)
		}

		if r <= n.rank || r >= n.size || n.peers[r] != nil {
			return nil, &comm.TransportError{
				Op:  "accept",
				Msg: fmt.Sprintf("unexpected connection from rank %d", r),
			}
		}

		n.startPeer(r, conn)
	}

	n.log.WithField("size", n.size).Debug("connected")

	return comm.NewWorld(n), nil
}

func (n *Node) dial(addr string) (net.Conn, error) {
	deadline := time.Now().Add(n.dialTimeout)
	backoff := 10 * time.Millisecond

	for {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			return conn, nil
		}

		if time.Now().After(deadline) {
			return nil, err
		}

		time.Sleep(backoff)
		backoff = min(2*backoff, time.Second)
	}
}

func writeHandshake(conn net.Conn, rank int) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(rank))
	_, err := conn.Write(b[:])

	return err
}

func readHandshake(conn net.Conn) (int, error) {
	var b [4]byte
	_, err := io.ReadFull(conn, b[:])

	return int(binary.BigEndian.Uint32(b[:])), err
}

func (n *Node) startPeer(rank int, conn net.Conn) {
	p := &peer{
		rank: rank,
		conn: conn,
		wake: make(chan struct{}, 1),
		gone: make(chan struct{}),
	}
	n.peers[rank] = p

	n.wg.Add(2)
	go n.readLoop(p)
	go n.writeLoop(p)
}

// Finish tells every peer that this node will not send anymore. Frames
// queued before Finish are still delivered.
func (n *Node) Finish() error {
	if n.closed.Load() {
		return comm.Wrap("finish", errClosed)
	}

	for _, p := range n.peers {
		if p == nil {
			continue
		}

		err := p.enqueue(&sendRequest{
			env: &comm.Envelope{Context: byeContext, Source: n.rank, Dest: p.rank},
		})
		if err != nil {
			return comm.Wrap("finish", err)
		}
	}

	return nil
}

// PeersFinished tells if every peer called Finish or lost its connection.
// Every frame a finished peer sent is in the mailbox by then.
func (n *Node) PeersFinished() bool {
	for _, p := range n.peers {
		if p == nil {
			continue
		}

		select {
		case <-p.gone:
		default:
			return false
		}
	}

	return true
}

// Close shuts the connections down and waits for the goroutines to exit.
// Outstanding sends fail.
func (n *Node) Close() error {
	if n.closed.Swap(true) {
		return nil
	}

	err := n.listener.Close()

	for _, p := range n.peers {
		if p == nil {
			continue
		}

		p.shutdown()
		p.conn.Close()
	}

	n.wg.Wait()

	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return comm.Wrap("close", err)
}

// WorldRank returns the rank of the node.
func (n *Node) WorldRank() int { return n.rank }

// WorldSize returns the number of ranks.
func (n *Node) WorldSize() int { return n.size }

// Live tells if the node is connected and not closed.
func (n *Node) Live() bool { return n.peers != nil && !n.closed.Load() }

// Mailbox returns the mailbox incoming messages are matched in.
func (n *Node) Mailbox() *comm.Mailbox { return n.mailbox }

// NextContext returns a new context ID.
func (n *Node) NextContext() uint32 {
	n.nextCtx++
	return n.nextCtx
}

// Send queues env on the connection to its destination.
func (n *Node) Send(env *comm.Envelope) (comm.Request, error) {
	if n.closed.Load() {
		return nil, errClosed
	}

	if len(env.Data) > MaxFrameSize {
		return nil, fmt.Errorf("message of %d bytes exceeds the frame limit of %d",
			len(env.Data), MaxFrameSize)
	}

	req := &sendRequest{
		env:    env,
		status: comm.Status{Source: env.Dest, Tag: env.Tag, Count: len(env.Data)},
	}

	if env.Dest == n.rank {
		data := append([]byte(nil), env.Data...)
		n.mailbox.Arrive(&comm.Envelope{
			Context: env.Context,
			Source:  env.Source,
			Dest:    env.Dest,
			Tag:     env.Tag,
			Data:    data,
		})
		req.finish(nil)

		return req, nil
	}

	if env.Dest < 0 || env.Dest >= n.size || n.peers[env.Dest] == nil {
		return nil, fmt.Errorf("no connection to rank %d", env.Dest)
	}

	err := n.peers[env.Dest].enqueue(req)
	if err != nil {
		return nil, err
	}

	return req, nil
}

type peer struct {
	rank int
	conn net.Conn

	// mu guards queue and closed. wake holds at most one pending signal
	// for the writer.
	mu     sync.Mutex
	queue  []*sendRequest
	closed bool
	wake   chan struct{}

	// gone is closed once the peer finished or its connection was lost.
	gone     chan struct{}
	goneOnce sync.Once
	finished atomic.Bool
}

func (p *peer) leave() {
	p.goneOnce.Do(func() { close(p.gone) })
}

func (p *peer) enqueue(req *sendRequest) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errClosed
	}

	p.queue = append(p.queue, req)
	p.mu.Unlock()

	p.signal()

	return nil
}

func (p *peer) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// take removes the queued requests. It reports false once the peer is shut
// down and nothing is left to write.
func (p *peer) take() ([]*sendRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	batch := p.queue
	p.queue = nil

	return batch, len(batch) > 0 || !p.closed
}

// shutdown stops the writer. Queued requests fail.
func (p *peer) shutdown() {
	p.mu.Lock()
	p.closed = true
	dropped := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, req := range dropped {
		req.finish(&comm.TransportError{Op: "send", Msg: errClosed.Error()})
	}

	p.signal()
}

func (n *Node) writeLoop(p *peer) {
	defer n.wg.Done()

	header := make([]byte, headerSize)
	for {
		batch, more := p.take()
		if !more {
			return
		}

		if len(batch) == 0 {
			<-p.wake
			continue
		}

		for _, req := range batch {
			req.finish(comm.Wrap("send", writeFrame(p.conn, header, req.env)))
		}
	}
}

func writeFrame(conn net.Conn, header []byte, env *comm.Envelope) error {
	binary.BigEndian.PutUint32(header[0:4], env.Context)
	binary.BigEndian.PutUint32(header[4:8], uint32(env.Source))
	binary.BigEndian.PutUint32(header[8:12], uint32(int32(env.Tag)))
	binary.BigEndian.PutUint32(header[12:16], uint32(len(env.Data)))

	_, err := conn.Write(header)
	if err == nil {
		_, err = conn.Write(env.Data)
	}

	return err
}

func (n *Node) readLoop(p *peer) {
	defer n.wg.Done()

	header := make([]byte, headerSize)
	for {
		_, err := io.ReadFull(p.conn, header)
		if err != nil {
			n.connectionLost(p, err)
			return
		}

		size := binary.BigEndian.Uint32(header[12:16])
		if size > MaxFrameSize {
			n.connectionLost(p, fmt.Errorf(
				"frame of %d bytes exceeds the limit of %d", size, MaxFrameSize))
			return
		}

		data := make([]byte, size)
		_, err = io.ReadFull(p.conn, data)
		if err != nil {
			n.connectionLost(p, err)
			return
		}

		ctx := binary.BigEndian.Uint32(header[0:4])
		if ctx == byeContext {
			n.log.WithField("peer", p.rank).Debug("peer finished")
			p.finished.Store(true)
			p.leave()

			continue
		}

		n.mailbox.Arrive(&comm.Envelope{
			Context: ctx,
			Source:  int(binary.BigEndian.Uint32(header[4:8])),
			Dest:    n.rank,
			Tag:     int(int32(binary.BigEndian.Uint32(header[8:12]))),
			Data:    data,
		})
	}
}

func (n *Node) connectionLost(p *peer, err error) {
	defer p.leave()

	if n.closed.Load() {
		return
	}

	if p.finished.Load() && errors.Is(err, io.EOF) {
		return
	}

	p.conn.Close()

	n.log.WithField("peer", p.rank).Errorf("connection lost: %v", err)
	n.mailbox.Fail(&comm.TransportError{
		Op:  "recv",
		Msg: fmt.Sprintf("connection to rank %d lost: %v", p.rank, err),
	})
}

type sendRequest struct {
	env    *comm.Envelope
	status comm.Status

	mu   sync.Mutex
	done bool
	err  error
}

func (r *sendRequest) finish(err error) {
	r.mu.Lock()
	r.done = true
	r.err = err
	r.mu.Unlock()
}

func (r *sendRequest) Test() (bool, comm.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.done, r.status, r.err
}

func (r *sendRequest) Cancel() {}
