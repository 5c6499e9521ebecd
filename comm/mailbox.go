package comm

import (
	"fmt"
	"sync"
)

// An Envelope is a message in flight. Source and Dest are world ranks.
type Envelope struct {
	Context uint32
	Source  int
	Dest    int
	Tag     int
	Data    []byte

	// OnMatch, if set, is called when a receive takes the message.
	OnMatch func()
}

// A Mailbox matches arriving envelopes with posted receives. Arrive may be
// called from any goroutine.
type Mailbox struct {
	mu     sync.Mutex
	queued []*Envelope
	posted []*recvRequest
	broken error
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Arrive hands an envelope to the first matching posted receive, or queues it.
func (m *Mailbox) Arrive(env *Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, r := range m.posted {
		if r.matches(env) {
			m.posted = append(m.posted[:i], m.posted[i+1:]...)
			r.complete(env)

			return
		}
	}

	m.queued = append(m.queued, env)
}

// Queued returns the number of envelopes waiting for a receive.
func (m *Mailbox) Queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.queued)
}

// Fail completes every posted receive with err and makes the following ones
// fail immediately.
func (m *Mailbox) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.broken = err
	for _, r := range m.posted {
		r.done = true
		r.err = err
	}
	m.posted = nil
}

// Post starts a receive. source is a world rank or AnySource. rankOf converts
// the world rank of the sender to the rank reported in the status.
func (m *Mailbox) Post(
	ctx uint32,
	source, tag int,
	buf []byte,
	rankOf func(worldRank int) int,
) Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := &recvRequest{
		mailbox: m,
		ctx:     ctx,
		source:  source,
		tag:     tag,
		buf:     buf,
		rankOf:  rankOf,
	}

	if m.broken != nil {
		r.done = true
		r.err = m.broken

		return r
	}

	for i, env := range m.queued {
		if r.matches(env) {
			m.queued = append(m.queued[:i], m.queued[i+1:]...)
			r.complete(env)

			return r
		}
	}

	m.posted = append(m.posted, r)

	return r
}

type recvRequest struct {
	mailbox *Mailbox
	ctx     uint32
	source  int
	tag     int
	buf     []byte
	rankOf  func(int) int

	done   bool
	status Status
	err    error
}

func (r *recvRequest) matches(env *Envelope) bool {
	return env.Context == r.ctx &&
		(r.source == AnySource || r.source == env.Source) &&
		(r.tag == AnyTag || r.tag == env.Tag)
}

// complete must be called with the mailbox locked.
func (r *recvRequest) complete(env *Envelope) {
	n := copy(r.buf, env.Data)

	r.done = true
	r.status = Status{
		Source: r.rankOf(env.Source),
		Tag:    env.Tag,
		Count:  n,
	}

	if len(env.Data) > len(r.buf) {
		r.err = &TransportError{
			Op: "recv",
			Msg: fmt.Sprintf("message of %d bytes truncated to %d",
				len(env.Data), len(r.buf)),
		}
	}

	if env.OnMatch != nil {
		env.OnMatch()
	}
}

func (r *recvRequest) Test() (bool, Status, error) {
	r.mailbox.mu.Lock()
	defer r.mailbox.mu.Unlock()

	return r.done, r.status, r.err
}

func (r *recvRequest) Cancel() {
	r.mailbox.mu.Lock()
	defer r.mailbox.mu.Unlock()

	for i, p := range r.mailbox.posted {
		if p == r {
			r.mailbox.posted = append(r.mailbox.posted[:i], r.mailbox.posted[i+1:]...)
			return
		}
	}
}
