// Package comm defines the non-blocking point-to-point transport used by the
// messenger, and the pieces shared by its implementations.
package comm

import (
	"errors"
	"fmt"
)

// AnySource matches messages from every rank when receiving.
const AnySource = -1

// AnyTag matches messages of every tag when receiving.
const AnyTag = -1

// ErrNotMember is returned by Sub on ranks that are not part of the new group.
var ErrNotMember = errors.New("rank is not a member of the group")

// Status describes a completed operation.
type Status struct {
	Source int
	Tag    int
	Count  int
}

// A Request is an outstanding non-blocking operation.
type Request interface {
	// Test reports whether the operation completed. It never blocks. Once it
	// returns true it keeps returning the same status.
	Test() (done bool, status Status, err error)

	// Cancel abandons the operation if it is not complete yet.
	Cancel()
}

// A Communicator exchanges byte messages within a group of ranks.
type Communicator interface {
	// Rank returns the rank of the caller in the group.
	Rank() int

	// Size returns the number of ranks in the group.
	Size() int

	// ISend starts sending buf to dest. The caller must not modify buf until
	// the request completes.
	ISend(buf []byte, dest, tag int) (Request, error)

	// IRecv starts receiving one message into buf.
	IRecv(buf []byte, source, tag int) (Request, error)

	// Sub creates a group of the given ranks. Every rank of the current
	// group must call Sub with the same arguments, in the same order.
	Sub(ranks []int) (Communicator, error)
}

// A World is the communicator that spans all the processes of a run.
type World interface {
	Communicator

	// Live tells if the transport is initialized and usable.
	Live() bool
}

// TransportError is the single error type reported by transports.
type TransportError struct {
	Op  string
	Msg string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("(%s) transport error: %s", e.Op, e.Msg)
}

// Wrap converts err into a TransportError for the given operation. It returns
// nil if err is nil, and err itself if it already is a TransportError.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		return err
	}

	return &TransportError{Op: op, Msg: err.Error()}
}
