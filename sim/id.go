package sim

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// An IDGenerator hands out the IDs of events and progress bars.
type IDGenerator interface {
	Generate() string
}

// SequentialIDs numbers objects 1, 2, 3 and so on. Runs that use it are
// reproducible.
type SequentialIDs struct {
	last atomic.Uint64
}

// Generate returns the next number.
func (g *SequentialIDs) Generate() string {
	return strconv.FormatUint(g.last.Add(1), 10)
}

// UniqueIDs generates globally unique IDs.
type UniqueIDs struct{}

// Generate returns a new xid.
func (UniqueIDs) Generate() string {
	return xid.New().String()
}

// ErrIDsInUse is returned when the generator is replaced after handing out
// an ID.
var ErrIDsInUse = errors.New("IDs were already generated")

var ids = struct {
	sync.Mutex
	gen  IDGenerator
	used bool
}{gen: &SequentialIDs{}}

// SetIDGenerator replaces the generator used by NextID. It must be called
// before the first ID is generated.
func SetIDGenerator(g IDGenerator) error {
	ids.Lock()
	defer ids.Unlock()

	if ids.used {
		return ErrIDsInUse
	}

	ids.gen = g

	return nil
}

// NextID returns a new ID.
func NextID() string {
	ids.Lock()
	ids.used = true
	g := ids.gen
	ids.Unlock()

	return g.Generate()
}
