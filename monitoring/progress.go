package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar shows how far a long task went. The task reports with
// SetFinished.
type ProgressBar struct {
	ID        string
	Name      string
	StartTime time.Time
	Total     uint64

	mu       sync.Mutex
	finished uint64
}

// SetFinished records the amount done, capped at Total.
func (b *ProgressBar) SetFinished(finished uint64) {
	b.mu.Lock()
	b.finished = min(finished, b.Total)
	b.mu.Unlock()
}

// Finished returns the amount done.
func (b *ProgressBar) Finished() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.finished
}

type progressRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
	Percent   float64   `json:"percent"`
}

func (b *ProgressBar) snapshot() progressRsp {
	done := b.Finished()

	rsp := progressRsp{
		ID:        b.ID,
		Name:      b.Name,
		StartTime: b.StartTime,
		Total:     b.Total,
		Finished:  done,
	}

	if b.Total > 0 {
		rsp.Percent = 100 * float64(done) / float64(b.Total)
	}

	return rsp
}
