package lp

import (
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"

	"github.com/sim-x/simx-sub002/sim"
)

// LateSend describes a send whose requested delay was below the minimum
// delay of the destination.
type LateSend struct {
	Dest      LPID
	Requested sim.VTime
	MinDelay  sim.VTime
}

// Shortfall returns how much the requested delay missed the minimum delay.
func (s LateSend) Shortfall() sim.VTime {
	return s.MinDelay - s.Requested
}

// LatenessReport summarizes the late sends of an LP. Count, Mean, StdDev and
// Max cover the whole run. P95 covers the most recent late sends only.
type LatenessReport struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Max    float64 `json:"max"`
	P95    float64 `json:"p95"`
}

// latenessWindow is the number of recent shortfalls kept for the percentile.
const latenessWindow = 1024

// latenessTracker keeps running moments, so its size does not grow with the
// run.
type latenessTracker struct {
	n    int
	mean float64
	m2   float64
	max  float64

	recent [latenessWindow]float64
	next   int
}

func (t *latenessTracker) record(s LateSend) int {
	x := float64(s.Shortfall())

	t.n++
	d := x - t.mean
	t.mean += d / float64(t.n)
	t.m2 += d * (x - t.mean)

	if t.n == 1 || x > t.max {
		t.max = x
	}

	t.recent[t.next] = x
	t.next = (t.next + 1) % latenessWindow

	return t.n
}

func (t *latenessTracker) count() int {
	return t.n
}

func (t *latenessTracker) window() []float64 {
	w := make([]float64, min(t.n, latenessWindow))
	copy(w, t.recent[:len(w)])

	return w
}

func (t *latenessTracker) report() LatenessReport {
	r := LatenessReport{Count: t.n}
	if t.n == 0 {
		return r
	}

	r.Mean = t.mean
	r.Max = t.max

	if t.n > 1 {
		r.StdDev = math.Sqrt(t.m2 / float64(t.n-1))
	}

	w := t.window()
	slices.Sort(w)
	r.P95 = stat.Quantile(0.95, stat.Empirical, w, nil)

	return r
}
