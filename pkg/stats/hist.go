// Package stats provides a small cumulative-bucket histogram with
// interpolated quantiles, used for the sampler's per-pass processing-time
// summary.
package stats

import (
	"sort"

	"github.com/ja7ad/schedtop/pkg/system/util"
)

// DefaultLatencyBounds are bucket upper bounds in milliseconds suited to
// per-pass runtimes.
var DefaultLatencyBounds = []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000}

// Histogram counts observations into buckets with fixed upper bounds.
// Values above the last bound land in an overflow bucket. The zero lower
// bound of the first bucket is implicit.
type Histogram struct {
	bounds []float64
	counts []uint64 // len(bounds)+1, last entry is overflow
	total  uint64
	sum    float64
	max    float64
}

// NewHistogram builds a histogram from ascending positive upper bounds.
// Unsorted input is tolerated and sorted.
func NewHistogram(bounds []float64) *Histogram {
	bs := make([]float64, len(bounds))
	copy(bs, bounds)
	sort.Float64s(bs)
	return &Histogram{
		bounds: bs,
		counts: make([]uint64, len(bs)+1),
	}
}

// Observe records one value.
func (h *Histogram) Observe(v float64) {
	if v < 0 {
		v = 0
	}
	i := sort.SearchFloat64s(h.bounds, v)
	h.counts[i]++
	h.total++
	h.sum += v
	if v > h.max {
		h.max = v
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() uint64 { return h.total }

// Sum returns the total of all observed values.
func (h *Histogram) Sum() float64 { return h.sum }

// Max returns the largest observed value.
func (h *Histogram) Max() float64 { return h.max }

// Mean returns the average observed value, 0 with no observations.
func (h *Histogram) Mean() float64 {
	if h.total == 0 {
		return 0
	}
	return h.sum / float64(h.total)
}

// Quantile returns the interpolated q-quantile, q in [0,1]. The result is
// linearly interpolated within the bucket containing the target rank and is
// always inside [0, last bound]; it is monotonically non-decreasing in q.
func (h *Histogram) Quantile(q float64) float64 {
	if h.total == 0 || len(h.bounds) == 0 {
		return 0
	}
	rank := util.Clamp01(q) * float64(h.total)

	var cum float64
	lower := 0.0
	for i, bound := range h.bounds {
		c := float64(h.counts[i])
		if c > 0 && rank <= cum+c {
			return lower + (bound-lower)*(rank-cum)/c
		}
		cum += c
		lower = bound
	}
	// target rank lies in the overflow bucket; clamp to the largest bound
	return h.bounds[len(h.bounds)-1]
}
