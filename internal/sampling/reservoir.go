// Package sampling provides reservoir sampling for batch analysis.
package sampling

import (
	"math/rand/v2"
	"strings"
)

// Reservoir selects a statistically unbiased subset of records from a
// stream of unknown length (Algorithm R). It holds at most a fixed budget
// of records regardless of stream size; callers keep scanning the stream
// after the reservoir fills to obtain an accurate total count.
type Reservoir struct {
	budget      int
	perChunkCap int
	samples     []string
	seen        int64
	rng         *rand.Rand
}

// New creates a reservoir with a global sample budget and a per-chunk cap.
// The cap keeps one early chunk from monopolizing the whole budget.
func New(budget, perChunkCap int) *Reservoir {
	return NewWithRand(budget, perChunkCap, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

// NewWithRand creates a reservoir with an explicit random source.
func NewWithRand(budget, perChunkCap int, rng *rand.Rand) *Reservoir {
	if budget <= 0 {
		budget = 1
	}
	if perChunkCap <= 0 || perChunkCap > budget {
		perChunkCap = budget
	}
	return &Reservoir{
		budget:      budget,
		perChunkCap: perChunkCap,
		samples:     make([]string, 0, budget),
		rng:         rng,
	}
}

// Add offers a single record to the reservoir using Algorithm R over the
// whole stream: the i-th eligible record replaces a uniformly random slot
// with probability budget/i, so every record seen has equal probability of
// final inclusion regardless of stream length.
func (r *Reservoir) Add(record string) {
	if strings.TrimSpace(record) == "" {
		return
	}
	r.seen++
	if len(r.samples) < r.budget {
		r.samples = append(r.samples, record)
		return
	}
	if j := r.rng.Int64N(r.seen); j < int64(r.budget) {
		r.samples[j] = record
	}
}

// AddChunk offers one chunk's records. Blank lines are filtered first; if
// the remaining count fits the still-needed budget the chunk is taken
// whole, otherwise Algorithm R runs over just this chunk, bounded by the
// per-chunk cap. Once the reservoir is full, chunks only advance the seen
// count.
func (r *Reservoir) AddChunk(lines []string) {
	valid := lines[:0:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			valid = append(valid, line)
		}
	}
	r.seen += int64(len(valid))

	needed := r.budget - len(r.samples)
	if needed <= 0 {
		return
	}
	if needed > r.perChunkCap {
		needed = r.perChunkCap
	}

	if len(valid) <= needed {
		r.samples = append(r.samples, valid...)
		return
	}

	// Algorithm R over just this chunk's records.
	chunkSample := make([]string, 0, needed)
	for i, line := range valid {
		if len(chunkSample) < needed {
			chunkSample = append(chunkSample, line)
			continue
		}
		if j := r.rng.IntN(i + 1); j < needed {
			chunkSample[j] = line
		}
	}
	r.samples = append(r.samples, chunkSample...)
}

// Full reports whether the sample budget has been reached.
func (r *Reservoir) Full() bool {
	return len(r.samples) >= r.budget
}

// Samples returns the selected records.
func (r *Reservoir) Samples() []string {
	return r.samples
}

// Seen returns the number of valid records offered so far.
func (r *Reservoir) Seen() int64 {
	return r.seen
}
