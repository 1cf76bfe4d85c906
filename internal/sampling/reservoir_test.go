package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func TestAddUnderBudgetKeepsEverything(t *testing.T) {
	r := NewWithRand(10, 10, testRand(1))

	for i := 0; i < 5; i++ {
		r.Add(fmt.Sprintf("rec-%d", i))
	}

	if len(r.Samples()) != 5 {
		t.Errorf("expected 5 samples, got %d", len(r.Samples()))
	}
	if r.Seen() != 5 {
		t.Errorf("expected 5 seen, got %d", r.Seen())
	}
}

func TestAddFiltersBlankRecords(t *testing.T) {
	r := NewWithRand(10, 10, testRand(1))

	r.Add("rec-1")
	r.Add("")
	r.Add("   ")
	r.Add("rec-2")

	if len(r.Samples()) != 2 {
		t.Errorf("expected 2 samples, got %d", len(r.Samples()))
	}
	if r.Seen() != 2 {
		t.Errorf("blank records must not count as seen, got %d", r.Seen())
	}
}

func TestAddNeverExceedsBudget(t *testing.T) {
	r := NewWithRand(7, 7, testRand(2))

	for i := 0; i < 1000; i++ {
		r.Add(fmt.Sprintf("rec-%d", i))
	}

	if len(r.Samples()) != 7 {
		t.Errorf("expected exactly 7 samples, got %d", len(r.Samples()))
	}
	if r.Seen() != 1000 {
		t.Errorf("expected 1000 seen, got %d", r.Seen())
	}
}

// Each of n distinct records should be included with empirical frequency
// close to k/n over many independent trials.
func TestAddUniformInclusion(t *testing.T) {
	const (
		k      = 10
		n      = 100
		trials = 3000
	)

	counts := make(map[string]int, n)
	for trial := 0; trial < trials; trial++ {
		r := NewWithRand(k, k, testRand(uint64(trial)+100))
		for i := 0; i < n; i++ {
			r.Add(fmt.Sprintf("rec-%d", i))
		}
		for _, s := range r.Samples() {
			counts[s]++
		}
	}

	expected := float64(trials) * float64(k) / float64(n)
	// Binomial stddev ~= sqrt(trials * p * (1-p)) ~= 16.4; 6 sigma keeps
	// the test deterministic-in-practice across seeds.
	tolerance := 6 * math.Sqrt(float64(trials)*(float64(k)/float64(n))*(1-float64(k)/float64(n)))

	for i := 0; i < n; i++ {
		got := float64(counts[fmt.Sprintf("rec-%d", i)])
		if math.Abs(got-expected) > tolerance {
			t.Errorf("rec-%d: inclusion count %v outside %v +/- %v", i, got, expected, tolerance)
		}
	}
}

func TestAddChunkTakesSmallChunksWhole(t *testing.T) {
	r := NewWithRand(100, 20, testRand(3))

	r.AddChunk([]string{"a", "b", "", "c"})

	if len(r.Samples()) != 3 {
		t.Errorf("expected all 3 valid lines taken, got %d", len(r.Samples()))
	}
	if r.Seen() != 3 {
		t.Errorf("expected 3 seen, got %d", r.Seen())
	}
}

func TestAddChunkHonorsPerChunkCap(t *testing.T) {
	r := NewWithRand(100, 20, testRand(4))

	lines := make([]string, 500)
	for i := range lines {
		lines[i] = fmt.Sprintf("rec-%d", i)
	}
	r.AddChunk(lines)

	if len(r.Samples()) != 20 {
		t.Errorf("one chunk must not exceed the per-chunk cap: got %d", len(r.Samples()))
	}

	// A second large chunk tops up by at most the cap again.
	r.AddChunk(lines)
	if len(r.Samples()) != 40 {
		t.Errorf("expected 40 samples after two capped chunks, got %d", len(r.Samples()))
	}
	if r.Seen() != 1000 {
		t.Errorf("expected 1000 seen, got %d", r.Seen())
	}
}

func TestAddChunkStopsAtBudgetButKeepsCounting(t *testing.T) {
	r := NewWithRand(30, 20, testRand(5))

	lines := make([]string, 100)
	for i := range lines {
		lines[i] = fmt.Sprintf("rec-%d", i)
	}

	r.AddChunk(lines) // takes 20 (cap)
	r.AddChunk(lines) // takes 10 (remaining budget)
	r.AddChunk(lines) // full: counts only

	if !r.Full() {
		t.Error("expected reservoir to be full")
	}
	if len(r.Samples()) != 30 {
		t.Errorf("expected 30 samples, got %d", len(r.Samples()))
	}
	if r.Seen() != 300 {
		t.Errorf("full reservoir must still count records: got %d", r.Seen())
	}
}

func TestChunkSampleIsSubsetOfChunk(t *testing.T) {
	r := NewWithRand(10, 10, testRand(6))

	lines := make([]string, 50)
	members := make(map[string]bool, 50)
	for i := range lines {
		lines[i] = fmt.Sprintf("rec-%d", i)
		members[lines[i]] = true
	}
	r.AddChunk(lines)

	for _, s := range r.Samples() {
		if !members[s] {
			t.Errorf("sample %q is not a member of the chunk", s)
		}
	}
}
