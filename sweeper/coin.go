package sweeper

import (
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// BiasedCoin is the weighted binary source behind every oracle draw.
//
// Sample returns the majority value (0 or 1) of trials independent
// Bernoulli(bias) draws. Ties, and trials <= 0, yield 0.
type BiasedCoin interface {
	Sample(bias float64, trials int) int
}

func majority(ones, trials int) int {
	if ones*2 > trials {
		return 1
	}
	return 0
}

func countOnes(rng *rand.Rand, bias float64, trials int) int {
	ones := 0
	for i := 0; i < trials; i++ {
		if rng.Float64() < bias {
			ones++
		}
	}
	return ones
}

func seedOrNow(seed int64) int64 {
	if seed == 0 {
		return time.Now().UnixNano()
	}
	return seed
}

// RandCoin tallies draws serially from one seeded generator.
type RandCoin struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandCoin(seed int64) *RandCoin {
	return &RandCoin{rng: rand.New(rand.NewSource(seedOrNow(seed)))}
}

func (c *RandCoin) Sample(bias float64, trials int) int {
	if trials <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return majority(countOnes(c.rng, bias, trials), trials)
}

const defaultChunkTrials = 256

// ParallelCoin tallies fixed-size chunks of a sample concurrently. Each chunk
// gets its own sub-seed drawn serially from the master generator, so the
// result depends on the seed, bias and trial count only, never on the worker
// count or goroutine scheduling.
type ParallelCoin struct {
	mu      sync.Mutex
	rng     *rand.Rand
	workers int
	chunk   int
}

func NewParallelCoin(seed int64, workers int) *ParallelCoin {
	if workers <= 0 {
		workers = 1
	}
	return &ParallelCoin{
		rng:     rand.New(rand.NewSource(seedOrNow(seed))),
		workers: workers,
		chunk:   defaultChunkTrials,
	}
}

func (c *ParallelCoin) Sample(bias float64, trials int) int {
	if trials <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	chunks := (trials + c.chunk - 1) / c.chunk
	seeds := make([]int64, chunks)
	for i := range seeds {
		seeds[i] = c.rng.Int63()
	}

	counts := make([]int, chunks)
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i := 0; i < chunks; i++ {
		size := c.chunk
		if rest := trials - i*c.chunk; rest < size {
			size = rest
		}
		g.Go(func() error {
			counts[i] = countOnes(rand.New(rand.NewSource(seeds[i])), bias, size)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// chunk workers never fail; keep the tally honest if one ever does
		return 0
	}

	ones := 0
	for _, n := range counts {
		ones += n
	}
	return majority(ones, trials)
}

// ScriptedCoin is a deterministic coin: it replays its draws in order and then
// keeps returning the fallback value.
type ScriptedCoin struct {
	mu       sync.Mutex
	draws    []int
	fallback int
	biases   []float64
}

func NewScriptedCoin(fallback int, draws ...int) *ScriptedCoin {
	return &ScriptedCoin{draws: append([]int(nil), draws...), fallback: fallback}
}

// FixedCoin always returns v.
func FixedCoin(v int) *ScriptedCoin {
	return NewScriptedCoin(v)
}

func (c *ScriptedCoin) Sample(bias float64, trials int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := len(c.biases)
	c.biases = append(c.biases, bias)
	if idx < len(c.draws) {
		return c.draws[idx]
	}
	return c.fallback
}

// Calls returns how many samples were requested.
func (c *ScriptedCoin) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.biases)
}

// Biases returns the bias of every sample requested so far.
func (c *ScriptedCoin) Biases() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]float64(nil), c.biases...)
}
