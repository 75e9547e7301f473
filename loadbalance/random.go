package loadbalance

import (
	"math/rand/v2"
	"sync"

	"geo-lb/registry"
)

// Source yields uniform integers in [0, n). Implementations must be safe for
// concurrent use: many selections run in parallel under the read lock.
type Source interface {
	IntN(n int) int
}

// globalSource uses the package-level math/rand/v2 generator, which is
// goroutine-safe and randomly seeded.
type globalSource struct{}

func (globalSource) IntN(n int) int {
	return rand.IntN(n)
}

// lockedSource serializes access to a *rand.Rand, which is not goroutine-safe.
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// NewSeededSource returns a deterministic goroutine-safe source. Two sources
// built from the same seed produce the same sequence.
func NewSeededSource(seed uint64) Source {
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed))}
}

// RandomBalancer picks a candidate uniformly at random.
type RandomBalancer struct {
	src Source
}

// NewRandomBalancer returns a balancer drawing from src; nil selects the
// global source.
func NewRandomBalancer(src Source) *RandomBalancer {
	if src == nil {
		src = globalSource{}
	}
	return &RandomBalancer{src: src}
}

func (b *RandomBalancer) Pick(candidates []registry.Client) (*registry.Client, error) {
	if len(candidates) == 0 {
		return nil, errNoClients()
	}
	return &candidates[b.src.IntN(len(candidates))], nil
}

func (b *RandomBalancer) Name() string {
	return "Random"
}
