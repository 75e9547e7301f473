// Package loadbalance picks one client for a locality filter.
//
// LocalityBalancer owns the registry index and is what callers talk to:
// Register / Deregister / SelectClient / Reset. The final choice among the
// clients matching a filter is delegated to a Balancer strategy:
//   - RandomBalancer:      uniform random pick (default)
//   - RoundRobinBalancer:  rotates through the candidate list
package loadbalance

import (
	"fmt"

	"geo-lb/registry"
)

// Strategy names accepted by NewBalancer.
const (
	StrategyRandom     = "random"
	StrategyRoundRobin = "round-robin"
)

// Balancer is the interface for selection strategies.
// Pick is called with the read lock of the index held, so it must be
// goroutine-safe, must not block, and must not keep the candidates slice.
type Balancer interface {
	// Pick selects one client from a non-empty candidate list.
	Pick(candidates []registry.Client) (*registry.Client, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// NewBalancer returns the strategy with the given name. src is only used by
// the random strategy; nil selects the shared global source.
func NewBalancer(name string, src Source) (Balancer, error) {
	switch name {
	case "", StrategyRandom:
		return NewRandomBalancer(src), nil
	case StrategyRoundRobin:
		return &RoundRobinBalancer{}, nil
	default:
		return nil, fmt.Errorf("unknown balancer strategy %q", name)
	}
}

func errNoClients() error {
	return fmt.Errorf("no clients available: %w", registry.ErrNotFound)
}
