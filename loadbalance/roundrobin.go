package loadbalance

import (
	"sync/atomic"

	"geo-lb/registry"
)

// RoundRobinBalancer walks the candidate list in order using an atomic
// counter, so it needs no lock of its own.
//
// The counter is shared by every filter: with mixed filters each candidate
// list sees an even share over time, but not a strict rotation.
type RoundRobinBalancer struct {
	counter atomic.Uint64
}

func (b *RoundRobinBalancer) Pick(candidates []registry.Client) (*registry.Client, error) {
	if len(candidates) == 0 {
		return nil, errNoClients()
	}
	index := (b.counter.Add(1) - 1) % uint64(len(candidates))
	return &candidates[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
