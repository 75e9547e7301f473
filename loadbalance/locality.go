package loadbalance

import (
	"errors"

	"go.uber.org/zap"

	"geo-lb/metrics"
	"geo-lb/registry"
)

// LocalityBalancer is the registry callers hold: one per process, created at
// startup and injected wherever clients are registered or selected.
//
//	Register ──┐                       ┌── byCountry
//	Deregister ┼─ write lock ─ Index ──┼── byState
//	Reset ─────┘                       ├── byCity
//	SelectClient ─ ParseFilter ─ read lock ─ narrow ─ Balancer.Pick
type LocalityBalancer struct {
	index    *registry.Index
	balancer Balancer
	log      *zap.Logger
	metrics  *metrics.Metrics // nil disables instrumentation
}

type Option func(*LocalityBalancer)

// WithBalancer sets the strategy used for the final pick.
func WithBalancer(b Balancer) Option {
	return func(lb *LocalityBalancer) { lb.balancer = b }
}

func WithLogger(l *zap.Logger) Option {
	return func(lb *LocalityBalancer) { lb.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(lb *LocalityBalancer) { lb.metrics = m }
}

// WithIndex shares an existing index instead of creating a new one.
func WithIndex(x *registry.Index) Option {
	return func(lb *LocalityBalancer) { lb.index = x }
}

// NewLocalityBalancer returns a balancer with an empty index, uniform random
// selection and a no-op logger unless overridden by opts.
func NewLocalityBalancer(opts ...Option) *LocalityBalancer {
	lb := &LocalityBalancer{}
	for _, opt := range opts {
		opt(lb)
	}
	if lb.index == nil {
		lb.index = registry.NewIndex()
	}
	if lb.balancer == nil {
		lb.balancer = NewRandomBalancer(nil)
	}
	if lb.log == nil {
		lb.log = zap.NewNop()
	}
	if lb.metrics != nil {
		lb.index.OnResize(lb.metrics.SetClientsRegistered)
	}
	return lb
}

var (
	_ registry.Registry = (*LocalityBalancer)(nil)
	_ registry.Sink     = (*LocalityBalancer)(nil)
)

// Register adds c to the registry. It always succeeds.
func (lb *LocalityBalancer) Register(c registry.Client) {
	lb.index.Add(c)
	lb.log.Debug("client registered",
		zap.String("client_id", c.ID),
		zap.String("addr", c.Addr),
		zap.String("country", c.Country),
		zap.String("state", c.State),
		zap.String("city", c.City),
	)
	if lb.metrics != nil {
		lb.metrics.IncrementRegistrations()
	}
}

// Deregister removes one occurrence of c. It returns registry.ErrNotFound if
// c is not registered, which callers may treat as already cleaned up.
func (lb *LocalityBalancer) Deregister(c registry.Client) error {
	return lb.deregister(c, lb.index.Remove)
}

// DeregisterExact removes one occurrence equal to c in every field, leaving
// other clients that reuse c's ID in place.
func (lb *LocalityBalancer) DeregisterExact(c registry.Client) error {
	return lb.deregister(c, lb.index.RemoveExact)
}

func (lb *LocalityBalancer) deregister(c registry.Client, remove func(registry.Client) error) error {
	err := remove(c)
	if lb.metrics != nil {
		if err != nil {
			lb.metrics.IncrementDeregistrations(metrics.ResultNotFound)
		} else {
			lb.metrics.IncrementDeregistrations(metrics.ResultRemoved)
		}
	}
	if err != nil {
		lb.log.Debug("deregister of unknown client", zap.String("client_id", c.ID))
		return err
	}
	lb.log.Debug("client deregistered", zap.String("client_id", c.ID))
	return nil
}

// DeregisterID removes one occurrence of the client with the given ID.
func (lb *LocalityBalancer) DeregisterID(id string) error {
	return lb.Deregister(registry.Client{ID: id})
}

// SelectClient returns one client matching filter, e.g. "US-TX-Austin",
// "*-TX-*" or "Peru". An empty filter or an empty candidate set yields an error
// matching registry.ErrNotFound.
func (lb *LocalityBalancer) SelectClient(filter string) (registry.Client, error) {
	c, err := lb.selectClient(filter)
	if lb.metrics != nil {
		if err != nil {
			lb.metrics.IncrementSelections(metrics.ResultNotFound)
		} else {
			lb.metrics.IncrementSelections(metrics.ResultFound)
		}
	}
	return c, err
}

func (lb *LocalityBalancer) selectClient(filter string) (registry.Client, error) {
	f, err := registry.ParseFilter(filter)
	if err != nil {
		lb.log.Debug("invalid filter", zap.String("filter", filter))
		return registry.Client{}, err
	}

	c, err := lb.index.Select(f, lb.balancer)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			lb.log.Debug("no client matches filter", zap.String("filter", f.String()))
		} else {
			lb.log.Warn("selection failed", zap.String("filter", f.String()), zap.Error(err))
		}
		return registry.Client{}, err
	}
	return c, nil
}

// Reset drops every registered client.
func (lb *LocalityBalancer) Reset() {
	lb.index.Reset()
	lb.log.Info("registry reset")
}

// Lookup returns the registered client with the given ID.
func (lb *LocalityBalancer) Lookup(id string) (registry.Client, bool) {
	return lb.index.Lookup(id)
}

// Clients returns a snapshot of every registered client.
func (lb *LocalityBalancer) Clients() []registry.Client {
	return lb.index.Snapshot()
}

// Strategy returns the name of the configured pick strategy.
func (lb *LocalityBalancer) Strategy() string {
	return lb.balancer.Name()
}
