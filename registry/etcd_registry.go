package registry

// EtcdRegistry lets clients announce themselves through etcd instead of the
// HTTP front door:
//
//	Key:   {prefix}{ClientID}          e.g. /geo-lb/clients/6f1c...
//	Value: JSON-encoded Client
//
// Announcements are attached to a TTL lease that is kept alive in the
// background. If the announcing process dies the lease expires and the entry
// disappears, and Watch reports the shrunken set.

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultEtcdPrefix is the key prefix used when none is configured.
const DefaultEtcdPrefix = "/geo-lb/clients/"

// EtcdRegistry stores client announcements in etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
	prefix string

	mu        sync.Mutex
	announced map[string]announcement // client ID → lease held by this process
}

type announcement struct {
	lease  clientv3.LeaseID
	cancel context.CancelFunc // stops the KeepAlive loop
}

// NewEtcdRegistry connects to the given endpoints. An empty prefix selects
// DefaultEtcdPrefix.
func NewEtcdRegistry(endpoints []string, prefix string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}
	if prefix == "" {
		prefix = DefaultEtcdPrefix
	}
	return &EtcdRegistry{
		client:    c,
		prefix:    prefix,
		announced: make(map[string]announcement),
	}, nil
}

func (r *EtcdRegistry) key(id string) string {
	return r.prefix + id
}

// Announce publishes c under a lease of ttl seconds and keeps the lease alive
// until Withdraw or Close.
func (r *EtcdRegistry) Announce(ctx context.Context, c Client, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	val, err := json.Marshal(c)
	if err != nil {
		return err
	}

	if _, err = r.client.Put(ctx, r.key(c.ID), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("put %s: %w", c.ID, err)
	}

	// The keepalive must outlive ctx, which usually belongs to a single request.
	kaCtx, cancel := context.WithCancel(context.Background())
	ch, err := r.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("keepalive %s: %w", c.ID, err)
	}
	go func() {
		for range ch {
		}
	}()

	r.mu.Lock()
	if prev, ok := r.announced[c.ID]; ok {
		prev.cancel()
	}
	r.announced[c.ID] = announcement{lease: lease.ID, cancel: cancel}
	r.mu.Unlock()
	return nil
}

// Withdraw removes the announcement for id and stops renewing its lease.
func (r *EtcdRegistry) Withdraw(ctx context.Context, id string) error {
	r.mu.Lock()
	a, ok := r.announced[id]
	delete(r.announced, id)
	r.mu.Unlock()

	if ok {
		a.cancel()
	}
	if _, err := r.client.Delete(ctx, r.key(id)); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if ok {
		if _, err := r.client.Revoke(ctx, a.lease); err != nil {
			return fmt.Errorf("revoke lease for %s: %w", id, err)
		}
	}
	return nil
}

// Discover returns every client currently announced under the prefix.
// Malformed values are skipped.
func (r *EtcdRegistry) Discover(ctx context.Context) ([]Client, error) {
	resp, err := r.client.Get(ctx, r.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.prefix, err)
	}

	clients := make([]Client, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var c Client
		if err := json.Unmarshal(kv.Value, &c); err != nil {
			continue
		}
		clients = append(clients, c)
	}
	return clients, nil
}

// Watch emits the full announced set once immediately and again after every
// change under the prefix. The channel is closed when ctx is done.
func (r *EtcdRegistry) Watch(ctx context.Context) <-chan []Client {
	ch := make(chan []Client, 1)

	go func() {
		defer close(ch)

		watchChan := r.client.Watch(ctx, r.prefix, clientv3.WithPrefix())
		if clients, err := r.Discover(ctx); err == nil {
			select {
			case ch <- clients:
			case <-ctx.Done():
				return
			}
		}
		for range watchChan {
			// Re-listing is simpler than replaying individual events.
			clients, err := r.Discover(ctx)
			if err != nil {
				continue
			}
			select {
			case ch <- clients:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Close stops every keepalive and closes the etcd connection. Announced keys
// expire with their leases.
func (r *EtcdRegistry) Close() error {
	r.mu.Lock()
	for id, a := range r.announced {
		a.cancel()
		delete(r.announced, id)
	}
	r.mu.Unlock()
	return r.client.Close()
}
