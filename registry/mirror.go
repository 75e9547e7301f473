package registry

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Sink receives the registrations a Mirror derives from upstream snapshots.
// DeregisterExact must only remove an occurrence equal to client in every
// field, so local clients that reuse a mirrored ID are not touched.
type Sink interface {
	Register(client Client)
	DeregisterExact(client Client) error
}

// Mirror applies each snapshot from updates to sink as a diff: new IDs are
// registered, vanished IDs deregistered, and an ID whose attributes changed is
// replaced. Only the exact values the mirror registered are ever deregistered,
// so clients registered through other paths are left alone even when they
// share an ID with an upstream client.
//
// Mirror returns when updates is closed or ctx is done.
func Mirror(ctx context.Context, updates <-chan []Client, sink Sink, log *zap.Logger) {
	owned := make(map[string]Client)

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			applySnapshot(owned, snapshot, sink, log)
		}
	}
}

func applySnapshot(owned map[string]Client, snapshot []Client, sink Sink, log *zap.Logger) {
	seen := make(map[string]Client, len(snapshot))
	for _, c := range snapshot {
		if c.ID == "" {
			continue
		}
		seen[c.ID] = c
	}

	for id, prev := range owned {
		next, ok := seen[id]
		if ok && next == prev {
			continue
		}
		if err := sink.DeregisterExact(prev); err != nil && !errors.Is(err, ErrNotFound) {
			log.Warn("mirror: deregister failed", zap.String("client_id", id), zap.Error(err))
		}
		delete(owned, id)
	}

	for id, c := range seen {
		if _, ok := owned[id]; ok {
			continue
		}
		sink.Register(c)
		owned[id] = c
		log.Debug("mirror: registered client",
			zap.String("client_id", id),
			zap.String("locality", c.Country+Separator+c.State+Separator+c.City),
		)
	}
}
