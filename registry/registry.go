// Package registry holds the locality-indexed set of clients a load balancer
// chooses from.
//
// A Client is a plain value: an ID plus the country/state/city it serves.
// The Index keeps four views over the same client set and answers locality
// filters such as "US-TX-Austin" or "*-TX-*":
//
//	all        []Client
//	byCountry  "US"     → [austin, dallas, houston, hoboken]
//	byState    "TX"     → [austin, dallas, houston]
//	byCity     "Austin" → [austin]
//
// EtcdRegistry is an optional external source of clients; Mirror copies what it
// sees into an Index.
package registry

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a selection has no candidates or a
	// deregistration targets a client that is not registered.
	ErrNotFound = errors.New("client not found")

	// ErrInvalidFilter is returned for an empty filter. It matches ErrNotFound
	// under errors.Is: no client can satisfy an unparseable filter.
	ErrInvalidFilter = fmt.Errorf("invalid filter: %w", ErrNotFound)
)

// Client is a registered endpoint and the locality it serves.
// Identity is the ID: clients with equal locations but different IDs are
// distinct entries.
type Client struct {
	ID      string `json:"id"`
	Addr    string `json:"addr"`
	Country string `json:"country"`
	State   string `json:"state"`
	City    string `json:"city"`
}

// NewClient creates a client with a fresh random ID.
func NewClient(addr, country, state, city string) Client {
	return Client{
		ID:      uuid.NewString(),
		Addr:    addr,
		Country: country,
		State:   state,
		City:    city,
	}
}

// Registry is the operation set a load balancer exposes to its callers.
type Registry interface {
	Register(client Client)
	Deregister(client Client) error
	SelectClient(filter string) (Client, error)
	Reset()
}

// Picker chooses one client from a non-empty candidate list.
// Candidates may alias registry storage and must not be modified or retained.
type Picker interface {
	Pick(candidates []Client) (*Client, error)
}
