// Package message defines the JSON bodies exchanged between the HTTP front
// door and its callers.
//
//	POST   /clients            RegisterRequest → ClientResponse
//	GET    /clients            → ListResponse
//	GET    /clients/select     ?filter=US-TX-Austin → ClientResponse
//	DELETE /clients/{id}       → 204
//	POST   /admin/reset        → 204
//
// Every non-2xx response carries an ErrorResponse.
package message

import (
	"errors"
	"strings"

	"geo-lb/registry"
)

var ErrMissingLocality = errors.New("country, state and city are required")

// RegisterRequest announces a client. ID is optional; the server assigns one
// when it is empty. Re-using an ID registers another occurrence of the same
// client.
type RegisterRequest struct {
	ID      string `json:"id,omitempty"`
	Addr    string `json:"addr"`
	Country string `json:"country"`
	State   string `json:"state"`
	City    string `json:"city"`
}

// Validate rejects requests missing a locality segment or using the filter
// separator or wildcard inside one, since such a client could never be matched
// by an exact filter.
func (r RegisterRequest) Validate() error {
	for _, v := range []string{r.Country, r.State, r.City} {
		if strings.TrimSpace(v) == "" {
			return ErrMissingLocality
		}
		if strings.Contains(v, registry.Separator) || v == registry.Wildcard {
			return errors.New("locality segments must not contain '" + registry.Separator + "' or be '" + registry.Wildcard + "'")
		}
	}
	return nil
}

// Client converts the request into a registry client, assigning an ID when
// none was given.
func (r RegisterRequest) Client() registry.Client {
	if r.ID == "" {
		return registry.NewClient(r.Addr, r.Country, r.State, r.City)
	}
	return registry.Client{ID: r.ID, Addr: r.Addr, Country: r.Country, State: r.State, City: r.City}
}

// ClientResponse is a single registered client.
type ClientResponse struct {
	Client registry.Client `json:"client"`
}

// ListResponse is the current set of registered clients.
type ListResponse struct {
	Clients []registry.Client `json:"clients"`
	Count   int               `json:"count"`
}

// ErrorResponse carries a human-readable error.
type ErrorResponse struct {
	Error string `json:"error"`
}
