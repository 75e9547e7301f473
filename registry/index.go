package registry

import (
	"slices"
	"sync"
)

// Index is the in-memory multi-index over registered clients.
//
// Every registered occurrence of a client is present once in all and once in
// each of byCountry, byState and byCity under its own attribute values. The
// four containers only change together under mu, so readers never observe a
// client in some views but not others.
//
// Concurrency model:
//   - Add, Remove, RemoveExact and Reset hold the write lock
//   - Select, Lookup, Snapshot and Len hold the read lock
//
// Performance:
//   - Add:    O(1) amortized
//   - Remove: O(k), linear scan of the affected lists
//   - Select: one map lookup plus a linear filter over the narrowest list
type Index struct {
	mu        sync.RWMutex
	all       []Client
	byCountry map[string][]Client
	byState   map[string][]Client
	byCity    map[string][]Client

	onResize func(n int)
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	x := &Index{}
	x.init()
	return x
}

func (x *Index) init() {
	x.all = nil
	x.byCountry = make(map[string][]Client)
	x.byState = make(map[string][]Client)
	x.byCity = make(map[string][]Client)
}

// OnResize registers fn to receive the client count after every mutation. fn
// runs under the write lock, so successive calls observe sizes in mutation
// order; it must not call back into the index. fn is called once immediately
// with the current size.
func (x *Index) OnResize(fn func(n int)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.onResize = fn
	x.resized()
}

// resized reports the current size to the observer. Caller holds mu.
func (x *Index) resized() {
	if x.onResize != nil {
		x.onResize(len(x.all))
	}
}

// Add inserts c into every view. Adding the same ID twice stores it twice;
// each occurrence is selectable and removed independently.
func (x *Index) Add(c Client) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.all = append(x.all, c)
	x.byCountry[c.Country] = append(x.byCountry[c.Country], c)
	x.byState[c.State] = append(x.byState[c.State], c)
	x.byCity[c.City] = append(x.byCity[c.City], c)
	x.resized()
}

// Remove deletes one occurrence of c's ID from every view. The keyed views are
// located through the stored copy's attributes, so a caller only needs the ID
// to be right. Returns ErrNotFound if the ID is not registered.
func (x *Index) Remove(c Client) error {
	return x.remove(func(stored Client) bool { return stored.ID == c.ID })
}

// RemoveExact deletes one occurrence equal to c in every field. Entries that
// share c's ID but differ elsewhere are left alone. Returns ErrNotFound if no
// such occurrence is registered.
func (x *Index) RemoveExact(c Client) error {
	return x.remove(func(stored Client) bool { return stored == c })
}

func (x *Index) remove(match func(Client) bool) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	i := slices.IndexFunc(x.all, match)
	if i < 0 {
		return ErrNotFound
	}
	stored := x.all[i]
	x.all = slices.Delete(x.all, i, i+1)
	removeFrom(x.byCountry, stored.Country, stored)
	removeFrom(x.byState, stored.State, stored)
	removeFrom(x.byCity, stored.City, stored)
	x.resized()
	return nil
}

// Reset drops every client.
func (x *Index) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.init()
	x.resized()
}

// Select narrows the registry to the clients matching f and lets p choose one
// of them while the read lock is held.
func (x *Index) Select(f Filter, p Picker) (Client, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	candidates := x.candidates(f)
	if len(candidates) == 0 {
		return Client{}, ErrNotFound
	}
	c, err := p.Pick(candidates)
	if err != nil {
		return Client{}, err
	}
	return *c, nil
}

// Candidates returns a copy of the clients matching f.
func (x *Index) Candidates(f Filter) []Client {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.candidates(f))
}

// candidates starts from the narrowest index the filter names (city, then
// state, then country) and applies the remaining segments as predicates.
// The result may alias index storage. Caller holds mu.
func (x *Index) candidates(f Filter) []Client {
	switch {
	case f.City != Wildcard:
		list := x.byCity[f.City]
		if f.State != Wildcard {
			list = filterClients(list, func(c Client) bool { return c.State == f.State })
		}
		if f.Country != Wildcard {
			list = filterClients(list, func(c Client) bool { return c.Country == f.Country })
		}
		return list
	case f.State != Wildcard:
		list := x.byState[f.State]
		if f.Country != Wildcard {
			list = filterClients(list, func(c Client) bool { return c.Country == f.Country })
		}
		return list
	case f.Country != Wildcard:
		return x.byCountry[f.Country]
	default:
		return x.all
	}
}

// Lookup returns the first registered client with the given ID.
func (x *Index) Lookup(id string) (Client, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	i := indexOf(x.all, id)
	if i < 0 {
		return Client{}, false
	}
	return x.all[i], true
}

// Snapshot returns a copy of every registered occurrence.
func (x *Index) Snapshot() []Client {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.all)
}

// Len returns the number of registered occurrences.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.all)
}

func indexOf(list []Client, id string) int {
	return slices.IndexFunc(list, func(c Client) bool { return c.ID == id })
}

// removeFrom deletes one occurrence of c from m[key] and prunes the key when
// its list becomes empty.
func removeFrom(m map[string][]Client, key string, c Client) {
	list := m[key]
	j := slices.Index(list, c)
	if j < 0 {
		return
	}
	list = slices.Delete(list, j, j+1)
	if len(list) == 0 {
		delete(m, key)
		return
	}
	m[key] = list
}

func filterClients(list []Client, keep func(Client) bool) []Client {
	var out []Client
	for _, c := range list {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
