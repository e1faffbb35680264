package identity

import (
	"sort"
	"strconv"
	"sync"
)

// OwnsFunc reports whether a persisted slug already belongs to the record
// being assigned.
type OwnsFunc func(slug string) bool

// Reservations is the batch-local set of slugs that are taken, either
// persisted in the store or assigned earlier in the same batch.
// Assignment computes and records a slug under one lock, so the next
// assignment always sees it.
type Reservations struct {
	mu        sync.Mutex
	persisted SlugSet
	assigned  SlugSet
	fallback  string
}

// NewReservations creates a reservation set seeded with persisted slugs.
// fallback names records whose name slugifies to nothing.
func NewReservations(fallback string, persisted ...string) *Reservations {
	return &Reservations{
		persisted: NewSlugSet(persisted...),
		assigned:  NewSlugSet(),
		fallback:  fallback,
	}
}

// Reserve assigns and records a unique slug for name.
func (r *Reservations) Reserve(name, id string) string {
	return r.Assign(name, id, nil)
}

// Assign returns the slug for a record. Candidates are visited in
// GenerateSlug order. A persisted candidate not yet assigned in this
// batch is reused when owns reports it belongs to the record, which
// keeps slugs stable across re-runs; otherwise the first free candidate
// is assigned.
func (r *Reservations) Assign(name, id string, owns OwnsFunc) string {
	if Slugify(name) == "" {
		name = r.fallback
		if id != "" {
			name += " " + id
		}
	}
	base := Slugify(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	for n := -1; ; n++ {
		var candidate string
		switch {
		case n == -1:
			candidate = base
		case n == 0:
			if id == "" {
				continue
			}
			candidate = base + "-" + id
		default:
			candidate = base + "-" + strconv.Itoa(n)
		}

		if r.assigned.Has(candidate) {
			continue
		}
		if !r.persisted.Has(candidate) || (owns != nil && owns(candidate)) {
			r.assigned.Add(candidate)
			return candidate
		}
	}
}

// Taken reports whether slug is persisted or assigned.
func (r *Reservations) Taken(slug string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persisted.Has(slug) || r.assigned.Has(slug)
}

// Count returns the number of distinct taken slugs.
func (r *Reservations) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.persisted)
	for s := range r.assigned {
		if !r.persisted.Has(s) {
			n++
		}
	}
	return n
}

// Export returns the slugs assigned in this batch in sorted order (for
// checkpoint serialization).
func (r *Reservations) Export() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.assigned))
	for s := range r.assigned {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Import marks slugs as assigned in this batch (for checkpoint restore).
func (r *Reservations) Import(slugs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range slugs {
		r.assigned.Add(s)
	}
}
