// Package memory is an in-process store adapter. Each call is atomic on
// its own; there are no transactions.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"impactline/internal/store"
)

type collection struct {
	order []string
	docs  map[string][]byte
}

type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	Clock       func() time.Time
}

func New() *Store {
	return &Store{collections: map[string]*collection{}}
}

func (s *Store) Now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: map[string][]byte{}}
		s.collections[name] = c
	}
	return c
}

func (s *Store) Get(ctx context.Context, coll, id string) (store.Doc, error) {
	if err := ctx.Err(); err != nil {
		return store.Doc{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[coll]
	if !ok {
		return store.Doc{}, store.ErrNotFound
	}
	body, ok := c.docs[id]
	if !ok {
		return store.Doc{}, store.ErrNotFound
	}
	return store.Doc{ID: id, Body: slices.Clone(body)}, nil
}

func (s *Store) Upsert(ctx context.Context, coll, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := store.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(coll)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = slices.Clone(body)
	return nil
}

func (s *Store) Update(ctx context.Context, coll, id string, p store.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[coll]
	if !ok {
		return store.ErrNotFound
	}
	body, ok := c.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	next, err := p.Apply(body)
	if err != nil {
		return err
	}
	c.docs[id] = next
	return nil
}

func (s *Store) Delete(ctx context.Context, coll, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[coll]
	if !ok {
		return nil
	}
	if _, exists := c.docs[id]; !exists {
		return nil
	}
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(v string) bool { return v == id })
	return nil
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[q.Collection]
	if !ok {
		return nil, nil
	}
	var out []store.Doc
	for _, id := range c.order {
		body := c.docs[id]
		ok, err := q.Matches(body)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, store.Doc{ID: id, Body: slices.Clone(body)})
		if q.Max > 0 && len(out) >= q.Max {
			break
		}
	}
	return out, nil
}
