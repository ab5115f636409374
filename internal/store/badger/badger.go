// Package badger keeps each collection under its own key prefix in a
// badger database. Filters are evaluated while iterating the prefix.
package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"impactline/internal/store"
)

const sep = "\x00"

type Store struct {
	DB    *badger.DB
	Clock func() time.Time
	txn   *badger.Txn
}

func New(db *badger.DB) *Store {
	return &Store{DB: db}
}

func key(collection, id string) []byte {
	return []byte(collection + sep + id)
}

func prefix(collection string) []byte {
	return []byte(collection + sep)
}

func (s *Store) Now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	if s.txn != nil {
		return fn(s.txn)
	}
	return s.DB.View(fn)
}

func (s *Store) update(fn func(txn *badger.Txn) error) error {
	if s.txn != nil {
		return fn(s.txn)
	}
	return s.DB.Update(fn)
}

func read(txn *badger.Txn, k []byte) ([]byte, error) {
	item, err := txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	if err := ctx.Err(); err != nil {
		return store.Doc{}, err
	}
	var body []byte
	err := s.view(func(txn *badger.Txn) error {
		var err error
		body, err = read(txn, key(collection, id))
		return err
	})
	if err != nil {
		return store.Doc{}, err
	}
	return store.Doc{ID: id, Body: body}, nil
}

func (s *Store) Upsert(ctx context.Context, collection, id string, doc any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := store.Marshal(doc)
	if err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Set(key(collection, id), body)
	})
}

func (s *Store) Update(ctx context.Context, collection, id string, p store.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		k := key(collection, id)
		body, err := read(txn, k)
		if err != nil {
			return err
		}
		next, err := p.Apply(body)
		if err != nil {
			return err
		}
		return txn.Set(k, next)
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Delete(key(collection, id))
	})
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Doc, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var out []store.Doc
	err := s.view(func(txn *badger.Txn) error {
		p := prefix(q.Collection)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			body, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			ok, err := q.Matches(body)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			id := string(item.Key()[len(p):])
			out = append(out, store.Doc{ID: id, Body: body})
			if q.Max > 0 && len(out) >= q.Max {
				return nil
			}
		}
		return nil
	})
	return out, err
}

// RunInTx runs fn inside one read-write badger transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.txn != nil {
		return fn(ctx, s)
	}
	return s.DB.Update(func(txn *badger.Txn) error {
		return fn(ctx, &Store{DB: s.DB, Clock: s.Clock, txn: txn})
	})
}
