// Package store defines the document store contract the services run on.
// Adapters live in sub-packages; none of them offer cross-call atomicity
// unless they also implement Transactor.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

// Doc is a raw JSON document and its id.
type Doc struct {
	ID   string
	Body json.RawMessage
}

func (d Doc) Decode(dst any) error {
	if err := json.Unmarshal(d.Body, dst); err != nil {
		return fmt.Errorf("decode %s: %w", d.ID, err)
	}
	return nil
}

type Store interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	Upsert(ctx context.Context, collection, id string, doc any) error
	// Update applies p atomically; it returns ErrNotFound when id is absent.
	Update(ctx context.Context, collection, id string, p Patch) error
	// Delete is idempotent.
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Doc, error)
	// Now is the server-assigned timestamp.
	Now() time.Time
}

// Transactor is implemented by adapters that can group several calls.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// RunInTx runs fn in a transaction when enabled and supported, otherwise
// directly against s.
func RunInTx(ctx context.Context, s Store, enabled bool, fn func(ctx context.Context, tx Store) error) error {
	if t, ok := s.(Transactor); ok && enabled {
		return t.RunInTx(ctx, fn)
	}
	return fn(ctx, s)
}

func GetAs[T any](ctx context.Context, s Store, collection, id string) (T, error) {
	var out T
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return out, err
	}
	err = doc.Decode(&out)
	return out, err
}

func QueryAs[T any](ctx context.Context, s Store, q Query) ([]T, error) {
	docs, err := s.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Marshal encodes a document the way every adapter stores it.
func Marshal(doc any) (json.RawMessage, error) {
	if raw, ok := doc.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}
