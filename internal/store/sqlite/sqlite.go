// Package sqlite stores every collection in one JSON document table and
// evaluates filters with SQLite's JSON functions.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"impactline/internal/store"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	DB    *sql.DB
	Clock func() time.Time
	q     querier
	tx    *sql.Tx
}

// New expects a migrated database.
func New(db *sql.DB) *Store {
	return &Store{DB: db, q: db}
}

func (s *Store) Now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Doc, error) {
	return getDoc(ctx, s.q, collection, id)
}

func getDoc(ctx context.Context, q querier, collection, id string) (store.Doc, error) {
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection=? AND id=?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Doc{}, store.ErrNotFound
	}
	if err != nil {
		return store.Doc{}, err
	}
	return store.Doc{ID: id, Body: []byte(body)}, nil
}

func (s *Store) Upsert(ctx context.Context, collection, id string, doc any) error {
	body, err := store.Marshal(doc)
	if err != nil {
		return err
	}
	return s.put(ctx, s.q, collection, id, body)
}

func (s *Store) put(ctx context.Context, q querier, collection, id string, body []byte) error {
	_, err := q.ExecContext(ctx, `INSERT INTO documents(collection,id,body,written_at) VALUES (?,?,?,?)
ON CONFLICT(collection,id) DO UPDATE SET body=excluded.body, written_at=excluded.written_at`,
		collection, id, string(body), s.Now().Format(time.RFC3339Nano))
	return err
}

func (s *Store) Update(ctx context.Context, collection, id string, p store.Patch) error {
	if s.tx != nil {
		return s.update(ctx, s.tx, collection, id, p)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.update(ctx, tx, collection, id, p); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) update(ctx context.Context, q querier, collection, id string, p store.Patch) error {
	doc, err := getDoc(ctx, q, collection, id)
	if err != nil {
		return err
	}
	next, err := p.Apply(doc.Body)
	if err != nil {
		return err
	}
	return s.put(ctx, q, collection, id, next)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM documents WHERE collection=? AND id=?`, collection, id)
	return err
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Doc, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	clauses := []string{"collection=?"}
	args := []any{q.Collection}
	for _, f := range q.Filters {
		clause, fargs := filterClause(f)
		clauses = append(clauses, clause)
		args = append(args, fargs...)
	}
	query := `SELECT id, body FROM documents WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY rowid`
	if q.Max > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Max)
	}
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Doc
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		out = append(out, store.Doc{ID: id, Body: []byte(body)})
	}
	return out, rows.Err()
}

func filterClause(f store.Filter) (string, []any) {
	path := "$." + string(f.Field)
	if f.Op == store.Exists {
		if want, _ := f.Value.(bool); want {
			return `COALESCE(json_type(body, ?), 'null') <> 'null'`, []any{path}
		}
		return `COALESCE(json_type(body, ?), 'null') = 'null'`, []any{path}
	}
	op := string(f.Op)
	if f.Op == store.Eq {
		op = "="
	}
	value := store.Normalize(f.Value)
	if store.IsTime(f.Value) {
		return fmt.Sprintf(`julianday(json_extract(body, ?)) %s julianday(?)`, op), []any{path, value}
	}
	if b, ok := value.(bool); ok {
		// json_extract yields 0/1 for booleans.
		n := 0
		if b {
			n = 1
		}
		return fmt.Sprintf(`json_extract(body, ?) %s ?`, op), []any{path, n}
	}
	return fmt.Sprintf(`json_extract(body, ?) %s ?`, op), []any{path, value}
}

// RunInTx binds every call made through tx to one SQL transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	bound := &Store{DB: s.DB, Clock: s.Clock, q: tx, tx: tx}
	if err := fn(ctx, bound); err != nil {
		return err
	}
	return tx.Commit()
}
