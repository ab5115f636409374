// Package knowledge owns knowledge documents and their immutable version
// chain. Every accepted mutation bumps the document version and writes one
// version entry carrying the full post-mutation snapshot.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"impactline/internal/audit"
	"impactline/internal/domain"
	"impactline/internal/ids"
	"impactline/internal/ontology"
	"impactline/internal/store"
)

const (
	Collection        = "knowledge_documents"
	VersionCollection = "document_versions"
)

const (
	fieldCategory     store.Field = "category"
	fieldStatus       store.Field = "status"
	fieldIsTemplate   store.Field = "is_template"
	fieldCreatedBy    store.Field = "created_by"
	fieldDocumentID   store.Field = "document_id"
	fieldNumber       store.Field = "number"
	fieldViewCount                = "view_count"
	fieldLastViewedAt             = "last_viewed_at"
)

type Options struct {
	Transactional bool
	Logger        *slog.Logger
}

type Service struct {
	Store     store.Store
	IDs       ids.Generator
	Validator ontology.Validator
	Options   Options
	Now       func() time.Time
}

func New(s store.Store, gen ids.Generator, v ontology.Validator, opts Options) Service {
	return Service{Store: s, IDs: gen, Validator: v, Options: opts}
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return s.Store.Now()
}

func (s Service) logger() *slog.Logger {
	if s.Options.Logger != nil {
		return s.Options.Logger
	}
	return slog.Default()
}

func (s Service) with(st store.Store) Service {
	s.Store = st
	return s
}

func storeErr(op string, err error) error {
	return domain.StoreError{Op: op, Err: err}
}

func (s Service) Get(ctx context.Context, id string) (domain.Document, error) {
	d, err := store.GetAs[domain.Document](ctx, s.Store, Collection, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Document{}, domain.NotFoundError{Kind: "document", ID: id}
	}
	if err != nil {
		return domain.Document{}, storeErr("get document", err)
	}
	return d, nil
}

// RecordView bumps the view counter. Views are not versioned.
func (s Service) RecordView(ctx context.Context, id string) error {
	err := s.Store.Update(ctx, Collection, id, store.Patch{
		Set:       map[string]any{fieldLastViewedAt: s.now()},
		Increment: map[string]int64{fieldViewCount: 1},
	})
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFoundError{Kind: "document", ID: id}
	}
	if err != nil {
		return storeErr("record document view", err)
	}
	return nil
}

func matchesQuery(d domain.Document, q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(d.Title), q) || strings.Contains(strings.ToLower(d.Content), q) {
		return true
	}
	return slices.ContainsFunc(d.Tags, func(t string) bool { return strings.Contains(strings.ToLower(t), q) })
}

// List returns matching documents, most recently updated first. Archived
// documents are skipped unless a status is given or IncludeArchived is set.
func (s Service) List(ctx context.Context, f domain.DocumentFilter) ([]domain.Document, error) {
	q := store.From(Collection)
	if f.Category != "" {
		q = q.Where(fieldCategory, store.Eq, f.Category)
	}
	switch {
	case f.Status != "":
		q = q.Where(fieldStatus, store.Eq, f.Status)
	case !f.IncludeArchived:
		q = q.Where(fieldStatus, store.Neq, domain.DocumentArchived)
	}
	if f.TemplatesOnly {
		q = q.Where(fieldIsTemplate, store.Eq, true)
	}
	if f.CreatedBy != "" {
		q = q.Where(fieldCreatedBy, store.Eq, f.CreatedBy)
	}
	docs, err := store.QueryAs[domain.Document](ctx, s.Store, q)
	if err != nil {
		return nil, storeErr("list documents", err)
	}
	docs = slices.DeleteFunc(docs, func(d domain.Document) bool {
		if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, func(t string) bool { return slices.Contains(d.Tags, t) }) {
			return true
		}
		return f.Query != "" && !matchesQuery(d, f.Query)
	})
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].UpdatedAt.After(docs[j].UpdatedAt) })
	if f.Limit > 0 && len(docs) > f.Limit {
		docs = docs[:f.Limit]
	}
	return docs, nil
}

// Versions lists the version chain, newest first.
func (s Service) Versions(ctx context.Context, id string) ([]domain.DocumentVersion, error) {
	q := store.From(VersionCollection).Where(fieldDocumentID, store.Eq, id)
	versions, err := store.QueryAs[domain.DocumentVersion](ctx, s.Store, q)
	if err != nil {
		return nil, storeErr("list document versions", err)
	}
	sort.SliceStable(versions, func(i, j int) bool { return versions[i].Number > versions[j].Number })
	return versions, nil
}

func (s Service) Version(ctx context.Context, id string, number int) (domain.DocumentVersion, error) {
	q := store.From(VersionCollection).
		Where(fieldDocumentID, store.Eq, id).
		Where(fieldNumber, store.Eq, number).
		Limit(1)
	versions, err := store.QueryAs[domain.DocumentVersion](ctx, s.Store, q)
	if err != nil {
		return domain.DocumentVersion{}, storeErr("get document version", err)
	}
	if len(versions) == 0 {
		return domain.DocumentVersion{}, domain.NotFoundError{Kind: "document version", ID: fmt.Sprintf("%s@%d", id, number)}
	}
	return versions[0], nil
}

// VersionDiff compares two snapshots of one document.
type VersionDiff struct {
	From      int                  `json:"from"`
	To        int                  `json:"to"`
	Changes   []domain.FieldChange `json:"changes"`
	Timestamp time.Time            `json:"timestamp"`
	ChangedBy string               `json:"changed_by"`
}

func (s Service) CompareVersions(ctx context.Context, id string, from, to int) (VersionDiff, error) {
	a, err := s.Version(ctx, id, from)
	if err != nil {
		return VersionDiff{}, err
	}
	b, err := s.Version(ctx, id, to)
	if err != nil {
		return VersionDiff{}, err
	}
	before, err := json.Marshal(a.Snapshot)
	if err != nil {
		return VersionDiff{}, err
	}
	after, err := json.Marshal(b.Snapshot)
	if err != nil {
		return VersionDiff{}, err
	}
	changes, err := audit.Diff(before, after)
	if err != nil {
		return VersionDiff{}, err
	}
	return VersionDiff{From: from, To: to, Changes: changes, Timestamp: b.CreatedAt, ChangedBy: b.CreatedBy}, nil
}

// CheckVersions reports documents whose counter has no matching version
// entry. It never repairs; fix is accepted to satisfy the reconciler.
func (s Service) CheckVersions(ctx context.Context, _ bool) ([]domain.Finding, error) {
	docs, err := store.QueryAs[domain.Document](ctx, s.Store, store.From(Collection))
	if err != nil {
		return nil, storeErr("scan documents", err)
	}
	var findings []domain.Finding
	for _, d := range docs {
		_, err := s.Version(ctx, d.ID, d.Version)
		if errors.Is(err, domain.ErrEntityNotFound) {
			findings = append(findings, domain.Finding{
				Kind:     domain.FindingVersionMismatch,
				EntityID: d.ID,
				Detail:   fmt.Sprintf("document %s is at version %d with no matching version entry", d.ID, d.Version),
			})
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return findings, nil
}
