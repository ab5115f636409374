package knowledge

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"impactline/internal/domain"
	"impactline/internal/metrics"
	"impactline/internal/store"
)

var tracer = otel.Tracer("impactline/knowledge")

const (
	reasonCreated  = "Initial creation"
	reasonArchived = "Document archived"
	reasonRestored = "Restored to version %d"
)

// Intent is one requested mutation of a document.
type Intent interface {
	intentName() string
}

type CreateIntent struct {
	Request domain.CreateDocumentRequest
}

type UpdateIntent struct {
	ID     string
	Patch  domain.DocumentPatch
	Reason string
}

type RestoreVersionIntent struct {
	ID     string
	Number int
}

type ArchiveIntent struct {
	ID string
}

func (CreateIntent) intentName() string         { return "create" }
func (UpdateIntent) intentName() string         { return "update" }
func (RestoreVersionIntent) intentName() string { return "restore_version" }
func (ArchiveIntent) intentName() string        { return "archive" }

// Outcome is the document after an intent. Version is nil for a no-op.
type Outcome struct {
	Document domain.Document
	Version  *domain.DocumentVersion
	Warnings []string
}

type plan struct {
	doc        domain.Document
	changeType domain.VersionChangeType
	reason     string
	previous   *int
	changes    []string
	noop       bool
	warnings   []string
}

func rejected(err error) error {
	metrics.ValidationFailure("document")
	return err
}

// Apply validates an intent, writes the document, then appends its version
// entry.
func (s Service) Apply(ctx context.Context, in Intent, actorID string) (Outcome, error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "knowledge.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("intent", in.intentName()), attribute.String("actor", actorID))

	var out Outcome
	err := store.RunInTx(ctx, s.Store, s.Options.Transactional, func(ctx context.Context, tx store.Store) error {
		svc := s.with(tx)
		p, err := svc.plan(ctx, in)
		if err != nil {
			return err
		}
		out = Outcome{Document: p.doc, Warnings: p.warnings}
		if p.noop {
			return nil
		}
		now := svc.now()
		if p.changeType == domain.ChangeCreated {
			p.doc.CreatedBy, p.doc.CreatedAt = actorID, now
		}
		p.doc.UpdatedBy, p.doc.UpdatedAt = actorID, now
		if err := tx.Upsert(ctx, Collection, p.doc.ID, p.doc); err != nil {
			return storeErr("write document", err)
		}
		v := domain.DocumentVersion{
			ID:              svc.IDs.NewID(),
			DocumentID:      p.doc.ID,
			Number:          p.doc.Version,
			ChangeType:      p.changeType,
			Snapshot:        Snapshot(p.doc),
			CreatedBy:       actorID,
			CreatedAt:       now,
			Reason:          p.reason,
			PreviousVersion: p.previous,
			Changes:         p.changes,
		}
		if err := tx.Upsert(ctx, VersionCollection, v.ID, v); err != nil {
			return storeErr("write document version", err)
		}
		out = Outcome{Document: p.doc, Version: &v, Warnings: p.warnings}
		return nil
	})
	metrics.ObserveIntent("document", in.intentName(), started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, err
	}
	if out.Version != nil {
		metrics.Mutation("document", string(out.Version.ChangeType))
		s.logger().Debug("document intent applied", "intent", in.intentName(), "document_id", out.Document.ID, "version", out.Version.Number)
	}
	if len(out.Warnings) > 0 {
		s.logger().Warn("ontology warnings", "document_id", out.Document.ID, "warnings", out.Warnings)
	}
	return out, nil
}

func (s Service) plan(ctx context.Context, in Intent) (plan, error) {
	switch in := in.(type) {
	case CreateIntent:
		return s.planCreate(in.Request)
	case UpdateIntent:
		return s.planUpdate(ctx, in.ID, in.Patch, in.Reason, false)
	case RestoreVersionIntent:
		v, err := s.Version(ctx, in.ID, in.Number)
		if err != nil {
			return plan{}, err
		}
		return s.planUpdate(ctx, in.ID, patchFrom(v.Snapshot), fmt.Sprintf(reasonRestored, in.Number), true)
	case ArchiveIntent:
		cur, err := s.Get(ctx, in.ID)
		if err != nil {
			return plan{}, err
		}
		if cur.Status == domain.DocumentArchived {
			return plan{doc: cur, noop: true}, nil
		}
		status := domain.DocumentArchived
		return s.planUpdate(ctx, in.ID, domain.DocumentPatch{Status: &status}, reasonArchived, false)
	}
	return plan{}, domain.ValidationError{Entity: "document", Errors: []domain.FieldError{{Field: "intent", Code: domain.CodeRequiredField, Message: "unsupported intent"}}}
}

func (s Service) planCreate(req domain.CreateDocumentRequest) (plan, error) {
	result := s.Validator.ValidateDocumentCreate(req)
	if err := result.Err("document"); err != nil {
		return plan{}, rejected(err)
	}
	status := req.Status
	if status == "" {
		status = domain.DocumentDraft
	}
	visibility := req.Visibility
	if visibility == nil {
		visibility = []string{"all"}
	}
	doc := domain.Document{
		ID:                 s.IDs.NewID(),
		Title:              req.Title,
		Category:           req.Category,
		Content:            req.Content,
		Version:            1,
		Status:             status,
		Visibility:         visibility,
		IsTemplate:         req.IsTemplate,
		Template:           req.Template,
		Tags:               orEmpty(req.Tags),
		RelatedItemIDs:     orEmpty(req.RelatedItemIDs),
		RelatedDocumentIDs: orEmpty(req.RelatedDocumentIDs),
		SearchKeywords:     Keywords(req.Title, req.Content, req.Tags),
	}
	return plan{
		doc:        doc,
		changeType: domain.ChangeCreated,
		reason:     reasonCreated,
		changes:    []string{},
		warnings:   result.Warnings,
	}, nil
}

// planUpdate merges patch into the current document. A patch that changes
// nothing is a no-op unless forced; restores always write a version.
func (s Service) planUpdate(ctx context.Context, id string, patch domain.DocumentPatch, reason string, force bool) (plan, error) {
	result := s.Validator.ValidateDocumentUpdate(patch)
	if err := result.Err("document"); err != nil {
		return plan{}, rejected(err)
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return plan{}, err
	}
	next := merge(cur, patch)
	changes := Summarize(Snapshot(cur), Snapshot(next))
	if len(changes) == 0 && !force {
		return plan{doc: cur, noop: true, warnings: result.Warnings}, nil
	}
	next.Version = cur.Version + 1
	previous := cur.Version
	return plan{
		doc:        next,
		changeType: Classify(cur, next),
		reason:     reason,
		previous:   &previous,
		changes:    changes,
		warnings:   result.Warnings,
	}, nil
}

// Create stores a new document at version 1.
func (s Service) Create(ctx context.Context, req domain.CreateDocumentRequest, actorID string) (domain.Document, error) {
	out, err := s.Apply(ctx, CreateIntent{Request: req}, actorID)
	return out.Document, err
}

func (s Service) Update(ctx context.Context, id string, patch domain.DocumentPatch, reason, actorID string) (domain.Document, error) {
	out, err := s.Apply(ctx, UpdateIntent{ID: id, Patch: patch, Reason: reason}, actorID)
	return out.Document, err
}

// RestoreToVersion writes the old snapshot forward as a new version.
func (s Service) RestoreToVersion(ctx context.Context, id string, number int, actorID string) (domain.Document, error) {
	out, err := s.Apply(ctx, RestoreVersionIntent{ID: id, Number: number}, actorID)
	return out.Document, err
}

// Delete archives; documents are never removed.
func (s Service) Delete(ctx context.Context, id, actorID string) (domain.Document, error) {
	out, err := s.Apply(ctx, ArchiveIntent{ID: id}, actorID)
	return out.Document, err
}

func (s Service) LinkTask(ctx context.Context, id, taskID, actorID string) (domain.Document, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	if slices.Contains(cur.RelatedItemIDs, taskID) {
		return cur, nil
	}
	related := append(slices.Clone(cur.RelatedItemIDs), taskID)
	return s.Update(ctx, id, domain.DocumentPatch{RelatedItemIDs: &related}, fmt.Sprintf("Linked to task %s", taskID), actorID)
}

func (s Service) UnlinkTask(ctx context.Context, id, taskID, actorID string) (domain.Document, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	if !slices.Contains(cur.RelatedItemIDs, taskID) {
		return cur, nil
	}
	related := slices.DeleteFunc(slices.Clone(cur.RelatedItemIDs), func(v string) bool { return v == taskID })
	return s.Update(ctx, id, domain.DocumentPatch{RelatedItemIDs: &related}, fmt.Sprintf("Unlinked from task %s", taskID), actorID)
}
