package cases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"assessment-backend/internal/catalog"
	"assessment-backend/internal/queue"
	"assessment-backend/internal/shared/storage/object"
	"assessment-backend/internal/shared/telemetry"
)

// legacyNamespace seeds the deterministic ids given to migrated legacy cases.
var legacyNamespace = uuid.MustParse("6f1d3c52-4a8e-4d0b-9a57-2b61c7e0f3a4")

// CanonicalID returns the canonical id for a legacy identifier. Canonical
// ids are returned unchanged.
func CanonicalID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return strings.ToLower(id)
	}
	return uuid.NewSHA1(legacyNamespace, []byte(id)).String()
}

// CreateInput holds the fields a caller supplies for a new case.
type CreateInput struct {
	ModuleType  string `json:"moduleType"`
	SubjectName string `json:"subjectName"`
	Grade       string `json:"grade"`
}

// Service holds case operations used by the HTTP API and the worker.
type Service struct {
	Repo      Repo
	Store     object.ObjectStore
	Catalog   *catalog.Catalog
	Processor *Processor
	Queue     queue.Client

	now func() time.Time
}

// Create validates the module type and stores a draft case.
func (s *Service) Create(ctx context.Context, in CreateInput) (AssessmentCase, error) {
	module := catalog.Normalize(in.ModuleType)
	if module == "" {
		return AssessmentCase{}, fmt.Errorf("%w: moduleType is required", ErrInvalidInput)
	}
	if s.Catalog != nil {
		if _, ok := s.Catalog.Get(module); !ok {
			return AssessmentCase{}, fmt.Errorf("%w: unknown moduleType %q", ErrInvalidInput, in.ModuleType)
		}
	}
	now := s.clock().UTC()
	c := AssessmentCase{
		ID:          uuid.NewString(),
		ModuleType:  module,
		SubjectName: strings.TrimSpace(in.SubjectName),
		Grade:       strings.TrimSpace(in.Grade),
		Status:      StatusDraft,
		Documents:   []Document{},
		CreatedDate: now,
		LastUpdated: now,
	}
	if err := s.Repo.Create(ctx, c); err != nil {
		return AssessmentCase{}, err
	}
	telemetry.Info("case.created", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"case_id":     c.ID,
		"module_type": c.ModuleType,
	})
	return c, nil
}

// Resolve loads a case by id. A legacy id is rewritten to its canonical
// form on first access; later lookups by either id find the same case.
func (s *Service) Resolve(ctx context.Context, id string) (AssessmentCase, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return AssessmentCase{}, ErrNotFound
	}
	canonical := CanonicalID(id)
	c, err := s.Repo.Get(ctx, canonical)
	if err == nil || !errors.Is(err, ErrNotFound) || canonical == strings.ToLower(id) {
		return c, err
	}

	if _, err := s.Repo.Get(ctx, id); err != nil {
		return AssessmentCase{}, err
	}
	if err := s.Repo.RewriteID(ctx, id, canonical); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return AssessmentCase{}, fmt.Errorf("migrate legacy id: %w", err)
		}
		// Another caller migrated it first.
	} else {
		telemetry.Info("case.legacy_id_migrated", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"legacy_id":  id,
			"case_id":    canonical,
		})
	}
	return s.Repo.Get(ctx, canonical)
}

// List returns the cases of a module.
func (s *Service) List(ctx context.Context, moduleType string) ([]AssessmentCase, error) {
	return s.Repo.List(ctx, catalog.Normalize(moduleType))
}

// Delete removes the case and its stored documents.
func (s *Service) Delete(ctx context.Context, id string) error {
	c, err := s.Resolve(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == StatusProcessing {
		return ErrCaseBusy
	}
	if s.Store != nil {
		for _, d := range c.Documents {
			if err := s.Store.Delete(ctx, d.StorageKey); err != nil {
				telemetry.Warn("case.document_delete_failed", map[string]any{
					"request_id":  requestIDFromContext(ctx),
					"case_id":     c.ID,
					"document_id": d.ID,
					"err":         err,
				})
			}
		}
	}
	return s.Repo.Delete(ctx, c.ID)
}

// Upload stores a file and attaches it to the case.
func (s *Service) Upload(ctx context.Context, id, fileName string, r io.Reader) (Document, error) {
	if strings.TrimSpace(fileName) == "" {
		return Document{}, fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	if s.Store == nil {
		return Document{}, errors.New("object store not configured")
	}
	c, err := s.Resolve(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if c.Status == StatusProcessing {
		return Document{}, ErrCaseBusy
	}

	key, size, mimeType, err := s.Store.Save(ctx, c.ID, fileName, r)
	if err != nil {
		return Document{}, err
	}
	doc := Document{
		ID:         uuid.NewString(),
		Name:       fileName,
		Kind:       mimeType,
		Size:       size,
		UploadDate: s.clock().UTC(),
		StorageKey: key,
	}
	if _, err := s.Repo.Update(ctx, c.ID, Patch{AppendDocuments: []Document{doc}}); err != nil {
		_ = s.Store.Delete(ctx, key)
		return Document{}, err
	}
	return doc, nil
}

// Start begins a processing attempt. With wait set it runs synchronously;
// otherwise the case is queued when a queue is configured, or processed in
// a background goroutine. Processing never inherits the caller's cancellation.
func (s *Service) Start(ctx context.Context, id string, wait bool) (AssessmentCase, error) {
	c, err := s.Resolve(ctx, id)
	if err != nil {
		return AssessmentCase{}, err
	}
	if len(c.Documents) == 0 {
		return c, ErrNoFiles
	}
	if !CanTransition(c.Status, StatusProcessing) {
		return c, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, StatusProcessing)
	}
	if s.Processor == nil {
		return c, errors.New("case processor not configured")
	}

	detached := backgroundWithRequestID(ctx)
	if wait {
		return s.Processor.ProcessStored(detached, c.ID)
	}
	if s.Queue != nil {
		msg := queue.Message{
			CaseID:     c.ID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: s.clock().UTC().Format(time.RFC3339),
			Version:    queue.MessageVersion,
		}
		if err := s.Queue.Send(ctx, msg); err != nil {
			return c, fmt.Errorf("enqueue case: %w", err)
		}
		telemetry.Info("case.enqueued", map[string]any{"request_id": msg.RequestID, "case_id": c.ID})
		return c, nil
	}
	go func() {
		if _, err := s.Processor.ProcessStored(detached, c.ID); err != nil {
			telemetry.Error("case.process_failed", map[string]any{
				"request_id": requestIDFromContext(detached),
				"case_id":    c.ID,
				"err":        err,
			})
		}
	}()
	return c, nil
}

// ProcessCase runs a queued attempt; used by the worker.
func (s *Service) ProcessCase(ctx context.Context, caseID string) error {
	if s.Processor == nil {
		return errors.New("case processor not configured")
	}
	_, err := s.Processor.ProcessStored(ctx, caseID)
	return err
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
