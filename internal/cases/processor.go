package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"assessment-backend/internal/analysis"
	"assessment-backend/internal/extract"
	"assessment-backend/internal/shared/metrics"
	"assessment-backend/internal/shared/storage/object"
	"assessment-backend/internal/shared/telemetry"
	"assessment-backend/internal/shared/tracing"
)

// LookupCleaner prunes stale lookup tables of a module before a run.
type LookupCleaner interface {
	Cleanup(ctx context.Context, moduleType string) error
}

// Processor drives a case through one processing attempt.
type Processor struct {
	Repo     Repo
	Store    object.ObjectStore
	Stage    *extract.Stage
	Invoker  *analysis.Invoker
	Lookups  LookupCleaner
	Lease    Lease
	Verifier *Verifier
	Cleaner  *Cleaner

	now func() time.Time
}

// NewProcessor wires a processor with a memory lease and default stages.
func NewProcessor(repo Repo, store object.ObjectStore, invoker *analysis.Invoker) *Processor {
	return &Processor{
		Repo:     repo,
		Store:    store,
		Stage:    extract.NewStage(extract.DefaultMinChars),
		Invoker:  invoker,
		Lease:    NewMemoryLease(),
		Verifier: &Verifier{Repo: repo},
		Cleaner:  &Cleaner{Repo: repo, Store: store},
		now:      time.Now,
	}
}

// ProcessStored runs Process over the documents already uploaded to the case.
func (p *Processor) ProcessStored(ctx context.Context, caseID string) (AssessmentCase, error) {
	c, err := p.Repo.Get(ctx, caseID)
	if err != nil {
		return AssessmentCase{}, err
	}
	if p.Store == nil {
		return c, errors.New("object store not configured")
	}
	files := make([]extract.File, 0, len(c.Documents))
	for _, d := range c.Documents {
		files = append(files, extract.StoredFile(p.Store, d.StorageKey, d.Name, d.Kind))
	}
	return p.Process(ctx, caseID, files)
}

// Process extracts, analyzes and persists one attempt for caseID. Stage
// failures end in a terminal status on the returned case and are not
// returned as errors; errors mean a precondition, store or integrity fault.
func (p *Processor) Process(ctx context.Context, caseID string, files []extract.File) (AssessmentCase, error) {
	if len(files) == 0 {
		return AssessmentCase{}, ErrNoFiles
	}
	if p.Lease != nil {
		release, err := p.Lease.Acquire(ctx, caseID)
		if err != nil {
			return AssessmentCase{}, err
		}
		defer release()
	}
	// Read under the lease so the transition check sees the latest status.
	c, err := p.Repo.Get(ctx, caseID)
	if err != nil {
		return AssessmentCase{}, err
	}
	return p.run(ctx, c, files)
}

func (p *Processor) run(ctx context.Context, c AssessmentCase, files []extract.File) (out AssessmentCase, err error) {
	startedAt := p.clock()
	ctx, span := tracing.Start(ctx, "case.process",
		attribute.String("case.id", c.ID),
		attribute.String("case.module_type", c.ModuleType),
		attribute.Int("case.files", len(files)),
	)
	defer span.End()

	if p.Lookups != nil {
		if err := p.Lookups.Cleanup(ctx, c.ModuleType); err != nil {
			telemetry.Warn("case.lookup_cleanup_failed", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"case_id":     c.ID,
				"module_type": c.ModuleType,
				"err":         err,
			})
		}
	}

	if !CanTransition(c.Status, StatusProcessing) {
		return c, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, StatusProcessing)
	}
	from := c.Status
	processing := StatusProcessing
	cleared := ""
	c, err = p.Repo.Update(ctx, c.ID, Patch{Status: &processing, ProcessingError: &cleared, ClearResult: true})
	if err != nil {
		return c, fmt.Errorf("mark processing: %w", err)
	}
	metrics.IncProcessingStarted()
	p.logTransition(ctx, c, from, StatusProcessing, nil)

	var done terminal
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic")
			if done.written {
				// The terminal status is already stored; keep it.
				telemetry.Error("case.panic_after_result", map[string]any{
					"request_id": requestIDFromContext(ctx),
					"case_id":    done.c.ID,
					"status":     string(done.c.Status),
					"panic":      fmt.Sprint(r),
				})
				out, err = done.c, nil
				return
			}
			out, err = p.finish(backgroundWithRequestID(ctx), c, analysis.Failed(fmt.Sprintf("processing panic: %v", r), p.clock()), startedAt, &done)
		}
	}()

	stageCtx, extractSpan := tracing.Start(ctx, "case.extract")
	texts, extractErr := p.Stage.Extract(stageCtx, files)
	extractSpan.End()
	if extractErr != nil {
		span.RecordError(extractErr)
		return p.failExtraction(ctx, c, extractErr, startedAt, &done)
	}

	req := analysis.BuildRequest(texts, analysis.Meta{
		ModuleType:  c.ModuleType,
		Grade:       c.Grade,
		SubjectName: c.SubjectName,
	})
	invokeCtx, invokeSpan := tracing.Start(ctx, "case.invoke", attribute.Int("case.documents", len(req.Documents)))
	result := p.Invoker.Invoke(invokeCtx, req)
	invokeSpan.SetAttributes(attribute.String("analysis.status", string(result.Status)))
	invokeSpan.End()

	return p.finish(ctx, c, result, startedAt, &done)
}

// terminal remembers the terminal write of one run.
type terminal struct {
	written bool
	c       AssessmentCase
}

func (t *terminal) record(c AssessmentCase) {
	t.written = true
	t.c = c
}

// failExtraction records a step 3 failure. Input faults keep the documents
// and write no analysis result; transport faults become a failed result.
func (p *Processor) failExtraction(ctx context.Context, c AssessmentCase, cause error, startedAt time.Time, done *terminal) (AssessmentCase, error) {
	var empty *extract.EmptyDocumentError
	var unreadable *extract.FileError
	if errors.As(cause, &empty) || errors.As(cause, &unreadable) {
		status := StatusDocumentProcessingError
		msg := cause.Error()
		updated, err := p.Repo.Update(ctx, c.ID, Patch{Status: &status, ProcessingError: &msg})
		if err != nil {
			return c, fmt.Errorf("persist extraction failure: %w", err)
		}
		done.record(updated)
		p.recordOutcome(ctx, updated, startedAt, cause)
		return updated, nil
	}
	return p.finish(ctx, c, analysis.Failed(cause.Error(), p.clock()), startedAt, done)
}

// finish persists the terminal result, verifies it, and purges documents
// after a completion.
func (p *Processor) finish(ctx context.Context, c AssessmentCase, result analysis.Result, startedAt time.Time, done *terminal) (AssessmentCase, error) {
	status := statusFor(result)
	updated, err := p.Repo.Update(ctx, c.ID, Patch{Status: &status, Result: &result})
	if err != nil {
		return c, fmt.Errorf("persist result: %w", err)
	}
	done.record(updated)
	var cause error
	if !result.Succeeded() {
		cause = errors.New(result.ErrorMessage)
	}
	p.recordOutcome(ctx, updated, startedAt, cause)
	if !status.Completion() {
		return updated, nil
	}

	verifyErr := p.Verifier.Verify(ctx, updated.ID, result.MarkdownReport)
	purged, err := p.Cleaner.Purge(ctx, updated)
	if err != nil {
		return updated, err
	}
	return purged, verifyErr
}

func (p *Processor) recordOutcome(ctx context.Context, c AssessmentCase, startedAt time.Time, cause error) {
	metrics.IncProcessingOutcome(string(c.Status))
	metrics.ObserveProcessingDurationMs(metrics.SinceMillis(startedAt))
	p.logTransition(ctx, c, StatusProcessing, c.Status, cause)
}

func (p *Processor) logTransition(ctx context.Context, c AssessmentCase, from, to Status, cause error) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"case_id":           c.ID,
		"module_type":       c.ModuleType,
		"status":            string(to),
		"status_transition": string(from) + "->" + string(to),
	}
	if cause != nil {
		fields["err"] = cause
		telemetry.Warn("case.status", fields)
		return
	}
	telemetry.Info("case.status", fields)
}

func (p *Processor) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}
