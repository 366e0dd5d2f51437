package cases

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"assessment-backend/internal/analysis"
	"assessment-backend/internal/extract"
	"assessment-backend/internal/llm"
	local "assessment-backend/internal/shared/storage/object/local"
)

type staticLLM struct {
	response []byte
	err      error
	calls    int
	mu       sync.Mutex
}

func (s *staticLLM) Analyze(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	_ = ctx
	_ = req
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.response), nil
}

func (s *staticLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func completedReply(t *testing.T, markdown string) []byte {
	t.Helper()
	raw, err := json.Marshal(llm.Response{Status: "completed", MarkdownReport: markdown})
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	return raw
}

// truncatingRepo returns reports cut to limit runes from Get, the way a
// column with a size cap would.
type truncatingRepo struct {
	Repo
	limit int
}

func (r *truncatingRepo) Get(ctx context.Context, id string) (AssessmentCase, error) {
	c, err := r.Repo.Get(ctx, id)
	if err != nil || c.AnalysisResult == nil {
		return c, err
	}
	runes := []rune(c.AnalysisResult.MarkdownReport)
	if len(runes) > r.limit {
		c.AnalysisResult.MarkdownReport = string(runes[:r.limit])
	}
	return c, nil
}

// panicOnResultRepo panics the first time a result is written.
type panicOnResultRepo struct {
	Repo
	once sync.Once
}

func (r *panicOnResultRepo) Update(ctx context.Context, id string, p Patch) (AssessmentCase, error) {
	if p.Result != nil {
		fired := false
		r.once.Do(func() { fired = true })
		if fired {
			panic("write exploded")
		}
	}
	return r.Repo.Update(ctx, id, p)
}

func seedCase(t *testing.T, repo Repo, docs ...Document) AssessmentCase {
	t.Helper()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	if docs == nil {
		docs = []Document{{ID: "d1", Name: "notes.txt", Kind: "text/plain", Size: 10, UploadDate: now}}
	}
	c := AssessmentCase{
		ID:          "case-1",
		ModuleType:  "k12",
		SubjectName: "Student A",
		Grade:       "5",
		Status:      StatusDraft,
		Documents:   docs,
		CreatedDate: now,
		LastUpdated: now,
	}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("seed case: %v", err)
	}
	return c
}

func longText() []byte {
	return []byte(strings.Repeat("The student reads slowly and reverses letters. ", 4))
}

func TestProcessCompletesAndPurgesDocuments(t *testing.T) {
	repo := NewMemoryRepo()
	seedCase(t, repo)
	client := &staticLLM{response: completedReply(t, "## Overview\n\nAll good.")}
	p := NewProcessor(repo, nil, analysis.NewInvoker(client))

	out, err := p.Process(context.Background(), "case-1", []extract.File{
		extract.BytesFile("notes.txt", "text/plain", longText()),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q", out.Status)
	}
	if len(out.Documents) != 0 || out.PurgedDocumentCount != 1 {
		t.Fatalf("expected documents purged, got docs=%d purged=%d", len(out.Documents), out.PurgedDocumentCount)
	}
	if out.AnalysisResult == nil || out.AnalysisResult.MarkdownReport != "## Overview\n\nAll good." {
		t.Fatalf("unexpected analysis result %+v", out.AnalysisResult)
	}

	stored, _ := repo.Get(context.Background(), "case-1")
	if stored.Status != StatusCompleted || len(stored.Documents) != 0 {
		t.Fatalf("stored case not purged: %+v", stored)
	}
}

func TestProcessShortTextIsDocumentProcessingError(t *testing.T) {
	repo := NewMemoryRepo()
	seeded := seedCase(t, repo)
	client := &staticLLM{response: completedReply(t, "unused")}
	p := NewProcessor(repo, nil, analysis.NewInvoker(client))

	out, err := p.Process(context.Background(), "case-1", []extract.File{
		extract.BytesFile("notes.txt", "text/plain", []byte("too short.")),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != StatusDocumentProcessingError {
		t.Fatalf("expected document_processing_error, got %q", out.Status)
	}
	if out.AnalysisResult != nil {
		t.Fatalf("expected no analysis result, got %+v", out.AnalysisResult)
	}
	if len(out.Documents) != len(seeded.Documents) {
		t.Fatalf("documents should be kept on input faults")
	}
	if out.ProcessingError == "" {
		t.Fatalf("expected processing error message")
	}
	if client.callCount() != 0 {
		t.Fatalf("analysis must not run for empty documents")
	}
}

func TestProcessDetectsTruncatedReport(t *testing.T) {
	mem := NewMemoryRepo()
	repo := &truncatingRepo{Repo: mem, limit: 40000}
	seedCase(t, repo)
	report := strings.Repeat("é", 50000)
	client := &staticLLM{response: completedReply(t, report)}
	p := NewProcessor(repo, nil, analysis.NewInvoker(client))

	out, err := p.Process(context.Background(), "case-1", []extract.File{
		extract.BytesFile("notes.txt", "text/plain", longText()),
	})
	var trunc *StorageTruncationError
	if !errors.As(err, &trunc) {
		t.Fatalf("expected StorageTruncationError, got %v", err)
	}
	if trunc.Expected != 50000 || trunc.Stored != 40000 {
		t.Fatalf("unexpected lengths %+v", trunc)
	}
	if out.Status != StatusCompleted {
		t.Fatalf("status should stay completed, got %q", out.Status)
	}
	if len(out.Documents) != 0 {
		t.Fatalf("documents should still be purged")
	}
}

func TestProcessAnalysisFailureKeepsDocuments(t *testing.T) {
	repo := NewMemoryRepo()
	seedCase(t, repo)
	client := &staticLLM{err: errors.New("http status 400: bad request")}
	p := NewProcessor(repo, nil, analysis.NewInvoker(client))

	out, err := p.Process(context.Background(), "case-1", []extract.File{
		extract.BytesFile("notes.txt", "text/plain", longText()),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != StatusError {
		t.Fatalf("expected error status, got %q", out.Status)
	}
	if out.AnalysisResult == nil || out.AnalysisResult.Status != analysis.StatusFailed {
		t.Fatalf("expected failed analysis result, got %+v", out.AnalysisResult)
	}
	if !strings.Contains(out.AnalysisResult.ErrorMessage, "bad request") {
		t.Fatalf("unexpected error message %q", out.AnalysisResult.ErrorMessage)
	}
	if len(out.Documents) != 1 {
		t.Fatalf("documents must survive a failed attempt")
	}
}

func TestProcessUnsupportedFileIsDocumentProcessingError(t *testing.T) {
	repo := NewMemoryRepo()
	seedCase(t, repo)
	p := NewProcessor(repo, nil, analysis.NewInvoker(&staticLLM{}))

	out, err := p.Process(context.Background(), "case-1", []extract.File{
		extract.BytesFile("scan.png", "image/png", []byte{0x89, 'P', 'N', 'G'}),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != StatusDocumentProcessingError {
		t.Fatalf("expected document_processing_error, got %q", out.Status)
	}
	if !strings.Contains(out.ProcessingError, "scan.png") {
		t.Fatalf("expected file name in message, got %q", out.ProcessingError)
	}
}

func TestProcessLoadFailureBecomesError(t *testing.T) {
	repo := NewMemoryRepo()
	seedCase(t, repo)
	p := NewProcessor(repo, nil, analysis.NewInvoker(&staticLLM{}))

	broken := extract.File{
		Name:     "notes.txt",
		MimeType: "text/plain",
		Load: func(context.Context) ([]byte, error) {
			return nil, errors.New("bucket unreachable")
		},
	}
	out, err := p.Process(context.Background(), "case-1", []extract.File{broken})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != StatusError {
		t.Fatalf("expected error status, got %q", out.Status)
	}
	if out.AnalysisResult == nil || !strings.Contains(out.AnalysisResult.ErrorMessage, "bucket unreachable") {
		t.Fatalf("unexpected result %+v", out.AnalysisResult)
	}
}

func TestProcessPanicEndsInError(t *testing.T) {
	repo := &panicOnResultRepo{Repo: NewMemoryRepo()}
	seedCase(t, repo)
	client := &staticLLM{response: completedReply(t, "## Overview\n\nfine")}
	p := NewProcessor(repo, nil, analysis.NewInvoker(client))

	out, err := p.Process(context.Background(), "case-1", []extract.File{
		extract.BytesFile("notes.txt", "text/plain", longText()),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != StatusError {
		t.Fatalf("expected error status after panic, got %q", out.Status)
	}
	if out.AnalysisResult == nil || !strings.Contains(out.AnalysisResult.ErrorMessage, "write exploded") {
		t.Fatalf("unexpected result %+v", out.AnalysisResult)
	}
}

func TestProcessRejectsEmptyFileList(t *testing.T) {
	repo := NewMemoryRepo()
	seedCase(t, repo)
	p := NewProcessor(repo, nil, analysis.NewInvoker(&staticLLM{}))

	if _, err := p.Process(context.Background(), "case-1", nil); !errors.Is(err, ErrNoFiles) {
		t.Fatalf("expected ErrNoFiles, got %v", err)
	}
	stored, _ := repo.Get(context.Background(), "case-1")
	if stored.Status != StatusDraft {
		t.Fatalf("status should be untouched, got %q", stored.Status)
	}
}

func TestProcessBusyCase(t *testing.T) {
	repo := NewMemoryRepo()
	seedCase(t, repo)
	p := NewProcessor(repo, nil, analysis.NewInvoker(&staticLLM{}))

	release, err := p.Lease.Acquire(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	_, err = p.Process(context.Background(), "case-1", []extract.File{
		extract.BytesFile("notes.txt", "text/plain", longText()),
	})
	if !errors.Is(err, ErrCaseBusy) {
		t.Fatalf("expected ErrCaseBusy, got %v", err)
	}
}

func TestProcessRejectsStaleProcessingCase(t *testing.T) {
	repo := NewMemoryRepo()
	seedCase(t, repo)
	processing := StatusProcessing
	if _, err := repo.Update(context.Background(), "case-1", Patch{Status: &processing}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	p := NewProcessor(repo, nil, analysis.NewInvoker(&staticLLM{}))

	_, err := p.Process(context.Background(), "case-1", []extract.File{
		extract.BytesFile("notes.txt", "text/plain", longText()),
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestReprocessClearsPreviousResult(t *testing.T) {
	repo := NewMemoryRepo()
	seedCase(t, repo)
	client := &staticLLM{err: errors.New("http status 400: nope")}
	p := NewProcessor(repo, nil, analysis.NewInvoker(client))
	files := []extract.File{extract.BytesFile("notes.txt", "text/plain", longText())}

	first, err := p.Process(context.Background(), "case-1", files)
	if err != nil || first.Status != StatusError {
		t.Fatalf("first attempt: status=%q err=%v", first.Status, err)
	}

	client.err = nil
	client.response = completedReply(t, "## Overview\n\nsecond try")
	second, err := p.Process(context.Background(), "case-1", files)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if second.Status != StatusCompleted || second.AnalysisResult.ErrorMessage != "" {
		t.Fatalf("unexpected second attempt %+v", second)
	}
}

func TestProcessStoredReadsUploadedDocuments(t *testing.T) {
	ctx := context.Background()
	store := local.New(t.TempDir())
	key, size, mimeType, err := store.Save(ctx, "case-1", "notes.txt", strings.NewReader(string(longText())))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	repo := NewMemoryRepo()
	seedCase(t, repo, Document{ID: "d1", Name: "notes.txt", Kind: mimeType, Size: size, StorageKey: key})
	client := &staticLLM{response: completedReply(t, "## Overview\n\nstored")}
	p := NewProcessor(repo, store, analysis.NewInvoker(client))

	out, err := p.ProcessStored(ctx, "case-1")
	if err != nil {
		t.Fatalf("ProcessStored: %v", err)
	}
	if out.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q", out.Status)
	}
	if _, err := store.Open(ctx, key); err == nil {
		t.Fatalf("expected stored object to be deleted after completion")
	}
}

type recordingLookups struct {
	modules []string
	err     error
}

func (r *recordingLookups) Cleanup(ctx context.Context, moduleType string) error {
	r.modules = append(r.modules, moduleType)
	return r.err
}

func TestProcessCleansLookupsFirst(t *testing.T) {
	repo := NewMemoryRepo()
	seedCase(t, repo)
	lookups := &recordingLookups{err: errors.New("cleanup failed")}
	p := NewProcessor(repo, nil, analysis.NewInvoker(&staticLLM{response: completedReply(t, "## Overview\n\nok")}))
	p.Lookups = lookups

	out, err := p.Process(context.Background(), "case-1", []extract.File{
		extract.BytesFile("notes.txt", "text/plain", longText()),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(lookups.modules) != 1 || lookups.modules[0] != "k12" {
		t.Fatalf("expected cleanup for k12, got %v", lookups.modules)
	}
	if out.Status != StatusCompleted {
		t.Fatalf("cleanup failure must not block processing, got %q", out.Status)
	}
}

func TestProcessStoresServiceErrorVerbatim(t *testing.T) {
	repo := NewMemoryRepo()
	seedCase(t, repo)
	msg := "analysis service http status 400: request rejected\n" + strings.Repeat("field documents[0].content is invalid\n", 20)
	p := NewProcessor(repo, nil, analysis.NewInvoker(&staticLLM{err: errors.New(msg)}))

	out, err := p.Process(context.Background(), "case-1", []extract.File{
		extract.BytesFile("notes.txt", "text/plain", longText()),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	stored, _ := repo.Get(context.Background(), "case-1")
	for _, c := range []AssessmentCase{out, stored} {
		if c.Status != StatusError || c.AnalysisResult == nil {
			t.Fatalf("expected error status with result, got %+v", c)
		}
		if c.AnalysisResult.ErrorMessage != msg {
			t.Fatalf("expected %d-char message stored verbatim, got %d chars", len(msg), len(c.AnalysisResult.ErrorMessage))
		}
	}
}

type orderLog struct {
	mu     sync.Mutex
	events []string
}

func (o *orderLog) add(e string) {
	o.mu.Lock()
	o.events = append(o.events, e)
	o.mu.Unlock()
}

type orderedLease struct{ log *orderLog }

func (l orderedLease) Acquire(ctx context.Context, caseID string) (func(), error) {
	l.log.add("acquire")
	return func() { l.log.add("release") }, nil
}

type orderedRepo struct {
	Repo
	log *orderLog
}

func (r orderedRepo) Get(ctx context.Context, id string) (AssessmentCase, error) {
	r.log.add("get")
	return r.Repo.Get(ctx, id)
}

func TestProcessReadsCaseUnderLease(t *testing.T) {
	mem := NewMemoryRepo()
	seedCase(t, mem)
	log := &orderLog{}
	repo := orderedRepo{Repo: mem, log: log}
	p := NewProcessor(repo, nil, analysis.NewInvoker(&staticLLM{response: completedReply(t, "## Overview\n\nok")}))
	p.Lease = orderedLease{log: log}

	if _, err := p.Process(context.Background(), "case-1", []extract.File{
		extract.BytesFile("notes.txt", "text/plain", longText()),
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(log.events) < 2 || log.events[0] != "acquire" || log.events[1] != "get" {
		t.Fatalf("expected the case to be read after the lease is held, got %v", log.events)
	}
}

// panicOnGetRepo panics on every read, standing in for a verifier fault.
type panicOnGetRepo struct{ Repo }

func (panicOnGetRepo) Get(ctx context.Context, id string) (AssessmentCase, error) {
	panic("read back exploded")
}

func TestProcessPanicAfterResultKeepsCompletion(t *testing.T) {
	repo := NewMemoryRepo()
	seedCase(t, repo)
	p := NewProcessor(repo, nil, analysis.NewInvoker(&staticLLM{response: completedReply(t, "## Overview\n\nAll good.")}))
	p.Verifier = &Verifier{Repo: panicOnGetRepo{Repo: repo}}

	out, err := p.Process(context.Background(), "case-1", []extract.File{
		extract.BytesFile("notes.txt", "text/plain", longText()),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != StatusCompleted {
		t.Fatalf("expected completed to survive a late panic, got %q", out.Status)
	}
	stored, _ := repo.Get(context.Background(), "case-1")
	if stored.Status != StatusCompleted || stored.AnalysisResult == nil || stored.AnalysisResult.ErrorMessage != "" {
		t.Fatalf("stored completion was overwritten: %+v", stored)
	}
}
