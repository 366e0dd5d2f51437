package cases

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"assessment-backend/internal/analysis"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusProcessing, true},
		{StatusError, StatusProcessing, true},
		{StatusCompleted, StatusProcessing, true},
		{StatusDocumentProcessingError, StatusProcessing, true},
		{StatusProcessing, StatusProcessing, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusDocumentProcessingError, true},
		{StatusDraft, StatusCompleted, false},
		{StatusCompleted, StatusDraft, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestParseStatusUnknownIsError(t *testing.T) {
	if got := ParseStatus(" Completed "); got != StatusCompleted {
		t.Fatalf("expected completed, got %q", got)
	}
	if got := ParseStatus("archived"); got != StatusError {
		t.Fatalf("expected error for unknown status, got %q", got)
	}
}

func TestStatusForResult(t *testing.T) {
	if statusFor(analysis.Result{Status: analysis.StatusCompletedNoFindings}) != StatusCompletedNoFindings {
		t.Fatalf("no findings should map through")
	}
	if statusFor(analysis.Result{Status: analysis.StatusFailed}) != StatusError {
		t.Fatalf("failed should map to error")
	}
}

func TestMemoryRepoIsolatesCopies(t *testing.T) {
	repo := NewMemoryRepo()
	c := AssessmentCase{ID: "c1", ModuleType: "k12", Status: StatusDraft, Documents: []Document{{ID: "d1"}}}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	c.Documents[0].ID = "mutated"

	got, _ := repo.Get(context.Background(), "c1")
	if got.Documents[0].ID != "d1" {
		t.Fatalf("repo shares memory with caller")
	}
	got.Documents[0].ID = "mutated"
	again, _ := repo.Get(context.Background(), "c1")
	if again.Documents[0].ID != "d1" {
		t.Fatalf("repo shares memory with reader")
	}
}

func TestMemoryRepoListOrder(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	for _, id := range []string{"a", "b", "c"} {
		if err := repo.Create(context.Background(), AssessmentCase{ID: id, ModuleType: "k12"}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Create(context.Background(), AssessmentCase{ID: "z", ModuleType: "tutoring"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	draft := StatusDraft
	for _, id := range []string{"b", "a"} {
		if _, err := repo.Update(context.Background(), id, Patch{Status: &draft}); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	list, err := repo.List(context.Background(), "k12")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Fatalf("unexpected order %v", ids)
	}
	all, _ := repo.List(context.Background(), "")
	if len(all) != 4 {
		t.Fatalf("expected all cases, got %d", len(all))
	}
}

func TestMemoryLeaseExclusive(t *testing.T) {
	lease := NewMemoryLease()
	release, err := lease.Acquire(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := lease.Acquire(context.Background(), "c1"); !errors.Is(err, ErrCaseBusy) {
		t.Fatalf("expected ErrCaseBusy, got %v", err)
	}
	if _, err := lease.Acquire(context.Background(), "c2"); err != nil {
		t.Fatalf("other cases must not be blocked: %v", err)
	}
	release()
	release()
	again, err := lease.Acquire(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again()
}

func TestVerifierMatchesRuneCount(t *testing.T) {
	repo := NewMemoryRepo()
	report := strings.Repeat("ü", 300)
	if err := repo.Create(context.Background(), AssessmentCase{
		ID:             "c1",
		Status:         StatusCompleted,
		AnalysisResult: &analysis.Result{Status: analysis.StatusCompleted, MarkdownReport: report},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	v := &Verifier{Repo: repo}
	if err := v.Verify(context.Background(), "c1", report); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	err := v.Verify(context.Background(), "c1", report+"!")
	var trunc *StorageTruncationError
	if !errors.As(err, &trunc) || trunc.Expected != 301 || trunc.Stored != 300 {
		t.Fatalf("expected truncation error, got %v", err)
	}
}

type failingDeleteStore struct {
	mu      sync.Mutex
	deletes []string
}

func (s *failingDeleteStore) Save(ctx context.Context, namespace, fileName string, r io.Reader) (string, int64, string, error) {
	return "", 0, "", errors.New("read only")
}

func (s *failingDeleteStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, errors.New("bucket offline")
}

func (s *failingDeleteStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deletes = append(s.deletes, key)
	s.mu.Unlock()
	return errors.New("bucket offline")
}

func TestCleanerPurgesEvenWhenDeleteFails(t *testing.T) {
	repo := NewMemoryRepo()
	if err := repo.Create(context.Background(), AssessmentCase{
		ID:                  "c1",
		Status:              StatusCompleted,
		PurgedDocumentCount: 1,
		Documents:           []Document{{ID: "d1", StorageKey: "k1"}, {ID: "d2", StorageKey: "k2"}},
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	store := &failingDeleteStore{}
	cl := &Cleaner{Repo: repo, Store: store}

	c, _ := repo.Get(context.Background(), "c1")
	out, err := cl.Purge(context.Background(), c)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if len(out.Documents) != 0 || out.PurgedDocumentCount != 3 {
		t.Fatalf("unexpected purge result docs=%d purged=%d", len(out.Documents), out.PurgedDocumentCount)
	}
	if len(store.deletes) != 2 {
		t.Fatalf("expected delete attempts for both keys, got %v", store.deletes)
	}

	again, err := cl.Purge(context.Background(), out)
	if err != nil || again.PurgedDocumentCount != 3 {
		t.Fatalf("purging an empty case must be a no-op: %+v %v", again, err)
	}
}

func TestWatcherPushesUntilCancelled(t *testing.T) {
	repo := NewMemoryRepo()
	if err := repo.Create(context.Background(), AssessmentCase{ID: "c1", ModuleType: "k12"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	w := &Watcher{Repo: repo, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Subscribe(ctx, "k12", func(list []AssessmentCase) {
			calls++
			if len(list) != 1 {
				t.Errorf("expected one case, got %d", len(list))
			}
			if calls == 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatalf("watcher did not stop after cancel")
	}
	if calls < 3 {
		t.Fatalf("expected at least 3 pushes, got %d", calls)
	}
}
