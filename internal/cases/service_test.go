package cases

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"assessment-backend/internal/shared/storage/object"
	local "assessment-backend/internal/shared/storage/object/local"
)

// slowStore delays Save so concurrent uploads overlap.
type slowStore struct {
	object.ObjectStore
	delay time.Duration
}

func (s slowStore) Save(ctx context.Context, namespace, fileName string, r io.Reader) (string, int64, string, error) {
	time.Sleep(s.delay)
	return s.ObjectStore.Save(ctx, namespace, fileName, r)
}

func TestUploadConcurrentKeepsEveryDocument(t *testing.T) {
	repo := NewMemoryRepo()
	id := uuid.NewString()
	if err := repo.Create(context.Background(), AssessmentCase{ID: id, ModuleType: "k12", Status: StatusDraft}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	svc := &Service{Repo: repo, Store: slowStore{ObjectStore: local.New(t.TempDir()), delay: 20 * time.Millisecond}}

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("notes-%d.txt", i)
			if _, err := svc.Upload(context.Background(), id, name, strings.NewReader("observation "+name)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Upload: %v", err)
	}

	c, err := repo.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(c.Documents) != n {
		t.Fatalf("expected %d documents attached, got %d", n, len(c.Documents))
	}
	seen := map[string]bool{}
	for _, d := range c.Documents {
		seen[d.Name] = true
	}
	if len(seen) != n {
		t.Fatalf("expected distinct documents, got %+v", c.Documents)
	}
}

func TestPatchAppendDocumentsUsesCurrentRow(t *testing.T) {
	c := AssessmentCase{Documents: []Document{{ID: "d1"}}}
	Patch{AppendDocuments: []Document{{ID: "d2"}}}.apply(&c, time.Now())
	if len(c.Documents) != 2 || c.Documents[0].ID != "d1" || c.Documents[1].ID != "d2" {
		t.Fatalf("unexpected documents %+v", c.Documents)
	}
}
