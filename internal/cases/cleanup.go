package cases

import (
	"context"
	"fmt"

	"assessment-backend/internal/shared/metrics"
	"assessment-backend/internal/shared/storage/object"
	"assessment-backend/internal/shared/telemetry"
)

// Cleaner purges raw documents from a completed case.
type Cleaner struct {
	Repo  Repo
	Store object.ObjectStore
}

// Purge empties the document list and counts what it removed. Stored objects
// are deleted best effort; a failed delete is logged and does not block the
// metadata purge. Purging an already empty case is a no-op.
func (cl *Cleaner) Purge(ctx context.Context, c AssessmentCase) (AssessmentCase, error) {
	if len(c.Documents) == 0 {
		return c, nil
	}
	if cl.Store != nil {
		for _, d := range c.Documents {
			if d.StorageKey == "" {
				continue
			}
			if err := cl.Store.Delete(ctx, d.StorageKey); err != nil {
				telemetry.Warn("case.document_delete_failed", map[string]any{
					"request_id":  requestIDFromContext(ctx),
					"case_id":     c.ID,
					"document_id": d.ID,
					"err":         err,
				})
			}
		}
	}

	purged := len(c.Documents)
	empty := []Document{}
	count := c.PurgedDocumentCount + purged
	updated, err := cl.Repo.Update(ctx, c.ID, Patch{Documents: &empty, PurgedDocumentCount: &count})
	if err != nil {
		return c, fmt.Errorf("purge documents: %w", err)
	}
	metrics.AddDocumentsPurged(purged)
	telemetry.Info("case.documents_purged", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"case_id":    c.ID,
		"purged":     purged,
	})
	return updated, nil
}
