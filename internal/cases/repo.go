package cases

import "context"

// Repo defines persistence operations for cases.
type Repo interface {
	Create(ctx context.Context, c AssessmentCase) error
	Get(ctx context.Context, id string) (AssessmentCase, error)
	Update(ctx context.Context, id string, p Patch) (AssessmentCase, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, moduleType string) ([]AssessmentCase, error)
	// RewriteID replaces a legacy id in place and records it as LegacyID.
	RewriteID(ctx context.Context, oldID, newID string) error
}
