package cases

import (
	"context"
	"fmt"
	"unicode/utf8"

	"assessment-backend/internal/shared/metrics"
	"assessment-backend/internal/shared/telemetry"
)

// Verifier re-reads a case after a write and checks the report survived intact.
type Verifier struct {
	Repo Repo
}

// Verify compares the stored report length with expected, in characters.
// A mismatch returns *StorageTruncationError; the case is not modified.
func (v *Verifier) Verify(ctx context.Context, caseID, expected string) error {
	stored, err := v.Repo.Get(ctx, caseID)
	if err != nil {
		return fmt.Errorf("verify case %s: %w", caseID, err)
	}
	want := utf8.RuneCountInString(expected)
	got := 0
	if stored.AnalysisResult != nil {
		got = utf8.RuneCountInString(stored.AnalysisResult.MarkdownReport)
	}
	fields := map[string]any{
		"request_id":      requestIDFromContext(ctx),
		"case_id":         caseID,
		"expected_length": want,
		"stored_length":   got,
	}
	if got != want {
		metrics.IncIntegrityFault()
		telemetry.Error("case.integrity_fault", fields)
		return &StorageTruncationError{CaseID: caseID, Expected: want, Stored: got}
	}
	telemetry.Info("case.report_verified", fields)
	return nil
}
