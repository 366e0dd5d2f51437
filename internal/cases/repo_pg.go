package cases

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"assessment-backend/internal/analysis"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const caseColumns = `id, legacy_id, module_type, subject_name, grade, status, documents, purged_document_count,
       processing_error, analysis_date, analysis_status, analysis_error, markdown_report, created_at, updated_at`

// storedDocument is the JSONB shape of a document; unlike the API shape it keeps the storage key.
type storedDocument struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Kind       string    `json:"kind"`
	Size       int64     `json:"size"`
	UploadDate time.Time `json:"uploadDate"`
	StorageKey string    `json:"storageKey"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new case.
func (r *PGRepo) Create(ctx context.Context, c AssessmentCase) error {
	const query = `
INSERT INTO assessment_cases (
	id, legacy_id, module_type, subject_name, grade, status, documents, purged_document_count,
	processing_error, analysis_date, analysis_status, analysis_error, markdown_report, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	args, err := caseArgs(c)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, args...)
	return err
}

// Get returns a case by ID.
func (r *PGRepo) Get(ctx context.Context, id string) (AssessmentCase, error) {
	query := `SELECT ` + caseColumns + ` FROM assessment_cases WHERE id = $1 LIMIT 1`
	c, err := scanCase(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return AssessmentCase{}, ErrNotFound
	}
	return c, err
}

// Update applies p under a row lock so concurrent patches never interleave.
func (r *PGRepo) Update(ctx context.Context, id string, p Patch) (AssessmentCase, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return AssessmentCase{}, err
	}
	defer tx.Rollback()

	query := `SELECT ` + caseColumns + ` FROM assessment_cases WHERE id = $1 FOR UPDATE`
	c, err := scanCase(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AssessmentCase{}, ErrNotFound
		}
		return AssessmentCase{}, err
	}
	p.apply(&c, time.Now())

	docs, err := marshalDocuments(c.Documents)
	if err != nil {
		return AssessmentCase{}, err
	}
	date, status, errMsg, report := resultColumns(c.AnalysisResult)
	const update = `
UPDATE assessment_cases
SET status = $2, documents = $3, purged_document_count = $4, processing_error = $5,
    analysis_date = $6, analysis_status = $7, analysis_error = $8, markdown_report = $9, updated_at = $10
WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update,
		c.ID,
		string(c.Status),
		docs,
		c.PurgedDocumentCount,
		nullString(c.ProcessingError),
		date,
		status,
		errMsg,
		report,
		c.LastUpdated,
	); err != nil {
		return AssessmentCase{}, err
	}
	if err := tx.Commit(); err != nil {
		return AssessmentCase{}, err
	}
	return c, nil
}

// Delete removes a case.
func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM assessment_cases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns cases of a module, most recently updated first.
func (r *PGRepo) List(ctx context.Context, moduleType string) ([]AssessmentCase, error) {
	query := `SELECT ` + caseColumns + ` FROM assessment_cases
WHERE ($1 = '' OR module_type = $1)
ORDER BY updated_at DESC, id`
	rows, err := r.DB.QueryContext(ctx, query, moduleType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AssessmentCase{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RewriteID moves a legacy case id to its canonical form in place.
func (r *PGRepo) RewriteID(ctx context.Context, oldID, newID string) error {
	const query = `
UPDATE assessment_cases
SET id = $2, legacy_id = $1, updated_at = $3
WHERE id = $1 AND legacy_id IS NULL`
	res, err := r.DB.ExecContext(ctx, query, oldID, newID, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCase(row rowScanner) (AssessmentCase, error) {
	var c AssessmentCase
	var legacyID sql.NullString
	var status string
	var documents []byte
	var processingError sql.NullString
	var analysisDate sql.NullTime
	var analysisStatus sql.NullString
	var analysisError sql.NullString
	var markdownReport sql.NullString
	err := row.Scan(
		&c.ID,
		&legacyID,
		&c.ModuleType,
		&c.SubjectName,
		&c.Grade,
		&status,
		&documents,
		&c.PurgedDocumentCount,
		&processingError,
		&analysisDate,
		&analysisStatus,
		&analysisError,
		&markdownReport,
		&c.CreatedDate,
		&c.LastUpdated,
	)
	if err != nil {
		return AssessmentCase{}, err
	}
	c.Status = ParseStatus(status)
	if legacyID.Valid {
		c.LegacyID = legacyID.String
	}
	if processingError.Valid {
		c.ProcessingError = processingError.String
	}
	c.Documents, err = unmarshalDocuments(documents)
	if err != nil {
		return AssessmentCase{}, fmt.Errorf("case %s documents: %w", c.ID, err)
	}
	if analysisStatus.Valid {
		c.AnalysisResult = &analysis.Result{
			AnalysisDate:   analysisDate.Time,
			Status:         analysis.Status(analysisStatus.String),
			ErrorMessage:   analysisError.String,
			MarkdownReport: markdownReport.String,
		}
	}
	return c, nil
}

func caseArgs(c AssessmentCase) ([]any, error) {
	docs, err := marshalDocuments(c.Documents)
	if err != nil {
		return nil, err
	}
	date, status, errMsg, report := resultColumns(c.AnalysisResult)
	return []any{
		c.ID,
		nullString(c.LegacyID),
		c.ModuleType,
		c.SubjectName,
		c.Grade,
		string(c.Status),
		docs,
		c.PurgedDocumentCount,
		nullString(c.ProcessingError),
		date,
		status,
		errMsg,
		report,
		c.CreatedDate,
		c.LastUpdated,
	}, nil
}

func resultColumns(r *analysis.Result) (sql.NullTime, sql.NullString, sql.NullString, sql.NullString) {
	if r == nil {
		return sql.NullTime{}, sql.NullString{}, sql.NullString{}, sql.NullString{}
	}
	return sql.NullTime{Time: r.AnalysisDate, Valid: !r.AnalysisDate.IsZero()},
		sql.NullString{String: string(r.Status), Valid: true},
		nullString(r.ErrorMessage),
		sql.NullString{String: r.MarkdownReport, Valid: true}
}

func marshalDocuments(docs []Document) ([]byte, error) {
	stored := make([]storedDocument, 0, len(docs))
	for _, d := range docs {
		stored = append(stored, storedDocument(d))
	}
	return json.Marshal(stored)
}

func unmarshalDocuments(raw []byte) ([]Document, error) {
	if len(raw) == 0 {
		return []Document{}, nil
	}
	var stored []storedDocument
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(stored))
	for _, d := range stored {
		docs = append(docs, Document(d))
	}
	return docs, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
