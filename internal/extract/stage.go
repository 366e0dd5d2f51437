package extract

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"assessment-backend/internal/shared/storage/object"
)

// DefaultMinChars is the aggregate text length below which documents count as empty.
const DefaultMinChars = 50

const defaultConcurrency = 4

// File is one uploaded document awaiting extraction.
type File struct {
	Name     string
	MimeType string
	Load     func(ctx context.Context) ([]byte, error)
}

// DocumentText is the text extracted from one file.
type DocumentText struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// BytesFile wraps an in-memory payload.
func BytesFile(name, mimeType string, data []byte) File {
	return File{
		Name:     name,
		MimeType: mimeType,
		Load: func(context.Context) ([]byte, error) {
			return data, nil
		},
	}
}

// StoredFile reads the payload from an object store on demand.
func StoredFile(store object.ObjectStore, key, name, mimeType string) File {
	return File{
		Name:     name,
		MimeType: mimeType,
		Load: func(ctx context.Context) ([]byte, error) {
			body, err := store.Open(ctx, key)
			if err != nil {
				return nil, err
			}
			defer body.Close()
			return io.ReadAll(body)
		},
	}
}

// Stage turns uploaded files into document texts.
type Stage struct {
	MinChars    int
	Concurrency int
}

// NewStage returns a stage with the given threshold; non-positive means DefaultMinChars.
func NewStage(minChars int) *Stage {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	return &Stage{MinChars: minChars, Concurrency: defaultConcurrency}
}

// Extract loads and extracts every file. Any per-file failure aborts the
// whole stage with an error naming the file; results keep input order.
func (s *Stage) Extract(ctx context.Context, files []File) ([]DocumentText, error) {
	out := make([]DocumentText, len(files))
	g, gctx := errgroup.WithContext(ctx)
	limit := s.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	g.SetLimit(limit)

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			text, err := extractOne(gctx, f)
			if err != nil {
				return err
			}
			out[i] = DocumentText{Filename: f.Name, Content: text}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, d := range out {
		total += utf8.RuneCountInString(strings.TrimSpace(d.Content))
	}
	min := s.MinChars
	if min <= 0 {
		min = DefaultMinChars
	}
	if total < min {
		return nil, &EmptyDocumentError{Chars: total, Min: min}
	}
	return out, nil
}

func extractOne(ctx context.Context, f File) (string, error) {
	if f.Load == nil {
		return "", &LoadError{Filename: f.Name, Err: fmt.Errorf("no loader")}
	}
	data, err := f.Load(ctx)
	if err != nil {
		return "", &LoadError{Filename: f.Name, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return "", &LoadError{Filename: f.Name, Err: err}
	}
	text, err := TextFromBytes(ctx, data, f.MimeType, f.Name)
	if err != nil {
		return "", &FileError{Filename: f.Name, Err: err}
	}
	return text, nil
}
