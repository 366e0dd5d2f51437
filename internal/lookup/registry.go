package lookup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"assessment-backend/internal/catalog"
	"assessment-backend/internal/shared/metrics"
	"assessment-backend/internal/shared/telemetry"
)

// VocabularySource supplies the lookup vocabulary of a module.
type VocabularySource interface {
	Vocabulary(moduleType string) []string
}

// Registry holds imported lookup tables per module.
type Registry struct {
	vocab VocabularySource

	mu     sync.RWMutex
	tables map[string]map[string]Table
}

// NewRegistry creates an empty registry.
func NewRegistry(vocab VocabularySource) *Registry {
	return &Registry{vocab: vocab, tables: map[string]map[string]Table{}}
}

// Import extracts a table from text and stores it under name when it
// validates against the module vocabulary.
func (r *Registry) Import(moduleType, name, text string) (Table, bool) {
	module := catalog.Normalize(moduleType)
	t := ExtractValidated(text, r.vocab.Vocabulary(module))
	if t == nil {
		metrics.IncLookupRejected()
		telemetry.Warn("lookup.import_rejected", map[string]any{"module_type": module, "name": name})
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tables[module] == nil {
		r.tables[module] = map[string]Table{}
	}
	r.tables[module][name] = t
	return t, true
}

// Get returns a stored table.
func (r *Registry) Get(moduleType, name string) (Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[catalog.Normalize(moduleType)][name]
	return t, ok
}

// Names lists the stored table names for a module.
func (r *Registry) Names(moduleType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name := range r.tables[catalog.Normalize(moduleType)] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Cleanup drops tables of a module that no longer validate against its
// current vocabulary.
func (r *Registry) Cleanup(ctx context.Context, moduleType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	module := catalog.Normalize(moduleType)
	vocab := r.vocab.Vocabulary(module)

	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for name, t := range r.tables[module] {
		if !Validate(t, vocab) {
			delete(r.tables[module], name)
			removed++
		}
	}
	if removed > 0 {
		telemetry.Info("lookup.cleanup", map[string]any{"module_type": module, "removed": removed})
	}
	return nil
}

// LoadDir imports every *.txt and *.md file under dir/<moduleType>/.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read lookup dir: %w", err)
	}
	imported := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		module := e.Name()
		files, err := os.ReadDir(filepath.Join(dir, module))
		if err != nil {
			return imported, fmt.Errorf("read lookup dir %s: %w", module, err)
		}
		for _, f := range files {
			ext := strings.ToLower(filepath.Ext(f.Name()))
			if f.IsDir() || (ext != ".txt" && ext != ".md") {
				continue
			}
			raw, err := os.ReadFile(filepath.Join(dir, module, f.Name()))
			if err != nil {
				return imported, fmt.Errorf("read lookup file %s: %w", f.Name(), err)
			}
			if _, ok := r.Import(module, strings.TrimSuffix(f.Name(), filepath.Ext(f.Name())), string(raw)); ok {
				imported++
			}
		}
	}
	return imported, nil
}
