package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Module is one assessment module a case can belong to.
type Module struct {
	Type             string   `yaml:"type" json:"type"`
	Name             string   `yaml:"name" json:"name"`
	Description      string   `yaml:"description" json:"description"`
	LookupVocabulary []string `yaml:"lookupVocabulary" json:"lookupVocabulary"`
}

type file struct {
	Modules []Module `yaml:"modules"`
}

// Catalog indexes modules by type.
type Catalog struct {
	modules map[string]Module
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read module catalog: %w", err)
		}
		data = raw
	}
	return Parse(data)
}

// Parse decodes catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse module catalog: %w", err)
	}
	if len(f.Modules) == 0 {
		return nil, errors.New("module catalog is empty")
	}
	c := &Catalog{modules: make(map[string]Module, len(f.Modules))}
	for _, m := range f.Modules {
		key := Normalize(m.Type)
		if key == "" {
			return nil, errors.New("module catalog entry missing type")
		}
		if _, dup := c.modules[key]; dup {
			return nil, fmt.Errorf("module catalog has duplicate type %q", key)
		}
		m.Type = key
		for i, v := range m.LookupVocabulary {
			m.LookupVocabulary[i] = NormalizeKey(v)
		}
		c.modules[key] = m
	}
	return c, nil
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the module for type.
func (c *Catalog) Get(moduleType string) (Module, bool) {
	m, ok := c.modules[Normalize(moduleType)]
	return m, ok
}

// Vocabulary returns the lookup vocabulary for a module, or nil.
func (c *Catalog) Vocabulary(moduleType string) []string {
	m, ok := c.Get(moduleType)
	if !ok {
		return nil
	}
	return append([]string(nil), m.LookupVocabulary...)
}

// Modules lists modules sorted by type.
func (c *Catalog) Modules() []Module {
	out := make([]Module, 0, len(c.modules))
	for _, m := range c.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Normalize lower-cases and trims a module type.
func Normalize(moduleType string) string {
	return strings.ToLower(strings.TrimSpace(moduleType))
}

// NormalizeKey maps "Memory Deficit" and "memory-deficit" to "memory_deficit".
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	key = strings.NewReplacer("-", " ", "_", " ").Replace(key)
	return strings.Join(strings.Fields(key), "_")
}
