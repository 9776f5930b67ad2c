// ABOUTME: Read-only catalog of personas and templates, loaded once from YAML documents on disk.
// ABOUTME: Mirrors the teacher's config-from-directory loading pattern; lookups never mutate state.
package persona

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store is a process-lived, read-only lookup of persona_id -> Persona and
// template_id -> Template. It is built once at startup (or test setup) and
// never mutated afterward; concurrent reads are always safe.
type Store struct {
	personas  map[string]Persona
	templates map[string]Template
}

// NewStore builds a Store from already-parsed personas and templates. Used
// directly by tests and by callers that assemble documents themselves rather
// than reading a directory tree.
func NewStore(personas []Persona, templates []Template) *Store {
	s := &Store{
		personas:  make(map[string]Persona, len(personas)),
		templates: make(map[string]Template, len(templates)),
	}
	for _, p := range personas {
		s.personas[p.ID] = p
	}
	for _, t := range templates {
		s.templates[t.ID] = t
	}
	return s
}

// LoadStore reads persona documents from <dir>/personas/*.yaml and template
// documents from <dir>/templates/*.yaml. Missing subdirectories are treated
// as empty, not an error, so a store can be built incrementally.
func LoadStore(dir string) (*Store, error) {
	personas, err := loadYAMLDir[Persona](filepath.Join(dir, "personas"))
	if err != nil {
		return nil, fmt.Errorf("load personas: %w", err)
	}
	templates, err := loadYAMLDir[Template](filepath.Join(dir, "templates"))
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	log.Printf("component=persona_store action=load personas=%d templates=%d dir=%s", len(personas), len(templates), dir)
	return NewStore(personas, templates), nil
}

func loadYAMLDir[T any](dir string) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]T, 0, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var v T
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Persona looks up a persona by ID. ok is false when no such persona exists.
func (s *Store) Persona(id string) (Persona, bool) {
	p, ok := s.personas[id]
	return p, ok
}

// Template looks up a template by ID. ok is false when no such template exists.
func (s *Store) Template(id string) (Template, bool) {
	t, ok := s.templates[id]
	return t, ok
}

// PersonaTemplate resolves a persona's referenced template in one call.
func (s *Store) PersonaTemplate(p Persona) (Template, bool) {
	return s.Template(p.TemplateID)
}

// Personas returns all known personas, sorted by ID for stable listing order.
func (s *Store) Personas() []Persona {
	out := make([]Persona, 0, len(s.personas))
	for _, p := range s.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Templates returns all known templates, sorted by ID for stable listing order.
func (s *Store) Templates() []Template {
	out := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
