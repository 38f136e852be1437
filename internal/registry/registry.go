// Package registry resolves node type names to canonical class identifiers.
package registry

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/graphctl/internal/protocol"
)

// Separator marks a fully qualified class identifier.
const Separator = "::"

var (
	ErrUnknownNodeType = errors.New("registry: unknown node type")
	ErrInvalidTable    = errors.New("registry: invalid alias table")
)

// Table maps display names to canonical class identifiers.
type Table map[string]string

func (t Table) Clone() Table {
	return maps.Clone(t)
}

// Validate checks that every alias is named and every target is qualified.
func (t Table) Validate() error {
	for alias, class := range t {
		if strings.TrimSpace(alias) == "" {
			return fmt.Errorf("%w: empty alias", ErrInvalidTable)
		}
		if !strings.Contains(class, Separator) {
			return fmt.Errorf("%w: alias %q maps to unqualified class %q", ErrInvalidTable, alias, class)
		}
	}
	return nil
}

// Source produces an alias table.
type Source interface {
	Load() (Table, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (Table, error)

func (f SourceFunc) Load() (Table, error) { return f() }

// BuiltinSource serves the compiled-in table.
var BuiltinSource Source = SourceFunc(func() (Table, error) { return Builtin(), nil })

// Alias is one table entry.
type Alias struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

// Registry holds the active alias table. The table is loaded from its source
// on first use and may be swapped or reloaded afterwards.
type Registry struct {
	source Source

	once    sync.Once
	mu      sync.RWMutex
	table   Table
	loadErr error
}

// New creates a registry backed by src. A nil src uses the builtin table.
func New(src Source) *Registry {
	if src == nil {
		src = BuiltinSource
	}
	return &Registry{source: src}
}

func (r *Registry) ensureLoaded() {
	r.once.Do(func() {
		table, err := r.source.Load()
		if err == nil {
			err = table.Validate()
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.loadErr = err
			r.table = Builtin()
			return
		}
		r.table = table.Clone()
	})
}

// LoadError reports a failure from the initial source load. The builtin table
// is active in that case.
func (r *Registry) LoadError() error {
	r.ensureLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadErr
}

// Resolve maps name to a canonical class: exact alias match, then pass-through
// of already qualified names, otherwise a not-found error.
func (r *Registry) Resolve(name string) (string, error) {
	r.ensureLoaded()
	r.mu.RLock()
	class, ok := r.table[name]
	r.mu.RUnlock()
	if ok {
		return class, nil
	}
	if strings.Contains(name, Separator) {
		return name, nil
	}
	return "", &protocol.Error{
		Kind: protocol.KindNotFound,
		Message: fmt.Sprintf(
			"Unknown node type '%s'. Use a display name from list_node_classes or a fully qualified class name (Namespace::Name)",
			name,
		),
		Err: ErrUnknownNodeType,
	}
}

// Swap replaces the active table.
func (r *Registry) Swap(table Table) error {
	if err := table.Validate(); err != nil {
		return err
	}
	r.once.Do(func() {})
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = table.Clone()
	r.loadErr = nil
	return nil
}

// Reload re-reads the source and swaps the result in. The previous table
// stays active on failure.
func (r *Registry) Reload() error {
	table, err := r.source.Load()
	if err != nil {
		return err
	}
	return r.Swap(table)
}

// Len returns the number of aliases.
func (r *Registry) Len() int {
	r.ensureLoaded()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table)
}

// Aliases returns entries whose name or class contains filter (case-insensitive),
// ordered by name.
func (r *Registry) Aliases(filter string) []Alias {
	r.ensureLoaded()
	filter = strings.ToLower(strings.TrimSpace(filter))

	r.mu.RLock()
	out := make([]Alias, 0, len(r.table))
	for name, class := range r.table {
		if filter != "" &&
			!strings.Contains(strings.ToLower(name), filter) &&
			!strings.Contains(strings.ToLower(class), filter) {
			continue
		}
		out = append(out, Alias{Name: name, Class: class})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
