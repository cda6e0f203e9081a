package driver

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Factory constructs a fresh, uninitialised driver.
type Factory func() Driver

// Entry describes a registered driver.
type Entry struct {
	Name        string
	Description string
	Factory     Factory
}

// Registry maps short driver names to factories. Lookups are
// case-insensitive. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry drivers register into.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a driver to the process-wide registry. It panics on a
// duplicate name, since registration happens from init.
func Register(name, description string, factory Factory) {
	if err := defaultRegistry.Register(name, description, factory); err != nil {
		panic(err)
	}
}

// Register adds a driver factory under name.
func (r *Registry) Register(name, description string, factory Factory) error {
	key := normalize(name)
	if key == "" {
		return fmt.Errorf("driver name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("driver %q: nil factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("driver %q already registered", key)
	}
	r.entries[key] = Entry{Name: key, Description: description, Factory: factory}
	return nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns every entry sorted by name.
func (r *Registry) Describe() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup resolves name case-insensitively. Unknown names produce an
// *UnknownNameError listing every valid name.
func (r *Registry) Lookup(name string) (Entry, error) {
	key := normalize(name)
	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if ok {
		return entry, nil
	}
	names := r.Names()
	return Entry{}, &UnknownNameError{
		Name:        name,
		Valid:       names,
		Suggestions: suggest(key, names),
	}
}

// New resolves name and constructs a driver from its factory.
func (r *Registry) New(name string) (Driver, error) {
	entry, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return entry.Factory(), nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// suggest ranks registered names that are close to the requested one.
func suggest(name string, names []string) []string {
	if name == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	ranks := fuzzy.RankFindFold(name, names)
	sort.Sort(ranks)
	for _, rank := range ranks {
		if _, ok := seen[rank.Target]; ok {
			continue
		}
		seen[rank.Target] = struct{}{}
		out = append(out, rank.Target)
	}
	for _, candidate := range names {
		if _, ok := seen[candidate]; ok {
			continue
		}
		if fuzzy.LevenshteinDistance(name, candidate) <= 2 {
			seen[candidate] = struct{}{}
			out = append(out, candidate)
		}
	}
	return out
}
