package prompts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// TemplateRef names one template inside a category.
type TemplateRef struct {
	Category string `json:"category"`
	Name     string `json:"name"`
}

// Library is a JSON-file-backed collection of prompt templates grouped by
// category. The backing file is created and seeded with defaults on first
// use; every mutation is persisted before it becomes visible to readers.
type Library struct {
	mu        sync.RWMutex
	path      string
	templates map[string]map[string]string
	logger    *slog.Logger
	rng       *rand.Rand
}

// NewLibrary opens the template library at path, creating and seeding it if
// the file does not exist yet.
func NewLibrary(path string, log *slog.Logger) (*Library, error) {
	if path == "" {
		return nil, fmt.Errorf("template library path is empty")
	}
	if log == nil {
		log = slog.Default()
	}

	lib := &Library{
		path:   path,
		logger: log.With(slog.String("component", "prompt_library")),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var templates map[string]map[string]string
		if err := json.Unmarshal(data, &templates); err != nil {
			return nil, fmt.Errorf("decoding template library %s: %w", path, err)
		}
		lib.templates = templates
	case os.IsNotExist(err):
		lib.templates = defaultTemplates()
		if err := saveTemplates(path, lib.templates); err != nil {
			return nil, fmt.Errorf("seeding template library: %w", err)
		}
		lib.logger.Info("seeded default prompt templates",
			slog.String("path", path),
			slog.Int("categories", len(lib.templates)))
	default:
		return nil, fmt.Errorf("reading template library %s: %w", path, err)
	}

	return lib, nil
}

// List returns a copy of every template grouped by category.
func (l *Library) List() map[string]map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneTemplates(l.templates)
}

// Categories returns the category names in sorted order.
func (l *Library) Categories() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Category returns a copy of all templates in one category.
func (l *Library) Category(category string) (map[string]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	templates, ok := l.templates[category]
	if !ok {
		return nil, fmt.Errorf("%w: category %q", ErrTemplateNotFound, category)
	}
	out := make(map[string]string, len(templates))
	for name, text := range templates {
		out[name] = text
	}
	return out, nil
}

// Get returns the template text for category/name.
func (l *Library) Get(category, name string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	text, ok := l.templates[category][name]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, category, name)
	}
	return text, nil
}

// Add stores a new template and persists the library. Adding over an
// existing category/name pair is rejected.
func (l *Library) Add(category, name, text string) error {
	category = strings.TrimSpace(category)
	name = strings.TrimSpace(name)
	text = strings.TrimSpace(text)
	if category == "" || name == "" || text == "" {
		return fmt.Errorf("%w: category, name, and text must be non-empty", ErrInvalidTemplate)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.templates[category][name]; ok {
		return fmt.Errorf("%w: %s/%s", ErrTemplateExists, category, name)
	}

	next := cloneTemplates(l.templates)
	if next[category] == nil {
		next[category] = make(map[string]string)
	}
	next[category][name] = text
	if err := saveTemplates(l.path, next); err != nil {
		return err
	}
	l.templates = next

	l.logger.Debug("template added",
		slog.String("category", category),
		slog.String("name", name))
	return nil
}

// Remove deletes a template and persists the library. Categories left empty
// by the removal are dropped.
func (l *Library) Remove(category, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.templates[category][name]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrTemplateNotFound, category, name)
	}

	next := cloneTemplates(l.templates)
	delete(next[category], name)
	if len(next[category]) == 0 {
		delete(next, category)
	}
	if err := saveTemplates(l.path, next); err != nil {
		return err
	}
	l.templates = next

	l.logger.Debug("template removed",
		slog.String("category", category),
		slog.String("name", name))
	return nil
}

// Search returns every template whose name or text contains query,
// case-insensitively, grouped by category. Categories with no matches are
// omitted.
func (l *Library) Search(query string) map[string]map[string]string {
	needle := strings.ToLower(query)

	l.mu.RLock()
	defer l.mu.RUnlock()

	results := make(map[string]map[string]string)
	for category, templates := range l.templates {
		for name, text := range templates {
			if !strings.Contains(strings.ToLower(name), needle) &&
				!strings.Contains(strings.ToLower(text), needle) {
				continue
			}
			if results[category] == nil {
				results[category] = make(map[string]string)
			}
			results[category][name] = text
		}
	}
	return results
}

// Combine resolves the referenced templates in order and joins them into a
// single prompt. References that do not resolve are skipped; when nothing
// resolves a generic prompt is returned.
func (l *Library) Combine(refs ...TemplateRef) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		if text, ok := l.templates[ref.Category][ref.Name]; ok {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "A musical composition"
	}
	return strings.Join(parts, ". ") + "."
}

// RandomThemed builds one themed generation prompt by pairing a random
// opening phrase with a random musical element.
func (l *Library) RandomThemed(theme string) (string, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return "", fmt.Errorf("%w: theme must be non-empty", ErrInvalidTemplate)
	}

	l.mu.Lock()
	variation := themeVariations[l.rng.Intn(len(themeVariations))]
	element := themeElements[l.rng.Intn(len(themeElements))]
	l.mu.Unlock()

	return fmt.Sprintf(variation, theme) + " " + element + ".", nil
}

func cloneTemplates(src map[string]map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string, len(src))
	for category, templates := range src {
		inner := make(map[string]string, len(templates))
		for name, text := range templates {
			inner[name] = text
		}
		out[category] = inner
	}
	return out
}

// saveTemplates atomically replaces the library file.
func saveTemplates(path string, templates map[string]map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating template library directory: %w", err)
	}

	data, err := json.MarshalIndent(templates, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding template library: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".templates-*")
	if err != nil {
		return fmt.Errorf("creating template library temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing template library: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing template library temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing template library: %w", err)
	}
	return nil
}
