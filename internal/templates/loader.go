package templates

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/coursekit/draft-engine/internal/models"
)

// Loader manages loading and caching of draft templates
type Loader struct {
	mu        sync.RWMutex
	templates map[string]*models.DraftTemplate
}

// NewLoader creates a new template loader
func NewLoader() *Loader {
	return &Loader{
		templates: make(map[string]*models.DraftTemplate),
	}
}

// LoadFromDir loads all YAML templates from a directory
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading templates from directory", "dir", dir)

	patterns := []string{"*.yaml", "*.yml"}
	var files []string

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load template", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("templates loaded", "count", loaded, "total_files", len(files))
	return nil
}

// LoadFromFile loads a single template from a YAML file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var tmpl models.DraftTemplate
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if tmpl.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if tmpl.Title == "" {
		return fmt.Errorf("template title is required")
	}

	l.mu.Lock()
	l.templates[tmpl.Name] = &tmpl
	l.mu.Unlock()

	slog.Info("template loaded", "name", tmpl.Name, "sections", len(tmpl.Sections))
	return nil
}

// Get retrieves a template by name
func (l *Loader) Get(name string) *models.DraftTemplate {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.templates[name]
}

// List returns all loaded templates sorted by name
func (l *Loader) List() []*models.DraftTemplate {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.DraftTemplate, 0, len(l.templates))
	for _, tmpl := range l.templates {
		result = append(result, tmpl)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Add programmatically adds a template
func (l *Loader) Add(template *models.DraftTemplate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[template.Name] = template
}

// Remove removes a template by name
func (l *Loader) Remove(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.templates, name)
}
