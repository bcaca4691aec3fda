package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

//go:embed html/*.html
var builtin embed.FS

// Loader parses and caches the page templates
type Loader struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewLoader creates a loader with the built-in templates
func NewLoader() (*Loader, error) {
	l := &Loader{templates: make(map[string]*template.Template)}

	entries, err := builtin.ReadDir("html")
	if err != nil {
		return nil, fmt.Errorf("failed to read built-in templates: %w", err)
	}

	for _, e := range entries {
		data, err := builtin.ReadFile("html/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", e.Name(), err)
		}
		if err := l.add(e.Name(), data); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// LoadFromDir overrides built-in templates with *.html files from dir
func (l *Loader) LoadFromDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.html"))
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		if err := l.add(filepath.Base(file), data); err != nil {
			return err
		}
		slog.Info("template loaded", "name", filepath.Base(file), "dir", dir)
	}

	return nil
}

func (l *Loader) add(name string, data []byte) error {
	tmpl, err := template.New(name).Funcs(funcs).Parse(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	l.mu.Lock()
	l.templates[name] = tmpl
	l.mu.Unlock()

	return nil
}

// Render executes the named template into w. Output is buffered so a template
// error never leaves a half-written page.
func (l *Loader) Render(w io.Writer, name string, data interface{}) error {
	l.mu.RLock()
	tmpl, ok := l.templates[name]
	l.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template %q not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	_, err := buf.WriteTo(w)
	return err
}
