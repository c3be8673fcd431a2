// Package localization loads notification templates from JSON catalogs, one
// file per language (en.json, uk.json, ...), and renders them.
package localization

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// DefaultLanguage is used when a user's language has no catalog or lacks a key.
const DefaultLanguage = "en"

// Localizer holds the catalogs keyed by language code.
type Localizer struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
}

// NewLocalizer reads every *.json file in path. The file name without the
// extension is the language code.
func NewLocalizer(path string) (*Localizer, error) {
	files, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	catalogs := make(map[string]map[string]string)
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(path, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var entries map[string]string
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}
		catalogs[strings.TrimSuffix(file.Name(), ".json")] = entries
	}

	return NewFromCatalogs(catalogs), nil
}

// NewFromCatalogs builds a Localizer from in-memory catalogs.
func NewFromCatalogs(catalogs map[string]map[string]string) *Localizer {
	l := &Localizer{translations: make(map[string]map[string]string, len(catalogs))}
	for lang, entries := range catalogs {
		l.translations[lang] = lo.Assign(entries)
	}
	return l
}

// GetString returns the string for key in lang, falling back to the default
// language and finally to the key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if value, ok := l.translations[lang][key]; ok {
		return value
	}
	if value, ok := l.translations[DefaultLanguage][key]; ok {
		return value
	}
	return key
}

// Format renders key with {name} placeholders replaced from vars.
func (l *Localizer) Format(lang, key string, vars map[string]string) string {
	tmpl := l.GetString(lang, key)
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Languages lists the loaded language codes.
func (l *Localizer) Languages() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return lo.Keys(l.translations)
}

// Supports reports whether a catalog exists for lang.
func (l *Localizer) Supports(lang string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.translations[lang]
	return ok
}
