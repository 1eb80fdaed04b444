// Package localization loads the translated status lines pushed to clients
// during a search. Each JSON file in the locale directory holds one
// language's flat key/value table, named by its language code ("en.json").
package localization

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const fallbackLang = "en"

// Localizer holds the loaded translation tables, keyed by language code.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

// NewLocalizer reads every *.json file under path into a translation table.
func NewLocalizer(path string) (*Localizer, error) {
	l := &Localizer{
		translations: make(map[string]map[string]string),
	}

	files, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read localization directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		lang := strings.TrimSuffix(file.Name(), ".json")
		table, err := loadTable(filepath.Join(path, file.Name()))
		if err != nil {
			return nil, err
		}
		l.translations[lang] = table
	}

	return l, nil
}

func loadTable(filePath string) (map[string]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read localization file %s: %w", filePath, err)
	}
	var table map[string]string
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse localization file %s: %w", filePath, err)
	}
	return table, nil
}

// HasLanguage reports whether a translation table was loaded for lang.
func (l *Localizer) HasLanguage(lang string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.translations[lang]
	return ok
}

// GetString returns the translated string for key in lang. A missing key
// falls back to the default language and finally to the key itself, so a
// hole in a locale file never produces an empty status line.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if table, ok := l.translations[lang]; ok {
		if value, ok := table[key]; ok {
			return value
		}
	}
	if lang != fallbackLang {
		if table, ok := l.translations[fallbackLang]; ok {
			if value, ok := table[key]; ok {
				return value
			}
		}
	}
	return key
}
