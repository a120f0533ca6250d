// Package localization provides the translated texts of system notices.
// Translations are JSON files named with the language code (e.g. "en.json");
// a default set is embedded in the binary.
package localization

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"sync"
)

// Translation keys.
const (
	KeyChatJoined   = "chat.joined"
	KeyChatLeft     = "chat.left"
	KeyPeerLeft     = "chat.peer_left"
	KeyUnknownUser  = "chat.unknown_user"
	KeyQueueTimeout = "queue.timeout"
)

const fallbackLang = "en"

//go:embed locales/*.json
var embedded embed.FS

// Localizer manages the translations for the application.
type Localizer struct {
	translations map[string]map[string]string
	mu           sync.RWMutex
}

var (
	defaultOnce      sync.Once
	defaultLocalizer *Localizer
)

// Default returns the Localizer built from the embedded translations.
func Default() *Localizer {
	defaultOnce.Do(func() {
		l, err := NewLocalizerFS(embedded, "locales")
		if err != nil {
			panic(fmt.Sprintf("embedded locales are broken: %v", err))
		}
		defaultLocalizer = l
	})
	return defaultLocalizer
}

// NewLocalizer loads all translations from the directory at path, layered
// over the embedded defaults.
func NewLocalizer(dir string) (*Localizer, error) {
	l, err := NewLocalizerFS(embedded, "locales")
	if err != nil {
		return nil, err
	}
	if err := l.load(os.DirFS(dir), "."); err != nil {
		return nil, err
	}
	return l, nil
}

// NewLocalizerFS loads all translations found in dir of fsys.
func NewLocalizerFS(fsys fs.FS, dir string) (*Localizer, error) {
	l := &Localizer{translations: make(map[string]map[string]string)}
	if err := l.load(fsys, dir); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Localizer) load(fsys fs.FS, dir string) error {
	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read localization directory: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read localization file %s: %w", file.Name(), err)
		}

		var translations map[string]string
		if err := json.Unmarshal(data, &translations); err != nil {
			return fmt.Errorf("failed to parse localization file %s: %w", file.Name(), err)
		}

		lang := strings.TrimSuffix(file.Name(), ".json")
		if l.translations[lang] == nil {
			l.translations[lang] = make(map[string]string, len(translations))
		}
		for key, value := range translations {
			l.translations[lang][key] = value
		}
	}
	return nil
}

// GetString returns the localized string for a given key and language.
// Regional tags ("uk-UA") fall back to their base language, then to English,
// then to the key itself.
func (l *Localizer) GetString(lang, key string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	lang = strings.ToLower(lang)
	candidates := []string{lang}
	if base, _, ok := strings.Cut(lang, "-"); ok {
		candidates = append(candidates, base)
	}
	candidates = append(candidates, fallbackLang)

	for _, candidate := range candidates {
		if value, ok := l.translations[candidate][key]; ok {
			return value
		}
	}
	return key
}

// Format looks up key and applies fmt.Sprintf with args.
func (l *Localizer) Format(lang, key string, args ...any) string {
	text := l.GetString(lang, key)
	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}
