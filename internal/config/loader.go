package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:default} patterns in a string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		varName := submatch[1]
		defaultVal := ""
		if len(submatch) >= 3 {
			defaultVal = submatch[2]
		}
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return defaultVal
	})
}

// LoadFile reads a YAML file, expands env vars, and unmarshals into dest.
func LoadFile(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	expanded := expandEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(expanded), dest); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Loader owns the tool settings and the configuration document, and reloads
// both when either file changes.
type Loader struct {
	settingsPath string
	documentPath string
	mu           sync.RWMutex
	cfg          *Config
	doc          any
	resolvedDoc  string
	watchers     []func()
	watcher      *fsnotify.Watcher
	logger       *slog.Logger
}

// NewLoader creates a loader. An empty settingsPath uses DefaultConfig; an
// empty documentPath uses the synth.document setting.
func NewLoader(settingsPath, documentPath string, logger *slog.Logger) *Loader {
	return &Loader{
		settingsPath: settingsPath,
		documentPath: documentPath,
		logger:       logger,
	}
}

func (l *Loader) Load() error {
	cfg := DefaultConfig()
	if l.settingsPath != "" {
		if err := LoadFile(l.settingsPath, cfg); err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
	}

	docPath := l.documentPath
	if docPath == "" {
		docPath = cfg.Synth.Document
	}
	doc, err := LoadDocument(docPath)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	l.mu.Lock()
	l.cfg = cfg
	l.doc = doc
	l.resolvedDoc = docPath
	l.mu.Unlock()

	l.logger.Info("configuration loaded", "settings", l.settingsPath, "document", docPath)
	return nil
}

func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Document returns the last loaded configuration document.
func (l *Loader) Document() any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.doc
}

func (l *Loader) DocumentPath() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.resolvedDoc
}

// OnReload registers a callback that fires after config is reloaded.
func (l *Loader) OnReload(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watchers = append(l.watchers, fn)
}

// Watch starts watching the settings and document directories and reloads
// when either file is written or replaced. Load must have succeeded first.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	targets := map[string]bool{}
	for _, p := range []string{l.settingsPath, l.DocumentPath()} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			watcher.Close()
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		targets[abs] = true
	}

	dirs := map[string]bool{}
	for p := range targets {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch config dir %s: %w", dir, err)
		}
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, err := filepath.Abs(event.Name)
				if err != nil || !targets[name] {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					l.logger.Info("config file changed, reloading", "file", event.Name)
					if err := l.Load(); err != nil {
						l.logger.Error("failed to reload config", "error", err)
						continue
					}
					l.mu.RLock()
					callbacks := append([]func(){}, l.watchers...)
					l.mu.RUnlock()
					for _, fn := range callbacks {
						fn()
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Error("fsnotify error", "error", err)
			}
		}
	}()

	return nil
}

// Close stops watching.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	l.watcher = nil
	return err
}
