// Package metadata provides the path-addressed configuration tree that
// describes scopes, entity fields, links and ACL defaults.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Provider reads metadata values by path. Get returns nil when the path does
// not exist.
type Provider interface {
	Get(path []string) any
}

// ChangeFunc is called with the new version after metadata is rebuilt.
type ChangeFunc func(version string)

// Store is an in-memory metadata tree. It is safe for concurrent use; a
// rebuild swaps the whole tree.
type Store struct {
	mu      sync.RWMutex
	data    map[string]any
	version string

	dirs  []string
	hooks []ChangeFunc
	log   *logrus.Logger
}

// NewStore creates a store over an already decoded tree.
func NewStore(data map[string]any, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	if data == nil {
		data = map[string]any{}
	}
	return &Store{data: data, version: checksum(data), log: log}
}

// LoadDirs builds a store from metadata directories. Later directories
// override earlier ones.
func LoadDirs(log *logrus.Logger, dirs ...string) (*Store, error) {
	data, err := readDirs(dirs)
	if err != nil {
		return nil, err
	}
	s := NewStore(data, log)
	s.dirs = dirs
	return s, nil
}

// Parse decodes a single YAML or JSON document holding the whole tree.
func Parse(b []byte) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	m, ok := normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metadata document must be a mapping, got %T", raw)
	}
	return m, nil
}

// Get returns the value at path.
func (s *Store) Get(path []string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup(s.data, path)
}

// Version identifies the current tree. It changes whenever the content does.
func (s *Store) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// OnChange registers a hook run after every rebuild that changed the tree.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Reload re-reads the directories the store was loaded from.
func (s *Store) Reload() error {
	if len(s.dirs) == 0 {
		return nil
	}
	data, err := readDirs(s.dirs)
	if err != nil {
		return err
	}
	s.Replace(data)
	return nil
}

// Replace swaps the tree and runs the change hooks when the content
// differs. It reports whether anything changed.
func (s *Store) Replace(data map[string]any) bool {
	version := checksum(data)

	s.mu.Lock()
	if version == s.version {
		s.mu.Unlock()
		return false
	}
	s.data = data
	s.version = version
	hooks := append([]ChangeFunc(nil), s.hooks...)
	s.mu.Unlock()

	s.log.WithField("version", version).Info("metadata rebuilt")
	for _, fn := range hooks {
		fn(version)
	}
	return true
}

func lookup(data map[string]any, path []string) any {
	var cur any = data
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	return cur
}

// readDirs loads <dir>/<section>.yaml into tree[section] and
// <dir>/<section>/<Name>.yaml into tree[section][Name]. JSON files are
// accepted as well.
func readDirs(dirs []string) (map[string]any, error) {
	tree := map[string]any{}
	for _, dir := range dirs {
		var files []string
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isMetadataFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata dir %s: %w", dir, err)
		}
		sort.Strings(files)

		for _, file := range files {
			b, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("failed to read metadata file %s: %w", file, err)
			}
			doc, err := Parse(b)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}

			rel, _ := filepath.Rel(dir, file)
			rel = strings.TrimSuffix(rel, filepath.Ext(rel))
			path := strings.Split(filepath.ToSlash(rel), "/")
			merge(tree, nest(path, doc))
		}
	}
	return tree, nil
}

func isMetadataFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func nest(path []string, doc map[string]any) map[string]any {
	out := doc
	for i := len(path) - 1; i >= 0; i-- {
		out = map[string]any{path[i]: out}
	}
	return out
}

// merge deep-merges src into dst. Maps merge, everything else is replaced.
func merge(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				merge(dm, sm)
				continue
			}
		}
		dst[k] = v
	}
}

// normalize converts YAML maps with non-string keys to map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = normalize(item)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, item := range t {
			m[fmt.Sprint(k)] = normalize(item)
		}
		return m
	case []any:
		for i, item := range t {
			t[i] = normalize(item)
		}
		return t
	}
	return v
}

func checksum(data map[string]any) string {
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
