package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"mercator-hq/vigil/pkg/policy/model"
)

// Manager locates, loads, caches and resolves audit policies.
// It is safe for concurrent use.
type Manager struct {
	config   *LoaderConfig
	loader   *Loader
	registry *Registry
	logger   *slog.Logger

	mu          sync.RWMutex
	searchPaths []string
	lastLoad    time.Time
}

// NewManager creates a policy manager. A nil config uses DefaultLoaderConfig
// and a nil logger uses slog.Default().
func NewManager(config *LoaderConfig, logger *slog.Logger) *Manager {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		config:      config,
		loader:      NewLoader(config),
		registry:    NewRegistry(),
		logger:      logger,
		searchPaths: append([]string(nil), config.SearchPaths...),
	}
}

// AddSearchPath appends a directory to the search paths.
func (m *Manager) AddSearchPath(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchPaths = append(m.searchPaths, dir)
}

// SearchPaths returns a copy of the configured search paths.
func (m *Manager) SearchPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.searchPaths...)
}

// Registry returns the layer cache.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// GetPolicy resolves nameOrPath into an effective policy: inheritance is
// merged, then the environment and dataset overlays are applied. Empty
// environment or dataset names skip the overlay.
//
// Resolution errors (*PolicyNotFoundError, *CyclicPolicyError, *LoadError,
// *ParseError) are returned unmodified.
func (m *Manager) GetPolicy(ctx context.Context, nameOrPath, environment, dataset string) (*model.AuditPolicy, error) {
	policy, err := m.Resolve(ctx, nameOrPath)
	if err != nil {
		return nil, err
	}

	effective := policy.Effective(environment, dataset)
	m.logger.Debug("resolved effective policy",
		"policy", effective.Name,
		"environment", environment,
		"dataset", dataset,
		"rules", len(effective.Rules),
		"lineage", effective.Lineage,
	)
	return effective, nil
}

// Resolve locates nameOrPath and merges its inheritance chain, without
// applying overlays.
func (m *Manager) Resolve(ctx context.Context, nameOrPath string) (*model.AuditPolicy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := m.locateFrom(nameOrPath, "")
	if err != nil {
		return nil, err
	}

	policy, err := newResolver(m).resolve(path)
	if err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, &ParseError{FilePath: path, Message: "invalid policy", Cause: err}
	}
	return policy, nil
}

// ListPolicies returns the sorted, de-duplicated names of all policy files
// in the search paths. Missing directories are skipped.
func (m *Manager) ListPolicies() ([]string, error) {
	infos, err := m.scan(false)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names, nil
}

// Describe is like ListPolicies but loads each file to report its
// parent and rule count. Files that fail to load are reported in the
// joined error alongside the policies that did load.
func (m *Manager) Describe() ([]PolicyInfo, error) {
	return m.scan(true)
}

func (m *Manager) scan(load bool) ([]PolicyInfo, error) {
	seen := make(map[string]bool)
	var infos []PolicyInfo
	var errs []error

	for _, dir := range m.SearchPaths() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &LoadError{FilePath: dir, Message: "failed to read directory", Cause: err}
		}

		for _, entry := range entries {
			if entry.IsDir() || !m.loader.hasValidExtension(entry.Name()) {
				continue
			}
			name := PolicyName(entry.Name())
			if seen[name] {
				continue
			}
			seen[name] = true

			info := PolicyInfo{Name: name, Path: filepath.Join(dir, entry.Name())}
			if load {
				abs, _ := filepath.Abs(info.Path)
				layer, err := m.load(abs)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				info.Extends = layer.Extends
				info.Rules = len(layer.Rules)
			}
			infos = append(infos, info)
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, errors.Join(errs...)
}

// Reload drops all cached files. The next resolution re-reads from disk.
func (m *Manager) Reload() {
	m.registry.Clear()
	m.logger.Info("policy cache cleared")
}

// LastLoadTime returns when a file was last read from disk.
func (m *Manager) LastLoadTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastLoad
}

// Watch watches the search paths and clears the cache after changes.
// onChange, if non-nil, is called after each invalidation. Watch blocks
// until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context, onChange func()) error {
	var paths []string
	for _, dir := range m.SearchPaths() {
		if isDir, err := isDirectory(dir); err == nil && isDir {
			paths = append(paths, dir)
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("no existing search paths to watch")
	}

	w, err := newSearchPathWatcher(paths, m.config.Extensions, m.config.WatchDebounce, m.logger)
	if err != nil {
		return err
	}
	m.logger.Info("watching policy files", "paths", paths)

	return w.run(ctx, func(changed []string) {
		m.logger.Info("policy files changed", "files", changed)
		m.Reload()
		if onChange != nil {
			onChange()
		}
	})
}

// load returns the cached layer for an absolute path, reading it on a miss.
func (m *Manager) load(path string) (*model.Layer, error) {
	if layer, ok := m.registry.Get(path); ok {
		return layer, nil
	}

	data, err := m.loader.ReadFile(path)
	if err != nil {
		return nil, err
	}
	layer, err := m.loader.LoadBytes(data, path)
	if err != nil {
		return nil, err
	}

	m.registry.Put(path, layer, data)
	m.mu.Lock()
	m.lastLoad = time.Now()
	m.mu.Unlock()

	m.logger.Debug("loaded policy file", "path", path, "policy", layer.Name, "rules", len(layer.Rules))
	return layer, nil
}

// locateFrom finds the file for ref. An existing file path wins, then each
// search path with each extension, then baseDir (the directory of the
// referencing policy) for `extends` lookups.
func (m *Manager) locateFrom(ref, baseDir string) (string, error) {
	if isRegularFile(ref) {
		return filepath.Abs(ref)
	}

	dirs := m.SearchPaths()
	if baseDir != "" {
		dirs = append(dirs, baseDir)
	}

	for _, dir := range dirs {
		if m.loader.hasValidExtension(ref) {
			if candidate := filepath.Join(dir, ref); isRegularFile(candidate) {
				return filepath.Abs(candidate)
			}
			continue
		}
		for _, ext := range m.config.Extensions {
			if candidate := filepath.Join(dir, ref+ext); isRegularFile(candidate) {
				return filepath.Abs(candidate)
			}
		}
	}

	return "", &PolicyNotFoundError{Name: ref, SearchPaths: m.SearchPaths()}
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
