package manager

import "time"

// LoaderConfig contains configuration for loading and locating policies.
type LoaderConfig struct {
	// SearchPaths are the directories searched when a policy is referenced
	// by name. Earlier paths win.
	SearchPaths []string

	// Extensions are tried in order for each search path.
	Extensions []string

	// MaxFileSize is the maximum allowed policy file size in bytes.
	MaxFileSize int64

	// WatchDebounce is the quiet period before a file change invalidates the cache.
	WatchDebounce time.Duration
}

// DefaultLoaderConfig returns the default loader configuration.
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		SearchPaths:   []string{"./policies", "./audit"},
		Extensions:    []string{".yaml", ".yml", ".json"},
		MaxFileSize:   10 * 1024 * 1024, // 10MB
		WatchDebounce: 100 * time.Millisecond,
	}
}

// PolicyInfo summarizes a policy file found in the search paths.
type PolicyInfo struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Extends string `json:"extends,omitempty"`
	Rules   int    `json:"rules"`
}
