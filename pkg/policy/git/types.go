package git

import (
	"path"
	"strings"
	"time"
)

// Commit identifies the policy revision audits run against.
type Commit struct {
	SHA     string    `json:"sha"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	When    time.Time `json:"when"`
	Message string    `json:"message"`
}

// Short returns the abbreviated hash used in logs.
func (c *Commit) Short() string {
	return shortSHA(c.SHA)
}

// Update describes the effect of one pull.
type Update struct {
	From  string
	To    string
	Files []string // paths relative to the repository root
}

// Changed reports whether the pull moved HEAD.
func (u *Update) Changed() bool {
	return u.From != u.To
}

// PolicyFiles returns the changed files that are policy documents under
// dir, a slash separated path relative to the repository root. An empty
// dir is the repository root.
func (u *Update) PolicyFiles(dir string) []string {
	prefix := strings.Trim(path.Clean("/"+dir), "/")
	var out []string
	for _, f := range u.Files {
		if prefix != "" && !strings.HasPrefix(f, prefix+"/") {
			continue
		}
		if isPolicyFile(f) {
			out = append(out, f)
		}
	}
	return out
}

// SyncStats counts repository operations. LastPull feeds the freshness
// health check.
type SyncStats struct {
	CloneDuration time.Duration
	LastPull      time.Time
	LastCommit    string
	Pulls         int64
	FailedPulls   int64
}

func isPolicyFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return !strings.HasPrefix(path.Base(name), ".")
	}
	return false
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
