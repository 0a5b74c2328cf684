package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"mercator-hq/vigil/pkg/config"
)

// ErrNotInitialized is returned before Clone or Sync has succeeded.
var ErrNotInitialized = errors.New("policy repository not cloned")

// Repository is a local checkout of a policy repository.
type Repository struct {
	cfg       *config.GitPolicyConfig
	localPath string
	logger    *slog.Logger

	mu    sync.RWMutex
	repo  *gogit.Repository
	stats SyncStats
}

// NewRepository validates cfg and returns an unopened repository. It does
// not touch the network or the local path.
func NewRepository(cfg *config.GitPolicyConfig, logger *slog.Logger) (*Repository, error) {
	switch {
	case cfg == nil:
		return nil, fmt.Errorf("git config cannot be nil")
	case cfg.Repository == "":
		return nil, fmt.Errorf("git repository URL cannot be empty")
	case cfg.Branch == "":
		return nil, fmt.Errorf("git branch cannot be empty")
	}
	if err := checkAuth(cfg.Auth); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	localPath := cfg.Clone.LocalPath
	if localPath == "" {
		localPath = filepath.Join(os.TempDir(), "vigil-policies")
	}
	return &Repository{
		cfg:       cfg,
		localPath: localPath,
		logger:    logger.With("component", "policy.git", "repository", cfg.Repository),
	}, nil
}

// Sync clones on first use and pulls afterwards.
func (r *Repository) Sync(ctx context.Context) error {
	r.mu.RLock()
	opened := r.repo != nil
	r.mu.RUnlock()

	if !opened {
		return r.Clone(ctx)
	}
	_, err := r.Pull(ctx)
	return err
}

// Clone reuses an existing checkout at the local path or clones into it.
// With clone.clean_on_start the local path is removed first.
func (r *Repository) Clone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	if r.cfg.Clone.CleanOnStart {
		if err := os.RemoveAll(r.localPath); err != nil {
			return fmt.Errorf("failed to clean policy checkout: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(r.localPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.localPath)
		if err != nil {
			return fmt.Errorf("failed to open policy checkout: %w", err)
		}
		r.repo = repo
		r.stats.CloneDuration = time.Since(start)
		r.logger.Debug("reusing policy checkout", "path", r.localPath)
		return nil
	}

	auth, err := authMethod(r.cfg.Auth)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.localPath, 0o755); err != nil {
		return fmt.Errorf("failed to create checkout directory: %w", err)
	}

	ctx, cancel := r.opContext(ctx)
	defer cancel()
	repo, err := gogit.PlainCloneContext(ctx, r.localPath, false, &gogit.CloneOptions{
		URL:           r.cfg.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(r.cfg.Branch),
		SingleBranch:  true,
		Depth:         r.cfg.Clone.Depth,
		Auth:          auth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", r.cfg.Repository, err)
	}
	r.repo = repo
	r.stats.CloneDuration = time.Since(start)

	r.logger.Info("policy repository cloned",
		"branch", r.cfg.Branch,
		"path", r.localPath,
		"auth", authKind(r.cfg.Auth),
		"duration", r.stats.CloneDuration,
	)
	return nil
}

// Pull fast-forwards the checkout to origin and reports what changed.
func (r *Repository) Pull(ctx context.Context) (*Update, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, ErrNotInitialized
	}
	r.stats.LastPull = time.Now()

	from, err := r.head()
	if err != nil {
		return nil, err
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	auth, err := authMethod(r.cfg.Auth)
	if err != nil {
		return nil, err
	}

	pullCtx, cancel := r.opContext(ctx)
	defer cancel()
	err = wt.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(r.cfg.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		r.stats.FailedPulls++
		return nil, fmt.Errorf("failed to pull %s: %w", r.cfg.Branch, err)
	}
	r.stats.Pulls++

	to, err := r.head()
	if err != nil {
		return nil, err
	}
	u := &Update{From: from, To: to}
	if !u.Changed() {
		return u, nil
	}

	if u.Files, err = r.diff(from, to); err != nil {
		return nil, err
	}
	r.stats.LastCommit = to
	r.logger.Info("policy repository updated",
		"from", shortSHA(from),
		"to", shortSHA(to),
		"changed_files", len(u.Files),
	)
	return u, nil
}

// HeadCommit returns the checked out commit.
func (r *Repository) HeadCommit() (*Commit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotInitialized
	}
	sha, err := r.head()
	if err != nil {
		return nil, err
	}
	c, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", shortSHA(sha), err)
	}
	return &Commit{
		SHA:     sha,
		Author:  c.Author.Name,
		Email:   c.Author.Email,
		When:    c.Author.When,
		Message: c.Message,
	}, nil
}

// Rollback force-checks out sha, which must be in the local history.
func (r *Repository) Rollback(ctx context.Context, sha string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return ErrNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	hash := plumbing.NewHash(sha)
	if _, err := r.repo.CommitObject(hash); err != nil {
		return fmt.Errorf("rollback target %s not found: %w", shortSHA(sha), err)
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return fmt.Errorf("failed to check out %s: %w", shortSHA(sha), err)
	}

	r.logger.Warn("policy repository rolled back", "commit", shortSHA(sha))
	return nil
}

// Stats returns a snapshot of the operation counters.
func (r *Repository) Stats() SyncStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// LocalPath returns the checkout directory.
func (r *Repository) LocalPath() string {
	return r.localPath
}

// PolicyPath returns the policy directory inside the checkout. It is added
// to the policy manager's search paths.
func (r *Repository) PolicyPath() string {
	return filepath.Join(r.localPath, filepath.FromSlash(r.cfg.Path))
}

// head returns the HEAD hash. Callers hold r.mu.
func (r *Repository) head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// diff lists the files that differ between two commits. Callers hold r.mu.
func (r *Repository) diff(from, to string) ([]string, error) {
	fromCommit, err := r.repo.CommitObject(plumbing.NewHash(from))
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", shortSHA(from), err)
	}
	toCommit, err := r.repo.CommitObject(plumbing.NewHash(to))
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", shortSHA(to), err)
	}
	fromTree, err := fromCommit.Tree()
	if err != nil {
		return nil, err
	}
	toTree, err := toCommit.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", shortSHA(from), shortSHA(to), err)
	}

	files := make([]string, 0, len(changes))
	for _, ch := range changes {
		name := ch.To.Name
		if name == "" {
			name = ch.From.Name // deleted
		}
		files = append(files, name)
	}
	return files, nil
}

func (r *Repository) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Poll.Timeout > 0 {
		return context.WithTimeout(ctx, r.cfg.Poll.Timeout)
	}
	return context.WithCancel(ctx)
}
