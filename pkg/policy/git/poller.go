package git

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ReloadFunc is called with the policy directory after policy files
// change. An error rejects the commit and the checkout is rolled back.
type ReloadFunc func(policyPath string) error

// PollStats counts poller activity.
type PollStats struct {
	Polls      int64
	Reloads    int64
	Rejected   int64
	Skipped    int64 // updates that touched no policy file
	LastReload time.Time
}

// Poller pulls a repository on an interval and reloads policies when a
// policy file under the policy path changes.
type Poller struct {
	repo     *Repository
	interval time.Duration
	reload   ReloadFunc
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	good    string // last commit whose policies were accepted
	stats   PollStats
}

// NewPoller creates a poller. Start fails unless interval is positive.
func NewPoller(repo *Repository, interval time.Duration, reload ReloadFunc, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		repo:     repo,
		interval: interval,
		reload:   reload,
		logger:   logger.With("component", "policy.git.poller"),
	}
}

// Start polls in the background until ctx is cancelled or Stop is called.
// The current HEAD is taken as known good.
func (p *Poller) Start(ctx context.Context) error {
	if p.interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", p.interval)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("poller already running")
	}
	head, err := p.repo.HeadCommit()
	if err != nil {
		return fmt.Errorf("failed to read initial commit: %w", err)
	}

	p.good = head.SHA
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.loop(ctx, p.stop, p.done)

	p.logger.Info("policy poller started", "interval", p.interval, "commit", head.Short())
	return nil
}

// Stop stops polling and waits for an in-flight poll to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stop)
	done := p.done
	p.mu.Unlock()
	<-done
}

// Running reports whether the poller is running.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Commit returns the last accepted commit.
func (p *Poller) Commit() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.good
}

// Stats returns a snapshot of the poll counters.
func (p *Poller) Stats() PollStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Poller) loop(ctx context.Context, stop, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil {
				p.logger.Error("policy poll failed", "error", err)
			}
		}
	}
}

// Poll pulls once and reloads if policy files changed. A rejected commit
// is rolled back, the previous policies are reloaded and the reload error
// is returned.
func (p *Poller) Poll(ctx context.Context) error {
	p.mu.Lock()
	p.stats.Polls++
	p.mu.Unlock()

	u, err := p.repo.Pull(ctx)
	if err != nil {
		return err
	}
	if !u.Changed() {
		return nil
	}

	changed := u.PolicyFiles(p.repo.cfg.Path)
	if len(changed) == 0 {
		p.mu.Lock()
		p.stats.Skipped++
		p.good = u.To
		p.mu.Unlock()
		p.logger.Debug("no policy files changed", "commit", shortSHA(u.To), "files", u.Files)
		return nil
	}

	p.mu.Lock()
	previous := p.good
	p.mu.Unlock()

	if err := p.reload(p.repo.PolicyPath()); err != nil {
		p.mu.Lock()
		p.stats.Rejected++
		p.mu.Unlock()

		p.logger.Error("policy commit rejected, rolling back",
			"error", err,
			"commit", shortSHA(u.To),
			"rollback_to", shortSHA(previous),
		)
		if rbErr := p.repo.Rollback(ctx, previous); rbErr != nil {
			return fmt.Errorf("policy reload failed: %w (rollback failed: %v)", err, rbErr)
		}
		if rbErr := p.reload(p.repo.PolicyPath()); rbErr != nil {
			return fmt.Errorf("policy reload failed: %w (reloading %s failed: %v)", err, shortSHA(previous), rbErr)
		}
		return fmt.Errorf("policy reload failed: %w", err)
	}

	p.mu.Lock()
	p.good = u.To
	p.stats.Reloads++
	p.stats.LastReload = time.Now()
	p.mu.Unlock()

	p.logger.Info("policies reloaded from repository",
		"from", shortSHA(previous),
		"to", shortSHA(u.To),
		"files", changed,
	)
	return nil
}
