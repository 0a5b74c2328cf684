package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/vigil/pkg/history"
	"mercator-hq/vigil/pkg/history/export"
)

// Config holds the retention limits. A zero limit disables its phase.
type Config struct {
	RetentionDays int    // delete runs older than this
	MaxRecords    int64  // then keep at most this many runs
	PruneSchedule string // standard five-field cron, empty for manual only

	ArchiveBeforeDelete bool
	ArchivePath         string
}

// DefaultConfig keeps 90 days of history and prunes nightly at 03:00.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
		ArchivePath:   "data/archives/",
	}
}

// Pruner removes audit runs that fall outside the retention limits,
// either on demand or on a cron schedule.
type Pruner struct {
	store  history.Storage
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	cron *cron.Cron // non-nil while scheduled
}

// NewPruner returns a pruner for store. A nil cfg means DefaultConfig.
func NewPruner(store history.Storage, cfg *Config, logger *slog.Logger) *Pruner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:  store,
		cfg:    *cfg,
		logger: logger.With("component", "history.retention"),
		now:    time.Now,
	}
}

// Prune applies the age limit, then the count limit, and returns the
// number of runs removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	phases := []struct {
		reason string
		cutoff func(context.Context) (*time.Time, error)
	}{
		{"age", p.expiredBefore},
		{"count", p.overflowBefore},
	}

	var total int64
	for _, phase := range phases {
		cutoff, err := phase.cutoff(ctx)
		if err != nil {
			return total, fmt.Errorf("prune by %s: %w", phase.reason, err)
		}
		if cutoff == nil {
			continue
		}
		n, err := p.removeBefore(ctx, *cutoff, phase.reason)
		if err != nil {
			return total, fmt.Errorf("prune by %s: %w", phase.reason, err)
		}
		total += n
		p.logger.Debug("history pruned", "reason", phase.reason, "deleted", n)
	}

	if total > 0 {
		p.logger.Info("history pruning completed",
			"deleted", total,
			"retention_days", p.cfg.RetentionDays,
			"max_records", p.cfg.MaxRecords,
		)
	}
	return total, nil
}

// expiredBefore returns the age cutoff, or nil when age pruning is off.
func (p *Pruner) expiredBefore(context.Context) (*time.Time, error) {
	if p.cfg.RetentionDays <= 0 {
		return nil, nil
	}
	cutoff := p.now().AddDate(0, 0, -p.cfg.RetentionDays)
	return &cutoff, nil
}

// overflowBefore returns the cutoff that leaves MaxRecords runs, or nil
// when nothing overflows. At most MaxQueryLimit runs go per pass.
func (p *Pruner) overflowBefore(ctx context.Context) (*time.Time, error) {
	if p.cfg.MaxRecords <= 0 {
		return nil, nil
	}
	count, err := p.store.Count(ctx, &history.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	excess := count - p.cfg.MaxRecords
	if excess <= 0 {
		return nil, nil
	}
	excess = min(excess, history.MaxQueryLimit)

	oldest, err := p.store.Query(ctx, &history.Query{Limit: int(excess), SortOrder: "asc"})
	if err != nil {
		return nil, fmt.Errorf("failed to query oldest runs: %w", err)
	}
	if len(oldest) == 0 {
		return nil, nil
	}
	p.logger.Info("history exceeds max_records",
		"count", count,
		"max_records", p.cfg.MaxRecords,
		"excess", excess,
	)
	// EndTime is exclusive.
	cutoff := oldest[len(oldest)-1].RecordedAt.Add(time.Nanosecond)
	return &cutoff, nil
}

func (p *Pruner) removeBefore(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	q := &history.Query{EndTime: &cutoff}
	if p.cfg.ArchiveBeforeDelete {
		records, err := p.store.Query(ctx, &history.Query{EndTime: &cutoff, Limit: history.MaxQueryLimit, SortOrder: "asc"})
		if err != nil {
			return 0, fmt.Errorf("failed to read runs to archive: %w", err)
		}
		if err := p.archive(ctx, records, reason); err != nil {
			return 0, err
		}
	}
	return p.store.Delete(ctx, q)
}

// archive writes records to ArchivePath/history-<reason>-<timestamp>.json.
func (p *Pruner) archive(ctx context.Context, records []*history.Record, reason string) error {
	if len(records) == 0 {
		return nil
	}
	if err := os.MkdirAll(p.cfg.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := filepath.Join(p.cfg.ArchivePath,
		fmt.Sprintf("history-%s-%s.json", reason, p.now().UTC().Format("20060102T150405")))
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	if err := export.NewJSONExporter(true).Export(ctx, records, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	p.logger.Info("history archived", "file", name, "runs", len(records))
	return nil
}

// Start runs Prune on PruneSchedule until ctx is cancelled or Stop is
// called. An empty schedule is not an error; nothing is scheduled.
func (p *Pruner) Start(ctx context.Context) error {
	schedule := p.cfg.PruneSchedule
	if schedule == "" {
		p.logger.Info("no prune schedule configured")
		return nil
	}
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", schedule, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return fmt.Errorf("pruner already scheduled")
	}

	c := cron.New()
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := p.Prune(ctx); err != nil {
			p.logger.Error("scheduled pruning failed", "error", err)
		}
	}))
	c.Start()
	p.cron = c

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	p.logger.Info("history pruning scheduled", "schedule", schedule, "next", sched.Next(p.now()))
	return nil
}

// Stop unschedules pruning and waits for a running prune to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		p.logger.Info("history pruning stopped")
	}
}

// Scheduled reports whether pruning is on a schedule.
func (p *Pruner) Scheduled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cron != nil
}

// NextRun returns when the next scheduled prune fires. ok is false when
// nothing is scheduled.
func (p *Pruner) NextRun() (next time.Time, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron == nil {
		return time.Time{}, false
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}, false
	}
	return entries[0].Next, true
}
