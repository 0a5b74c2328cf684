package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/vigil/pkg/history"
	"mercator-hq/vigil/pkg/policy/engine"
	"mercator-hq/vigil/pkg/policy/model"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("recorder is closed")

// Config contains configuration for the history recorder.
type Config struct {
	// Enabled enables history recording.
	Enabled bool

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 100
	AsyncBuffer int

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		AsyncBuffer:  100,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder records audit results.
type Recorder struct {
	storage    history.Storage
	config     *Config
	recordChan chan *history.Record
	wg         sync.WaitGroup
	done       chan struct{}
	closeOnce  sync.Once
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a recorder writing to storage and starts its background worker.
func New(storage history.Storage, config *Config, logger *slog.Logger) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *history.Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "history.recorder"),
		now:        time.Now,
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Debug("history recorder initialized",
		"enabled", config.Enabled,
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)
	return r
}

// FromResult converts a result into a record. A result without a RunID is
// given a fresh UUID, written back to the result.
func FromResult(result *engine.Result, policyVersion string, recordedAt time.Time) *history.Record {
	if result.RunID == "" {
		result.RunID = uuid.New().String()
	}

	record := &history.Record{
		ID:              result.RunID,
		Policy:          result.Policy,
		PolicyVersion:   policyVersion,
		Dataset:         result.Dataset,
		Environment:     result.Environment,
		Success:         result.Success,
		DryRun:          result.DryRun,
		ExitCode:        result.ExitCode,
		WouldExitCode:   result.WouldExitCode,
		WouldBlock:      result.WouldFail,
		TerminatedEarly: result.TerminatedEarly,
		TerminationRule: result.TerminationRule,
		RulesEvaluated:  result.RulesEvaluated,
		Violations:      make([]history.ViolationRecord, 0, len(result.Violations)),
		StartedAt:       result.StartedAt,
		Duration:        result.Duration,
		RecordedAt:      recordedAt,
	}
	for _, v := range result.Violations {
		record.Violations = append(record.Violations, history.ViolationRecord{
			Rule:         v.Rule,
			Severity:     v.Severity.String(),
			Message:      v.Message,
			Enforced:     v.Enforced,
			Inconclusive: v.Inconclusive,
			Error:        v.Error,
		})
	}
	return record
}

// Record converts result and stores it before returning. When recording is
// disabled it returns the record without storing it.
func (r *Recorder) Record(ctx context.Context, result *engine.Result, policyVersion string) (*history.Record, error) {
	record := FromResult(result, policyVersion, r.now())
	if !r.config.Enabled {
		return record, nil
	}

	if err := r.write(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Enqueue converts result and queues it for the background worker. It
// waits at most WriteTimeout for room in the queue.
func (r *Recorder) Enqueue(result *engine.Result, policyVersion string) error {
	if !r.config.Enabled {
		return nil
	}
	select {
	case <-r.done:
		return ErrClosed
	default:
	}

	record := FromResult(result, policyVersion, r.now())
	select {
	case r.recordChan <- record:
		r.logger.Debug("history record enqueued", "record_id", record.ID, "policy", record.Policy)
		return nil
	case <-time.After(r.config.WriteTimeout):
		r.logger.Error("history channel full, dropping record",
			"record_id", record.ID,
			"channel_capacity", r.config.AsyncBuffer,
		)
		return fmt.Errorf("enqueue record %s: %w", record.ID, context.DeadlineExceeded)
	case <-r.done:
		return ErrClosed
	}
}

// Close stops the worker after draining queued records. It is safe to call
// more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.logger.Debug("history recorder shut down")
	})
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeAsync(record)

		case <-r.done:
			for {
				select {
				case record := <-r.recordChan:
					r.writeAsync(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeAsync(record *history.Record) {
	if err := r.write(context.Background(), record); err != nil {
		r.logger.Error("failed to store history record", "record_id", record.ID, "error", err)
	}
}

func (r *Recorder) write(ctx context.Context, record *history.Record) error {
	if r.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.WriteTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := r.storage.Store(ctx, record); err != nil {
		return err
	}

	duration := time.Since(start)
	r.logger.Info("audit run recorded",
		"record_id", record.ID,
		"policy", record.Policy,
		"success", record.Success,
		"violations", len(record.Violations),
		"duration_ms", duration.Milliseconds(),
	)
	if r.config.WriteTimeout > 0 && duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow history write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
	return nil
}

// HighestSeverity returns the highest severity in the record's violations,
// or false if there are none.
func HighestSeverity(record *history.Record) (model.Severity, bool) {
	found := false
	highest := model.SeverityInfo
	for _, v := range record.Violations {
		s, err := model.ParseSeverity(v.Severity)
		if err != nil {
			continue
		}
		if !found || s > highest {
			highest, found = s, true
		}
	}
	return highest, found
}
