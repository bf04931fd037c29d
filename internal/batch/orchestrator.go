package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"jobmate/digest-service/internal/matching"
	"jobmate/digest-service/internal/model"
	"jobmate/digest-service/internal/snapshot"
	"jobmate/digest-service/internal/store"
)

// ErrRunLocked is returned when another process holds the run lock for the
// requested batch date.
var ErrRunLocked = errors.New("batch date is locked by another run")

// Config tunes one orchestrator instance.
type Config struct {
	Concurrency        int           // worker pool size
	ErrorRateThreshold float64       // failed/total fraction that aborts the run
	UserTaskTimeout    time.Duration // per-user pipeline budget
	CompanyCap         int
	CandidateCap       int
	RetryAttempts      int           // write retries per user before counting a failure
	RetryBackoff       time.Duration // base backoff, multiplied by attempt number
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 8
	}
	if c.ErrorRateThreshold <= 0 {
		c.ErrorRateThreshold = 0.05
	}
	if c.UserTaskTimeout <= 0 {
		c.UserTaskTimeout = 5 * time.Second
	}
	if c.CompanyCap < 1 {
		c.CompanyCap = matching.DefaultCompanyCap
	}
	if c.CandidateCap < 1 {
		c.CandidateCap = matching.DefaultCandidateCap
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	return c
}

// Options select what a single invocation runs.
type Options struct {
	Date        time.Time
	Force       bool     // rerun a date that already COMPLETED
	Concurrency int      // override Config.Concurrency when > 0
	UserIDs     []string // restrict to a subset for partial reruns
}

// Orchestrator drives one matching run end-to-end. It exclusively owns
// BatchRun state transitions; per-user work is fanned out to a fixed-size
// worker pool sharing only the read-only snapshot and atomic counters.
type Orchestrator struct {
	source SnapshotSource
	runs   RunStore
	writer OutputWriter
	events EventPublisher
	scorer *matching.Scorer
	cfg    Config
}

// NewOrchestrator wires an Orchestrator from its ports.
func NewOrchestrator(source SnapshotSource, runs RunStore, writer OutputWriter, events EventPublisher, cfg Config) *Orchestrator {
	return &Orchestrator{
		source: source,
		runs:   runs,
		writer: writer,
		events: events,
		scorer: matching.NewScorer(),
		cfg:    cfg.withDefaults(),
	}
}

// Run executes the matching pipeline for opts.Date.
//
// A date whose run already COMPLETED is a no-op unless opts.Force is set.
// Per-user failures are counted and logged but do not abort the run; only
// an unreadable snapshot or an error rate above the configured threshold
// fails it. Cancelling ctx stops scheduling new users; in-flight users
// always run to completion so their writes stay consistent.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*model.BatchRun, error) {
	batchDate := opts.Date.UTC().Truncate(24 * time.Hour)

	run, fresh, err := o.prepareRun(ctx, batchDate, opts.Force)
	if err != nil {
		return nil, err
	}
	if run == nil {
		// Already COMPLETED and not forced: report the existing run.
		return o.runs.GetByDate(ctx, batchDate)
	}

	locked, err := o.events.TryLock(ctx, batchDate, run.ID)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, ErrRunLocked
	}
	defer func() {
		if err := o.events.Unlock(context.WithoutCancel(ctx), batchDate); err != nil {
			log.Printf("[orchestrator] Unlock %s: %v", batchDate.Format("2006-01-02"), err)
		}
	}()

	if fresh {
		if err := o.runs.Create(ctx, run); err != nil {
			return nil, err
		}
	}

	started := time.Now().UTC()
	run.StartedAt = &started
	run.Status = string(StatusRunning)
	if err := o.runs.Update(ctx, run); err != nil {
		return nil, err
	}
	o.publish(ctx, run)

	snap, err := o.source.Load(ctx, batchDate)
	if err != nil {
		o.finish(ctx, run, StatusFailed, err.Error())
		return run, fmt.Errorf("load snapshot: %w", err)
	}

	users := filterUsers(snap.Users, opts.UserIDs)
	run.TotalRecords = len(users)
	log.Printf("[orchestrator] Run %s for %s — %d user(s), concurrency=%d",
		run.ID, batchDate.Format("2006-01-02"), len(users), o.workerCount(opts))

	summary := o.processAll(ctx, snap, users, o.workerCount(opts))

	run.ProcessedRecords = int(summary.processed.Load())
	run.SuccessCount = int(summary.success.Load())
	run.ErrorCount = int(summary.errored.Load())
	run.ErrorLogs = summary.errorLogs

	switch {
	case summary.aborted:
		o.finish(ctx, run, StatusFailed, fmt.Sprintf(
			"error rate exceeded threshold (%d/%d failed, threshold %.2f)",
			run.ErrorCount, run.TotalRecords, o.cfg.ErrorRateThreshold))
	case summary.cancelled:
		o.finish(ctx, run, StatusCancelled, "")
	case run.ErrorCount == 0:
		o.finish(ctx, run, StatusCompleted, "")
	default:
		o.finish(ctx, run, StatusCompletedWithErrors, "")
	}

	log.Printf("[orchestrator] Run %s done — status=%s processed=%d success=%d errors=%d",
		run.ID, run.Status, run.ProcessedRecords, run.SuccessCount, run.ErrorCount)
	return run, nil
}

// prepareRun returns the run row to drive, creating or resetting one as
// needed. A nil run with nil error means the date already completed and
// force was not set.
func (o *Orchestrator) prepareRun(ctx context.Context, batchDate time.Time, force bool) (*model.BatchRun, bool, error) {
	existing, err := o.runs.GetByDate(ctx, batchDate)
	if err != nil && !errors.Is(err, store.ErrRunNotFound) {
		return nil, false, err
	}

	if existing != nil {
		if existing.Status == string(StatusCompleted) && !force {
			log.Printf("[orchestrator] %s already COMPLETED — no-op (use force to rerun)",
				batchDate.Format("2006-01-02"))
			return nil, false, nil
		}
		// Reuse the row as a fresh attempt.
		existing.Status = string(StatusPending)
		existing.TotalRecords = 0
		existing.ProcessedRecords = 0
		existing.SuccessCount = 0
		existing.ErrorCount = 0
		existing.LastErrorMessage = nil
		existing.ErrorLogs = nil
		existing.StartedAt = nil
		existing.FinishedAt = nil
		return existing, false, nil
	}

	return &model.BatchRun{
		ID:        uuid.New().String(),
		BatchDate: batchDate,
		Status:    string(StatusPending),
	}, true, nil
}

// runSummary aggregates worker-pool results. Counters are atomic per the
// concurrency model: workers share no locked structures beyond the error
// log, which is appended under its own mutex.
type runSummary struct {
	processed atomic.Int64
	success   atomic.Int64
	errored   atomic.Int64

	mu        sync.Mutex
	errorLogs []model.UserError

	cancelled bool
	aborted   bool
}

func (o *Orchestrator) processAll(ctx context.Context, snap *snapshot.Snapshot, users []model.User, workers int) *runSummary {
	summary := &runSummary{}
	total := len(users)
	if total == 0 {
		return summary
	}

	tasks := make(chan *model.User)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for user := range tasks {
				stage, err := o.processUser(ctx, snap, user)
				summary.processed.Add(1)
				if err != nil {
					summary.errored.Add(1)
					summary.mu.Lock()
					summary.errorLogs = append(summary.errorLogs, model.UserError{
						UserID:  user.ID,
						Stage:   stage,
						Message: err.Error(),
						At:      time.Now().UTC(),
					})
					summary.mu.Unlock()
					log.Printf("[orchestrator] User %s failed at %s: %v", user.ID, stage, err)
				} else {
					summary.success.Add(1)
				}
			}
		}()
	}

	// Cooperative cancellation and fail-fast are both checked here, before
	// each new user is scheduled — never mid-task.
	threshold := o.cfg.ErrorRateThreshold
	for i := range users {
		if ctx.Err() != nil {
			summary.cancelled = true
			break
		}
		if float64(summary.errored.Load())/float64(total) > threshold {
			summary.aborted = true
			break
		}
		tasks <- &users[i]
	}
	close(tasks)
	wg.Wait()

	// A final check: the threshold may only be crossed by the last users.
	if !summary.aborted && float64(summary.errored.Load())/float64(total) > threshold {
		summary.aborted = true
	}
	return summary
}

// processUser runs candidate generation → scoring → selection → write for
// one user. It returns the failed stage name alongside the error so the
// run's error log stays actionable.
func (o *Orchestrator) processUser(ctx context.Context, snap *snapshot.Snapshot, user *model.User) (stage string, err error) {
	// The task keeps running even if the run is cancelled; only the
	// per-user timeout bounds it.
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.UserTaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			stage, err = "panic", fmt.Errorf("panic: %v", r)
		}
	}()

	profile := snap.Profile(user.ID)
	if profile == nil {
		return "profile", fmt.Errorf("no profile for user %s", user.ID)
	}

	candidates := matching.GenerateCandidates(
		user, profile, snap.Jobs, snap.Enrichment(),
		snap.RecentApplications(user.ID), snap.BatchDate, o.cfg.CandidateCap,
	)

	scored := make([]matching.ScoredCandidate, 0, len(candidates))
	for _, cand := range candidates {
		scored = append(scored, o.scorer.Score(user, profile, cand))
	}
	matching.SortCandidates(scored)

	if taskCtx.Err() != nil {
		return "scoring", fmt.Errorf("task timeout: %w", taskCtx.Err())
	}

	mappings := matching.BuildMappings(user.ID, snap.BatchDate, scored)
	picks := matching.SelectPicks(user.ID, snap.BatchDate, scored, o.cfg.CompanyCap)

	// Zero candidates is not an error: the empty write clears any stale
	// rows from an earlier attempt for this user/date.
	if err := o.writeWithRetry(taskCtx, user.ID, snap.BatchDate, mappings, picks); err != nil {
		return "write", err
	}
	return "", nil
}

// writeWithRetry retries transient write failures with linear backoff
// before the user counts as failed.
func (o *Orchestrator) writeWithRetry(ctx context.Context, userID string, batchDate time.Time, mappings []model.Mapping, picks []model.DailyPick) error {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.RetryAttempts; attempt++ {
		lastErr = o.writer.WriteUser(ctx, userID, batchDate, mappings, picks)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("task timeout: %w", ctx.Err())
		}
		if attempt < o.cfg.RetryAttempts {
			time.Sleep(time.Duration(attempt) * o.cfg.RetryBackoff)
		}
	}
	return fmt.Errorf("write failed after %d attempts: %w", o.cfg.RetryAttempts, lastErr)
}

func (o *Orchestrator) finish(ctx context.Context, run *model.BatchRun, status RunStatus, lastError string) {
	from := RunStatus(run.Status)
	if !IsTransitionAllowed(from, status) {
		log.Printf("[orchestrator] Run %s: illegal transition %s → %s", run.ID, from, status)
		return
	}
	run.Status = string(status)
	if lastError != "" {
		run.LastErrorMessage = &lastError
	}
	finished := time.Now().UTC()
	run.FinishedAt = &finished

	// Persist with a context that survives cancellation: the terminal row
	// is what the monitoring surface reads.
	if err := o.runs.Update(context.WithoutCancel(ctx), run); err != nil {
		log.Printf("[orchestrator] Run %s: persist %s failed: %v", run.ID, status, err)
	}
	o.publish(ctx, run)
}

func (o *Orchestrator) publish(ctx context.Context, run *model.BatchRun) {
	event := RunEvent{
		Type:         "EVENT_DIGEST_RUN",
		RunID:        run.ID,
		BatchDate:    run.BatchDate.Format("2006-01-02"),
		Status:       run.Status,
		SuccessCount: run.SuccessCount,
		ErrorCount:   run.ErrorCount,
	}
	if err := o.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		log.Printf("[orchestrator] Publish run event failed: %v", err)
	}
}

func (o *Orchestrator) workerCount(opts Options) int {
	if opts.Concurrency > 0 {
		return opts.Concurrency
	}
	return o.cfg.Concurrency
}

func filterUsers(users []model.User, userIDs []string) []model.User {
	if len(userIDs) == 0 {
		return users
	}
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	subset := make([]model.User, 0, len(userIDs))
	for _, u := range users {
		if wanted[u.ID] {
			subset = append(subset, u)
		}
	}
	return subset
}
