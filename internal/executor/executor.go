// Package executor runs builds: it opens a check run, resolves and
// materializes the test cases of a commit, validates them, aggregates the
// outcome and closes the check run.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/metrics"
)

// finalizeTimeout bounds the check run update and the result save, which run
// even when the build context is already done.
const finalizeTimeout = 30 * time.Second

// stagedProvider is implemented by providers that expose resolution and
// materialization as separate steps.
type stagedProvider interface {
	Resolve(ctx context.Context, repo domain.Repository, commit string) (domain.RepositoryConfiguration, domain.Manifest, error)
	Materialize(ctx context.Context, repo domain.Repository, commit string, cfg domain.RepositoryConfiguration, manifest domain.Manifest) ([]domain.TestCase, error)
}

// wrapper is implemented by provider decorators.
type wrapper interface {
	Unwrap() domain.RepositoryProvider
}

// staged finds a stagedProvider in p or the providers it decorates.
// Raw content fetches carry no credentials, so skipping decorators here is safe.
func staged(p domain.RepositoryProvider) (stagedProvider, bool) {
	for p != nil {
		if s, ok := p.(stagedProvider); ok {
			return s, true
		}
		w, ok := p.(wrapper)
		if !ok {
			return nil, false
		}
		p = w.Unwrap()
	}
	return nil, false
}

// Executor implements domain.BuildExecutor.
type Executor struct {
	provider  domain.RepositoryProvider
	validator domain.Validator
	strategy  Strategy
	store     domain.BuildResultStore
	recorder  *metrics.Recorder
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// Ensure Executor implements domain.BuildExecutor.
var _ domain.BuildExecutor = (*Executor)(nil)

// Option configures an Executor.
type Option func(*Executor)

// WithStrategy sets how test cases are run. Defaults to Sequential.
func WithStrategy(s Strategy) Option {
	return func(e *Executor) { e.strategy = s }
}

// WithStore persists every terminal result.
func WithStore(s domain.BuildResultStore) Option {
	return func(e *Executor) { e.store = s }
}

// WithRecorder records build metrics.
func WithRecorder(r *metrics.Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithIDGenerator overrides build id generation, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(e *Executor) { e.newID = gen }
}

// New creates an Executor.
func New(provider domain.RepositoryProvider, validator domain.Validator, opts ...Option) *Executor {
	e := &Executor{
		provider:  provider,
		validator: validator,
		strategy:  Sequential{},
		logger:    zap.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewBuild prepares a build for commit of repo with a fresh id.
func (e *Executor) NewBuild(repo domain.Repository, commit string) domain.Build {
	return domain.Build{
		ID: e.newID(),
		Metadata: domain.Metadata{
			Owner:  repo.Owner,
			Repo:   repo.Name,
			Commit: commit,
		},
	}
}

// ExecuteBuild runs build to a terminal result. It never returns an error:
// every failure is reported through the result status and metadata.
// A check run that was created is updated exactly once, even if a stage panics.
func (e *Executor) ExecuteBuild(ctx context.Context, build domain.Build) (result domain.BuildResult) {
	if build.ID == "" {
		build.ID = e.newID()
	}
	meta := build.Metadata.Clone()
	repo := meta.Repository()
	started := e.now()
	log := e.logger.With(
		zap.String("build_id", build.ID),
		zap.String("repository", repo.String()),
		zap.String("commit", meta.Commit),
	)

	e.recorder.BuildStarted()
	log.Info("build started")

	var cause error
	defer func() {
		if r := recover(); r != nil {
			log.Error("build panicked", zap.Any("panic", r), zap.Stack("stack"))
			cause = fmt.Errorf("panic: %v", r)
			result = e.cancelled(build.ID, meta, started, cause)
		}
		e.finalize(ctx, repo, result, cause, log)
	}()

	checkRunID, err := e.provider.CreateCheck(ctx, repo, meta.Commit)
	if err != nil {
		log.Error("creating check run", zap.Error(err))
		cause = err
		return e.cancelled(build.ID, meta, started, err)
	}
	meta.CheckRunID = checkRunID

	results, err := e.run(ctx, repo, meta.Commit, log)
	if err != nil {
		log.Warn("build cancelled", zap.Error(err), zap.String("check_title", string(domain.CheckTitleFor(err))))
		cause = err
		return e.cancelled(build.ID, meta, started, err)
	}
	return domain.BuildResult{
		ID:              build.ID,
		Metadata:        meta,
		Status:          Aggregate(results, false),
		TestCaseResults: results,
		StartedAt:       started,
		FinishedAt:      e.now(),
	}
}

// run walks the build through its stages and returns the ordered results, or
// the infrastructure failure that cancelled it.
func (e *Executor) run(ctx context.Context, repo domain.Repository, commit string, log *zap.Logger) ([]domain.TestCaseResult, error) {
	lc := newLifecycle(func(from, to State) {
		log.Debug("build state changed", zap.String("from", string(from)), zap.String("to", string(to)))
	})
	fail := func(err error) ([]domain.TestCaseResult, error) {
		if cerr := lc.Cancel(); cerr != nil {
			log.Error("cancelling build", zap.Error(cerr))
		}
		return nil, err
	}

	cases, err := e.testCases(ctx, repo, commit, lc)
	if err != nil {
		return fail(err)
	}
	if err := lc.Transition(StateMaterializing, StateRunning); err != nil {
		return fail(err)
	}
	log.Info("running test cases", zap.Int("count", len(cases)))

	results, err := e.strategy.Run(ctx, e.validator, cases)
	if err != nil {
		return fail(err)
	}
	if err := lc.Transition(StateRunning, StateAggregated); err != nil {
		return fail(err)
	}
	return results, nil
}

func (e *Executor) testCases(ctx context.Context, repo domain.Repository, commit string, lc *lifecycle) ([]domain.TestCase, error) {
	sp, ok := staged(e.provider)
	if !ok {
		cases, err := e.provider.ListTestCases(ctx, repo, commit)
		if err != nil {
			return nil, err
		}
		return cases, lc.Transition(StateResolving, StateMaterializing)
	}

	cfg, manifest, err := sp.Resolve(ctx, repo, commit)
	if err != nil {
		return nil, err
	}
	if err := lc.Transition(StateResolving, StateMaterializing); err != nil {
		return nil, err
	}
	return sp.Materialize(ctx, repo, commit, cfg, manifest)
}

func (e *Executor) cancelled(id string, meta domain.Metadata, started time.Time, cause error) domain.BuildResult {
	meta.Exceptions = true
	meta.CheckTitle = domain.CheckTitleFor(cause)
	return domain.BuildResult{
		ID:         id,
		Metadata:   meta,
		Status:     domain.BuildCancelled,
		StartedAt:  started,
		FinishedAt: e.now(),
	}
}

// finalize closes the check run, persists the result and records metrics.
func (e *Executor) finalize(ctx context.Context, repo domain.Repository, result domain.BuildResult, cause error, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if id := result.Metadata.CheckRunID; id != "" {
		if err := e.provider.UpdateCheck(ctx, repo, id, result.Status, Output(result, cause)); err != nil {
			log.Error("updating check run", zap.String("check_run_id", id), zap.Error(err))
		}
	}
	if e.store != nil {
		if err := e.store.Save(ctx, result); err != nil {
			log.Error("saving build result", zap.Error(err))
		}
	}
	e.recorder.BuildFinished(result)
	log.Info("build finished",
		zap.String("status", string(result.Status)),
		zap.Int("passed", result.Passed()),
		zap.Int("total", len(result.TestCaseResults)),
		zap.Duration("duration", result.Duration()),
	)
}
