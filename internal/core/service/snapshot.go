package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/criu"
	"github.com/yndnr/quicksave-go/internal/storage/archive"
	"github.com/yndnr/quicksave-go/internal/storage/catalog"
	"github.com/yndnr/quicksave-go/internal/storage/snapshot"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
	"github.com/yndnr/quicksave-go/internal/telemetry/metric"
)

// Primitive runs the checkpoint tool. *criu.Runner implements it.
type Primitive interface {
	Run(ctx context.Context, inv criu.Invocation) (*criu.Execution, error)
}

// TreeResolver expands a root pid into a ProcessSet. *proc.Resolver
// implements it.
type TreeResolver interface {
	Resolve(root domain.ProcessID) (domain.ProcessSet, error)
	FindByName(name string) ([]domain.ProcessID, error)
}

// Prechecker samples a ProcessSet. *proc.Prechecker implements it.
type Prechecker interface {
	Check(ctx context.Context, set domain.ProcessSet) *domain.CompatibilityReport
}

// Deps are the collaborators of SnapshotService. Catalog and Metrics
// are optional.
type Deps struct {
	Builder  *criu.Builder
	Runner   Primitive
	Codec    *archive.Codec
	Store    *snapshot.Manager
	Resolver TreeResolver
	Checker  Prechecker
	Catalog  *catalog.Catalog
	Metrics  *metric.Registry
	Logger   logger.Logger
}

// Options tune the pipelines.
type Options struct {
	// Terminal runs foreground restores under the terminal wrapper.
	Terminal bool
	// PidfileName is the file the detached verify restore writes.
	PidfileName string
	// IPCThreshold feeds the compatibility verdict.
	IPCThreshold int
	// Keep prunes the home to the newest Keep artifacts after a dump.
	Keep int
	// Stdout and Stderr receive the foreground restore's output.
	Stdout io.Writer
	Stderr io.Writer
	// Now is the clock used for artifact names.
	Now func() time.Time
}

// SnapshotService drives the checkpoint primitive and owns the
// artifacts in the snapshot home.
type SnapshotService struct {
	builder  *criu.Builder
	runner   Primitive
	codec    *archive.Codec
	store    *snapshot.Manager
	resolver TreeResolver
	checker  Prechecker
	catalog  *catalog.Catalog
	metrics  *metric.Registry
	logger   logger.Logger
	opts     Options
}

// NewSnapshotService creates a SnapshotService.
func NewSnapshotService(deps Deps, opts Options) (*SnapshotService, error) {
	switch {
	case deps.Builder == nil:
		return nil, fmt.Errorf("service: builder is required")
	case deps.Runner == nil:
		return nil, fmt.Errorf("service: runner is required")
	case deps.Codec == nil:
		return nil, fmt.Errorf("service: codec is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("service: snapshot store is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	if opts.PidfileName == "" {
		opts.PidfileName = "restored.pid"
	}
	if opts.IPCThreshold <= 0 {
		opts.IPCThreshold = domain.DefaultIPCThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &SnapshotService{
		builder:  deps.Builder,
		runner:   deps.Runner,
		codec:    deps.Codec,
		store:    deps.Store,
		resolver: deps.Resolver,
		checker:  deps.Checker,
		catalog:  deps.Catalog,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		opts:     opts,
	}, nil
}

// Home returns the snapshot home.
func (s *SnapshotService) Home() string {
	return s.store.Home()
}

// ============================================================================
// Pre-dump Helpers
// ============================================================================

// ResolveProcessTree returns root followed by its current descendants.
func (s *SnapshotService) ResolveProcessTree(ctx context.Context, root domain.ProcessID) (domain.ProcessSet, error) {
	if s.resolver == nil {
		return domain.NewProcessSet(root), nil
	}
	set, err := s.resolver.Resolve(root)
	if err != nil {
		return nil, err
	}
	logger.L(ctx).Debug("process tree resolved", "leader", int(root), "processes", set.String())
	return set, nil
}

// FindByName returns the pids whose command name is name.
func (s *SnapshotService) FindByName(ctx context.Context, name string) ([]domain.ProcessID, error) {
	if s.resolver == nil {
		return nil, domain.ErrProcessNotFound.WithDetails(name)
	}
	pids, err := s.resolver.FindByName(name)
	if err != nil {
		return nil, err
	}
	if len(pids) == 0 {
		return nil, domain.ErrProcessNotFound.WithDetails(fmt.Sprintf("no process named %q", name))
	}
	return pids, nil
}

// CheckCompatibility samples set and derives the verdict. It never
// fails; the caller decides whether to proceed.
func (s *SnapshotService) CheckCompatibility(ctx context.Context, set domain.ProcessSet) (*domain.CompatibilityReport, domain.Verdict) {
	report := &domain.CompatibilityReport{Cmdlines: make([]string, len(set))}
	if s.checker != nil {
		report = s.checker.Check(ctx, set)
	}
	verdict := report.Explain(s.opts.IPCThreshold)
	s.metrics.ObserveVerdict(verdict)

	log := logger.L(ctx)
	for i, line := range report.Cmdlines {
		if i < len(set) {
			log.Debug("sampled command line", "pid", int(set[i]), "cmdline", line)
		}
	}
	log.Info("compatibility checked", "verdict", string(verdict.Level), "processes", len(set))
	return report, verdict
}

// ============================================================================
// Housekeeping
// ============================================================================

// List returns the artifacts in the home, enriched with catalog metadata.
func (s *SnapshotService) List(ctx context.Context) ([]*domain.Artifact, error) {
	artifacts, err := s.store.List()
	if err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		s.enrich(ctx, a)
	}
	return artifacts, nil
}

// Backups returns backup files left in the home.
func (s *SnapshotService) Backups() ([]string, error) {
	return s.store.Backups()
}

// Delete removes an artifact and its catalog record.
func (s *SnapshotService) Delete(ctx context.Context, ref string) error {
	path := s.store.Resolve(ref)
	if err := s.store.Delete(path); err != nil {
		return err
	}
	s.forget(ctx, filepath.Base(path))
	return nil
}

// Prune keeps the newest keep artifacts and drops stale catalog records.
func (s *SnapshotService) Prune(ctx context.Context, keep int) ([]string, error) {
	removed, err := s.store.Prune(keep)
	if err != nil {
		return nil, err
	}
	for _, path := range removed {
		s.forget(ctx, filepath.Base(path))
	}

	artifacts, err := s.store.List()
	if err != nil {
		return removed, err
	}
	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		names = append(names, a.Name)
	}
	if _, err := s.catalog.Reconcile(ctx, names); err != nil {
		logger.L(ctx).Warn("catalog reconcile failed", "error", err)
	}
	return removed, nil
}

// Recover renames backups left by an interrupted restore back to their
// artifact names.
func (s *SnapshotService) Recover(ctx context.Context) ([]string, error) {
	return s.store.RecoverBackups()
}

// ============================================================================
// Internal
// ============================================================================

// begin starts a pipeline call: it assigns the operation id and returns
// the context and result to fill in.
func (s *SnapshotService) begin(ctx context.Context, op domain.Op) (context.Context, *domain.Result) {
	ctx = logger.WithLogger(ctx, s.logger)
	if logger.OperationIDFromContext(ctx) == "" {
		ctx = logger.WithOperationID(ctx, "")
	}
	return ctx, &domain.Result{Op: op, OpID: logger.OperationIDFromContext(ctx)}
}

// finish stamps the elapsed time, logs and records the result, and
// returns it together with its reason.
func (s *SnapshotService) finish(ctx context.Context, res *domain.Result, start time.Time) (*domain.Result, error) {
	res.Elapsed = time.Since(start)
	log := logger.L(ctx).With("outcome", string(res.Outcome), "elapsed", res.Elapsed)
	if res.Artifact != nil {
		log = log.With("artifact", res.Artifact.Name)
	}

	switch res.Outcome {
	case domain.OutcomeSucceeded:
		log.Info(string(res.Op) + " finished")
	case domain.OutcomeCanceled, domain.OutcomeRolledBack:
		log.Warn(string(res.Op)+" finished", "reason", res.Reason)
	default:
		log.Error(string(res.Op)+" finished", "reason", res.Reason)
	}

	s.metrics.ObserveResult(res)
	return res, res.Reason
}

// fail sets the outcome for a primitive or pipeline error.
func fail(res *domain.Result, outcome domain.Outcome, err error) {
	if errors.Is(err, domain.ErrCanceled) && outcome == domain.OutcomeFailed {
		outcome = domain.OutcomeCanceled
	}
	res.Outcome = outcome
	res.Reason = err
}

// removeWorkDir removes a working directory regardless of how the
// pipeline ended.
func removeWorkDir(ctx context.Context, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		logger.L(ctx).Warn("failed to remove working directory", "dir", dir, "error", err)
	}
}

// enrich copies catalog metadata onto a.
func (s *SnapshotService) enrich(ctx context.Context, a *domain.Artifact) *catalog.Record {
	rec, err := s.catalog.Get(ctx, a.Name)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			logger.L(ctx).Warn("catalog lookup failed", "artifact", a.Name, "error", err)
		}
		return nil
	}
	a.Codec = rec.Codec
	a.Digest = rec.Digest
	a.Leader = rec.Leader
	return rec
}

func (s *SnapshotService) forget(ctx context.Context, name string) {
	if err := s.catalog.Delete(ctx, name); err != nil {
		logger.L(ctx).Warn("failed to delete catalog record", "artifact", name, "error", err)
	}
}

// checkDigest compares the artifact bytes with the recorded digest, if
// the catalog has one.
func (s *SnapshotService) checkDigest(ctx context.Context, a *domain.Artifact) error {
	if a.Digest == "" {
		return nil
	}
	sum, err := archive.Digest(a.Path)
	if err != nil {
		return domain.ErrStorage.WithDetails("hash artifact").WithCause(err)
	}
	if sum != a.Digest {
		return domain.ErrDigestMismatch.WithDetails(fmt.Sprintf("%s: recorded %.12s, found %.12s", a.Name, a.Digest, sum))
	}
	logger.L(ctx).Debug("artifact digest verified", "artifact", a.Name)
	return nil
}
