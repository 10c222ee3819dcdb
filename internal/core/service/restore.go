package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/criu"
	"github.com/yndnr/quicksave-go/internal/storage/snapshot"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

// Restore resumes the process tree stored in the artifact at ref.
//
// The artifact is renamed to its backup name before the primitive runs.
// On success the backup is deleted; on failure or cancellation it is
// renamed back, so a failed restore never loses the artifact. The
// primitive runs in the foreground, under the terminal wrapper when
// configured. The artifact's restore lock is held throughout, so backup
// recovery in another process leaves this backup alone. Cancellation of
// ctx is honored only while the primitive runs; the rollback and cleanup
// that follow always complete.
func (s *SnapshotService) Restore(ctx context.Context, ref string) (*domain.Result, error) {
	start := time.Now()
	ctx, res := s.begin(ctx, domain.OpRestore)
	log := logger.L(ctx)

	// 1. The artifact must exist
	artifact, err := s.store.Stat(s.store.Resolve(ref))
	if err != nil {
		fail(res, domain.OutcomeNotStarted, err)
		return s.finish(ctx, res, start)
	}
	res.Artifact = artifact
	s.enrich(ctx, artifact)

	lock, err := snapshot.TryLock(artifact.Path)
	if err != nil {
		fail(res, domain.OutcomeNotStarted, err)
		return s.finish(ctx, res, start)
	}
	defer lock.Release()

	// A backup left beside the artifact is never overwritten
	backup := artifact.BackupPath()
	if _, err := os.Lstat(backup); err == nil {
		fail(res, domain.OutcomeNotStarted, domain.ErrArtifactExists.WithDetails("backup "+filepath.Base(backup)+" is still present"))
		return s.finish(ctx, res, start)
	}

	if err := s.checkDigest(ctx, artifact); err != nil {
		fail(res, domain.OutcomeNotStarted, err)
		return s.finish(ctx, res, start)
	}

	// 2. Unpack into a private working directory
	workDir, err := s.store.NewWorkDir(snapshot.WorkRestore)
	if err != nil {
		fail(res, domain.OutcomeNotStarted, err)
		return s.finish(ctx, res, start)
	}
	defer removeWorkDir(ctx, workDir)

	if _, err := s.codec.Unpack(artifact.Path, workDir); err != nil {
		fail(res, domain.OutcomeFailed, err)
		return s.finish(ctx, res, start)
	}
	if err := criu.CheckImages(workDir); err != nil {
		fail(res, domain.OutcomeFailed, err)
		return s.finish(ctx, res, start)
	}

	// 3. Rename to the backup name
	if err := os.Rename(artifact.Path, backup); err != nil {
		fail(res, domain.OutcomeFailed, domain.ErrStorage.WithDetails("rename artifact to backup").WithCause(err))
		return s.finish(ctx, res, start)
	}
	log.Debug("artifact moved to backup", "backup", backup)

	// 4. Restore in the foreground
	log.Info("restore", "artifact", artifact.Name, "privilege", s.builder.Privilege.String())
	exe, runErr := s.runner.Run(ctx, criu.Invocation{
		Args:     s.builder.Restore(workDir),
		Dir:      workDir,
		Stdout:   s.opts.Stdout,
		Stderr:   s.opts.Stderr,
		Terminal: s.opts.Terminal,
	})
	res.Output = output(exe)

	// 5. Commit or roll back
	if runErr != nil {
		if err := os.Rename(backup, artifact.Path); err != nil {
			log.Error("rollback failed, backup kept", "backup", backup, "error", err)
			fail(res, domain.OutcomeFailed, domain.ErrStorage.WithDetails("roll back to "+artifact.Name+", backup kept at "+backup).WithCause(runErr))
			return s.finish(ctx, res, start)
		}
		log.Info("restore rolled back", "artifact", artifact.Path)
		fail(res, domain.OutcomeRolledBack, runErr)
		return s.finish(ctx, res, start)
	}

	if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove backup after restore", "backup", backup, "error", err)
	}
	s.forget(ctx, artifact.Name)

	res.Outcome = domain.OutcomeSucceeded
	return s.finish(ctx, res, start)
}
