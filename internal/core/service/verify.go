package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/criu"
	"github.com/yndnr/quicksave-go/internal/storage/catalog"
	"github.com/yndnr/quicksave-go/internal/storage/snapshot"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

// Verify checks that the artifact at ref restores, without leaving a
// resumed process behind and without touching the artifact.
//
// The image is restored detached from a disposable working directory.
// When the primitive succeeds and wrote the pidfile, the resumed leader
// receives SIGTERM; a leader that is already gone is not an error.
func (s *SnapshotService) Verify(ctx context.Context, ref string) (*domain.Result, error) {
	start := time.Now()
	ctx, res := s.begin(ctx, domain.OpVerify)
	log := logger.L(ctx)

	artifact, err := s.store.Stat(s.store.Resolve(ref))
	if err != nil {
		fail(res, domain.OutcomeNotStarted, err)
		return s.finish(ctx, res, start)
	}
	res.Artifact = artifact
	s.enrich(ctx, artifact)

	if err := s.checkDigest(ctx, artifact); err != nil {
		fail(res, domain.OutcomeNotStarted, err)
		return s.finish(ctx, res, start)
	}

	workDir, err := s.store.NewWorkDir(snapshot.WorkVerify)
	if err != nil {
		fail(res, domain.OutcomeNotStarted, err)
		return s.finish(ctx, res, start)
	}
	defer removeWorkDir(ctx, workDir)

	defer func() {
		if res.Outcome == domain.OutcomeNotStarted {
			return
		}
		if err := s.catalog.MarkVerified(ctx, artifact.Name, res.OK(), time.Now()); err != nil && !errors.Is(err, catalog.ErrNotFound) {
			log.Warn("failed to record verify outcome", "error", err)
		}
	}()

	if _, err := s.codec.Unpack(artifact.Path, workDir); err != nil {
		fail(res, domain.OutcomeFailed, err)
		return s.finish(ctx, res, start)
	}
	if err := criu.CheckImages(workDir); err != nil {
		fail(res, domain.OutcomeFailed, err)
		return s.finish(ctx, res, start)
	}

	pidfile := filepath.Join(workDir, s.opts.PidfileName)
	exe, err := s.runner.Run(ctx, criu.Invocation{
		Args:     s.builder.DetachedRestore(workDir, pidfile),
		Dir:      workDir,
		Terminal: s.opts.Terminal && s.builder.Privilege == criu.Elevated,
	})
	res.Output = output(exe)
	if err != nil {
		fail(res, domain.OutcomeFailed, err)
		return s.finish(ctx, res, start)
	}

	if pid, ok := readPidfile(pidfile); ok {
		if err := criu.Terminate(pid); err != nil {
			log.Warn("failed to terminate verified process", "pid", int(pid), "error", err)
		} else {
			log.Debug("verified process terminated", "pid", int(pid))
		}
	}

	res.Outcome = domain.OutcomeSucceeded
	return s.finish(ctx, res, start)
}

func readPidfile(path string) (domain.ProcessID, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return domain.ProcessID(pid), true
}

// Inspection describes the contents of an artifact.
type Inspection struct {
	Artifact *domain.Artifact `json:"artifact" yaml:"artifact"`
	Codec    string           `json:"codec" yaml:"codec"`
	Tasks    []criu.Task      `json:"tasks" yaml:"tasks"`
	Record   *catalog.Record  `json:"record,omitempty" yaml:"record,omitempty"`
}

// Inspect unpacks the artifact at ref into a disposable directory and
// decodes its process tree. The artifact is not modified.
func (s *SnapshotService) Inspect(ctx context.Context, ref string) (*Inspection, error) {
	start := time.Now()
	ctx, res := s.begin(ctx, domain.OpInspect)

	artifact, err := s.store.Stat(s.store.Resolve(ref))
	if err != nil {
		fail(res, domain.OutcomeNotStarted, err)
		_, err = s.finish(ctx, res, start)
		return nil, err
	}
	res.Artifact = artifact
	ins := &Inspection{Artifact: artifact, Record: s.enrich(ctx, artifact)}

	workDir, err := s.store.NewWorkDir(snapshot.WorkInspect)
	if err != nil {
		fail(res, domain.OutcomeNotStarted, err)
		_, err = s.finish(ctx, res, start)
		return nil, err
	}
	defer removeWorkDir(ctx, workDir)

	if ins.Codec, err = s.codec.Unpack(artifact.Path, workDir); err != nil {
		fail(res, domain.OutcomeFailed, err)
		_, err = s.finish(ctx, res, start)
		return nil, err
	}
	if ins.Tasks, err = criu.ReadPstree(workDir); err != nil {
		fail(res, domain.OutcomeFailed, err)
		_, err = s.finish(ctx, res, start)
		return nil, err
	}

	res.Outcome = domain.OutcomeSucceeded
	s.finish(ctx, res, start)
	return ins, nil
}
