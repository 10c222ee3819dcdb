package service

import (
	"context"
	"time"

	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/criu"
	"github.com/yndnr/quicksave-go/internal/storage/catalog"
	"github.com/yndnr/quicksave-go/internal/storage/snapshot"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

// DumpRequest contains parameters for a dump.
type DumpRequest struct {
	// Processes is the target set, leader first. Only the leader is
	// handed to the primitive.
	Processes domain.ProcessSet
	// Label is optional and prefixes the artifact name.
	Label string
	// Verdict is the precheck verdict the caller accepted, if any.
	Verdict domain.VerdictLevel
}

// Dump checkpoints the leader of req.Processes into a new artifact.
//
// Elevated callers run a pre-dump pass before the final dump;
// unprivileged callers run the final dump only. Compression starts only
// after the primitive succeeded, and a failed dump leaves no artifact.
func (s *SnapshotService) Dump(ctx context.Context, req *DumpRequest) (*domain.Result, error) {
	start := time.Now()
	ctx, res := s.begin(ctx, domain.OpDump)
	log := logger.L(ctx)

	// 1. Validate the process set
	if req == nil {
		req = &DumpRequest{}
	}
	if err := req.Processes.Validate(); err != nil {
		fail(res, domain.OutcomeNotStarted, err)
		return s.finish(ctx, res, start)
	}
	leader := req.Processes.Leader()

	// 2. Allocate the working directory
	workDir, err := s.store.NewWorkDir(snapshot.WorkDump)
	if err != nil {
		fail(res, domain.OutcomeNotStarted, err)
		return s.finish(ctx, res, start)
	}
	defer removeWorkDir(ctx, workDir)

	// 3. Checkpoint
	if s.builder.TwoPhase() {
		log.Info("pre-dump", "leader", int(leader), "dir", workDir)
		exe, err := s.runner.Run(ctx, criu.Invocation{Args: s.builder.PreDump(workDir, leader), Dir: workDir})
		if err != nil {
			res.Output = output(exe)
			fail(res, domain.OutcomeFailed, err)
			return s.finish(ctx, res, start)
		}
	}

	log.Info("dump", "leader", int(leader), "privilege", s.builder.Privilege.String(), "dir", workDir)
	exe, err := s.runner.Run(ctx, criu.Invocation{Args: s.builder.Dump(workDir, leader), Dir: workDir})
	res.Output = output(exe)
	if err != nil {
		fail(res, domain.OutcomeFailed, err)
		return s.finish(ctx, res, start)
	}
	if err := criu.CheckImages(workDir); err != nil {
		fail(res, domain.OutcomeFailed, err)
		return s.finish(ctx, res, start)
	}

	// 4. Pack into the home
	now := s.opts.Now()
	path := s.store.PathFor(req.Label, now)
	log.Info("compress", "artifact", path, "codec", s.codec.Primary())
	packed, err := s.codec.Pack(workDir, path)
	if err != nil {
		fail(res, domain.OutcomeFailed, err)
		return s.finish(ctx, res, start)
	}

	artifact, err := s.store.Stat(packed.Path)
	if err != nil {
		fail(res, domain.OutcomeFailed, err)
		return s.finish(ctx, res, start)
	}
	artifact.Codec = packed.Codec
	artifact.Digest = packed.Digest
	artifact.Leader = leader
	res.Artifact = artifact

	// 5. Record metadata
	rec := &catalog.Record{
		ID:        res.OpID,
		Name:      artifact.Name,
		Label:     artifact.Label,
		Leader:    leader,
		Processes: req.Processes,
		Codec:     packed.Codec,
		Digest:    packed.Digest,
		Size:      packed.Size,
		CreatedAt: now.UTC(),
		Verdict:   req.Verdict,
	}
	if err := s.catalog.Put(ctx, rec); err != nil {
		log.Warn("failed to record artifact in catalog", "error", err)
	}

	res.Outcome = domain.OutcomeSucceeded

	// 6. Retention
	if s.opts.Keep > 0 {
		if _, err := s.Prune(ctx, s.opts.Keep); err != nil {
			log.Warn("retention prune failed", "error", err)
		}
	}

	log.Info("dump written", "artifact", artifact.Path, "size_mib", float64(artifact.Size)/(1<<20))
	return s.finish(ctx, res, start)
}

func output(exe *criu.Execution) string {
	if exe == nil {
		return ""
	}
	return exe.Output
}
