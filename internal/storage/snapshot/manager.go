package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

const (
	timeLayout = "20060102_150405"
	workPrefix = "qs_"
)

// Working directory kinds.
const (
	WorkDump    = "dmp"
	WorkRestore = "res"
	WorkVerify  = "ver"
	WorkInspect = "ins"
)

// Config configures the snapshot manager.
type Config struct {
	// Dir is the snapshot home.
	Dir string
	// WorkDir holds working directories; empty means the OS temp dir.
	WorkDir string
}

// Manager owns the artifacts in the snapshot home.
type Manager struct {
	cfg    Config
	logger logger.Logger
}

// NewManager creates the manager and ensures the home exists.
func NewManager(cfg Config, l logger.Logger) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	abs, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot: resolve dir: %w", err)
	}
	cfg.Dir = abs
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, domain.ErrStorage.WithDetails("create snapshot home").WithCause(err)
	}
	if l == nil {
		l = logger.Default()
	}
	return &Manager{cfg: cfg, logger: l}, nil
}

// Home returns the absolute snapshot home.
func (m *Manager) Home() string {
	return m.cfg.Dir
}

// NewName returns the artifact name for label at t.
func NewName(label string, t time.Time) string {
	ts := t.Format(timeLayout)
	if label = sanitizeLabel(label); label == "" {
		return ts + domain.ArtifactExt
	}
	return label + "_" + ts + domain.ArtifactExt
}

// PathFor returns the home path of a new artifact for label at t.
func (m *Manager) PathFor(label string, t time.Time) string {
	return filepath.Join(m.cfg.Dir, NewName(label, t))
}

// ParseName extracts the label and timestamp from an artifact name. A
// trailing backup suffix is ignored.
func ParseName(name string) (label string, created time.Time, ok bool) {
	name = strings.TrimSuffix(filepath.Base(name), domain.BackupExt)
	stem, found := strings.CutSuffix(name, domain.ArtifactExt)
	if !found || len(stem) < len(timeLayout) {
		return "", time.Time{}, false
	}

	ts := stem[len(stem)-len(timeLayout):]
	created, err := time.ParseInLocation(timeLayout, ts, time.Local)
	if err != nil {
		return "", time.Time{}, false
	}

	prefix := stem[:len(stem)-len(timeLayout)]
	switch {
	case prefix == "":
		return "", created, true
	case strings.HasSuffix(prefix, "_") && len(prefix) > 1:
		return prefix[:len(prefix)-1], created, true
	default:
		return "", time.Time{}, false
	}
}

// sanitizeLabel keeps labels usable as a single path element.
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}

// Resolve turns an artifact reference into a path. A bare name is looked
// up in the home; anything else is used as given.
func (m *Manager) Resolve(ref string) string {
	if !strings.ContainsRune(ref, filepath.Separator) {
		return filepath.Join(m.cfg.Dir, ref)
	}
	if abs, err := filepath.Abs(ref); err == nil {
		return abs
	}
	return ref
}

// Stat describes the artifact at path.
func (m *Manager) Stat(path string) (*domain.Artifact, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrArtifactNotFound.WithDetails(path)
		}
		return nil, domain.ErrStorage.WithDetails("stat artifact").WithCause(err)
	}
	if !st.Mode().IsRegular() {
		return nil, domain.ErrArtifactNotFound.WithDetails(path + " is not a regular file")
	}
	return artifactFromInfo(path, st), nil
}

func artifactFromInfo(path string, st os.FileInfo) *domain.Artifact {
	a := &domain.Artifact{
		Path:      path,
		Name:      filepath.Base(path),
		Size:      st.Size(),
		CreatedAt: st.ModTime(),
	}
	if label, created, ok := ParseName(a.Name); ok {
		a.Label = label
		a.CreatedAt = created
	}
	return a
}

// List returns the artifacts in the home, oldest first. Backups and
// hidden files are skipped.
func (m *Manager) List() ([]*domain.Artifact, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.ErrStorage.WithDetails("read snapshot home").WithCause(err)
	}

	var artifacts []*domain.Artifact
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, domain.ArtifactExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, artifactFromInfo(filepath.Join(m.cfg.Dir, name), info))
	}

	sort.Slice(artifacts, func(i, j int) bool {
		if !artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].CreatedAt.Before(artifacts[j].CreatedAt)
		}
		return artifacts[i].Name < artifacts[j].Name
	})
	return artifacts, nil
}

// Backups returns the backup files present in the home.
func (m *Manager) Backups() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(m.cfg.Dir, "*"+domain.ArtifactExt+domain.BackupExt))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Delete removes an artifact from the home. Paths outside the home are
// refused.
func (m *Manager) Delete(path string) error {
	path = m.Resolve(path)
	if filepath.Dir(path) != m.cfg.Dir {
		return domain.ErrArtifactOutsideHome.WithDetails(path)
	}
	if !strings.HasSuffix(path, domain.ArtifactExt) && !strings.HasSuffix(path, domain.BackupExt) {
		return domain.ErrUnsupportedFormat.WithDetails(filepath.Base(path))
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrArtifactNotFound.WithDetails(path)
		}
		return domain.ErrStorage.WithDetails("delete artifact").WithCause(err)
	}
	m.logger.Info("artifact deleted", "path", path)
	return nil
}

// RecoverBackups renames every backup whose artifact name is free back to
// that name and returns the restored artifact paths. A backup whose
// artifact also exists is left alone for the user to inspect, and a
// backup whose restore still holds the lock is skipped.
func (m *Manager) RecoverBackups() ([]string, error) {
	backups, err := m.Backups()
	if err != nil {
		return nil, err
	}

	var restored []string
	for _, bak := range backups {
		orig := strings.TrimSuffix(bak, domain.BackupExt)
		ok, err := m.recoverBackup(bak, orig)
		if err != nil {
			return restored, err
		}
		if ok {
			restored = append(restored, orig)
		}
	}
	return restored, nil
}

func (m *Manager) recoverBackup(bak, orig string) (bool, error) {
	lock, err := TryLock(orig)
	if err != nil {
		if errors.Is(err, domain.ErrArtifactBusy) {
			m.logger.Debug("restore in progress, leaving backup in place", "backup", bak)
			return false, nil
		}
		return false, err
	}
	defer lock.Release()

	if _, err := os.Lstat(bak); err != nil {
		return false, nil
	}
	if _, err := os.Lstat(orig); err == nil {
		m.logger.Warn("backup and artifact both exist, leaving backup in place", "backup", bak, "artifact", orig)
		return false, nil
	}
	if err := os.Rename(bak, orig); err != nil {
		return false, domain.ErrStorage.WithDetails("recover backup " + filepath.Base(bak)).WithCause(err)
	}
	m.logger.Info("recovered artifact from interrupted restore", "artifact", orig)
	return true, nil
}

// Prune keeps the newest keep artifacts and deletes the rest. A
// non-positive keep disables pruning.
func (m *Manager) Prune(keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	artifacts, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(artifacts) <= keep {
		return nil, nil
	}

	var removed []string
	for _, a := range artifacts[:len(artifacts)-keep] {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("failed to prune artifact", "path", a.Path, "error", err)
			continue
		}
		removed = append(removed, a.Path)
	}
	if len(removed) > 0 {
		m.logger.Info("pruned artifacts", "removed", len(removed), "keep", keep)
	}
	return removed, nil
}

// NewWorkDir creates a private working directory for one pipeline call.
// The caller owns it and must remove it.
func (m *Manager) NewWorkDir(kind string) (string, error) {
	if m.cfg.WorkDir != "" {
		if err := os.MkdirAll(m.cfg.WorkDir, 0700); err != nil {
			return "", domain.ErrStorage.WithDetails("create work dir root").WithCause(err)
		}
	}
	dir, err := os.MkdirTemp(m.cfg.WorkDir, workPrefix+kind+"_")
	if err != nil {
		return "", domain.ErrStorage.WithDetails("create working directory").WithCause(err)
	}
	return dir, nil
}
