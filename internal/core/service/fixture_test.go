package service

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/criu"
	"github.com/yndnr/quicksave-go/internal/storage/archive"
	"github.com/yndnr/quicksave-go/internal/storage/catalog"
	"github.com/yndnr/quicksave-go/internal/storage/snapshot"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
	"github.com/yndnr/quicksave-go/internal/telemetry/metric"
)

// fakeCriu emulates the primitive. Every invocation is appended to the
// calls file. mode selects a failure: dump-fail, restore-fail or
// restore-hang (writes its pid to the ready file, then blocks).
const fakeCriu = `#!/bin/sh
echo "$*" >> '%[1]s'
sub=
dir=
pidfile=
prev=
for a in "$@"; do
  case "$prev" in
    -D) dir=$a ;;
    --pidfile) pidfile=$a ;;
  esac
  case "$a" in
    pre-dump|dump|restore) [ -z "$sub" ] && sub=$a ;;
  esac
  prev=$a
done
mode='%[2]s'
case "$sub" in
  pre-dump)
    echo pre > "$dir/pre.stamp" ;;
  dump)
    if [ "$mode" = dump-fail ]; then
      echo "Error (criu/cr-dump.c:2016): Dumping FAILED." >&2
      exit 1
    fi
    echo inventory > "$dir/inventory.img"
    printf 'page data' > "$dir/pages-1.img"
    chmod 0755 "$dir/pages-1.img" ;;
  restore)
    case "$mode" in
      restore-fail)
        echo "Error (criu/cr-restore.c:1): Restoring FAILED." >&2
        exit 1 ;;
      restore-hang)
        echo $$ > '%[3]s'
        sleep 30 &
        wait
        exit 0 ;;
    esac
    [ -f "$dir/inventory.img" ] || { echo "no images" >&2; exit 2; }
    [ -x "$dir/pages-1.img" ] || { echo "mode lost" >&2; exit 3; }
    if [ -n "$pidfile" ]; then
      sleep 30 >/dev/null 2>&1 &
      echo $! > "$pidfile"
    fi ;;
esac
exit 0
`

type fixture struct {
	svc     *SnapshotService
	home    string
	work    string
	calls   string
	ready   string
	catalog *catalog.Catalog
	metrics *metric.Registry
	clock   time.Time
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	mode    string
	priv    criu.Privilege
	catalog bool
	keep    int
	checker Prechecker
}

func withMode(mode string) fixtureOption {
	return func(c *fixtureConfig) { c.mode = mode }
}

func withPrivilege(p criu.Privilege) fixtureOption {
	return func(c *fixtureConfig) { c.priv = p }
}

func withCatalog() fixtureOption {
	return func(c *fixtureConfig) { c.catalog = true }
}

func withKeep(n int) fixtureOption {
	return func(c *fixtureConfig) { c.keep = n }
}

func withChecker(p Prechecker) fixtureOption {
	return func(c *fixtureConfig) { c.checker = p }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{mode: "ok", priv: criu.Unprivileged}
	for _, opt := range opts {
		opt(&cfg)
	}

	root := t.TempDir()
	f := &fixture{
		home:    filepath.Join(root, "home"),
		work:    filepath.Join(root, "work"),
		calls:   filepath.Join(root, "calls.log"),
		ready:   filepath.Join(root, "ready.pid"),
		metrics: metric.NewRegistry(),
		clock:   time.Date(2025, 6, 1, 10, 0, 0, 0, time.Local),
	}

	script := filepath.Join(root, "criu")
	if err := os.WriteFile(script, []byte(fmt.Sprintf(fakeCriu, f.calls, cfg.mode, f.ready)), 0o755); err != nil {
		t.Fatal(err)
	}

	log := logger.Discard()
	store, err := snapshot.NewManager(snapshot.Config{Dir: f.home, WorkDir: f.work}, log)
	if err != nil {
		t.Fatal(err)
	}
	codec, err := archive.New(archive.Config{Compressors: []string{archive.Zstd}, ZstdLevel: 1}, archive.WithLogger(log))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.catalog {
		f.catalog, err = catalog.Open(filepath.Join(f.home, ".catalog"), log)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { f.catalog.Close() })
	}

	f.svc, err = NewSnapshotService(Deps{
		Builder: criu.NewBuilder(script, cfg.priv),
		Runner:  criu.NewRunner(criu.WithKillGrace(300*time.Millisecond), criu.WithRunnerLogger(log)),
		Codec:   codec,
		Store:   store,
		Checker: cfg.checker,
		Catalog: f.catalog,
		Metrics: f.metrics,
		Logger:  log,
	}, Options{
		Keep: cfg.keep,
		Now:  f.now,
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

// now advances the fake clock one second per artifact.
func (f *fixture) now() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fixture) callLines(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(f.calls)
	if err != nil {
		t.Fatalf("read calls: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// dump produces an artifact for the test process.
func (f *fixture) dump(t *testing.T, label string) *domain.Artifact {
	t.Helper()
	res, err := f.svc.Dump(t.Context(), &DumpRequest{Processes: domain.NewProcessSet(domain.ProcessID(os.Getpid())), Label: label})
	if err != nil {
		t.Fatalf("Dump() error = %v (output %q)", err, res.Output)
	}
	return res.Artifact
}

func (f *fixture) assertWorkDirsRemoved(t *testing.T) {
	t.Helper()
	entries, _ := os.ReadDir(f.work)
	if len(entries) != 0 {
		t.Errorf("working directories left behind: %d", len(entries))
	}
}

func (f *fixture) assertNoBackups(t *testing.T) {
	t.Helper()
	baks, _ := filepath.Glob(filepath.Join(f.home, "*.bak"))
	if len(baks) != 0 {
		t.Errorf("backup files left behind: %v", baks)
	}
	locks, _ := filepath.Glob(filepath.Join(f.home, "*"+snapshot.LockExt))
	if len(locks) != 0 {
		t.Errorf("lock files left behind: %v", locks)
	}
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}

func assertUnchanged(t *testing.T, path string, before []byte) {
	t.Helper()
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("artifact %s missing: %v", path, err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("artifact %s changed", path)
	}
}
