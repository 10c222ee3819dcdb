package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/quicksave-go/internal/core/domain"
	"github.com/yndnr/quicksave-go/internal/telemetry/logger"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{Dir: filepath.Join(t.TempDir(), "home"), WorkDir: t.TempDir()}, logger.Discard())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func touch(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestNewManager(t *testing.T) {
	if _, err := NewManager(Config{}, nil); err == nil {
		t.Fatal("NewManager without dir should fail")
	}

	m := newTestManager(t)
	st, err := os.Stat(m.Home())
	if err != nil || !st.IsDir() {
		t.Fatalf("home not created: %v", err)
	}
	if st.Mode().Perm() != 0o700 {
		t.Errorf("home mode = %v, want 0700", st.Mode().Perm())
	}
}

func TestNewName(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.Local)
	tests := []struct {
		label string
		want  string
	}{
		{"t1", "t1_20250304_050607.qsnap"},
		{"", "20250304_050607.qsnap"},
		{"  ", "20250304_050607.qsnap"},
		{"my app/v2", "my-app-v2_20250304_050607.qsnap"},
		{"../up", "-up_20250304_050607.qsnap"},
	}
	for _, tt := range tests {
		if got := NewName(tt.label, at); got != tt.want {
			t.Errorf("NewName(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestParseName(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.Local)
	tests := []struct {
		name  string
		label string
		ok    bool
	}{
		{"t1_20250304_050607.qsnap", "t1", true},
		{"my_app_20250304_050607.qsnap", "my_app", true},
		{"20250304_050607.qsnap", "", true},
		{"t1_20250304_050607.qsnap.bak", "t1", true},
		{"t1-20250304_050607.qsnap", "", false},
		{"notes.qsnap", "", false},
		{"t1_20250304_050607.tar", "", false},
	}
	for _, tt := range tests {
		label, created, ok := ParseName(tt.name)
		if ok != tt.ok || label != tt.label {
			t.Errorf("ParseName(%q) = %q, %v; want %q, %v", tt.name, label, ok, tt.label, tt.ok)
			continue
		}
		if ok && !created.Equal(at) {
			t.Errorf("ParseName(%q) time = %v, want %v", tt.name, created, at)
		}
	}
}

func TestManager_List(t *testing.T) {
	m := newTestManager(t)
	home := m.Home()

	touch(t, filepath.Join(home, "b_20250102_000000.qsnap"), "bb")
	touch(t, filepath.Join(home, "a_20250101_000000.qsnap"), "a")
	touch(t, filepath.Join(home, "c_20250103_000000.qsnap.bak"), "c")
	touch(t, filepath.Join(home, ".a_20250104_000000.qsnap.tmp-1"), "tmp")
	touch(t, filepath.Join(home, "config.yaml"), "x: 1")
	os.Mkdir(filepath.Join(home, ".catalog"), 0o700)

	list, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d artifacts, want 2", len(list))
	}
	if list[0].Label != "a" || list[1].Label != "b" {
		t.Errorf("List order = %s, %s", list[0].Name, list[1].Name)
	}
	if list[1].Size != 2 {
		t.Errorf("Size = %d, want 2", list[1].Size)
	}
}

func TestManager_Delete(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(m.Home(), "a_20250101_000000.qsnap")
	touch(t, path, "a")

	outside := filepath.Join(t.TempDir(), "x_20250101_000000.qsnap")
	touch(t, outside, "x")
	if err := m.Delete(outside); !errors.Is(err, domain.ErrArtifactOutsideHome) {
		t.Errorf("Delete(outside) = %v, want ErrArtifactOutsideHome", err)
	}
	if _, err := os.Stat(outside); err != nil {
		t.Error("file outside the home was removed")
	}

	if err := m.Delete(filepath.Join(m.Home(), "config.yaml")); !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("Delete(config) = %v, want ErrUnsupportedFormat", err)
	}

	if err := m.Delete("a_20250101_000000.qsnap"); err != nil {
		t.Fatalf("Delete(name) = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("artifact still exists")
	}
	if err := m.Delete(path); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Errorf("second Delete = %v, want ErrArtifactNotFound", err)
	}
}

func TestManager_RecoverBackups(t *testing.T) {
	m := newTestManager(t)
	home := m.Home()

	stray := filepath.Join(home, "a_20250101_000000.qsnap")
	touch(t, stray+".bak", "stray")

	both := filepath.Join(home, "b_20250101_000000.qsnap")
	touch(t, both, "new")
	touch(t, both+".bak", "old")

	restored, err := m.RecoverBackups()
	if err != nil {
		t.Fatalf("RecoverBackups: %v", err)
	}
	if len(restored) != 1 || restored[0] != stray {
		t.Fatalf("restored = %v, want [%s]", restored, stray)
	}
	data, _ := os.ReadFile(stray)
	if string(data) != "stray" {
		t.Error("recovered artifact has wrong contents")
	}
	if _, err := os.Stat(stray + ".bak"); !os.IsNotExist(err) {
		t.Error("recovered backup still present")
	}

	data, _ = os.ReadFile(both)
	if string(data) != "new" {
		t.Error("existing artifact was overwritten")
	}
	if _, err := os.Stat(both + ".bak"); err != nil {
		t.Error("conflicting backup should be left in place")
	}
}

func TestManager_RecoverBackups_SkipsLocked(t *testing.T) {
	m := newTestManager(t)
	artifact := filepath.Join(m.Home(), "busy_20250101_000000.qsnap")
	touch(t, artifact+".bak", "in flight")

	lock, err := TryLock(artifact)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}

	restored, err := m.RecoverBackups()
	if err != nil || len(restored) != 0 {
		t.Fatalf("RecoverBackups while locked = %v, %v; want nothing", restored, err)
	}
	if _, err := os.Stat(artifact + ".bak"); err != nil {
		t.Fatal("locked backup was moved")
	}
	if _, err := os.Stat(artifact); !os.IsNotExist(err) {
		t.Fatal("artifact name was taken while locked")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	restored, err = m.RecoverBackups()
	if err != nil || len(restored) != 1 || restored[0] != artifact {
		t.Fatalf("RecoverBackups after release = %v, %v", restored, err)
	}
}

func TestTryLock(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "x_20250101_000000.qsnap")

	first, err := TryLock(artifact)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if _, err := TryLock(artifact); !errors.Is(err, domain.ErrArtifactBusy) {
		t.Fatalf("second TryLock error = %v, want ErrArtifactBusy", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if _, err := os.Stat(artifact + LockExt); !os.IsNotExist(err) {
		t.Error("lock file not removed on release")
	}

	again, err := TryLock(artifact)
	if err != nil {
		t.Fatalf("TryLock after release: %v", err)
	}
	again.Release()
}

func TestManager_Prune(t *testing.T) {
	m := newTestManager(t)
	home := m.Home()
	names := []string{
		"x_20250101_000000.qsnap",
		"x_20250102_000000.qsnap",
		"x_20250103_000000.qsnap",
		"x_20250104_000000.qsnap",
	}
	for _, n := range names {
		touch(t, filepath.Join(home, n), n)
	}

	if removed, _ := m.Prune(0); removed != nil {
		t.Errorf("Prune(0) removed %v", removed)
	}

	removed, err := m.Prune(2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if len(removed) != 2 || !strings.HasSuffix(removed[0], names[0]) || !strings.HasSuffix(removed[1], names[1]) {
		t.Errorf("removed = %v, want the two oldest", removed)
	}
	list, _ := m.List()
	if len(list) != 2 || list[0].Name != names[2] {
		t.Errorf("remaining = %v", list)
	}
}

func TestManager_NewWorkDir(t *testing.T) {
	m := newTestManager(t)
	a, err := m.NewWorkDir(WorkRestore)
	if err != nil {
		t.Fatalf("NewWorkDir: %v", err)
	}
	b, err := m.NewWorkDir(WorkRestore)
	if err != nil {
		t.Fatalf("NewWorkDir: %v", err)
	}
	if a == b {
		t.Error("working directories must be unique per call")
	}
	if !strings.HasPrefix(filepath.Base(a), "qs_res_") {
		t.Errorf("work dir %s lacks the restore prefix", a)
	}
	if st, _ := os.Stat(a); st.Mode().Perm() != 0o700 {
		t.Errorf("work dir mode = %v, want 0700", st.Mode().Perm())
	}
}

func TestManager_Stat(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.Stat(filepath.Join(m.Home(), "none.qsnap")); !errors.Is(err, domain.ErrArtifactNotFound) {
		t.Errorf("Stat(missing) = %v", err)
	}
	path := filepath.Join(m.Home(), "t1_20250101_000000.qsnap")
	touch(t, path, "abc")
	a, err := m.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if a.Label != "t1" || a.Size != 3 || a.BackupPath() != path+".bak" {
		t.Errorf("Stat = %+v", a)
	}
}
