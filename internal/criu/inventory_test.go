package criu

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/checkpoint-restore/go-criu/v7/crit/images/pstree"
	"google.golang.org/protobuf/proto"

	"github.com/yndnr/quicksave-go/internal/core/domain"
)

const (
	imgCommonMagic = 0x54564319
	pstreeMagic    = 0x50273030
)

// writePstree writes a pstree.img the way the primitive lays it out:
// two magics, then length-prefixed protobuf entries.
func writePstree(t *testing.T, dir string, entries ...*pstree.PstreeEntry) {
	t.Helper()
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, imgCommonMagic)
	buf = binary.LittleEndian.AppendUint32(buf, pstreeMagic)
	for _, e := range entries {
		data, err := proto.Marshal(e)
		if err != nil {
			t.Fatalf("proto.Marshal() error = %v", err)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}
	if err := os.WriteFile(filepath.Join(dir, PstreeImage), buf, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func entry(pid, ppid uint32, threads ...uint32) *pstree.PstreeEntry {
	return &pstree.PstreeEntry{
		Pid:     proto.Uint32(pid),
		Ppid:    proto.Uint32(ppid),
		Pgid:    proto.Uint32(pid),
		Sid:     proto.Uint32(1),
		Threads: threads,
	}
}

func TestReadPstree(t *testing.T) {
	dir := t.TempDir()
	writePstree(t, dir, entry(120, 100, 120, 121), entry(100, 0, 100))

	tasks, err := ReadPstree(dir)
	if err != nil {
		t.Fatalf("ReadPstree() error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}
	if tasks[0].Pid != 100 || tasks[1].Pid != 120 {
		t.Errorf("tasks not ordered by pid: %+v", tasks)
	}
	if tasks[1].Threads != 2 || tasks[1].Ppid != 100 {
		t.Errorf("tasks[1] = %+v", tasks[1])
	}

	root, ok := Root(tasks)
	if !ok || root.Pid != 100 {
		t.Errorf("Root() = %+v, %v; want pid 100", root, ok)
	}
}

func TestReadPstree_Invalid(t *testing.T) {
	dir := t.TempDir()
	if _, err := ReadPstree(dir); !errors.Is(err, domain.ErrArtifactInvalid) {
		t.Errorf("missing image: err = %v, want ErrArtifactInvalid", err)
	}

	garbage := []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 0}
	if err := os.WriteFile(filepath.Join(dir, PstreeImage), garbage, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPstree(dir); !errors.Is(err, domain.ErrArtifactInvalid) {
		t.Errorf("bad magic: err = %v, want ErrArtifactInvalid", err)
	}
}

func TestReadPstree_Truncated(t *testing.T) {
	dir := t.TempDir()
	writePstree(t, dir, entry(1, 0))

	path := filepath.Join(dir, PstreeImage)
	data, _ := os.ReadFile(path)
	data = binary.LittleEndian.AppendUint32(data, 64) // size with no payload
	os.WriteFile(path, data, 0o600)

	if _, err := ReadPstree(dir); !errors.Is(err, domain.ErrArtifactInvalid) {
		t.Errorf("truncated image: err = %v, want ErrArtifactInvalid", err)
	}
}

func TestReadPstree_OversizedEntry(t *testing.T) {
	dir := t.TempDir()
	writePstree(t, dir)

	path := filepath.Join(dir, PstreeImage)
	data, _ := os.ReadFile(path)
	data = binary.LittleEndian.AppendUint32(data, 0xfffffff0)
	os.WriteFile(path, data, 0o600)

	_, err := ReadPstree(dir)
	if !errors.Is(err, domain.ErrArtifactInvalid) {
		t.Fatalf("oversized entry: err = %v, want ErrArtifactInvalid", err)
	}
}

func TestCheckImages(t *testing.T) {
	dir := t.TempDir()
	if err := CheckImages(dir); !errors.Is(err, domain.ErrArtifactInvalid) {
		t.Errorf("empty dir: CheckImages() = %v, want ErrArtifactInvalid", err)
	}

	os.WriteFile(filepath.Join(dir, InventoryImage), []byte("x"), 0o600)
	if err := CheckImages(dir); err != nil {
		t.Errorf("CheckImages() = %v, want nil", err)
	}
}

func TestRoot_Empty(t *testing.T) {
	if _, ok := Root(nil); ok {
		t.Error("Root(nil) should report false")
	}
}
