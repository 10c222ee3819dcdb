package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/procfs"
)

// fakeProc describes one entry in a fake procfs tree.
type fakeProc struct {
	pid     int
	ppid    int
	comm    string
	environ []string
	cmdline []string
	fds     map[string]string
}

const statTail = "7446 5392 34835 7446 4218880 32533 309516 26 82 1677 44 158 99 20 0 1 0 82375 56274944 1981 " +
	"18446744073709551615 4194304 6294284 140736914091744 140736914087944 139965136429984 0 0 12288 1870679807 " +
	"0 0 0 17 0 0 0 31 0 0 8391624 8481048 16420864 140736914093252 140736914093279 140736914093279 140736914096107 0"

func writeProc(t *testing.T, root string, p fakeProc) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(p.pid))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(name, data string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if p.comm != "" {
		write("stat", fmt.Sprintf("%d (%s) S %d %s\n", p.pid, p.comm, p.ppid, statTail))
		write("comm", p.comm+"\n")
	}
	if p.environ != nil {
		write("environ", strings.Join(p.environ, "\x00")+"\x00")
	}
	if p.cmdline != nil {
		write("cmdline", strings.Join(p.cmdline, "\x00")+"\x00")
	}
	if p.fds != nil {
		fdDir := filepath.Join(dir, "fd")
		if err := os.MkdirAll(fdDir, 0o755); err != nil {
			t.Fatal(err)
		}
		for fd, target := range p.fds {
			if err := os.Symlink(target, filepath.Join(fdDir, fd)); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func newFakeFS(t *testing.T, procs ...fakeProc) procfs.FS {
	t.Helper()
	root := t.TempDir()
	for _, p := range procs {
		writeProc(t, root, p)
	}
	fs, err := OpenFS(root)
	if err != nil {
		t.Fatalf("OpenFS() error = %v", err)
	}
	return fs
}
