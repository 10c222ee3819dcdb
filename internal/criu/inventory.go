package criu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/checkpoint-restore/go-criu/v7/crit"
	"github.com/checkpoint-restore/go-criu/v7/crit/images/pstree"
	"google.golang.org/protobuf/proto"

	"github.com/yndnr/quicksave-go/internal/core/domain"
)

// Image file names written by the primitive.
const (
	InventoryImage = "inventory.img"
	PstreeImage    = "pstree.img"
)

// maxEntrySize bounds one pstree record; real entries are a few hundred bytes.
const maxEntrySize = 1 << 20

// Task is one process recorded in a checkpoint image.
type Task struct {
	Pid     domain.ProcessID `json:"pid" yaml:"pid"`
	Ppid    domain.ProcessID `json:"ppid" yaml:"ppid"`
	Pgid    domain.ProcessID `json:"pgid" yaml:"pgid"`
	Sid     domain.ProcessID `json:"sid" yaml:"sid"`
	Threads int              `json:"threads" yaml:"threads"`
}

// CheckImages reports ErrArtifactInvalid unless dir holds a checkpoint
// image, recognized by its inventory or process tree file.
func CheckImages(dir string) error {
	for _, name := range []string{InventoryImage, PstreeImage} {
		if st, err := os.Stat(filepath.Join(dir, name)); err == nil && st.Mode().IsRegular() {
			return nil
		}
	}
	return domain.ErrArtifactInvalid.WithDetails(fmt.Sprintf("neither %s nor %s found", InventoryImage, PstreeImage))
}

// ReadPstree decodes <dir>/pstree.img into tasks ordered by pid.
func ReadPstree(dir string) ([]Task, error) {
	path := filepath.Join(dir, PstreeImage)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrArtifactInvalid.WithDetails(PstreeImage + " not found")
		}
		return nil, err
	}
	defer f.Close()

	magic, err := crit.ReadMagic(f)
	if err != nil {
		return nil, domain.ErrArtifactInvalid.WithDetails("read pstree magic").WithCause(err)
	}
	if magic != "PSTREE" {
		return nil, domain.ErrArtifactInvalid.WithDetails(fmt.Sprintf("unexpected magic %s (expected PSTREE)", magic))
	}

	var tasks []Task
	sizeBuf := make([]byte, 4)
	for {
		if _, err := io.ReadFull(f, sizeBuf); err != nil {
			if err == io.EOF {
				break
			}
			return nil, domain.ErrArtifactInvalid.WithDetails("truncated pstree entry size").WithCause(err)
		}

		size := binary.LittleEndian.Uint32(sizeBuf)
		if size > maxEntrySize {
			return nil, domain.ErrArtifactInvalid.WithDetails(fmt.Sprintf("pstree entry of %d bytes exceeds %d", size, maxEntrySize))
		}
		entryBuf := make([]byte, size)
		if _, err := io.ReadFull(f, entryBuf); err != nil {
			return nil, domain.ErrArtifactInvalid.WithDetails("truncated pstree entry").WithCause(err)
		}

		entry := &pstree.PstreeEntry{}
		if err := proto.Unmarshal(entryBuf, entry); err != nil {
			return nil, domain.ErrArtifactInvalid.WithDetails("decode pstree entry").WithCause(err)
		}

		tasks = append(tasks, Task{
			Pid:     domain.ProcessID(entry.GetPid()),
			Ppid:    domain.ProcessID(entry.GetPpid()),
			Pgid:    domain.ProcessID(entry.GetPgid()),
			Sid:     domain.ProcessID(entry.GetSid()),
			Threads: len(entry.GetThreads()),
		})
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Pid < tasks[j].Pid })
	return tasks, nil
}

// Root returns the task without a parent inside the image, or the
// lowest pid when every task has one.
func Root(tasks []Task) (Task, bool) {
	if len(tasks) == 0 {
		return Task{}, false
	}
	for _, t := range tasks {
		if t.Ppid == 0 {
			return t, true
		}
	}
	return tasks[0], true
}
