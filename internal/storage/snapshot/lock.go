package snapshot

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/yndnr/quicksave-go/internal/core/domain"
)

// LockExt is appended to an artifact name for its restore lock file.
const LockExt = ".lock"

const lockAttempts = 3

// Lock is an exclusive advisory lock on one artifact name. A restore holds
// it from before the backup rename until the backup is committed or rolled
// back, across processes.
type Lock struct {
	f    *os.File
	path string
}

// TryLock takes the lock for the artifact at path without blocking. It
// returns ErrArtifactBusy when another holder has it.
func TryLock(path string) (*Lock, error) {
	lockPath := path + LockExt
	for i := 0; i < lockAttempts; i++ {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
		if err != nil {
			return nil, domain.ErrStorage.WithDetails("open lock " + filepath.Base(lockPath)).WithCause(err)
		}
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			f.Close()
			if err == unix.EWOULDBLOCK {
				return nil, domain.ErrArtifactBusy.WithDetails(filepath.Base(path))
			}
			return nil, domain.ErrStorage.WithDetails("lock " + filepath.Base(lockPath)).WithCause(err)
		}

		// Release unlinks the file, so a lock taken on an old inode is
		// worthless and the open must be retried.
		var held, current unix.Stat_t
		if unix.Fstat(int(f.Fd()), &held) == nil && unix.Stat(lockPath, &current) == nil &&
			held.Dev == current.Dev && held.Ino == current.Ino {
			return &Lock{f: f, path: lockPath}, nil
		}
		f.Close()
	}
	return nil, domain.ErrArtifactBusy.WithDetails(filepath.Base(path))
}

// Release removes the lock file and drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := os.Remove(l.path)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
