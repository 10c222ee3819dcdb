package proc

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// OpenFS opens the procfs mounted at mount, or at /proc when mount is empty.
func OpenFS(mount string) (procfs.FS, error) {
	if mount == "" {
		mount = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mount)
	if err != nil {
		return procfs.FS{}, fmt.Errorf("open procfs %s: %w", mount, err)
	}
	return fs, nil
}
