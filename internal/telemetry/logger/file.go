package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// OpenDailyFile opens (appending) <dir>/<YYYY-MM-DD>.log for the given day,
// creating dir if needed. The caller owns the returned file.
func OpenDailyFile(dir string, day time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, day.Format("2006-01-02")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
