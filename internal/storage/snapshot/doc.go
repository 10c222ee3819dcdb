// Package snapshot manages the snapshot home directory.
//
// Artifact names carry their own metadata:
//
//	<label>_<YYYYMMDD_HHMMSS>.qsnap   labelled
//	<YYYYMMDD_HHMMSS>.qsnap           unlabelled
//	<name>.qsnap.bak                  mid-restore backup
//
// Hidden files and backups are never listed. RecoverBackups renames a
// stray backup back to its artifact name after a crash mid-restore.
// Working directories are allocated per call under the configured work
// dir with a per-operation prefix.
package snapshot
