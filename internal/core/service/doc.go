// Package service provides the snapshot lifecycle service for quicksave.
//
// SnapshotService is the only entry point the CLI uses. It contains:
//
//   - ResolveProcessTree and CheckCompatibility, run ahead of a dump
//   - Dump: pre-dump (elevated callers) and dump, then pack the image
//   - Restore: unpack, rename to the backup name, restore, then delete
//     the backup or roll it back
//   - Verify: detached restore into a disposable directory, then
//     terminate the resumed leader
//   - Inspect, List, Delete, Prune and Recover for artifact housekeeping
//
// Every pipeline returns a *domain.Result. A working directory is
// created per call and removed on every exit path.
package service
