// Package proc reads process state from procfs.
//
// Resolver expands a leader pid into its descendant set and looks up
// processes by name. Prechecker samples a process set and builds the
// advisory CompatibilityReport. Every per-process read is best-effort:
// a process that exits or denies access between enumeration and probing
// contributes no evidence.
package proc
