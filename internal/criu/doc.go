// Package criu drives the external checkpoint/restore primitive.
//
//   - builder.go: privilege-aware argument vectors for dump, pre-dump and restore
//   - runner.go: spawn in a private process group, group-kill on cancellation
//   - terminal.go: the pseudo-terminal wrapper used by foreground restores
//   - inventory.go: pstree.img decoding for image checks and inspection
//
// Nothing in this package checkpoints anything itself; it only builds,
// runs and interprets invocations of the criu binary.
package criu
