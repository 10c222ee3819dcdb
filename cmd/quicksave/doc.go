// Package main provides the entry point for quicksave.
//
// quicksave checkpoints running process trees into compressed .qsnap
// artifacts and restores them later, driving an external CRIU binary.
package main
