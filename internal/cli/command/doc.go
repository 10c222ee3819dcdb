// Package command defines the quicksave CLI using urfave/cli/v2.
//
//   - root.go: application, global flags
//   - env.go: per-invocation wiring of config, logging and the service
//   - snapshot.go: dump, restore, verify
//   - artifacts.go: list, delete, inspect, prune
//   - process.go: tree, check
//   - watch.go: snapshot home and config file watcher
//   - version.go: build information
//
// Every action builds its environment, calls the snapshot service and
// renders the result in the selected output format. A failed pipeline
// is returned as an error so the process exits non-zero.
package command
