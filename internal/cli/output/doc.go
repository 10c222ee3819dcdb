// Package output renders command results for the quicksave CLI.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned tables, optionally with coloured headers
//   - json.go, yaml.go: machine-readable output
//   - style.go: colours for outcomes and verdicts
//   - spinner.go, progress.go: feedback during long pipeline calls
//
// Animated feedback and colour are only emitted when the writer is a
// terminal; redirected output stays plain so it can be scripted.
package output
