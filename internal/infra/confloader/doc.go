// Package confloader provides configuration loading mechanism.
//
// This package implements a configuration loader on top of koanf and
// a file watcher on top of fsnotify.
//
// Priority (highest to lowest):
//
//  1. Command-line flags (LoadMap)
//  2. Environment variables (QUICKSAVE_SECTION_KEY)
//  3. Configuration file (YAML)
//  4. Default values (pre-filled target struct)
//
// The watcher serves two callers: config reload of the log level and the
// `quicksave watch` command, which follows the snapshot home directory.
package confloader
