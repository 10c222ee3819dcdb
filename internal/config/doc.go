// Package config defines the quicksave configuration structure.
//
//   - spec.go: QuicksaveConfig and its sections (koanf tags)
//   - default.go: default values
//   - verify.go: validation and the one-time snapshot home ensure-exists
//
// Values are loaded by internal/infra/confloader from
// ~/.quicksave/config.yaml, QUICKSAVE_* environment variables and flags.
package config
