// Package domain defines the core domain models for quicksave.
//
// Domain models are pure value objects without any IO dependencies
// or framework coupling. This package contains:
//
//   - ProcessID / ProcessSet: instantaneous process identities, leader first
//   - CompatibilityReport / Verdict: advisory pre-checkpoint risk assessment
//   - Artifact: a durable compressed snapshot on stable storage
//   - Result: the outcome of one dump, restore or verify call
//   - Errors: coded domain errors shared by every pipeline
package domain
