package domain

import (
	"errors"
	"time"
)

// Op names a pipeline operation.
type Op string

const (
	OpDump    Op = "dump"
	OpRestore Op = "restore"
	OpVerify  Op = "verify"
	OpInspect Op = "inspect"
)

// Outcome is the terminal state of one pipeline call.
type Outcome string

const (
	// OutcomeSucceeded means the operation completed.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means the operation ran and failed; nothing was rolled back.
	OutcomeFailed Outcome = "failed"
	// OutcomeRolledBack means a restore failed and the artifact was renamed back.
	OutcomeRolledBack Outcome = "rolled_back"
	// OutcomeCanceled means the primitive wait was interrupted.
	OutcomeCanceled Outcome = "canceled"
	// OutcomeNotStarted means nothing happened (missing artifact, bad input).
	OutcomeNotStarted Outcome = "not_started"
)

// Result is returned by every pipeline. Reason carries the typed failure.
type Result struct {
	Op       Op            `json:"op" yaml:"op"`
	OpID     string        `json:"op_id" yaml:"op_id"`
	Outcome  Outcome       `json:"outcome" yaml:"outcome"`
	Reason   error         `json:"-" yaml:"-"`
	Artifact *Artifact     `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Elapsed  time.Duration `json:"elapsed" yaml:"elapsed"`
	Output   string        `json:"output,omitempty" yaml:"output,omitempty"`
}

// OK reports whether the operation succeeded.
func (r *Result) OK() bool {
	return r != nil && r.Outcome == OutcomeSucceeded
}

// ReasonCode returns the DomainError code of Reason, if any.
func (r *Result) ReasonCode() string {
	if r == nil || r.Reason == nil {
		return ""
	}
	return GetErrorCode(r.Reason)
}

// Canceled reports whether the call was interrupted.
func (r *Result) Canceled() bool {
	return r != nil && (r.Outcome == OutcomeCanceled || errors.Is(r.Reason, ErrCanceled))
}
