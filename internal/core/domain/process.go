package domain

import (
	"strconv"
	"strings"
)

// ProcessID is an OS-assigned process id.
// It is only valid at the instant it was observed and must not be cached
// across pipeline phases.
type ProcessID int

// String returns the decimal form used on the primitive's command line.
func (p ProcessID) String() string {
	return strconv.Itoa(int(p))
}

// ProcessSet is an ordered sequence of process ids, leader first.
//
// Only the leader is handed to the checkpoint primitive; the remaining ids
// are descendants discovered at invocation time and feed the compatibility scan.
type ProcessSet []ProcessID

// NewProcessSet builds a set with leader first, dropping duplicates and
// non-positive ids while preserving order.
func NewProcessSet(leader ProcessID, descendants ...ProcessID) ProcessSet {
	set := make(ProcessSet, 0, 1+len(descendants))
	seen := make(map[ProcessID]struct{}, 1+len(descendants))
	for _, pid := range append([]ProcessID{leader}, descendants...) {
		if pid <= 0 {
			continue
		}
		if _, ok := seen[pid]; ok {
			continue
		}
		seen[pid] = struct{}{}
		set = append(set, pid)
	}
	return set
}

// Leader returns the checkpoint target. It returns 0 for an empty set.
func (s ProcessSet) Leader() ProcessID {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

// Descendants returns every id after the leader.
func (s ProcessSet) Descendants() []ProcessID {
	if len(s) <= 1 {
		return nil
	}
	return s[1:]
}

// Validate returns ErrEmptyProcessSet if the set has no leader.
func (s ProcessSet) Validate() error {
	if len(s) == 0 || s[0] <= 0 {
		return ErrEmptyProcessSet
	}
	return nil
}

// String renders the set as a comma separated list.
func (s ProcessSet) String() string {
	parts := make([]string, len(s))
	for i, pid := range s {
		parts[i] = pid.String()
	}
	return strings.Join(parts, ",")
}

// ParseProcessID parses a decimal process id.
func ParseProcessID(s string) (ProcessID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, ErrProcessNotFound.WithDetails("invalid pid " + strconv.Quote(s))
	}
	return ProcessID(n), nil
}
