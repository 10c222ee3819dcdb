package criu

import "strings"

// WrapTerminal runs argv under wrapper (util-linux script) so that the
// restored job gets a pseudo terminal. -e propagates the child's exit code.
func WrapTerminal(wrapper string, argv []string) []string {
	return []string{wrapper, "-q", "-e", "-c", ShellJoin(argv), "/dev/null"}
}

// ShellJoin quotes each argument for /bin/sh and joins them with spaces.
func ShellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
