package proc

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Denylist matches command lines against applications known to resist
// checkpoint/restore. Matching is case-insensitive. A plain keyword
// matches anywhere in the command line; entries that already contain
// glob syntax are used as written.
type Denylist struct {
	keywords []string
	globs    []glob.Glob
}

// NewDenylist compiles keywords. Empty entries are ignored.
func NewDenylist(keywords []string) (*Denylist, error) {
	d := &Denylist{}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		pattern := kw
		if !strings.ContainsAny(kw, "*?[{") {
			pattern = "*" + kw + "*"
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile denylist entry %q: %w", kw, err)
		}
		d.keywords = append(d.keywords, kw)
		d.globs = append(d.globs, g)
	}
	return d, nil
}

// Match returns the first entry matching cmdline.
func (d *Denylist) Match(cmdline string) (string, bool) {
	if d == nil || cmdline == "" {
		return "", false
	}
	lower := strings.ToLower(cmdline)
	for i, g := range d.globs {
		if g.Match(lower) {
			return d.keywords[i], true
		}
	}
	return "", false
}

// Len returns the number of entries.
func (d *Denylist) Len() int {
	if d == nil {
		return 0
	}
	return len(d.globs)
}
