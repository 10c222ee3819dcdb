package proc

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/prometheus/procfs"

	"github.com/yndnr/quicksave-go/internal/core/domain"
)

// Resolver expands a root pid into the process tree below it.
type Resolver struct {
	fs procfs.FS
}

// NewResolver creates a Resolver over fs.
func NewResolver(fs procfs.FS) *Resolver {
	return &Resolver{fs: fs}
}

// Resolve returns root followed by all of its descendants, breadth first
// and ordered by pid within a generation. The set is sampled once at call
// time and must not be reused across pipeline phases.
func (r *Resolver) Resolve(root domain.ProcessID) (domain.ProcessSet, error) {
	if root <= 0 {
		return nil, domain.ErrProcessNotFound.WithDetails(fmt.Sprintf("invalid pid %d", root))
	}
	if _, err := r.fs.Proc(int(root)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrProcessNotFound.WithDetails(root.String())
		}
		return nil, fmt.Errorf("read process %d: %w", root, err)
	}

	children, err := r.children()
	if err != nil {
		return nil, err
	}

	var descendants []domain.ProcessID
	queue := []domain.ProcessID{root}
	seen := map[domain.ProcessID]bool{root: true}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, child := range children[pid] {
			if seen[child] {
				continue
			}
			seen[child] = true
			descendants = append(descendants, child)
			queue = append(queue, child)
		}
	}

	return domain.NewProcessSet(root, descendants...), nil
}

// children maps every live pid to its direct children. Processes that
// exit while the table is read are skipped.
func (r *Resolver) children() (map[domain.ProcessID][]domain.ProcessID, error) {
	procs, err := r.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	tree := make(map[domain.ProcessID][]domain.ProcessID)
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			continue
		}
		ppid := domain.ProcessID(stat.PPID)
		tree[ppid] = append(tree[ppid], domain.ProcessID(p.PID))
	}
	for _, kids := range tree {
		sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })
	}
	return tree, nil
}

// FindByName returns the pids whose command name equals name, lowest first.
func (r *Resolver) FindByName(name string) ([]domain.ProcessID, error) {
	procs, err := r.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	var pids []domain.ProcessID
	for _, p := range procs {
		comm, err := p.Comm()
		if err != nil || comm != name {
			continue
		}
		pids = append(pids, domain.ProcessID(p.PID))
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids, nil
}
