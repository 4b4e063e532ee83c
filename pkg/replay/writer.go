package replay

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/poolscope/pkg/alloclog"
)

// bogusPrefix comments out allocations on pools the native API has already
// invalidated, keeping them visible in the generated source.
const bogusPrefix = "// BOGUS: "

// Options configures program generation.
type Options struct {
	// Iterations is how many times the program replays the log. Zero uses
	// DefaultIterations.
	Iterations int
}

// Stats describes a generated program.
type Stats struct {
	Pools           int `json:"pools"`
	Statements      int `json:"statements"`
	BogusAllocs     int `json:"bogus_allocs"`
	SkippedDestroys int `json:"skipped_destroys"`
}

// Write emits a benchmark program replaying events against target.
//
// The native APIs destroy a pool's whole subtree on clear or destroy, so the
// writer tracks which pools are dead: a destroy of a dead pool is dropped and
// an alloc on one is emitted as a BOGUS comment.
func Write(w io.Writer, events []alloclog.Event, target Target, opts Options) (Stats, error) {
	iterations := opts.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	header, err := target.Header(iterations)
	if err != nil {
		return Stats{}, err
	}

	footer, err := target.Footer(iterations)
	if err != nil {
		return Stats{}, err
	}

	bw := bufio.NewWriter(w)
	p := newProgram(events)

	fmt.Fprint(bw, header)

	for _, pool := range p.order {
		fmt.Fprintf(bw, "%s *%s;\n", target.PoolType(), p.names[pool])
	}

	for _, event := range events {
		stmt := p.step(event, target)
		if stmt != "" {
			fmt.Fprintln(bw, stmt)
		}
	}

	fmt.Fprint(bw, footer)

	err = bw.Flush()
	if err != nil {
		return Stats{}, fmt.Errorf("write program: %w", err)
	}

	p.stats.Pools = len(p.order)

	return p.stats, nil
}

// program is the pool bookkeeping for one Write call.
type program struct {
	names    map[string]string
	order    []string
	parents  map[string]string
	children map[string][]string
	dead     map[string]struct{}
	stats    Stats
}

func newProgram(events []alloclog.Event) *program {
	p := &program{
		names:    make(map[string]string),
		parents:  make(map[string]string),
		children: make(map[string][]string),
		dead:     make(map[string]struct{}),
	}

	taken := make(map[string]struct{})

	for _, e := range events {
		if _, ok := p.names[e.Pool]; ok {
			continue
		}

		name := uniqueIdent(e.Pool, taken)
		taken[name] = struct{}{}
		p.names[e.Pool] = name
		p.order = append(p.order, e.Pool)

		// Nothing is alive until its create shows up.
		p.dead[e.Pool] = struct{}{}
	}

	return p
}

func (p *program) step(e alloclog.Event, target Target) string {
	pool := p.name(e.Pool)

	switch e.Action {
	case alloclog.ActionCreate:
		p.parents[e.Pool] = e.Parent
		p.children[e.Parent] = append(p.children[e.Parent], e.Pool)
		delete(p.dead, e.Pool)
		p.stats.Statements++

		if e.IsRoot() {
			return target.Root(pool)
		}

		return target.Create(pool, p.name(e.Parent))
	case alloclog.ActionAlloc:
		stmt := target.Alloc(pool, e.Amount)
		if p.isDead(e.Pool) {
			p.stats.BogusAllocs++

			return bogusPrefix + stmt
		}

		p.stats.Statements++

		return stmt
	case alloclog.ActionClear:
		p.killChildren(e.Pool)
		p.stats.Statements++

		return target.Clear(pool)
	case alloclog.ActionDestroy:
		if p.isDead(e.Pool) {
			p.stats.SkippedDestroys++

			return ""
		}

		p.killChildren(e.Pool)
		p.dead[e.Pool] = struct{}{}
		p.unlink(e.Pool)
		p.stats.Statements++

		return target.Destroy(pool)
	}

	return ""
}

func (p *program) name(pool string) string {
	if name, ok := p.names[pool]; ok {
		return name
	}

	// Parents that never appear as a pool of their own.
	return ident(pool)
}

func (p *program) isDead(pool string) bool {
	_, dead := p.dead[pool]

	return dead
}

func (p *program) killChildren(pool string) {
	for _, child := range p.children[pool] {
		p.killChildren(child)
		p.dead[child] = struct{}{}
	}

	delete(p.children, pool)
}

// unlink detaches a destroyed pool from its parent so that a later clear of
// the parent does not kill a new pool that reuses the identifier.
func (p *program) unlink(pool string) {
	parent, ok := p.parents[pool]
	if !ok {
		return
	}

	siblings := p.children[parent]
	if idx := slices.Index(siblings, pool); idx >= 0 {
		p.children[parent] = slices.Delete(siblings, idx, idx+1)
	}

	delete(p.parents, pool)
}

// ident turns a pool identifier into a C identifier.
func ident(pool string) string {
	var b strings.Builder

	b.Grow(len(pool) + 1)
	b.WriteByte('p')

	for _, r := range pool {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	return b.String()
}

func uniqueIdent(pool string, taken map[string]struct{}) string {
	base := ident(pool)
	name := base

	for i := 2; ; i++ {
		if _, ok := taken[name]; !ok {
			return name
		}

		name = fmt.Sprintf("%s_%d", base, i)
	}
}
