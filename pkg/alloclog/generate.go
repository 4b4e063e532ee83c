package alloclog

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
)

// firstPoolAddr is the identifier of the first generated pool. Later pools
// step by poolAddrStep, like heap addresses of equally sized headers.
const (
	firstPoolAddr = 0x7f0000001000
	poolAddrStep  = 0x40
)

// GenerateOptions shapes a synthetic log.
type GenerateOptions struct {
	// Events is the number of events before the closing destroys.
	Events int
	// Seed makes the output reproducible.
	Seed uint64
	// MaxAllocShift bounds single allocations to 1<<MaxAllocShift bytes.
	MaxAllocShift int
	// Leak leaves pools live at the end instead of destroying every root.
	Leak bool
}

// DefaultGenerateOptions returns options for a 10k event log.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{Events: 10_000, Seed: 1, MaxAllocShift: 16}
}

type generator struct {
	rng      *rand.Rand
	opts     GenerateOptions
	next     uint64
	live     []string
	index    map[string]int
	children map[string][]string
	roots    []string
	events   []Event
}

// Generate builds a random but well-formed log: every alloc, clear and
// destroy names a live pool, so the log summarizes without errors.
func Generate(opts GenerateOptions) []Event {
	if opts.MaxAllocShift <= 0 {
		opts.MaxAllocShift = DefaultGenerateOptions().MaxAllocShift
	}

	g := &generator{
		rng:      rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		opts:     opts,
		next:     firstPoolAddr,
		index:    make(map[string]int),
		children: make(map[string][]string),
		events:   make([]Event, 0, opts.Events),
	}

	for range opts.Events {
		g.step()
	}

	if !opts.Leak {
		for _, root := range g.roots {
			if g.isLive(root) {
				g.destroy(root)
			}
		}
	}

	return g.events
}

func (g *generator) step() {
	if len(g.live) == 0 {
		g.create(RootID)

		return
	}

	pool := g.live[g.rng.IntN(len(g.live))]

	switch roll := g.rng.IntN(100); {
	case roll < 5:
		g.create(RootID)
	case roll < 15:
		g.create(pool)
	case roll < 85:
		g.emit(Event{Action: ActionAlloc, Pool: pool, Parent: pool, Amount: g.amount()})
	case roll < 88:
		g.emit(Event{Action: ActionClear, Pool: pool, Parent: RootID})
		g.killChildren(pool)
	default:
		g.destroy(pool)
	}
}

func (g *generator) amount() int64 {
	shift := g.rng.IntN(g.opts.MaxAllocShift) + 1

	return 1 + g.rng.Int64N(int64(1)<<shift)
}

func (g *generator) create(parent string) {
	pool := fmt.Sprintf("0x%x", g.next)
	g.next += poolAddrStep

	g.emit(Event{Action: ActionCreate, Pool: pool, Parent: parent})

	g.index[pool] = len(g.live)
	g.live = append(g.live, pool)

	if parent == RootID {
		g.roots = append(g.roots, pool)
	} else {
		g.children[parent] = append(g.children[parent], pool)
	}
}

func (g *generator) destroy(pool string) {
	g.emit(Event{Action: ActionDestroy, Pool: pool, Parent: RootID})
	g.killChildren(pool)
	g.remove(pool)
}

func (g *generator) killChildren(pool string) {
	for _, child := range g.children[pool] {
		if g.isLive(child) {
			g.killChildren(child)
			g.remove(child)
		}
	}

	delete(g.children, pool)
}

func (g *generator) isLive(pool string) bool {
	_, ok := g.index[pool]

	return ok
}

// remove drops pool from the live set by swapping in the last entry.
func (g *generator) remove(pool string) {
	i := g.index[pool]
	last := g.live[len(g.live)-1]

	g.live[i] = last
	g.index[last] = i
	g.live = g.live[:len(g.live)-1]

	delete(g.index, pool)
}

func (g *generator) emit(e Event) {
	g.events = append(g.events, e)
}

// Write writes events in log form, one per line.
func Write(w io.Writer, events []Event) error {
	bw := bufio.NewWriter(w)

	for _, e := range events {
		if _, err := fmt.Fprintln(bw, e.String()); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}
