// Package replay turns an allocation log into a C benchmark program that
// repeats the same pool calls against a native pool allocator.
package replay

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"text/template"
)

// ErrUnknownTarget is returned by Lookup for unregistered target names.
var ErrUnknownTarget = errors.New("unknown replay target")

// DefaultIterations is how many times the generated program replays the log.
const DefaultIterations = 1000

// Target emits C statements for one pool allocator API. Pool arguments are
// already C identifiers.
type Target interface {
	Name() string
	PoolType() string
	Root(pool string) string
	Create(pool, parent string) string
	Alloc(pool string, amount int64) string
	Clear(pool string) string
	Destroy(pool string) string
	Header(iterations int) (string, error)
	Footer(iterations int) (string, error)
}

// TemplateTarget is a Target described by printf formats for statements and
// text/template sources for the program frame.
type TemplateTarget struct {
	TargetName string
	Type       string

	RootFormat    string // pool
	CreateFormat  string // pool, parent
	AllocFormat   string // pool, amount
	ClearFormat   string // pool
	DestroyFormat string // pool

	HeaderTemplate string
	FooterTemplate string
}

// Name implements Target.
func (t *TemplateTarget) Name() string { return t.TargetName }

// PoolType implements Target.
func (t *TemplateTarget) PoolType() string { return t.Type }

// Root implements Target.
func (t *TemplateTarget) Root(pool string) string { return fmt.Sprintf(t.RootFormat, pool) }

// Create implements Target.
func (t *TemplateTarget) Create(pool, parent string) string {
	return fmt.Sprintf(t.CreateFormat, pool, parent)
}

// Alloc implements Target.
func (t *TemplateTarget) Alloc(pool string, amount int64) string {
	return fmt.Sprintf(t.AllocFormat, pool, amount)
}

// Clear implements Target.
func (t *TemplateTarget) Clear(pool string) string { return fmt.Sprintf(t.ClearFormat, pool) }

// Destroy implements Target.
func (t *TemplateTarget) Destroy(pool string) string { return fmt.Sprintf(t.DestroyFormat, pool) }

// Header implements Target.
func (t *TemplateTarget) Header(iterations int) (string, error) {
	return t.execute("header", t.HeaderTemplate, iterations)
}

// Footer implements Target.
func (t *TemplateTarget) Footer(iterations int) (string, error) {
	return t.execute("footer", t.FooterTemplate, iterations)
}

type frameData struct {
	Target     string
	Iterations int
}

func (t *TemplateTarget) execute(part, src string, iterations int) (string, error) {
	tmpl, err := template.New(t.TargetName + "." + part).Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse %s %s: %w", t.TargetName, part, err)
	}

	var buf bytes.Buffer

	err = tmpl.Execute(&buf, frameData{Target: t.TargetName, Iterations: iterations})
	if err != nil {
		return "", fmt.Errorf("render %s %s: %w", t.TargetName, part, err)
	}

	return buf.String(), nil
}

var registry = map[string]Target{
	APR.Name():    APR,
	PoCore.Name(): PoCore,
}

// Lookup returns the target registered under name.
func Lookup(name string) (Target, error) {
	t, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownTarget, name, Targets())
	}

	return t, nil
}

// Targets returns the registered target names, sorted.
func Targets() []string {
	return slices.Sorted(maps.Keys(registry))
}
