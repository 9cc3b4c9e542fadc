package step

import (
	"fmt"

	"github.com/pkg/errors"
)

// OrderingException moves one step directly in front of another when the
// catalog is built.
type OrderingException struct {
	Move   string
	Before string
}

// DefaultOrderingExceptions are applied to the built-in catalog. The rust
// toolchain must be current before cargo rebuilds installed binaries.
var DefaultOrderingExceptions = []OrderingException{
	{Move: "rustup", Before: "cargo"},
}

// Catalog is the ordered, immutable set of known steps.
type Catalog struct {
	steps []Step
	index map[string]int
}

// UnknownStepError is returned when a step name from the command line or
// config matches nothing in the catalog.
type UnknownStepError struct {
	Name   string
	Source string
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step %q in %s", e.Name, e.Source)
}

// NewCatalog orders steps by declaration and then applies exceptions once.
func NewCatalog(steps []Step, exceptions ...OrderingException) (*Catalog, error) {
	ordered := make([]Step, 0, len(steps))
	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		key := NormalizeName(s.Name)
		if key == "" {
			return nil, errors.New("step with empty name")
		}
		if seen[key] {
			return nil, errors.Errorf("duplicate step %q", s.Name)
		}
		seen[key] = true
		s.Name = key
		ordered = append(ordered, s)
	}

	for _, ex := range exceptions {
		from, to := position(ordered, NormalizeName(ex.Move)), position(ordered, NormalizeName(ex.Before))
		if from < 0 || to < 0 {
			return nil, errors.Errorf("ordering exception %s before %s names an unknown step", ex.Move, ex.Before)
		}
		if from < to {
			continue
		}
		moved := ordered[from]
		copy(ordered[to+1:from+1], ordered[to:from])
		ordered[to] = moved
	}

	c := &Catalog{steps: ordered, index: make(map[string]int, len(ordered))}
	for i, s := range ordered {
		c.index[s.Name] = i
	}
	return c, nil
}

// MustCatalog is NewCatalog for static step lists.
func MustCatalog(steps []Step, exceptions ...OrderingException) *Catalog {
	c, err := NewCatalog(steps, exceptions...)
	if err != nil {
		panic(err)
	}
	return c
}

func position(steps []Step, name string) int {
	for i, s := range steps {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Steps returns the steps in execution order.
func (c *Catalog) Steps() []Step {
	return append([]Step(nil), c.steps...)
}

func (c *Catalog) Names() []string {
	names := make([]string, len(c.steps))
	for i, s := range c.steps {
		names[i] = s.Name
	}
	return names
}

func (c *Catalog) Lookup(name string) (Step, bool) {
	i, ok := c.index[NormalizeName(name)]
	if !ok {
		return Step{}, false
	}
	return c.steps[i], true
}

// Resolve normalises names and rejects unknown ones. source names the flag
// or config key for the error message.
func (c *Catalog) Resolve(names []string, source string) (map[string]bool, error) {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		key := NormalizeName(n)
		if key == "" {
			continue
		}
		if _, ok := c.index[key]; !ok {
			return nil, &UnknownStepError{Name: n, Source: source}
		}
		set[key] = true
	}
	return set, nil
}
