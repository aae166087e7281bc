package report

import (
	"fmt"
	"sync"
)

// Catalog is an ordered set of named specs. It is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	specs map[string]Spec
	order []string
}

// NewCatalog validates and adds specs in order.
func NewCatalog(specs ...Spec) (*Catalog, error) {
	c := &Catalog{specs: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if err := c.Add(s); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add validates s and stores it. A spec with an existing name replaces the
// old one in place.
func (c *Catalog) Add(s Spec) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.Kind == "" {
		s.Kind = KindAggregate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.specs[s.Name]; !exists {
		c.order = append(c.order, s.Name)
	}
	c.specs[s.Name] = s
	return nil
}

// Get returns the spec registered under name.
func (c *Catalog) Get(name string) (Spec, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w %q", ErrUnknownReport, name)
	}
	return s, nil
}

// Names lists spec names in registration order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Specs lists specs in registration order.
func (c *Catalog) Specs() []Spec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Spec, len(c.order))
	for i, n := range c.order {
		out[i] = c.specs[n]
	}
	return out
}

// Len returns the number of specs.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
