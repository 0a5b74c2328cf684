package parser

import (
	"sync"
	"sync/atomic"

	"mercator-hq/vigil/pkg/rules/ast"
)

// Cache maps condition strings to parsed trees. Keys are the exact
// condition text: trees carry positions into that text, so conditions
// that differ only in spacing are cached separately.
//
// Writes follow compute-once-publish: concurrent misses may parse the same
// condition more than once, but LoadOrStore publishes a single winner and
// every caller observes that value. Parse errors are not cached.
type Cache struct {
	parser *Parser
	trees  sync.Map // string -> ast.Node
	size   atomic.Int64
	limit  atomic.Int64
	hits   atomic.Int64
	misses atomic.Int64
}

// DefaultCache is the process-wide cache that policy rules parse through.
// It uses the default parser; the CLI sizes it from runner.cache_size.
var DefaultCache = NewCache(nil)

// NewCache creates a cache backed by p. A nil parser uses NewParser().
func NewCache(p *Parser) *Cache {
	if p == nil {
		p = NewParser()
	}
	return &Cache{parser: p}
}

// Get returns the tree for condition, parsing it on first use.
func (c *Cache) Get(condition string) (ast.Node, error) {
	if v, ok := c.trees.Load(condition); ok {
		c.hits.Add(1)
		return v.(ast.Node), nil
	}
	c.misses.Add(1)

	node, err := c.parser.Parse(condition)
	if err != nil {
		return nil, err
	}

	if limit := c.limit.Load(); limit > 0 && c.size.Load() >= limit {
		return node, nil
	}
	actual, loaded := c.trees.LoadOrStore(condition, node)
	if !loaded {
		c.size.Add(1)
	}
	return actual.(ast.Node), nil
}

// SetLimit caps the number of cached trees. Once full, new conditions
// are parsed on every call. n <= 0 removes the cap.
func (c *Cache) SetLimit(n int) {
	c.limit.Store(int64(n))
}

// Len returns the number of cached trees.
func (c *Cache) Len() int {
	return int(c.size.Load())
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Reset drops all cached trees and counters.
func (c *Cache) Reset() {
	c.trees.Range(func(k, _ any) bool {
		c.trees.Delete(k)
		return true
	})
	c.size.Store(0)
	c.hits.Store(0)
	c.misses.Store(0)
}
