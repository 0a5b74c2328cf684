package manager

import (
	"path/filepath"

	"mercator-hq/vigil/pkg/policy/model"
)

// resolver follows `extends` chains. A resolver is used for a single
// top-level resolution and is not safe for concurrent use.
type resolver struct {
	m *Manager

	// visiting holds the files on the current inheritance path.
	visiting map[string]bool
	stack    []string
}

func newResolver(m *Manager) *resolver {
	return &resolver{m: m, visiting: make(map[string]bool)}
}

// resolve loads the policy at path and merges it over its ancestors.
func (r *resolver) resolve(path string) (*model.AuditPolicy, error) {
	layer, err := r.m.load(path)
	if err != nil {
		return nil, err
	}

	if r.visiting[path] {
		return nil, &CyclicPolicyError{Chain: r.buildCycle(path, layer.Name)}
	}
	r.visiting[path] = true
	r.stack = append(r.stack, path)
	defer func() {
		r.stack = r.stack[:len(r.stack)-1]
		delete(r.visiting, path)
	}()

	if layer.Extends == "" {
		return model.Build(layer), nil
	}

	parentPath, err := r.m.locateFrom(layer.Extends, filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	parent, err := r.resolve(parentPath)
	if err != nil {
		return nil, err
	}

	r.m.logger.Debug("merging policy over parent",
		"policy", layer.Name,
		"parent", parent.Name,
	)
	return model.Merge(parent, layer), nil
}

// buildCycle returns the policy names from the first occurrence of path to
// the top of the stack, closed with the repeated name.
func (r *resolver) buildCycle(path, name string) []string {
	start := 0
	for i, p := range r.stack {
		if p == path {
			start = i
			break
		}
	}

	cycle := make([]string, 0, len(r.stack)-start+1)
	for _, p := range r.stack[start:] {
		if layer, ok := r.m.registry.Get(p); ok {
			cycle = append(cycle, layer.Name)
		} else {
			cycle = append(cycle, PolicyName(p))
		}
	}
	return append(cycle, name)
}
