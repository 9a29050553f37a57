package orchestrator

import (
	"fmt"
	"strings"
)

// Route is the result of routing a task name: the queue it runs on and the
// default priority it carries unless the submitter overrides it.
type Route struct {
	Queue    string
	Priority int
}

// rule is a single routing pattern. A pattern is either an exact dotted task
// name ("prior_auth.update_request_status") or a namespace wildcard
// ("clinical.*") matching every name under that prefix.
type rule struct {
	pattern string
	route   Route
}

// Router maps logical task names to queues and default priorities using
// longest-prefix matching over the registered rules. Routing is pure: no
// broker access, no side effects.
type Router struct {
	registry *QueueRegistry
	rules    []rule
	patterns map[string]struct{}
}

// NewRouter creates a router whose rules are validated against the given
// queue registry.
func NewRouter(registry *QueueRegistry) *Router {
	return &Router{
		registry: registry,
		patterns: make(map[string]struct{}),
	}
}

// AddRule registers a routing pattern. The target queue must already be
// registered; an unknown queue is a startup configuration error. Priority is
// clamped to the valid range.
func (r *Router) AddRule(pattern, queue string, priority int) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty pattern", ErrUnroutableTask)
	}

	if _, ok := r.patterns[pattern]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateRoute, pattern)
	}

	if _, err := r.registry.Lookup(queue); err != nil {
		return fmt.Errorf("route %q: %w", pattern, err)
	}

	r.patterns[pattern] = struct{}{}
	r.rules = append(r.rules, rule{
		pattern: pattern,
		route:   Route{Queue: queue, Priority: ClampPriority(priority)},
	})

	return nil
}

// Route resolves a task name to its queue and default priority. The
// most-specific (longest) matching pattern wins; among equally specific
// patterns the first registered wins. Returns ErrUnroutableTask when nothing
// matches.
func (r *Router) Route(name string) (Route, error) {
	best := -1
	bestLen := -1

	for i, rl := range r.rules {
		matchLen, ok := match(rl.pattern, name)
		if !ok {
			continue
		}
		// Strictly greater: first registered wins ties.
		if matchLen > bestLen {
			best = i
			bestLen = matchLen
		}
	}

	if best < 0 {
		return Route{}, fmt.Errorf("%w: %q", ErrUnroutableTask, name)
	}

	return r.rules[best].route, nil
}

// match reports whether pattern matches name, returning the length of the
// matched prefix as the specificity. Exact patterns match the whole name;
// "ns.*" patterns match any name under the "ns." prefix.
func match(pattern, name string) (int, bool) {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		if strings.HasPrefix(name, prefix) {
			return len(prefix), true
		}
		return 0, false
	}

	if pattern == name {
		return len(pattern), true
	}

	return 0, false
}
