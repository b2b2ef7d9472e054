package plugin

// OrderNode is what the organizer orders: anything with a class identity,
// declared dependencies, and a priority. Both *Builder and *Record satisfy
// it.
type OrderNode interface {
	NodeClass() Class
	DependsOn() []Class
	NodePriority() int
}

// Organize orders nodes so every node appears after all of its dependencies
// that are also in the input set. Dependencies outside the set must be
// reported satisfied by the callback, typically "is this class already
// running". Among equally eligible nodes the lowest priority goes first,
// ties resolved by input order. A cycle or a dependency that is neither in
// the set nor satisfied leaves nodes stuck and yields a DependencyError
// naming them.
//
// Organize is stateless and does not mutate its input.
func Organize[T OrderNode](nodes []T, satisfied func(Class) bool) ([]T, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	inSet := make(map[Class]bool, len(nodes))
	for _, n := range nodes {
		inSet[n.NodeClass()] = true
	}

	placed := make(map[Class]bool, len(nodes))
	out := make([]T, 0, len(nodes))

	eligible := func(n T) bool {
		for _, dep := range n.DependsOn() {
			if placed[dep] {
				continue
			}
			if inSet[dep] {
				return false
			}
			if satisfied == nil || !satisfied(dep) {
				return false
			}
		}
		return true
	}

	for len(out) < len(nodes) {
		best := -1
		for i, n := range nodes {
			if placed[n.NodeClass()] || !eligible(n) {
				continue
			}
			if best < 0 || n.NodePriority() < nodes[best].NodePriority() {
				best = i
			}
		}
		if best < 0 {
			var stuck []Class
			for _, n := range nodes {
				if !placed[n.NodeClass()] {
					stuck = append(stuck, n.NodeClass())
				}
			}
			return nil, &DependencyError{Stuck: stuck}
		}
		out = append(out, nodes[best])
		placed[nodes[best].NodeClass()] = true
	}
	return out, nil
}
