package peers

// Registry is the ordered set of configured nodes. Duplicate URLs are kept
// once, at the position of their first occurrence.
type Registry struct {
	nodes []*Node
}

// NewRegistry creates a Registry from a list of nodes.
func NewRegistry(nodes []*Node) *Registry {
	seen := make(map[string]bool)
	ordered := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil || seen[n.URL()] {
			continue
		}
		seen[n.URL()] = true
		ordered = append(ordered, n)
	}
	return &Registry{nodes: ordered}
}

// NewRegistryFromList is a shortcut for NewRegistry(ParseNodeList(list)).
func NewRegistryFromList(list string) *Registry {
	return NewRegistry(ParseNodeList(list))
}

// Nodes returns a copy of the ordered node list.
func (r *Registry) Nodes() []*Node {
	res := make([]*Node, len(r.nodes))
	copy(res, r.nodes)
	return res
}

// Node returns the node at position i.
func (r *Registry) Node(i int) *Node {
	return r.nodes[i]
}

// Len returns the number of nodes.
func (r *Registry) Len() int {
	return len(r.nodes)
}

// URLs returns the base URLs in registry order.
func (r *Registry) URLs() []string {
	res := make([]string, len(r.nodes))
	for i, n := range r.nodes {
		res[i] = n.URL()
	}
	return res
}
