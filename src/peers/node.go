package peers

import (
	"strings"
)

// Node is a ledger node endpoint. It is immutable once created.
type Node struct {
	url string
}

// NewNode normalises a raw endpoint: surrounding spaces and trailing slashes
// are removed, and entries that do not start with "http" get the http://
// scheme.
func NewNode(raw string) *Node {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.HasPrefix(u, "http") {
		u = "http://" + u
	}
	return &Node{url: u}
}

// URL returns the base URL of the node.
func (n *Node) URL() string {
	return n.url
}

// String ...
func (n *Node) String() string {
	return n.url
}

// ParseNodeList parses a comma-separated list of endpoints. Empty entries are
// skipped.
func ParseNodeList(list string) []*Node {
	nodes := []*Node{}
	for _, p := range strings.Split(list, ",") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		nodes = append(nodes, NewNode(p))
	}
	return nodes
}
