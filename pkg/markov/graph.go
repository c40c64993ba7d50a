package markov

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/awalterschulze/gographviz"
)

// Edge is a weighted transition to a neighbouring word.
type Edge struct {
	To     string
	Weight float64
}

// Graph is a directed weighted graph over the words of a Model. Each node's
// outgoing edges are kept sorted by target word so that walks driven by the
// same random source are reproducible.
type Graph struct {
	nodes []string
	edges map[string][]Edge
}

// NewGraph derives a fresh graph from the model. The same model always yields
// the same nodes, edges and weights.
func NewGraph(m *Model) *Graph {
	g := &Graph{
		nodes: m.Nodes(),
		edges: make(map[string][]Edge, len(m.probs)),
	}
	for cur, dist := range m.probs {
		edges := make([]Edge, 0, len(dist))
		for next, p := range dist {
			edges = append(edges, Edge{To: next, Weight: p})
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].To < edges[j].To })
		g.edges[cur] = edges
	}
	return g
}

// Nodes returns the graph's nodes in sorted order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// HasNode reports whether word is a node of the graph.
func (g *Graph) HasNode(word string) bool {
	i := sort.SearchStrings(g.nodes, word)
	return i < len(g.nodes) && g.nodes[i] == word
}

// Neighbors returns the outgoing edges of word. The returned slice is shared
// and must not be modified.
func (g *Graph) Neighbors(word string) []Edge {
	return g.edges[word]
}

// EdgeCount returns the total number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, e := range g.edges {
		n += len(e)
	}
	return n
}

// WriteDOT renders the graph in Graphviz DOT format, labelling each edge with
// its probability rounded to two decimals.
func (g *Graph) WriteDOT(w io.Writer) error {
	const graphName = "G"

	dot := gographviz.NewGraph()
	if err := dot.SetName(graphName); err != nil {
		return err
	}
	if err := dot.SetDir(true); err != nil {
		return err
	}

	for _, node := range g.nodes {
		if err := dot.AddNode(graphName, strconv.Quote(node), nil); err != nil {
			return fmt.Errorf("failed to add node %q: %w", node, err)
		}
	}

	for _, from := range sortedKeys(g.edges) {
		for _, e := range g.edges[from] {
			if !dot.IsNode(strconv.Quote(e.To)) {
				if err := dot.AddNode(graphName, strconv.Quote(e.To), nil); err != nil {
					return fmt.Errorf("failed to add node %q: %w", e.To, err)
				}
			}
			attrs := map[string]string{
				"label": strconv.Quote(strconv.FormatFloat(e.Weight, 'f', 2, 64)),
			}
			if err := dot.AddEdge(strconv.Quote(from), strconv.Quote(e.To), true, attrs); err != nil {
				return fmt.Errorf("failed to add edge %q -> %q: %w", from, e.To, err)
			}
		}
	}

	_, err := io.WriteString(w, dot.String())
	return err
}
