package markov

// ModelStats holds aggregated statistics for a single model.
type ModelStats struct {
	Mode         Mode // How the model was built
	States       int  // Words with at least one outgoing transition
	Nodes        int  // Nodes of the transition graph
	Transitions  int  // Unique word -> word links
	Observations int  // Adjacent token pairs that were counted
	DeadEnds     int  // Nodes with no outgoing transition
	Terminals    int  // Terminal markers present in the graph
	Tags         int  // Distinct tags seen (0 for plain models)
}

// Stats returns a snapshot of statistics for the model.
func (m *Model) Stats() ModelStats {
	graph := m.Graph()

	stats := ModelStats{
		Mode:         m.mode,
		States:       len(m.probs),
		Nodes:        len(graph.nodes),
		Transitions:  graph.EdgeCount(),
		Observations: m.counts.Transitions(),
	}

	seen := make(map[string]struct{})
	for cur, dist := range m.probs {
		seen[cur] = struct{}{}
		for next := range dist {
			seen[next] = struct{}{}
		}
	}
	for word := range seen {
		if IsTerminal(word) {
			stats.Terminals++
		}
		if _, ok := m.probs[word]; !ok && !IsTerminal(word) {
			stats.DeadEnds++
		}
	}

	if m.mode == ModeTagged {
		tags := make(map[string]struct{})
		for tag, row := range m.counts.Tags {
			tags[tag] = struct{}{}
			for next := range row {
				tags[next] = struct{}{}
			}
		}
		stats.Tags = len(tags)
	}

	return stats
}
