package markov

// Prune returns a copy of the counts without the transitions that were seen
// `minFreq` times or fewer, together with the number of links removed. This is
// useful for reducing a model built from a noisy corpus before normalizing it.
// The word and tag tables are rebuilt from the surviving links so all three
// tables stay consistent.
func (c *Counts) Prune(minFreq int) (*Counts, int) {
	pruned := NewCounts()
	removed := 0
	for _, link := range c.Links() {
		if link.Count <= minFreq {
			removed++
			continue
		}
		pruned.Add(link.From, link.To, link.Count)
	}
	return pruned, removed
}
