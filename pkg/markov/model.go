package markov

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
)

// ErrEmptyInput is returned when a token sequence is too short to form a
// single transition.
var ErrEmptyInput = errors.New("markov: at least two tokens are required to build a model")

// Model is an immutable word -> word transition model. For every word that has
// at least one observed successor, the probabilities of its successors sum to 1.
// A Model is safe for concurrent use once built.
type Model struct {
	mode   Mode
	counts *Counts
	probs  map[string]map[string]float64
	nodes  []string
	logger *slog.Logger

	graphOnce sync.Once
	graph     *Graph
}

type buildOptions struct {
	logger *slog.Logger
}

// BuildOption configures model construction.
type BuildOption func(*buildOptions)

// WithLogger sets the logger used while building and walking the model. By
// default all logs are discarded.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Build constructs a plain model from a word sequence. Words are normalized
// before counting.
func Build(words []string, opts ...BuildOption) (*Model, error) {
	if len(words) < 2 {
		return nil, ErrEmptyInput
	}
	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = Normalize(w)
	}
	return FromCounts(CountWords(lowered), ModePlain, opts...)
}

// BuildTagged constructs a tag-aware model from a sequence of (word, tag)
// tokens. Word text is normalized; tags are used as given.
func BuildTagged(tokens []Token, opts ...BuildOption) (*Model, error) {
	if len(tokens) < 2 {
		return nil, ErrEmptyInput
	}
	lowered := make([]Token, len(tokens))
	for i, t := range tokens {
		lowered[i] = Token{Text: Normalize(t.Text), Tag: t.Tag}
	}
	return FromCounts(CountTokens(lowered), ModeTagged, opts...)
}

// FromCounts normalizes already counted tables into a model of the given mode.
// It is used when counts come from storage rather than a token sequence.
func FromCounts(counts *Counts, mode Mode, opts ...BuildOption) (*Model, error) {
	options := &buildOptions{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(options)
	}

	if counts == nil || counts.Transitions() == 0 {
		return nil, ErrEmptyInput
	}

	m := &Model{
		mode:   mode,
		counts: counts,
		logger: options.logger,
	}

	switch mode {
	case ModePlain:
		m.probs = normalizeTable(counts.Words)
		m.nodes = sortedKeys(m.probs)
	case ModeTagged:
		m.probs = m.blendTagged(counts)
		m.nodes = taggedNodes(counts)
	default:
		return nil, errors.New("markov: unknown model mode")
	}

	m.logger.Debug("Model built",
		slog.String("mode", mode.String()),
		slog.Int("states", len(m.probs)),
		slog.Int("nodes", len(m.nodes)),
		slog.Int("transitions", counts.Transitions()),
	)
	return m, nil
}

// normalizeTable divides each count by the total for its current key, giving
// P(next | cur).
func normalizeTable(table CountTable[string]) map[string]map[string]float64 {
	probs := make(map[string]map[string]float64, len(table))
	for cur, row := range table {
		total := table.Total(cur)
		if total == 0 {
			continue
		}
		dist := make(map[string]float64, len(row))
		for next, n := range row {
			dist[next] = float64(n) / float64(total)
		}
		probs[cur] = dist
	}
	return probs
}

// blendTagged combines P(next_word | word) with P(next_tag | tag) restricted to
// the tags seen after each (word, tag) key. Contributions of different keys
// that share a surface word are summed, then each word's row is rescaled so
// it sums to 1.
func (m *Model) blendTagged(counts *Counts) map[string]map[string]float64 {
	tagModel := normalizeTable(counts.Tags)
	probs := make(map[string]map[string]float64)
	skipped := 0

	for _, key := range sortedTokenKeys(counts.Tagged) {
		row := counts.Tagged[key]
		total := counts.Tagged.Total(key)
		if total == 0 {
			skipped++
			continue
		}

		successors := sortedTokenRow(row)
		tagRow := tagModel[key.Tag]
		seen := make(map[string]struct{}, len(successors))
		tagMass := 0.0
		for _, next := range successors {
			if _, ok := seen[next.Tag]; ok {
				continue
			}
			seen[next.Tag] = struct{}{}
			tagMass += tagRow[next.Tag]
		}
		if tagMass == 0 {
			skipped++
			m.logger.Debug("Skipping key with no tag mass",
				slog.String("word", key.Text),
				slog.String("tag", key.Tag),
			)
			continue
		}

		dist, ok := probs[key.Text]
		if !ok {
			dist = make(map[string]float64, len(row))
			probs[key.Text] = dist
		}
		for _, next := range successors {
			pWord := float64(row[next]) / float64(total)
			pTag := tagRow[next.Tag] / tagMass
			dist[next.Text] += pWord * pTag
		}
	}

	for word, dist := range probs {
		mass := 0.0
		for _, next := range sortedKeys(dist) {
			mass += dist[next]
		}
		if mass == 0 {
			delete(probs, word)
			skipped++
			continue
		}
		for next := range dist {
			dist[next] /= mass
		}
	}

	if skipped > 0 {
		m.logger.Warn("Tagged model skipped keys without successor mass", slog.Int("skipped", skipped))
	}
	return probs
}

// taggedNodes returns every distinct word seen on either side of a transition.
func taggedNodes(counts *Counts) []string {
	set := make(map[string]struct{})
	for cur, row := range counts.Words {
		set[cur] = struct{}{}
		for next := range row {
			set[next] = struct{}{}
		}
	}
	nodes := make([]string, 0, len(set))
	for w := range set {
		nodes = append(nodes, w)
	}
	sort.Strings(nodes)
	return nodes
}

// Mode reports how the model was built.
func (m *Model) Mode() Mode {
	return m.mode
}

// Counts returns the raw tables the model was built from. Callers must not
// modify them.
func (m *Model) Counts() *Counts {
	return m.counts
}

// Probability returns P(next | cur), or 0 if the transition was never observed.
func (m *Model) Probability(cur, next string) float64 {
	return m.probs[Normalize(cur)][Normalize(next)]
}

// Successors returns a copy of the distribution over words following cur.
func (m *Model) Successors(cur string) map[string]float64 {
	dist := m.probs[Normalize(cur)]
	if dist == nil {
		return nil
	}
	out := make(map[string]float64, len(dist))
	for k, v := range dist {
		out[k] = v
	}
	return out
}

// States returns the words that have at least one outgoing transition, sorted.
func (m *Model) States() []string {
	return sortedKeys(m.probs)
}

// Nodes returns the words that become nodes of the transition graph, sorted.
func (m *Model) Nodes() []string {
	return append([]string(nil), m.nodes...)
}

// Contains reports whether word has outgoing transitions in the model.
func (m *Model) Contains(word string) bool {
	_, ok := m.probs[Normalize(word)]
	return ok
}

// Graph returns the transition graph for the model. The model never changes
// after construction, so the graph is built once and shared.
func (m *Model) Graph() *Graph {
	m.graphOnce.Do(func() {
		m.graph = NewGraph(m)
	})
	return m.graph
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedTokenKeys(table CountTable[Token]) []Token {
	keys := make([]Token, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessToken(keys[i], keys[j]) })
	return keys
}

func sortedTokenRow(row map[Token]int) []Token {
	keys := make([]Token, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessToken(keys[i], keys[j]) })
	return keys
}
