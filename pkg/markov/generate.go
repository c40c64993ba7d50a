package markov

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
)

// DefaultMaxSteps bounds a walk so that a cycle with no reachable terminal
// marker cannot loop forever.
const DefaultMaxSteps = 1000

// State is the outcome of a walk.
type State int

const (
	// StateWalking is the state of a walk that has not stopped yet.
	StateWalking State = iota
	// StateTerminated means a terminal marker was reached.
	StateTerminated
	// StateStuck means the current word had no outgoing edges.
	StateStuck
	// StateLimitExceeded means the walk hit its maximum step count.
	StateLimitExceeded
)

// String returns a lowercase name for the state.
func (s State) String() string {
	switch s {
	case StateWalking:
		return "walking"
	case StateTerminated:
		return "terminated"
	case StateStuck:
		return "stuck"
	case StateLimitExceeded:
		return "limit_exceeded"
	default:
		return "unknown"
	}
}

// Walk is the result of one random walk: the seed followed by every sampled
// word, and the state the walk stopped in.
type Walk struct {
	Path  []string
	State State
}

// Text joins the path with single spaces, without any capitalization or
// punctuation spacing.
func (w Walk) Text() string {
	return strings.Join(w.Path, " ")
}

// generateOptions Is used by the generate functions to configure default options.
type generateOptions struct {
	maxSteps    int
	temperature float64
	topK        int
	starters    []string
}

// GenerateOption is a function that configures generation parameters. It's used
// as a variadic argument in Walk, GenerateSentence and GenerateParagraph.
type GenerateOption func(*generateOptions)

// WithMaxSteps sets the maximum number of words sampled after the seed. A value
// of 0 or less removes the bound.
func WithMaxSteps(n int) GenerateOption {
	return func(o *generateOptions) { o.maxSteps = n }
}

// WithTemperature adjusts the randomness of the neighbour selection.
// A value of 1.0 samples directly from the transition probabilities.
// Values > 1.0 flatten the distribution, values < 1.0 sharpen it.
// A value of 0 or less always chooses the most probable neighbour.
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithTopK restricts selection to the `k` most probable neighbours at each
// step. A value of 0 disables Top-K sampling.
func WithTopK(k int) GenerateOption {
	return func(o *generateOptions) { o.topK = k }
}

// WithStarters replaces the set of words paragraphs pick sentence seeds from.
func WithStarters(words ...string) GenerateOption {
	return func(o *generateOptions) {
		if len(words) > 0 {
			o.starters = words
		}
	}
}

func newGenerateOptions(opts []GenerateOption) *generateOptions {
	options := &generateOptions{
		maxSteps:    DefaultMaxSteps,
		temperature: 1.0,
		topK:        0,
		starters:    DefaultStarters,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// NewRand returns a random source seeded deterministically from seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func orRandom(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// Walk performs a weighted random walk from seed until a terminal marker is
// sampled, the current word has no neighbours, or the step limit is hit. The
// seed is lowercased before lookup. A nil rng uses a freshly seeded source.
func (g *Graph) Walk(seed string, rng *rand.Rand, opts ...GenerateOption) Walk {
	options := newGenerateOptions(opts)
	return g.walk(seed, orRandom(rng), options)
}

func (g *Graph) walk(seed string, rng *rand.Rand, options *generateOptions) Walk {
	current := Normalize(seed)
	w := Walk{Path: []string{current}, State: StateWalking}

	for steps := 0; w.State == StateWalking; steps++ {
		if IsTerminal(current) {
			w.State = StateTerminated
			break
		}
		if options.maxSteps > 0 && steps >= options.maxSteps {
			w.State = StateLimitExceeded
			break
		}
		edges := g.Neighbors(current)
		if len(edges) == 0 {
			w.State = StateStuck
			break
		}
		current = chooseNext(edges, rng, options)
		w.Path = append(w.Path, current)
	}
	return w
}

// Walk runs a walk over the model's graph and logs how it ended.
func (m *Model) Walk(seed string, rng *rand.Rand, opts ...GenerateOption) Walk {
	options := newGenerateOptions(opts)
	w := m.Graph().walk(seed, orRandom(rng), options)

	m.logger.Debug("Walk finished",
		slog.String("seed", Normalize(seed)),
		slog.String("state", w.State.String()),
		slog.Int("length", len(w.Path)),
	)
	return w
}

// GenerateSentence walks the model from seed and returns the path joined by
// single spaces. An unknown seed yields the seed alone.
func (m *Model) GenerateSentence(seed string, rng *rand.Rand, opts ...GenerateOption) string {
	return m.Walk(seed, rng, opts...).Text()
}

// GenerateParagraph generates n sentences, each seeded with a word drawn from
// the starter set, and joins them with single spaces.
func (m *Model) GenerateParagraph(n int, rng *rand.Rand, opts ...GenerateOption) string {
	if n <= 0 {
		return ""
	}
	rng = orRandom(rng)
	options := newGenerateOptions(opts)
	graph := m.Graph()

	sentences := make([]string, 0, n)
	for i := 0; i < n; i++ {
		seed := options.starters[rng.IntN(len(options.starters))]
		w := graph.walk(seed, rng, options)
		sentences = append(sentences, w.Text())
	}

	m.logger.Debug("Paragraph generated", slog.Int("sentences", n))
	return strings.Join(sentences, " ")
}

// chooseNext picks one neighbour. The weights are rescaled to sum to 1 before
// sampling so accumulated floating point drift cannot bias the draw.
func chooseNext(edges []Edge, rng *rand.Rand, options *generateOptions) string {
	candidates := edges

	// topK filtering
	if options.topK > 0 && options.topK < len(candidates) {
		ranked := append([]Edge(nil), candidates...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Weight > ranked[j].Weight
		})
		candidates = ranked[:options.topK]
	}

	// temperature selection
	if options.temperature <= 0 { // Deterministic
		best := candidates[0]
		for _, e := range candidates[1:] {
			if e.Weight > best.Weight {
				best = e
			}
		}
		return best.To
	}

	weights := make([]float64, len(candidates))
	if options.temperature == 1.0 {
		for i, e := range candidates {
			weights[i] = e.Weight
		}
	} else {
		maxLog := math.Inf(-1)
		logs := make([]float64, len(candidates))
		for i, e := range candidates {
			logs[i] = math.Log(e.Weight) / options.temperature
			if logs[i] > maxLog {
				maxLog = logs[i]
			}
		}
		for i, lp := range logs {
			weights[i] = math.Exp(lp - maxLog)
		}
	}

	weights = normalize(weights)
	if weights == nil {
		return candidates[rng.IntN(len(candidates))].To
	}

	r := rng.Float64()
	cumulative := 0.0
	for i, w := range weights {
		cumulative += w
		if r < cumulative {
			return candidates[i].To
		}
	}
	return candidates[len(candidates)-1].To
}

// normalize rescales weights to sum to 1. It returns nil if the weights have no
// positive mass.
func normalize(weights []float64) []float64 {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil
	}
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = w / sum
	}
	return out
}
