package markov

import (
	"context"
	"log/slog"
	"math/rand/v2"
)

// GenerateStream walks the model from seed and returns a read-only channel of
// words, starting with the lowercased seed. This allows for processing the
// sentence word-by-word as it is sampled. The channel is closed once the walk
// stops or the context is cancelled.
func (m *Model) GenerateStream(ctx context.Context, seed string, rng *rand.Rand, opts ...GenerateOption) <-chan string {
	options := newGenerateOptions(opts)
	rng = orRandom(rng)
	graph := m.Graph()

	wordChan := make(chan string)

	go func() {
		defer close(wordChan)

		current := Normalize(seed)
		send := func(word string) bool {
			select {
			case wordChan <- word:
				return true
			case <-ctx.Done():
				m.logger.DebugContext(ctx, "Stream cancelled",
					slog.String("seed", Normalize(seed)),
					slog.Any("reason", ctx.Err()),
				)
				return false
			}
		}

		if !send(current) {
			return
		}
		for steps := 0; !IsTerminal(current); steps++ {
			if options.maxSteps > 0 && steps >= options.maxSteps {
				m.logger.DebugContext(ctx, "Stream stopped by step limit", slog.Int("max_steps", options.maxSteps))
				return
			}
			edges := graph.Neighbors(current)
			if len(edges) == 0 {
				m.logger.DebugContext(ctx, "Stream stopped at dead end", slog.String("word", current))
				return
			}
			current = chooseNext(edges, rng, options)
			if !send(current) {
				return
			}
		}
	}()

	return wordChan
}
