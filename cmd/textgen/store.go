package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/seboll13/TextGenerator/pkg/markov"
	"github.com/seboll13/TextGenerator/pkg/store"
	"github.com/seboll13/TextGenerator/pkg/tagger"
)

// openStore opens the configured database, ensures its schema and wraps it in
// a store. The returned function closes both.
func (a *app) openStore() (*store.Store, func(), error) {
	path := a.config.Server.DatabasePath
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := initDB(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = store.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to set up schema: %w", err)
	}

	s, err := store.NewStore(db, a.newTagger())
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("error creating store: %w", err)
	}
	s.SetLogger(a.logger)

	closer := func() {
		s.Close()
		if err := db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}
	return s, closer, nil
}

func (a *app) newTagger() *tagger.Tagger {
	return tagger.NewTagger(tagger.NewTokenizer(tagger.WithAccentFolding(a.config.Generation.FoldAccents)))
}

// seedWord normalizes a seed with the configured tokenizer, so accent folding
// applies to it the same way it applied to the training text.
func (a *app) seedWord(word string) (string, error) {
	seed, err := a.newTagger().Tokenizer().Normalize(word)
	if err != nil {
		return "", fmt.Errorf("invalid seed word %q: %w", word, err)
	}
	return seed, nil
}

// buildFromFile tokenizes a text file and builds an in-memory model from it,
// without touching the database.
func (a *app) buildFromFile(path string, mode markov.Mode) (*markov.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	tg := a.newTagger()
	opt := markov.WithLogger(a.logger)
	switch mode {
	case markov.ModeTagged:
		tokens, err := tg.TagReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to tag %s: %w", path, err)
		}
		return markov.BuildTagged(tokens, opt)
	default:
		words, err := tg.Tokenizer().ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to tokenize %s: %w", path, err)
		}
		return markov.Build(words, opt)
	}
}

// modelSource selects where a generating command gets its model from: a
// stored model by name, or a text file built on the fly.
type modelSource struct {
	model  string
	input  string
	tagged bool
}

func (a *app) loadModel(ctx context.Context, src modelSource) (*markov.Model, error) {
	if src.input != "" {
		mode := markov.ModePlain
		if src.tagged {
			mode = markov.ModeTagged
		}
		return a.buildFromFile(src.input, mode)
	}
	if src.model == "" {
		return nil, fmt.Errorf("either --model or --input is required")
	}

	s, closeStore, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	info, err := s.GetModelInfo(ctx, src.model)
	if err != nil {
		return nil, err
	}
	return s.LoadModel(ctx, info)
}
