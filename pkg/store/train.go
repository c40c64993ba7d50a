package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/seboll13/TextGenerator/pkg/markov"
)

// linkWriter upserts counted transitions for one model inside a transaction,
// caching vocabulary IDs so each word is looked up once.
type linkWriter struct {
	ctx         context.Context
	model       ModelInfo
	insertVocab *sql.Stmt
	insertLink  *sql.Stmt
	vocabCache  map[string]int
}

func newLinkWriter(ctx context.Context, tx *sql.Tx, s *Store, model ModelInfo) *linkWriter {
	return &linkWriter{
		ctx:         ctx,
		model:       model,
		insertVocab: tx.StmtContext(ctx, s.stmtInsertVocab),
		insertLink:  tx.StmtContext(ctx, s.stmtInsertLink),
		vocabCache:  make(map[string]int),
	}
}

func (w *linkWriter) tokenID(text string) (int, error) {
	if id, ok := w.vocabCache[text]; ok {
		return id, nil
	}
	var id int
	if err := w.insertVocab.QueryRowContext(w.ctx, text).Scan(&id); err != nil {
		return 0, fmt.Errorf("sql insert vocabulary error for token '%s': %w", text, err)
	}
	w.vocabCache[text] = id
	return id, nil
}

func (w *linkWriter) write(from, to markov.Token, freq int) error {
	fromID, err := w.tokenID(from.Text)
	if err != nil {
		return err
	}
	toID, err := w.tokenID(to.Text)
	if err != nil {
		return err
	}
	if _, err = w.insertLink.ExecContext(w.ctx, w.model.Id, fromID, from.Tag, toID, to.Tag, freq); err != nil {
		return fmt.Errorf("failed to insert transition (%s -> %s): %w", from.Text, to.Text, err)
	}
	return nil
}

// writeCounts flushes every link of counts and returns how many were written.
func (w *linkWriter) writeCounts(counts *markov.Counts) (int, error) {
	links := counts.Links()
	for _, link := range links {
		if err := w.write(link.From, link.To, link.Count); err != nil {
			return 0, err
		}
	}
	return len(links), nil
}

// Train processes a stream of text from an io.Reader, tokenizes it, tags it
// when the model is tag-aware, and adds every adjacent token pair to the
// stored counts of the model. Counts are accumulated in memory and written in
// batches. The entire operation is performed within a single database
// transaction.
func (s *Store) Train(ctx context.Context, model ModelInfo, data io.Reader) error {
	// maxSentenceLength bounds how many words are buffered before tagging.
	const maxSentenceLength = 4096
	// linkBatchSize is how many distinct links are held in memory before they
	// are written to the database.
	const linkBatchSize = 1000

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	w := newLinkWriter(ctx, tx, s, model)
	counts := markov.NewCounts()

	var (
		sentence      []string
		prev          markov.Token
		havePrev      bool
		tokenCount    int64
		sentenceCount int64
		linksWritten  int
	)

	processSentence := func() error {
		if len(sentence) == 0 {
			return nil
		}
		for _, tok := range s.tokensFor(model.Mode, sentence) {
			if havePrev {
				counts.Add(prev, tok, 1)
			}
			prev, havePrev = tok, true
		}
		tokenCount += int64(len(sentence))
		sentenceCount++
		sentence = sentence[:0]

		if counts.Tagged.Len() >= linkBatchSize {
			n, err := w.writeCounts(counts)
			if err != nil {
				return err
			}
			linksWritten += n
			counts = markov.NewCounts()
		}
		return nil
	}

	stream := s.tagger.Tokenizer().NewStream(data)
	for {
		word, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("tokenizer error: %w", err)
		}

		sentence = append(sentence, word)
		if markov.IsTerminal(word) || len(sentence) >= maxSentenceLength {
			if err := processSentence(); err != nil {
				return fmt.Errorf("sentence processing error: %w", err)
			}
		}
	}

	if err := processSentence(); err != nil {
		return fmt.Errorf("final sentence processing error: %w", err)
	}

	n, err := w.writeCounts(counts)
	if err != nil {
		return err
	}
	linksWritten += n

	if tokenCount < 2 {
		return fmt.Errorf("training data for %q: %w", model.Name, markov.ErrEmptyInput)
	}

	s.logger.InfoContext(ctx, "Training completed",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int64("tokens_processed", tokenCount),
		slog.Int64("sentences_processed", sentenceCount),
		slog.Int("links_written", linksWritten),
	)

	return tx.Commit()
}

// TrainTokens adds an already tokenized sequence to the stored counts of the
// model. Tags are dropped for plain models.
func (s *Store) TrainTokens(ctx context.Context, model ModelInfo, tokens []markov.Token) error {
	if len(tokens) < 2 {
		return markov.ErrEmptyInput
	}

	normalized := make([]markov.Token, len(tokens))
	for i, tok := range tokens {
		normalized[i] = markov.Token{Text: markov.Normalize(tok.Text)}
		if model.Mode == markov.ModeTagged {
			normalized[i].Tag = tok.Tag
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	n, err := newLinkWriter(ctx, tx, s, model).writeCounts(markov.CountTokens(normalized))
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Training completed",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("tokens_processed", len(tokens)),
		slog.Int("links_written", n),
	)

	return tx.Commit()
}

// tokensFor pairs each word with its tag in tagged mode, or an empty tag in
// plain mode.
func (s *Store) tokensFor(mode markov.Mode, words []string) []markov.Token {
	switch mode {
	case markov.ModeTagged:
		return s.tagger.Tag(words)
	default:
		tokens := make([]markov.Token, len(words))
		for i, w := range words {
			tokens[i] = markov.Token{Text: w}
		}
		return tokens
	}
}
