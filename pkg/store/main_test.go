package store

import (
	"context"
	"database/sql"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/seboll13/TextGenerator/pkg/markov"
)

// setupTestDB creates a new file-backed SQLite database and a Store for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestDB(t *testing.T) (*sql.DB, *Store) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=-4000")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

// setupTestDBWithTraining is a convenience helper that also trains a plain model.
func setupTestDBWithTraining(t *testing.T) (context.Context, *Store, ModelInfo) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	modelInfo, err := s.EnsureModel(ctx, "test_model", markov.ModePlain)
	if err != nil {
		t.Fatalf("setup: EnsureModel() failed: %v", err)
	}
	trainingData := "one fish two fish. red fish blue fish."
	if err := s.Train(ctx, modelInfo, strings.NewReader(trainingData)); err != nil {
		t.Fatalf("setup: Train() failed: %v", err)
	}
	return ctx, s, modelInfo
}

// setupTestDBBench creates a database for benchmarking.
func setupTestDBBench(b *testing.B) (*sql.DB, *Store) {
	dbFile := filepath.Join(b.TempDir(), "bench.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=OFF&_cache_size=-16000&_mmap_size=268435456")
	if err != nil {
		b.Fatalf("failed to open database: %v", err)
	}
	b.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		b.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db, nil)
	if err != nil {
		b.Fatalf("NewStore() error = %v", err)
	}
	b.Cleanup(s.Close)

	return db, s
}

var (
	benchmarkCorpus string
	corpusErr       error
	corpusOnce      sync.Once
)

// benchmarkParagraphs is how many shuffled paragraphs make up the benchmark corpus.
const benchmarkParagraphs = 300

// createBenchmarkCorpus builds an English prose corpus for benchmarking by
// shuffling the sentences of testdata/prose.txt into paragraphs. The shuffle
// is seeded, so every run trains on the same text.
func createBenchmarkCorpus(tb testing.TB) string {
	tb.Helper()
	corpusOnce.Do(func() {
		data, err := os.ReadFile(filepath.Join("testdata", "prose.txt"))
		if err != nil {
			corpusErr = err
			return
		}
		sentences := splitSentences(string(data))
		rng := rand.New(rand.NewPCG(7, 11))

		var sb strings.Builder
		for range benchmarkParagraphs {
			for range 6 {
				sb.WriteString(sentences[rng.IntN(len(sentences))])
				sb.WriteByte(' ')
			}
			sb.WriteString("\n\n")
		}
		benchmarkCorpus = sb.String()
	})
	if corpusErr != nil {
		tb.Fatalf("failed to read benchmark corpus: %v", corpusErr)
	}
	return benchmarkCorpus
}

// splitSentences cuts text after every terminal marker, keeping the marker
// and any closing quote with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if !markov.IsTerminal(string(r)) {
			continue
		}
		end := i + 1
		if end < len(text) && text[end] == '"' {
			end++
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
