package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seboll13/TextGenerator/pkg/markov"
)

func TestTrain(t *testing.T) {
	db, s := setupTestDB(t)
	ctx := context.Background()

	modelInfo, err := s.EnsureModel(ctx, "train_test", markov.ModePlain)
	if err != nil {
		t.Fatalf("EnsureModel failed: %v", err)
	}

	if err := s.Train(ctx, modelInfo, strings.NewReader("A b c. a b d.")); err != nil {
		t.Fatalf("Train() failed: %v", err)
	}

	// a->b, b->c, c->., .->a, b->d, d->.
	var linkCount int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM textgen_transitions WHERE model_id = ?", modelInfo.Id).Scan(&linkCount)
	if err != nil {
		t.Fatal(err)
	}
	if linkCount != 6 {
		t.Errorf("expected 6 transitions, got %d", linkCount)
	}

	var freq int
	err = db.QueryRowContext(ctx, `
SELECT t.frequency FROM textgen_transitions t
JOIN textgen_vocabulary cv ON cv.token_id = t.cur_token_id
JOIN textgen_vocabulary nv ON nv.token_id = t.next_token_id
WHERE t.model_id = ? AND cv.token_text = 'a' AND nv.token_text = 'b'`, modelInfo.Id).Scan(&freq)
	if err != nil {
		t.Fatal(err)
	}
	if freq != 2 {
		t.Errorf("expected a -> b to have frequency 2, got %d", freq)
	}

	// Training again accumulates.
	if err := s.Train(ctx, modelInfo, strings.NewReader("a b")); err != nil {
		t.Fatalf("second Train() failed: %v", err)
	}
	counts, err := s.LoadCounts(ctx, modelInfo)
	if err != nil {
		t.Fatalf("LoadCounts failed: %v", err)
	}
	if got := counts.Words["a"]["b"]; got != 3 {
		t.Errorf("expected a -> b to have frequency 3 after retraining, got %d", got)
	}
}

func TestTrainTooShort(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()
	modelInfo, _ := s.EnsureModel(ctx, "short", markov.ModePlain)

	for _, input := range []string{"", "hello"} {
		err := s.Train(ctx, modelInfo, strings.NewReader(input))
		if !errors.Is(err, markov.ErrEmptyInput) {
			t.Errorf("Train(%q) error = %v, want ErrEmptyInput", input, err)
		}
	}
	if err := s.TrainTokens(ctx, modelInfo, []markov.Token{{Text: "x"}}); !errors.Is(err, markov.ErrEmptyInput) {
		t.Errorf("TrainTokens() error = %v, want ErrEmptyInput", err)
	}
}

func TestTrainTagged(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	modelInfo, err := s.EnsureModel(ctx, "tagged", markov.ModeTagged)
	if err != nil {
		t.Fatalf("EnsureModel failed: %v", err)
	}
	if err := s.Train(ctx, modelInfo, strings.NewReader("The dog runs. He runs.")); err != nil {
		t.Fatalf("Train() failed: %v", err)
	}

	counts, err := s.LoadCounts(ctx, modelInfo)
	if err != nil {
		t.Fatalf("LoadCounts failed: %v", err)
	}
	if !counts.HasTags() {
		t.Fatal("expected tagged counts")
	}
	if got := counts.Tagged[markov.Token{Text: "he", Tag: "PRP"}][markov.Token{Text: "runs", Tag: "VBZ"}]; got != 1 {
		t.Errorf("expected (he,PRP) -> (runs,VBZ) once, got %d", got)
	}

	m, err := s.LoadModel(ctx, modelInfo)
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	if m.Mode() != markov.ModeTagged {
		t.Errorf("expected tagged model, got %v", m.Mode())
	}
	if p := m.Probability("runs", "."); p != 1 {
		t.Errorf("expected P(. | runs) = 1, got %v", p)
	}
}

func TestTrainTokens(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	plain, _ := s.EnsureModel(ctx, "plain", markov.ModePlain)
	tokens := []markov.Token{{Text: "Go", Tag: "NN"}, {Text: "runs", Tag: "VBZ"}, {Text: ".", Tag: "."}}
	if err := s.TrainTokens(ctx, plain, tokens); err != nil {
		t.Fatalf("TrainTokens failed: %v", err)
	}

	counts, err := s.LoadCounts(ctx, plain)
	if err != nil {
		t.Fatalf("LoadCounts failed: %v", err)
	}
	if counts.HasTags() {
		t.Error("plain model should not keep tags")
	}
	if counts.Words["go"]["runs"] != 1 {
		t.Errorf("expected go -> runs, got %v", counts.Words)
	}
}

func TestTrainProseCorpus(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	f, err := os.Open(filepath.Join("testdata", "prose.txt"))
	if err != nil {
		t.Fatalf("failed to open corpus: %v", err)
	}
	defer func() { _ = f.Close() }()

	modelInfo, _ := s.EnsureModel(ctx, "prose", markov.ModePlain)
	if err := s.Train(ctx, modelInfo, f); err != nil {
		t.Fatalf("Train() failed: %v", err)
	}
	counts, err := s.LoadCounts(ctx, modelInfo)
	if err != nil {
		t.Fatalf("LoadCounts failed: %v", err)
	}

	// Eight sentences open with "The" right after a full stop.
	if got := counts.Words["."]["the"]; got != 8 {
		t.Errorf("count(. -> the) = %d, want 8", got)
	}
	if got := len(counts.Words["."]); got < 20 {
		t.Errorf("'.' has %d distinct successors, want at least 20", got)
	}
	if counts.Words["?"] == nil || counts.Words["!"] == nil {
		t.Error("expected transitions out of '?' and '!'")
	}

	corpus := createBenchmarkCorpus(t)
	for _, sentence := range splitSentences(corpus)[:50] {
		last := strings.TrimSuffix(sentence, `"`)
		if !markov.IsTerminal(last[len(last)-1:]) {
			t.Errorf("benchmark sentence %q does not end with a terminal marker", sentence)
		}
	}
}

func BenchmarkTrain(b *testing.B) {
	corpus := createBenchmarkCorpus(b)
	ctx := context.Background()

	for _, mode := range []markov.Mode{markov.ModePlain, markov.ModeTagged} {
		b.Run(mode.String(), func(b *testing.B) {
			_, s := setupTestDBBench(b)
			model, err := s.EnsureModel(ctx, "bench_train", mode)
			if err != nil {
				b.Fatalf("EnsureModel failed: %v", err)
			}

			b.SetBytes(int64(len(corpus)))
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if err := s.Train(ctx, model, strings.NewReader(corpus)); err != nil {
					b.Fatalf("Train() failed: %v", err)
				}
			}
		})
	}
}
