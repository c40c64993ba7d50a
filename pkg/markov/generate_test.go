package markov

import (
	"reflect"
	"slices"
	"strings"
	"testing"
)

const sampleCorpus = "the cat sat on the mat . the dog sat on the cat ! " +
	"a dog ran to the park . this park is big ? " +
	"the mat is red . they ran home . it is late ."

func buildSample(t testing.TB) *Model {
	t.Helper()
	m, err := Build(strings.Fields(sampleCorpus))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return m
}

func TestWalkDeadEnd(t *testing.T) {
	m, err := Build([]string{"hello", "world"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	w := m.Walk("hello", NewRand(1))
	if want := []string{"hello", "world"}; !reflect.DeepEqual(w.Path, want) {
		t.Errorf("Walk() path = %v, want %v", w.Path, want)
	}
	if w.State != StateStuck {
		t.Errorf("Walk() state = %v, want stuck", w.State)
	}
	if got := m.GenerateSentence("hello", NewRand(1)); got != "hello world" {
		t.Errorf("GenerateSentence() = %q, want %q", got, "hello world")
	}
}

func TestWalkUnknownSeed(t *testing.T) {
	m := buildSample(t)
	w := m.Walk("Zebra", NewRand(1))
	if !reflect.DeepEqual(w.Path, []string{"zebra"}) || w.State != StateStuck {
		t.Errorf("Walk(unknown) = %+v, want a stuck walk of the seed alone", w)
	}
}

func TestWalkTerminalSeed(t *testing.T) {
	m := buildSample(t)
	w := m.Walk("!", NewRand(1))
	if len(w.Path) != 1 || w.State != StateTerminated {
		t.Errorf("Walk(!) = %+v, want a terminated walk of length 1", w)
	}
}

func TestWalkDeterminism(t *testing.T) {
	m := buildSample(t)
	for seed := uint64(0); seed < 20; seed++ {
		first := m.GenerateSentence("the", NewRand(seed))
		second := m.GenerateSentence("the", NewRand(seed))
		if first != second {
			t.Fatalf("seed %d: %q != %q", seed, first, second)
		}
	}

	// A freshly derived graph walks the same way as the memoized one.
	a := NewGraph(m).Walk("the", NewRand(42))
	b := m.Graph().Walk("the", NewRand(42))
	if !reflect.DeepEqual(a, b) {
		t.Errorf("fresh graph walk %v differs from memoized %v", a, b)
	}
}

func TestWalkCaseInsensitive(t *testing.T) {
	m := buildSample(t)
	for seed := uint64(0); seed < 10; seed++ {
		upper := m.GenerateSentence("The", NewRand(seed))
		lower := m.GenerateSentence("the", NewRand(seed))
		if upper != lower {
			t.Errorf("seed %d: %q != %q", seed, upper, lower)
		}
	}
}

func TestWalkMatchesNormalizedKeys(t *testing.T) {
	testCases := []struct {
		name  string
		words []string
		seed  string
		want  string
	}{
		{"final sigma", []string{"οδος", "μακρυς", "."}, "ΟΔΟΣ", "οδος μακρυς ."},
		{"decomposed seed", []string{"caf\u00e9", "noir", "."}, "cafe\u0301", "caf\u00e9 noir ."},
		{"upper accented seed", []string{"caf\u00e9", "noir", "."}, "CAF\u00c9", "caf\u00e9 noir ."},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := Build(tc.words)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			walk := m.Walk(tc.seed, NewRand(1))
			if walk.State != StateTerminated {
				t.Errorf("Walk(%q) state = %s, want terminated (path %v)", tc.seed, walk.State, walk.Path)
			}
			if got := walk.Text(); got != tc.want {
				t.Errorf("Walk(%q) = %q, want %q", tc.seed, got, tc.want)
			}
		})
	}
}

func TestWalkTermination(t *testing.T) {
	m := buildSample(t)
	const maxSteps = 50

	for seed := uint64(0); seed < 200; seed++ {
		w := m.Walk(DefaultStarters[seed%uint64(len(DefaultStarters))], NewRand(seed), WithMaxSteps(maxSteps))
		if len(w.Path) > maxSteps+1 {
			t.Fatalf("seed %d: path of length %d exceeds bound", seed, len(w.Path))
		}
		for i := 0; i+1 < len(w.Path); i++ {
			if m.Probability(w.Path[i], w.Path[i+1]) <= 0 {
				t.Fatalf("seed %d: step %q -> %q is not a modeled transition", seed, w.Path[i], w.Path[i+1])
			}
		}
		last := w.Path[len(w.Path)-1]
		switch w.State {
		case StateTerminated:
			if !IsTerminal(last) {
				t.Errorf("seed %d: terminated on non-terminal %q", seed, last)
			}
		case StateStuck:
			if len(m.Graph().Neighbors(last)) != 0 {
				t.Errorf("seed %d: stuck on %q which has neighbours", seed, last)
			}
		case StateLimitExceeded:
			if len(w.Path) != maxSteps+1 {
				t.Errorf("seed %d: limit exceeded with path length %d", seed, len(w.Path))
			}
		default:
			t.Errorf("seed %d: unexpected state %v", seed, w.State)
		}
	}
}

func TestWalkLimitExceeded(t *testing.T) {
	m, err := Build(strings.Fields("a b a b a b"))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	w := m.Walk("a", NewRand(3), WithMaxSteps(10))
	if w.State != StateLimitExceeded {
		t.Errorf("state = %v, want limit_exceeded", w.State)
	}
	if len(w.Path) != 11 {
		t.Errorf("path length = %d, want 11", len(w.Path))
	}
	if got := strings.Join(w.Path[:4], " "); got != "a b a b" {
		t.Errorf("path prefix = %q, want %q", got, "a b a b")
	}
}

func TestWalkSamplingOptions(t *testing.T) {
	m, err := Build(strings.Fields("the cat sat . the cat ran . the dog sat ."))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	testCases := []struct {
		name string
		opts []GenerateOption
		want string
	}{
		// "cat" -> {ran, sat} is a tie, the first neighbour in word order wins.
		{"zero temperature", []GenerateOption{WithTemperature(0)}, "the cat ran ."},
		{"top one", []GenerateOption{WithTopK(1)}, "the cat ran ."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for seed := uint64(0); seed < 5; seed++ {
				if got := m.GenerateSentence("the", NewRand(seed), tc.opts...); got != tc.want {
					t.Errorf("seed %d: got %q, want %q", seed, got, tc.want)
				}
			}
		})
	}

	t.Run("high temperature stays on modeled transitions", func(t *testing.T) {
		w := m.Walk("the", NewRand(9), WithTemperature(5))
		for i := 0; i+1 < len(w.Path); i++ {
			if m.Probability(w.Path[i], w.Path[i+1]) == 0 {
				t.Errorf("unexpected step %q -> %q", w.Path[i], w.Path[i+1])
			}
		}
	})
}

func TestGenerateParagraph(t *testing.T) {
	m := buildSample(t)

	got := m.GenerateParagraph(3, NewRand(11))

	rng := NewRand(11)
	sentences := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		seed := DefaultStarters[rng.IntN(len(DefaultStarters))]
		w := m.Graph().Walk(seed, rng)
		if w.State == StateLimitExceeded {
			t.Fatalf("sentence %d did not terminate", i)
		}
		sentences = append(sentences, w.Text())
	}
	if want := strings.Join(sentences, " "); got != want {
		t.Errorf("GenerateParagraph() = %q, want %q", got, want)
	}

	if got := m.GenerateParagraph(0, NewRand(1)); got != "" {
		t.Errorf("GenerateParagraph(0) = %q, want empty", got)
	}
}

func TestGenerateParagraphStarters(t *testing.T) {
	m, err := Build(strings.Fields("the cat sat ."))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	got := m.GenerateParagraph(3, NewRand(5), WithStarters("The"))
	if want := "the cat sat . the cat sat . the cat sat ."; got != want {
		t.Errorf("GenerateParagraph() = %q, want %q", got, want)
	}
}

func TestNilRandom(t *testing.T) {
	m := buildSample(t)
	if got := m.GenerateSentence("the", nil); !strings.HasPrefix(got, "the") {
		t.Errorf("GenerateSentence(nil rng) = %q", got)
	}
}

func TestWriteDOT(t *testing.T) {
	m, err := Build([]string{"hello", "world", "."})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	var sb strings.Builder
	if err := m.Graph().WriteDOT(&sb); err != nil {
		t.Fatalf("WriteDOT() error = %v", err)
	}
	dot := sb.String()
	for _, want := range []string{"digraph", `"hello"`, `"world"`, `"."`, "1.00"} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
}

func TestGraphNodes(t *testing.T) {
	m := buildSample(t)
	g := NewGraph(m)
	if !slices.IsSorted(g.Nodes()) {
		t.Error("graph nodes are not sorted")
	}
	if !g.HasNode("the") || g.HasNode("zebra") {
		t.Error("HasNode() returned unexpected results")
	}
	if g.EdgeCount() == 0 {
		t.Error("expected edges in the sample graph")
	}
}

func BenchmarkGenerateSentence(b *testing.B) {
	m := buildSample(b)
	rng := NewRand(1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := m.GenerateSentence("the", rng)
		b.SetBytes(int64(len(s)))
	}
}
