package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	dir  string
	base []string
}

func newCLIEnv(t *testing.T) *cliEnv {
	dir := t.TempDir()
	return &cliEnv{
		dir: dir,
		base: []string{
			"--config", filepath.Join(dir, "config.json"),
			"--db", filepath.Join(dir, "textgen.db"),
			"--log-level", "error",
		},
	}
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(append([]string{}, e.base...), args...))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func (e *cliEnv) runErr(t *testing.T, stdin string, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(append([]string{}, e.base...), args...))
	return cmd.Execute()
}

func (e *cliEnv) writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCLI_TrainGenerateAndStats(t *testing.T) {
	env := newCLIEnv(t)
	corpus := env.writeFile(t, "fish.txt", fishCorpus)

	out := env.run(t, "", "train", "fish", corpus)
	assert.Contains(t, out, "model fish (plain): 8 transitions, 9 observations")

	first := env.run(t, "", "generate", "red", "--model", "fish", "--rand-seed", "5")
	assert.True(t, strings.HasPrefix(first, "red fish"), first)
	assert.Equal(t, first, env.run(t, "", "generate", "red", "--model", "fish", "--rand-seed", "5"))

	// Greedy sampling from fish always picks the most likely word.
	assert.Equal(t, "fish .\n", env.run(t, "", "generate", "fish", "-m", "fish", "--temperature", "0"))

	assert.Equal(t, "fish\tplain\n", env.run(t, "", "models"))

	stats := env.run(t, "", "stats", "fish")
	assert.Contains(t, stats, "states: 6")
	assert.Contains(t, stats, "observations: 9")

	out = env.run(t, "", "paragraph", "-m", "fish", "-n", "2", "--rand-seed", "1")
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestCLI_TrainFromStdinTagged(t *testing.T) {
	env := newCLIEnv(t)

	out := env.run(t, "The dog runs. He runs.", "train", "dogs", "--mode", "tagged")
	assert.Contains(t, out, "model dogs (tagged)")

	assert.Equal(t, "runs .\n", env.run(t, "", "generate", "runs", "-m", "dogs"))
}

func TestCLI_GenerateFoldsSeedAccents(t *testing.T) {
	env := newCLIEnv(t)
	env.writeFile(t, "config.json", `{"generation_config": {"fold_accents": true}}`)

	env.run(t, "Caf\u00e9 noir. Caf\u00e9 noir.", "train", "cafe")
	assert.Equal(t, "cafe noir .\n", env.run(t, "", "generate", "CAF\u00c9", "-m", "cafe"))
	assert.Equal(t, "cafe noir .\n", env.run(t, "", "generate", "cafe\u0301", "-m", "cafe"))
}

func TestCLI_FailedTrainingLeavesNoModel(t *testing.T) {
	env := newCLIEnv(t)

	require.Error(t, env.runErr(t, "hello", "train", "short"))
	assert.Empty(t, env.run(t, "", "models"))

	// A model that already has counts keeps them after a failed run.
	env.run(t, fishCorpus, "train", "fish")
	require.Error(t, env.runErr(t, "hello", "train", "fish"))
	assert.Equal(t, "fish\tplain\n", env.run(t, "", "models"))
}

func TestCLI_ExportImportPrune(t *testing.T) {
	env := newCLIEnv(t)
	corpus := env.writeFile(t, "fish.txt", fishCorpus)
	env.run(t, "", "train", "fish", corpus)

	exported := filepath.Join(env.dir, "fish.json")
	env.run(t, "", "export", "fish", "--out", exported)
	require.FileExists(t, exported)

	env.run(t, "", "delete", "fish")
	assert.Empty(t, env.run(t, "", "models"))

	assert.Equal(t, "imported model fish (plain)\n", env.run(t, "", "import", exported))
	assert.Equal(t, "removed 7 transitions and 0 unused words\n", env.run(t, "", "prune", "fish", "--min-freq", "1", "--vocab"))
}

func TestCLI_InputFileAndDot(t *testing.T) {
	env := newCLIEnv(t)
	corpus := env.writeFile(t, "hello.txt", "Hello world.")

	assert.Equal(t, "hello world .\n", env.run(t, "", "generate", "hello", "--input", corpus))

	dot := env.run(t, "", "dot", "--input", corpus)
	assert.Contains(t, dot, "digraph G")
	assert.Contains(t, dot, `"hello"`)
}

func TestCLI_Errors(t *testing.T) {
	env := newCLIEnv(t)

	for _, args := range [][]string{
		{"generate", "a"},
		{"generate", "a", "--model", "missing"},
		{"train", "x", "--mode", "bigram"},
		{"paragraph", "-m", "x", "-n", "-1"},
	} {
		cmd := newRootCmd()
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(append(append([]string{}, env.base...), args...))
		assert.Error(t, cmd.Execute(), "args %v", args)
	}
}
